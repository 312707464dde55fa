package rooms

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/askroom/backend/internal/middleware"
	"github.com/askroom/backend/pkg/response"
)

// CreateRequest is the body for POST /rooms.
type CreateRequest struct {
	Title string `json:"title" binding:"required"`
}

// QuestionRequest is the body for POST /rooms/:id/questions.
type QuestionRequest struct {
	Content string `json:"content" binding:"required"`
}

// Archiver schedules a room archive once the room is closed.
type Archiver interface {
	Schedule(ctx context.Context, roomID, title, ownerID string) error
}

// Handler handles room HTTP endpoints.
type Handler struct {
	svc      *Service
	archiver Archiver
	logger   *zap.Logger
}

// NewHandler creates a rooms handler. archiver may be nil when S3 is
// not configured.
func NewHandler(svc *Service, archiver Archiver, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, archiver: archiver, logger: logger}
}

// Create handles POST /rooms.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	id, err := h.svc.CreateRoom(c.Request.Context(), middleware.CurrentSession(c), req.Title)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, gin.H{"id": id})
}

// Get handles GET /rooms/:id: a one-shot projected view for the viewer.
func (h *Handler) Get(c *gin.Context) {
	viewerID := middleware.CurrentSession(c).ViewerID()
	view, err := h.svc.Room(c.Request.Context(), c.Param("id"), viewerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, view)
}

// SendQuestion handles POST /rooms/:id/questions.
func (h *Handler) SendQuestion(c *gin.Context) {
	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	id, err := h.svc.SendQuestion(c.Request.Context(), middleware.CurrentSession(c), c.Param("id"), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, gin.H{"id": id})
}

// Like handles POST /rooms/:id/questions/:qid/like.
func (h *Handler) Like(c *gin.Context) {
	id, err := h.svc.LikeQuestion(c.Request.Context(), middleware.CurrentSession(c), c.Param("id"), c.Param("qid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, gin.H{"likeId": id})
}

// Unlike handles DELETE /rooms/:id/questions/:qid/like/:lid.
func (h *Handler) Unlike(c *gin.Context) {
	err := h.svc.UnlikeQuestion(c.Request.Context(), middleware.CurrentSession(c), c.Param("id"), c.Param("qid"), c.Param("lid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAnswered handles PATCH /rooms/:id/questions/:qid/answer (owner only).
func (h *Handler) MarkAnswered(c *gin.Context) {
	if err := h.svc.MarkAnswered(c.Request.Context(), c.Param("id"), c.Param("qid")); err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, gin.H{"id": c.Param("qid"), "isAnswered": true})
}

// Highlight handles PATCH /rooms/:id/questions/:qid/highlight (owner only).
func (h *Handler) Highlight(c *gin.Context) {
	if err := h.svc.HighlightQuestion(c.Request.Context(), c.Param("id"), c.Param("qid")); err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, gin.H{"id": c.Param("qid"), "isHighlighted": true})
}

// DeleteQuestion handles DELETE /rooms/:id/questions/:qid (owner only).
func (h *Handler) DeleteQuestion(c *gin.Context) {
	if err := h.svc.DeleteQuestion(c.Request.Context(), c.Param("id"), c.Param("qid")); err != nil {
		h.respondError(c, err)
		return
	}
	response.NoContent(c)
}

// Close handles PATCH /rooms/:id/close (owner only). Schedules a room
// archive when archiving is configured.
func (h *Handler) Close(c *gin.Context) {
	roomID := c.Param("id")
	closedAt, err := h.svc.CloseRoom(c.Request.Context(), roomID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.archiver != nil {
		view, err := h.svc.Room(c.Request.Context(), roomID, "")
		if err != nil {
			h.logger.Warn("room re-read failed, archive not scheduled", zap.String("room_id", roomID), zap.Error(err))
		} else {
			ownerID := middleware.CurrentSession(c).ViewerID()
			if err := h.archiver.Schedule(c.Request.Context(), roomID, view.Title, ownerID); err != nil {
				h.logger.Warn("schedule room archive failed", zap.String("room_id", roomID), zap.Error(err))
			}
		}
	}
	response.OK(c, gin.H{"id": roomID, "closedAt": closedAt})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEmptyTitle), errors.Is(err, ErrEmptyContent):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrSignedOut):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, ErrNotLikeOwner):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrRoomNotFound):
		response.NotFound(c, err.Error())
	default:
		response.Internal(c, err.Error())
	}
}
