package archive

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/askroom/backend/internal/middleware"
	"github.com/askroom/backend/internal/models"
	"github.com/askroom/backend/pkg/response"
	"github.com/askroom/backend/pkg/storage"
)

// Handler handles archive HTTP endpoints.
type Handler struct {
	repo *Repository
	s3   *storage.S3
}

// NewHandler creates an archive handler. s3 may be nil when archiving
// is not configured; download URLs are then unavailable.
func NewHandler(repo *Repository, s3 *storage.S3) *Handler {
	return &Handler{repo: repo, s3: s3}
}

// ListByRoom handles GET /rooms/:id/archives (owner only).
func (h *Handler) ListByRoom(c *gin.Context) {
	list, err := h.repo.ListByRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Internal(c, "failed to list archives")
		return
	}
	response.OK(c, gin.H{"archives": list})
}

// DownloadURL handles GET /archives/:id/download-url. Only the archive
// owner may fetch a link.
func (h *Handler) DownloadURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid archive id")
		return
	}
	a, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "archive not found")
		return
	}
	sess := middleware.CurrentSession(c)
	if a.OwnerID != sess.ViewerID() {
		response.Forbidden(c, "archive owner required")
		return
	}
	if a.Status != models.ArchiveStatusCompleted {
		response.Conflict(c, "archive not completed")
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "archive storage not configured")
		return
	}
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.ArchivesBucket(), a.S3Key, h.s3.PresignExpire())
	if err != nil {
		response.Internal(c, "failed to presign download")
		return
	}
	response.OK(c, gin.H{"url": url, "expires_in_minutes": int(h.s3.PresignExpire().Minutes())})
}

// Delete handles DELETE /archives/:id. Only the archive owner may
// delete; the S3 object is removed before the row.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid archive id")
		return
	}
	a, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "archive not found")
		return
	}
	sess := middleware.CurrentSession(c)
	if a.OwnerID != sess.ViewerID() {
		response.Forbidden(c, "archive owner required")
		return
	}
	if a.S3Key != "" && h.s3 != nil {
		if err := h.s3.DeleteObject(c.Request.Context(), h.s3.ArchivesBucket(), a.S3Key); err != nil {
			response.Internal(c, "failed to delete archive object")
			return
		}
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete archive")
		return
	}
	response.NoContent(c)
}
