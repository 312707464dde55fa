package rooms

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/askroom/backend/internal/middleware"
	"github.com/askroom/backend/pkg/response"
)

// RequireRoomOwner gates admin operations (answer, highlight, delete,
// close) behind room ownership: the session user must match the room's
// authorId.
func RequireRoomOwner(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		if !sess.SignedIn() {
			response.Unauthorized(c, "signed-in user required")
			c.Abort()
			return
		}
		owner, err := svc.Owner(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ErrRoomNotFound) {
				response.NotFound(c, "room not found")
			} else {
				response.Internal(c, "failed to load room")
			}
			c.Abort()
			return
		}
		if owner != sess.UserID {
			response.Forbidden(c, "room owner required")
			c.Abort()
			return
		}
		c.Next()
	}
}
