package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/askroom/backend/internal/auth"
	"github.com/askroom/backend/internal/session"
	"github.com/askroom/backend/pkg/response"
)

// ContextSession is the key for the viewer session in gin context.
const ContextSession = "session"

// RequireSession validates the bearer token and sets the viewer session
// in context. Requests without a valid token are rejected.
func RequireSession(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFromHeader(c, jwtService)
		if !ok {
			c.Abort()
			return
		}
		if sess == nil {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		c.Set(ContextSession, sess)
		c.Next()
	}
}

// OptionalSession sets the viewer session when a valid bearer token is
// present and lets anonymous requests through. An invalid token is
// still rejected.
func OptionalSession(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFromHeader(c, jwtService)
		if !ok {
			c.Abort()
			return
		}
		if sess != nil {
			c.Set(ContextSession, sess)
		}
		c.Next()
	}
}

// CurrentSession returns the viewer session from context, nil when
// signed out.
func CurrentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(ContextSession)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}

// sessionFromHeader parses the Authorization header. Returns (nil, true)
// when absent, (sess, true) when valid, and writes a 401 returning
// (nil, false) when malformed or invalid.
func sessionFromHeader(c *gin.Context, jwtService *auth.JWTService) (*session.Session, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		response.Unauthorized(c, "invalid authorization header")
		return nil, false
	}
	claims, err := jwtService.Validate(parts[1])
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return nil, false
	}
	return claims.Session(), true
}
