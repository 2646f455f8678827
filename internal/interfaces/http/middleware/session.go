package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/krbiz/backend/internal/infrastructure/logger"
)

// SessionParam is the route parameter naming the reconciliation session
const SessionParam = "session_id"

// SessionScope tags the request and its logger with the session of the route
func SessionScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param(SessionParam)
		if sessionID == "" {
			c.Next()
			return
		}
		c.Set("session_id", sessionID)
		ctx, sessionLogger := logger.WithSessionID(c.Request.Context(), logger.GetGinLogger(c), sessionID)
		c.Request = c.Request.WithContext(ctx)
		c.Set("logger", sessionLogger)
		c.Next()
	}
}

// GetSessionID returns the session of the current route
func GetSessionID(c *gin.Context) string {
	if id := c.GetString("session_id"); id != "" {
		return id
	}
	return c.Param(SessionParam)
}
