package middleware

import (
	"tournament_market/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestLogger tags every request with an id and puts a logger carrying it into the request context.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		l := logger.With("request_id", id, "method", c.Request.Method, "route", c.FullPath())
		if uid := c.GetString(ContextUserID); uid != "" {
			l = l.With("user_id", uid)
		}
		c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), l))
		c.Next()
	}
}
