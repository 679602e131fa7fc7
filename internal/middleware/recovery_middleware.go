// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ticketsync/internal/pkg/response"
)

// RecoveryMiddleware turns a handler panic into a 500 envelope so the
// client's error classification still sees a structured body.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := []zap.Field{
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Stack("stack"),
			}
			if id, ok := GetUserID(c); ok {
				fields = append(fields, zap.String("user_id", id))
			}
			logger.Error("handler panicked", fields...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
		}()
		c.Next()
	}
}
