// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"emg-service/internal/utils"
)

// LoggingMiddleware logs every request except the ones under skipPaths.
// Probe endpoints are usually listed there to keep logs quiet.
func LoggingMiddleware(logger *utils.ServiceLogger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}

		duration := time.Since(startTime)

		logger.LogAPIRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.Writer.Status(),
			duration,
		)

		if len(c.Errors) > 0 {
			logger.Warn("Request errors",
				zap.String("request_id", c.GetString(RequestIDKey)),
				zap.String("errors", c.Errors.String()),
			)
		}
	}
}
