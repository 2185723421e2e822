package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gufagu-backend/pkg/constants"
	"gufagu-backend/pkg/logger"
)

// Timeout bounds every request on the route group. Do not mount it in front
// of the websocket upgrade; the connection outlives any request timeout.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = constants.DefaultTimeout
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			logger.Warn("Request timed out",
				zap.Duration("timeout", timeout),
				zap.Duration("duration", time.Since(start)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path))

			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  "REQUEST_TIMEOUT",
			})
		}
	}
}
