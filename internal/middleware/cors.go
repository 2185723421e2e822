package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OriginChecker reports whether a browser origin may talk to the service
type OriginChecker func(origin string) bool

// AllowOrigins builds an OriginChecker over a fixed list. "*" allows every origin.
func AllowOrigins(origins []string) OriginChecker {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(origin string) bool {
		return allowed["*"] || allowed[origin]
	}
}

// CORSMiddleware sets CORS headers for allowed origins and rejects the rest
func CORSMiddleware(allowed OriginChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Only set CORS headers for allowed origins
		if origin != "" && allowed(origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		} else if origin != "" {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
