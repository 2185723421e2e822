package middleware

import (
	"github.com/gin-gonic/gin"
)

// apiSecurityHeaders suit a JSON and websocket API that never serves documents
var apiSecurityHeaders = map[string]string{
	"X-Frame-Options":           "DENY",
	"X-Content-Type-Options":    "nosniff",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Referrer-Policy":           "no-referrer",
	"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
	"Cache-Control":             "no-store",
}

// SecurityHeaders stamps apiSecurityHeaders on every response
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for name, value := range apiSecurityHeaders {
			h.Set(name, value)
		}
		c.Next()
	}
}
