package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/restaurant-images/internal/requestid"
)

// CORS sets Cross-Origin Resource Sharing headers for the configured
// frontend origins. Preflight OPTIONS requests end here with 204.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originSet := toSet(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if _, ok := originSet[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "X-API-Key, Content-Type, "+requestid.Header)
			c.Header("Access-Control-Expose-Headers", requestid.Header)
			c.Header("Access-Control-Max-Age", "86400")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
