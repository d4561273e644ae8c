package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit applies a token bucket per caller, keyed by whatever APIKeyAuth
// stored. Requests without a key pass through untouched.
//
// This limits HTTP callers only. Provider quota is guarded separately by the
// resolver's governor, so a caller within its bucket can still be served
// fallback photos.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		apiKey := c.GetString(ContextKeyAPIKey)
		if apiKey == "" {
			c.Next()
			return
		}

		mu.Lock()
		limiter, exists := limiters[apiKey]
		if !exists {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[apiKey] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			retry := 1
			if rps > 0 && rps < 1 {
				retry = int(1/rps + 0.5)
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
