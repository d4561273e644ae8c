package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// limitedRouter keys callers by the X-API-Key header, standing in for
// APIKeyAuth.
func limitedRouter(rps float64, burst int) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if key := c.GetHeader("X-API-Key"); key != "" {
			c.Set(ContextKeyAPIKey, key)
		}
		c.Next()
	})
	router.Use(RateLimit(rps, burst))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func hit(router *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	router := limitedRouter(1, 3)

	for i := 0; i < 3; i++ {
		if w := hit(router, "caller"); w.Code != http.StatusOK {
			t.Fatalf("request %d within burst: expected 200, got %d", i, w.Code)
		}
	}

	w := hit(router, "caller")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("expected Retry-After 1, got %q", got)
	}
}

func TestRateLimit_RetryAfterForSlowRates(t *testing.T) {
	router := limitedRouter(0.2, 1)

	hit(router, "caller")
	w := hit(router, "caller")
	if got := w.Header().Get("Retry-After"); got != "5" {
		t.Errorf("expected Retry-After 5 at 0.2 rps, got %q", got)
	}
}

func TestRateLimit_BucketsArePerKey(t *testing.T) {
	router := limitedRouter(1, 1)

	steps := []struct {
		key  string
		want int
	}{
		{"key-a", http.StatusOK},
		{"key-a", http.StatusTooManyRequests},
		{"key-b", http.StatusOK},
		{"key-b", http.StatusTooManyRequests},
	}
	for i, s := range steps {
		if w := hit(router, s.key); w.Code != s.want {
			t.Errorf("step %d (%s): expected %d, got %d", i, s.key, s.want, w.Code)
		}
	}
}

func TestRateLimit_NoKeyPassesThrough(t *testing.T) {
	router := limitedRouter(1, 1)

	for i := 0; i < 3; i++ {
		if w := hit(router, ""); w.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}
