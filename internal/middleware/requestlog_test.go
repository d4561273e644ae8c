package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fleveque/restaurant-images/internal/requestid"
)

func newLoggedRouter(status int) (*gin.Engine, *observer.ObservedLogs, *string) {
	core, logs := observer.New(zapcore.DebugLevel)
	var seen string

	router := gin.New()
	router.Use(RequestLogger(zap.New(core)))
	router.GET("/test", func(c *gin.Context) {
		seen, _ = requestid.FromContext(c.Request.Context())
		c.Status(status)
	})
	return router, logs, &seen
}

func TestRequestLogger_GeneratesID(t *testing.T) {
	router, logs, seen := newLoggedRouter(http.StatusOK)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	id := w.Header().Get(requestid.Header)
	if id == "" {
		t.Fatal("expected X-Request-ID response header")
	}
	if *seen != id {
		t.Errorf("handler saw %q, response carried %q", *seen, id)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel {
		t.Errorf("expected info level, got %s", entries[0].Level)
	}
	if got := entries[0].ContextMap()["request_id"]; got != id {
		t.Errorf("expected request_id %q in log, got %v", id, got)
	}
}

func TestRequestLogger_ReusesIncomingID(t *testing.T) {
	router, _, seen := newLoggedRouter(http.StatusOK)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(requestid.Header, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get(requestid.Header); got != "abc-123" {
		t.Errorf("expected incoming ID echoed, got %q", got)
	}
	if *seen != "abc-123" {
		t.Errorf("expected handler to see incoming ID, got %q", *seen)
	}
}

func TestRequestLogger_RejectsMalformedID(t *testing.T) {
	router, _, _ := newLoggedRouter(http.StatusOK)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(requestid.Header, "has spaces\tand tabs")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get(requestid.Header); got == "has spaces\tand tabs" || got == "" {
		t.Errorf("expected a fresh ID, got %q", got)
	}
}

func TestRequestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusNotFound, zapcore.WarnLevel},
		{http.StatusBadGateway, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		router, logs, _ := newLoggedRouter(tt.status)
		req := httptest.NewRequest("GET", "/test", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)

		entries := logs.All()
		if len(entries) != 1 || entries[0].Level != tt.level {
			t.Errorf("status %d: expected one %s entry, got %v", tt.status, tt.level, entries)
		}
	}
}
