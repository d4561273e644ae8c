package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/service"
	"github.com/fleveque/restaurant-images/internal/storage"
)

// Pipeline is the administrative surface of the image resolver.
type Pipeline interface {
	Stats() service.ResolverStats
	Prune(ctx context.Context) (int64, error)
	Purge(ctx context.Context) (service.PurgeResult, error)
}

// AdminDeps groups what the admin endpoints inspect and reset.
// Restaurants, Thumbnails and Proxy may be nil.
type AdminDeps struct {
	Pipeline    Pipeline
	CacheRepo   storage.ImageCacheRepository
	CallRepo    storage.ProviderCallRepository
	Restaurants interface{ Invalidate() }
	Thumbnails  interface{ Purge() (int, error) }
	Proxy       *ProxyHandler
}

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	deps   AdminDeps
	logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(deps AdminDeps, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{deps: deps, logger: logger}
}

// Stats returns cache, governor and queue state plus provider call counts
// over the last 24 hours.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	mirrored, err := h.deps.CacheRepo.Count(ctx)
	if err != nil {
		h.logger.Error("counting mirrored cache entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	calls, err := h.deps.CallRepo.CountByProviderOutcome(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		h.logger.Error("counting provider calls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	negative := 0
	if h.deps.Proxy != nil {
		negative = h.deps.Proxy.NegativeEntries()
	}

	c.JSON(http.StatusOK, gin.H{
		"pipeline":              h.deps.Pipeline.Stats(),
		"mirrored_entries":      mirrored,
		"provider_calls_24h":    calls,
		"proxy_negative_cached": negative,
	})
}

// RecentCalls lists the newest provider call records.
// Route: GET /api/v1/admin/calls?limit=50
func (h *AdminHandler) RecentCalls(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	calls, err := h.deps.CallRepo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("listing provider calls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, calls)
}

// PurgeCache empties the image cache and its mirror, drops the assembled
// restaurant list and forgets proxy failures. With thumbnails=true the
// on-disk thumbnails go too.
// Route: POST /api/v1/admin/cache/purge?thumbnails=true
func (h *AdminHandler) PurgeCache(c *gin.Context) {
	res, err := h.deps.Pipeline.Purge(c.Request.Context())
	if err != nil {
		h.logger.Error("purging image cache", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if h.deps.Restaurants != nil {
		h.deps.Restaurants.Invalidate()
	}
	forgotten := 0
	if h.deps.Proxy != nil {
		forgotten = h.deps.Proxy.Forget()
	}

	thumbs := 0
	if c.Query("thumbnails") == "true" && h.deps.Thumbnails != nil {
		thumbs, err = h.deps.Thumbnails.Purge()
		if err != nil {
			h.logger.Error("purging thumbnails", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
	}

	h.logger.Info("cache purged",
		zap.Int("memory", res.Memory),
		zap.Int64("mirrored", res.Mirrored),
		zap.Int("thumbnails", thumbs),
	)
	c.JSON(http.StatusOK, gin.H{
		"memory":          res.Memory,
		"mirrored":        res.Mirrored,
		"thumbnails":      thumbs,
		"proxy_forgotten": forgotten,
	})
}

// PruneCache deletes mirrored entries older than the cache TTL.
// Route: POST /api/v1/admin/cache/prune
func (h *AdminHandler) PruneCache(c *gin.Context) {
	n, err := h.deps.Pipeline.Prune(c.Request.Context())
	if err != nil {
		h.logger.Error("pruning image cache", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pruned": n})
}
