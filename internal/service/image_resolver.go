// Package service contains the core business logic: image resolution, the
// restaurant concierge and the featured restaurant list.
//
// ImageResolver is the single entry point for photos:
//
//	cache hit   → return the cached set
//	cache miss  → rate governor → request queue → provider chain
//	no results  → cuisine-matched fallback catalog
//
// Every path returns exactly the requested number of images.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fleveque/restaurant-images/internal/cache"
	"github.com/fleveque/restaurant-images/internal/clock"
	"github.com/fleveque/restaurant-images/internal/governor"
	"github.com/fleveque/restaurant-images/internal/metrics"
	"github.com/fleveque/restaurant-images/internal/model"
	"github.com/fleveque/restaurant-images/internal/provider"
	"github.com/fleveque/restaurant-images/internal/queue"
	"github.com/fleveque/restaurant-images/internal/storage"
)

// Searcher is the provider chain as seen by the resolver.
type Searcher interface {
	Search(ctx context.Context, query string, start int) []model.ImageResult
}

// ResolverConfig holds the tunables for image resolution.
type ResolverConfig struct {
	TargetCount    int    // images returned when the caller doesn't ask for a count
	MaxCount       int    // upper bound for ResolveRequest.Count
	QuerySuffix    string // appended to provider queries unless already present
	DedupeInflight bool
}

// ResolverDeps are the collaborators an ImageResolver drives. Mirror,
// Metrics and Clock may be nil.
type ResolverDeps struct {
	Cache      *cache.LRU[[]model.ImageResult]
	Mirror     storage.ImageCacheRepository
	Governor   *governor.Governor
	Queue      *queue.Queue
	Chain      Searcher
	Normalizer *Normalizer
	Metrics    *metrics.Metrics
	Clock      clock.Clock
}

// ResolveRequest asks for count images for a query. Zero values mean page 1,
// cuisine derived from the query and the configured target count.
type ResolveRequest struct {
	Query   string
	Page    int
	Cuisine string
	Count   int
}

// ImageResolver resolves free-text restaurant descriptions into photo sets.
type ImageResolver struct {
	deps   ResolverDeps
	cfg    ResolverConfig
	group  singleflight.Group
	logger *zap.Logger
}

// NewImageResolver creates a resolver. Unset config values get defaults.
func NewImageResolver(deps ResolverDeps, cfg ResolverConfig, logger *zap.Logger) *ImageResolver {
	if cfg.TargetCount <= 0 {
		cfg.TargetCount = 3
	}
	if cfg.MaxCount < cfg.TargetCount {
		cfg.MaxCount = cfg.TargetCount
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	return &ImageResolver{deps: deps, cfg: cfg, logger: logger}
}

// TargetCount returns the default number of images per resolution.
func (r *ImageResolver) TargetCount() int {
	return r.cfg.TargetCount
}

// Resolve returns exactly TargetCount images for query. It never fails.
func (r *ImageResolver) Resolve(ctx context.Context, query string, page int) []model.ImageResult {
	return r.ResolveRequest(ctx, ResolveRequest{Query: query, Page: page})
}

// ResolveRequest is Resolve with an explicit cuisine hint and count.
func (r *ImageResolver) ResolveRequest(ctx context.Context, req ResolveRequest) []model.ImageResult {
	req = r.normalizeRequest(req)
	hint := req.Cuisine
	if hint == "" {
		hint = req.Query
	}

	if req.Query == "" {
		return r.finish(nil, hint, req.Count)
	}

	key := cache.Key(req.Query, req.Page)
	if cached, ok := r.deps.Cache.Get(key); ok {
		r.deps.Metrics.RecordCacheLookup("images", true)
		return r.finish(cached, hint, req.Count)
	}
	r.deps.Metrics.RecordCacheLookup("images", false)

	raw := r.resolveMiss(ctx, key, req)
	return r.finish(raw, hint, req.Count)
}

func (r *ImageResolver) normalizeRequest(req ResolveRequest) ResolveRequest {
	req.Query = strings.TrimSpace(req.Query)
	req.Cuisine = strings.TrimSpace(req.Cuisine)
	if req.Page < 1 {
		req.Page = 1
	}
	switch {
	case req.Count <= 0:
		req.Count = r.cfg.TargetCount
	case req.Count > r.cfg.MaxCount:
		req.Count = r.cfg.MaxCount
	}
	return req
}

// finish sizes the result and records which tier served it.
func (r *ImageResolver) finish(raw []model.ImageResult, hint string, count int) []model.ImageResult {
	out := r.deps.Normalizer.Normalize(raw, hint, count)
	if len(out) > 0 {
		r.deps.Metrics.RecordResolution(string(out[0].Source))
	}
	return out
}

// resolveMiss fetches provider results for key, collapsing concurrent misses
// when dedup is enabled. Callers give up when ctx is done; the shared fetch
// carries on for the others and still populates the cache.
func (r *ImageResolver) resolveMiss(ctx context.Context, key string, req ResolveRequest) []model.ImageResult {
	if !r.cfg.DedupeInflight {
		return r.fetch(ctx, key, req)
	}

	ch := r.group.DoChan(key, func() (any, error) {
		return r.fetch(context.WithoutCancel(ctx), key, req), nil
	})
	select {
	case res := <-ch:
		if res.Shared {
			r.logger.Debug("joined in-flight resolution", zap.String("key", key))
		}
		raw, _ := res.Val.([]model.ImageResult)
		return raw
	case <-ctx.Done():
		return nil
	}
}

// fetch runs one provider round trip through the governor and the queue.
// An empty return means the caller should fall back to the catalog.
func (r *ImageResolver) fetch(ctx context.Context, key string, req ResolveRequest) []model.ImageResult {
	// another caller may have filled the entry while this one waited
	if r.deps.Cache.Has(key) {
		if cached, ok := r.deps.Cache.Get(key); ok {
			return cached
		}
	}

	permitted := r.deps.Governor.Allow()
	r.deps.Metrics.RecordGovernorDecision(permitted)
	if !permitted {
		usage := r.deps.Governor.Usage()
		r.logger.Info("rate governor denied provider call, serving fallback",
			zap.String("query", req.Query),
			zap.Int("used", usage.Used),
			zap.Int("limit", usage.Limit),
		)
		return nil
	}

	query := providerQuery(req.Query, r.cfg.QuerySuffix)
	start := (req.Page-1)*provider.GooglePageSize + 1

	var raw []model.ImageResult
	err := r.deps.Queue.Enqueue(ctx, func(ctx context.Context) error {
		raw = r.deps.Chain.Search(ctx, query, start)
		return nil
	})
	if err != nil {
		level := r.logger.Warn
		if errors.Is(err, context.Canceled) {
			level = r.logger.Debug
		}
		level("provider search did not run",
			zap.String("query", query),
			zap.Error(err),
		)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	stored := Pad(raw, max(len(raw), r.cfg.TargetCount))
	r.store(ctx, key, req, stored)
	return stored
}

// store writes a resolved set to the in-memory cache and, when configured,
// the durable mirror. Mirror failures are logged and otherwise ignored.
func (r *ImageResolver) store(ctx context.Context, key string, req ResolveRequest, images []model.ImageResult) {
	now := r.deps.Clock.Now()
	r.deps.Cache.SetAt(key, images, now)

	if r.deps.Mirror == nil {
		return
	}
	entry := &model.CacheEntry{
		Key:       key,
		Query:     req.Query,
		Page:      req.Page,
		Images:    images,
		CreatedAt: now,
	}
	if err := r.deps.Mirror.Upsert(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.Warn("mirroring cache entry",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// WarmStart loads mirrored entries younger than the cache TTL into memory,
// oldest first so the newest end up most recently used.
func (r *ImageResolver) WarmStart(ctx context.Context) (int, error) {
	if r.deps.Mirror == nil {
		return 0, nil
	}

	since := r.deps.Clock.Now().Add(-r.deps.Cache.TTL())
	entries, err := r.deps.Mirror.ListSince(ctx, since, r.deps.Cache.Stats().Capacity)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if len(e.Images) < r.cfg.TargetCount {
			continue
		}
		r.deps.Cache.SetAt(e.Key, e.Images, e.CreatedAt)
		loaded++
	}

	r.logger.Info("warm-started image cache",
		zap.Int("loaded", loaded),
		zap.Int("mirrored", len(entries)),
	)
	return loaded, nil
}

// Prune deletes mirrored entries that have outlived the cache TTL.
func (r *ImageResolver) Prune(ctx context.Context) (int64, error) {
	if r.deps.Mirror == nil {
		return 0, nil
	}
	return r.deps.Mirror.DeleteBefore(ctx, r.deps.Clock.Now().Add(-r.deps.Cache.TTL()))
}

// PurgeResult reports what a purge removed.
type PurgeResult struct {
	Memory   int   `json:"memory"`
	Mirrored int64 `json:"mirrored"`
}

// Purge empties the in-memory cache and the mirror.
func (r *ImageResolver) Purge(ctx context.Context) (PurgeResult, error) {
	res := PurgeResult{Memory: r.deps.Cache.Purge()}
	if r.deps.Mirror == nil {
		return res, nil
	}
	n, err := r.deps.Mirror.DeleteAll(ctx)
	res.Mirrored = n
	return res, err
}

// ResolverStats is the operational snapshot exposed to admins.
type ResolverStats struct {
	Cache    cache.Stats    `json:"cache"`
	Governor governor.Usage `json:"governor"`
	Queue    queue.Stats    `json:"queue"`
	CacheTTL time.Duration  `json:"cache_ttl_ns"`
}

func (r *ImageResolver) Stats() ResolverStats {
	return ResolverStats{
		Cache:    r.deps.Cache.Stats(),
		Governor: r.deps.Governor.Usage(),
		Queue:    r.deps.Queue.Stats(),
		CacheTTL: r.deps.Cache.TTL(),
	}
}

// providerQuery appends suffix unless the query already mentions it.
func providerQuery(query, suffix string) string {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" || strings.Contains(strings.ToLower(query), strings.ToLower(suffix)) {
		return query
	}
	return query + " " + suffix
}
