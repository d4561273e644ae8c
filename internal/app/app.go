// Package app builds the service graph from configuration. Both the HTTP
// server and the CLI start from Build so they share one wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/cache"
	"github.com/fleveque/restaurant-images/internal/clock"
	"github.com/fleveque/restaurant-images/internal/config"
	"github.com/fleveque/restaurant-images/internal/fallback"
	"github.com/fleveque/restaurant-images/internal/governor"
	"github.com/fleveque/restaurant-images/internal/handler"
	"github.com/fleveque/restaurant-images/internal/llm"
	"github.com/fleveque/restaurant-images/internal/metrics"
	"github.com/fleveque/restaurant-images/internal/model"
	"github.com/fleveque/restaurant-images/internal/provider"
	"github.com/fleveque/restaurant-images/internal/queue"
	"github.com/fleveque/restaurant-images/internal/server"
	"github.com/fleveque/restaurant-images/internal/service"
	"github.com/fleveque/restaurant-images/internal/storage"
)

// App holds every long-lived component. Fields are read-only after Build.
type App struct {
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	DB         *sqlx.DB
	CacheRepo  storage.ImageCacheRepository
	CallRepo   storage.ProviderCallRepository
	Thumbnails *storage.FileSystem

	Catalog     *fallback.Catalog
	Queue       *queue.Queue
	Chain       *provider.Chain
	Resolver    *service.ImageResolver
	Processor   *service.ImageProcessor
	Restaurants *service.RestaurantService
	Recommender *service.RecommendationService

	logger *zap.Logger
}

// Build opens storage and wires the pipeline. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(a.Registry)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	a.Metrics = m

	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.DB = db
	a.CacheRepo = storage.NewImageCacheRepository(db)
	a.CallRepo = storage.NewProviderCallRepository(db)

	thumbs, err := storage.NewFileSystem(cfg.Storage.ThumbnailDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating thumbnail store: %w", err)
	}
	a.Thumbnails = thumbs
	a.Processor = service.NewImageProcessor(thumbs)

	httpClient := &http.Client{Timeout: cfg.Providers.Timeout}
	google, err := provider.NewGoogleProvider(ctx, provider.GoogleConfig{
		APIKey:   cfg.Providers.Google.APIKey,
		CSEID:    cfg.Providers.Google.CSEID,
		Endpoint: cfg.Providers.Google.Endpoint,
		Num:      cfg.Providers.Google.Num,
	}, httpClient, logger.Named("google"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating google provider: %w", err)
	}
	unsplash := provider.NewUnsplashProvider(provider.UnsplashConfig{
		AccessKey: cfg.Providers.Unsplash.AccessKey,
		Endpoint:  cfg.Providers.Unsplash.Endpoint,
		PerPage:   cfg.Providers.Unsplash.PerPage,
	}, httpClient, logger.Named("unsplash"))

	if !google.Configured() {
		logger.Warn("google custom search not configured, it will be skipped")
	}
	if !unsplash.Configured() {
		logger.Warn("unsplash not configured, it will be skipped")
	}

	a.Chain = provider.NewChain([]provider.Provider{google, unsplash}, a.CallRepo, m, logger.Named("chain"))
	a.Catalog = fallback.NewCatalog()
	a.Queue = queue.New(cfg.Queue.Concurrency, cfg.Queue.Spacing, m, logger.Named("queue"))

	var mirror storage.ImageCacheRepository
	if cfg.Cache.Persist {
		mirror = a.CacheRepo
	}
	clk := clock.Real{}
	a.Resolver = service.NewImageResolver(service.ResolverDeps{
		Cache:      cache.New[[]model.ImageResult](cfg.Cache.Images.Capacity, cfg.Cache.Images.TTL, cache.WithClock(clk)),
		Mirror:     mirror,
		Governor:   governor.New(cfg.Governor.Window, cfg.Governor.MaxPerWindow, clk),
		Queue:      a.Queue,
		Chain:      a.Chain,
		Normalizer: service.NewNormalizer(a.Catalog),
		Metrics:    m,
		Clock:      clk,
	}, service.ResolverConfig{
		TargetCount:    cfg.Resolver.TargetCount,
		MaxCount:       cfg.Resolver.MaxCount,
		QuerySuffix:    cfg.Resolver.QuerySuffix,
		DedupeInflight: cfg.Resolver.DedupeInflight,
	}, logger.Named("resolver"))

	listCache := cache.New[[]model.Restaurant](cfg.Cache.Restaurants.Capacity, cfg.Cache.Restaurants.TTL, cache.WithClock(clk))
	a.Restaurants = service.NewRestaurantService(a.Resolver, a.Catalog, listCache,
		cfg.Restaurants.SearchImages, cfg.Resolver.TargetCount, m, logger.Named("restaurants"))

	a.Recommender = service.NewRecommendationService(buildLLMClients(cfg, httpClient, logger),
		a.Resolver, a.CallRepo, m, logger.Named("recommendations"))

	return a, nil
}

// buildLLMClients creates clients in provider_order, skipping any without an
// API key.
func buildLLMClients(cfg *config.Config, httpClient *http.Client, logger *zap.Logger) []llm.Client {
	var clients []llm.Client
	for _, name := range cfg.LLM.ProviderOrder {
		switch name {
		case "openai":
			if cfg.LLM.OpenAI.APIKey == "" {
				logger.Warn("skipping openai: no API key")
				continue
			}
			clients = append(clients, llm.NewOpenAIClient(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.Model, cfg.LLM.OpenAI.BaseURL, httpClient))
		case "anthropic":
			if cfg.LLM.Anthropic.APIKey == "" {
				logger.Warn("skipping anthropic: no API key")
				continue
			}
			clients = append(clients, llm.NewAnthropicClient(cfg.LLM.Anthropic.APIKey, cfg.LLM.Anthropic.Model,
				option.WithHTTPClient(httpClient)))
		}
	}
	return clients
}

// ServerDeps exposes the components the HTTP routes need.
func (a *App) ServerDeps() server.Deps {
	fallbackImage := ""
	if imgs := a.Catalog.Images(fallback.General, 1); len(imgs) > 0 {
		fallbackImage = imgs[0].ImageLink
	}
	return server.Deps{
		DB:            a.DB,
		Registry:      a.Registry,
		Resolver:      a.Resolver,
		Restaurants:   a.Restaurants,
		Recommender:   a.Recommender,
		Processor:     a.Processor,
		Thumbnails:    a.Thumbnails,
		CacheRepo:     a.CacheRepo,
		CallRepo:      a.CallRepo,
		ProxyClient:   handler.NewProxyClient(a.Config.Proxy.Timeout),
		FallbackImage: fallbackImage,
	}
}

// Close stops the queue and closes the database.
func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	return errors.Join(errs...)
}
