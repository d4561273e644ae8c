package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/config"
	"github.com/fleveque/restaurant-images/internal/handler"
	"github.com/fleveque/restaurant-images/internal/middleware"
	"github.com/fleveque/restaurant-images/internal/service"
	"github.com/fleveque/restaurant-images/internal/storage"
)

// Deps are the services the routes dispatch to. app.App fills it in.
type Deps struct {
	DB          handler.Pinger
	Registry    *prometheus.Registry
	Resolver    *service.ImageResolver
	Restaurants *service.RestaurantService
	Recommender *service.RecommendationService
	Processor   *service.ImageProcessor
	Thumbnails  *storage.FileSystem
	CacheRepo   storage.ImageCacheRepository
	CallRepo    storage.ProviderCallRepository
	ProxyClient *http.Client
	// FallbackImage is where the proxy redirects when a fetch fails.
	FallbackImage string
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(deps.DB)
	imageHandler := handler.NewImageHandler(deps.Resolver)
	restaurantHandler := handler.NewRestaurantHandler(deps.Restaurants)
	recommendationHandler := handler.NewRecommendationHandler(deps.Recommender, logger)
	proxyHandler := handler.NewProxyHandler(deps.Processor, deps.ProxyClient, handler.ProxyConfig{
		MaxBytes:    cfg.Proxy.MaxBytes,
		NegativeTTL: cfg.Proxy.NegativeTTL,
		FallbackURL: deps.FallbackImage,
	}, logger.Named("proxy"))
	adminHandler := handler.NewAdminHandler(handler.AdminDeps{
		Pipeline:    deps.Resolver,
		CacheRepo:   deps.CacheRepo,
		CallRepo:    deps.CallRepo,
		Restaurants: deps.Restaurants,
		Thumbnails:  deps.Thumbnails,
		Proxy:       proxyHandler,
	}, logger)

	// Public endpoints (no auth)
	r.GET("/healthz", healthHandler.Healthz)
	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{
			ErrorHandling: promhttp.ContinueOnError,
		})))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	// gin only runs group middleware on matched routes, so preflights need one
	api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.GET("/images", imageHandler.Search)
		authed.GET("/restaurants", restaurantHandler.Featured)
		authed.POST("/recommendations", recommendationHandler.Recommend)
		authed.GET("/image-proxy", proxyHandler.Proxy)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.GET("/calls", adminHandler.RecentCalls)
		admin.POST("/cache/purge", adminHandler.PurgeCache)
		admin.POST("/cache/prune", adminHandler.PruneCache)
	}
}
