// Package server owns the gin engine and the http.Server lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/config"
	"github.com/fleveque/restaurant-images/internal/middleware"
)

// DefaultShutdownGrace is how long Run waits for in-flight requests.
const DefaultShutdownGrace = 10 * time.Second

type Server struct {
	router *gin.Engine
	logger *zap.Logger
	http   *http.Server
	grace  time.Duration
}

// New builds the engine, installs middleware and registers every route.
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	mode := gin.ReleaseMode
	if cfg.Log.Level == "debug" {
		mode = gin.DebugMode
	}
	gin.SetMode(mode)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")))
	RegisterRoutes(router, cfg, deps, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// recommendations wait on an LLM and then on the image queue
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{router: router, logger: logger, http: httpSrv, grace: DefaultShutdownGrace}
}

// Run serves until ctx is cancelled or the listener fails. On cancellation it
// drains in-flight requests for up to the shutdown grace period.
func (s *Server) Run(ctx context.Context) error {
	listenErr := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("address", s.http.Addr))
		listenErr <- s.http.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", zap.Duration("grace", s.grace))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.grace)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Router exposes the engine so tests can drive it with httptest.
func (s *Server) Router() *gin.Engine {
	return s.router
}
