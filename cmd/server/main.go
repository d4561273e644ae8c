// Package main is the entry point for the restaurant-images HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/app"
	"github.com/fleveque/restaurant-images/internal/config"
	"github.com/fleveque/restaurant-images/internal/server"
)

func main() {
	// run() keeps deferred cleanup working; os.Exit skips defers.
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("RESTO_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync commonly fails on stdout/stderr; nothing to do about it.
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("closing app", zap.Error(err))
		}
	}()

	// a failed warm start only means a cold cache
	if _, err := a.Resolver.WarmStart(ctx); err != nil {
		logger.Warn("warm start failed", zap.Error(err))
	}
	if n, err := a.Resolver.Prune(ctx); err != nil {
		logger.Warn("pruning mirrored cache failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("pruned expired mirrored entries", zap.Int64("count", n))
	}

	return server.New(cfg, a.ServerDeps(), logger).Run(ctx)
}

// newLogger returns a development logger for debug level and a production
// JSON logger at the configured level otherwise.
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	zcfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", level, err)
	}
	zcfg.Level = lvl
	return zcfg.Build()
}
