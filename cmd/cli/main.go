// Package main provides resto-cli, a command-line front end to the image
// pipeline and the concierge. It shares configuration and the SQLite mirror
// with the server, so a warm cache carries over between runs.
//
// Run with: go run ./cmd/cli resolve "Carbone New York" --cuisine italian
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/app"
	"github.com/fleveque/restaurant-images/internal/config"
	"github.com/fleveque/restaurant-images/internal/model"
	"github.com/fleveque/restaurant-images/internal/service"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "resto-cli",
		Short:        "Restaurant image pipeline tools",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity to stderr")

	root.AddCommand(resolveCmd(&verbose))
	root.AddCommand(cacheCmd(&verbose))
	root.AddCommand(recommendCmd(&verbose))
	return root
}

func resolveCmd(verbose *bool) *cobra.Command {
	var req service.ResolveRequest

	cmd := &cobra.Command{
		Use:   "resolve <query>",
		Short: "Resolve photos for a restaurant description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = strings.Join(args, " ")
			return withApp(cmd.Context(), *verbose, func(ctx context.Context, a *app.App) error {
				if _, err := a.Resolver.WarmStart(ctx); err != nil {
					return fmt.Errorf("warm start: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), a.Resolver.ResolveRequest(ctx, req))
			})
		},
	}

	cmd.Flags().IntVar(&req.Page, "page", 1, "result page")
	cmd.Flags().StringVar(&req.Cuisine, "cuisine", "", "cuisine hint for fallback photos")
	cmd.Flags().IntVar(&req.Count, "count", 0, "number of images (default: resolver.target_count)")
	return cmd
}

func cacheCmd(verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the persisted image cache",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show cache, governor and provider call statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *verbose, func(ctx context.Context, a *app.App) error {
				loaded, err := a.Resolver.WarmStart(ctx)
				if err != nil {
					return fmt.Errorf("warm start: %w", err)
				}
				mirrored, err := a.CacheRepo.Count(ctx)
				if err != nil {
					return fmt.Errorf("counting mirrored entries: %w", err)
				}
				calls, err := a.CallRepo.CountByProviderOutcome(ctx, time.Now().Add(-24*time.Hour))
				if err != nil {
					return fmt.Errorf("counting provider calls: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"mirrored_entries":   mirrored,
					"fresh_entries":      loaded,
					"cache_ttl":          a.Resolver.Stats().CacheTTL.String(),
					"provider_calls_24h": calls,
				})
			})
		},
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete mirrored entries older than the cache TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *verbose, func(ctx context.Context, a *app.App) error {
				n, err := a.Resolver.Prune(ctx)
				if err != nil {
					return fmt.Errorf("pruning: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d expired entries\n", n)
				return nil
			})
		},
	}

	var thumbnails bool
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete every mirrored entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *verbose, func(ctx context.Context, a *app.App) error {
				res, err := a.Resolver.Purge(ctx)
				if err != nil {
					return fmt.Errorf("purging: %w", err)
				}
				removed := 0
				if thumbnails {
					if removed, err = a.Thumbnails.Purge(); err != nil {
						return fmt.Errorf("purging thumbnails: %w", err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries, %d thumbnails\n", res.Mirrored, removed)
				return nil
			})
		},
	}
	purge.Flags().BoolVar(&thumbnails, "thumbnails", false, "also delete stored proxy thumbnails")

	cmd.AddCommand(stats, prune, purge)
	return cmd
}

func recommendCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <prompt>",
		Short: "Ask the concierge for a restaurant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			return withApp(cmd.Context(), *verbose, func(ctx context.Context, a *app.App) error {
				if _, err := a.Resolver.WarmStart(ctx); err != nil {
					return fmt.Errorf("warm start: %w", err)
				}
				res, err := a.Recommender.Recommend(ctx, []model.ChatMessage{
					{Role: model.RoleUser, Content: prompt},
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

// withApp loads config, builds the app and runs fn with a context that is
// cancelled on Ctrl+C.
func withApp(parent context.Context, verbose bool, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(os.Getenv("RESTO_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := zap.NewNop()
	if verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
	}
	defer func() { _ = logger.Sync() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
