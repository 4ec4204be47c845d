package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/magus-names/magus/pkg/api"
	"github.com/magus-names/magus/pkg/culture"
	"github.com/magus-names/magus/pkg/store"
)

func newServeCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP name generation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			if a.store != nil {
				retention := store.NewRetention(a.store, a.cfg.Store, a.logger)
				if err := retention.Start(ctx); err != nil {
					return fmt.Errorf("start retention: %w", err)
				}
				defer retention.Stop()
			}

			if err := a.watchCultures(ctx); err != nil {
				return err
			}

			addr := a.cfg.Listen
			if listen != "" {
				addr = listen
			}
			srv := api.New(addr, a.svc, a.collector.Handler(), a.logger)
			a.logger.Info("starting magus api",
				zap.String("addr", addr),
				zap.String("cache", a.cache.Kind()),
				zap.Int("cultures", a.registry.Len()),
			)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	return cmd
}

// watchCultures reloads the culture directory on change and drops cached
// results for every culture that changed.
func (a *app) watchCultures(ctx context.Context) error {
	if !a.cfg.WatchCultures || a.cfg.CulturesDir == "" {
		return nil
	}
	w, err := culture.NewWatcher(a.cfg.CulturesDir, a.registry, func(changed []string) {
		for _, code := range changed {
			n, err := a.svc.InvalidateCulture(ctx, code)
			if err != nil {
				a.logger.Warn("cache invalidation failed", zap.String("culture", code), zap.Error(err))
				continue
			}
			a.logger.Info("culture reloaded", zap.String("culture", code), zap.Int("invalidated", n))
		}
	}, a.logger)
	if err != nil {
		return fmt.Errorf("watch cultures: %w", err)
	}
	go w.Run(ctx)
	return nil
}
