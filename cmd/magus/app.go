package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/magus-names/magus/pkg/cache"
	"github.com/magus-names/magus/pkg/config"
	"github.com/magus-names/magus/pkg/culture"
	"github.com/magus-names/magus/pkg/generator"
	"github.com/magus-names/magus/pkg/logging"
	"github.com/magus-names/magus/pkg/metrics"
	"github.com/magus-names/magus/pkg/models"
	"github.com/magus-names/magus/pkg/phonetics"
	"github.com/magus-names/magus/pkg/service"
	"github.com/magus-names/magus/pkg/store"
)

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *culture.Registry
	collector *metrics.Collector
	cache     *cache.Service
	store     *store.SQLiteStore
	svc       *service.NameService
}

// newApp loads configuration and wires the generation pipeline. The history
// store is opened only when useStore is set and the store is enabled.
func newApp(ctx context.Context, configPath string, useStore bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	templates, err := loadTemplates(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	registry := culture.NewRegistry(templates)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		collector: metrics.New(cfg.Metrics),
	}

	scorer := phonetics.NewScorer(registry)
	floor := cfg.Generation.AcceptanceFloor
	engine := generator.New(registry, scorer, generator.Options{
		MaxAttempts:     cfg.Generation.MaxAttempts,
		AcceptanceFloor: &floor,
		Logger:          logger,
		Observer:        a.collector,
	})

	a.cache = cache.New(ctx, cfg.Cache, logger, a.collector)
	a.collector.RegisterCacheStats(func() models.CacheStats {
		return a.cache.Stats(context.Background())
	})

	opts := service.Options{
		Config:  cfg.Generation,
		Metrics: a.collector,
		Logger:  logger,
	}
	if useStore && cfg.Store.Enabled {
		st, err := store.New(cfg.DBPath)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("init store: %w", err)
		}
		a.store = st
		opts.Recorder = st
	}

	a.svc = service.New(registry, engine, scorer, a.cache, opts)
	return a, nil
}

func loadTemplates(cfg *config.Config, logger *zap.Logger) (map[string]*models.CultureTemplate, error) {
	if cfg.CulturesDir == "" {
		templates, err := culture.Builtin()
		if err != nil {
			return nil, fmt.Errorf("load builtin cultures: %w", err)
		}
		return templates, nil
	}
	templates, err := culture.LoadDir(cfg.CulturesDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load cultures from %s: %w", cfg.CulturesDir, err)
	}
	return templates, nil
}

// close flushes pending history writes and releases resources.
func (a *app) close() {
	if a.svc != nil {
		a.svc.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logger.Sync()
}
