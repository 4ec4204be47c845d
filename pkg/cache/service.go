package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/magus-names/magus/pkg/config"
	"github.com/magus-names/magus/pkg/models"
)

// Metrics records cache outcomes. A nil Metrics is allowed.
type Metrics interface {
	CacheRequest(backend string, hit bool)
	CacheError(backend, op string)
}

// Service fronts one Backend chosen at construction. Backend failures are
// logged and reported as misses or no-ops; they never reach the caller.
type Service struct {
	backend    Backend
	defaultTTL time.Duration
	logger     *zap.Logger
	metrics    Metrics

	hits   atomic.Int64
	misses atomic.Int64

	stopJanitor context.CancelFunc
}

// New selects a backend from cfg. Redis falls back to memory when it cannot be
// reached, and memory falls back to no-op when it cannot be built. New never
// fails.
func New(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger, metrics Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := selectBackend(ctx, cfg, logger)
	s := NewWithBackend(backend, cfg.TTL, logger, metrics)

	if mb, ok := backend.(*MemoryBackend); ok && cfg.CleanupInterval > 0 {
		jctx, cancel := context.WithCancel(context.Background())
		mb.StartJanitor(jctx, cfg.CleanupInterval)
		s.stopJanitor = cancel
	}

	logger.Info("cache backend selected",
		zap.String("requested", cfg.Backend),
		zap.String("backend", backend.Kind()),
		zap.Duration("ttl", cfg.TTL),
	)
	return s
}

func selectBackend(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) Backend {
	if !cfg.Enabled || cfg.Backend == KindNoop {
		return NewNoopBackend()
	}

	if cfg.Backend == KindRedis {
		rb, err := NewRedisBackend(ctx, cfg.Redis, logger)
		if err == nil {
			return rb
		}
		logger.Warn("redis cache unavailable, falling back to memory", zap.Error(err))
	}

	mb, err := NewMemoryBackend(cfg.MaxSize, logger)
	if err != nil {
		logger.Warn("memory cache unavailable, caching disabled", zap.Error(err))
		return NewNoopBackend()
	}
	return mb
}

// NewWithBackend wraps an existing backend.
func NewWithBackend(b Backend, defaultTTL time.Duration, logger *zap.Logger, metrics Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: b, defaultTTL: defaultTTL, logger: logger, metrics: metrics}
}

// Kind returns the active backend kind.
func (s *Service) Kind() string { return s.backend.Kind() }

// DefaultTTL returns the configured entry lifetime.
func (s *Service) DefaultTTL() time.Duration { return s.defaultTTL }

// Get returns the raw value for key. Backend errors count as misses.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	val, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.backendError("get", key, err)
		ok = false
	}
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	if s.metrics != nil {
		s.metrics.CacheRequest(s.backend.Kind(), ok)
	}
	return val, ok
}

// Set stores value. A ttl of 0 uses the default TTL. Failures are logged only.
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if err := s.backend.Set(ctx, key, value, ttl); err != nil {
		s.backendError("set", key, err)
	}
}

// GetJSON decodes a cached value into v. Undecodable entries are dropped and
// reported as misses.
func (s *Service) GetJSON(ctx context.Context, key string, v any) bool {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		s.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON encodes v and stores it.
func (s *Service) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("cache value not encodable", zap.String("key", key), zap.Error(err))
		return
	}
	s.Set(ctx, key, raw, ttl)
}

// Delete removes key and reports whether it existed.
func (s *Service) Delete(ctx context.Context, key string) bool {
	ok, err := s.backend.Delete(ctx, key)
	if err != nil {
		s.backendError("delete", key, err)
		return false
	}
	return ok
}

// ClearAll removes every entry owned by this service.
func (s *Service) ClearAll(ctx context.Context) error {
	if err := s.backend.ClearAll(ctx); err != nil {
		s.backendError("clear", "*", err)
		return err
	}
	return nil
}

// ClearByPattern removes entries whose keys match pattern.
func (s *Service) ClearByPattern(ctx context.Context, pattern string) (int, error) {
	n, err := s.backend.ClearByPattern(ctx, pattern)
	if err != nil {
		s.backendError("clear_pattern", pattern, err)
		return n, err
	}
	s.logger.Info("cleared cache entries", zap.String("pattern", pattern), zap.Int("count", n))
	return n, nil
}

// InvalidateCulture removes every cached result for a culture.
func (s *Service) InvalidateCulture(ctx context.Context, code string) (int, error) {
	n, err := s.ClearByPattern(ctx, CulturePattern(code))
	if s.Delete(ctx, NamesPrefix(code)) {
		n++
	}
	return n, err
}

// Ping reports backend reachability.
func (s *Service) Ping(ctx context.Context) bool {
	return s.backend.Ping(ctx)
}

// Stats combines service-level hit/miss counters with backend occupancy.
func (s *Service) Stats(ctx context.Context) models.CacheStats {
	st := s.backend.Stats(ctx)
	st.Backend = s.backend.Kind()
	st.Hits = s.hits.Load()
	st.Misses = s.misses.Load()
	st.HitRate = hitRate(st.Hits, st.Misses)
	return st
}

// Close stops background work and releases the backend.
func (s *Service) Close() error {
	if s.stopJanitor != nil {
		s.stopJanitor()
	}
	return s.backend.Close()
}

func (s *Service) backendError(op, key string, err error) {
	if s.metrics != nil {
		s.metrics.CacheError(s.backend.Kind(), op)
	}
	level := s.logger.Warn
	if !errors.Is(err, ErrBackend) {
		level = s.logger.Error
	}
	level("cache operation failed",
		zap.String("op", op),
		zap.String("backend", s.backend.Kind()),
		zap.String("key", key),
		zap.Error(err),
	)
}
