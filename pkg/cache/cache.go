// Package cache memoizes generation results behind interchangeable backends.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/magus-names/magus/pkg/models"
)

// Backend kinds reported in stats and metric labels.
const (
	KindMemory = "memory"
	KindRedis  = "redis"
	KindNoop   = "none"
)

var (
	// ErrBackend wraps every failure of a backend operation.
	ErrBackend = errors.New("cache backend error")
	// ErrInit wraps backend construction failures.
	ErrInit = errors.New("cache initialization failed")
)

// Backend is a byte-oriented key-value store with per-entry TTL. A ttl <= 0
// stores the entry without expiry.
type Backend interface {
	// Get returns a copy of the stored value.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	ClearAll(ctx context.Context) error
	// ClearByPattern removes keys matching a glob pattern and returns how many.
	ClearByPattern(ctx context.Context, pattern string) (int, error)
	Ping(ctx context.Context) bool
	Stats(ctx context.Context) models.CacheStats
	Kind() string
	Close() error
}
