package cache

import (
	"context"
	"time"

	"github.com/magus-names/magus/pkg/models"
)

// NoopBackend never stores anything.
type NoopBackend struct{}

// NewNoopBackend returns the terminal fallback backend.
func NewNoopBackend() *NoopBackend { return &NoopBackend{} }

func (NoopBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NoopBackend) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NoopBackend) Delete(context.Context, string) (bool, error) { return false, nil }
func (NoopBackend) ClearAll(context.Context) error { return nil }
func (NoopBackend) ClearByPattern(context.Context, string) (int, error) { return 0, nil }
func (NoopBackend) Ping(context.Context) bool { return true }
func (NoopBackend) Stats(context.Context) models.CacheStats { return models.CacheStats{Backend: KindNoop} }
func (NoopBackend) Kind() string { return KindNoop }
func (NoopBackend) Close() error { return nil }
