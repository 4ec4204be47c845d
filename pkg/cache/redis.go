package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/magus-names/magus/pkg/config"
	"github.com/magus-names/magus/pkg/models"
)

const scanBatch = 100

// zstd frame magic; JSON payloads never start with these bytes.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// redisClient is the subset of *redis.Client the backend uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisBackend delegates to a shared redis server. Every key is namespaced
// with a fixed prefix, every call carries a timeout and runs through a circuit
// breaker, and values above a size threshold are zstd-compressed. The reported
// size is a key count refreshed at most once per SizeRefresh.
type RedisBackend struct {
	client            redisClient
	prefix            string
	opTimeout         time.Duration
	compressThreshold int
	breaker           *gobreaker.CircuitBreaker
	enc               *zstd.Encoder
	dec               *zstd.Decoder
	logger            *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64

	sizeRefresh time.Duration
	sizeFlight  singleflight.Group
	sizeMu      sync.Mutex
	size        int64
	sizeAt      time.Time
}

// NewRedisBackend connects to cfg.URL and verifies reachability with a ping.
func NewRedisBackend(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisBackend, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse redis url: %v", ErrInit, err)
	}
	client := redis.NewClient(opts)

	b, err := newRedisBackend(client, cfg, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	pingCtx, cancel := b.opContext(ctx)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		b.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", ErrInit, err)
	}
	return b, nil
}

func newRedisBackend(client redisClient, cfg config.RedisConfig, logger *zap.Logger) (*RedisBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd encoder: %v", ErrInit, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("%w: zstd decoder: %v", ErrInit, err)
	}

	bc := cfg.Breaker
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &RedisBackend{
		client:            client,
		prefix:            cfg.KeyPrefix,
		opTimeout:         cfg.OpTimeout,
		compressThreshold: cfg.CompressThreshold,
		breaker:           breaker,
		enc:               enc,
		dec:               dec,
		logger:            logger,
		sizeRefresh:       cfg.SizeRefresh,
	}, nil
}

func (r *RedisBackend) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opTimeout)
}

// do runs fn through the breaker with a per-operation timeout.
func (r *RedisBackend) do(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	res, err := r.breaker.Execute(func() (any, error) {
		return fn(opCtx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: redis %s: %v", ErrBackend, op, err)
	}
	return res, nil
}

// Get returns the decoded value. A missing key is a miss, not an error.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := r.do(ctx, "get", func(ctx context.Context) (any, error) {
		val, err := r.client.Get(ctx, r.prefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return val, err
	})
	if err != nil {
		return nil, false, err
	}
	raw, _ := res.([]byte)
	if raw == nil {
		r.misses.Add(1)
		return nil, false, nil
	}

	val, err := r.decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: decode %s: %v", ErrBackend, key, err)
	}
	r.hits.Add(1)
	return val, true, nil
}

// Set stores value with a native redis TTL.
func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	payload := r.encode(value)
	_, err := r.do(ctx, "set", func(ctx context.Context) (any, error) {
		return nil, r.client.Set(ctx, r.prefix+key, payload, ttl).Err()
	})
	return err
}

// Delete removes key.
func (r *RedisBackend) Delete(ctx context.Context, key string) (bool, error) {
	res, err := r.do(ctx, "del", func(ctx context.Context) (any, error) {
		return r.client.Del(ctx, r.prefix+key).Result()
	})
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	if n > 0 {
		r.expireSize()
	}
	return n > 0, nil
}

// ClearAll removes every key under the prefix. It never flushes the database.
func (r *RedisBackend) ClearAll(ctx context.Context) error {
	_, err := r.ClearByPattern(ctx, "*")
	return err
}

// ClearByPattern scans for prefixed keys matching pattern and deletes them in
// batches.
func (r *RedisBackend) ClearByPattern(ctx context.Context, pattern string) (int, error) {
	match := r.prefix + pattern
	deleted := 0
	var cursor uint64
	for {
		var keys []string
		_, err := r.do(ctx, "scan", func(ctx context.Context) (any, error) {
			var err error
			keys, cursor, err = r.client.Scan(ctx, cursor, match, scanBatch).Result()
			return nil, err
		})
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			res, err := r.do(ctx, "del", func(ctx context.Context) (any, error) {
				return r.client.Del(ctx, keys...).Result()
			})
			if err != nil {
				return deleted, err
			}
			n, _ := res.(int64)
			deleted += int(n)
			r.expireSize()
		}
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Ping reports whether the server answers within the operation timeout.
func (r *RedisBackend) Ping(ctx context.Context) bool {
	_, err := r.do(ctx, "ping", func(ctx context.Context) (any, error) {
		return nil, r.client.Ping(ctx).Err()
	})
	if err != nil {
		r.logger.Warn("redis ping failed", zap.Error(err))
		return false
	}
	return true
}

// Stats reports hit counters and the cached key count. Size is -1 when the
// count cannot be refreshed.
func (r *RedisBackend) Stats(ctx context.Context) models.CacheStats {
	hits, misses := r.hits.Load(), r.misses.Load()
	return models.CacheStats{
		Backend: KindRedis,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
		Size:    r.keyCount(ctx),
	}
}

// keyCount returns the number of keys under the prefix, scanning only when the
// last count is older than sizeRefresh. Concurrent callers share one scan.
func (r *RedisBackend) keyCount(ctx context.Context) int64 {
	r.sizeMu.Lock()
	if !r.sizeAt.IsZero() && time.Since(r.sizeAt) < r.sizeRefresh {
		n := r.size
		r.sizeMu.Unlock()
		return n
	}
	r.sizeMu.Unlock()

	res, err, _ := r.sizeFlight.Do("size", func() (any, error) {
		n, err := r.scanCount(ctx)
		if err != nil {
			return int64(-1), err
		}
		r.sizeMu.Lock()
		r.size, r.sizeAt = n, time.Now()
		r.sizeMu.Unlock()
		return n, nil
	})
	if err != nil {
		r.logger.Debug("redis key count failed", zap.Error(err))
		return -1
	}
	return res.(int64)
}

func (r *RedisBackend) scanCount(ctx context.Context) (int64, error) {
	var total int64
	var cursor uint64
	for {
		var keys []string
		_, err := r.do(ctx, "scan", func(ctx context.Context) (any, error) {
			var err error
			keys, cursor, err = r.client.Scan(ctx, cursor, r.prefix+"*", scanBatch).Result()
			return nil, err
		})
		if err != nil {
			return 0, err
		}
		total += int64(len(keys))
		if cursor == 0 {
			return total, nil
		}
	}
}

// expireSize forces the next Stats call to rescan.
func (r *RedisBackend) expireSize() {
	r.sizeMu.Lock()
	r.sizeAt = time.Time{}
	r.sizeMu.Unlock()
}

// Kind returns KindRedis.
func (r *RedisBackend) Kind() string { return KindRedis }

// Close releases the client and codecs.
func (r *RedisBackend) Close() error {
	r.dec.Close()
	if err := r.enc.Close(); err != nil {
		r.logger.Debug("zstd encoder close", zap.Error(err))
	}
	return r.client.Close()
}

func (r *RedisBackend) encode(value []byte) []byte {
	if r.compressThreshold <= 0 || len(value) < r.compressThreshold {
		return value
	}
	return r.enc.EncodeAll(value, make([]byte, 0, len(value)/2))
}

func (r *RedisBackend) decode(raw []byte) ([]byte, error) {
	if !bytes.HasPrefix(raw, zstdMagic) {
		return raw, nil
	}
	return r.dec.DecodeAll(raw, nil)
}
