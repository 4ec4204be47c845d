package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all Magus configuration.
type Config struct {
	Listen        string           `yaml:"listen" env:"MAGUS_LISTEN"`
	DBPath        string           `yaml:"db_path" env:"MAGUS_DB_PATH"`
	CulturesDir   string           `yaml:"cultures_dir" env:"MAGUS_CULTURES_DIR"`
	WatchCultures bool             `yaml:"watch_cultures" env:"MAGUS_WATCH_CULTURES"`
	Log           LogConfig        `yaml:"log"`
	Cache         CacheConfig      `yaml:"cache"`
	Generation    GenerationConfig `yaml:"generation"`
	Store         StoreConfig      `yaml:"store"`
	Metrics       MetricsConfig    `yaml:"metrics"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"MAGUS_LOG_LEVEL"`
	Format string `yaml:"format" env:"MAGUS_LOG_FORMAT"` // "json" or "console"
}

// CacheConfig controls the generation result cache.
// Backend is "memory" (default), "redis" or "none".
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" env:"MAGUS_CACHE_ENABLED"`
	Backend         string        `yaml:"backend" env:"MAGUS_CACHE_BACKEND"`
	TTL             time.Duration `yaml:"ttl" env:"MAGUS_CACHE_TTL"`
	MaxSize         int           `yaml:"max_size" env:"MAGUS_CACHE_MAX_SIZE"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"MAGUS_CACHE_CLEANUP_INTERVAL"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig configures the distributed cache backend.
type RedisConfig struct {
	URL               string        `yaml:"url" env:"MAGUS_REDIS_URL"`
	KeyPrefix         string        `yaml:"key_prefix" env:"MAGUS_REDIS_KEY_PREFIX"`
	OpTimeout         time.Duration `yaml:"op_timeout" env:"MAGUS_REDIS_OP_TIMEOUT"`
	CompressThreshold int           `yaml:"compress_threshold" env:"MAGUS_REDIS_COMPRESS_THRESHOLD"`
	SizeRefresh       time.Duration `yaml:"size_refresh" env:"MAGUS_REDIS_SIZE_REFRESH"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker guarding redis calls.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold"`
	MinRequests      uint32        `yaml:"min_requests"`
}

// GenerationConfig holds generation thresholds. MinScore is the per-request
// default; AcceptanceFloor is the engine's own retry threshold.
type GenerationConfig struct {
	MinScore        float64       `yaml:"min_score" env:"MAGUS_MIN_SCORE"`
	AcceptanceFloor float64       `yaml:"acceptance_floor" env:"MAGUS_ACCEPTANCE_FLOOR"`
	MaxAttempts     int           `yaml:"max_attempts" env:"MAGUS_MAX_ATTEMPTS"`
	MaxCount        int           `yaml:"max_count" env:"MAGUS_MAX_COUNT"`
	DefaultCount    int           `yaml:"default_count"`
	AttemptsPerName int           `yaml:"attempts_per_name"`
	ResultTTL       time.Duration `yaml:"result_ttl"`
}

// StoreConfig controls the generated-name history database.
type StoreConfig struct {
	Enabled       bool   `yaml:"enabled" env:"MAGUS_STORE_ENABLED"`
	RetentionDays int    `yaml:"retention_days"`
	PruneSchedule string `yaml:"prune_schedule"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"MAGUS_METRICS_ENABLED"`
	Namespace string `yaml:"namespace"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8000",
		DBPath: "magus.db",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Enabled:         true,
			Backend:         "memory",
			TTL:             time.Hour,
			MaxSize:         1000,
			CleanupInterval: time.Minute,
			Redis: RedisConfig{
				URL:               "redis://localhost:6379/0",
				KeyPrefix:         "namegen:",
				OpTimeout:         250 * time.Millisecond,
				CompressThreshold: 4096,
				SizeRefresh:       30 * time.Second,
				Breaker: BreakerConfig{
					MaxRequests:      5,
					Interval:         30 * time.Second,
					Timeout:          60 * time.Second,
					FailureThreshold: 0.8,
					MinRequests:      5,
				},
			},
		},
		Generation: GenerationConfig{
			MinScore:        0.6,
			AcceptanceFloor: 0.6,
			MaxAttempts:     100,
			MaxCount:        20,
			DefaultCount:    1,
			AttemptsPerName: 10,
			ResultTTL:       time.Hour,
		},
		Store: StoreConfig{
			Enabled:       true,
			RetentionDays: 90,
			PruneSchedule: "0 3 * * *",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "magus",
		},
	}
}

// Load reads a YAML config file, expands environment variables, applies
// MAGUS_* overrides and validates the result. An empty path yields the defaults
// plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	var errs []error

	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl: must not be negative"))
	}

	g := c.Generation
	if g.MinScore < 0 || g.MinScore > 1 {
		errs = append(errs, fmt.Errorf("generation.min_score: %v outside [0,1]", g.MinScore))
	}
	if g.AcceptanceFloor < 0 || g.AcceptanceFloor > 1 {
		errs = append(errs, fmt.Errorf("generation.acceptance_floor: %v outside [0,1]", g.AcceptanceFloor))
	}
	if g.MaxAttempts < 1 {
		errs = append(errs, errors.New("generation.max_attempts: must be at least 1"))
	}
	if g.MaxCount < 1 {
		errs = append(errs, errors.New("generation.max_count: must be at least 1"))
	}
	if g.DefaultCount < 1 || g.DefaultCount > g.MaxCount {
		errs = append(errs, fmt.Errorf("generation.default_count: %d outside [1,%d]", g.DefaultCount, g.MaxCount))
	}
	if g.AttemptsPerName < 1 {
		errs = append(errs, errors.New("generation.attempts_per_name: must be at least 1"))
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
