// Package metrics exposes Prometheus instrumentation for generation and caching.
//
// A nil *Collector is valid and records nothing, so components can be built
// with metrics disabled without branching at every call site.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magus-names/magus/pkg/config"
	"github.com/magus-names/magus/pkg/models"
)

// Generation outcomes used as label values.
const (
	OutcomeGenerated = "generated"
	OutcomeCached    = "cached"
	OutcomeError     = "error"
)

// Collector owns a private registry and every metric the service emits.
type Collector struct {
	namespace string
	registry  *prometheus.Registry

	cacheRequests   *prometheus.CounterVec
	cacheErrors     *prometheus.CounterVec
	generations     *prometheus.CounterVec
	namesReturned   *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	engineAttempts  *prometheus.HistogramVec
	engineFallbacks *prometheus.CounterVec
}

// New creates a Collector, or returns nil when metrics are disabled.
func New(cfg config.MetricsConfig) *Collector {
	if !cfg.Enabled {
		return nil
	}
	ns := cfg.Namespace
	registry := prometheus.NewRegistry()

	c := &Collector{
		namespace: ns,
		registry:  registry,
		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "cache",
				Name:      "requests_total",
				Help:      "Cache lookups by backend and result (hit or miss).",
			},
			[]string{"backend", "result"},
		),
		cacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "cache",
				Name:      "errors_total",
				Help:      "Cache backend failures by operation.",
			},
			[]string{"backend", "op"},
		),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "generation",
				Name:      "requests_total",
				Help:      "Generation requests by culture and outcome.",
			},
			[]string{"culture", "outcome"},
		),
		namesReturned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "generation",
				Name:      "names_total",
				Help:      "Names returned to callers by culture.",
			},
			[]string{"culture"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Generation request latency.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			},
			[]string{"cached"},
		),
		engineAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "engine",
				Name:      "attempts",
				Help:      "Candidates drawn per engine call.",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"culture"},
		),
		engineFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "engine",
				Name:      "fallbacks_total",
				Help:      "Engine calls that exhausted their attempt budget.",
			},
			[]string{"culture"},
		),
	}

	registry.MustRegister(
		c.cacheRequests,
		c.cacheErrors,
		c.generations,
		c.namesReturned,
		c.duration,
		c.engineAttempts,
		c.engineFallbacks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry, or nil.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// CacheRequest counts one cache lookup.
func (c *Collector) CacheRequest(backend string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheRequests.WithLabelValues(backend, result).Inc()
}

// CacheError counts one failed backend operation.
func (c *Collector) CacheError(backend, op string) {
	if c == nil {
		return
	}
	c.cacheErrors.WithLabelValues(backend, op).Inc()
}

// EngineResult records how many attempts one engine call took.
func (c *Collector) EngineResult(culture string, attempts int, fallback bool) {
	if c == nil {
		return
	}
	c.engineAttempts.WithLabelValues(culture).Observe(float64(attempts))
	if fallback {
		c.engineFallbacks.WithLabelValues(culture).Inc()
	}
}

// Generation records a finished generation request.
func (c *Collector) Generation(culture, outcome string, names int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.generations.WithLabelValues(culture, outcome).Inc()
	if outcome == OutcomeError {
		return
	}
	c.namesReturned.WithLabelValues(culture).Add(float64(names))
	cached := "false"
	if outcome == OutcomeCached {
		cached = "true"
	}
	c.duration.WithLabelValues(cached).Observe(elapsed.Seconds())
}

// RegisterCacheStats exports occupancy figures read from stats at scrape time.
func (c *Collector) RegisterCacheStats(stats func() models.CacheStats) {
	if c == nil {
		return
	}
	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held by the cache backend.",
		}, func() float64 { return float64(stats().Size) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Subsystem: "cache",
			Name:      "capacity",
			Help:      "Maximum entries the cache backend holds, 0 when unbounded.",
		}, func() float64 { return float64(stats().Capacity) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: c.namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries evicted to make room for new ones.",
		}, func() float64 { return float64(stats().Evictions) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
