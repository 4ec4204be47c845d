package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/magus-names/magus/pkg/config"
)

// Pruner deletes history older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Retention prunes history on a cron schedule.
type Retention struct {
	pruner   Pruner
	schedule string
	days     int
	cron     *cron.Cron
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

// NewRetention creates a Retention for cfg. Nothing runs until Start.
func NewRetention(p Pruner, cfg config.StoreConfig, logger *zap.Logger) *Retention {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retention{
		pruner:   p,
		schedule: cfg.PruneSchedule,
		days:     cfg.RetentionDays,
		cron:     cron.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules pruning and stops it when ctx is done. An empty schedule or
// a non-positive retention disables pruning.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" || r.days <= 0 {
		r.logger.Info("history retention disabled")
		return nil
	}
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", r.schedule, err)
	}
	if _, err := r.cron.AddFunc(r.schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("scheduled prune failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule prune: %w", err)
	}
	r.cron.Start()
	r.running = true
	r.logger.Info("history retention started",
		zap.String("schedule", r.schedule),
		zap.Int("retention_days", r.days),
	)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// RunOnce prunes everything older than the retention window.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().AddDate(0, 0, -r.days)
	n, err := r.pruner.Prune(ctx, cutoff)
	if err != nil {
		return n, err
	}
	if n > 0 {
		r.logger.Info("pruned history", zap.Int64("rows", n), zap.Time("before", cutoff))
	}
	return n, nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
}

// Running reports whether pruning is scheduled.
func (r *Retention) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// NextRun returns the next scheduled prune, or the zero time.
func (r *Retention) NextRun() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
