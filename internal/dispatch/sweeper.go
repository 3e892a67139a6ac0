package dispatch

import (
	"context"
	"time"

	"herald/internal/config"
	"herald/internal/decision"
	"herald/internal/logger"
	"herald/pkg/clock"
	"herald/pkg/metrics"
)

// OverdueLister finds deferred deliveries whose release time has passed.
type OverdueLister interface {
	ListOverdue(ctx context.Context, before time.Time, limit int) ([]decision.DeliveryRecord, error)
}

// Requeuer enqueues a recovery release task. It reports false when nothing
// was enqueued because an identical task already exists.
type Requeuer interface {
	RequeueRelease(ctx context.Context, deliveryID string, deferrals int, at time.Time) (bool, error)
}

// Sweeper reconciles the delivery store with the task queue: a pending_retry
// record that is well past its release time lost its task (Redis flush,
// enqueue failure) and is enqueued again. The store is the source of truth.
type Sweeper struct {
	store    OverdueLister
	requeuer Requeuer
	cfg      config.SweepConfig
	clock    clock.Clock
	logger   logger.Logger
}

// NewSweeper uses the wall clock when clk is nil.
func NewSweeper(store OverdueLister, requeuer Requeuer, cfg config.SweepConfig, clk clock.Clock, log logger.Logger) *Sweeper {
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 300
	}
	if cfg.StaleThresholdSeconds <= 0 {
		cfg.StaleThresholdSeconds = 600
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Sweeper{store: store, requeuer: requeuer, cfg: cfg, clock: clk, logger: log}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfowCtx(ctx, "Sweeper started",
		"interval_seconds", s.cfg.IntervalSeconds,
		"stale_threshold_seconds", s.cfg.StaleThresholdSeconds,
		"batch_size", s.cfg.BatchSize,
	)

	ticker := time.NewTicker(time.Duration(s.cfg.IntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfowCtx(ctx, "Sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one cycle and returns how many deliveries were re-enqueued.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.clock.Now()
	before := now.Add(-time.Duration(s.cfg.StaleThresholdSeconds) * time.Second)

	overdue, err := s.store.ListOverdue(ctx, before, s.cfg.BatchSize)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Sweeper failed to list overdue deliveries", "error", err)
		return 0
	}
	if len(overdue) == 0 {
		return 0
	}

	s.logger.WarnwCtx(ctx, "Sweeper found overdue deliveries", "count", len(overdue))

	recovered := 0
	for _, rec := range overdue {
		enqueued, err := s.requeuer.RequeueRelease(ctx, rec.ID, rec.Deferrals, now)
		if err != nil {
			s.logger.ErrorwCtx(ctx, "Sweeper failed to re-enqueue delivery",
				"delivery_id", rec.ID,
				"error", err,
			)
			continue
		}
		if !enqueued {
			s.logger.WarnwCtx(ctx, "Sweeper found a recovery task already queued",
				"delivery_id", rec.ID,
				"deferrals", rec.Deferrals,
			)
			continue
		}
		recovered++
		metrics.IncDeferredRelease("recovered")
	}

	s.logger.InfowCtx(ctx, "Sweep complete", "recovered", recovered, "overdue", len(overdue))
	return recovered
}
