package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/config"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/metrics"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
)

// Scheduler drives the periodic batch runs. Runs never overlap: the loop is a
// single goroutine that finishes one run before the next tick is considered.
type Scheduler struct {
	runner *Runner
	cfg    config.BatchConfig

	mu   sync.Mutex
	last *models.BatchResult

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a new batch Scheduler.
func NewScheduler(runner *Runner, cfg config.BatchConfig) *Scheduler {
	if runner == nil {
		panic("NewScheduler: runner must not be nil")
	}
	return &Scheduler{runner: runner, cfg: cfg}
}

// Start launches the background batch loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Batch scheduler started",
		"interval", s.cfg.Interval,
		"concurrency", s.cfg.Concurrency)
}

// Stop signals the loop to exit and waits for an in-flight run to finish, up
// to the configured shutdown timeout.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-s.done:
	case <-time.After(timeout):
		slog.Warn("Batch scheduler stop timed out with a run in flight")
	}
	slog.Info("Batch scheduler stopped")
}

// LastResult returns the most recent completed run, if any.
func (s *Scheduler) LastResult() *models.BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	copied := *s.last
	return &copied
}

// TriggerNow runs one batch immediately on the caller's goroutine, recording
// the result like a scheduled run.
func (s *Scheduler) TriggerNow(ctx context.Context) (*models.BatchResult, error) {
	return s.runOnce(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.runOnce(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Scheduled batch run failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) (*models.BatchResult, error) {
	result, err := s.runner.Run(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	slog.Info("Batch run completed",
		"total", result.Total,
		"successful", result.Successful,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration", result.Duration)
	return result, nil
}

// Sweeper periodically marks stale edges and expires overdue recommendations.
type Sweeper struct {
	stores *store.Stores
	cfg    config.GraphConfig
	clock  store.Clock

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a new maintenance Sweeper.
func NewSweeper(stores *store.Stores, cfg config.GraphConfig, clock store.Clock) *Sweeper {
	if stores == nil {
		panic("NewSweeper: stores must not be nil")
	}
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &Sweeper{stores: stores, cfg: cfg, clock: clock}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Maintenance sweeper started",
		"interval", s.cfg.SweepInterval,
		"stale_edge_threshold", s.cfg.StaleEdgeThreshold)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Maintenance sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs both sweeps. Failures are logged, never fatal: the next
// tick retries.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := s.clock.Now()

	marked, err := s.stores.Dependencies.MarkStaleOlderThan(ctx, now.Add(-s.cfg.StaleEdgeThreshold))
	if err != nil {
		slog.Error("Stale edge sweep failed", "error", err)
	} else if marked > 0 {
		metrics.StaleEdgesMarked.Add(float64(marked))
		slog.Info("Stale edge sweep marked edges", "count", marked)
	}

	expired, err := s.stores.Recommendations.ExpireStale(ctx, now)
	if err != nil {
		slog.Error("Recommendation expiry sweep failed", "error", err)
	} else if expired > 0 {
		slog.Info("Expiry sweep retired recommendations", "count", expired)
	}
}
