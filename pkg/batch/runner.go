// Package batch provides the periodic recomputation of recommendations for
// the whole fleet, plus the maintenance sweeps for stale edges and expired
// recommendations.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/config"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/services"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
)

const listPageSize = 200

// Recommender is the slice of the recommendation service the runner needs.
type Recommender interface {
	Recommend(ctx context.Context, serviceID string) (*models.RecommendationSet, error)
}

// Runner recomputes recommendations for every eligible service with bounded
// concurrency. Per-service failures are isolated: one service failing never
// aborts the run.
type Runner struct {
	stores      *store.Stores
	recommender Recommender
	cfg         config.BatchConfig
	clock       store.Clock
}

// NewRunner creates a new batch Runner.
func NewRunner(stores *store.Stores, recommender Recommender, cfg config.BatchConfig, clock store.Clock) *Runner {
	if stores == nil {
		panic("NewRunner: stores must not be nil")
	}
	if recommender == nil {
		panic("NewRunner: recommender must not be nil")
	}
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &Runner{stores: stores, recommender: recommender, cfg: cfg, clock: clock}
}

// Run executes one batch over every eligible service. Services without
// enough telemetry are counted as skipped; other failures are recorded per
// service. Cancelling ctx stops scheduling new services but lets in-flight
// ones finish.
func (r *Runner) Run(ctx context.Context) (*models.BatchResult, error) {
	started := r.clock.Now()
	wallStart := time.Now()

	eligible, err := r.eligibleServices(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.BatchResult{
		Total:     len(eligible),
		StartedAt: started,
	}
	var mu sync.Mutex

	group := &errgroup.Group{}
	group.SetLimit(r.cfg.Concurrency)
	for _, svc := range eligible {
		if ctx.Err() != nil {
			break
		}
		group.Go(func() error {
			_, err := r.recommender.Recommend(ctx, svc.ServiceID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Successful++
			case errors.Is(err, services.ErrInsufficientData):
				result.Skipped++
			default:
				result.Failed++
				result.Failures = append(result.Failures, models.BatchFailure{
					ServiceID: svc.ServiceID,
					Error:     err.Error(),
				})
			}
			return nil
		})
	}
	_ = group.Wait()

	result.Duration = time.Since(wallStart)
	return result, nil
}

// eligibleServices pages through the registry. Placeholder services are
// excluded unless the configuration opts them in.
func (r *Runner) eligibleServices(ctx context.Context) ([]*models.Service, error) {
	filters := models.ServiceFilters{}
	if !r.cfg.IncludeDiscovered {
		discovered := false
		filters.Discovered = &discovered
	}

	var all []*models.Service
	for skip := 0; ; skip += listPageSize {
		page, total, err := r.stores.Services.ListAll(ctx, skip, listPageSize, filters)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(all) >= total || len(page) == 0 {
			return all, nil
		}
	}
}
