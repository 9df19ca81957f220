package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/compute"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/config"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/graph"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/telemetry"
)

// consumptionPctCap keeps the per-dependency consumption representable when a
// 100% target leaves no budget to divide by.
const consumptionPctCap = 999999.99

// Risk bands for one dependency's share of the error budget.
const (
	BudgetRiskLow      = "low"
	BudgetRiskModerate = "moderate"
	BudgetRiskHigh     = "high"
)

// DependencyBudget is one hard-sync dependency's share of the error budget
// implied by a proposed availability target.
type DependencyBudget struct {
	ServiceID      string  `json:"service_id"`
	Availability   float64 `json:"availability"`
	ConsumptionPct float64 `json:"consumption_pct"`
	RiskBand       string  `json:"risk_band"`
}

// BudgetBreakdown attributes a proposed target's monthly error budget to the
// hard-sync dependencies that consume it.
type BudgetBreakdown struct {
	ServiceID          string             `json:"service_id"`
	TargetPct          float64            `json:"target_pct"`
	BudgetMinutes      float64            `json:"budget_minutes"`
	Dependencies       []DependencyBudget `json:"dependencies"`
	LookbackWindowDays int                `json:"lookback_window_days"`
}

// AchievabilityCheck reports whether a proposed target is achievable given
// the dependency chain.
type AchievabilityCheck struct {
	ServiceID               string  `json:"service_id"`
	TargetPct               float64 `json:"target_pct"`
	CompositeAvailability   float64 `json:"composite_availability"`
	Achievable              bool    `json:"achievable"`
	GapPct                  float64 `json:"gap_pct,omitempty"`
	HardDependencies        int     `json:"hard_dependencies"`
	RequiredPerComponentPct float64 `json:"required_per_component_pct"`
	Bottleneck              string  `json:"bottleneck,omitempty"`
	Reason                  string  `json:"reason,omitempty"`
}

// ConstraintService answers error-budget and achievability questions about
// proposed targets.
type ConstraintService struct {
	stores    *store.Stores
	telemetry telemetry.Provider
	cfg       config.RecommendationConfig
	clock     store.Clock
}

// NewConstraintService creates a new ConstraintService.
func NewConstraintService(stores *store.Stores, provider telemetry.Provider, cfg config.RecommendationConfig, clock store.Clock) *ConstraintService {
	if stores == nil {
		panic("NewConstraintService: stores must not be nil")
	}
	if provider == nil {
		panic("NewConstraintService: telemetry provider must not be nil")
	}
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &ConstraintService{stores: stores, telemetry: provider, cfg: cfg, clock: clock}
}

// Budget computes the monthly error budget for a proposed availability target
// and attributes it per hard-sync dependency: each dependency d with
// availability a_d consumes (1 - a_d) / (1 - target/100) of the budget. A
// 100% target has zero budget; consumption is then clamped to the sentinel
// rather than reported as infinite.
func (s *ConstraintService) Budget(ctx context.Context, serviceID string, targetPct float64) (*BudgetBreakdown, error) {
	if err := s.checkTarget(targetPct); err != nil {
		return nil, err
	}
	if _, err := s.getService(ctx, serviceID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	window := models.Window{Start: now.AddDate(0, 0, -s.cfg.LookbackDefaultDays), End: now}

	edges, err := s.stores.Dependencies.ListAll(ctx, false)
	if err != nil {
		return nil, storageErr("load edges", err)
	}
	chain := graph.NewSnapshot(edges, false).HardSyncClosure(serviceID, s.cfg.SubgraphDepth)

	breakdown := &BudgetBreakdown{
		ServiceID:          serviceID,
		TargetPct:          targetPct,
		BudgetMinutes:      models.ErrorBudgetMinutes(targetPct),
		LookbackWindowDays: window.Days(),
	}

	budgetFraction := 1 - targetPct/100
	for _, edge := range chain {
		avail, err := s.dependencyAvailability(ctx, edge.TargetID, window)
		if err != nil {
			return nil, err
		}
		entry := DependencyBudget{ServiceID: edge.TargetID, Availability: avail}
		if budgetFraction > 0 {
			entry.ConsumptionPct = (1 - avail) / budgetFraction * 100
		} else if avail < 1 {
			entry.ConsumptionPct = consumptionPctCap
		}
		if entry.ConsumptionPct > consumptionPctCap {
			entry.ConsumptionPct = consumptionPctCap
		}
		switch {
		case entry.ConsumptionPct > 30:
			entry.RiskBand = BudgetRiskHigh
		case entry.ConsumptionPct >= 20:
			entry.RiskBand = BudgetRiskModerate
		default:
			entry.RiskBand = BudgetRiskLow
		}
		breakdown.Dependencies = append(breakdown.Dependencies, entry)
	}
	return breakdown, nil
}

// CheckAchievable reports whether a proposed availability target can be met
// under the current dependency chain. A target above the composite bound is
// unachievable; the required per-component availability follows the 10x
// rule: each of the n serial components plus the service itself must deliver
// roughly 1 - (1 - target) / (n + 1).
func (s *ConstraintService) CheckAchievable(ctx context.Context, serviceID string, targetPct float64) (*AchievabilityCheck, error) {
	if err := s.checkTarget(targetPct); err != nil {
		return nil, err
	}
	if _, err := s.getService(ctx, serviceID); err != nil {
		return nil, err
	}

	composite, err := s.compositeFor(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	target := targetPct / 100
	n := composite.HardCount
	required := 1 - (1-target)/float64(n+1)

	check := &AchievabilityCheck{
		ServiceID:               serviceID,
		TargetPct:               targetPct,
		CompositeAvailability:   composite.Composite,
		Achievable:              target <= composite.Composite,
		HardDependencies:        n,
		RequiredPerComponentPct: required * 100,
		Bottleneck:              composite.Bottleneck,
	}
	if !check.Achievable {
		check.GapPct = targetPct - composite.Composite*100
		check.Reason = fmt.Sprintf(
			"target %.4f%% exceeds the composite dependency bound of %.4f%% by %.4f points; each of the %d serial components would need >= %.4f%%",
			targetPct, composite.Composite*100, check.GapPct, n+1, check.RequiredPerComponentPct)
	}
	return check, nil
}

func (s *ConstraintService) checkTarget(targetPct float64) error {
	if targetPct <= 0 || targetPct > 100 {
		return NewValidationError("target", "availability target must be in (0, 100] percent")
	}
	return nil
}

func (s *ConstraintService) getService(ctx context.Context, serviceID string) (*models.Service, error) {
	if serviceID == "" {
		return nil, NewValidationError("service_id", "service_id is required")
	}
	svc, err := s.stores.Services.GetByServiceID(ctx, serviceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("service %s: %w", serviceID, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get service", err)
	}
	return svc, nil
}

// dependencyAvailability resolves one dependency's availability from live
// telemetry: external services get the published-SLA buffer, silent internal
// services the configured default.
func (s *ConstraintService) dependencyAvailability(ctx context.Context, id string, window models.Window) (float64, error) {
	target, err := s.stores.Services.GetByServiceID(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, storageErr("load dependency service", err)
	}
	sli, err := s.telemetry.AvailabilitySLI(ctx, id, window)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTelemetryUnavailable, err)
	}
	var observed *float64
	if sli != nil {
		observed = &sli.AvailabilityRatio
	}
	if target != nil && target.ServiceType == models.ServiceTypeExternal {
		return compute.EffectiveExternalAvailability(
			observed, target.PublishedSLA, s.cfg.ExternalBufferK, s.cfg.DepDefaultAvailability), nil
	}
	if observed != nil {
		return *observed, nil
	}
	return s.cfg.DepDefaultAvailability, nil
}

// compositeFor computes the current composite availability bound for a
// service from live telemetry and the merged graph. The serial product runs
// over the transitive hard-sync chain within the configured depth; soft
// edges stay first-hop only.
func (s *ConstraintService) compositeFor(ctx context.Context, serviceID string) (*compute.CompositeResult, error) {
	now := s.clock.Now()
	window := models.Window{Start: now.AddDate(0, 0, -s.cfg.LookbackDefaultDays), End: now}

	edges, err := s.stores.Dependencies.ListAll(ctx, false)
	if err != nil {
		return nil, storageErr("load edges", err)
	}
	snapshot := graph.NewSnapshot(edges, false)
	traversal := snapshot.Traverse(serviceID, models.DirectionDownstream, s.cfg.SubgraphDepth)
	sccs := graph.NewSnapshot(traversal.Edges, false).SCCs()

	self := 1.0
	if sli, err := s.telemetry.AvailabilitySLI(ctx, serviceID, window); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTelemetryUnavailable, err)
	} else if sli != nil {
		self = sli.AvailabilityRatio
	}

	chain := snapshot.HardSyncClosure(serviceID, s.cfg.SubgraphDepth)
	for _, edge := range snapshot.Outgoing(serviceID) {
		if !edge.IsHardSync() {
			chain = append(chain, edge)
		}
	}

	var deps []compute.DependencyAvailability
	for _, edge := range chain {
		avail, err := s.dependencyAvailability(ctx, edge.TargetID, window)
		if err != nil {
			return nil, err
		}
		deps = append(deps, compute.DependencyAvailability{
			ServiceID:       edge.TargetID,
			Availability:    avail,
			HardSync:        edge.IsHardSync(),
			RedundancyGroup: edge.RedundancyGroup,
		})
	}

	result := compute.CompositeAvailability(self, deps, sccs)
	return &result, nil
}
