package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/compute"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/config"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/graph"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/telemetry"
)

// ImpactEntry is one upstream service affected by a proposed availability
// change.
type ImpactEntry struct {
	ServiceID          string   `json:"service_id"`
	CurrentComposite   float64  `json:"current_composite"`
	ProjectedComposite float64  `json:"projected_composite"`
	Delta              float64  `json:"delta"`
	ActiveSLOTarget    *float64 `json:"active_slo_target,omitempty"`
	SLOAtRisk          bool     `json:"slo_at_risk"`
}

// ImpactReport summarizes the upstream blast radius of changing one service's
// availability.
type ImpactReport struct {
	ServiceID               string        `json:"service_id"`
	ProposedAvailabilityPct float64       `json:"proposed_availability_pct"`
	UpstreamCount           int           `json:"upstream_count"`
	Entries                 []ImpactEntry `json:"entries"`
}

// ImpactService projects how a proposed availability change to one service
// ripples through the services that depend on it.
type ImpactService struct {
	stores    *store.Stores
	telemetry telemetry.Provider
	recCfg    config.RecommendationConfig
	graphCfg  config.GraphConfig
	clock     store.Clock
}

// NewImpactService creates a new ImpactService.
func NewImpactService(stores *store.Stores, provider telemetry.Provider, recCfg config.RecommendationConfig, graphCfg config.GraphConfig, clock store.Clock) *ImpactService {
	if stores == nil {
		panic("NewImpactService: stores must not be nil")
	}
	if provider == nil {
		panic("NewImpactService: telemetry provider must not be nil")
	}
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &ImpactService{stores: stores, telemetry: provider, recCfg: recCfg, graphCfg: graphCfg, clock: clock}
}

// Analyze recomputes the chain availability of every upstream service within
// the configured depth, once with current telemetry and once with the target
// service pinned to the proposed availability. Entries are sorted by the
// size of the degradation, worst first.
func (s *ImpactService) Analyze(ctx context.Context, serviceID string, proposedPct float64) (*ImpactReport, error) {
	if serviceID == "" {
		return nil, NewValidationError("service_id", "service_id is required")
	}
	if proposedPct <= 0 || proposedPct > 100 {
		return nil, NewValidationError("proposed_availability", "must be in (0, 100] percent")
	}
	if _, err := s.stores.Services.GetByServiceID(ctx, serviceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("service %s: %w", serviceID, ErrNotFound)
		}
		return nil, storageErr("get service", err)
	}

	edges, err := s.stores.Dependencies.ListAll(ctx, false)
	if err != nil {
		return nil, storageErr("load edges", err)
	}
	snapshot := graph.NewSnapshot(edges, false)
	upstream := snapshot.Traverse(serviceID, models.DirectionUpstream, s.graphCfg.ImpactMaxDepth)

	report := &ImpactReport{
		ServiceID:               serviceID,
		ProposedAvailabilityPct: proposedPct,
	}

	observed := make(map[string]float64)
	for _, id := range upstream.NodeIDs {
		avail, err := s.observedAvailability(ctx, id)
		if err != nil {
			return nil, err
		}
		observed[id] = avail
	}
	// Chain availability also needs the downstream closure of every upstream
	// node; resolve lazily with the default for services we never fetched.
	lookup := func(ctx context.Context, id string) (float64, error) {
		if avail, ok := observed[id]; ok {
			return avail, nil
		}
		avail, err := s.observedAvailability(ctx, id)
		if err != nil {
			return 0, err
		}
		observed[id] = avail
		return avail, nil
	}

	proposed := proposedPct / 100
	for _, id := range upstream.NodeIDs {
		if id == serviceID {
			continue
		}

		current, err := s.chainAvailability(ctx, snapshot, id, nil, lookup)
		if err != nil {
			return nil, err
		}
		projected, err := s.chainAvailability(ctx, snapshot, id,
			map[string]float64{serviceID: proposed}, lookup)
		if err != nil {
			return nil, err
		}

		entry := ImpactEntry{
			ServiceID:          id,
			CurrentComposite:   current,
			ProjectedComposite: projected,
			Delta:              current - projected,
		}

		slo, err := s.stores.ActiveSLOs.Get(ctx, id, models.SLIAvailability)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, storageErr("load active SLO", err)
		}
		if slo != nil {
			target := slo.Target
			entry.ActiveSLOTarget = &target
			entry.SLOAtRisk = target/100 > projected
		}
		report.Entries = append(report.Entries, entry)
	}

	sort.Slice(report.Entries, func(i, j int) bool {
		if report.Entries[i].Delta != report.Entries[j].Delta {
			return report.Entries[i].Delta > report.Entries[j].Delta
		}
		return report.Entries[i].ServiceID < report.Entries[j].ServiceID
	})
	report.UpstreamCount = len(report.Entries)
	return report, nil
}

// chainAvailability is the recursive serial product over hard-sync edges:
// self availability times the chain availability of every dependency.
// overrides pin specific services to hypothetical values; visiting breaks
// cycles by contributing a neutral factor on re-entry.
func (s *ImpactService) chainAvailability(ctx context.Context, snapshot *graph.Snapshot, id string, overrides map[string]float64, lookup func(context.Context, string) (float64, error)) (float64, error) {
	return s.chainAvailabilityRec(ctx, snapshot, id, overrides, lookup, make(map[string]bool))
}

func (s *ImpactService) chainAvailabilityRec(ctx context.Context, snapshot *graph.Snapshot, id string, overrides map[string]float64, lookup func(context.Context, string) (float64, error), visiting map[string]bool) (float64, error) {
	if v, ok := overrides[id]; ok {
		return v, nil
	}
	if visiting[id] {
		return 1.0, nil
	}
	visiting[id] = true
	defer delete(visiting, id)

	avail, err := lookup(ctx, id)
	if err != nil {
		return 0, err
	}
	for _, edge := range snapshot.Outgoing(id) {
		if !edge.IsHardSync() {
			continue
		}
		depAvail, err := s.chainAvailabilityRec(ctx, snapshot, edge.TargetID, overrides, lookup, visiting)
		if err != nil {
			return 0, err
		}
		avail *= depAvail
	}
	return avail, nil
}

// observedAvailability resolves one service's standalone availability from
// telemetry, falling back to published SLAs for externals and the configured
// default otherwise.
func (s *ImpactService) observedAvailability(ctx context.Context, id string) (float64, error) {
	now := s.clock.Now()
	window := models.Window{Start: now.AddDate(0, 0, -s.recCfg.LookbackDefaultDays), End: now}

	sli, err := s.telemetry.AvailabilitySLI(ctx, id, window)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTelemetryUnavailable, err)
	}
	if sli != nil {
		return sli.AvailabilityRatio, nil
	}

	svc, err := s.stores.Services.GetByServiceID(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, storageErr("load service", err)
	}
	if svc != nil && svc.ServiceType == models.ServiceTypeExternal {
		return compute.EffectiveExternalAvailability(
			nil, svc.PublishedSLA, s.recCfg.ExternalBufferK, s.recCfg.DepDefaultAvailability), nil
	}
	return s.recCfg.DepDefaultAvailability, nil
}
