package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/compute"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/config"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/graph"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/telemetry"
)

// Metadata keys the pipeline reads from the service record.
const (
	metaSharedInfra        = "shared_infrastructure"
	metaDeploysPerWeek     = "deploys_per_week"
	metaTrafficSeasonality = "traffic_seasonality"
)

// depFetchConcurrency bounds parallel telemetry fetches for one service's
// dependencies.
const depFetchConcurrency = 8

// RecommendationService runs the recommendation pipeline: telemetry windows,
// dependency-bounded composite availability, tier derivation, bootstrap
// confidence intervals, attribution, and persistence.
type RecommendationService struct {
	stores    *store.Stores
	telemetry telemetry.Provider
	cfg       config.RecommendationConfig
	clock     store.Clock
}

// NewRecommendationService creates a new RecommendationService.
func NewRecommendationService(stores *store.Stores, provider telemetry.Provider, cfg config.RecommendationConfig, clock store.Clock) *RecommendationService {
	if stores == nil {
		panic("NewRecommendationService: stores must not be nil")
	}
	if provider == nil {
		panic("NewRecommendationService: telemetry provider must not be nil")
	}
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &RecommendationService{stores: stores, telemetry: provider, cfg: cfg, clock: clock}
}

// Recommend computes and persists fresh recommendations for one service.
// Availability and latency are computed independently: one SLI type failing
// for lack of data does not block the other. The error return is non-nil only
// when nothing could be computed at all.
func (s *RecommendationService) Recommend(ctx context.Context, serviceID string) (*models.RecommendationSet, error) {
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

	inputs, err := s.gatherInputs(ctx, svc)
	if err != nil {
		return nil, err
	}

	set := &models.RecommendationSet{ServiceID: serviceID}
	var firstErr error

	availability, err := s.availabilityRecommendation(svc, inputs)
	switch {
	case err != nil:
		set.Notes = append(set.Notes, fmt.Sprintf("availability: %v", err))
		firstErr = err
	default:
		set.Recommendations = append(set.Recommendations, availability)
	}

	latency, err := s.latencyRecommendation(svc, inputs)
	switch {
	case err != nil:
		set.Notes = append(set.Notes, fmt.Sprintf("latency: %v", err))
		if firstErr == nil {
			firstErr = err
		}
	default:
		set.Recommendations = append(set.Recommendations, latency)
	}

	if len(set.Recommendations) == 0 {
		return nil, fmt.Errorf("no recommendation computable for %s: %w", serviceID, firstErr)
	}

	for _, rec := range set.Recommendations {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("computed recommendation for %s is invalid: %w", serviceID, err)
		}
		if err := s.stores.Recommendations.Save(ctx, rec); err != nil {
			return nil, storageErr("save recommendation", err)
		}
	}

	slog.Info("Recommendations generated",
		"service_id", serviceID,
		"sli_types", len(set.Recommendations),
		"lookback_days", inputs.window.Days(),
		"composite", inputs.composite.Composite)
	return set, nil
}

// pipelineInputs is everything gathered before tier derivation starts.
type pipelineInputs struct {
	now           time.Time
	window        models.Window
	completeness  float64
	coldStart     bool
	lowConfidence bool
	gaps          []string

	availability *models.AvailabilitySLI
	latency      *models.LatencySLI
	rolling      models.RollingSeries

	traversal   graph.TraversalResult
	sccs        [][]string
	composite   compute.CompositeResult
	minExternal float64
	hasExternal bool
}

// gatherInputs runs the telemetry and graph phases of the pipeline. Dependency
// availabilities are fetched concurrently.
func (s *RecommendationService) gatherInputs(ctx context.Context, svc *models.Service) (*pipelineInputs, error) {
	now := s.clock.Now()
	in := &pipelineInputs{now: now}

	// Window selection: extend the lookback when the default window is too
	// incomplete, and flag the result as cold start if even the extended
	// window stays below the threshold.
	in.window = models.Window{Start: now.AddDate(0, 0, -s.cfg.LookbackDefaultDays), End: now}
	completeness, err := s.telemetry.DataCompleteness(ctx, svc.ServiceID, in.window)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTelemetryUnavailable, err)
	}
	if completeness < s.cfg.CompletenessThreshold {
		extended := models.Window{Start: now.AddDate(0, 0, -s.cfg.LookbackExtendedDays), End: now}
		extCompleteness, err := s.telemetry.DataCompleteness(ctx, svc.ServiceID, extended)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTelemetryUnavailable, err)
		}
		in.window = extended
		completeness = extCompleteness
		in.coldStart = true
		in.gaps = append(in.gaps, fmt.Sprintf(
			"default %d-day window below completeness threshold, extended to %d days",
			s.cfg.LookbackDefaultDays, s.cfg.LookbackExtendedDays))
	}
	in.completeness = completeness
	// Cold start marks any extended window; low confidence only the ones
	// whose history stays sparse even after extension.
	in.lowConfidence = completeness < s.cfg.CompletenessThreshold

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sli, err := s.telemetry.AvailabilitySLI(groupCtx, svc.ServiceID, in.window)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTelemetryUnavailable, err)
		}
		in.availability = sli
		return nil
	})
	group.Go(func() error {
		sli, err := s.telemetry.LatencyPercentiles(groupCtx, svc.ServiceID, in.window)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTelemetryUnavailable, err)
		}
		in.latency = sli
		return nil
	})
	group.Go(func() error {
		rollingDays := int(s.cfg.RollingBucket / (24 * time.Hour))
		if rollingDays < 1 {
			rollingDays = 1
		}
		series, err := s.telemetry.RollingAvailability(groupCtx, svc.ServiceID, in.window, rollingDays)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTelemetryUnavailable, err)
		}
		in.rolling = series
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	edges, err := s.stores.Dependencies.ListAll(ctx, false)
	if err != nil {
		return nil, storageErr("load edges", err)
	}
	snapshot := graph.NewSnapshot(edges, false)
	in.traversal = snapshot.Traverse(svc.ServiceID, models.DirectionDownstream, s.cfg.SubgraphDepth)

	subSnapshot := graph.NewSnapshot(in.traversal.Edges, false)
	in.sccs = subSnapshot.SCCs()

	// The serial product runs over the transitive hard-sync chain, not just
	// the first hop: a flaky service three hops down bounds this one all the
	// same. Soft edges stay first-hop only; they are reported, not multiplied.
	chain := snapshot.HardSyncClosure(svc.ServiceID, s.cfg.SubgraphDepth)
	for _, edge := range snapshot.Outgoing(svc.ServiceID) {
		if !edge.IsHardSync() {
			chain = append(chain, edge)
		}
	}
	deps, err := s.dependencyAvailabilities(ctx, chain, in)
	if err != nil {
		return nil, err
	}

	selfAvailability := 1.0
	switch {
	case in.availability != nil:
		selfAvailability = in.availability.AvailabilityRatio
	case len(in.rolling) > 0:
		selfAvailability = meanOf(in.rolling.Values())
	}
	in.composite = compute.CompositeAvailability(selfAvailability, deps, in.sccs)
	return in, nil
}

// dependencyAvailabilities resolves the availability of every effective
// dependency in the chain, fetching telemetry concurrently.
func (s *RecommendationService) dependencyAvailabilities(ctx context.Context, chain []*models.DependencyEdge, in *pipelineInputs) ([]compute.DependencyAvailability, error) {
	deps := make([]compute.DependencyAvailability, len(chain))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(depFetchConcurrency)
	for i, edge := range chain {
		group.Go(func() error {
			dep := compute.DependencyAvailability{
				ServiceID:       edge.TargetID,
				HardSync:        edge.IsHardSync(),
				RedundancyGroup: edge.RedundancyGroup,
			}

			target, err := s.stores.Services.GetByServiceID(groupCtx, edge.TargetID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return storageErr("load dependency service", err)
			}

			sli, err := s.telemetry.AvailabilitySLI(groupCtx, edge.TargetID, in.window)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrTelemetryUnavailable, err)
			}
			var observed *float64
			if sli != nil {
				observed = &sli.AvailabilityRatio
			}

			var note string
			if target != nil && target.ServiceType == models.ServiceTypeExternal {
				dep.Availability = compute.EffectiveExternalAvailability(
					observed, target.PublishedSLA, s.cfg.ExternalBufferK, s.cfg.DepDefaultAvailability)
				mu.Lock()
				in.hasExternal = true
				if in.minExternal == 0 || dep.Availability < in.minExternal {
					in.minExternal = dep.Availability
				}
				mu.Unlock()
			} else if observed != nil {
				dep.Availability = *observed
			} else {
				dep.Availability = s.cfg.DepDefaultAvailability
				note = fmt.Sprintf("dependency %s has no telemetry, assumed %.4f",
					edge.TargetID, s.cfg.DepDefaultAvailability)
			}

			mu.Lock()
			deps[i] = dep
			if note != "" {
				in.gaps = append(in.gaps, note)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(in.gaps)
	return deps, nil
}

// availabilityRecommendation derives the three availability tiers from the
// rolling series and the composite bound.
func (s *RecommendationService) availabilityRecommendation(svc *models.Service, in *pipelineInputs) (*models.Recommendation, error) {
	if len(in.rolling) == 0 {
		return nil, fmt.Errorf("%w: no rolling availability series", ErrInsufficientData)
	}
	series := in.rolling.Values()
	targets := compute.AvailabilityTiers(series, in.composite.Composite)

	rng := compute.NewRand(s.seedFor(svc.ServiceID, models.SLIAvailability))
	quantiles := map[models.TierName]float64{
		models.TierConservative: 0.001,
		models.TierBalanced:     0.01,
		models.TierAggressive:   0.05,
	}

	tiers := make(map[models.TierName]models.Tier, 3)
	for _, entry := range []struct {
		name   models.TierName
		target float64
		capped bool
	}{
		{models.TierConservative, targets.Conservative, targets.ConservativeCapped},
		{models.TierBalanced, targets.Balanced, targets.BalancedCapped},
		{models.TierAggressive, targets.Aggressive, false},
	} {
		q := quantiles[entry.name]
		ci := compute.Bootstrap(series, s.cfg.BootstrapResamples, rng, func(values []float64) float64 {
			return compute.PercentileOf(values, q)
		})
		budget := models.ErrorBudgetMinutes(entry.target * 100)
		tiers[entry.name] = models.Tier{
			Target:               entry.target * 100,
			BreachProbability:    compute.BreachProbability(series, entry.target),
			ConfidenceLower:      ci.Lower * 100,
			ConfidenceUpper:      ci.Upper * 100,
			ErrorBudgetMinutes:   &budget,
			CappedByDependencies: entry.capped,
		}
	}

	attribution, err := compute.Attribute(compute.AvailabilityWeights(), s.availabilityInputs(svc, in))
	if err != nil {
		return nil, err
	}

	impact := in.composite
	rec := &models.Recommendation{
		ServiceID: svc.ServiceID,
		SLIType:   models.SLIAvailability,
		Metric:    "good_request_ratio",
		Tiers:     tiers,
		Explanation: models.Explanation{
			Summary:     availabilitySummary(svc.ServiceID, tiers, &impact),
			Attribution: attribution,
			DependencyImpact: &models.DependencyImpact{
				CompositeAvailability: impact.Composite,
				HardDependencies:      impact.HardCount,
				SoftDependencies:      impact.SoftCount,
				Bottleneck:            impact.Bottleneck,
				BottleneckDelta:       impact.BottleneckDelta,
			},
		},
		DataQuality:         s.dataQuality(in),
		LookbackWindowStart: in.window.Start,
		LookbackWindowEnd:   in.window.End,
		GeneratedAt:         in.now,
		ExpiresAt:           in.now.Add(s.cfg.TTL),
		Status:              models.StatusActive,
	}
	return rec, nil
}

// latencyRecommendation derives the three latency tiers from observed
// percentiles with noise-margin headroom.
func (s *RecommendationService) latencyRecommendation(svc *models.Service, in *pipelineInputs) (*models.Recommendation, error) {
	if in.latency == nil {
		return nil, fmt.Errorf("%w: no latency percentiles", ErrInsufficientData)
	}

	noiseMargin := s.cfg.NoiseMarginDefault
	if sharedInfrastructure(svc) {
		noiseMargin = s.cfg.NoiseMarginShared
	}
	targets := compute.LatencyTiers(in.latency, noiseMargin)

	// No per-bucket latency distribution exists to resample, so intervals are
	// degenerate. Breach probabilities fall back to the availability rolling
	// series: the share of buckets below the series' own value at the tier's
	// tail position. Without any series they are 0 and the gap is noted.
	series := in.rolling.Values()
	tiers := map[models.TierName]models.Tier{
		models.TierConservative: latencyTier(targets.Conservative, latencyBreach(series, 0.001), noiseMargin),
		models.TierBalanced:     latencyTier(targets.Balanced, latencyBreach(series, 0.01), noiseMargin),
		models.TierAggressive:   latencyTier(targets.Aggressive, latencyBreach(series, 0.05), 0),
	}

	attribution, err := compute.Attribute(compute.LatencyWeights(), s.latencyInputs(svc, in))
	if err != nil {
		return nil, err
	}

	quality := s.dataQuality(in)
	if len(series) == 0 {
		quality.Gaps = append(append([]string(nil), quality.Gaps...),
			"no rolling availability series to estimate latency breach probabilities, reported as 0")
	}

	rec := &models.Recommendation{
		ServiceID: svc.ServiceID,
		SLIType:   models.SLILatency,
		Metric:    "request_latency_ms",
		Tiers:     tiers,
		Explanation: models.Explanation{
			Summary: fmt.Sprintf(
				"Latency targets for %s derived from observed p95/p99/p99.9 of %.0f/%.0f/%.0f ms with %.0f%% headroom on the stricter tiers.",
				svc.ServiceID, in.latency.P95MS, in.latency.P99MS, in.latency.P999MS, noiseMargin*100),
			Attribution: attribution,
		},
		DataQuality:         quality,
		LookbackWindowStart: in.window.Start,
		LookbackWindowEnd:   in.window.End,
		GeneratedAt:         in.now,
		ExpiresAt:           in.now.Add(s.cfg.TTL),
		Status:              models.StatusActive,
	}
	return rec, nil
}

// latencyBreach estimates a latency tier's breach probability from the
// availability rolling series: the fraction of buckets strictly below the
// series value at the tier's tail position. An empty series yields 0.
func latencyBreach(series []float64, tail float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return compute.BreachProbability(series, compute.PercentileOf(series, tail))
}

func latencyTier(target, breach, noiseMargin float64) models.Tier {
	return models.Tier{
		Target:             target,
		BreachProbability:  breach,
		ConfidenceLower:    target,
		ConfidenceUpper:    target,
		NoiseMarginApplied: noiseMargin,
	}
}

func (s *RecommendationService) availabilityInputs(svc *models.Service, in *pipelineInputs) map[string]float64 {
	downstreamRisk := 0.0
	if in.composite.Self > 0 {
		downstreamRisk = 1 - in.composite.Composite/in.composite.Self
	}
	externalReliability := 0.0
	if in.hasExternal {
		externalReliability = 1 - in.minExternal
	}
	return map[string]float64{
		compute.FeatureHistoricalAvailability: in.composite.Self,
		compute.FeatureDownstreamRisk:         downstreamRisk,
		compute.FeatureExternalReliability:    externalReliability,
		compute.FeatureDeploymentFreq:         clamp01(metaFloat(svc, metaDeploysPerWeek) / 10),
	}
}

func (s *RecommendationService) latencyInputs(svc *models.Service, in *pipelineInputs) map[string]float64 {
	noisy := 0.0
	if sharedInfrastructure(svc) {
		noisy = 1.0
	}
	return map[string]float64{
		compute.FeatureP99Historical:      in.latency.P99MS,
		compute.FeatureCallChainDepth:     float64(in.traversal.ReachedDepth),
		compute.FeatureNoisyNeighbor:      noisy,
		compute.FeatureTrafficSeasonality: clamp01(metaFloat(svc, metaTrafficSeasonality)),
	}
}

func (s *RecommendationService) dataQuality(in *pipelineInputs) models.DataQuality {
	quality := models.DataQuality{
		Completeness:       in.completeness,
		Gaps:               in.gaps,
		IsColdStart:        in.coldStart,
		LookbackDaysActual: in.window.Days(),
	}
	if in.lowConfidence {
		quality.ConfidenceNote = "telemetry history is sparse even over the extended window; treat targets as provisional"
	}
	return quality
}

func (s *RecommendationService) seedFor(serviceID string, sliType models.SLIType) uint64 {
	h := fnv.New64a()
	h.Write([]byte(serviceID))
	h.Write([]byte("/"))
	h.Write([]byte(sliType))
	return s.cfg.BootstrapSeed ^ h.Sum64()
}

func availabilitySummary(serviceID string, tiers map[models.TierName]models.Tier, impact *compute.CompositeResult) string {
	balanced := tiers[models.TierBalanced]
	if balanced.CappedByDependencies {
		return fmt.Sprintf(
			"Availability targets for %s are bounded by the dependency chain: composite availability %.4f%% caps the balanced tier; the bottleneck is %s.",
			serviceID, impact.Composite*100, impact.Bottleneck)
	}
	return fmt.Sprintf(
		"Availability targets for %s follow its own observed floor: the balanced tier of %.4f%% sits at the 1st percentile of the rolling series.",
		serviceID, balanced.Target)
}

func sharedInfrastructure(svc *models.Service) bool {
	v, ok := svc.Metadata[metaSharedInfra]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func metaFloat(svc *models.Service, key string) float64 {
	switch v := svc.Metadata[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
