package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/compute"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

func newRecommendationService(env *testEnv) *RecommendationService {
	return NewRecommendationService(env.stores, env.provider, env.cfg.Recommendation, env.clock)
}

func TestRecommendSerialChainComposite(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "checkout"})
	env.seedService(t, &models.Service{ServiceID: "payment"})
	env.seedService(t, &models.Service{ServiceID: "inventory"})
	env.seedEdge(t, "checkout", "payment")
	env.seedEdge(t, "checkout", "inventory")

	env.provider.Availability["checkout"] = availOf(t, 0.999)
	env.provider.Availability["payment"] = availOf(t, 0.9995)
	env.provider.Availability["inventory"] = availOf(t, 0.9999)
	env.provider.Rolling["checkout"] = constantSeries(0.998, 30)
	env.provider.Latency["checkout"] = latencyOf(t, 10, 100, 200, 400)

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "checkout")
	require.NoError(t, err)
	require.Len(t, set.Recommendations, 2)

	rec := findRecommendation(t, set, models.SLIAvailability)
	require.NotNil(t, rec.Explanation.DependencyImpact)
	impact := rec.Explanation.DependencyImpact
	assert.InDelta(t, 0.999*0.9995*0.9999, impact.CompositeAvailability, 1e-9)
	assert.Equal(t, 2, impact.HardDependencies)
	assert.Equal(t, 0, impact.SoftDependencies)
	assert.Equal(t, "payment", impact.Bottleneck)

	// The constant 99.8% floor sits below the composite bound, so no tier is
	// capped and all three land on the series percentile.
	balanced := rec.Tiers[models.TierBalanced]
	assert.InDelta(t, 99.8, balanced.Target, 1e-9)
	assert.False(t, balanced.CappedByDependencies)
	require.NotNil(t, balanced.ErrorBudgetMinutes)
	assert.InDelta(t, (1-0.998)*43200, *balanced.ErrorBudgetMinutes, 1e-6)
	assert.Zero(t, balanced.BreachProbability)

	assert.Equal(t, models.StatusActive, rec.Status)
	assert.Equal(t, testNow, rec.GeneratedAt)
	assert.Equal(t, testNow.Add(env.cfg.Recommendation.TTL), rec.ExpiresAt)
	assert.Contains(t, rec.Explanation.Summary, "own observed floor")
}

func TestRecommendTransitiveChainComposite(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "checkout"})
	env.seedService(t, &models.Service{ServiceID: "payment"})
	env.seedService(t, &models.Service{ServiceID: "ledger"})
	env.seedEdge(t, "checkout", "payment")
	env.seedEdge(t, "payment", "ledger")

	env.provider.Availability["checkout"] = availOf(t, 0.999)
	env.provider.Availability["payment"] = availOf(t, 0.9995)
	env.provider.Availability["ledger"] = availOf(t, 0.9999)
	env.provider.Rolling["checkout"] = constantSeries(0.9993, 30)

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "checkout")
	require.NoError(t, err)

	// A chain three services deep bounds the head by the full product; both
	// links count as hard dependencies even though only one is a direct edge.
	rec := findRecommendation(t, set, models.SLIAvailability)
	impact := rec.Explanation.DependencyImpact
	composite := 0.999 * 0.9995 * 0.9999
	assert.InDelta(t, composite, impact.CompositeAvailability, 1e-9)
	assert.Equal(t, 2, impact.HardDependencies)
	assert.Equal(t, "payment", impact.Bottleneck)

	balanced := rec.Tiers[models.TierBalanced]
	assert.True(t, balanced.CappedByDependencies)
	assert.InDelta(t, composite*100, balanced.Target, 1e-9)
}

func TestRecommendCappedByDependencies(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "checkout"})
	env.seedService(t, &models.Service{ServiceID: "flaky"})
	env.seedEdge(t, "checkout", "flaky")

	env.provider.Availability["checkout"] = availOf(t, 0.99995)
	env.provider.Availability["flaky"] = availOf(t, 0.995)
	env.provider.Rolling["checkout"] = constantSeries(0.99995, 30)
	env.provider.Latency["checkout"] = latencyOf(t, 10, 100, 200, 400)

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "checkout")
	require.NoError(t, err)

	rec := findRecommendation(t, set, models.SLIAvailability)
	composite := 0.99995 * 0.995

	conservative := rec.Tiers[models.TierConservative]
	balanced := rec.Tiers[models.TierBalanced]
	aggressive := rec.Tiers[models.TierAggressive]

	assert.True(t, conservative.CappedByDependencies)
	assert.True(t, balanced.CappedByDependencies)
	assert.False(t, aggressive.CappedByDependencies)
	assert.InDelta(t, composite*100, conservative.Target, 1e-9)
	assert.InDelta(t, composite*100, balanced.Target, 1e-9)
	assert.InDelta(t, 99.995, aggressive.Target, 1e-9)
	assert.Contains(t, rec.Explanation.Summary, "bounded by the dependency chain")
	assert.Equal(t, "flaky", rec.Explanation.DependencyImpact.Bottleneck)
}

func TestRecommendExternalPublishedSLABuffer(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "checkout"})
	env.seedService(t, &models.Service{
		ServiceID:    "vendor-pay",
		ServiceType:  models.ServiceTypeExternal,
		PublishedSLA: floatPtr(0.9999),
	})
	env.seedEdge(t, "checkout", "vendor-pay")

	env.provider.Availability["checkout"] = availOf(t, 1.0)
	env.provider.Rolling["checkout"] = constantSeries(0.999, 30)
	env.provider.Latency["checkout"] = latencyOf(t, 10, 100, 200, 400)

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "checkout")
	require.NoError(t, err)

	// A published 99.99% with no observation is buffered to 1 - 0.0001*11.
	rec := findRecommendation(t, set, models.SLIAvailability)
	assert.InDelta(t, 0.9989, rec.Explanation.DependencyImpact.CompositeAvailability, 1e-9)

	external := findContribution(t, rec.Explanation.Attribution, compute.FeatureExternalReliability)
	assert.InDelta(t, 1-0.9989, external.RawValue, 1e-9)
}

func TestRecommendRedundancyGroup(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "api"})
	env.seedService(t, &models.Service{ServiceID: "db-a"})
	env.seedService(t, &models.Service{ServiceID: "db-b"})
	env.seedEdge(t, "api", "db-a", func(e *models.DependencyEdge) { e.RedundancyGroup = "db" })
	env.seedEdge(t, "api", "db-b", func(e *models.DependencyEdge) { e.RedundancyGroup = "db" })

	env.provider.Availability["api"] = availOf(t, 1.0)
	env.provider.Availability["db-a"] = availOf(t, 0.99)
	env.provider.Availability["db-b"] = availOf(t, 0.99)
	env.provider.Rolling["api"] = constantSeries(0.999, 30)

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "api")
	require.NoError(t, err)

	// Replicas combine as 1 - (1-R)^2, not as a serial product.
	rec := findRecommendation(t, set, models.SLIAvailability)
	assert.InDelta(t, 1-0.01*0.01, rec.Explanation.DependencyImpact.CompositeAvailability, 1e-9)
}

func TestRecommendCycleCollapsesToSupernode(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"a", "b", "c"} {
		env.seedService(t, &models.Service{ServiceID: id})
	}
	env.seedEdge(t, "a", "b")
	env.seedEdge(t, "b", "c")
	env.seedEdge(t, "c", "b")

	env.provider.Availability["a"] = availOf(t, 1.0)
	env.provider.Availability["b"] = availOf(t, 0.99)
	env.provider.Availability["c"] = availOf(t, 0.995)
	env.provider.Rolling["a"] = constantSeries(0.98, 30)

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "a")
	require.NoError(t, err)

	rec := findRecommendation(t, set, models.SLIAvailability)
	assert.InDelta(t, 0.99, rec.Explanation.DependencyImpact.CompositeAvailability, 1e-9)
	assert.Equal(t, "cycle:b,c", rec.Explanation.DependencyImpact.Bottleneck)
}

func TestRecommendSoftDependenciesExcluded(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "web"})
	env.seedService(t, &models.Service{ServiceID: "cache"})
	env.seedEdge(t, "web", "cache", func(e *models.DependencyEdge) {
		e.Criticality = models.EdgeSoft
		e.CommunicationMode = models.CommunicationAsync
	})

	env.provider.Availability["web"] = availOf(t, 0.999)
	env.provider.Availability["cache"] = availOf(t, 0.9)
	env.provider.Rolling["web"] = constantSeries(0.998, 30)

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "web")
	require.NoError(t, err)

	rec := findRecommendation(t, set, models.SLIAvailability)
	impact := rec.Explanation.DependencyImpact
	assert.InDelta(t, 0.999, impact.CompositeAvailability, 1e-9)
	assert.Equal(t, 0, impact.HardDependencies)
	assert.Equal(t, 1, impact.SoftDependencies)
}

func TestRecommendDeterministicConfidenceIntervals(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "web"})

	series := make([]float64, 60)
	for i := range series {
		series[i] = 0.995 + 0.0001*float64(i%9)
	}
	env.provider.Availability["web"] = availOf(t, 0.999)
	env.provider.Rolling["web"] = func() models.RollingSeries {
		out := constantSeries(0, len(series))
		for i := range out {
			out[i].Value = series[i]
		}
		return out
	}()

	svc := newRecommendationService(env)
	first, err := svc.Recommend(context.Background(), "web")
	require.NoError(t, err)
	second, err := svc.Recommend(context.Background(), "web")
	require.NoError(t, err)

	a := findRecommendation(t, first, models.SLIAvailability)
	b := findRecommendation(t, second, models.SLIAvailability)
	for _, name := range []models.TierName{models.TierConservative, models.TierBalanced, models.TierAggressive} {
		assert.Equal(t, a.Tiers[name].ConfidenceLower, b.Tiers[name].ConfidenceLower, "tier %s lower", name)
		assert.Equal(t, a.Tiers[name].ConfidenceUpper, b.Tiers[name].ConfidenceUpper, "tier %s upper", name)
		assert.LessOrEqual(t, a.Tiers[name].ConfidenceLower, a.Tiers[name].ConfidenceUpper)
	}
}

func TestRecommendLatencyTiers(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "web"})
	env.provider.Latency["web"] = latencyOf(t, 10, 100, 200, 400)
	env.provider.Completeness["web"] = 1.0

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "web")
	require.NoError(t, err)
	require.Len(t, set.Recommendations, 1)

	rec := findRecommendation(t, set, models.SLILatency)
	assert.Equal(t, "request_latency_ms", rec.Metric)
	assert.InDelta(t, math.Ceil(400*1.05), rec.Tiers[models.TierConservative].Target, 1e-9)
	assert.InDelta(t, math.Ceil(200*1.05), rec.Tiers[models.TierBalanced].Target, 1e-9)
	assert.InDelta(t, 100, rec.Tiers[models.TierAggressive].Target, 1e-9)
	assert.InDelta(t, 0.05, rec.Tiers[models.TierBalanced].NoiseMarginApplied, 1e-9)
	assert.Zero(t, rec.Tiers[models.TierAggressive].NoiseMarginApplied)

	// No resampled distribution for latency: the interval is degenerate, and
	// with no availability series to proxy from, breach probability is 0 and
	// the gap is recorded.
	balanced := rec.Tiers[models.TierBalanced]
	assert.Equal(t, balanced.Target, balanced.ConfidenceLower)
	assert.Equal(t, balanced.Target, balanced.ConfidenceUpper)
	assert.Zero(t, balanced.BreachProbability)
	require.NotEmpty(t, rec.DataQuality.Gaps)
	assert.Contains(t, rec.DataQuality.Gaps[len(rec.DataQuality.Gaps)-1], "breach")

	// Availability was not computable, which is a note, not a failure.
	assert.NotEmpty(t, set.Notes)
}

func TestRecommendLatencyBreachFromAvailabilitySeries(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "web"})
	env.provider.Availability["web"] = availOf(t, 0.999)
	env.provider.Latency["web"] = latencyOf(t, 10, 100, 200, 400)

	series := constantSeries(0, 30)
	for i := range series {
		series[i].Value = 0.990 + 0.0003*float64(i)
	}
	env.provider.Rolling["web"] = series

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "web")
	require.NoError(t, err)

	// Latency breach likelihood is proxied by the availability series: the
	// share of buckets under the series' value at each tier's tail position.
	rec := findRecommendation(t, set, models.SLILatency)
	assert.InDelta(t, 2.0/30, rec.Tiers[models.TierAggressive].BreachProbability, 1e-9)
	assert.InDelta(t, 1.0/30, rec.Tiers[models.TierBalanced].BreachProbability, 1e-9)
	assert.Empty(t, rec.DataQuality.Gaps)
}

func TestRecommendLatencySharedInfrastructureMargin(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{
		ServiceID: "web",
		Metadata:  map[string]any{"shared_infrastructure": true},
	})
	env.provider.Latency["web"] = latencyOf(t, 10, 100, 200, 400)
	env.provider.Completeness["web"] = 1.0

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "web")
	require.NoError(t, err)

	rec := findRecommendation(t, set, models.SLILatency)
	assert.InDelta(t, math.Ceil(400*1.10), rec.Tiers[models.TierConservative].Target, 1e-9)
	assert.InDelta(t, math.Ceil(200*1.10), rec.Tiers[models.TierBalanced].Target, 1e-9)

	noisy := findContribution(t, rec.Explanation.Attribution, compute.FeatureNoisyNeighbor)
	assert.Equal(t, 1.0, noisy.RawValue)
}

func TestRecommendAttributionContract(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{
		ServiceID: "web",
		Metadata:  map[string]any{"deploys_per_week": 5},
	})
	env.provider.Availability["web"] = availOf(t, 0.999)
	env.provider.Rolling["web"] = constantSeries(0.998, 30)

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "web")
	require.NoError(t, err)

	rec := findRecommendation(t, set, models.SLIAvailability)
	require.Len(t, rec.Explanation.Attribution, 4)
	sum := 0.0
	for _, c := range rec.Explanation.Attribution {
		sum += c.Contribution
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	deploy := findContribution(t, rec.Explanation.Attribution, compute.FeatureDeploymentFreq)
	assert.InDelta(t, 0.5, deploy.RawValue, 1e-9)
}

func TestRecommendSupersedesPrevious(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "web"})
	env.provider.Availability["web"] = availOf(t, 0.999)
	env.provider.Rolling["web"] = constantSeries(0.998, 30)

	svc := newRecommendationService(env)
	first, err := svc.Recommend(context.Background(), "web")
	require.NoError(t, err)
	firstID := findRecommendation(t, first, models.SLIAvailability).ID

	_, err = svc.Recommend(context.Background(), "web")
	require.NoError(t, err)

	active, err := env.stores.Recommendations.GetActive(context.Background(), "web", nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.NotEqual(t, firstID, active[0].ID)

	old, err := env.stores.Recommendations.GetByID(context.Background(), firstID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuperseded, old.Status)
}

func TestRecommendInsufficientData(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "silent"})

	svc := newRecommendationService(env)
	_, err := svc.Recommend(context.Background(), "silent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestRecommendColdStartExtendsWindow(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "young"})
	env.provider.Availability["young"] = availOf(t, 0.999)
	env.provider.Rolling["young"] = constantSeries(0.998, 10)
	env.provider.Completeness["young"] = 0.5

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "young")
	require.NoError(t, err)

	rec := findRecommendation(t, set, models.SLIAvailability)
	assert.True(t, rec.DataQuality.IsColdStart)
	assert.Equal(t, env.cfg.Recommendation.LookbackExtendedDays, rec.DataQuality.LookbackDaysActual)
	assert.NotEmpty(t, rec.DataQuality.Gaps)
	assert.NotEmpty(t, rec.DataQuality.ConfidenceNote)
}

func TestRecommendColdStartFlagAfterRecovery(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "young"})
	env.provider.Availability["young"] = availOf(t, 0.999)
	env.provider.Rolling["young"] = constantSeries(0.998, 30)
	env.provider.CompletenessByDays["young"] = map[int]float64{
		env.cfg.Recommendation.LookbackDefaultDays:  0.33,
		env.cfg.Recommendation.LookbackExtendedDays: 0.95,
	}

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "young")
	require.NoError(t, err)

	// The extended window recovered past the threshold: the result still
	// carries the cold-start flag, but not the low-confidence note.
	rec := findRecommendation(t, set, models.SLIAvailability)
	assert.True(t, rec.DataQuality.IsColdStart)
	assert.Equal(t, env.cfg.Recommendation.LookbackExtendedDays, rec.DataQuality.LookbackDaysActual)
	assert.InDelta(t, 0.95, rec.DataQuality.Completeness, 1e-9)
	assert.Empty(t, rec.DataQuality.ConfidenceNote)
	assert.NotEmpty(t, rec.DataQuality.Gaps)
}

func TestRecommendDependencyWithoutTelemetryAssumesDefault(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "web"})
	env.seedService(t, &models.Service{ServiceID: "mystery"})
	env.seedEdge(t, "web", "mystery")

	env.provider.Availability["web"] = availOf(t, 1.0)
	env.provider.Rolling["web"] = constantSeries(0.998, 30)

	svc := newRecommendationService(env)
	set, err := svc.Recommend(context.Background(), "web")
	require.NoError(t, err)

	rec := findRecommendation(t, set, models.SLIAvailability)
	assert.InDelta(t, env.cfg.Recommendation.DepDefaultAvailability,
		rec.Explanation.DependencyImpact.CompositeAvailability, 1e-9)
	require.NotEmpty(t, rec.DataQuality.Gaps)
	assert.Contains(t, rec.DataQuality.Gaps[0], "mystery")
}

func TestRecommendUnknownService(t *testing.T) {
	env := newTestEnv(t)
	svc := newRecommendationService(env)

	_, err := svc.Recommend(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = svc.Recommend(context.Background(), "")
	assert.True(t, IsValidationError(err))
}
