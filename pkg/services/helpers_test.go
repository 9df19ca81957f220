package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/config"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store/memory"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/telemetry"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// testEnv bundles the fakes every service test needs.
type testEnv struct {
	mem      *memory.Store
	stores   *store.Stores
	provider *telemetry.Static
	clock    fixedClock
	cfg      *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := memory.New()
	return &testEnv{
		mem:      mem,
		stores:   mem.Stores(),
		provider: telemetry.NewStatic(),
		clock:    fixedClock{now: testNow},
		cfg:      config.DefaultConfig(),
	}
}

func (e *testEnv) seedService(t *testing.T, svc *models.Service) {
	t.Helper()
	if svc.Criticality == "" {
		svc.Criticality = models.CriticalityMedium
	}
	if svc.ServiceType == "" {
		svc.ServiceType = models.ServiceTypeInternal
	}
	_, err := e.stores.Services.UpsertMany(context.Background(), []*models.Service{svc})
	require.NoError(t, err)
}

func (e *testEnv) seedEdge(t *testing.T, source, target string, mutate ...func(*models.DependencyEdge)) {
	t.Helper()
	edge := &models.DependencyEdge{
		SourceID:          source,
		TargetID:          target,
		CommunicationMode: models.CommunicationSync,
		Criticality:       models.EdgeHard,
		DiscoverySource:   models.SourceManual,
		ConfidenceScore:   1.0,
		LastObservedAt:    testNow,
	}
	for _, m := range mutate {
		m(edge)
	}
	_, err := e.stores.Dependencies.UpsertMany(context.Background(), []*models.DependencyEdge{edge})
	require.NoError(t, err)
}

// availOf builds an availability fixture with an exact ratio (good/total over
// one million events).
func availOf(t *testing.T, ratio float64) *models.AvailabilitySLI {
	t.Helper()
	const total = 1_000_000
	good := int64(ratio*total + 0.5)
	window := models.Window{Start: testNow.AddDate(0, 0, -30), End: testNow}
	sli, err := models.NewAvailabilitySLI(good, total, window, 30)
	require.NoError(t, err)
	return sli
}

func latencyOf(t *testing.T, p50, p95, p99, p999 float64) *models.LatencySLI {
	t.Helper()
	sli := &models.LatencySLI{
		P50MS:       p50,
		P95MS:       p95,
		P99MS:       p99,
		P999MS:      p999,
		Window:      models.Window{Start: testNow.AddDate(0, 0, -30), End: testNow},
		SampleCount: 100_000,
	}
	require.NoError(t, sli.Validate())
	return sli
}

func constantSeries(value float64, n int) models.RollingSeries {
	series := make(models.RollingSeries, n)
	start := testNow.AddDate(0, 0, -n)
	for i := range series {
		series[i] = models.RollingPoint{Bucket: start.AddDate(0, 0, i), Value: value}
	}
	return series
}

func floatPtr(v float64) *float64 { return &v }

func findRecommendation(t *testing.T, set *models.RecommendationSet, sliType models.SLIType) *models.Recommendation {
	t.Helper()
	for _, rec := range set.Recommendations {
		if rec.SLIType == sliType {
			return rec
		}
	}
	t.Fatalf("no %s recommendation in set for %s", sliType, set.ServiceID)
	return nil
}

func findContribution(t *testing.T, attribution []models.FeatureContribution, feature string) models.FeatureContribution {
	t.Helper()
	for _, c := range attribution {
		if c.Feature == feature {
			return c
		}
	}
	t.Fatalf("attribution has no feature %q", feature)
	return models.FeatureContribution{}
}
