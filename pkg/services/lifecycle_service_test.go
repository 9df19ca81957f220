package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

func newLifecycleService(env *testEnv) *LifecycleService {
	return NewLifecycleService(env.mem, env.stores, env.clock)
}

func (e *testEnv) seedRecommendation(t *testing.T, serviceID string, sliType models.SLIType, expiresAt time.Time) *models.Recommendation {
	t.Helper()
	budget := models.ErrorBudgetMinutes(99.9)
	rec := &models.Recommendation{
		ServiceID: serviceID,
		SLIType:   sliType,
		Metric:    "good_request_ratio",
		Tiers: map[models.TierName]models.Tier{
			models.TierConservative: {Target: 99.5, BreachProbability: 0.001, ConfidenceLower: 99.4, ConfidenceUpper: 99.6, ErrorBudgetMinutes: &budget},
			models.TierBalanced:     {Target: 99.9, BreachProbability: 0.01, ConfidenceLower: 99.8, ConfidenceUpper: 99.95, ErrorBudgetMinutes: &budget},
			models.TierAggressive:   {Target: 99.95, BreachProbability: 0.05, ConfidenceLower: 99.9, ConfidenceUpper: 99.99, ErrorBudgetMinutes: &budget},
		},
		LookbackWindowStart: testNow.AddDate(0, 0, -30),
		LookbackWindowEnd:   testNow,
		GeneratedAt:         testNow,
		ExpiresAt:           expiresAt,
		Status:              models.StatusActive,
	}
	require.NoError(t, rec.Validate())
	require.NoError(t, e.stores.Recommendations.Save(context.Background(), rec))
	return rec
}

func TestAcceptAdoptsTier(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedRecommendation(t, "web", models.SLIAvailability, testNow.Add(24*time.Hour))

	svc := newLifecycleService(env)
	slo, err := svc.Accept(context.Background(), LifecycleInput{
		RecommendationID: rec.ID,
		Actor:            "alice@example.com",
		Tier:             models.TierBalanced,
		Rationale:        "matches current paging policy",
	})
	require.NoError(t, err)
	assert.Equal(t, "web", slo.ServiceID)
	assert.Equal(t, models.TierBalanced, slo.Tier)
	assert.InDelta(t, 99.9, slo.Target, 1e-9)
	assert.Equal(t, rec.ID, slo.RecommendationID)

	stored, err := env.stores.ActiveSLOs.Get(context.Background(), "web", models.SLIAvailability)
	require.NoError(t, err)
	assert.InDelta(t, 99.9, stored.Target, 1e-9)

	entries, err := env.stores.Audit.ListByService(context.Background(), "web")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditAccept, entries[0].Action)
	assert.Equal(t, "alice@example.com", entries[0].Actor)
	assert.Nil(t, entries[0].PreviousState)
	assert.NotNil(t, entries[0].NewState)
}

func TestAcceptRecordsPreviousSLO(t *testing.T) {
	env := newTestEnv(t)
	first := env.seedRecommendation(t, "web", models.SLIAvailability, testNow.Add(24*time.Hour))

	svc := newLifecycleService(env)
	_, err := svc.Accept(context.Background(), LifecycleInput{
		RecommendationID: first.ID, Actor: "alice", Tier: models.TierBalanced,
	})
	require.NoError(t, err)

	second := env.seedRecommendation(t, "web", models.SLIAvailability, testNow.Add(24*time.Hour))
	_, err = svc.Accept(context.Background(), LifecycleInput{
		RecommendationID: second.ID, Actor: "bob", Tier: models.TierConservative,
	})
	require.NoError(t, err)

	entries, err := env.stores.Audit.ListByService(context.Background(), "web")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotNil(t, entries[1].PreviousState)
	assert.Equal(t, "balanced", entries[1].PreviousState["tier"])

	stored, err := env.stores.ActiveSLOs.Get(context.Background(), "web", models.SLIAvailability)
	require.NoError(t, err)
	assert.Equal(t, models.TierConservative, stored.Tier)
}

func TestAcceptValidation(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedRecommendation(t, "web", models.SLIAvailability, testNow.Add(24*time.Hour))
	svc := newLifecycleService(env)

	_, err := svc.Accept(context.Background(), LifecycleInput{RecommendationID: rec.ID, Actor: "alice", Tier: "platinum"})
	assert.True(t, IsValidationError(err))

	_, err = svc.Accept(context.Background(), LifecycleInput{RecommendationID: rec.ID, Tier: models.TierBalanced})
	assert.True(t, IsValidationError(err))

	_, err = svc.Accept(context.Background(), LifecycleInput{RecommendationID: "nope", Actor: "alice", Tier: models.TierBalanced})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestModifyCustomTarget(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedRecommendation(t, "web", models.SLIAvailability, testNow.Add(24*time.Hour))
	svc := newLifecycleService(env)

	slo, err := svc.Modify(context.Background(), LifecycleInput{
		RecommendationID: rec.ID,
		Actor:            "alice",
		CustomTarget:     floatPtr(99.85),
	})
	require.NoError(t, err)
	assert.InDelta(t, 99.85, slo.Target, 1e-9)
	assert.Equal(t, models.TierBalanced, slo.Tier)

	entries, err := env.stores.Audit.ListByService(context.Background(), "web")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditModify, entries[0].Action)
}

func TestModifyValidation(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedRecommendation(t, "web", models.SLIAvailability, testNow.Add(24*time.Hour))
	svc := newLifecycleService(env)

	_, err := svc.Modify(context.Background(), LifecycleInput{RecommendationID: rec.ID, Actor: "alice"})
	assert.True(t, IsValidationError(err))

	_, err = svc.Modify(context.Background(), LifecycleInput{
		RecommendationID: rec.ID, Actor: "alice", CustomTarget: floatPtr(150),
	})
	assert.True(t, IsValidationError(err))
}

func TestRejectSupersedes(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedRecommendation(t, "web", models.SLIAvailability, testNow.Add(24*time.Hour))
	svc := newLifecycleService(env)

	err := svc.Reject(context.Background(), LifecycleInput{
		RecommendationID: rec.ID, Actor: "alice", Rationale: "team keeps the manual target",
	})
	require.NoError(t, err)

	stored, err := env.stores.Recommendations.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuperseded, stored.Status)

	_, err = env.stores.ActiveSLOs.Get(context.Background(), "web", models.SLIAvailability)
	assert.Error(t, err)

	entries, err := env.stores.Audit.ListByService(context.Background(), "web")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditReject, entries[0].Action)
	assert.Equal(t, "team keeps the manual target", entries[0].Rationale)
}

func TestExpiredRecommendationCannotBeAccepted(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedRecommendation(t, "web", models.SLIAvailability, testNow.Add(-time.Hour))
	svc := newLifecycleService(env)

	_, err := svc.Accept(context.Background(), LifecycleInput{
		RecommendationID: rec.ID, Actor: "alice", Tier: models.TierBalanced,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecommendationInactive))

	// The attempt lazily expired the row and recorded it.
	stored, err := env.stores.Recommendations.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, stored.Status)

	entries, err := env.stores.Audit.ListByService(context.Background(), "web")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditExpire, entries[0].Action)
	assert.Equal(t, "system", entries[0].Actor)
}

func TestGetRecommendationsFiltersExpired(t *testing.T) {
	env := newTestEnv(t)
	expired := env.seedRecommendation(t, "web", models.SLIAvailability, testNow.Add(-time.Minute))
	live := env.seedRecommendation(t, "web", models.SLILatency, testNow.Add(24*time.Hour))
	svc := newLifecycleService(env)

	recs, err := svc.GetRecommendations(context.Background(), "web", nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, live.ID, recs[0].ID)

	stored, err := env.stores.Recommendations.GetByID(context.Background(), expired.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, stored.Status)
}

func TestGetRecommendationsFilterBySLIType(t *testing.T) {
	env := newTestEnv(t)
	env.seedRecommendation(t, "web", models.SLIAvailability, testNow.Add(24*time.Hour))
	env.seedRecommendation(t, "web", models.SLILatency, testNow.Add(24*time.Hour))
	svc := newLifecycleService(env)

	sliType := models.SLILatency
	recs, err := svc.GetRecommendations(context.Background(), "web", &sliType)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.SLILatency, recs[0].SLIType)
}
