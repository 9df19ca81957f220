package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
)

// LifecycleService handles the accept/modify/reject lifecycle of
// recommendations, the active SLO registry, and the append-only audit trail.
type LifecycleService struct {
	tx    store.TxRunner
	reads *store.Stores
	clock store.Clock
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(tx store.TxRunner, reads *store.Stores, clock store.Clock) *LifecycleService {
	if tx == nil {
		panic("NewLifecycleService: tx must not be nil")
	}
	if reads == nil {
		panic("NewLifecycleService: reads must not be nil")
	}
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &LifecycleService{tx: tx, reads: reads, clock: clock}
}

// LifecycleInput carries the actor context of one lifecycle action.
type LifecycleInput struct {
	RecommendationID string
	Actor            string
	Rationale        string

	// Accept: which tier becomes the SLO.
	Tier models.TierName

	// Modify: the custom target replacing the tier value.
	CustomTarget *float64
}

// Accept adopts one tier of an active recommendation as the SLO in force.
func (s *LifecycleService) Accept(ctx context.Context, input LifecycleInput) (*models.ActiveSLO, error) {
	if !input.Tier.Valid() {
		return nil, NewValidationError("tier", fmt.Sprintf("unknown tier %q", input.Tier))
	}
	rec, err := s.activeRecommendation(ctx, input.RecommendationID)
	if err != nil {
		return nil, err
	}
	tier, ok := rec.Tiers[input.Tier]
	if !ok {
		return nil, NewValidationError("tier", fmt.Sprintf("recommendation has no %q tier", input.Tier))
	}
	return s.adopt(ctx, rec, input, models.AuditAccept, input.Tier, tier.Target)
}

// Modify adopts an active recommendation with a custom target instead of a
// tier value. The custom target is recorded against the closest tier for
// reporting.
func (s *LifecycleService) Modify(ctx context.Context, input LifecycleInput) (*models.ActiveSLO, error) {
	if input.CustomTarget == nil {
		return nil, NewValidationError("custom_target", "custom_target is required")
	}
	rec, err := s.activeRecommendation(ctx, input.RecommendationID)
	if err != nil {
		return nil, err
	}
	if rec.SLIType == models.SLIAvailability && (*input.CustomTarget <= 0 || *input.CustomTarget >= 100) {
		return nil, NewValidationError("custom_target", "availability target must be in (0, 100) percent")
	}
	if rec.SLIType == models.SLILatency && *input.CustomTarget <= 0 {
		return nil, NewValidationError("custom_target", "latency target must be positive")
	}
	tier := input.Tier
	if tier == "" {
		tier = models.TierBalanced
	}
	return s.adopt(ctx, rec, input, models.AuditModify, tier, *input.CustomTarget)
}

// Reject dismisses an active recommendation without adopting an SLO. The
// recommendation is superseded so the next pipeline run starts clean.
func (s *LifecycleService) Reject(ctx context.Context, input LifecycleInput) error {
	if input.Actor == "" {
		return NewValidationError("actor", "actor is required")
	}
	rec, err := s.activeRecommendation(ctx, input.RecommendationID)
	if err != nil {
		return err
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context, tx *store.Stores) error {
		if err := tx.Recommendations.UpdateStatus(ctx, rec.ID, models.StatusSuperseded); err != nil {
			return storageErr("supersede rejected recommendation", err)
		}
		entry := &models.AuditEntry{
			ServiceID:        rec.ServiceID,
			RecommendationID: rec.ID,
			Action:           models.AuditReject,
			Actor:            input.Actor,
			PreviousState:    recommendationState(rec),
			Rationale:        input.Rationale,
			CreatedAt:        s.clock.Now(),
		}
		if err := tx.Audit.Append(ctx, entry); err != nil {
			return storageErr("append audit entry", err)
		}
		return nil
	})
}

func (s *LifecycleService) adopt(ctx context.Context, rec *models.Recommendation, input LifecycleInput, action models.AuditAction, tier models.TierName, target float64) (*models.ActiveSLO, error) {
	if input.Actor == "" {
		return nil, NewValidationError("actor", "actor is required")
	}

	now := s.clock.Now()
	slo := &models.ActiveSLO{
		ServiceID:        rec.ServiceID,
		SLIType:          rec.SLIType,
		RecommendationID: rec.ID,
		Tier:             tier,
		Target:           target,
		Actor:            input.Actor,
	}

	var previous map[string]any
	if existing, err := s.reads.ActiveSLOs.Get(ctx, rec.ServiceID, rec.SLIType); err == nil {
		previous = activeSLOState(existing)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storageErr("load existing active SLO", err)
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx *store.Stores) error {
		if err := tx.ActiveSLOs.Upsert(ctx, slo); err != nil {
			return storageErr("upsert active SLO", err)
		}
		entry := &models.AuditEntry{
			ServiceID:        rec.ServiceID,
			RecommendationID: rec.ID,
			Action:           action,
			Actor:            input.Actor,
			PreviousState:    previous,
			NewState:         activeSLOState(slo),
			Rationale:        input.Rationale,
			CreatedAt:        now,
		}
		if err := tx.Audit.Append(ctx, entry); err != nil {
			return storageErr("append audit entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Recommendation adopted",
		"service_id", rec.ServiceID,
		"sli_type", rec.SLIType,
		"action", action,
		"tier", tier,
		"target", target,
		"actor", input.Actor)
	return slo, nil
}

// GetRecommendations returns the active recommendations of a service,
// expiring any whose TTL lapsed on the way out.
func (s *LifecycleService) GetRecommendations(ctx context.Context, serviceID string, sliType *models.SLIType) ([]*models.Recommendation, error) {
	if serviceID == "" {
		return nil, NewValidationError("service_id", "service_id is required")
	}
	recs, err := s.reads.Recommendations.GetActive(ctx, serviceID, sliType)
	if err != nil {
		return nil, storageErr("get recommendations", err)
	}

	now := s.clock.Now()
	live := recs[:0]
	for _, rec := range recs {
		if !rec.ExpiresAt.After(now) {
			if err := s.expire(ctx, rec); err != nil {
				return nil, err
			}
			continue
		}
		live = append(live, rec)
	}
	return live, nil
}

// expire lazily transitions one overdue recommendation and records it.
func (s *LifecycleService) expire(ctx context.Context, rec *models.Recommendation) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx *store.Stores) error {
		if err := tx.Recommendations.UpdateStatus(ctx, rec.ID, models.StatusExpired); err != nil {
			return storageErr("expire recommendation", err)
		}
		entry := &models.AuditEntry{
			ServiceID:        rec.ServiceID,
			RecommendationID: rec.ID,
			Action:           models.AuditExpire,
			Actor:            "system",
			PreviousState:    recommendationState(rec),
			CreatedAt:        s.clock.Now(),
		}
		if err := tx.Audit.Append(ctx, entry); err != nil {
			return storageErr("append audit entry", err)
		}
		return nil
	})
}

// GetAuditHistory returns the audit trail of a service.
func (s *LifecycleService) GetAuditHistory(ctx context.Context, serviceID string) ([]*models.AuditEntry, error) {
	if serviceID == "" {
		return nil, NewValidationError("service_id", "service_id is required")
	}
	entries, err := s.reads.Audit.ListByService(ctx, serviceID)
	if err != nil {
		return nil, storageErr("list audit entries", err)
	}
	return entries, nil
}

// GetActiveSLOs returns the SLOs currently in force for a service.
func (s *LifecycleService) GetActiveSLOs(ctx context.Context, serviceID string) ([]*models.ActiveSLO, error) {
	if serviceID == "" {
		return nil, NewValidationError("service_id", "service_id is required")
	}
	slos, err := s.reads.ActiveSLOs.ListByService(ctx, serviceID)
	if err != nil {
		return nil, storageErr("list active SLOs", err)
	}
	return slos, nil
}

// activeRecommendation loads a recommendation and verifies it is still
// actionable, lazily expiring it if its TTL lapsed.
func (s *LifecycleService) activeRecommendation(ctx context.Context, id string) (*models.Recommendation, error) {
	if id == "" {
		return nil, NewValidationError("recommendation_id", "recommendation_id is required")
	}
	rec, err := s.reads.Recommendations.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("recommendation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get recommendation", err)
	}
	if rec.Status != models.StatusActive {
		return nil, fmt.Errorf("recommendation %s has status %s: %w", id, rec.Status, ErrRecommendationInactive)
	}
	if !rec.ExpiresAt.After(s.clock.Now()) {
		if err := s.expire(ctx, rec); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("recommendation %s expired: %w", id, ErrRecommendationInactive)
	}
	return rec, nil
}

func recommendationState(rec *models.Recommendation) map[string]any {
	return map[string]any{
		"recommendation_id": rec.ID,
		"sli_type":          string(rec.SLIType),
		"status":            string(rec.Status),
		"generated_at":      rec.GeneratedAt,
	}
}

func activeSLOState(slo *models.ActiveSLO) map[string]any {
	return map[string]any{
		"sli_type":          string(slo.SLIType),
		"tier":              string(slo.Tier),
		"target":            slo.Target,
		"recommendation_id": slo.RecommendationID,
		"actor":             slo.Actor,
	}
}
