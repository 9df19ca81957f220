package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
)

// ActiveSLOStore implements store.ActiveSLORepository.
type ActiveSLOStore struct {
	q querier
}

// Upsert sets the SLO in force for the (service, sli_type) pair.
func (s *ActiveSLOStore) Upsert(ctx context.Context, slo *models.ActiveSLO) error {
	if slo.ID == "" {
		slo.ID = uuid.NewString()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO active_slos (id, service_id, sli_type, recommendation_id, tier, target, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (service_id, sli_type) DO UPDATE SET
			recommendation_id = EXCLUDED.recommendation_id,
			tier              = EXCLUDED.tier,
			target            = EXCLUDED.target,
			actor             = EXCLUDED.actor,
			updated_at        = now()`,
		slo.ID, slo.ServiceID, slo.SLIType, slo.RecommendationID, slo.Tier, slo.Target, slo.Actor)
	if err != nil {
		return fmt.Errorf("upsert active SLO for %s/%s: %w", slo.ServiceID, slo.SLIType, err)
	}
	return nil
}

// Get fetches the SLO in force for the pair.
func (s *ActiveSLOStore) Get(ctx context.Context, serviceID string, sliType models.SLIType) (*models.ActiveSLO, error) {
	var slo models.ActiveSLO
	err := s.q.GetContext(ctx, &slo, `
		SELECT * FROM active_slos WHERE service_id = $1 AND sli_type = $2`,
		serviceID, sliType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("active SLO for %s/%s: %w", serviceID, sliType, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get active SLO for %s/%s: %w", serviceID, sliType, err)
	}
	return &slo, nil
}

// ListByService returns every SLO in force for a service.
func (s *ActiveSLOStore) ListByService(ctx context.Context, serviceID string) ([]*models.ActiveSLO, error) {
	var slos []*models.ActiveSLO
	err := s.q.SelectContext(ctx, &slos, `
		SELECT * FROM active_slos WHERE service_id = $1 ORDER BY sli_type`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list active SLOs for %s: %w", serviceID, err)
	}
	return slos, nil
}
