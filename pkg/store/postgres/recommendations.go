package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
)

// RecommendationStore implements store.RecommendationRepository.
type RecommendationStore struct {
	q querier
}

type recommendationRow struct {
	models.Recommendation
	TiersRaw       []byte `db:"tiers"`
	ExplanationRaw []byte `db:"explanation"`
	DataQualityRaw []byte `db:"data_quality"`
}

func (r *recommendationRow) toModel() (*models.Recommendation, error) {
	rec := r.Recommendation
	if err := json.Unmarshal(r.TiersRaw, &rec.Tiers); err != nil {
		return nil, fmt.Errorf("decode tiers for recommendation %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(r.ExplanationRaw, &rec.Explanation); err != nil {
		return nil, fmt.Errorf("decode explanation for recommendation %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(r.DataQualityRaw, &rec.DataQuality); err != nil {
		return nil, fmt.Errorf("decode data quality for recommendation %s: %w", rec.ID, err)
	}
	return &rec, nil
}

// GetActive returns the active recommendations for a service, optionally
// narrowed to one SLI type.
func (s *RecommendationStore) GetActive(ctx context.Context, serviceID string, sliType *models.SLIType) ([]*models.Recommendation, error) {
	query := `SELECT * FROM slo_recommendations WHERE service_id = $1 AND status = 'active'`
	args := []any{serviceID}
	if sliType != nil {
		query += ` AND sli_type = $2`
		args = append(args, *sliType)
	}
	query += ` ORDER BY sli_type`

	var rows []recommendationRow
	if err := s.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get active recommendations for %s: %w", serviceID, err)
	}

	recs := make([]*models.Recommendation, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// GetByID fetches one recommendation regardless of status.
func (s *RecommendationStore) GetByID(ctx context.Context, id string) (*models.Recommendation, error) {
	var row recommendationRow
	err := s.q.GetContext(ctx, &row, `SELECT * FROM slo_recommendations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recommendation %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get recommendation %s: %w", id, err)
	}
	return row.toModel()
}

// Save supersedes the currently active row for the (service, sli_type) pair
// and inserts rec as the new active one, atomically.
func (s *RecommendationStore) Save(ctx context.Context, rec *models.Recommendation) error {
	if db, ok := s.q.(*sqlx.DB); ok {
		txx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		nested := &RecommendationStore{q: txx}
		if err := nested.save(ctx, rec); err != nil {
			_ = txx.Rollback()
			return err
		}
		return txx.Commit()
	}
	return s.save(ctx, rec)
}

func (s *RecommendationStore) save(ctx context.Context, rec *models.Recommendation) error {
	if err := s.SupersedeActive(ctx, rec.ServiceID, rec.SLIType); err != nil {
		return err
	}

	tiers, err := json.Marshal(rec.Tiers)
	if err != nil {
		return fmt.Errorf("encode tiers for %s: %w", rec.ServiceID, err)
	}
	explanation, err := json.Marshal(rec.Explanation)
	if err != nil {
		return fmt.Errorf("encode explanation for %s: %w", rec.ServiceID, err)
	}
	dataQuality, err := json.Marshal(rec.DataQuality)
	if err != nil {
		return fmt.Errorf("encode data quality for %s: %w", rec.ServiceID, err)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Status = models.StatusActive

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO slo_recommendations (
			id, service_id, sli_type, metric, tiers, explanation, data_quality,
			lookback_window_start, lookback_window_end, generated_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'active')`,
		rec.ID, rec.ServiceID, rec.SLIType, rec.Metric, tiers, explanation, dataQuality,
		rec.LookbackWindowStart, rec.LookbackWindowEnd, rec.GeneratedAt, rec.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("active recommendation for %s/%s: %w", rec.ServiceID, rec.SLIType, store.ErrConflict)
		}
		return fmt.Errorf("insert recommendation for %s: %w", rec.ServiceID, err)
	}
	return nil
}

// SaveBatch saves each recommendation in its own supersede-and-insert step.
func (s *RecommendationStore) SaveBatch(ctx context.Context, recs []*models.Recommendation) error {
	for _, rec := range recs {
		if err := s.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// SupersedeActive retires the active row for the pair, if any.
func (s *RecommendationStore) SupersedeActive(ctx context.Context, serviceID string, sliType models.SLIType) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE slo_recommendations SET status = 'superseded'
		WHERE service_id = $1 AND sli_type = $2 AND status = 'active'`,
		serviceID, sliType)
	if err != nil {
		return fmt.Errorf("supersede active recommendation for %s/%s: %w", serviceID, sliType, err)
	}
	return nil
}

// ExpireStale transitions active rows whose expiry has passed.
func (s *RecommendationStore) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE slo_recommendations SET status = 'expired'
		WHERE status = 'active' AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expire recommendations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// UpdateStatus transitions one recommendation row.
func (s *RecommendationStore) UpdateStatus(ctx context.Context, id string, status models.RecommendationStatus) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE slo_recommendations SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update recommendation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recommendation %s: %w", id, store.ErrNotFound)
	}
	return nil
}
