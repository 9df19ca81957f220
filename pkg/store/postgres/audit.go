package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// AuditStore implements store.AuditStore. Entries are append-only.
type AuditStore struct {
	q querier
}

type auditRow struct {
	models.AuditEntry
	RecommendationID *string `db:"recommendation_id"`
	PreviousStateRaw []byte  `db:"previous_state"`
	NewStateRaw      []byte  `db:"new_state"`
}

func (r *auditRow) toModel() (*models.AuditEntry, error) {
	entry := r.AuditEntry
	if r.RecommendationID != nil {
		entry.RecommendationID = *r.RecommendationID
	}
	if len(r.PreviousStateRaw) > 0 {
		if err := json.Unmarshal(r.PreviousStateRaw, &entry.PreviousState); err != nil {
			return nil, fmt.Errorf("decode previous state for audit entry %s: %w", entry.ID, err)
		}
	}
	if len(r.NewStateRaw) > 0 {
		if err := json.Unmarshal(r.NewStateRaw, &entry.NewState); err != nil {
			return nil, fmt.Errorf("decode new state for audit entry %s: %w", entry.ID, err)
		}
	}
	return &entry, nil
}

// Append inserts one audit entry.
func (s *AuditStore) Append(ctx context.Context, entry *models.AuditEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid audit entry: %w", err)
	}

	previousState, err := marshalState(entry.PreviousState)
	if err != nil {
		return fmt.Errorf("encode previous state: %w", err)
	}
	newState, err := marshalState(entry.NewState)
	if err != nil {
		return fmt.Errorf("encode new state: %w", err)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	var recommendationID *string
	if entry.RecommendationID != "" {
		recommendationID = &entry.RecommendationID
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, service_id, recommendation_id, action, actor,
			previous_state, new_state, rationale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.ServiceID, recommendationID, entry.Action, entry.Actor,
		previousState, newState, entry.Rationale)
	if err != nil {
		return fmt.Errorf("append audit entry for %s: %w", entry.ServiceID, err)
	}
	return nil
}

func marshalState(state map[string]any) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}

// ListByService returns the audit trail of a service, oldest first.
func (s *AuditStore) ListByService(ctx context.Context, serviceID string) ([]*models.AuditEntry, error) {
	var rows []auditRow
	err := s.q.SelectContext(ctx, &rows, `
		SELECT * FROM audit_entries WHERE service_id = $1 ORDER BY created_at, id`,
		serviceID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries for %s: %w", serviceID, err)
	}

	entries := make([]*models.AuditEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
