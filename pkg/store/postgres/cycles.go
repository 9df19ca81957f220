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

// CycleStore implements store.CycleRepository.
type CycleStore struct {
	q querier
}

type cycleRow struct {
	models.CircularDependency
	MembersRaw []byte `db:"members"`
}

func (r *cycleRow) toModel() (*models.CircularDependency, error) {
	cycle := r.CircularDependency
	if err := json.Unmarshal(r.MembersRaw, &cycle.Members); err != nil {
		return nil, fmt.Errorf("decode cycle members for %s: %w", cycle.MemberKey, err)
	}
	return &cycle, nil
}

// RecordDetected upserts the given SCCs by canonical member key and returns
// the keys that are newly open: previously unknown or previously resolved.
// Known open records only get last_detected_at refreshed.
func (s *CycleStore) RecordDetected(ctx context.Context, cycles [][]string, now time.Time) ([]string, error) {
	var newKeys []string
	for _, members := range cycles {
		key := models.CycleKey(members)

		var existing cycleRow
		err := s.q.GetContext(ctx, &existing,
			`SELECT * FROM circular_dependencies WHERE member_key = $1`, key)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			membersJSON, err := json.Marshal(members)
			if err != nil {
				return nil, fmt.Errorf("encode cycle members for %s: %w", key, err)
			}
			_, err = s.q.ExecContext(ctx, `
				INSERT INTO circular_dependencies (id, member_key, members, status, detected_at, last_detected_at)
				VALUES ($1, $2, $3, $4, $5, $5)`,
				uuid.NewString(), key, membersJSON, models.CycleOpen, now)
			if err != nil {
				return nil, fmt.Errorf("insert cycle %s: %w", key, err)
			}
			newKeys = append(newKeys, key)

		case err != nil:
			return nil, fmt.Errorf("get cycle %s: %w", key, err)

		case existing.Status == models.CycleResolved:
			_, err = s.q.ExecContext(ctx, `
				UPDATE circular_dependencies
				SET status = $2, last_detected_at = $3, resolved_at = NULL
				WHERE member_key = $1`, key, models.CycleOpen, now)
			if err != nil {
				return nil, fmt.Errorf("reopen cycle %s: %w", key, err)
			}
			newKeys = append(newKeys, key)

		default:
			_, err = s.q.ExecContext(ctx, `
				UPDATE circular_dependencies SET last_detected_at = $2 WHERE member_key = $1`,
				key, now)
			if err != nil {
				return nil, fmt.Errorf("refresh cycle %s: %w", key, err)
			}
		}
	}
	return newKeys, nil
}

// List returns every recorded cycle, most recently detected first.
func (s *CycleStore) List(ctx context.Context) ([]*models.CircularDependency, error) {
	var rows []cycleRow
	err := s.q.SelectContext(ctx, &rows,
		`SELECT * FROM circular_dependencies ORDER BY last_detected_at DESC, member_key`)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}

	cycles := make([]*models.CircularDependency, 0, len(rows))
	for i := range rows {
		cycle, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, cycle)
	}
	return cycles, nil
}

// UpdateStatus transitions one cycle record.
func (s *CycleStore) UpdateStatus(ctx context.Context, id string, status models.CycleStatus, now time.Time) error {
	var resolvedAt *time.Time
	if status == models.CycleResolved {
		resolvedAt = &now
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE circular_dependencies SET status = $2, resolved_at = $3 WHERE id = $1`,
		id, status, resolvedAt)
	if err != nil {
		return fmt.Errorf("update cycle %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cycle %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ResolveMissing marks open and acknowledged records resolved when their
// member key no longer appears among the currently detected SCCs.
func (s *CycleStore) ResolveMissing(ctx context.Context, currentKeys []string, now time.Time) (int, error) {
	query := `
		UPDATE circular_dependencies
		SET status = 'resolved', resolved_at = ?
		WHERE status IN ('open', 'acknowledged')`
	args := []any{now}

	if len(currentKeys) > 0 {
		query += ` AND member_key NOT IN (?)`
		var err error
		query, args, err = sqlx.In(query, now, currentKeys)
		if err != nil {
			return 0, fmt.Errorf("build resolve query: %w", err)
		}
	}

	res, err := s.q.ExecContext(ctx, s.q.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("resolve missing cycles: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
