package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// DependencyStore implements store.DependencyRepository.
type DependencyStore struct {
	q querier
}

type dependencyRow struct {
	models.DependencyEdge
	RetryConfigRaw []byte `db:"retry_config"`
}

func (r *dependencyRow) toModel() (*models.DependencyEdge, error) {
	edge := r.DependencyEdge
	if len(r.RetryConfigRaw) > 0 {
		edge.RetryConfig = &models.RetryConfig{}
		if err := json.Unmarshal(r.RetryConfigRaw, edge.RetryConfig); err != nil {
			return nil, fmt.Errorf("decode retry config for edge %s: %w", edge.ID, err)
		}
	}
	return &edge, nil
}

func edgesFromRows(rows []dependencyRow) ([]*models.DependencyEdge, error) {
	edges := make([]*models.DependencyEdge, 0, len(rows))
	for i := range rows {
		edge, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// UpsertMany inserts or refreshes edges keyed on (source, target,
// discovery_source) and returns how many rows had attribute changes. Every
// refresh bumps last_observed_at and clears the stale flag.
func (s *DependencyStore) UpsertMany(ctx context.Context, edges []*models.DependencyEdge) (int, error) {
	changed := 0
	for _, edge := range edges {
		n, err := s.upsertOne(ctx, edge)
		if err != nil {
			return changed, err
		}
		changed += n
	}
	return changed, nil
}

func (s *DependencyStore) upsertOne(ctx context.Context, edge *models.DependencyEdge) (int, error) {
	var retryConfig []byte
	if edge.RetryConfig != nil {
		var err error
		retryConfig, err = json.Marshal(edge.RetryConfig)
		if err != nil {
			return 0, fmt.Errorf("encode retry config for %s -> %s: %w", edge.SourceID, edge.TargetID, err)
		}
	}

	var existing dependencyRow
	err := s.q.GetContext(ctx, &existing, `
		SELECT * FROM dependency_edges
		WHERE source_id = $1 AND target_id = $2 AND discovery_source = $3`,
		edge.SourceID, edge.TargetID, edge.DiscoverySource)
	missing := errors.Is(err, sql.ErrNoRows)
	if err != nil && !missing {
		return 0, fmt.Errorf("get edge %s -> %s (%s): %w", edge.SourceID, edge.TargetID, edge.DiscoverySource, err)
	}

	observedAt := edge.LastObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO dependency_edges (
			id, source_id, target_id, communication_mode, criticality, protocol,
			timeout_ms, retry_config, discovery_source, confidence_score,
			last_observed_at, is_stale, redundancy_group)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, $12)
		ON CONFLICT (source_id, target_id, discovery_source) DO UPDATE SET
			communication_mode = EXCLUDED.communication_mode,
			criticality        = EXCLUDED.criticality,
			protocol           = EXCLUDED.protocol,
			timeout_ms         = EXCLUDED.timeout_ms,
			retry_config       = EXCLUDED.retry_config,
			confidence_score   = EXCLUDED.confidence_score,
			redundancy_group   = EXCLUDED.redundancy_group,
			last_observed_at   = EXCLUDED.last_observed_at,
			is_stale           = FALSE`,
		uuid.NewString(), edge.SourceID, edge.TargetID, edge.CommunicationMode,
		edge.Criticality, edge.Protocol, edge.TimeoutMS, retryConfig,
		edge.DiscoverySource, edge.ConfidenceScore, observedAt, edge.RedundancyGroup)
	if err != nil {
		return 0, fmt.Errorf("upsert edge %s -> %s (%s): %w", edge.SourceID, edge.TargetID, edge.DiscoverySource, err)
	}

	if missing || edgeChanged(&existing, edge, retryConfig) {
		return 1, nil
	}
	return 0, nil
}

func edgeChanged(old *dependencyRow, new *models.DependencyEdge, newRetryConfig []byte) bool {
	if old.CommunicationMode != new.CommunicationMode ||
		old.Criticality != new.Criticality ||
		old.Protocol != new.Protocol ||
		old.ConfidenceScore != new.ConfidenceScore ||
		old.RedundancyGroup != new.RedundancyGroup ||
		old.IsStale {
		return true
	}
	if (old.TimeoutMS == nil) != (new.TimeoutMS == nil) {
		return true
	}
	if old.TimeoutMS != nil && *old.TimeoutMS != *new.TimeoutMS {
		return true
	}
	return string(old.RetryConfigRaw) != string(newRetryConfig)
}

// ListAll returns every edge, optionally including stale ones.
func (s *DependencyStore) ListAll(ctx context.Context, includeStale bool) ([]*models.DependencyEdge, error) {
	query := `SELECT * FROM dependency_edges`
	if !includeStale {
		query += ` WHERE is_stale = FALSE`
	}
	query += ` ORDER BY source_id, target_id, discovery_source`

	var rows []dependencyRow
	if err := s.q.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	return edgesFromRows(rows)
}

// ListBySource returns the non-stale outgoing edges of a service.
func (s *DependencyStore) ListBySource(ctx context.Context, serviceID string) ([]*models.DependencyEdge, error) {
	var rows []dependencyRow
	err := s.q.SelectContext(ctx, &rows, `
		SELECT * FROM dependency_edges
		WHERE source_id = $1 AND is_stale = FALSE
		ORDER BY target_id, discovery_source`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list edges from %s: %w", serviceID, err)
	}
	return edgesFromRows(rows)
}

// ListByTarget returns the non-stale incoming edges of a service.
func (s *DependencyStore) ListByTarget(ctx context.Context, serviceID string) ([]*models.DependencyEdge, error) {
	var rows []dependencyRow
	err := s.q.SelectContext(ctx, &rows, `
		SELECT * FROM dependency_edges
		WHERE target_id = $1 AND is_stale = FALSE
		ORDER BY source_id, discovery_source`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list edges into %s: %w", serviceID, err)
	}
	return edgesFromRows(rows)
}

// MarkStaleOlderThan flags edges not observed since the cutoff.
func (s *DependencyStore) MarkStaleOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE dependency_edges SET is_stale = TRUE
		WHERE is_stale = FALSE AND last_observed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark stale edges: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
