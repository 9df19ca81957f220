package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
)

// ServiceStore implements store.ServiceRepository.
type ServiceStore struct {
	q querier
}

type serviceRow struct {
	models.Service
	MetadataRaw []byte `db:"metadata"`
}

func (r *serviceRow) toModel() (*models.Service, error) {
	svc := r.Service
	if len(r.MetadataRaw) > 0 {
		if err := json.Unmarshal(r.MetadataRaw, &svc.Metadata); err != nil {
			return nil, fmt.Errorf("decode service metadata for %s: %w", svc.ServiceID, err)
		}
	}
	return &svc, nil
}

// GetByServiceID fetches one service by its business identifier.
func (s *ServiceStore) GetByServiceID(ctx context.Context, serviceID string) (*models.Service, error) {
	var row serviceRow
	err := s.q.GetContext(ctx, &row,
		`SELECT * FROM services WHERE service_id = $1`, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service %s: %w", serviceID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", serviceID, err)
	}
	return row.toModel()
}

// ListAll returns a page of services plus the total count for the filters.
func (s *ServiceStore) ListAll(ctx context.Context, skip, limit int, filters models.ServiceFilters) ([]*models.Service, int, error) {
	where, args := buildServiceFilters(filters)

	var total int
	countQuery := "SELECT count(*) FROM services" + where
	if err := s.q.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count services: %w", err)
	}

	pageQuery := fmt.Sprintf(
		"SELECT * FROM services%s ORDER BY service_id OFFSET $%d LIMIT $%d",
		where, len(args)+1, len(args)+2)
	args = append(args, skip, limit)

	var rows []serviceRow
	if err := s.q.SelectContext(ctx, &rows, pageQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list services: %w", err)
	}

	services := make([]*models.Service, 0, len(rows))
	for i := range rows {
		svc, err := rows[i].toModel()
		if err != nil {
			return nil, 0, err
		}
		services = append(services, svc)
	}
	return services, total, nil
}

func buildServiceFilters(f models.ServiceFilters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.Team != "" {
		add("team = $%d", f.Team)
	}
	if f.Criticality != "" {
		add("criticality = $%d", f.Criticality)
	}
	if f.ServiceType != "" {
		add("service_type = $%d", f.ServiceType)
	}
	if f.Discovered != nil {
		add("discovered = $%d", *f.Discovered)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// UpsertMany inserts or updates services by service_id and returns the number
// of rows whose state changed. Rows flagged discovered are placeholder
// observations and never overwrite an existing record.
func (s *ServiceStore) UpsertMany(ctx context.Context, services []*models.Service) (int, error) {
	changed := 0
	for _, svc := range services {
		n, err := s.upsertOne(ctx, svc)
		if err != nil {
			return changed, err
		}
		changed += n
	}
	return changed, nil
}

func (s *ServiceStore) upsertOne(ctx context.Context, svc *models.Service) (int, error) {
	metadata, err := json.Marshal(orEmptyMap(svc.Metadata))
	if err != nil {
		return 0, fmt.Errorf("encode service metadata for %s: %w", svc.ServiceID, err)
	}

	if svc.Discovered {
		res, err := s.q.ExecContext(ctx, `
			INSERT INTO services (service_id, team, criticality, service_type, published_sla, discovered, metadata)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6)
			ON CONFLICT (service_id) DO NOTHING`,
			svc.ServiceID, svc.Team, svc.Criticality, svc.ServiceType, svc.PublishedSLA, metadata)
		if err != nil {
			return 0, fmt.Errorf("insert placeholder service %s: %w", svc.ServiceID, err)
		}
		n, _ := res.RowsAffected()
		return int(n), nil
	}

	existing, err := s.GetByServiceID(ctx, svc.ServiceID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO services (service_id, team, criticality, service_type, published_sla, discovered, metadata)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		ON CONFLICT (service_id) DO UPDATE SET
			team          = EXCLUDED.team,
			criticality   = EXCLUDED.criticality,
			service_type  = EXCLUDED.service_type,
			published_sla = EXCLUDED.published_sla,
			discovered    = FALSE,
			metadata      = EXCLUDED.metadata,
			updated_at    = now()`,
		svc.ServiceID, svc.Team, svc.Criticality, svc.ServiceType, svc.PublishedSLA, metadata)
	if err != nil {
		return 0, fmt.Errorf("upsert service %s: %w", svc.ServiceID, err)
	}

	if existing == nil || serviceChanged(existing, svc) {
		return 1, nil
	}
	return 0, nil
}

func serviceChanged(old, new *models.Service) bool {
	if old.Team != new.Team ||
		old.Criticality != new.Criticality ||
		old.ServiceType != new.ServiceType ||
		old.Discovered {
		return true
	}
	if (old.PublishedSLA == nil) != (new.PublishedSLA == nil) {
		return true
	}
	if old.PublishedSLA != nil && *old.PublishedSLA != *new.PublishedSLA {
		return true
	}
	oldMeta, _ := json.Marshal(orEmptyMap(old.Metadata))
	newMeta, _ := json.Marshal(orEmptyMap(new.Metadata))
	return string(oldMeta) != string(newMeta)
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
