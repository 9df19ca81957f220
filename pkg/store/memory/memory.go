// Package memory provides in-memory store implementations for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
)

// Store backs every repository contract plus store.TxRunner with plain maps.
// WithinTx provides mutual exclusion but not rollback; tests that need
// rollback semantics run against Postgres.
type Store struct {
	mu              sync.RWMutex
	services        map[string]*models.Service
	edges           map[string]*models.DependencyEdge
	cycles          map[string]*models.CircularDependency
	recommendations map[string]*models.Recommendation
	audit           []*models.AuditEntry
	activeSLOs      map[string]*models.ActiveSLO
}

// New builds an empty in-memory store.
func New() *Store {
	return &Store{
		services:        make(map[string]*models.Service),
		edges:           make(map[string]*models.DependencyEdge),
		cycles:          make(map[string]*models.CircularDependency),
		recommendations: make(map[string]*models.Recommendation),
		activeSLOs:      make(map[string]*models.ActiveSLO),
	}
}

// Stores exposes the repository bundle backed by this store.
func (s *Store) Stores() *store.Stores {
	return &store.Stores{
		Services:        &serviceStore{s},
		Dependencies:    &dependencyStore{s},
		Cycles:          &cycleStore{s},
		Recommendations: &recommendationStore{s},
		Audit:           &auditStore{s},
		ActiveSLOs:      &activeSLOStore{s},
	}
}

// WithinTx runs fn against the same store. Writes are not rolled back on
// error.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *store.Stores) error) error {
	return fn(ctx, s.Stores())
}

func edgeKey(sourceID, targetID string, source models.DiscoverySource) string {
	return sourceID + "|" + targetID + "|" + string(source)
}

func pairKey(serviceID string, sliType models.SLIType) string {
	return serviceID + "|" + string(sliType)
}

// serviceStore implements store.ServiceRepository.
type serviceStore struct{ s *Store }

func (r *serviceStore) GetByServiceID(_ context.Context, serviceID string) (*models.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	svc, ok := r.s.services[serviceID]
	if !ok {
		return nil, fmt.Errorf("service %s: %w", serviceID, store.ErrNotFound)
	}
	copied := *svc
	return &copied, nil
}

func (r *serviceStore) ListAll(_ context.Context, skip, limit int, filters models.ServiceFilters) ([]*models.Service, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*models.Service
	for _, svc := range r.s.services {
		if filters.Team != "" && svc.Team != filters.Team {
			continue
		}
		if filters.Criticality != "" && svc.Criticality != filters.Criticality {
			continue
		}
		if filters.ServiceType != "" && svc.ServiceType != filters.ServiceType {
			continue
		}
		if filters.Discovered != nil && svc.Discovered != *filters.Discovered {
			continue
		}
		copied := *svc
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ServiceID < matched[j].ServiceID })

	total := len(matched)
	if skip >= total {
		return nil, total, nil
	}
	matched = matched[skip:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *serviceStore) UpsertMany(_ context.Context, services []*models.Service) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	changed := 0
	now := time.Now().UTC()
	for _, svc := range services {
		existing, ok := r.s.services[svc.ServiceID]

		// Placeholders never overwrite an existing record.
		if svc.Discovered {
			if ok {
				continue
			}
			copied := *svc
			copied.CreatedAt, copied.UpdatedAt = now, now
			r.s.services[svc.ServiceID] = &copied
			changed++
			continue
		}

		copied := *svc
		copied.Discovered = false
		copied.UpdatedAt = now
		if ok {
			copied.CreatedAt = existing.CreatedAt
			if !serviceEqual(existing, &copied) {
				changed++
			}
		} else {
			copied.CreatedAt = now
			changed++
		}
		r.s.services[svc.ServiceID] = &copied
	}
	return changed, nil
}

func serviceEqual(a, b *models.Service) bool {
	if a.Team != b.Team || a.Criticality != b.Criticality ||
		a.ServiceType != b.ServiceType || a.Discovered != b.Discovered {
		return false
	}
	if (a.PublishedSLA == nil) != (b.PublishedSLA == nil) {
		return false
	}
	return a.PublishedSLA == nil || *a.PublishedSLA == *b.PublishedSLA
}

// dependencyStore implements store.DependencyRepository.
type dependencyStore struct{ s *Store }

func (r *dependencyStore) UpsertMany(_ context.Context, edges []*models.DependencyEdge) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	changed := 0
	now := time.Now().UTC()
	for _, edge := range edges {
		key := edgeKey(edge.SourceID, edge.TargetID, edge.DiscoverySource)
		copied := *edge
		if copied.ID == "" {
			copied.ID = uuid.NewString()
		}
		if copied.LastObservedAt.IsZero() {
			copied.LastObservedAt = now
		}
		copied.IsStale = false

		existing, ok := r.s.edges[key]
		if ok {
			copied.ID = existing.ID
			copied.CreatedAt = existing.CreatedAt
			if !edgeEqual(existing, &copied) {
				changed++
			}
		} else {
			copied.CreatedAt = now
			changed++
		}
		r.s.edges[key] = &copied
	}
	return changed, nil
}

func edgeEqual(a, b *models.DependencyEdge) bool {
	if a.CommunicationMode != b.CommunicationMode || a.Criticality != b.Criticality ||
		a.Protocol != b.Protocol || a.ConfidenceScore != b.ConfidenceScore ||
		a.RedundancyGroup != b.RedundancyGroup || a.IsStale != b.IsStale {
		return false
	}
	if (a.TimeoutMS == nil) != (b.TimeoutMS == nil) {
		return false
	}
	return a.TimeoutMS == nil || *a.TimeoutMS == *b.TimeoutMS
}

func (r *dependencyStore) ListAll(_ context.Context, includeStale bool) ([]*models.DependencyEdge, error) {
	return r.list(func(e *models.DependencyEdge) bool { return includeStale || !e.IsStale })
}

func (r *dependencyStore) ListBySource(_ context.Context, serviceID string) ([]*models.DependencyEdge, error) {
	return r.list(func(e *models.DependencyEdge) bool { return e.SourceID == serviceID && !e.IsStale })
}

func (r *dependencyStore) ListByTarget(_ context.Context, serviceID string) ([]*models.DependencyEdge, error) {
	return r.list(func(e *models.DependencyEdge) bool { return e.TargetID == serviceID && !e.IsStale })
}

func (r *dependencyStore) list(keep func(*models.DependencyEdge) bool) ([]*models.DependencyEdge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var edges []*models.DependencyEdge
	for _, edge := range r.s.edges {
		if !keep(edge) {
			continue
		}
		copied := *edge
		edges = append(edges, &copied)
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		return a.DiscoverySource < b.DiscoverySource
	})
	return edges, nil
}

func (r *dependencyStore) MarkStaleOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	marked := 0
	for _, edge := range r.s.edges {
		if !edge.IsStale && edge.LastObservedAt.Before(cutoff) {
			edge.IsStale = true
			marked++
		}
	}
	return marked, nil
}

// cycleStore implements store.CycleRepository.
type cycleStore struct{ s *Store }

func (r *cycleStore) RecordDetected(_ context.Context, cycles [][]string, now time.Time) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var newKeys []string
	for _, members := range cycles {
		key := models.CycleKey(members)
		existing, ok := r.s.cycles[key]
		switch {
		case !ok:
			sorted := append([]string(nil), members...)
			sort.Strings(sorted)
			r.s.cycles[key] = &models.CircularDependency{
				ID:             uuid.NewString(),
				MemberKey:      key,
				Members:        sorted,
				Status:         models.CycleOpen,
				DetectedAt:     now,
				LastDetectedAt: now,
			}
			newKeys = append(newKeys, key)
		case existing.Status == models.CycleResolved:
			existing.Status = models.CycleOpen
			existing.LastDetectedAt = now
			existing.ResolvedAt = nil
			newKeys = append(newKeys, key)
		default:
			existing.LastDetectedAt = now
		}
	}
	return newKeys, nil
}

func (r *cycleStore) List(_ context.Context) ([]*models.CircularDependency, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	cycles := make([]*models.CircularDependency, 0, len(r.s.cycles))
	for _, cycle := range r.s.cycles {
		copied := *cycle
		cycles = append(cycles, &copied)
	}
	sort.Slice(cycles, func(i, j int) bool {
		if !cycles[i].LastDetectedAt.Equal(cycles[j].LastDetectedAt) {
			return cycles[i].LastDetectedAt.After(cycles[j].LastDetectedAt)
		}
		return cycles[i].MemberKey < cycles[j].MemberKey
	})
	return cycles, nil
}

func (r *cycleStore) UpdateStatus(_ context.Context, id string, status models.CycleStatus, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, cycle := range r.s.cycles {
		if cycle.ID != id {
			continue
		}
		cycle.Status = status
		if status == models.CycleResolved {
			resolvedAt := now
			cycle.ResolvedAt = &resolvedAt
		} else {
			cycle.ResolvedAt = nil
		}
		return nil
	}
	return fmt.Errorf("cycle %s: %w", id, store.ErrNotFound)
}

func (r *cycleStore) ResolveMissing(_ context.Context, currentKeys []string, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current := make(map[string]bool, len(currentKeys))
	for _, key := range currentKeys {
		current[key] = true
	}

	resolved := 0
	for key, cycle := range r.s.cycles {
		if cycle.Status == models.CycleResolved || current[key] {
			continue
		}
		cycle.Status = models.CycleResolved
		resolvedAt := now
		cycle.ResolvedAt = &resolvedAt
		resolved++
	}
	return resolved, nil
}

// recommendationStore implements store.RecommendationRepository.
type recommendationStore struct{ s *Store }

func (r *recommendationStore) GetActive(_ context.Context, serviceID string, sliType *models.SLIType) ([]*models.Recommendation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var recs []*models.Recommendation
	for _, rec := range r.s.recommendations {
		if rec.ServiceID != serviceID || rec.Status != models.StatusActive {
			continue
		}
		if sliType != nil && rec.SLIType != *sliType {
			continue
		}
		copied := *rec
		recs = append(recs, &copied)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].SLIType < recs[j].SLIType })
	return recs, nil
}

func (r *recommendationStore) GetByID(_ context.Context, id string) (*models.Recommendation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.recommendations[id]
	if !ok {
		return nil, fmt.Errorf("recommendation %s: %w", id, store.ErrNotFound)
	}
	copied := *rec
	return &copied, nil
}

func (r *recommendationStore) Save(_ context.Context, rec *models.Recommendation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.saveLocked(rec)
}

func (r *recommendationStore) saveLocked(rec *models.Recommendation) error {
	for _, existing := range r.s.recommendations {
		if existing.ServiceID == rec.ServiceID && existing.SLIType == rec.SLIType &&
			existing.Status == models.StatusActive {
			existing.Status = models.StatusSuperseded
		}
	}
	copied := *rec
	if copied.ID == "" {
		copied.ID = uuid.NewString()
	}
	copied.Status = models.StatusActive
	rec.ID = copied.ID
	rec.Status = copied.Status
	r.s.recommendations[copied.ID] = &copied
	return nil
}

func (r *recommendationStore) SaveBatch(_ context.Context, recs []*models.Recommendation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range recs {
		if err := r.saveLocked(rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *recommendationStore) SupersedeActive(_ context.Context, serviceID string, sliType models.SLIType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, rec := range r.s.recommendations {
		if rec.ServiceID == serviceID && rec.SLIType == sliType && rec.Status == models.StatusActive {
			rec.Status = models.StatusSuperseded
		}
	}
	return nil
}

func (r *recommendationStore) ExpireStale(_ context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	expired := 0
	for _, rec := range r.s.recommendations {
		if rec.Status == models.StatusActive && !rec.ExpiresAt.After(now) {
			rec.Status = models.StatusExpired
			expired++
		}
	}
	return expired, nil
}

func (r *recommendationStore) UpdateStatus(_ context.Context, id string, status models.RecommendationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.recommendations[id]
	if !ok {
		return fmt.Errorf("recommendation %s: %w", id, store.ErrNotFound)
	}
	rec.Status = status
	return nil
}

// auditStore implements store.AuditStore.
type auditStore struct{ s *Store }

func (r *auditStore) Append(_ context.Context, entry *models.AuditEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid audit entry: %w", err)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	copied := *entry
	if copied.ID == "" {
		copied.ID = uuid.NewString()
	}
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	entry.ID = copied.ID
	r.s.audit = append(r.s.audit, &copied)
	return nil
}

func (r *auditStore) ListByService(_ context.Context, serviceID string) ([]*models.AuditEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var entries []*models.AuditEntry
	for _, entry := range r.s.audit {
		if entry.ServiceID != serviceID {
			continue
		}
		copied := *entry
		entries = append(entries, &copied)
	}
	return entries, nil
}

// activeSLOStore implements store.ActiveSLORepository.
type activeSLOStore struct{ s *Store }

func (r *activeSLOStore) Upsert(_ context.Context, slo *models.ActiveSLO) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	key := pairKey(slo.ServiceID, slo.SLIType)
	copied := *slo
	if existing, ok := r.s.activeSLOs[key]; ok {
		copied.ID = existing.ID
		copied.CreatedAt = existing.CreatedAt
	} else {
		if copied.ID == "" {
			copied.ID = uuid.NewString()
		}
		copied.CreatedAt = now
	}
	copied.UpdatedAt = now
	r.s.activeSLOs[key] = &copied
	return nil
}

func (r *activeSLOStore) Get(_ context.Context, serviceID string, sliType models.SLIType) (*models.ActiveSLO, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	slo, ok := r.s.activeSLOs[pairKey(serviceID, sliType)]
	if !ok {
		return nil, fmt.Errorf("active SLO for %s/%s: %w", serviceID, sliType, store.ErrNotFound)
	}
	copied := *slo
	return &copied, nil
}

func (r *activeSLOStore) ListByService(_ context.Context, serviceID string) ([]*models.ActiveSLO, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var slos []*models.ActiveSLO
	for _, slo := range r.s.activeSLOs {
		if slo.ServiceID != serviceID {
			continue
		}
		copied := *slo
		slos = append(slos, &copied)
	}
	sort.Slice(slos, func(i, j int) bool { return slos[i].SLIType < slos[j].SLIType })
	return slos, nil
}
