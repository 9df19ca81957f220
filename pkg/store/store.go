// Package store defines the persistence contracts the application layer
// consumes. Implementations live in store/postgres (sqlx over pgx) and
// store/memory (fakes for tests).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// Sentinel errors shared by every implementation.
var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflicting write")
)

// ServiceRepository persists Service entities.
type ServiceRepository interface {
	GetByServiceID(ctx context.Context, serviceID string) (*models.Service, error)
	ListAll(ctx context.Context, skip, limit int, filters models.ServiceFilters) ([]*models.Service, int, error)
	// UpsertMany inserts or updates services by service_id and returns the
	// number of rows whose state actually changed. A placeholder row is not
	// downgraded: explicit metadata clears the discovered flag, never the
	// other way around.
	UpsertMany(ctx context.Context, services []*models.Service) (int, error)
}

// DependencyRepository persists source-tagged dependency edges.
type DependencyRepository interface {
	// UpsertMany inserts or refreshes edges by (source, target,
	// discovery_source) and returns the number of rows whose attributes
	// changed. Refreshes always bump last_observed_at and clear is_stale.
	UpsertMany(ctx context.Context, edges []*models.DependencyEdge) (int, error)
	ListAll(ctx context.Context, includeStale bool) ([]*models.DependencyEdge, error)
	ListBySource(ctx context.Context, serviceID string) ([]*models.DependencyEdge, error)
	ListByTarget(ctx context.Context, serviceID string) ([]*models.DependencyEdge, error)
	// MarkStaleOlderThan flags edges not observed since the cutoff and
	// returns how many were newly marked.
	MarkStaleOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// CycleRepository persists canonical circular dependency records.
type CycleRepository interface {
	// RecordDetected upserts the given SCCs by canonical member key and
	// returns the keys that were not previously known. Known records get
	// last_detected_at refreshed; resolved records are reopened.
	RecordDetected(ctx context.Context, cycles [][]string, now time.Time) ([]string, error)
	List(ctx context.Context) ([]*models.CircularDependency, error)
	UpdateStatus(ctx context.Context, id string, status models.CycleStatus, now time.Time) error
	// ResolveMissing marks open/acknowledged records resolved when their
	// member key is absent from currentKeys.
	ResolveMissing(ctx context.Context, currentKeys []string, now time.Time) (int, error)
}

// RecommendationRepository persists SLO recommendations.
type RecommendationRepository interface {
	GetActive(ctx context.Context, serviceID string, sliType *models.SLIType) ([]*models.Recommendation, error)
	GetByID(ctx context.Context, id string) (*models.Recommendation, error)
	// Save supersedes any existing active row for (service, sli_type) and
	// inserts rec as active, atomically.
	Save(ctx context.Context, rec *models.Recommendation) error
	SaveBatch(ctx context.Context, recs []*models.Recommendation) error
	SupersedeActive(ctx context.Context, serviceID string, sliType models.SLIType) error
	// ExpireStale transitions active rows whose expires_at has passed and
	// returns the count.
	ExpireStale(ctx context.Context, now time.Time) (int, error)
	// UpdateStatus transitions one recommendation row.
	UpdateStatus(ctx context.Context, id string, status models.RecommendationStatus) error
}

// AuditStore is the append-only audit trail.
type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	ListByService(ctx context.Context, serviceID string) ([]*models.AuditEntry, error)
}

// ActiveSLORepository persists the SLO currently in force per pair.
type ActiveSLORepository interface {
	Upsert(ctx context.Context, slo *models.ActiveSLO) error
	Get(ctx context.Context, serviceID string, sliType models.SLIType) (*models.ActiveSLO, error)
	ListByService(ctx context.Context, serviceID string) ([]*models.ActiveSLO, error)
}

// Stores bundles every repository over one backend.
type Stores struct {
	Services        ServiceRepository
	Dependencies    DependencyRepository
	Cycles          CycleRepository
	Recommendations RecommendationRepository
	Audit           AuditStore
	ActiveSLOs      ActiveSLORepository
}

// TxRunner executes fn against a transactional view of the stores: either
// every write commits or none do.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx *Stores) error) error
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

// Now returns the current UTC instant.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
