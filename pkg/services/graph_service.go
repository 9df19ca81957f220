package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/config"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/graph"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
)

// GraphService serves subgraph queries and cycle bookkeeping over the
// dependency graph.
type GraphService struct {
	stores *store.Stores
	cfg    config.GraphConfig
	clock  store.Clock
}

// NewGraphService creates a new GraphService.
func NewGraphService(stores *store.Stores, cfg config.GraphConfig, clock store.Clock) *GraphService {
	if stores == nil {
		panic("NewGraphService: stores must not be nil")
	}
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &GraphService{stores: stores, cfg: cfg, clock: clock}
}

// GetSubgraph returns the bounded subgraph around a service. Depth is clamped
// to the configured maximum; zero or negative depth means the maximum. Stale
// edges are excluded unless includeStale is set.
func (s *GraphService) GetSubgraph(ctx context.Context, serviceID string, direction models.TraversalDirection, depth int, includeStale bool) (*models.Subgraph, error) {
	if serviceID == "" {
		return nil, NewValidationError("service_id", "service_id is required")
	}
	if direction == "" {
		direction = models.DirectionDownstream
	}
	if !direction.Valid() {
		return nil, NewValidationError("direction", fmt.Sprintf("unknown direction %q", direction))
	}
	if depth <= 0 || depth > s.cfg.MaxTraversalDepth {
		depth = s.cfg.MaxTraversalDepth
	}

	if _, err := s.stores.Services.GetByServiceID(ctx, serviceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("service %s: %w", serviceID, ErrNotFound)
		}
		return nil, storageErr("get service", err)
	}

	edges, err := s.stores.Dependencies.ListAll(ctx, includeStale)
	if err != nil {
		return nil, storageErr("load edges", err)
	}

	snapshot := graph.NewSnapshot(edges, includeStale)
	traversal := snapshot.Traverse(serviceID, direction, depth)

	nodes := make([]*models.Service, 0, len(traversal.NodeIDs))
	for _, id := range traversal.NodeIDs {
		svc, err := s.stores.Services.GetByServiceID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			// An edge can reference a service whose row was never created;
			// surface it as a placeholder rather than failing the query.
			svc = models.Placeholder(id)
		} else if err != nil {
			return nil, storageErr("load subgraph node", err)
		}
		nodes = append(nodes, svc)
	}

	return &models.Subgraph{
		StartServiceID: serviceID,
		Nodes:          nodes,
		Edges:          traversal.Edges,
		ReachedDepth:   traversal.ReachedDepth,
		HasCycle:       traversal.HasCycle,
	}, nil
}

// ListCycles returns every recorded circular dependency.
func (s *GraphService) ListCycles(ctx context.Context) ([]*models.CircularDependency, error) {
	cycles, err := s.stores.Cycles.List(ctx)
	if err != nil {
		return nil, storageErr("list cycles", err)
	}
	return cycles, nil
}

// UpdateCycleStatus transitions one recorded cycle. Resolved records can only
// be reopened by re-detection, not by hand.
func (s *GraphService) UpdateCycleStatus(ctx context.Context, id string, status models.CycleStatus) error {
	if id == "" {
		return NewValidationError("id", "cycle id is required")
	}
	if !status.Valid() {
		return NewValidationError("status", fmt.Sprintf("unknown cycle status %q", status))
	}
	err := s.stores.Cycles.UpdateStatus(ctx, id, status, s.clock.Now())
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("cycle %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return storageErr("update cycle status", err)
	}
	return nil
}
