package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/graph"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
)

// IngestService applies discovery snapshots to the dependency graph. One
// ingest call is one transaction: node upserts, edge upserts, and cycle
// bookkeeping all commit together or not at all.
type IngestService struct {
	tx    store.TxRunner
	clock store.Clock
}

// NewIngestService creates a new IngestService.
func NewIngestService(tx store.TxRunner, clock store.Clock) *IngestService {
	if tx == nil {
		panic("NewIngestService: tx must not be nil")
	}
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &IngestService{tx: tx, clock: clock}
}

// Ingest validates and applies one discovery payload, then re-runs cycle
// detection over the merged graph. The returned report carries upsert counts,
// newly detected cycles, and merge conflicts.
func (s *IngestService) Ingest(ctx context.Context, payload *models.IngestPayload) (*models.IngestReport, error) {
	if payload == nil {
		return nil, NewValidationError("payload", "ingest payload is required")
	}
	if err := payload.Validate(); err != nil {
		return nil, NewValidationError("payload", err.Error())
	}

	now := s.clock.Now()
	report := &models.IngestReport{Source: payload.Source}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx *store.Stores) error {
		services, placeholders := buildServices(payload)
		nodesChanged, err := tx.Services.UpsertMany(ctx, services)
		if err != nil {
			return storageErr("upsert services", err)
		}
		if len(placeholders) > 0 {
			if _, err := tx.Services.UpsertMany(ctx, placeholders); err != nil {
				return storageErr("upsert placeholder services", err)
			}
			for _, p := range placeholders {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("created placeholder for unregistered service %s", p.ServiceID))
			}
		}

		edges := buildEdges(payload, now)
		edgesChanged, err := tx.Dependencies.UpsertMany(ctx, edges)
		if err != nil {
			return storageErr("upsert edges", err)
		}

		report.NodesUpserted = nodesChanged
		report.EdgesUpserted = edgesChanged

		// Cycle detection runs over the full merged graph, not just this
		// payload: an edge from source A can close a loop opened by source B.
		allEdges, err := tx.Dependencies.ListAll(ctx, false)
		if err != nil {
			return storageErr("load edges for cycle detection", err)
		}
		snapshot := graph.NewSnapshot(allEdges, false)
		_, conflicts := graph.MergeEdges(allEdges)
		report.Conflicts = conflicts

		sccs := snapshot.SCCs()
		newKeys, err := tx.Cycles.RecordDetected(ctx, sccs, now)
		if err != nil {
			return storageErr("record cycles", err)
		}
		currentKeys := make([]string, 0, len(sccs))
		for _, members := range sccs {
			currentKeys = append(currentKeys, models.CycleKey(members))
		}
		if _, err := tx.Cycles.ResolveMissing(ctx, currentKeys, now); err != nil {
			return storageErr("resolve cleared cycles", err)
		}

		newKeySet := make(map[string]bool, len(newKeys))
		for _, key := range newKeys {
			newKeySet[key] = true
		}
		for _, members := range sccs {
			if newKeySet[models.CycleKey(members)] {
				report.NewlyDetectedCycles = append(report.NewlyDetectedCycles, members)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Ingest applied",
		"source", payload.Source,
		"nodes_upserted", report.NodesUpserted,
		"edges_upserted", report.EdgesUpserted,
		"new_cycles", len(report.NewlyDetectedCycles),
		"conflicts", len(report.Conflicts))
	return report, nil
}

// buildServices converts payload nodes into service upserts and synthesizes
// placeholders for edge endpoints the payload never declares.
func buildServices(payload *models.IngestPayload) (explicit, placeholders []*models.Service) {
	declared := make(map[string]bool, len(payload.Nodes))
	for _, n := range payload.Nodes {
		declared[n.ServiceID] = true
		svc := &models.Service{
			ServiceID:    n.ServiceID,
			Team:         n.Team,
			Criticality:  n.Criticality,
			ServiceType:  n.ServiceType,
			PublishedSLA: n.PublishedSLA,
			Metadata:     n.Metadata,
		}
		applyServiceDefaults(svc)
		explicit = append(explicit, svc)
	}

	seen := make(map[string]bool)
	for _, e := range payload.Edges {
		for _, id := range []string{e.Source, e.Target} {
			if declared[id] || seen[id] {
				continue
			}
			seen[id] = true
			placeholders = append(placeholders, models.Placeholder(id))
		}
	}
	return explicit, placeholders
}

// buildEdges converts payload edges into rows, applying per-source defaults.
func buildEdges(payload *models.IngestPayload, now time.Time) []*models.DependencyEdge {
	edges := make([]*models.DependencyEdge, 0, len(payload.Edges))
	for _, e := range payload.Edges {
		edge := &models.DependencyEdge{
			SourceID:          e.Source,
			TargetID:          e.Target,
			CommunicationMode: e.CommunicationMode,
			Criticality:       e.Criticality,
			Protocol:          e.Protocol,
			TimeoutMS:         e.TimeoutMS,
			RetryConfig:       e.RetryConfig,
			DiscoverySource:   payload.Source,
			RedundancyGroup:   e.RedundancyGroup,
			LastObservedAt:    now,
		}
		if edge.CommunicationMode == "" {
			edge.CommunicationMode = models.CommunicationSync
		}
		if edge.Criticality == "" {
			edge.Criticality = models.EdgeHard
		}
		if e.ConfidenceScore != nil {
			edge.ConfidenceScore = *e.ConfidenceScore
		} else {
			edge.ConfidenceScore = payload.Source.DefaultConfidence()
		}
		edges = append(edges, edge)
	}
	return edges
}
