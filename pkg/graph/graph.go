// Package graph provides the in-memory dependency graph: priority-merged
// views over source-tagged edge rows, bounded directed traversal, and
// strongly-connected-component detection. All operations work on an immutable
// snapshot of the edge set loaded from the store.
package graph

import (
	"fmt"
	"sort"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// Snapshot is a consistent, merged view over a set of edge rows.
type Snapshot struct {
	out   map[string][]*models.DependencyEdge
	in    map[string][]*models.DependencyEdge
	nodes map[string]bool
}

// MergeEdges collapses source-tagged rows into one effective edge per
// (source, target) pair. All rows are retained in storage; here the
// highest-priority discovery source wins (manual > service_mesh >
// otel_service_graph > kubernetes). Conflicts are reported when a losing
// source disagrees with the winner on criticality or communication mode.
func MergeEdges(rows []*models.DependencyEdge) (effective []*models.DependencyEdge, conflicts []string) {
	byPair := make(map[[2]string][]*models.DependencyEdge)
	order := make([][2]string, 0, len(rows))
	for _, row := range rows {
		key := [2]string{row.SourceID, row.TargetID}
		if _, seen := byPair[key]; !seen {
			order = append(order, key)
		}
		byPair[key] = append(byPair[key], row)
	}

	for _, key := range order {
		group := byPair[key]
		winner := group[0]
		for _, row := range group[1:] {
			if row.DiscoverySource.Priority() > winner.DiscoverySource.Priority() {
				winner = row
			}
		}
		for _, row := range group {
			if row == winner {
				continue
			}
			if row.Criticality != winner.Criticality || row.CommunicationMode != winner.CommunicationMode {
				conflicts = append(conflicts, fmt.Sprintf(
					"%s->%s: %s says %s/%s, using %s (%s/%s)",
					key[0], key[1],
					row.DiscoverySource, row.Criticality, row.CommunicationMode,
					winner.DiscoverySource, winner.Criticality, winner.CommunicationMode))
			}
		}
		effective = append(effective, winner)
	}
	sort.Strings(conflicts)
	return effective, conflicts
}

// NewSnapshot builds a snapshot from edge rows. Stale rows are dropped unless
// includeStale is set; the remaining rows are merged by source priority.
func NewSnapshot(rows []*models.DependencyEdge, includeStale bool) *Snapshot {
	filtered := make([]*models.DependencyEdge, 0, len(rows))
	for _, row := range rows {
		if row.IsStale && !includeStale {
			continue
		}
		filtered = append(filtered, row)
	}
	effective, _ := MergeEdges(filtered)

	s := &Snapshot{
		out:   make(map[string][]*models.DependencyEdge),
		in:    make(map[string][]*models.DependencyEdge),
		nodes: make(map[string]bool),
	}
	for _, e := range effective {
		s.out[e.SourceID] = append(s.out[e.SourceID], e)
		s.in[e.TargetID] = append(s.in[e.TargetID], e)
		s.nodes[e.SourceID] = true
		s.nodes[e.TargetID] = true
	}
	return s
}

// Outgoing returns the effective edges leaving id.
func (s *Snapshot) Outgoing(id string) []*models.DependencyEdge { return s.out[id] }

// Incoming returns the effective edges arriving at id.
func (s *Snapshot) Incoming(id string) []*models.DependencyEdge { return s.in[id] }

// NodeIDs returns every node referenced by an effective edge, sorted.
func (s *Snapshot) NodeIDs() []string {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
