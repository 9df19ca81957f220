package graph

import (
	"sort"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// TraversalResult is the observable output of one bounded traversal. NodeIDs
// always contains the start service when the subgraph is non-empty.
type TraversalResult struct {
	NodeIDs      []string
	Edges        []*models.DependencyEdge
	ReachedDepth int
	HasCycle     bool
}

// Traverse walks the snapshot from start, following edges in the requested
// direction up to maxDepth hops. A visited set guarantees every node is
// expanded at most once, so traversal terminates on cyclic graphs in O(V+E).
func (s *Snapshot) Traverse(start string, direction models.TraversalDirection, maxDepth int) TraversalResult {
	type frontierNode struct {
		id    string
		depth int
	}

	visited := map[string]bool{start: true}
	edgeSeen := map[string]bool{}
	result := TraversalResult{NodeIDs: []string{start}}

	frontier := []frontierNode{{id: start, depth: 0}}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		if current.depth >= maxDepth {
			continue
		}

		for _, step := range s.neighbors(current.id, direction) {
			edgeKey := step.edge.SourceID + "->" + step.edge.TargetID
			if !edgeSeen[edgeKey] {
				edgeSeen[edgeKey] = true
				result.Edges = append(result.Edges, step.edge)
			}
			if visited[step.next] {
				// Re-reaching a visited node means the subgraph contains a
				// cycle or a diamond; Tarjan below disambiguates.
				continue
			}
			visited[step.next] = true
			result.NodeIDs = append(result.NodeIDs, step.next)
			if current.depth+1 > result.ReachedDepth {
				result.ReachedDepth = current.depth + 1
			}
			frontier = append(frontier, frontierNode{id: step.next, depth: current.depth + 1})
		}
	}

	sort.Strings(result.NodeIDs)
	result.HasCycle = subgraphHasCycle(result.Edges)
	return result
}

// HardSyncClosure returns one edge per service reachable from start over
// hard-sync edges within maxDepth hops, breadth-first. A service reached by
// several paths is represented by the first edge that reached it, so each
// chain member enters a serial product exactly once; soft and async edges are
// not followed.
func (s *Snapshot) HardSyncClosure(start string, maxDepth int) []*models.DependencyEdge {
	type frontierNode struct {
		id    string
		depth int
	}

	visited := map[string]bool{start: true}
	var closure []*models.DependencyEdge

	frontier := []frontierNode{{id: start}}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		if current.depth >= maxDepth {
			continue
		}
		for _, e := range s.out[current.id] {
			if !e.IsHardSync() || visited[e.TargetID] {
				continue
			}
			visited[e.TargetID] = true
			closure = append(closure, e)
			frontier = append(frontier, frontierNode{id: e.TargetID, depth: current.depth + 1})
		}
	}
	return closure
}

type step struct {
	edge *models.DependencyEdge
	next string
}

func (s *Snapshot) neighbors(id string, direction models.TraversalDirection) []step {
	var steps []step
	if direction == models.DirectionDownstream || direction == models.DirectionBoth {
		for _, e := range s.out[id] {
			steps = append(steps, step{edge: e, next: e.TargetID})
		}
	}
	if direction == models.DirectionUpstream || direction == models.DirectionBoth {
		for _, e := range s.in[id] {
			steps = append(steps, step{edge: e, next: e.SourceID})
		}
	}
	return steps
}

// subgraphHasCycle reports whether the traversed edge set contains a directed
// cycle, by running SCC detection over just those edges.
func subgraphHasCycle(edges []*models.DependencyEdge) bool {
	sub := NewSnapshot(edges, true)
	return len(sub.SCCs()) > 0
}
