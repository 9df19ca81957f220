package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

func edge(source, target string, discoveredBy models.DiscoverySource) *models.DependencyEdge {
	return &models.DependencyEdge{
		SourceID:          source,
		TargetID:          target,
		CommunicationMode: models.CommunicationSync,
		Criticality:       models.EdgeHard,
		DiscoverySource:   discoveredBy,
		ConfidenceScore:   discoveredBy.DefaultConfidence(),
		LastObservedAt:    time.Now(),
	}
}

func TestMergeEdges(t *testing.T) {
	t.Run("higher-priority source wins the merged view", func(t *testing.T) {
		mesh := edge("a", "b", models.SourceServiceMesh)
		k8s := edge("a", "b", models.SourceKubernetes)
		k8s.Criticality = models.EdgeSoft

		effective, conflicts := MergeEdges([]*models.DependencyEdge{k8s, mesh})
		require.Len(t, effective, 1)
		assert.Equal(t, models.SourceServiceMesh, effective[0].DiscoverySource)
		assert.Equal(t, models.EdgeHard, effective[0].Criticality)
		require.Len(t, conflicts, 1)
		assert.Contains(t, conflicts[0], "a->b")
	})

	t.Run("manual outranks every other source", func(t *testing.T) {
		rows := []*models.DependencyEdge{
			edge("a", "b", models.SourceKubernetes),
			edge("a", "b", models.SourceOTelServiceGraph),
			edge("a", "b", models.SourceManual),
			edge("a", "b", models.SourceServiceMesh),
		}
		effective, _ := MergeEdges(rows)
		require.Len(t, effective, 1)
		assert.Equal(t, models.SourceManual, effective[0].DiscoverySource)
	})

	t.Run("distinct pairs stay separate", func(t *testing.T) {
		effective, conflicts := MergeEdges([]*models.DependencyEdge{
			edge("a", "b", models.SourceManual),
			edge("b", "c", models.SourceManual),
		})
		assert.Len(t, effective, 2)
		assert.Empty(t, conflicts)
	})
}

func TestSnapshotStaleFiltering(t *testing.T) {
	fresh := edge("a", "b", models.SourceServiceMesh)
	stale := edge("a", "c", models.SourceServiceMesh)
	stale.IsStale = true

	t.Run("stale edges excluded by default", func(t *testing.T) {
		s := NewSnapshot([]*models.DependencyEdge{fresh, stale}, false)
		assert.Len(t, s.Outgoing("a"), 1)
	})

	t.Run("stale edges included on request", func(t *testing.T) {
		s := NewSnapshot([]*models.DependencyEdge{fresh, stale}, true)
		assert.Len(t, s.Outgoing("a"), 2)
	})
}

func TestTraverse(t *testing.T) {
	// a -> b -> c -> d, a -> e; x -> a upstream.
	rows := []*models.DependencyEdge{
		edge("a", "b", models.SourceServiceMesh),
		edge("b", "c", models.SourceServiceMesh),
		edge("c", "d", models.SourceServiceMesh),
		edge("a", "e", models.SourceServiceMesh),
		edge("x", "a", models.SourceServiceMesh),
	}
	s := NewSnapshot(rows, false)

	t.Run("downstream bounded by depth", func(t *testing.T) {
		result := s.Traverse("a", models.DirectionDownstream, 2)
		assert.ElementsMatch(t, []string{"a", "b", "c", "e"}, result.NodeIDs)
		assert.Equal(t, 2, result.ReachedDepth)
		assert.False(t, result.HasCycle)
		assert.Len(t, result.Edges, 3)
	})

	t.Run("downstream full depth reaches the chain end", func(t *testing.T) {
		result := s.Traverse("a", models.DirectionDownstream, 10)
		assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, result.NodeIDs)
		assert.Equal(t, 3, result.ReachedDepth)
	})

	t.Run("upstream follows reverse edges", func(t *testing.T) {
		result := s.Traverse("a", models.DirectionUpstream, 3)
		assert.ElementsMatch(t, []string{"a", "x"}, result.NodeIDs)
	})

	t.Run("both directions", func(t *testing.T) {
		result := s.Traverse("a", models.DirectionBoth, 1)
		assert.ElementsMatch(t, []string{"a", "b", "e", "x"}, result.NodeIDs)
	})

	t.Run("every traversed edge has both endpoints in the node set", func(t *testing.T) {
		result := s.Traverse("a", models.DirectionDownstream, 10)
		nodes := map[string]bool{}
		for _, id := range result.NodeIDs {
			nodes[id] = true
		}
		for _, e := range result.Edges {
			assert.True(t, nodes[e.SourceID], e.SourceID)
			assert.True(t, nodes[e.TargetID], e.TargetID)
		}
	})

	t.Run("isolated start yields just the start node", func(t *testing.T) {
		result := s.Traverse("lonely", models.DirectionDownstream, 5)
		assert.Equal(t, []string{"lonely"}, result.NodeIDs)
		assert.Equal(t, 0, result.ReachedDepth)
		assert.Empty(t, result.Edges)
	})
}

func TestTraverseCycle(t *testing.T) {
	// a -> b -> c -> a plus c -> d.
	rows := []*models.DependencyEdge{
		edge("a", "b", models.SourceServiceMesh),
		edge("b", "c", models.SourceServiceMesh),
		edge("c", "a", models.SourceServiceMesh),
		edge("c", "d", models.SourceServiceMesh),
	}
	s := NewSnapshot(rows, false)

	t.Run("terminates and flags the cycle", func(t *testing.T) {
		result := s.Traverse("a", models.DirectionDownstream, 10)
		assert.True(t, result.HasCycle)
		assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, result.NodeIDs)
	})

	t.Run("diamond is not reported as a cycle", func(t *testing.T) {
		diamond := NewSnapshot([]*models.DependencyEdge{
			edge("a", "b", models.SourceServiceMesh),
			edge("a", "c", models.SourceServiceMesh),
			edge("b", "d", models.SourceServiceMesh),
			edge("c", "d", models.SourceServiceMesh),
		}, false)
		result := diamond.Traverse("a", models.DirectionDownstream, 10)
		assert.False(t, result.HasCycle)
	})
}

func TestSCCs(t *testing.T) {
	t.Run("finds multi-member components only", func(t *testing.T) {
		s := NewSnapshot([]*models.DependencyEdge{
			edge("a", "b", models.SourceServiceMesh),
			edge("b", "a", models.SourceServiceMesh),
			edge("b", "c", models.SourceServiceMesh),
		}, false)
		cycles := s.SCCs()
		require.Len(t, cycles, 1)
		assert.Equal(t, []string{"a", "b"}, cycles[0])
	})

	t.Run("acyclic graph has no cycles", func(t *testing.T) {
		s := NewSnapshot([]*models.DependencyEdge{
			edge("a", "b", models.SourceServiceMesh),
			edge("b", "c", models.SourceServiceMesh),
		}, false)
		assert.Empty(t, s.SCCs())
	})

	t.Run("two disjoint cycles come back sorted", func(t *testing.T) {
		s := NewSnapshot([]*models.DependencyEdge{
			edge("m", "n", models.SourceServiceMesh),
			edge("n", "m", models.SourceServiceMesh),
			edge("a", "b", models.SourceServiceMesh),
			edge("b", "c", models.SourceServiceMesh),
			edge("c", "a", models.SourceServiceMesh),
		}, false)
		cycles := s.SCCs()
		require.Len(t, cycles, 2)
		assert.Equal(t, []string{"a", "b", "c"}, cycles[0])
		assert.Equal(t, []string{"m", "n"}, cycles[1])
	})

	t.Run("canonical key matches the sorted member list", func(t *testing.T) {
		assert.Equal(t, "a,b,c", models.CycleKey([]string{"c", "a", "b"}))
	})
}
