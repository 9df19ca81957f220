package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

func newGraphService(env *testEnv) *GraphService {
	return NewGraphService(env.stores, env.cfg.Graph, env.clock)
}

func TestGetSubgraphDownstream(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "a"})
	env.seedService(t, &models.Service{ServiceID: "b"})
	env.seedEdge(t, "a", "b")
	env.seedEdge(t, "b", "c") // c was never registered

	svc := newGraphService(env)
	sub, err := svc.GetSubgraph(context.Background(), "a", models.DirectionDownstream, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "a", sub.StartServiceID)
	assert.Len(t, sub.Edges, 2)
	require.Len(t, sub.Nodes, 3)

	// Unregistered endpoints surface as placeholders, not errors.
	var found *models.Service
	for _, n := range sub.Nodes {
		if n.ServiceID == "c" {
			found = n
		}
	}
	require.NotNil(t, found)
	assert.True(t, found.Discovered)
}

func TestGetSubgraphDepthBound(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "a"})
	env.seedEdge(t, "a", "b")
	env.seedEdge(t, "b", "c")
	env.seedEdge(t, "c", "d")

	svc := newGraphService(env)
	sub, err := svc.GetSubgraph(context.Background(), "a", models.DirectionDownstream, 1, false)
	require.NoError(t, err)
	assert.Len(t, sub.Edges, 1)
	assert.Equal(t, 1, sub.ReachedDepth)
}

func TestGetSubgraphReportsCycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "a"})
	env.seedEdge(t, "a", "b")
	env.seedEdge(t, "b", "a")

	svc := newGraphService(env)
	sub, err := svc.GetSubgraph(context.Background(), "a", models.DirectionDownstream, 0, false)
	require.NoError(t, err)
	assert.True(t, sub.HasCycle)
}

func TestGetSubgraphIncludeStale(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "a"})
	env.seedEdge(t, "a", "b")
	env.seedEdge(t, "a", "old", func(e *models.DependencyEdge) {
		e.LastObservedAt = testNow.AddDate(0, 0, -30)
	})
	_, err := env.stores.Dependencies.MarkStaleOlderThan(context.Background(), testNow.AddDate(0, 0, -7))
	require.NoError(t, err)

	svc := newGraphService(env)
	sub, err := svc.GetSubgraph(context.Background(), "a", models.DirectionDownstream, 0, false)
	require.NoError(t, err)
	require.Len(t, sub.Edges, 1)
	assert.Equal(t, "b", sub.Edges[0].TargetID)

	sub, err = svc.GetSubgraph(context.Background(), "a", models.DirectionDownstream, 0, true)
	require.NoError(t, err)
	assert.Len(t, sub.Edges, 2)
}

func TestGetSubgraphValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedService(t, &models.Service{ServiceID: "a"})
	svc := newGraphService(env)

	_, err := svc.GetSubgraph(context.Background(), "", models.DirectionDownstream, 0, false)
	assert.True(t, IsValidationError(err))

	_, err = svc.GetSubgraph(context.Background(), "a", "sideways", 0, false)
	assert.True(t, IsValidationError(err))

	_, err = svc.GetSubgraph(context.Background(), "ghost", models.DirectionDownstream, 0, false)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateCycleStatus(t *testing.T) {
	env := newTestEnv(t)
	newKeys, err := env.stores.Cycles.RecordDetected(context.Background(), [][]string{{"a", "b"}}, testNow)
	require.NoError(t, err)
	require.Len(t, newKeys, 1)

	cycles, err := env.stores.Cycles.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cycles, 1)

	svc := newGraphService(env)
	require.NoError(t, svc.UpdateCycleStatus(context.Background(), cycles[0].ID, models.CycleAcknowledged))

	cycles, err = svc.ListCycles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.CycleAcknowledged, cycles[0].Status)

	err = svc.UpdateCycleStatus(context.Background(), cycles[0].ID, "whatever")
	assert.True(t, IsValidationError(err))

	err = svc.UpdateCycleStatus(context.Background(), "missing-id", models.CycleResolved)
	assert.True(t, errors.Is(err, ErrNotFound))
}
