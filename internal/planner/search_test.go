package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/aql"
	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/plan"
)

func TestSearchPlanAssignsJoinOrderAndAlgorithm(t *testing.T) {
	store := anno.NewMemStore()
	catKey := graph.AnnoKey{NS: "annis", Name: "cat"}
	require.NoError(t, store.Set(anno.NodeItem(1), catKey, "S"))
	require.NoError(t, store.Set(anno.NodeItem(2), catKey, "NP"))

	g := graph.New(t.TempDir(), store)
	cm := &CostModel{Anno: store, Graph: g}

	q, err := aql.Parse(`cat="S" & cat="NP" & #1 >* #2`, false)
	require.NoError(t, err)
	p := plan.FromQuery(q)

	s := NewSearch(cm)
	s.Restarts = 4
	s.MaxParallel = 2
	require.NoError(t, s.Plan(context.Background(), g, p))

	require.Len(t, p.JoinOrder, 1)
	assert.Equal(t, 0, p.JoinOrder[0])
	assert.Equal(t, plan.AlgNestedLoop, p.Edges[0].Algorithm)
}

func TestSearchPlanNoEdgesIsNoop(t *testing.T) {
	store := anno.NewMemStore()
	g := graph.New(t.TempDir(), store)
	cm := &CostModel{Anno: store, Graph: g}

	q, err := aql.Parse(`cat="S"`, false)
	require.NoError(t, err)
	p := plan.FromQuery(q)

	s := NewSearch(cm)
	require.NoError(t, s.Plan(context.Background(), g, p))
	assert.Empty(t, p.Edges)
}

func TestRandomOrderIsAPermutation(t *testing.T) {
	order := randomOrder(5, 42)
	seen := make(map[int]bool)
	for _, v := range order {
		seen[v] = true
	}
	assert.Len(t, seen, 5)
}
