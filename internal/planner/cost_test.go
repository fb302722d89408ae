package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/aql"
	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/graph/gs"
	"github.com/graphannis-go/graphannis-core/internal/plan"
)

func TestBaseSetEstimateAnnoEquality(t *testing.T) {
	store := anno.NewMemStore()
	catKey := graph.AnnoKey{NS: "annis", Name: "cat"}
	require.NoError(t, store.Set(anno.NodeItem(1), catKey, "S"))
	require.NoError(t, store.Set(anno.NodeItem(2), catKey, "S"))
	require.NoError(t, store.Set(anno.NodeItem(3), catKey, "NP"))

	g := graph.New(t.TempDir(), store)
	cm := &CostModel{Anno: store, Graph: g}

	n := plan.Node{
		Spec:    aql.NodeSpec{Kind: aql.SpecAnno, NS: "annis", Name: "cat", Value: "S"},
		BaseSet: plan.BaseAnnoEquality,
	}
	count, err := cm.BaseSetEstimate(n)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestSelectivityPrecedenceUsesWidth(t *testing.T) {
	stats := gs.ComponentStats{Nodes: 100}
	op := aql.Operator{Kind: aql.OpPrecedence, Min: 1, Max: 1}
	assert.InDelta(t, 0.01, Selectivity(op, stats), 1e-9)
}

func TestSelectivityDominanceUsesFanOut(t *testing.T) {
	stats := gs.ComponentStats{Nodes: 50, FanOut: gs.FanOutStats{Avg: 5}}
	op := aql.Operator{Kind: aql.OpDominance}
	assert.InDelta(t, 0.1, Selectivity(op, stats), 1e-9)
}

func TestSelectivityZeroNodesIsZero(t *testing.T) {
	stats := gs.ComponentStats{}
	op := aql.Operator{Kind: aql.OpDominance}
	assert.Equal(t, 0.0, Selectivity(op, stats))
}

func TestInverseUsableRejectsBeyondThreshold(t *testing.T) {
	forward := gs.ComponentStats{FanOut: gs.FanOutStats{Avg: 100}}
	inverse := gs.ComponentStats{FanOut: gs.FanOutStats{Avg: 1}}
	assert.False(t, InverseUsable(forward, inverse))
}

func TestInverseUsableAcceptsWithinThreshold(t *testing.T) {
	forward := gs.ComponentStats{FanOut: gs.FanOutStats{Avg: 5}}
	inverse := gs.ComponentStats{FanOut: gs.FanOutStats{Avg: 1}}
	assert.True(t, InverseUsable(forward, inverse))
}

func TestChooseAlgorithmPrefersIndexNestedLoopWhenLoaded(t *testing.T) {
	alg, parallel := ChooseAlgorithm(true, 5)
	assert.Equal(t, plan.AlgIndexNestedLoop, alg)
	assert.False(t, parallel)

	alg, parallel = ChooseAlgorithm(false, 20_000)
	assert.Equal(t, plan.AlgNestedLoop, alg)
	assert.True(t, parallel)
}
