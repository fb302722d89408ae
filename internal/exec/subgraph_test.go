package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/graph/gs"
)

func TestSubgraphGathersContextAroundMatch(t *testing.T) {
	store := anno.NewMemStore()
	for i := graph.NodeID(0); i <= 6; i++ {
		require.NoError(t, store.Set(anno.NodeItem(i), graph.TokKey, "w"))
	}
	g := graph.New(t.TempDir(), store)
	require.NoError(t, g.EnsureLoaded([]graph.Component{graph.DefaultOrdering}))
	storage, ok := g.Storage(graph.DefaultOrdering)
	require.True(t, ok)
	for i := graph.NodeID(0); i < 6; i++ {
		require.NoError(t, storage.AddEdge(gs.Edge{Source: i, Target: i + 1}))
	}

	match := Tuple{{Node: 3}}
	result, err := Subgraph(context.Background(), g, store, match, 1, 1, "")
	require.NoError(t, err)
	assert.Contains(t, result.Nodes, graph.NodeID(3))
	assert.Contains(t, result.Nodes, graph.NodeID(4))
}
