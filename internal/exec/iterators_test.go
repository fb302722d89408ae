package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
)

func TestAnnoEqualityIteratesMatchingNodes(t *testing.T) {
	store := anno.NewMemStore()
	catKey := graph.AnnoKey{NS: "annis", Name: "cat"}
	require.NoError(t, store.Set(anno.NodeItem(1), catKey, "S"))
	require.NoError(t, store.Set(anno.NodeItem(2), catKey, "S"))
	require.NoError(t, store.Set(anno.NodeItem(3), catKey, "NP"))

	it, err := AnnoEquality(store, 1, 0, catKey, "S")
	require.NoError(t, err)

	var got []graph.NodeID
	for {
		tup, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, tup[0].Node)
	}
	assert.ElementsMatch(t, []graph.NodeID{1, 2}, got)
}

func TestBaseSetIterRespectsCancelledContext(t *testing.T) {
	store := anno.NewMemStore()
	catKey := graph.AnnoKey{NS: "annis", Name: "cat"}
	require.NoError(t, store.Set(anno.NodeItem(1), catKey, "S"))

	it, err := AnnoEquality(store, 1, 0, catKey, "S")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = it.Next(ctx)
	assert.Error(t, err)
}

func TestTokenScanUsesTokKey(t *testing.T) {
	store := anno.NewMemStore()
	require.NoError(t, store.Set(anno.NodeItem(5), graph.TokKey, "hello"))

	it, err := TokenScan(store, 1, 0)
	require.NoError(t, err)
	tup, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, graph.NodeID(5), tup[0].Node)
}
