package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/update"
)

func newTestGraph(t *testing.T) (*Graph, *update.WAL) {
	t.Helper()
	g := New(t.TempDir(), anno.NewMemStore())
	wal := update.OpenWAL(g.CorpusDir)
	return g, wal
}

func TestApplyUpdateAddNodeAndLabel(t *testing.T) {
	g, wal := newTestGraph(t)
	ctx := context.Background()

	batch := update.Batch{Events: []update.Event{
		update.AddNode{Name: "doc1#tok1", Type: "node"},
		update.AddNodeLabel{Name: "doc1#tok1", NS: "annis", Key: "tok", Value: "Hello"},
	}}
	require.NoError(t, g.ApplyUpdate(ctx, wal, batch, false))

	id, ok, err := g.Anno.GetNodeIDFromName("doc1#tok1")
	require.NoError(t, err)
	require.True(t, ok)

	value, ok, err := g.Anno.Get(anno.NodeItem(id), AnnoKey{NS: "annis", Name: "tok"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hello", value)
}

func TestApplyUpdateAddEdgeCreatesImplicitNodes(t *testing.T) {
	g, wal := newTestGraph(t)
	ctx := context.Background()

	batch := update.Batch{Events: []update.Event{
		update.AddEdge{Source: "tok1", Target: "tok2", Layer: "annis", CType: "Ordering"},
	}}
	require.NoError(t, g.ApplyUpdate(ctx, wal, batch, false))

	src, ok, err := g.Anno.GetNodeIDFromName("tok1")
	require.NoError(t, err)
	require.True(t, ok)
	tgt, ok, err := g.Anno.GetNodeIDFromName("tok2")
	require.NoError(t, err)
	require.True(t, ok)

	c := Component{Type: Ordering, Layer: "annis"}
	storage, ok := g.Storage(c)
	require.True(t, ok)
	assert.Equal(t, []NodeID{tgt}, storage.OutgoingEdges(src))
}

func TestApplyUpdateDeleteNodeRemovesIncidentEdges(t *testing.T) {
	g, wal := newTestGraph(t)
	ctx := context.Background()

	require.NoError(t, g.ApplyUpdate(ctx, wal, update.Batch{Events: []update.Event{
		update.AddEdge{Source: "a", Target: "b", Layer: "annis", CType: "Ordering"},
		update.AddEdge{Source: "b", Target: "c", Layer: "annis", CType: "Ordering"},
	}}, false))

	require.NoError(t, g.ApplyUpdate(ctx, wal, update.Batch{Events: []update.Event{
		update.DeleteNode{Name: "b"},
	}}, false))

	c := Component{Type: Ordering, Layer: "annis"}
	storage, ok := g.Storage(c)
	require.True(t, ok)

	aID, _, _ := g.Anno.GetNodeIDFromName("a")
	assert.Empty(t, storage.OutgoingEdges(aID))

	_, ok, err := g.Anno.GetNodeIDFromName("b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApplyUpdateDuplicateAddNodeIsNoop(t *testing.T) {
	g, wal := newTestGraph(t)
	ctx := context.Background()
	batch := update.Batch{Events: []update.Event{
		update.AddNode{Name: "n1", Type: "node"},
		update.AddNode{Name: "n1", Type: "node"},
	}}
	require.NoError(t, g.ApplyUpdate(ctx, wal, batch, false))

	_, ok, err := g.Anno.GetNodeIDFromName("n1")
	require.NoError(t, err)
	assert.True(t, ok)
}
