package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/update"
)

// buildSpan wires three ordered tokens and one span covering the first
// two, exercising the same apply path a real import would (Ordering
// edges before Coverage edges, spec §4.2 "Write-path for updates").
func buildSpan(t *testing.T, g *Graph, wal *update.WAL) (tok1, tok2, tok3, span NodeID) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, g.ApplyUpdate(ctx, wal, update.Batch{Events: []update.Event{
		update.AddNode{Name: "tok1"},
		update.AddNodeLabel{Name: "tok1", NS: "annis", Key: "tok", Value: "a"},
		update.AddNode{Name: "tok2"},
		update.AddNodeLabel{Name: "tok2", NS: "annis", Key: "tok", Value: "b"},
		update.AddNode{Name: "tok3"},
		update.AddNodeLabel{Name: "tok3", NS: "annis", Key: "tok", Value: "c"},
		update.AddEdge{Source: "tok1", Target: "tok2", Layer: "annis", CType: "Ordering"},
		update.AddEdge{Source: "tok2", Target: "tok3", Layer: "annis", CType: "Ordering"},
		update.AddNode{Name: "span1"},
	}}, false))

	require.NoError(t, g.ApplyUpdate(ctx, wal, update.Batch{Events: []update.Event{
		update.AddEdge{Source: "span1", Target: "tok1", Layer: "default_ns", CType: "Coverage"},
		update.AddEdge{Source: "span1", Target: "tok2", Layer: "default_ns", CType: "Coverage"},
	}}, false))

	t1, _, _ := g.Anno.GetNodeIDFromName("tok1")
	t2, _, _ := g.Anno.GetNodeIDFromName("tok2")
	t3, _, _ := g.Anno.GetNodeIDFromName("tok3")
	sp, _, _ := g.Anno.GetNodeIDFromName("span1")
	return t1, t2, t3, sp
}

func TestApplyUpdateMaterializesLeftRightTokenAndInvertedCoverage(t *testing.T) {
	g, wal := newTestGraph(t)
	tok1, tok2, _, span := buildSpan(t, g, wal)

	left, right, ok, err := g.TokenRange(span)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok1, left)
	assert.Equal(t, tok2, right)

	icStorage, ok := g.Storage(derivedInvertedCoverage)
	require.True(t, ok)
	assert.ElementsMatch(t, []NodeID{span}, icStorage.OutgoingEdges(tok1))
	assert.ElementsMatch(t, []NodeID{span}, icStorage.OutgoingEdges(tok2))
}

func TestApplyUpdateRecomputesDerivedIndexesAfterEdgeRemoval(t *testing.T) {
	g, wal := newTestGraph(t)
	ctx := context.Background()
	tok1, tok2, tok3, span := buildSpan(t, g, wal)

	require.NoError(t, g.ApplyUpdate(ctx, wal, update.Batch{Events: []update.Event{
		update.DeleteEdge{Source: "span1", Target: "tok2", Layer: "default_ns", CType: "Coverage"},
		update.AddEdge{Source: "span1", Target: "tok3", Layer: "default_ns", CType: "Coverage"},
	}}, false))

	left, right, ok, err := g.TokenRange(span)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok1, left)
	assert.Equal(t, tok3, right)

	icStorage, ok := g.Storage(derivedInvertedCoverage)
	require.True(t, ok)
	assert.Empty(t, icStorage.OutgoingEdges(tok2))
	assert.ElementsMatch(t, []NodeID{span}, icStorage.OutgoingEdges(tok3))
}

func TestTokenRangeForTokenNodeIsItself(t *testing.T) {
	g, wal := newTestGraph(t)
	tok1, _, _, _ := buildSpan(t, g, wal)

	left, right, ok, err := g.TokenRange(tok1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok1, left)
	assert.Equal(t, tok1, right)
}

func TestTokenPrecedesOrEqual(t *testing.T) {
	g, wal := newTestGraph(t)
	tok1, tok2, tok3, _ := buildSpan(t, g, wal)
	ctx := context.Background()

	ok, err := g.TokenPrecedesOrEqual(ctx, tok1, tok2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.TokenPrecedesOrEqual(ctx, tok1, tok1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.TokenPrecedesOrEqual(ctx, tok3, tok1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecomputeDerivedSkipsRebuildWhenCoverageUntouched(t *testing.T) {
	g, wal := newTestGraph(t)
	_, _, _, span := buildSpan(t, g, wal)
	ctx := context.Background()

	require.NoError(t, g.ApplyUpdate(ctx, wal, update.Batch{Events: []update.Event{
		update.AddNodeLabel{Name: "span1", NS: "annis", Key: "cat", Value: "NP"},
	}}, false))

	left, right, ok, err := g.TokenRange(span)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, InvalidNodeID, left)
	assert.NotEqual(t, InvalidNodeID, right)

	value, ok, err := g.Anno.Get(anno.NodeItem(span), AnnoKey{NS: "annis", Name: "cat"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "NP", value)
}
