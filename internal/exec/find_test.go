package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
)

// sliceIter replays a fixed tuple slice, used to feed Find/Count in tests
// without building a full plan/planner/parser pipeline.
type sliceIter struct {
	tuples []Tuple
	pos    int
}

func (s *sliceIter) Next(ctx context.Context) (Tuple, bool, error) {
	if s.pos >= len(s.tuples) {
		return nil, false, nil
	}
	t := s.tuples[s.pos]
	s.pos++
	return t, true, nil
}

func TestFindSortsByDocumentThenNodeName(t *testing.T) {
	store := anno.NewMemStore()
	require.NoError(t, store.Set(anno.NodeItem(1), graph.NodeNameKey, "corpusA/doc1#tok1"))
	require.NoError(t, store.Set(anno.NodeItem(2), graph.NodeNameKey, "corpusB/doc1#tok1"))

	it := &sliceIter{tuples: []Tuple{
		{{Node: 1}}, {{Node: 2}},
	}}

	out, err := Find(context.Background(), store, it, FindOptions{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	// descending document path: corpusB sorts before corpusA
	assert.Equal(t, graph.NodeID(2), out[0][0].Node)
	assert.Equal(t, graph.NodeID(1), out[1][0].Node)
}

func TestFindAppliesOffsetAndLimit(t *testing.T) {
	store := anno.NewMemStore()
	for i := graph.NodeID(1); i <= 5; i++ {
		require.NoError(t, store.Set(anno.NodeItem(i), graph.NodeNameKey, "c/d#tok"))
	}
	tuples := make([]Tuple, 0, 5)
	for i := graph.NodeID(1); i <= 5; i++ {
		tuples = append(tuples, Tuple{{Node: i}})
	}
	it := &sliceIter{tuples: tuples}

	out, err := Find(context.Background(), store, it, FindOptions{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
