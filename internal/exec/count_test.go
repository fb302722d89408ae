package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
)

func TestCountMatchesAndDistinctDocuments(t *testing.T) {
	store := anno.NewMemStore()
	require.NoError(t, store.Set(anno.NodeItem(1), graph.NodeNameKey, "corpus/doc1#1"))
	require.NoError(t, store.Set(anno.NodeItem(2), graph.NodeNameKey, "corpus/doc1#2"))
	require.NoError(t, store.Set(anno.NodeItem(3), graph.NodeNameKey, "corpus/doc2#1"))

	it := &sliceIter{tuples: []Tuple{
		{{Node: 1}}, {{Node: 2}}, {{Node: 3}},
	}}

	res, err := Count(context.Background(), store, it)
	require.NoError(t, err)
	assert.Equal(t, 3, res.MatchCount)
	assert.Equal(t, 2, res.DocumentCount)
}
