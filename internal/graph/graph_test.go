package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
)

func TestEnsureLoadedParallelCreatesAllComponents(t *testing.T) {
	g := New(t.TempDir(), anno.NewMemStore())
	cs := []Component{
		{Type: Ordering, Layer: "annis"},
		{Type: Pointing, Layer: "dep", Name: "basic"},
		{Type: Dominance, Layer: "syntax", Name: "const"},
	}
	require.NoError(t, g.EnsureLoadedParallel(context.Background(), cs, 2))

	loaded := g.Components()
	assert.Len(t, loaded, len(cs))
	for _, c := range cs {
		_, ok := g.Storage(c)
		assert.True(t, ok, "component %s should be loaded", c)
	}
}

func TestStorageAbsentBeforeTouch(t *testing.T) {
	g := New(t.TempDir(), anno.NewMemStore())
	_, ok := g.Storage(Component{Type: Ordering, Layer: "annis"})
	assert.False(t, ok)
}
