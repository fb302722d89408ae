package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/aql"
	"github.com/graphannis-go/graphannis-core/internal/graph"
)

func TestFromQueryBuildsNodesAndEdges(t *testing.T) {
	q, err := aql.Parse(`cat="S" & tok="x" & #1 >* #2`, false)
	require.NoError(t, err)

	p := FromQuery(q)
	require.Len(t, p.Nodes, 2)
	require.Len(t, p.Edges, 1)
	assert.Equal(t, BaseAnnoEquality, p.Nodes[0].BaseSet)
	assert.Equal(t, BaseTokenEquality, p.Nodes[1].BaseSet)
	assert.Equal(t, []int{0}, p.JoinOrder)
}

func TestClassifyBaseSetVariants(t *testing.T) {
	cases := []struct {
		spec aql.NodeSpec
		want BaseSetKind
	}{
		{aql.NodeSpec{Kind: aql.SpecAny}, BaseAny},
		{aql.NodeSpec{Kind: aql.SpecToken}, BaseTokenScan},
		{aql.NodeSpec{Kind: aql.SpecToken, Value: "a"}, BaseTokenEquality},
		{aql.NodeSpec{Kind: aql.SpecToken, Value: "a", IsRegex: true}, BaseTokenRegex},
		{aql.NodeSpec{Kind: aql.SpecAnno, NS: "n", Name: "a"}, BaseAnnoExistence},
		{aql.NodeSpec{Kind: aql.SpecAnno, NS: "n", Name: "a", Value: "v"}, BaseAnnoEquality},
		{aql.NodeSpec{Kind: aql.SpecAnno, NS: "n", Name: "a", Value: "v", IsRegex: true}, BaseAnnoRegex},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, classifyBaseSet(c.spec))
	}
}

func TestComponentResolvesOperatorKind(t *testing.T) {
	c := Component(aql.Operator{Kind: aql.OpPointing, Layer: "dep", Name: "basic"})
	assert.Equal(t, graph.Pointing, c.Type)
	assert.Equal(t, "dep", c.Layer)
	assert.Equal(t, "basic", c.Name)

	c = Component(aql.Operator{Kind: aql.OpEqualValue})
	assert.Equal(t, graph.ComponentType(""), c.Type)

	c = Component(aql.Operator{Kind: aql.OpIdentity})
	assert.Equal(t, graph.ComponentType(""), c.Type)

	c = Component(aql.Operator{Kind: aql.OpNear})
	assert.Equal(t, graph.Ordering, c.Type)

	c = Component(aql.Operator{Kind: aql.OpInclusion})
	assert.Equal(t, graph.Coverage, c.Type)

	c = Component(aql.Operator{Kind: aql.OpOverlap})
	assert.Equal(t, graph.Coverage, c.Type)

	c = Component(aql.Operator{Kind: aql.OpLeftAlign})
	assert.Equal(t, graph.Coverage, c.Type)

	c = Component(aql.Operator{Kind: aql.OpRightAlign})
	assert.Equal(t, graph.Coverage, c.Type)
}
