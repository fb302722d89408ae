package aql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleAnnotationEquality(t *testing.T) {
	q, err := Parse(`cat="S"`, false)
	require.NoError(t, err)
	require.Len(t, q.Nodes, 1)
	assert.Equal(t, SpecAnno, q.Nodes[0].Kind)
	assert.Equal(t, "cat", q.Nodes[0].Name)
	assert.Equal(t, "S", q.Nodes[0].Value)
}

func TestParseConjunctionWithRefOperator(t *testing.T) {
	q, err := Parse(`cat="S" & tok="Bilharziose" & #1 >* #2`, false)
	require.NoError(t, err)
	require.Len(t, q.Nodes, 2)
	require.Len(t, q.Operators, 1)
	op := q.Operators[0]
	assert.Equal(t, OpDominance, op.Kind)
	assert.Equal(t, 1, op.LHS)
	assert.Equal(t, 2, op.RHS)
	assert.Equal(t, 1, op.Min)
	assert.Equal(t, -1, op.Max)
}

func TestParsePrecedenceChainWithRange(t *testing.T) {
	q, err := Parse(`pos="NN" .2,10 pos="ART" . pos="NN"`, false)
	require.NoError(t, err)
	require.Len(t, q.Nodes, 3)
	require.Len(t, q.Operators, 2)

	assert.Equal(t, OpPrecedence, q.Operators[0].Kind)
	assert.Equal(t, 2, q.Operators[0].Min)
	assert.Equal(t, 10, q.Operators[0].Max)

	assert.Equal(t, OpPrecedence, q.Operators[1].Kind)
	assert.Equal(t, 1, q.Operators[1].Min)
	assert.Equal(t, 1, q.Operators[1].Max)
}

func TestParseRegexAndNegation(t *testing.T) {
	q, err := Parse(`pos!=/V.*/`, false)
	require.NoError(t, err)
	require.Len(t, q.Nodes, 1)
	n := q.Nodes[0]
	assert.True(t, n.Negated)
	assert.True(t, n.IsRegex)
	assert.Equal(t, "V.*", n.Value)
}

func TestParsePointingWithComponentName(t *testing.T) {
	q, err := Parse(`"a" ->dep "b"`, false)
	require.NoError(t, err)
	require.Len(t, q.Operators, 1)
	assert.Equal(t, OpPointing, q.Operators[0].Kind)
	assert.Equal(t, "dep", q.Operators[0].Name)
}

func TestParseUndeclaredReferenceIsError(t *testing.T) {
	_, err := Parse(`cat="S" & #1 >* #2`, false)
	assert.Error(t, err)
}

func TestNormalizeRejectsNegatedUnboundOperands(t *testing.T) {
	q := &Query{
		Nodes: []NodeSpec{{Index: 1, Kind: SpecAny}, {Index: 2, Kind: SpecAny}},
		Operators: []Operator{
			{Kind: OpIdentity, LHS: 1, RHS: 2, Negated: true},
		},
	}
	assert.Error(t, q.Normalize())
}

func TestQuirksModeInsertsIdentityJoin(t *testing.T) {
	q, err := Parse(`cat="S" & cat="S"`, true)
	require.NoError(t, err)
	require.Len(t, q.Nodes, 2)

	found := false
	for _, op := range q.Operators {
		if op.Kind == OpIdentity && op.LHS == 1 && op.RHS == 2 {
			found = true
		}
	}
	assert.True(t, found, "expected an inserted quirks-mode identity join")
}

func TestQuirksModeOffDoesNotInsertIdentityJoin(t *testing.T) {
	q, err := Parse(`cat="S" & cat="S"`, false)
	require.NoError(t, err)
	assert.Empty(t, q.Operators)
}
