package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/gs"
	"github.com/graphannis-go/graphannis-core/internal/plan"
)

// singleTupleIter yields exactly one fixed tuple, used as the outer side
// of a JoinIterator in tests.
type singleTupleIter struct {
	t    Tuple
	done bool
}

func (s *singleTupleIter) Next(ctx context.Context) (Tuple, bool, error) {
	if s.done {
		return nil, false, nil
	}
	s.done = true
	return s.t, true, nil
}

func TestJoinIteratorIndexNestedLoop(t *testing.T) {
	storage := gs.NewAdjacencyListStorage()
	require.NoError(t, storage.AddEdge(gs.Edge{Source: 1, Target: 2}))
	require.NoError(t, storage.AddEdge(gs.Edge{Source: 1, Target: 3}))

	outer := &singleTupleIter{t: Tuple{{Node: 1}, emptyMatch}}
	j := &JoinIterator{
		Outer:     outer,
		Storage:   storage,
		LHSIndex:  0,
		RHSIndex:  1,
		Min:       1,
		Max:       1,
		Algorithm: plan.AlgIndexNestedLoop,
	}

	var got []graph.NodeID
	for {
		tup, ok, err := j.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, tup[1].Node)
	}
	assert.ElementsMatch(t, []graph.NodeID{2, 3}, got)
}

func TestJoinIteratorNestedLoopFiltersByCandidate(t *testing.T) {
	storage := gs.NewAdjacencyListStorage()
	require.NoError(t, storage.AddEdge(gs.Edge{Source: 1, Target: 2}))

	outer := &singleTupleIter{t: Tuple{{Node: 1}, emptyMatch}}
	j := &JoinIterator{
		Outer:           outer,
		Storage:         storage,
		LHSIndex:        0,
		RHSIndex:        1,
		Min:             1,
		Max:             1,
		Algorithm:       plan.AlgNestedLoop,
		innerCandidates: []graph.NodeID{2, 99},
	}

	var got []graph.NodeID
	for {
		tup, ok, err := j.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, tup[1].Node)
	}
	assert.Equal(t, []graph.NodeID{2}, got)
}
