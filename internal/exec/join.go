package exec

import (
	"context"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/gs"
	"github.com/graphannis-go/graphannis-core/internal/plan"
)

// JoinIterator evaluates one plan.Edge by probing a graph storage's
// reachability contract for each tuple the outer iterator produces (spec
// §4.5/§4.6: index nested-loop when the inner side has a compatible
// index, nested-loop otherwise).
//
// Grounded on application/mediator/behaviors.go's pipeline-of-stages
// shape (teacher): each stage wraps the previous one and is pulled by its
// caller, generalized here from "decorate a command handler" to "wrap an
// inner Matches with a join condition".
type JoinIterator struct {
	Outer     Matches
	Storage   gs.GraphStorage
	LHSIndex  int // plan-node index already bound by Outer
	RHSIndex  int // plan-node index this join binds
	Min, Max  int
	Inverse   bool
	Algorithm plan.JoinAlgorithm

	// Symmetric marks the near operator ("^*"): candidates count as
	// connected when reachable in either direction within [min,max], not
	// just forward along the component's stored edge direction (spec
	// §4.4: near, unlike precedence, does not require lhs before rhs).
	// Always evaluated nested-loop, since Storage has no reverse index to
	// drive an index nested-loop in the backward direction.
	Symmetric bool

	// innerCandidates materializes the RHS base set once, for nested-loop
	// evaluation (no index available on Storage); unused by index
	// nested-loop, which probes Storage directly per outer tuple.
	innerCandidates []graph.NodeID

	current Tuple
	pending []graph.NodeID
}

func (j *JoinIterator) Next(ctx context.Context) (Tuple, bool, error) {
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		if len(j.pending) > 0 {
			target := j.pending[0]
			j.pending = j.pending[1:]
			out := append(Tuple(nil), j.current...)
			out[j.RHSIndex] = Match{Node: target}
			return out, true, nil
		}

		outer, ok, err := j.Outer.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		j.current = outer
		source := outer[j.LHSIndex].Node

		switch j.Algorithm {
		case plan.AlgIndexNestedLoop:
			var targets []graph.NodeID
			if err := j.Storage.FindConnected(ctx, source, j.Min, j.Max, func(n graph.NodeID) bool {
				targets = append(targets, n)
				return true
			}); err != nil {
				return nil, false, err
			}
			j.pending = targets
		default: // AlgNestedLoop: probe each materialized candidate explicitly
			var targets []graph.NodeID
			for _, cand := range j.innerCandidates {
				connected, err := j.connected(ctx, source, cand)
				if err != nil {
					return nil, false, err
				}
				if connected {
					targets = append(targets, cand)
				}
			}
			j.pending = targets
		}
	}
}

// connected tests reachability between source and cand for the
// nested-loop path: forward only (respecting Inverse, since that still
// runs forward through the component with the candidate as source
// instead of target), or in both directions when Symmetric.
func (j *JoinIterator) connected(ctx context.Context, source, cand graph.NodeID) (bool, error) {
	if j.Symmetric {
		forward, err := j.Storage.IsConnected(ctx, source, cand, j.Min, j.Max)
		if err != nil || forward {
			return forward, err
		}
		return j.Storage.IsConnected(ctx, cand, source, j.Min, j.Max)
	}
	if j.Inverse {
		return j.Storage.IsConnected(ctx, cand, source, j.Min, j.Max)
	}
	return j.Storage.IsConnected(ctx, source, cand, j.Min, j.Max)
}

// MaterializeNodes drains seed (a node-bearing single-column Matches, as
// produced by the base-set constructors) into a plain slice, for
// nested-loop's candidate set.
func MaterializeNodes(ctx context.Context, seed Matches, index int) ([]graph.NodeID, error) {
	var out []graph.NodeID
	for {
		t, ok, err := seed.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, t[index].Node)
	}
}
