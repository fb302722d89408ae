package exec

import (
	"context"

	"github.com/graphannis-go/graphannis-core/internal/aql"
	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
)

// Predicate tests whether lhs and rhs (in the operator's original
// left-to-right sense, each carrying whatever annotation key its base
// set matched under) satisfy one of the tuple-level relations spec §4.4
// defines that are not graph-reachability joins: equal-value, identity,
// inclusion, overlap and the two alignment operators.
type Predicate func(ctx context.Context, lhs, rhs Match) (bool, error)

// PredicateJoinIterator evaluates one plan.Edge whose operator is a tuple
// predicate rather than a GraphStorage reachability probe (JoinIterator),
// materializing the unbound side's base set once and testing Predicate
// against every candidate per outer tuple — the same nested-loop shape
// JoinIterator falls back to when no index is available, since none of
// these predicates has one.
type PredicateJoinIterator struct {
	Outer      Matches
	Candidates []Match
	LHSIndex   int  // plan-node index of the operator's LHS (Op.LHS-1)
	RHSIndex   int  // plan-node index of the operator's RHS (Op.RHS-1)
	Inverse    bool // true when Outer is already bound at RHSIndex, not LHSIndex
	Negated    bool
	Predicate  Predicate

	current Tuple
	pending []Match
}

func (j *PredicateJoinIterator) Next(ctx context.Context) (Tuple, bool, error) {
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		if len(j.pending) > 0 {
			target := j.pending[0]
			j.pending = j.pending[1:]
			idx := j.RHSIndex
			if j.Inverse {
				idx = j.LHSIndex
			}
			out := append(Tuple(nil), j.current...)
			out[idx] = target
			return out, true, nil
		}

		outer, ok, err := j.Outer.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		j.current = outer

		var bound Match
		if j.Inverse {
			bound = outer[j.RHSIndex]
		} else {
			bound = outer[j.LHSIndex]
		}

		var targets []Match
		for _, cand := range j.Candidates {
			lhs, rhs := bound, cand
			if j.Inverse {
				lhs, rhs = cand, bound
			}
			satisfies, err := j.Predicate(ctx, lhs, rhs)
			if err != nil {
				return nil, false, err
			}
			if j.Negated {
				satisfies = !satisfies
			}
			if satisfies {
				targets = append(targets, cand)
			}
		}
		j.pending = targets
	}
}

// MaterializeMatches drains seed into a plain slice of its Match values at
// index, the predicate-join analogue of MaterializeNodes: it keeps each
// candidate's matched annotation key, which EqualValuePredicate needs and
// a bare graph.NodeID would have discarded.
func MaterializeMatches(ctx context.Context, seed Matches, index int) ([]Match, error) {
	var out []Match
	for {
		t, ok, err := seed.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, t[index])
	}
}

// valueOf looks up the value of the key m.Anno matched, or graph.TokKey
// when m carries no key (an unconstrained node reference joined in by
// identity or value equality rather than an annotation constraint of its
// own).
func valueOf(store anno.Store, m Match) (string, bool, error) {
	key := graph.TokKey
	if m.Anno != nil {
		key = *m.Anno
	}
	return store.Get(anno.NodeItem(m.Node), key)
}

// EqualValuePredicate builds the "==" predicate (spec §4.4): lhs and rhs
// carry an equal string value under whichever annotation key each side
// matched on.
func EqualValuePredicate(store anno.Store) Predicate {
	return func(ctx context.Context, lhs, rhs Match) (bool, error) {
		lv, ok, err := valueOf(store, lhs)
		if err != nil || !ok {
			return false, err
		}
		rv, ok, err := valueOf(store, rhs)
		if err != nil || !ok {
			return false, err
		}
		return lv == rv, nil
	}
}

// IdentityPredicate builds the "_=_" predicate: lhs and rhs are the same
// node.
func IdentityPredicate() Predicate {
	return func(ctx context.Context, lhs, rhs Match) (bool, error) {
		return lhs.Node == rhs.Node, nil
	}
}

// tokenRangeGraph is the subset of *graph.Graph the range predicates need,
// satisfied directly by *graph.Graph; declared so this package depends on
// only the two methods it actually calls.
type tokenRangeGraph interface {
	TokenRange(n graph.NodeID) (left, right graph.NodeID, ok bool, err error)
	TokenPrecedesOrEqual(ctx context.Context, a, b graph.NodeID) (bool, error)
}

// RangePredicate builds the inclusion/overlap/left-align/right-align
// predicates (spec §4.4) from g's LeftToken/RightToken derived indexes
// and the default Ordering component's precedence order (graph.Graph.
// TokenRange, graph.Graph.TokenPrecedesOrEqual).
func RangePredicate(g tokenRangeGraph, kind aql.OperatorKind) Predicate {
	return func(ctx context.Context, lhs, rhs Match) (bool, error) {
		lLeft, lRight, ok, err := g.TokenRange(lhs.Node)
		if err != nil || !ok {
			return false, err
		}
		rLeft, rRight, ok, err := g.TokenRange(rhs.Node)
		if err != nil || !ok {
			return false, err
		}
		switch kind {
		case aql.OpInclusion: // lhs includes rhs: lhs's range fully covers rhs's
			ok, err := g.TokenPrecedesOrEqual(ctx, lLeft, rLeft)
			if err != nil || !ok {
				return false, err
			}
			return g.TokenPrecedesOrEqual(ctx, rRight, lRight)
		case aql.OpOverlap:
			ok, err := g.TokenPrecedesOrEqual(ctx, lLeft, rRight)
			if err != nil || !ok {
				return false, err
			}
			return g.TokenPrecedesOrEqual(ctx, rLeft, lRight)
		case aql.OpLeftAlign:
			return lLeft == rLeft, nil
		case aql.OpRightAlign:
			return lRight == rRight, nil
		default:
			return false, nil
		}
	}
}
