package exec

import (
	"context"
	"strconv"

	"github.com/graphannis-go/graphannis-core/internal/aql"
	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/graph/gs"
	"github.com/graphannis-go/graphannis-core/internal/plan"
	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

// Build compiles a cost-annotated plan.Plan into a single Matches
// pipeline: one base-set iterator for the first node p.JoinOrder touches,
// then one JoinIterator per remaining edge in join order, each wrapping
// the pipeline built so far (spec §4.6: "the executor walks the plan
// graph in join order"). internal/planner has already chosen JoinOrder
// and every edge's Algorithm by the time Build runs.
//
// Join order is assumed connected: every edge after the first binds
// exactly one new plan-node index given what is already bound. A plan
// whose join order leaves an edge with neither side bound (a disjoint
// query graph reordered so components interleave) is rejected with
// ImpossibleSearch rather than silently cross-joined; internal/planner's
// random-restart search never produces such an order today since it only
// permutes a single connected edge list, but Build still checks rather
// than trusting that invariant silently.
func Build(ctx context.Context, g *graph.Graph, store anno.Store, p *plan.Plan) (Matches, error) {
	arity := len(p.Nodes)
	if arity == 0 {
		return nil, goerrors.NewImpossibleSearch("empty query")
	}
	if len(p.Edges) == 0 {
		if arity != 1 {
			return nil, goerrors.NewImpossibleSearch("disconnected query: multiple nodes with no operators between them")
		}
		return baseSetFor(store, arity, 0, p.Nodes[0])
	}

	bound := make(map[int]bool, arity)
	firstOp := p.Edges[p.JoinOrder[0]].Op
	start := firstOp.LHS - 1
	if p.Nodes[start].BaseSet == plan.BaseAny && p.Nodes[firstOp.RHS-1].BaseSet != plan.BaseAny {
		start = firstOp.RHS - 1 // LHS is an unconstrained reference; bind the constrained side first
	}
	cur, err := baseSetFor(store, arity, start, p.Nodes[start])
	if err != nil {
		return nil, err
	}
	bound[start] = true

	for _, idx := range p.JoinOrder {
		edge := &p.Edges[idx]
		lhsIdx, rhsIdx := edge.Op.LHS-1, edge.Op.RHS-1

		var outerIdx, innerIdx int
		var inverse bool
		switch {
		case bound[lhsIdx] && !bound[rhsIdx]:
			outerIdx, innerIdx, inverse = lhsIdx, rhsIdx, false
		case bound[rhsIdx] && !bound[lhsIdx]:
			outerIdx, innerIdx, inverse = rhsIdx, lhsIdx, true
		case bound[lhsIdx] && bound[rhsIdx]:
			continue // both sides already bound elsewhere (e.g. a redundant cycle edge); nothing new to join
		default:
			return nil, goerrors.NewImpossibleSearch("join order leaves an edge with neither side bound")
		}

		switch edge.Op.Kind {
		case aql.OpEqualValue, aql.OpIdentity, aql.OpInclusion, aql.OpOverlap, aql.OpLeftAlign, aql.OpRightAlign:
			pred, err := predicateFor(g, store, edge.Op.Kind)
			if err != nil {
				return nil, err
			}
			seed, err := baseSetFor(store, arity, innerIdx, p.Nodes[innerIdx])
			if err != nil {
				return nil, err
			}
			cands, err := MaterializeMatches(ctx, seed, innerIdx)
			if err != nil {
				return nil, err
			}
			cur = &PredicateJoinIterator{
				Outer:      cur,
				Candidates: cands,
				LHSIndex:   lhsIdx,
				RHSIndex:   rhsIdx,
				Inverse:    inverse,
				Negated:    edge.Op.Negated,
				Predicate:  pred,
			}
			bound[innerIdx] = true
			continue
		}

		storage, ok := resolveStorage(g, plan.Component(edge.Op))
		if !ok {
			return nil, goerrors.NewImpossibleSearch("no loaded component for operator " + string(edge.Op.Kind))
		}

		ji := &JoinIterator{
			Outer:     cur,
			Storage:   storage,
			LHSIndex:  outerIdx,
			RHSIndex:  innerIdx,
			Min:       edge.Op.Min,
			Max:       edge.Op.Max,
			Inverse:   inverse,
			Algorithm: edge.Algorithm,
			Symmetric: edge.Op.Kind == aql.OpNear,
		}
		// Index nested-loop only ever probes forward from Outer's bound
		// node (Storage.FindConnected has no reverse form); binding the
		// operator's LHS from an already-bound RHS, or a symmetric near
		// join, always runs nested-loop against a materialized candidate
		// set instead, regardless of what internal/planner chose assuming
		// the forward direction.
		if inverse || ji.Symmetric || edge.Algorithm == plan.AlgNestedLoop {
			ji.Algorithm = plan.AlgNestedLoop
			seed, err := baseSetFor(store, arity, innerIdx, p.Nodes[innerIdx])
			if err != nil {
				return nil, err
			}
			cands, err := MaterializeNodes(ctx, seed, innerIdx)
			if err != nil {
				return nil, err
			}
			ji.innerCandidates = cands
		}

		cur = ji
		bound[innerIdx] = true
	}
	return cur, nil
}

// predicateFor builds the tuple predicate backing a non-reachability
// operator (spec §4.4): value equality and identity need only the
// annotation store, inclusion/overlap/alignment need g's LeftToken/
// RightToken derived indexes and default Ordering order.
func predicateFor(g *graph.Graph, store anno.Store, kind aql.OperatorKind) (Predicate, error) {
	switch kind {
	case aql.OpEqualValue:
		return EqualValuePredicate(store), nil
	case aql.OpIdentity:
		return IdentityPredicate(), nil
	case aql.OpInclusion, aql.OpOverlap, aql.OpLeftAlign, aql.OpRightAlign:
		return RangePredicate(g, kind), nil
	default:
		return nil, goerrors.NewImpossibleSearch("operator " + string(kind) + " has no predicate")
	}
}

// baseSetFor builds n's base-set iterator (spec §4.5). A BaseAny node (an
// unconstrained node reference, which FromQuery emits for SpecAny) has no
// base set of its own, so baseSetFor returns ImpossibleSearch for it; a
// plan whose sole node is unconstrained therefore fails to build.
func baseSetFor(store anno.Store, arity, index int, n plan.Node) (Matches, error) {
	spec := n.Spec
	switch n.BaseSet {
	case plan.BaseTokenScan:
		return TokenScan(store, arity, index)
	case plan.BaseTokenEquality:
		return AnnoEquality(store, arity, index, graph.TokKey, spec.Value)
	case plan.BaseTokenRegex:
		return AnnoRegex(store, arity, index, graph.TokKey, spec.Value)
	case plan.BaseAnnoEquality:
		key := graph.AnnoKey{NS: spec.NS, Name: spec.Name}
		return AnnoEquality(store, arity, index, key, spec.Value)
	case plan.BaseAnnoRegex:
		key := graph.AnnoKey{NS: spec.NS, Name: spec.Name}
		return AnnoRegex(store, arity, index, key, spec.Value)
	case plan.BaseAnnoExistence:
		key := graph.AnnoKey{NS: spec.NS, Name: spec.Name}
		return AnnoExistence(store, arity, index, key)
	default:
		return nil, goerrors.NewImpossibleSearch("node #" + strconv.Itoa(spec.Index) + " is unconstrained and never bound by a join")
	}
}

// resolveStorage looks up c's storage, falling back to the first loaded
// component of the same ComponentType when c names no specific layer/name
// (an operator with no edge-kind filter, e.g. bare "->" with no "->name",
// searches "every loaded component of the operator's natural type" per
// plan.Component's doc comment). When several same-typed components are
// loaded, only the first one g.Components returns (map iteration order)
// is used; the others are not searched.
func resolveStorage(g *graph.Graph, c graph.Component) (gs.GraphStorage, bool) {
	if s, ok := g.Storage(c); ok {
		return s, true
	}
	if c.Layer != "" || c.Name != "" {
		return nil, false
	}
	for _, cc := range g.Components() {
		if cc.Type == c.Type {
			if s, ok := g.Storage(cc); ok {
				return s, true
			}
		}
	}
	return nil, false
}
