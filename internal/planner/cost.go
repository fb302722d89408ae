// Package planner assigns cost estimates, join order, and per-join
// algorithm choice to an internal/plan.Plan (spec §4.5).
package planner

import (
	"github.com/graphannis-go/graphannis-core/internal/aql"
	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/graph/gs"
	"github.com/graphannis-go/graphannis-core/internal/plan"
)

// inverseCostRejectThreshold is the fan-out asymmetry above which
// evaluating a join via its inverse relation is rejected outright (spec
// §4.5: "rejected when fan-out asymmetry exceeds a threshold").
const inverseCostRejectThreshold = 20.0

// parallelThreshold is the outer-cardinality cutoff above which a
// nested-loop join is evaluated in parallel (spec §4.5).
const parallelThreshold = 10_000

// CostModel estimates base-set sizes and join selectivity from the
// annotation store's value-distribution statistics and each component's
// ComponentStats.
type CostModel struct {
	Anno  anno.Store
	Graph *graph.Graph
}

// BaseSetEstimate implements spec §4.5's "for every node spec the planner
// computes a base-set estimate using annotation statistics".
func (c *CostModel) BaseSetEstimate(n plan.Node) (uint64, error) {
	spec := n.Spec
	switch n.BaseSet {
	case plan.BaseTokenScan:
		if storage, ok := c.Graph.Storage(graph.DefaultOrdering); ok {
			return storage.Stats().Nodes, nil
		}
		return c.Anno.GuessMaxCount(graph.TokKey, "", "\xff")
	case plan.BaseTokenEquality:
		return c.Anno.GuessMaxCount(graph.TokKey, spec.Value, spec.Value)
	case plan.BaseTokenRegex:
		return c.Anno.GuessMaxCountRegex(graph.TokKey, spec.Value)
	case plan.BaseAnnoEquality:
		key := graph.AnnoKey{NS: spec.NS, Name: spec.Name}
		return c.Anno.GuessMaxCount(key, spec.Value, spec.Value)
	case plan.BaseAnnoRegex:
		key := graph.AnnoKey{NS: spec.NS, Name: spec.Name}
		return c.Anno.GuessMaxCountRegex(key, spec.Value)
	case plan.BaseAnnoExistence:
		key := graph.AnnoKey{NS: spec.NS, Name: spec.Name}
		return c.Anno.GuessMaxCount(key, "", "\xff")
	default: // BaseAny: unconstrained, only ever bound via a join
		return estimateTotalNodes(c.Graph), nil
	}
}

func estimateTotalNodes(g *graph.Graph) uint64 {
	var max uint64
	for _, c := range g.Components() {
		if s, ok := g.Storage(c); ok {
			if n := s.Stats().Nodes; n > max {
				max = n
			}
		}
	}
	return max
}

// Selectivity estimates the fraction of LHS tuples that join with at
// least one RHS tuple for op, given the statistics of the component it
// operates over (spec §4.5: "a textbook formula per operator using
// component fan-out statistics"). Where no sharper formula is grounded
// for an operator kind, a conservative constant stands in, documented at
// the call site.
func Selectivity(op aql.Operator, stats gs.ComponentStats) float64 {
	switch op.Kind {
	case aql.OpPrecedence, aql.OpNear:
		width := float64(op.Max - op.Min + 1)
		if op.Max < 0 {
			width = 8 // unbounded range: assume a generous default window
		}
		if stats.Nodes == 0 {
			return 0
		}
		return clamp01(width / float64(stats.Nodes))
	case aql.OpDominance, aql.OpPointing:
		if stats.Nodes == 0 {
			return 0
		}
		return clamp01(stats.FanOut.Avg / float64(stats.Nodes))
	case aql.OpInclusion, aql.OpOverlap:
		// No direct fan-out signal for span containment; 10% is a
		// deliberately conservative placeholder until real span-width
		// statistics are tracked (no pack example computes this).
		return 0.1
	case aql.OpEqualValue, aql.OpIdentity:
		if stats.Nodes == 0 {
			return 0
		}
		return clamp01(1.0 / float64(stats.Nodes))
	case aql.OpLeftAlign, aql.OpRightAlign:
		if stats.Nodes == 0 {
			return 0
		}
		return clamp01(2.0 / float64(stats.Nodes))
	default:
		return 1
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// InverseUsable reports whether evaluating op from RHS to LHS (its
// inverse) is viable, i.e. the fan-out asymmetry between the two
// directions does not exceed inverseCostRejectThreshold.
func InverseUsable(forwardStats, inverseStats gs.ComponentStats) bool {
	f := forwardStats.FanOut.Avg
	r := inverseStats.FanOut.Avg
	if f == 0 || r == 0 {
		return true
	}
	ratio := f / r
	if ratio < 1 {
		ratio = 1 / ratio
	}
	return ratio <= inverseCostRejectThreshold
}

// ChooseAlgorithm picks index-nested-loop when the inner side has an
// operator-compatible index (any graph storage answers reachability
// queries in sub-linear time, so "has an index" reduces to "the inner
// component is loaded"), nested-loop otherwise, with parallel evaluation
// above parallelThreshold outer cardinality (spec §4.5).
func ChooseAlgorithm(innerLoaded bool, outerCardinality uint64) (plan.JoinAlgorithm, bool) {
	if innerLoaded {
		return plan.AlgIndexNestedLoop, outerCardinality > parallelThreshold
	}
	return plan.AlgNestedLoop, outerCardinality > parallelThreshold
}
