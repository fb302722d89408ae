// Package plan holds the normalized node/operator DAG the planner
// (internal/planner) assigns cost and algorithm choices to, and the
// executor (internal/exec) ultimately walks.
//
// Grounded on application/queries/* (teacher): small, explicit structs
// dispatched by kind, one per REST endpoint there, one per AQL plan-node/
// edge here.
package plan

import (
	"github.com/graphannis-go/graphannis-core/internal/aql"
	"github.com/graphannis-go/graphannis-core/internal/graph"
)

// BaseSetKind classifies how a node's candidate set is produced before any
// join runs (spec §4.5: "base-set iterators may specialize").
type BaseSetKind int

const (
	BaseAnnoEquality BaseSetKind = iota
	BaseAnnoRegex
	BaseAnnoExistence
	BaseTokenScan     // direct scan of the default Ordering component's source nodes
	BaseTokenEquality
	BaseTokenRegex
	BaseAny // unconstrained node reference, must be bound by a join
)

// Node is one plan-graph node, derived 1:1 from an aql.NodeSpec.
type Node struct {
	Index   int
	Spec    aql.NodeSpec
	BaseSet BaseSetKind
}

// JoinAlgorithm is the planner's per-edge choice (spec §4.5).
type JoinAlgorithm int

const (
	AlgUnassigned JoinAlgorithm = iota
	AlgIndexNestedLoop
	AlgNestedLoop
)

// Edge is one plan-graph edge, derived 1:1 from an aql.Operator, annotated
// by the planner with a cost estimate and evaluation strategy.
type Edge struct {
	Op        aql.Operator
	Algorithm JoinAlgorithm
	Parallel  bool
	Inverse   bool // evaluate RHS->LHS using the operator's inverse relation
	ExpectedIntermediateSize float64
}

// Plan is the full normalized join graph for one query, plus the join
// evaluation order chosen by internal/planner's search.
type Plan struct {
	Nodes     []Node
	Edges     []Edge
	JoinOrder []int // indexes into Edges, in evaluation order
}

// FromQuery builds an unassigned Plan (no costs, no algorithm choice, the
// identity join order) straight from a parsed aql.Query; internal/planner
// fills in the rest.
func FromQuery(q *aql.Query) *Plan {
	p := &Plan{
		Nodes:     make([]Node, len(q.Nodes)),
		Edges:     make([]Edge, len(q.Operators)),
		JoinOrder: make([]int, len(q.Operators)),
	}
	for i, spec := range q.Nodes {
		p.Nodes[i] = Node{Index: spec.Index, Spec: spec, BaseSet: classifyBaseSet(spec)}
	}
	for i, op := range q.Operators {
		p.Edges[i] = Edge{Op: op}
	}
	for i := range p.JoinOrder {
		p.JoinOrder[i] = i
	}
	return p
}

func classifyBaseSet(spec aql.NodeSpec) BaseSetKind {
	switch spec.Kind {
	case aql.SpecAny:
		return BaseAny
	case aql.SpecToken:
		switch {
		case spec.Value == "":
			return BaseTokenScan
		case spec.IsRegex:
			return BaseTokenRegex
		default:
			return BaseTokenEquality
		}
	default: // SpecAnno
		switch {
		case spec.Value == "":
			return BaseAnnoExistence
		case spec.IsRegex:
			return BaseAnnoRegex
		default:
			return BaseAnnoEquality
		}
	}
}

// Component resolves the graph component an operator's join should use,
// when the operator names one explicitly (dominance/pointing edge-kind
// filters); the zero-Layer/Name Component means "search across every
// loaded component of the operator's natural type".
//
// Inclusion, overlap and the two alignment operators are reachability
// joins against the derived LeftToken/RightToken indexes rather than
// against Coverage edges directly, but Coverage is the component whose
// statistics best estimate their selectivity, so that is what is
// returned for cost-model purposes (internal/planner); internal/exec
// resolves their actual join via graph.Graph.TokenRange, not via this
// Component. Equal-value and identity are plain tuple predicates with no
// backing component at all and resolve to the zero ComponentType.
func Component(op aql.Operator) graph.Component {
	var t graph.ComponentType
	switch op.Kind {
	case aql.OpDominance:
		t = graph.Dominance
	case aql.OpPointing:
		t = graph.Pointing
	case aql.OpPrecedence, aql.OpNear:
		t = graph.Ordering
	case aql.OpInclusion, aql.OpOverlap, aql.OpLeftAlign, aql.OpRightAlign:
		t = graph.Coverage
	}
	return graph.Component{Type: t, Layer: op.Layer, Name: op.Name}
}
