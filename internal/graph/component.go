package graph

import "fmt"

// ComponentType is one of the fixed edge-container kinds a Component can
// belong to. Unlike the teacher's open-ended EdgeType (domain/core/entities/
// edge_types.go), this set is closed: the planner and the graph-storage
// registry both switch over it exhaustively.
type ComponentType string

const (
	Coverage         ComponentType = "Coverage"
	InvertedCoverage ComponentType = "InvertedCoverage"
	Dominance        ComponentType = "Dominance"
	Pointing         ComponentType = "Pointing"
	Ordering         ComponentType = "Ordering"
	LeftToken        ComponentType = "LeftToken"
	RightToken       ComponentType = "RightToken"
	PartOf           ComponentType = "PartOf"
)

// Component is the triple (type, layer, name) that addresses one typed
// subgraph of edges. It is comparable, so it is used directly as a map key
// by Graph and by the graph-storage registry.
type Component struct {
	Type  ComponentType
	Layer string
	Name  string
}

// DefaultOrdering is the total order over tokens of each data source
// required by spec invariant: "token nodes have no outgoing Coverage edges".
var DefaultOrdering = Component{Type: Ordering, Layer: "annis", Name: ""}

// derivedLeftToken, derivedRightToken and derivedInvertedCoverage are the
// single process-wide components recomputeDerived (apply.go) rebuilds
// from Coverage edges: one LeftToken/RightToken edge per covering node to
// its leftmost/rightmost covered token, and the reverse of every Coverage
// edge. Unlike Dominance/Pointing there is exactly one of each, so they
// carry no layer/name of their own beyond the "annis" namespace.
var (
	derivedLeftToken        = Component{Type: LeftToken, Layer: "annis"}
	derivedRightToken       = Component{Type: RightToken, Layer: "annis"}
	derivedInvertedCoverage = Component{Type: InvertedCoverage, Layer: "annis"}
)

func (c Component) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Type, c.Layer, c.Name)
}

// PathSegment returns the on-disk directory name for this component, used
// under a corpus's gs/<type>/<layer>/<name>/ tree (spec §6).
func (c Component) PathSegment() (typ, layer, name string) {
	layer, name = c.Layer, c.Name
	if layer == "" {
		layer = "_"
	}
	if name == "" {
		name = "_"
	}
	return string(c.Type), layer, name
}
