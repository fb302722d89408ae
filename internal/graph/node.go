package graph

// NodeID is an opaque integer identifier, unique within a corpus. Unlike
// the teacher's valueobjects.NodeID (a wrapped UUID, domain/core/
// valueobjects), graphANNIS node ids are dense small integers so that the
// dense-adjacency-list graph storage variant (internal/graph/gs) can use
// them directly as array indices.
type NodeID int64

// InvalidNodeID is returned by lookups that find nothing; it is never a
// valid handle (ids are assigned starting at 0).
const InvalidNodeID NodeID = -1

// AnnoKey identifies one annotation slot: a namespace-qualified name. The
// zero value is never a valid key (Name must be non-empty).
type AnnoKey struct {
	NS   string
	Name string
}

func (k AnnoKey) String() string {
	if k.NS == "" {
		return k.Name
	}
	return k.NS + "::" + k.Name
}

// NodeNameKey is the reserved annotation key the annotation store enforces
// uniqueness on (spec §3 invariants).
var NodeNameKey = AnnoKey{NS: "annis", Name: "node_name"}

// TokKey is the reserved annotation key carrying a token's surface form.
var TokKey = AnnoKey{NS: "annis", Name: "tok"}

// ItemKind distinguishes node-ids from edge-ids inside the annotation
// store's key space, which multiplexes both (spec §4.1: "a polymorphic
// key-value index from item identifiers... to annotations").
type ItemKind uint8

const (
	ItemNode ItemKind = iota
	ItemEdge
)

// EdgeID addresses one edge within exactly one component (spec §3: "Edges
// may carry labels... within exactly one component").
type EdgeID struct {
	Component Component
	Source    NodeID
	Target    NodeID
}
