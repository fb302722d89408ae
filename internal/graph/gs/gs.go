// Package gs (graph storage) holds the family of edge-container
// implementations the registry chooses between per component, and the
// uniform reachability/traversal contract spec §4.2 requires of all of
// them.
//
// Grounded on the teacher's internal/repository/ddb sorted-range query
// helpers for the "sorted target list" shape, and on eliasdb's
// graph-globals.go PrefixNSEdge bucket layout for the edge-container idea
// itself (other_examples/krotik-eliasdb).
package gs

import (
	"context"

	"github.com/graphannis-go/graphannis-core/internal/graph"
)

// Edge is one directed edge inside a single component, with its label set
// resolved by the caller (graph storages hold edges; annotations on edges
// live in the owning Graph's annotation store, addressed by EdgeID).
type Edge struct {
	Source graph.NodeID
	Target graph.NodeID
}

// FanOutStats summarizes the out-degree distribution of a component.
type FanOutStats struct {
	Avg float64
	Max uint32
}

// DepthStats summarizes path depth from roots, used by tree-shaped variants
// and by the planner's cost model.
type DepthStats struct {
	Avg float64
	Max uint32
}

// ComponentStats drives the registry's variant choice and the planner's
// cost model (spec §4.2, §4.5).
type ComponentStats struct {
	Edges       uint64
	Nodes       uint64 // distinct source nodes
	RootCount   uint64
	FanOut      FanOutStats
	Depth       DepthStats
	DenselyNumbered bool // nodes form a small contiguous range of ids
	MaxBranchOut    uint32
}

// ByteSize is a rough footprint estimate used by the corpus cache's
// byte-budgeted eviction (internal/corpusstorage).
func (s ComponentStats) ByteSize() int64 {
	return int64(s.Edges)*24 + int64(s.Nodes)*8
}

// GraphStorage is the read contract every variant implements: for a source
// node and a distance range [min,max], produce the reachable targets, plus
// point queries for connectivity and distance.
type GraphStorage interface {
	// FindConnected yields targets reachable from source within [min,max]
	// edge hops, without repeats. Iteration stops early if yield returns
	// false or ctx is done.
	FindConnected(ctx context.Context, source graph.NodeID, min, max int, yield func(graph.NodeID) bool) error
	IsConnected(ctx context.Context, source, target graph.NodeID, min, max int) (bool, error)
	// Distance returns the shortest hop distance, or (0, false) if
	// unreachable.
	Distance(ctx context.Context, source, target graph.NodeID) (int, bool, error)
	OutgoingEdges(source graph.NodeID) []graph.NodeID
	Stats() ComponentStats
}

// WriteableGraphStorage is implemented by variants that can be mutated by
// apply_update (spec §4.2).
type WriteableGraphStorage interface {
	GraphStorage
	AddEdge(e Edge) error
	DeleteEdge(e Edge) error
	AddEdgeAnnotation(e Edge, key graph.AnnoKey, value string) error
	DeleteEdgeAnnotation(e Edge, key graph.AnnoKey) error
	Clear() error
	CalculateStatistics() error
}
