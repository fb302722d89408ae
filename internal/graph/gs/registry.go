package gs

import (
	"path/filepath"

	"github.com/graphannis-go/graphannis-core/internal/graph"
)

// Registry selects the physically best storage variant per component at
// build time, based on observed fan-out and depth statistics (spec §4.2).
//
// Grounded on internal/di/container_providers.go's pattern of picking an
// implementation behind an interface from runtime configuration, adapted
// from "pick a repository backend from env config" to "pick a graph
// storage backend from observed ComponentStats".
type Registry struct {
	CorpusDir string
}

// Hint carries the statistics the registry needs in order to pick a
// variant before a component's final shape is fully known (e.g. while
// importing, when an approximate edge/branch count is already available).
type Hint struct {
	Component       graph.Component
	ApproxEdges     uint64
	ApproxMaxNode   graph.NodeID
	DenselyNumbered bool
	TreeShaped      bool
	MaxBranchOut    uint32
	MaxDepth        uint32
}

// Pick returns a fresh, empty WriteableGraphStorage of the variant best
// suited to hint. PartOf always prefers DiskPathStorage unless the shape
// violates its branch-out/depth limits; Dominance prefers
// PrePostOrderStorage when tree-shaped; dense node numbering prefers
// DenseAdjacencyListStorage; everything else falls back to
// AdjacencyListStorage.
func (r *Registry) Pick(hint Hint) (WriteableGraphStorage, error) {
	switch {
	case hint.Component.Type == graph.PartOf && hint.MaxBranchOut <= 1 && hint.MaxDepth <= MaxPathDepth:
		typ, layer, name := hint.Component.PathSegment()
		dir := filepath.Join(r.CorpusDir, "gs", typ, layer, name)
		return OpenDiskPathStorage(filepath.Join(dir, "paths.bolt"))
	case hint.Component.Type == graph.Dominance && hint.TreeShaped:
		return NewPrePostOrderStorage(), nil
	case hint.DenselyNumbered:
		return NewDenseAdjacencyListStorage(hint.ApproxMaxNode), nil
	default:
		return NewAdjacencyListStorage(), nil
	}
}

// Reselect inspects a variant's own accumulated ComponentStats after the
// fact and returns true if a different variant would now fit better,
// letting the owning Graph decide whether to migrate a component (the
// registry itself never migrates data; it only advises).
func Reselect(current WriteableGraphStorage, c graph.Component) bool {
	stats := current.Stats()
	switch current.(type) {
	case *AdjacencyListStorage:
		return c.Type == graph.PartOf && stats.MaxBranchOut <= 1 && stats.Depth.Max <= MaxPathDepth
	default:
		return false
	}
}
