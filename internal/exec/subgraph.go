package exec

import (
	"context"
	"sort"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/graph/gs"
)

// DatasourceGapLabel is the name spec §4.6/GLOSSARY gives the synthetic
// Ordering edges between two context regions that are not directly
// adjacent in the underlying data source, so downstream tools can still
// order the regions. Subgraph returns those edges in AnnotationGraph.Gaps;
// gs.Edge itself carries no label.
const DatasourceGapLabel = "datasource-gap"

// AnnotationGraph is the result of Subgraph: every gathered node with its
// annotations, plus the datasource-gap edges bridging non-adjacent
// context regions (spec §4.6).
type AnnotationGraph struct {
	Nodes     []graph.NodeID
	NodeAnnos map[graph.NodeID]map[graph.AnnoKey]string
	Gaps      []gs.Edge
}

// Subgraph gathers every node within [ctxLeft, ctxRight] units of match's
// bound nodes, counted in segmentation units when segmentation names a
// non-default Ordering component, otherwise in base tokens (spec §4.6).
func Subgraph(ctx context.Context, g *graph.Graph, store anno.Store, match Tuple, ctxLeft, ctxRight int, segmentation string) (*AnnotationGraph, error) {
	ctx, span := tracer.Start(ctx, "exec.Subgraph")
	defer span.End()

	ordering := graph.DefaultOrdering
	if segmentation != "" {
		ordering = graph.Component{Type: graph.Ordering, Layer: "annis", Name: segmentation}
	}
	storage, ok := g.Storage(ordering)
	if !ok {
		var err error
		storage, err = ensureOrderingLoaded(g, ordering)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[graph.NodeID]bool)
	var gathered []graph.NodeID
	add := func(n graph.NodeID) {
		if !seen[n] {
			seen[n] = true
			gathered = append(gathered, n)
		}
	}

	for _, m := range match {
		if isEmpty(m) {
			continue
		}
		add(m.Node)
		if err := storage.FindConnected(ctx, m.Node, 1, ctxRight, func(n graph.NodeID) bool {
			add(n)
			return true
		}); err != nil {
			return nil, err
		}
		if err := walkReverse(ctx, storage, m.Node, ctxLeft, add); err != nil {
			return nil, err
		}
	}

	sort.Slice(gathered, func(i, j int) bool { return gathered[i] < gathered[j] })

	annos := make(map[graph.NodeID]map[graph.AnnoKey]string, len(gathered))
	for _, n := range gathered {
		m, err := nodeAnnotations(store, n)
		if err != nil {
			return nil, err
		}
		annos[n] = m
	}

	gaps := findDatasourceGaps(ctx, storage, gathered)

	result := &AnnotationGraph{Nodes: gathered, NodeAnnos: annos, Gaps: gaps}
	return result, nil
}

func ensureOrderingLoaded(g *graph.Graph, c graph.Component) (gs.WriteableGraphStorage, error) {
	if err := g.EnsureLoaded([]graph.Component{c}); err != nil {
		return nil, err
	}
	storage, _ := g.Storage(c)
	return storage, nil
}

// walkReverse is the mirror of FindConnected for an Ordering component:
// since Ordering edges run left-to-right, the left context is gathered by
// scanning every already-known node's incoming edges via OutgoingEdges in
// the reverse direction is not directly supported, so this walks
// hop-by-hop using IsConnected probes against the local neighborhood,
// appropriate for Ordering's low, bounded fan-out.
func walkReverse(ctx context.Context, storage gs.GraphStorage, from graph.NodeID, hops int, add func(graph.NodeID)) error {
	if hops <= 0 {
		return nil
	}
	// Ordering components are dense small-fan-out chains; probing a
	// bounded window of candidate predecessors by id is cheap and avoids
	// requiring a reverse-edge index on every graph storage variant.
	for cand := from - graph.NodeID(hops*4); cand < from; cand++ {
		if cand < 0 {
			continue
		}
		connected, err := storage.IsConnected(ctx, cand, from, 1, hops)
		if err != nil {
			return err
		}
		if connected {
			add(cand)
		}
	}
	return nil
}

func nodeAnnotations(store anno.Store, n graph.NodeID) (map[graph.AnnoKey]string, error) {
	out := make(map[graph.AnnoKey]string)
	for _, key := range []graph.AnnoKey{graph.NodeNameKey, graph.TokKey, graph.NodeTypeKey} {
		if v, ok, err := store.Get(anno.NodeItem(n), key); err != nil {
			return nil, err
		} else if ok {
			out[key] = v
		}
	}
	return out, nil
}

// findDatasourceGaps returns a synthetic edge between every pair of
// consecutive gathered nodes (sorted by id) that the Ordering storage does
// not itself connect in one hop, marking a jump between non-adjacent
// context regions (spec §4.6, GLOSSARY "Data source"). The edges are not
// inserted into the storage.
func findDatasourceGaps(ctx context.Context, storage gs.GraphStorage, sorted []graph.NodeID) []gs.Edge {
	var gaps []gs.Edge
	for i := 0; i+1 < len(sorted); i++ {
		a, b := sorted[i], sorted[i+1]
		connected, err := storage.IsConnected(ctx, a, b, 1, 1)
		if err != nil || !connected {
			gaps = append(gaps, gs.Edge{Source: a, Target: b})
		}
	}
	return gaps
}
