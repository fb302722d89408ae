// Package graph is the core data model of spec §3: a typed labeled
// multigraph whose edges are partitioned into typed Components, with a
// shared annotation store addressing both nodes and edges.
//
// Grounded on domain/core/aggregates/graph_aggregate.go (teacher): a root
// aggregate owning child entities behind a mutex, with every mutation
// routed through one method so invariants stay centralized. Here the
// aggregate is Graph, its "child entities" are the per-Component graph
// storages (internal/graph/gs) plus the shared annotation store
// (internal/graph/anno), and the one mutation entrypoint is ApplyUpdate
// (apply.go).
package graph

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/graph/gs"
)

// NodeTypeKey classifies a node (corpus, document, datasource token, span,
// ...) for quick filtering without a full annotation scan.
var NodeTypeKey = AnnoKey{NS: "annis", Name: "node_type"}

// Graph is one open corpus's in-memory working set: the annotation store
// plus every Component's graph storage, lazily created on first touch.
type Graph struct {
	mu sync.RWMutex

	CorpusDir string
	Anno      anno.Store
	Registry  *gs.Registry

	components map[Component]gs.WriteableGraphStorage
	nodeNames  map[NodeID]string // reverse of anno.GetNodeIDFromName, for edge cleanup on DeleteNode
	nextNode   NodeID
}

// New creates an empty Graph over the caller-supplied annotation store,
// with no components yet: each component's storage is created by
// Registry.Pick on first touch. The Graph is ready for apply_update calls
// (e.g. during import).
func New(corpusDir string, store anno.Store) *Graph {
	return &Graph{
		CorpusDir:  corpusDir,
		Anno:       store,
		Registry:   &gs.Registry{CorpusDir: corpusDir},
		components: make(map[Component]gs.WriteableGraphStorage),
		nodeNames:  make(map[NodeID]string),
	}
}

// getOrCreateComponent returns c's storage, creating a fresh one sized by
// hint via the registry on first touch. Callers must hold g.mu.
func (g *Graph) getOrCreateComponent(c Component, hint gs.Hint) (gs.WriteableGraphStorage, error) {
	if s, ok := g.components[c]; ok {
		return s, nil
	}
	hint.Component = c
	s, err := g.Registry.Pick(hint)
	if err != nil {
		return nil, err
	}
	g.components[c] = s
	return s, nil
}

// EnsureLoaded guarantees every component in cs has been created (opened,
// for disk-backed variants), so a query planner can inspect its statistics
// without incurring lazy-open latency mid-plan.
func (g *Graph) EnsureLoaded(cs []Component) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range cs {
		if _, err := g.getOrCreateComponent(c, gs.Hint{}); err != nil {
			return err
		}
	}
	return nil
}

// EnsureLoadedParallel is EnsureLoaded's concurrent form, used when a query
// plan touches many components of a large corpus at once (spec §4.2's
// "components may be loaded in parallel during planning").
//
// Grounded on the teacher's application/sagas pattern of an errgroup
// bracketing independent sub-steps, here golang.org/x/sync/errgroup over
// independent component opens instead of saga steps.
func (g *Graph) EnsureLoadedParallel(ctx context.Context, cs []Component, maxParallel int) error {
	if maxParallel < 1 {
		maxParallel = 1
	}
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallel)
	for _, c := range cs {
		c := c
		eg.Go(func() error {
			g.mu.Lock()
			_, err := g.getOrCreateComponent(c, gs.Hint{})
			g.mu.Unlock()
			return err
		})
	}
	return eg.Wait()
}

// Components returns every component currently touched by this Graph.
func (g *Graph) Components() []Component {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Component, 0, len(g.components))
	for c := range g.components {
		out = append(out, c)
	}
	return out
}

// Storage returns c's storage if it has been loaded, without creating one.
func (g *Graph) Storage(c Component) (gs.WriteableGraphStorage, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.components[c]
	return s, ok
}

func (g *Graph) resolveNode(name string) (NodeID, bool, error) {
	return g.Anno.GetNodeIDFromName(name)
}

// ensureNode returns name's NodeID, creating the node (with an empty
// node_type) if it does not yet exist. Used by AddEdge events whose
// endpoints are not guaranteed to have been created explicitly (spec
// §4.3: "edge events targeting an unknown node implicitly create it").
func (g *Graph) ensureNode(name string) (NodeID, error) {
	if id, ok, err := g.resolveNode(name); err != nil {
		return InvalidNodeID, err
	} else if ok {
		return id, nil
	}
	id := g.nextNode
	g.nextNode++
	if err := g.Anno.Set(anno.NodeItem(id), NodeNameKey, name); err != nil {
		return InvalidNodeID, err
	}
	g.nodeNames[id] = name
	return id, nil
}
