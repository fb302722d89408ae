package gs

import (
	"context"
	"sort"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

// PrePostOrderStorage answers ancestor/descendant in O(1) per check for
// tree-shaped components (spec §4.2: "for tree-shaped components answers
// ancestor/descendant in O(1) via interval containment"). Edges are only
// accepted if the resulting shape stays a forest; CalculateStatistics
// rebuilds the pre/post numbering from the accumulated edge set.
type PrePostOrderStorage struct {
	children map[graph.NodeID][]graph.NodeID
	parent   map[graph.NodeID]graph.NodeID
	order    map[graph.NodeID]interval
	annos    map[Edge]map[graph.AnnoKey]string
	edges    uint64
	stats    ComponentStats
	built    bool
}

type interval struct {
	pre, post int
	level     int
}

func NewPrePostOrderStorage() *PrePostOrderStorage {
	return &PrePostOrderStorage{
		children: make(map[graph.NodeID][]graph.NodeID),
		parent:   make(map[graph.NodeID]graph.NodeID),
		order:    make(map[graph.NodeID]interval),
		annos:    make(map[Edge]map[graph.AnnoKey]string),
	}
}

func (s *PrePostOrderStorage) AddEdge(e Edge) error {
	if p, ok := s.parent[e.Target]; ok && p != e.Source {
		return goerrors.NewInvalidUpdate("node already has a different parent in a tree-shaped component")
	}
	for _, c := range s.children[e.Source] {
		if c == e.Target {
			return nil // duplicate add is a no-op
		}
	}
	s.children[e.Source] = append(s.children[e.Source], e.Target)
	s.parent[e.Target] = e.Source
	s.edges++
	s.built = false
	return nil
}

func (s *PrePostOrderStorage) DeleteEdge(e Edge) error {
	list := s.children[e.Source]
	for i, c := range list {
		if c == e.Target {
			s.children[e.Source] = append(list[:i], list[i+1:]...)
			delete(s.parent, e.Target)
			delete(s.annos, e)
			s.edges--
			s.built = false
			return nil
		}
	}
	return nil
}

func (s *PrePostOrderStorage) AddEdgeAnnotation(e Edge, key graph.AnnoKey, value string) error {
	m, ok := s.annos[e]
	if !ok {
		m = make(map[graph.AnnoKey]string)
		s.annos[e] = m
	}
	m[key] = value
	return nil
}

func (s *PrePostOrderStorage) DeleteEdgeAnnotation(e Edge, key graph.AnnoKey) error {
	if m, ok := s.annos[e]; ok {
		delete(m, key)
	}
	return nil
}

func (s *PrePostOrderStorage) Clear() error {
	s.children = make(map[graph.NodeID][]graph.NodeID)
	s.parent = make(map[graph.NodeID]graph.NodeID)
	s.order = make(map[graph.NodeID]interval)
	s.annos = make(map[Edge]map[graph.AnnoKey]string)
	s.edges = 0
	s.stats = ComponentStats{}
	return nil
}

func (s *PrePostOrderStorage) OutgoingEdges(source graph.NodeID) []graph.NodeID {
	out := make([]graph.NodeID, len(s.children[source]))
	copy(out, s.children[source])
	return out
}

// rebuild computes pre/post numbers via an explicit worklist rather than
// recursion, per spec §4.2's "non-recursive (explicit worklist) to avoid
// stack overflow on deeply nested structures".
func (s *PrePostOrderStorage) rebuild() {
	s.order = make(map[graph.NodeID]interval, len(s.children))
	roots := make([]graph.NodeID, 0)
	for n := range s.children {
		if _, hasParent := s.parent[n]; !hasParent {
			roots = append(roots, n)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	counter := 0
	type frame struct {
		node       graph.NodeID
		childIdx   int
		level      int
	}
	for _, r := range roots {
		if _, seen := s.order[r]; seen {
			continue
		}
		stack := []*frame{{node: r, level: 0}}
		s.order[r] = interval{pre: counter, level: 0}
		counter++
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			kids := s.children[top.node]
			if top.childIdx < len(kids) {
				c := kids[top.childIdx]
				top.childIdx++
				s.order[c] = interval{pre: counter, level: top.level + 1}
				counter++
				stack = append(stack, &frame{node: c, level: top.level + 1})
				continue
			}
			iv := s.order[top.node]
			iv.post = counter
			counter++
			s.order[top.node] = iv
			stack = stack[:len(stack)-1]
		}
	}
	s.built = true
}

func (s *PrePostOrderStorage) FindConnected(ctx context.Context, source graph.NodeID, min, max int, yield func(graph.NodeID) bool) error {
	if !s.built {
		s.rebuild()
	}
	src, ok := s.order[source]
	if !ok {
		return nil
	}
	for n, iv := range s.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if n == source {
			continue
		}
		if iv.pre > src.pre && iv.post < src.post {
			depth := iv.level - src.level
			if depth >= min && (max < 0 || depth <= max) {
				if !yield(n) {
					return nil
				}
			}
		}
	}
	return nil
}

func (s *PrePostOrderStorage) IsConnected(ctx context.Context, source, target graph.NodeID, min, max int) (bool, error) {
	if !s.built {
		s.rebuild()
	}
	src, ok1 := s.order[source]
	tgt, ok2 := s.order[target]
	if !ok1 || !ok2 {
		return false, nil
	}
	if !(tgt.pre > src.pre && tgt.post < src.post) {
		return false, nil
	}
	depth := tgt.level - src.level
	return depth >= min && (max < 0 || depth <= max), nil
}

func (s *PrePostOrderStorage) Distance(ctx context.Context, source, target graph.NodeID) (int, bool, error) {
	if !s.built {
		s.rebuild()
	}
	src, ok1 := s.order[source]
	tgt, ok2 := s.order[target]
	if !ok1 || !ok2 || !(tgt.pre > src.pre && tgt.post < src.post) {
		return 0, false, nil
	}
	return tgt.level - src.level, true, nil
}

func (s *PrePostOrderStorage) Stats() ComponentStats { return s.stats }

func (s *PrePostOrderStorage) CalculateStatistics() error {
	s.rebuild()
	var maxOut uint32
	var totalOut uint64
	roots := uint64(0)
	for _, list := range s.children {
		if uint32(len(list)) > maxOut {
			maxOut = uint32(len(list))
		}
		totalOut += uint64(len(list))
	}
	maxDepth := 0
	for _, iv := range s.order {
		if iv.level > maxDepth {
			maxDepth = iv.level
		}
	}
	for n := range s.children {
		if _, hasParent := s.parent[n]; !hasParent {
			roots++
		}
	}
	avg := 0.0
	if len(s.children) > 0 {
		avg = float64(totalOut) / float64(len(s.children))
	}
	s.stats = ComponentStats{
		Edges: s.edges, Nodes: uint64(len(s.children)), RootCount: roots,
		FanOut: FanOutStats{Avg: avg, Max: maxOut},
		Depth:  DepthStats{Max: uint32(maxDepth)},
		MaxBranchOut: maxOut,
	}
	return nil
}

var _ WriteableGraphStorage = (*PrePostOrderStorage)(nil)
