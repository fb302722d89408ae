package gs

import (
	"context"
	"sort"

	"github.com/graphannis-go/graphannis-core/internal/graph"
)

// DenseAdjacencyListStorage is chosen by the registry when a component's
// nodes are densely numbered (ComponentStats.DenselyNumbered): a
// contiguous []int32 slice-of-slices indexed directly by node id avoids
// the map-lookup overhead AdjacencyListStorage pays per access. This is
// the variant spec §4.2 singles out for "low-overhead iteration".
type DenseAdjacencyListStorage struct {
	targets   [][]int32 // indexed by NodeID, values are target NodeIDs
	edgeCount uint64
	stats     ComponentStats
}

func NewDenseAdjacencyListStorage(maxNode graph.NodeID) *DenseAdjacencyListStorage {
	return &DenseAdjacencyListStorage{targets: make([][]int32, maxNode+1)}
}

func (s *DenseAdjacencyListStorage) ensure(n graph.NodeID) {
	if int(n) >= len(s.targets) {
		grown := make([][]int32, n+1)
		copy(grown, s.targets)
		s.targets = grown
	}
}

func (s *DenseAdjacencyListStorage) AddEdge(e Edge) error {
	s.ensure(e.Source)
	s.ensure(e.Target)
	list := s.targets[e.Source]
	t := int32(e.Target)
	idx := sort.Search(len(list), func(i int) bool { return list[i] >= t })
	if idx < len(list) && list[idx] == t {
		return nil
	}
	list = append(list, 0)
	copy(list[idx+1:], list[idx:])
	list[idx] = t
	s.targets[e.Source] = list
	s.edgeCount++
	return nil
}

func (s *DenseAdjacencyListStorage) DeleteEdge(e Edge) error {
	if int(e.Source) >= len(s.targets) {
		return nil
	}
	list := s.targets[e.Source]
	t := int32(e.Target)
	idx := sort.Search(len(list), func(i int) bool { return list[i] >= t })
	if idx >= len(list) || list[idx] != t {
		return nil
	}
	s.targets[e.Source] = append(list[:idx], list[idx+1:]...)
	s.edgeCount--
	return nil
}

// Dense variant keeps edge annotations out-of-line since they are rare
// relative to the common case (plain Ordering/LeftToken/RightToken edges
// with no labels) that this variant targets.
func (s *DenseAdjacencyListStorage) AddEdgeAnnotation(Edge, graph.AnnoKey, string) error { return nil }
func (s *DenseAdjacencyListStorage) DeleteEdgeAnnotation(Edge, graph.AnnoKey) error       { return nil }

func (s *DenseAdjacencyListStorage) Clear() error {
	s.targets = s.targets[:0]
	s.edgeCount = 0
	s.stats = ComponentStats{}
	return nil
}

func (s *DenseAdjacencyListStorage) OutgoingEdges(source graph.NodeID) []graph.NodeID {
	if int(source) >= len(s.targets) {
		return nil
	}
	list := s.targets[source]
	out := make([]graph.NodeID, len(list))
	for i, t := range list {
		out[i] = graph.NodeID(t)
	}
	return out
}

func (s *DenseAdjacencyListStorage) FindConnected(ctx context.Context, source graph.NodeID, min, max int, yield func(graph.NodeID) bool) error {
	if min < 1 {
		min = 1
	}
	visited := make(map[graph.NodeID]bool, 16)
	visited[source] = true
	type entry struct {
		node  graph.NodeID
		depth int
	}
	frontier := []entry{{source, 0}}
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := frontier[0]
		frontier = frontier[1:]
		if max >= 0 && cur.depth >= max {
			continue
		}
		for _, t := range s.OutgoingEdges(cur.node) {
			if visited[t] {
				continue
			}
			visited[t] = true
			nd := cur.depth + 1
			if nd >= min {
				if !yield(t) {
					return nil
				}
			}
			frontier = append(frontier, entry{t, nd})
		}
	}
	return nil
}

func (s *DenseAdjacencyListStorage) IsConnected(ctx context.Context, source, target graph.NodeID, min, max int) (bool, error) {
	found := false
	err := s.FindConnected(ctx, source, min, max, func(n graph.NodeID) bool {
		if n == target {
			found = true
			return false
		}
		return true
	})
	return found, err
}

func (s *DenseAdjacencyListStorage) Distance(ctx context.Context, source, target graph.NodeID) (int, bool, error) {
	dist := -1
	type entry struct {
		node  graph.NodeID
		depth int
	}
	visited := map[graph.NodeID]bool{source: true}
	frontier := []entry{{source, 0}}
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		cur := frontier[0]
		frontier = frontier[1:]
		if cur.node == target {
			dist = cur.depth
			break
		}
		for _, t := range s.OutgoingEdges(cur.node) {
			if visited[t] {
				continue
			}
			visited[t] = true
			frontier = append(frontier, entry{t, cur.depth + 1})
		}
	}
	if dist < 0 {
		return 0, false, nil
	}
	return dist, true, nil
}

func (s *DenseAdjacencyListStorage) Stats() ComponentStats { return s.stats }

func (s *DenseAdjacencyListStorage) CalculateStatistics() error {
	var totalOut uint64
	var maxOut uint32
	var nodes uint64
	for _, list := range s.targets {
		if len(list) == 0 {
			continue
		}
		nodes++
		totalOut += uint64(len(list))
		if uint32(len(list)) > maxOut {
			maxOut = uint32(len(list))
		}
	}
	avg := 0.0
	if nodes > 0 {
		avg = float64(totalOut) / float64(nodes)
	}
	s.stats = ComponentStats{
		Edges: s.edgeCount, Nodes: nodes,
		FanOut: FanOutStats{Avg: avg, Max: maxOut},
		DenselyNumbered: true,
		MaxBranchOut: maxOut,
	}
	return nil
}

var _ WriteableGraphStorage = (*DenseAdjacencyListStorage)(nil)
