package gs

import (
	"context"
	"sort"
	"sync"

	"github.com/graphannis-go/graphannis-core/internal/graph"
)

// AdjacencyListStorage is the generic, sparse variant: one sorted target
// list per source node. It is the registry's fallback when no statistic
// favors a more specialized layout (spec §4.2).
//
// Grounded on the teacher's internal/repository/ddb generic_repository.go
// pattern of a plain map-of-slices kept sorted for range scans, adapted
// from DynamoDB item keys to in-memory node ids.
type AdjacencyListStorage struct {
	mu      sync.RWMutex
	targets map[graph.NodeID][]graph.NodeID
	annos   map[Edge]map[graph.AnnoKey]string
	edgeCount uint64
	stats   ComponentStats
	dirty   bool
}

func NewAdjacencyListStorage() *AdjacencyListStorage {
	return &AdjacencyListStorage{
		targets: make(map[graph.NodeID][]graph.NodeID),
		annos:   make(map[Edge]map[graph.AnnoKey]string),
	}
}

func (s *AdjacencyListStorage) AddEdge(e Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.targets[e.Source]
	idx := sort.Search(len(list), func(i int) bool { return list[i] >= e.Target })
	if idx < len(list) && list[idx] == e.Target {
		return nil // duplicate add is a no-op, spec §3 invariants
	}
	list = append(list, 0)
	copy(list[idx+1:], list[idx:])
	list[idx] = e.Target
	s.targets[e.Source] = list
	s.edgeCount++
	s.dirty = true
	return nil
}

func (s *AdjacencyListStorage) DeleteEdge(e Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.targets[e.Source]
	idx := sort.Search(len(list), func(i int) bool { return list[i] >= e.Target })
	if idx >= len(list) || list[idx] != e.Target {
		return nil // delete of absent edge is a no-op
	}
	s.targets[e.Source] = append(list[:idx], list[idx+1:]...)
	delete(s.annos, e)
	s.edgeCount--
	s.dirty = true
	return nil
}

func (s *AdjacencyListStorage) AddEdgeAnnotation(e Edge, key graph.AnnoKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.annos[e]
	if !ok {
		m = make(map[graph.AnnoKey]string)
		s.annos[e] = m
	}
	m[key] = value
	return nil
}

func (s *AdjacencyListStorage) DeleteEdgeAnnotation(e Edge, key graph.AnnoKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.annos[e]; ok {
		delete(m, key)
	}
	return nil
}

func (s *AdjacencyListStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = make(map[graph.NodeID][]graph.NodeID)
	s.annos = make(map[Edge]map[graph.AnnoKey]string)
	s.edgeCount = 0
	s.stats = ComponentStats{}
	return nil
}

func (s *AdjacencyListStorage) OutgoingEdges(source graph.NodeID) []graph.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]graph.NodeID, len(s.targets[source]))
	copy(out, s.targets[source])
	return out
}

func (s *AdjacencyListStorage) FindConnected(ctx context.Context, source graph.NodeID, min, max int, yield func(graph.NodeID) bool) error {
	if min < 1 {
		min = 1
	}
	visited := map[graph.NodeID]bool{source: true}
	type frontierEntry struct {
		node  graph.NodeID
		depth int
	}
	frontier := []frontierEntry{{source, 0}}
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
			frontier = append(frontier, frontierEntry{t, nd})
		}
	}
	return nil
}

func (s *AdjacencyListStorage) IsConnected(ctx context.Context, source, target graph.NodeID, min, max int) (bool, error) {
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

func (s *AdjacencyListStorage) Distance(ctx context.Context, source, target graph.NodeID) (int, bool, error) {
	dist := -1
	type frontierEntry struct {
		node  graph.NodeID
		depth int
	}
	visited := map[graph.NodeID]bool{source: true}
	frontier := []frontierEntry{{source, 0}}
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
			frontier = append(frontier, frontierEntry{t, cur.depth + 1})
		}
	}
	if dist < 0 {
		return 0, false, nil
	}
	return dist, true, nil
}

func (s *AdjacencyListStorage) Stats() ComponentStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *AdjacencyListStorage) CalculateStatistics() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var totalOut uint64
	var maxOut uint32
	nodes := uint64(len(s.targets))
	for _, list := range s.targets {
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
		Edges:     s.edgeCount,
		Nodes:     nodes,
		FanOut:    FanOutStats{Avg: avg, Max: maxOut},
		MaxBranchOut: maxOut,
	}
	s.dirty = false
	return nil
}

var _ WriteableGraphStorage = (*AdjacencyListStorage)(nil)
