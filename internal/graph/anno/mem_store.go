package anno

import (
	"iter"
	"sort"
	"sync"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

// MemStore is the in-memory annotation store variant (spec §4.1),
// grounded on internal/infrastructure/cache/memory_cache.go's
// sync.RWMutex-guarded map shape, repurposed from byte-blob caching to
// (item,ns,name)->value annotation storage with a value-sorted index per
// key for range/regex scans.
type MemStore struct {
	mu sync.RWMutex

	// forward[item][key] = value
	forward map[ItemID]map[graph.AnnoKey]string
	// byKey[key].values[value] = set of items; sortedValues kept sorted
	// for guess_max_count range estimation.
	byKey map[graph.AnnoKey]*valueIndex

	nodeNameToID map[string]graph.NodeID
}

type valueIndex struct {
	values       map[string]map[ItemID]struct{}
	sortedValues []string
}

func newValueIndex() *valueIndex {
	return &valueIndex{values: make(map[string]map[ItemID]struct{})}
}

func (vi *valueIndex) insert(value string, item ItemID) {
	set, ok := vi.values[value]
	if !ok {
		set = make(map[ItemID]struct{})
		vi.values[value] = set
		idx := sort.SearchStrings(vi.sortedValues, value)
		vi.sortedValues = append(vi.sortedValues, "")
		copy(vi.sortedValues[idx+1:], vi.sortedValues[idx:])
		vi.sortedValues[idx] = value
	}
	set[item] = struct{}{}
}

func (vi *valueIndex) remove(value string, item ItemID) {
	set, ok := vi.values[value]
	if !ok {
		return
	}
	delete(set, item)
	if len(set) == 0 {
		delete(vi.values, value)
		idx := sort.SearchStrings(vi.sortedValues, value)
		if idx < len(vi.sortedValues) && vi.sortedValues[idx] == value {
			vi.sortedValues = append(vi.sortedValues[:idx], vi.sortedValues[idx+1:]...)
		}
	}
}

func NewMemStore() *MemStore {
	return &MemStore{
		forward:      make(map[ItemID]map[graph.AnnoKey]string),
		byKey:        make(map[graph.AnnoKey]*valueIndex),
		nodeNameToID: make(map[string]graph.NodeID),
	}
}

func (s *MemStore) Get(item ItemID, key graph.AnnoKey) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.forward[item]
	if !ok {
		return "", false, nil
	}
	v, ok := m[key]
	return v, ok, nil
}

func (s *MemStore) Set(item ItemID, key graph.AnnoKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == graph.NodeNameKey {
		if existing, ok := s.nodeNameToID[value]; ok && existing != item.Node {
			return goerrors.NewInvalidUpdate("node name already in use: " + value)
		}
	}

	m, ok := s.forward[item]
	if !ok {
		m = make(map[graph.AnnoKey]string)
		s.forward[item] = m
	}
	if old, existed := m[key]; existed {
		if old == value {
			return nil // equal re-add is a no-op, spec §3 invariants
		}
		if vi, ok := s.byKey[key]; ok {
			vi.remove(old, item)
		}
	}
	m[key] = value

	vi, ok := s.byKey[key]
	if !ok {
		vi = newValueIndex()
		s.byKey[key] = vi
	}
	vi.insert(value, item)

	if key == graph.NodeNameKey && item.Kind == graph.ItemNode {
		s.nodeNameToID[value] = item.Node
	}
	return nil
}

func (s *MemStore) Remove(item ItemID, key graph.AnnoKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.forward[item]
	if !ok {
		return nil
	}
	old, ok := m[key]
	if !ok {
		return nil
	}
	delete(m, key)
	if vi, ok := s.byKey[key]; ok {
		vi.remove(old, item)
	}
	if key == graph.NodeNameKey {
		delete(s.nodeNameToID, old)
	}
	return nil
}

func (s *MemStore) RemoveItem(item ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.forward[item]
	if !ok {
		return nil
	}
	for key, value := range m {
		if vi, ok := s.byKey[key]; ok {
			vi.remove(value, item)
		}
		if key == graph.NodeNameKey {
			delete(s.nodeNameToID, value)
		}
	}
	delete(s.forward, item)
	return nil
}

func (s *MemStore) HasNodeName(name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodeNameToID[name]
	return ok, nil
}

func (s *MemStore) GetNodeIDFromName(name string) (graph.NodeID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.nodeNameToID[name]
	return id, ok, nil
}

func (s *MemStore) AnnoByKey(key graph.AnnoKey) iter.Seq[ItemID] {
	s.mu.RLock()
	vi, ok := s.byKey[key]
	var items []ItemID
	if ok {
		for _, set := range vi.values {
			for it := range set {
				items = append(items, it)
			}
		}
	}
	s.mu.RUnlock()
	return func(yield func(ItemID) bool) {
		for _, it := range items {
			if !yield(it) {
				return
			}
		}
	}
}

func (s *MemStore) RegexScan(key graph.AnnoKey, pattern string) (iter.Seq[ItemID], error) {
	re, err := CompileRegex2(pattern)
	if err != nil {
		return nil, goerrors.NewParse("invalid regex: " + err.Error())
	}
	s.mu.RLock()
	vi, ok := s.byKey[key]
	var items []ItemID
	if ok {
		for v, set := range vi.values {
			if MatchRegex2(re, v) {
				for it := range set {
					items = append(items, it)
				}
			}
		}
	}
	s.mu.RUnlock()
	return func(yield func(ItemID) bool) {
		for _, it := range items {
			if !yield(it) {
				return
			}
		}
	}, nil
}

func (s *MemStore) GuessMaxCount(key graph.AnnoKey, lower, upper string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vi, ok := s.byKey[key]
	if !ok {
		return 0, nil
	}
	lo := sort.SearchStrings(vi.sortedValues, lower)
	hi := sort.SearchStrings(vi.sortedValues, upper+"\xff")
	var count uint64
	for _, v := range vi.sortedValues[lo:hi] {
		count += uint64(len(vi.values[v]))
	}
	return count, nil
}

func (s *MemStore) GuessMaxCountRegex(key graph.AnnoKey, pattern string) (uint64, error) {
	prefix, exact := literalPrefix(pattern)
	s.mu.RLock()
	defer s.mu.RUnlock()
	vi, ok := s.byKey[key]
	if !ok {
		return 0, nil
	}
	if prefix == "" && !exact {
		// No extractable literal prefix: pessimistically assume every
		// value may match, per spec §4.1.
		var total uint64
		for _, set := range vi.values {
			total += uint64(len(set))
		}
		return total, nil
	}
	lo := sort.SearchStrings(vi.sortedValues, prefix)
	hi := sort.SearchStrings(vi.sortedValues, prefix+"\xff")
	var count uint64
	for _, v := range vi.sortedValues[lo:hi] {
		count += uint64(len(vi.values[v]))
	}
	return count, nil
}

func (s *MemStore) Close() error { return nil }
