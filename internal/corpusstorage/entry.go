package corpusstorage

import (
	"sync"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/update"
)

// entryState is the per-corpus lifecycle state machine of spec §4.7:
// while a corpus is "loading" the cache must not try to evict or reload
// it.
type entryState int

const (
	stateIdle entryState = iota
	stateLoading
	stateReady
	stateEvicting
)

func (s entryState) String() string {
	switch s {
	case stateLoading:
		return "loading"
	case stateReady:
		return "ready"
	case stateEvicting:
		return "evicting"
	default:
		return "idle"
	}
}

// corpusEntry is one loaded corpus's working set plus the readers-writer
// lock spec §3 "Ownership" requires: callers obtain shared read
// references or exclusive write references mediated by this lock, never
// the Graph directly.
//
// Grounded on domain/core/aggregates/graph_aggregate.go's owning-aggregate
// shape (teacher), generalized from "one aggregate root behind one
// mutex" to "one Graph behind one RWMutex plus an explicit lifecycle
// state read by the cache".
type corpusEntry struct {
	mu sync.RWMutex

	Name  string
	Dir   string
	Graph *graph.Graph
	Anno  anno.Store
	WAL   *update.WAL

	state     entryState
	stateMu   sync.Mutex
	footprint int64 // bytes, sum of loaded components' ComponentStats.ByteSize()
}

func (e *corpusEntry) setState(s entryState) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

func (e *corpusEntry) getState() entryState {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// RLock/RUnlock/Lock/Unlock expose the entry's RWMutex to CorpusStorage
// without leaking the Graph pointer to callers that only hold a read
// reference.
func (e *corpusEntry) RLock()   { e.mu.RLock() }
func (e *corpusEntry) RUnlock() { e.mu.RUnlock() }
func (e *corpusEntry) Lock()    { e.mu.Lock() }
func (e *corpusEntry) Unlock()  { e.mu.Unlock() }

// recalcFootprint sums ComponentStats.ByteSize() across every component
// the entry's Graph has touched, for the cache's byte-budgeted eviction.
func (e *corpusEntry) recalcFootprint() {
	var total int64
	for _, c := range e.Graph.Components() {
		s, ok := e.Graph.Storage(c)
		if !ok {
			continue
		}
		total += s.Stats().ByteSize()
	}
	e.footprint = total
}
