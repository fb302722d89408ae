package exec

import (
	"bufio"
	"container/heap"
	"context"
	"encoding/binary"
	"encoding/gob"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
)

// SortOptions configures Find's ordering (spec §4.6, §9 "quirks mode...
// changes sort order (locale-aware)").
type SortOptions struct {
	// Quirks enables locale-aware node-name comparison via
	// golang.org/x/text/collate instead of a byte-wise string compare.
	Quirks bool
	// Locale is the collation locale used when Quirks is set. Spec §9's
	// Open Question leaves the historical quirks-mode locale
	// system-dependent; this module resolves it to an explicit default
	// (en_US) rather than inheriting ambient state.
	Locale language.Tag
	// MemoryReservation bounds how many tuples are sorted in memory
	// before Find spills sorted runs to temporary files and merges them
	// (spec §4.6: "external merge sort when the set exceeds a memory
	// threshold").
	MemoryReservation int
}

// DefaultSortOptions mirrors the historical quirks-mode default (spec §9).
func DefaultSortOptions() SortOptions {
	return SortOptions{Locale: language.AmericanEnglish, MemoryReservation: 100_000}
}

// sortKey is the resolved, comparable projection of a Tuple spec §4.6's
// find sorts by: `(document-path desc, reversed token order, node name)`.
type sortKey struct {
	docPath   string
	tokenOrd  int64 // representative bound node id; higher sorts first
	nodeName  string
}

func resolveSortKey(store anno.Store, t Tuple) (sortKey, error) {
	var k sortKey
	for _, m := range t {
		if isEmpty(m) {
			continue
		}
		name, ok, err := store.Get(anno.NodeItem(m.Node), graph.NodeNameKey)
		if err != nil {
			return k, err
		}
		if !ok {
			continue
		}
		if k.nodeName == "" {
			k.nodeName = name
			k.docPath = documentPath(name)
		}
		if int64(m.Node) > k.tokenOrd {
			k.tokenOrd = int64(m.Node)
		}
	}
	return k, nil
}

// documentPath strips the local-id suffix from a node name of the form
// "corpus/sub-corpus/document#local-id" (spec §6's node-name convention).
func documentPath(name string) string {
	if idx := strings.LastIndex(name, "#"); idx >= 0 {
		return name[:idx]
	}
	return name
}

func compareKeys(a, b sortKey, quirks bool, collator *collate.Collator) int {
	if c := compareDocPathDesc(a.docPath, b.docPath, quirks, collator); c != 0 {
		return c
	}
	if a.tokenOrd != b.tokenOrd {
		if a.tokenOrd > b.tokenOrd {
			return -1
		}
		return 1
	}
	if quirks {
		return collator.CompareString(a.nodeName, b.nodeName)
	}
	return strings.Compare(a.nodeName, b.nodeName)
}

func compareDocPathDesc(a, b string, quirks bool, collator *collate.Collator) int {
	var c int
	if quirks {
		c = collator.CompareString(a, b)
	} else {
		c = strings.Compare(a, b)
	}
	return -c // descending
}

// SortTuples sorts ts by spec §4.6's find ordering, spilling to disk via
// externalSort once len(ts) exceeds opts.MemoryReservation.
func SortTuples(ctx context.Context, store anno.Store, ts []Tuple, opts SortOptions) ([]Tuple, error) {
	if len(ts) > opts.MemoryReservation {
		return externalSort(ctx, store, ts, opts)
	}
	keys := make([]sortKey, len(ts))
	for i, t := range ts {
		k, err := resolveSortKey(store, t)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	collator := collate.New(opts.Locale)
	idx := make([]int, len(ts))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return compareKeys(keys[idx[i]], keys[idx[j]], opts.Quirks, collator) < 0
	})
	out := make([]Tuple, len(ts))
	for i, j := range idx {
		out[i] = ts[j]
	}
	return out, nil
}

// externalSort splits ts into in-memory-sortable runs, spills each run to
// a temp file length-prefixed-gob framed exactly like internal/update's
// WAL, then k-way merges the runs by key (spec §4.6).
func externalSort(ctx context.Context, store anno.Store, ts []Tuple, opts SortOptions) ([]Tuple, error) {
	dir, err := os.MkdirTemp("", "graphannis-sort-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	collator := collate.New(opts.Locale)
	var runFiles []string
	for start := 0; start < len(ts); start += opts.MemoryReservation {
		end := start + opts.MemoryReservation
		if end > len(ts) {
			end = len(ts)
		}
		run := ts[start:end]
		keys := make([]sortKey, len(run))
		for i, t := range run {
			k, err := resolveSortKey(store, t)
			if err != nil {
				return nil, err
			}
			keys[i] = k
		}
		idx := make([]int, len(run))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(i, j int) bool {
			return compareKeys(keys[idx[i]], keys[idx[j]], opts.Quirks, collator) < 0
		})

		path, err := writeRun(dir, run, idx)
		if err != nil {
			return nil, err
		}
		runFiles = append(runFiles, path)
	}

	return mergeRuns(ctx, store, runFiles, opts, collator)
}

func writeRun(dir string, run []Tuple, order []int) (string, error) {
	f, err := os.CreateTemp(dir, "run-*.gob")
	if err != nil {
		return "", err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, i := range order {
		if err := encodeFramed(w, run[i]); err != nil {
			return "", err
		}
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func encodeFramed(w io.Writer, t Tuple) error {
	var buf runBuffer
	if err := gob.NewEncoder(&buf).Encode(t); err != nil {
		return err
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(buf.data)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := w.Write(buf.data)
	return err
}

// runBuffer/readBuffer are minimal io.Writer/io.Reader sinks, avoiding a
// bytes.Buffer import for the same reason internal/update's WAL framing
// does.
type runBuffer struct{ data []byte }

func (b *runBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

type readBuffer struct {
	data []byte
	pos  int
}

func (b *readBuffer) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

type runReader struct {
	f   *os.File
	r   *bufio.Reader
	cur Tuple
	key sortKey
	ok  bool
}

func openRun(path string) (*runReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &runReader{f: f, r: bufio.NewReader(f)}, nil
}

func (rr *runReader) advance(store anno.Store) error {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(rr.r, lenPrefix[:]); err != nil {
		if err == io.EOF {
			rr.ok = false
			return nil
		}
		return err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(rr.r, data); err != nil {
		return err
	}
	var t Tuple
	if err := gob.NewDecoder(&readBuffer{data: data}).Decode(&t); err != nil {
		return err
	}
	k, err := resolveSortKey(store, t)
	if err != nil {
		return err
	}
	rr.cur, rr.key, rr.ok = t, k, true
	return nil
}

func (rr *runReader) Close() error { return rr.f.Close() }

// runHeap is a min-heap over open runs' current head tuple, ordered by
// compareKeys, driving the k-way merge.
type runHeap struct {
	runs     []*runReader
	quirks   bool
	collator *collate.Collator
}

func (h *runHeap) Len() int { return len(h.runs) }
func (h *runHeap) Less(i, j int) bool {
	return compareKeys(h.runs[i].key, h.runs[j].key, h.quirks, h.collator) < 0
}
func (h *runHeap) Swap(i, j int) { h.runs[i], h.runs[j] = h.runs[j], h.runs[i] }
func (h *runHeap) Push(x any)    { h.runs = append(h.runs, x.(*runReader)) }
func (h *runHeap) Pop() any {
	old := h.runs
	n := len(old)
	item := old[n-1]
	h.runs = old[:n-1]
	return item
}

func mergeRuns(ctx context.Context, store anno.Store, paths []string, opts SortOptions, collator *collate.Collator) ([]Tuple, error) {
	h := &runHeap{quirks: opts.Quirks, collator: collator}
	for _, p := range paths {
		rr, err := openRun(p)
		if err != nil {
			return nil, err
		}
		defer rr.Close()
		if err := rr.advance(store); err != nil {
			return nil, err
		}
		if rr.ok {
			h.runs = append(h.runs, rr)
		}
	}
	heap.Init(h)

	var out []Tuple
	for h.Len() > 0 {
		if err := checkDeadline(ctx); err != nil {
			return nil, err
		}
		top := h.runs[0]
		out = append(out, top.cur)
		if err := top.advance(store); err != nil {
			return nil, err
		}
		if top.ok {
			heap.Fix(h, 0)
		} else {
			heap.Pop(h)
		}
	}
	return out, nil
}
