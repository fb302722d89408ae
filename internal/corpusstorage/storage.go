package corpusstorage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/graphannis-go/graphannis-core/internal/aql"
	"github.com/graphannis-go/graphannis-core/internal/exec"
	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/plan"
	"github.com/graphannis-go/graphannis-core/internal/planner"
	"github.com/graphannis-go/graphannis-core/internal/update"
	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
	"github.com/graphannis-go/graphannis-core/pkg/observability"
)

// Options configures a CorpusStorage instance. Zero-value Options is
// usable; defaults mirror config.LoadCorpusStorageConfig's conventional
// values, so callers that do read process-level overrides plug them in
// through here rather than this package touching the environment itself.
type Options struct {
	CacheSizeMB int
	Logger      *zap.Logger
	Metrics     *observability.Collector
}

func (o Options) withDefaults() Options {
	if o.CacheSizeMB <= 0 {
		o.CacheSizeMB = 4096
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = observability.NewCollector("graphannis")
	}
	return o
}

// CorpusStorage is the process-level singleton of spec §9's "Global
// state" design note: constructed explicitly (never a package global) so
// tests can build isolated instances against isolated temp directories.
//
// Grounded on infrastructure/di/wire.go's Container (teacher): one long-
// lived object wiring every dependency the rest of the package needs,
// here specialized to "the set of corpora under one root directory".
type CorpusStorage struct {
	dir     string
	lock    *fileLock
	cache   *sizedCache
	logger  *zap.Logger
	metrics *observability.Collector
	jobs    *JobTable

	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker[*corpusEntry]

	loadMu sync.Mutex
	loads  map[string]*sync.Mutex // per-corpus load dedupe, held while openCorpusDir runs

	writers sync.WaitGroup // background writers: WAL flush, statistics refresh
}

// Open acquires the process-wide file lock on dir and discovers (but does
// not load) every corpus under it (spec §4.7 step 1-2).
func Open(dir string, opts Options) (*CorpusStorage, error) {
	opts = opts.withDefaults()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerrors.NewStorageIO("creating corpus storage dir", err)
	}
	lock, err := acquireFileLock(dir)
	if err != nil {
		return nil, err
	}

	cache, err := newSizedCache(opts.CacheSizeMB, opts.Metrics, opts.Logger)
	if err != nil {
		_ = lock.release()
		return nil, goerrors.NewStorageIO("building corpus cache", err)
	}

	cs := &CorpusStorage{
		dir:      dir,
		lock:     lock,
		cache:    cache,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		jobs:     NewJobTable(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[*corpusEntry]),
		loads:    make(map[string]*sync.Mutex),
	}
	cs.logger.Info("corpus storage opened", zap.String("dir", dir))
	return cs, nil
}

// Close waits for every tracked background writer (spec §4.7: "Drop of
// the storage waits for all pending writers") and releases the process-
// wide file lock.
func (cs *CorpusStorage) Close() error {
	cs.writers.Wait()
	cs.logger.Info("corpus storage closing", zap.String("dir", cs.dir))
	return cs.lock.release()
}

// ListCorpora discovers corpora by directory listing, per spec §4.7 step
// 2 ("does not load their graphs").
func (cs *CorpusStorage) ListCorpora() ([]string, error) {
	entries, err := os.ReadDir(cs.dir)
	if err != nil {
		return nil, goerrors.NewStorageIO("listing corpus storage dir", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (cs *CorpusStorage) breakerFor(name string) *gobreaker.CircuitBreaker[*corpusEntry] {
	cs.breakersMu.Lock()
	defer cs.breakersMu.Unlock()
	if b, ok := cs.breakers[name]; ok {
		return b
	}
	b := newOpenBreaker(name, cs.logger)
	cs.breakers[name] = b
	return b
}

func (cs *CorpusStorage) loadLockFor(name string) *sync.Mutex {
	cs.loadMu.Lock()
	defer cs.loadMu.Unlock()
	m, ok := cs.loads[name]
	if !ok {
		m = &sync.Mutex{}
		cs.loads[name] = m
	}
	return m
}

// Get returns name's loaded corpusEntry, opening it from disk if it is
// not already cache-resident (spec §4.7: "loading is performed under a
// per-corpus readers-writer lock; while a corpus is being loaded it is
// marked 'loading' so the cache does not attempt to evict or reload it").
func (cs *CorpusStorage) Get(name string) (*corpusEntry, error) {
	if e, ok := cs.cache.Get(name); ok {
		cs.metrics.CacheHits.Inc()
		return e, nil
	}
	cs.metrics.CacheMisses.Inc()

	loadLock := cs.loadLockFor(name)
	loadLock.Lock()
	defer loadLock.Unlock()

	// Re-check: another goroutine may have finished loading while we
	// waited for loadLock.
	if e, ok := cs.cache.Get(name); ok {
		return e, nil
	}

	corpusDir := filepath.Join(cs.dir, name)
	if _, err := os.Stat(corpusDir); os.IsNotExist(err) {
		return nil, goerrors.NewNoSuchCorpus(name)
	}

	breaker := cs.breakerFor(name)
	entry, err := breakerOpen(breaker, func() (*corpusEntry, error) {
		return cs.openCorpusDir(name, corpusDir)
	})
	if err != nil {
		cs.logger.Warn("corpus load failed", zap.String("corpus", name), zap.Error(err))
		return nil, err
	}

	entry.recalcFootprint()
	entry.setState(stateReady)
	cs.cache.Promote(entry)
	cs.cache.evictUntilWithinBudget()
	return entry, nil
}

// openCorpusDir builds a fresh corpusEntry from corpusDir: recovers any
// pending backup (spec §4.3), opens the disk-resident annotation store,
// replays the WAL if a crash left it non-empty, and marks the entry
// "loading" for the cache's duration (spec §4.7).
func (cs *CorpusStorage) openCorpusDir(name, corpusDir string) (*corpusEntry, error) {
	if err := recoverFromBackup(corpusDir); err != nil {
		return nil, err
	}

	annoDir := filepath.Join(corpusDir, "annotations")
	if err := os.MkdirAll(annoDir, 0o755); err != nil {
		return nil, goerrors.NewStorageIO("creating annotations dir", err)
	}
	store, err := anno.OpenDiskStore(filepath.Join(annoDir, "store.bolt"), 10_000)
	if err != nil {
		return nil, err
	}

	g := graph.New(corpusDir, store)
	wal := update.OpenWAL(corpusDir)

	entry := &corpusEntry{Name: name, Dir: corpusDir, Graph: g, Anno: store, WAL: wal}
	entry.setState(stateLoading)

	if err := g.Replay(context.Background(), wal); err != nil {
		_ = store.Close()
		return nil, goerrors.NewLoadingFailed("replaying WAL for "+name, err)
	}
	cs.metrics.WALReplays.Inc()

	return entry, nil
}

// ApplyUpdate is spec §4.3's apply_update, run as a tracked background
// writer so Close can wait for in-flight mutations to finish durably
// (spec §4.7: "background writers... are tracked").
func (cs *CorpusStorage) ApplyUpdate(ctx context.Context, name string, batch update.Batch, keepStatistics bool) error {
	entry, err := cs.Get(name)
	if err != nil {
		return err
	}
	entry.Lock()
	defer entry.Unlock()

	cs.writers.Add(1)
	defer cs.writers.Done()

	if err := entry.Graph.ApplyUpdate(ctx, entry.WAL, batch, keepStatistics); err != nil {
		return err
	}
	cs.metrics.WALFlushes.Inc()
	entry.recalcFootprint()
	return nil
}

// QueryResult bundles a compiled, cost-planned query ready to be handed
// to Count, Find, or Subgraph, so the (often expensive) parse+plan step
// runs once per call even when a caller wants both a count and a page of
// matches.
type QueryResult struct {
	entry *corpusEntry
	plan  *plan.Plan
}

// Compile parses, normalizes, and cost-plans an AQL query against name's
// graph (spec §4.4, §4.5). quirksMode controls legacy identity-join
// insertion; it does not affect Find's locale-aware sort, which is
// controlled independently via FindOptions.Sort.
func (cs *CorpusStorage) Compile(ctx context.Context, name, aqlQuery string, quirksMode bool) (*QueryResult, error) {
	entry, err := cs.Get(name)
	if err != nil {
		return nil, err
	}

	q, err := aql.Parse(aqlQuery, quirksMode)
	if err != nil {
		return nil, err
	}
	if err := q.Normalize(); err != nil {
		return nil, err
	}

	p := plan.FromQuery(q)
	model := &planner.CostModel{Anno: entry.Anno, Graph: entry.Graph}
	if err := planner.NewSearch(model).Plan(ctx, entry.Graph, p); err != nil {
		return nil, err
	}
	cs.metrics.PlannerRestarts.Inc()

	return &QueryResult{entry: entry, plan: p}, nil
}

// Count is spec §4.6's count: matchCount plus documentCount.
func (cs *CorpusStorage) Count(ctx context.Context, qr *QueryResult) (exec.CountResult, error) {
	start := time.Now()
	defer func() { cs.metrics.QueryDuration.WithLabelValues("count").Observe(time.Since(start).Seconds()) }()

	qr.entry.RLock()
	defer qr.entry.RUnlock()

	matches, err := exec.Build(ctx, qr.entry.Graph, qr.entry.Anno, qr.plan)
	if err != nil {
		return exec.CountResult{}, err
	}
	res, err := exec.Count(ctx, qr.entry.Anno, matches)
	if goerrors.IsTimeout(err) {
		cs.metrics.QueryTimeouts.Inc()
	}
	return res, err
}

// Find is spec §4.6's find: sorted, paginated match tuples.
func (cs *CorpusStorage) Find(ctx context.Context, qr *QueryResult, opts exec.FindOptions) ([]exec.Tuple, error) {
	start := time.Now()
	defer func() { cs.metrics.QueryDuration.WithLabelValues("find").Observe(time.Since(start).Seconds()) }()

	qr.entry.RLock()
	defer qr.entry.RUnlock()

	matches, err := exec.Build(ctx, qr.entry.Graph, qr.entry.Anno, qr.plan)
	if err != nil {
		return nil, err
	}
	tuples, err := exec.Find(ctx, qr.entry.Anno, matches, opts)
	if goerrors.IsTimeout(err) {
		cs.metrics.QueryTimeouts.Inc()
	}
	return tuples, err
}

// Subgraph is spec §4.6's subgraph: the context window around one match
// tuple, expressed against name's graph directly since a subgraph call is
// always relative to a previously produced match, not a fresh query.
func (cs *CorpusStorage) Subgraph(ctx context.Context, name string, match exec.Tuple, ctxLeft, ctxRight int, segmentation string) (*exec.AnnotationGraph, error) {
	start := time.Now()
	defer func() {
		cs.metrics.QueryDuration.WithLabelValues("subgraph").Observe(time.Since(start).Seconds())
	}()

	entry, err := cs.Get(name)
	if err != nil {
		return nil, err
	}
	entry.RLock()
	defer entry.RUnlock()

	return exec.Subgraph(ctx, entry.Graph, entry.Anno, match, ctxLeft, ctxRight, segmentation)
}
