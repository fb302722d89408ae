// Package observability wires the module's ambient metrics and tracing.
// Nothing here is exposed over HTTP: there is no REST surface in this
// module's scope, but the counters and histograms are still worth keeping
// so an embedding process can register them with its own exporter.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalCollector *Collector
	collectorMu     sync.Mutex
)

// Collector holds every Prometheus metric the core engine produces.
type Collector struct {
	Registry *prometheus.Registry

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheEvictions prometheus.Counter

	QueryDuration   *prometheus.HistogramVec // labels: operation (count|find|subgraph)
	QueryTimeouts   prometheus.Counter
	PlannerRestarts prometheus.Counter

	WALFlushes prometheus.Counter
	WALReplays prometheus.Counter

	ComponentLoads *prometheus.CounterVec // labels: type
}

// NewCollector builds a Collector registered under the given namespace.
// Repeated calls with the same process return the first collector built
// (mirrors the teacher's singleton guard, which exists so test suites that
// construct multiple CorpusStorage instances do not panic on duplicate
// Prometheus registration).
func NewCollector(namespace string) *Collector {
	collectorMu.Lock()
	defer collectorMu.Unlock()
	if globalCollector != nil {
		return globalCollector
	}

	reg := prometheus.NewRegistry()
	c := &Collector{
		Registry: reg,
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_hits_total", Help: "Corpus cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_misses_total", Help: "Corpus cache misses.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_evictions_total", Help: "Corpus cache evictions.",
		}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "query_duration_seconds", Help: "Query execution duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		QueryTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "query_timeouts_total", Help: "Queries that hit their deadline.",
		}),
		PlannerRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "planner_restarts_total", Help: "Random-restart iterations in join ordering.",
		}),
		WALFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "wal_flushes_total", Help: "Write-ahead log fsync+truncate cycles.",
		}),
		WALReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "wal_replays_total", Help: "WAL replays performed on corpus open.",
		}),
		ComponentLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "component_loads_total", Help: "Graph storage components loaded from disk.",
		}, []string{"type"}),
	}

	reg.MustRegister(
		c.CacheHits, c.CacheMisses, c.CacheEvictions,
		c.QueryDuration, c.QueryTimeouts, c.PlannerRestarts,
		c.WALFlushes, c.WALReplays, c.ComponentLoads,
	)

	globalCollector = c
	return c
}

// resetForTest clears the singleton so tests can build an isolated
// Collector with its own Registry.
func resetForTest() {
	collectorMu.Lock()
	defer collectorMu.Unlock()
	globalCollector = nil
}
