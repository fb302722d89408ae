package corpusstorage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/graphannis-go/graphannis-core/pkg/observability"
)

func TestSizedCacheEvictsOverBudgetEntries(t *testing.T) {
	cache, err := newSizedCache(0, observability.NewCollector("graphannis_cache_test"), nil)
	require.NoError(t, err)
	cache.logger = zap.NewNop()
	cache.budgetBytes = 100 // tiny budget forces eviction on the next Add

	small := &corpusEntry{Name: "small", footprint: 10}
	big := &corpusEntry{Name: "big", footprint: 200}
	small.setState(stateReady)
	big.setState(stateReady)

	cache.Promote(big)
	cache.Promote(small)
	cache.evictUntilWithinBudget()

	_, smallPresent := cache.Get("small")
	_, bigPresent := cache.Get("big")
	assert.False(t, bigPresent, "oldest entry should have been evicted first")
	assert.True(t, smallPresent)
}

func TestSizedCacheSkipsLoadingEntries(t *testing.T) {
	cache, err := newSizedCache(0, observability.NewCollector("graphannis_cache_test2"), nil)
	require.NoError(t, err)
	cache.logger = zap.NewNop()
	cache.budgetBytes = 1

	loading := &corpusEntry{Name: "loading", footprint: 500}
	loading.setState(stateLoading)
	cache.Promote(loading)
	cache.evictUntilWithinBudget()

	_, present := cache.Get("loading")
	assert.True(t, present, "a corpus mid-load must not be evicted")
}

func TestSizedCachePromoteMovesToFront(t *testing.T) {
	cache, err := newSizedCache(4096, observability.NewCollector("graphannis_cache_test3"), nil)
	require.NoError(t, err)
	cache.logger = zap.NewNop()

	a := &corpusEntry{Name: "a"}
	b := &corpusEntry{Name: "b"}
	a.setState(stateReady)
	b.setState(stateReady)
	cache.Promote(a)
	cache.Promote(b)
	cache.Promote(a) // a is now most-recently-used; b is the eviction candidate

	assert.Equal(t, "b", cache.oldestEvictable())
}
