package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadSaveCorpusConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus-config.toml")
	cfg := &CorpusConfig{
		CorpusSize: CorpusSize{Quantity: 373436, Unit: SizeUnit{Name: "tokens"}},
		View:       ViewConfig{TimelineStrategy: "scroll"},
		Example:    []ExampleQuery{{Query: `tok="Hello"`, Description: "greeting"}},
	}
	require.NoError(t, SaveCorpusConfig(path, cfg))

	loaded, err := LoadCorpusConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.CorpusSize, loaded.CorpusSize)
	assert.Equal(t, cfg.View.TimelineStrategy, loaded.View.TimelineStrategy)
	require.Len(t, loaded.Example, 1)
	assert.Equal(t, `tok="Hello"`, loaded.Example[0].Query)
}

func TestResolverMappingsFromYAMLFragment(t *testing.T) {
	cfg := &CorpusConfig{
		VisualizerYAML: "- layer: default_ns\n  vis: tree\n  mappings:\n    node: cat\n",
	}
	mappings, err := cfg.ResolverMappings()
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "tree", mappings[0].Vis)
	assert.Equal(t, "cat", mappings[0].Mappings["node"])
}

func TestResolverMappingsEmpty(t *testing.T) {
	cfg := &CorpusConfig{}
	mappings, err := cfg.ResolverMappings()
	require.NoError(t, err)
	assert.Nil(t, mappings)
}

func TestComponentStatisticsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statistics.toml")
	stats := &ComponentStatistics{Edges: 100, Nodes: 50, FanOutMax: 4}
	require.NoError(t, SaveComponentStatistics(path, stats))

	loaded, err := LoadComponentStatistics(path)
	require.NoError(t, err)
	assert.Equal(t, *stats, *loaded)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus-config.toml")
	require.NoError(t, SaveCorpusConfig(path, &CorpusConfig{
		CorpusSize: CorpusSize{Quantity: 1, Unit: SizeUnit{Name: "tokens"}},
	}))

	logger := zap.NewNop()
	w, err := NewWatcher(path, logger)
	require.NoError(t, err)
	defer w.Close()

	changed := make(chan *CorpusConfig, 1)
	w.OnChange(func(c *CorpusConfig) { changed <- c })

	require.NoError(t, SaveCorpusConfig(path, &CorpusConfig{
		CorpusSize: CorpusSize{Quantity: 2, Unit: SizeUnit{Name: "tokens"}},
	}))

	select {
	case c := <-changed:
		assert.Equal(t, uint64(2), c.CorpusSize.Quantity)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
