// Package config decodes and watches the on-disk configuration files of
// spec §6: corpus-config.toml, statistics.toml, and global_statistics.toml.
// Grounded on the teacher's infrastructure/config/config.go (flat env-var
// loading with strconv) for the thin process-level CorpusStorageConfig
// layer, and on internal/config/watcher.go (fsnotify.Watcher + zap.Logger
// hot-reload) for watch.go, retargeted from a YAML application-config
// directory to one corpus's corpus-config.toml file.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

// SizeUnit is corpus-config.toml's [corpus_size] unit discriminator (spec
// §6: "unit is either {name="tokens"} or {name="segmentation",
// value=<layer>}").
type SizeUnit struct {
	Name  string `toml:"name"`
	Value string `toml:"value,omitempty"`
}

// CorpusSize is the [corpus_size] table.
type CorpusSize struct {
	Quantity uint64   `toml:"quantity"`
	Unit     SizeUnit `toml:"unit"`
}

// ViewConfig is the [view] table controlling the legacy web UI's timeline
// rendering and annotation ordering; graphANNIS-core itself never
// interprets these beyond round-tripping them.
type ViewConfig struct {
	TimelineStrategy     string   `toml:"timeline_strategy,omitempty"`
	CorpusAnnotationOrder []string `toml:"corpus_annotation_order,omitempty"`
}

// ExampleQuery is one entry of corpus-config.toml's example-queries list.
type ExampleQuery struct {
	Query       string `toml:"query"`
	Description string `toml:"description,omitempty"`
}

// CorpusConfig is the full decoded shape of one corpus's corpus-config.toml
// (spec §6). The resolver/visualizer mapping section and the virtual-
// tokenization fields are kept as opaque values: the original format
// allows embedded YAML fragments and free-form virtual-tokenization maps
// that this engine never interprets, only round-trips (DESIGN.md, Open
// Questions).
type CorpusConfig struct {
	CorpusSize CorpusSize `toml:"corpus_size"`
	View       ViewConfig `toml:"view,omitempty"`
	Example    []ExampleQuery `toml:"example_queries,omitempty"`

	// VisualizerYAML holds the raw YAML fragment stored under the
	// visualizer_yaml key, decoded lazily via ResolverMappings since
	// it is historically YAML embedded inside an otherwise-TOML document.
	VisualizerYAML string `toml:"visualizer_yaml,omitempty"`

	VirtualTokenizationMapping       map[string]any `toml:"virtual_tokenization_mapping,omitempty"`
	VirtualTokenizationFromNamespace map[string]any `toml:"virtual_tokenization_from_namespace,omitempty"`
}

// ResolverMapping is one entry of the legacy YAML resolver/visualizer
// fragment embedded in corpus-config.toml's VisualizerYAML field.
type ResolverMapping struct {
	Layer      string            `yaml:"layer"`
	Vis        string            `yaml:"vis"`
	Display    string            `yaml:"display,omitempty"`
	Mappings   map[string]string `yaml:"mappings,omitempty"`
}

// ResolverMappings decodes c's VisualizerYAML fragment, returning nil,nil
// if the corpus has none.
func (c *CorpusConfig) ResolverMappings() ([]ResolverMapping, error) {
	if c.VisualizerYAML == "" {
		return nil, nil
	}
	var out []ResolverMapping
	if err := yaml.Unmarshal([]byte(c.VisualizerYAML), &out); err != nil {
		return nil, goerrors.NewParse("invalid resolver/visualizer YAML fragment: " + err.Error())
	}
	return out, nil
}

// LoadCorpusConfig reads and decodes corpus-config.toml at path.
func LoadCorpusConfig(path string) (*CorpusConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerrors.NewStorageIO("reading corpus-config.toml", err)
	}
	var cfg CorpusConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, goerrors.NewParse("invalid corpus-config.toml: " + err.Error())
	}
	return &cfg, nil
}

// SaveCorpusConfig encodes cfg back to path.
func SaveCorpusConfig(path string, cfg *CorpusConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return goerrors.NewWrapped(goerrors.KindStorageIO, "encoding corpus-config.toml", err)
	}
	return goerrors.Wrap(os.WriteFile(path, data, 0o644), "writing corpus-config.toml")
}

// ComponentStatistics mirrors one gs.ComponentStats, persisted under
// gs/<type>/<layer>/<name>/statistics.toml (spec §6).
type ComponentStatistics struct {
	Edges           uint64  `toml:"edges"`
	Nodes           uint64  `toml:"nodes"`
	RootCount       uint64  `toml:"root_count"`
	FanOutAvg       float64 `toml:"fan_out_avg"`
	FanOutMax       uint32  `toml:"fan_out_max"`
	DepthAvg        float64 `toml:"depth_avg"`
	DepthMax        uint32  `toml:"depth_max"`
	DenselyNumbered bool    `toml:"densely_numbered"`
	MaxBranchOut    uint32  `toml:"max_branch_out"`
}

// LoadComponentStatistics reads one component's statistics.toml.
func LoadComponentStatistics(path string) (*ComponentStatistics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerrors.NewStorageIO("reading statistics.toml", err)
	}
	var s ComponentStatistics
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, goerrors.NewParse("invalid statistics.toml: " + err.Error())
	}
	return &s, nil
}

// SaveComponentStatistics writes one component's statistics.toml.
func SaveComponentStatistics(path string, s *ComponentStatistics) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return goerrors.NewWrapped(goerrors.KindStorageIO, "encoding statistics.toml", err)
	}
	return goerrors.Wrap(os.WriteFile(path, data, 0o644), "writing statistics.toml")
}

// GlobalStatistics is the corpus-wide global_statistics.toml (spec §6:
// "overall graph statistics (node count, per-type component counts,
// per-component root counts)").
type GlobalStatistics struct {
	NodeCount           uint64           `toml:"node_count"`
	ComponentCounts     map[string]uint64 `toml:"component_counts"`
	ComponentRootCounts map[string]uint64 `toml:"component_root_counts"`
}

func LoadGlobalStatistics(path string) (*GlobalStatistics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerrors.NewStorageIO("reading global_statistics.toml", err)
	}
	var s GlobalStatistics
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, goerrors.NewParse("invalid global_statistics.toml: " + err.Error())
	}
	return &s, nil
}

func SaveGlobalStatistics(path string, s *GlobalStatistics) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return goerrors.NewWrapped(goerrors.KindStorageIO, "encoding global_statistics.toml", err)
	}
	return goerrors.Wrap(os.WriteFile(path, data, 0o644), "writing global_statistics.toml")
}

// CorpusStorageConfig is the thin process-level override layer (cache
// size, lock directory), kept in the teacher's flat-env-var style
// (infrastructure/config/config.go) since it is process config, not
// per-corpus config.
type CorpusStorageConfig struct {
	CacheSizeMB  int
	LockDir      string
}

// LoadCorpusStorageConfig reads process-level overrides from the
// environment, falling back to graphANNIS's conventional defaults.
func LoadCorpusStorageConfig() CorpusStorageConfig {
	cfg := CorpusStorageConfig{CacheSizeMB: 4096}
	if v := os.Getenv("GRAPHANNIS_CACHE_SIZE_MB"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.CacheSizeMB = n
		}
	}
	cfg.LockDir = os.Getenv("GRAPHANNIS_LOCK_DIR")
	return cfg
}

func parsePositiveInt(s string) (int, error) {
	var n int
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, goerrors.NewParse("not a positive integer: " + s)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
