package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all configuration for a pipeline run
type Config struct {
	Expression string `koanf:"expression"`
	Embedding  string `koanf:"embedding"`
	Labels     string `koanf:"labels"`
	OutDir     string `koanf:"out"`

	Experiment string `koanf:"experiment"`
	GroupBy    string `koanf:"group_by"` // comma-separated label keys for metacell grouping
	TestBy     string `koanf:"test_by"`  // label key for one-vs-rest differential tests
	BatchBy    string `koanf:"batch_by"` // label key for eigengene harmonization (optional)

	K         int    `koanf:"k"`
	MaxShared int    `koanf:"max_shared"`
	MinCells  int    `koanf:"min_cells"`
	Aggregate string `koanf:"aggregate"`

	Power          float64 `koanf:"power"` // 0 selects from the sweep table
	NetworkType    string  `koanf:"network_type"`
	TOMType        string  `koanf:"tom_type"`
	Correlation    string  `koanf:"correlation"`
	MinModuleSize  int     `koanf:"min_module_size"`
	DeepSplit      int     `koanf:"deep_split"`
	MergeCutHeight float64 `koanf:"merge_cut_height"`

	HubGenes  int    `koanf:"hub_genes"`
	Verbosity string `koanf:"verbosity"`
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"expression":       "",
		"embedding":        "",
		"labels":           "",
		"out":              "out",
		"experiment":       "default",
		"group_by":         "",
		"test_by":          "",
		"batch_by":         "",
		"k":                25,
		"max_shared":       10,
		"min_cells":        50,
		"aggregate":        "mean",
		"power":            0.0,
		"network_type":     "signed",
		"tom_type":         "unsigned",
		"correlation":      "pearson",
		"min_module_size":  30,
		"deep_split":       2,
		"merge_cut_height": 0.15,
		"hub_genes":        10,
		"verbosity":        "",
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - coexnet.toml
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider("coexnet.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: COEXNET_ (e.g., COEXNET_MIN_MODULE_SIZE=50)
	if err := k.Load(env.Provider("COEXNET_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "COEXNET_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// GroupKeys splits the comma-separated grouping keys.
func (c *Config) GroupKeys() []string {
	if c.GroupBy == "" {
		return nil
	}
	parts := strings.Split(c.GroupBy, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

// Validate checks required fields and parameter ranges.
func (c *Config) Validate() error {
	if c.Expression == "" {
		return fmt.Errorf("config: expression matrix path is required")
	}
	if c.Embedding == "" {
		return fmt.Errorf("config: embedding path is required")
	}
	if c.K <= 0 {
		return fmt.Errorf("config: k must be positive, got %d", c.K)
	}
	if c.MaxShared < 0 {
		return fmt.Errorf("config: max_shared must be nonnegative, got %d", c.MaxShared)
	}
	if c.DeepSplit < 0 || c.DeepSplit > 4 {
		return fmt.Errorf("config: deep_split must be in [0,4], got %d", c.DeepSplit)
	}
	if c.MergeCutHeight < 0 || c.MergeCutHeight > 1 {
		return fmt.Errorf("config: merge_cut_height must be in [0,1], got %g", c.MergeCutHeight)
	}
	return nil
}

// makeMapProvider creates a simple koanf provider from a map
type mapProvider struct {
	data map[string]interface{}
}

func makeMapProvider(data map[string]interface{}) *mapProvider {
	return &mapProvider{data: data}
}

func (m *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("map provider does not support ReadBytes")
}

func (m *mapProvider) Read() (map[string]interface{}, error) {
	return m.data, nil
}
