package config

import (
	"fmt"
	"os"
	"time"

	"github.com/fluxstream/clustercore/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPollInterval        = 10 * time.Second
	DefaultMergeFloorSegmentMB = 100
	DefaultMergeFactor         = 16
)

// Config is clustercored's runtime configuration.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string

	ActionClientAddr string
	MetricsAddr      string

	PollInterval        time.Duration
	MergeFloorSegmentMB int64
	MergeFactor         int
}

// rawConfig is the YAML wire shape; PollInterval is a duration string
// ("10s", "1m") rather than time.Duration, which yaml.v3 cannot decode
// directly.
type rawConfig struct {
	NodeID              string `yaml:"nodeId"`
	BindAddr            string `yaml:"bindAddr"`
	DataDir             string `yaml:"dataDir"`
	ActionClientAddr    string `yaml:"actionClientAddr"`
	MetricsAddr         string `yaml:"metricsAddr"`
	PollInterval        string `yaml:"pollInterval"`
	MergeFloorSegmentMB int64  `yaml:"mergeFloorSegmentMB"`
	MergeFactor         int    `yaml:"mergeFactor"`
}

// Default returns the configuration used when no file is supplied,
// matching SPEC_FULL.md's configuration table.
func Default() Config {
	return Config{
		BindAddr:            "127.0.0.1:9000",
		DataDir:              "./data",
		ActionClientAddr:    "127.0.0.1:9500",
		MetricsAddr:         "127.0.0.1:9090",
		PollInterval:        DefaultPollInterval,
		MergeFloorSegmentMB: DefaultMergeFloorSegmentMB,
		MergeFactor:         DefaultMergeFactor,
	}
}

// Load reads a YAML config file at path, overlaying it onto Default.
// An empty path returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	raw := rawConfig{
		NodeID:              cfg.NodeID,
		BindAddr:            cfg.BindAddr,
		DataDir:             cfg.DataDir,
		ActionClientAddr:    cfg.ActionClientAddr,
		MetricsAddr:         cfg.MetricsAddr,
		PollInterval:        cfg.PollInterval.String(),
		MergeFloorSegmentMB: cfg.MergeFloorSegmentMB,
		MergeFactor:         cfg.MergeFactor,
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	pollInterval, err := time.ParseDuration(raw.PollInterval)
	if err != nil {
		return Config{}, fmt.Errorf("parse pollInterval: %w", err)
	}
	if pollInterval <= 0 {
		return Config{}, fmt.Errorf("pollInterval must be positive")
	}

	return Config{
		NodeID:              raw.NodeID,
		BindAddr:            raw.BindAddr,
		DataDir:             raw.DataDir,
		ActionClientAddr:    raw.ActionClientAddr,
		MetricsAddr:         raw.MetricsAddr,
		PollInterval:        pollInterval,
		MergeFloorSegmentMB: raw.MergeFloorSegmentMB,
		MergeFactor:         raw.MergeFactor,
	}, nil
}

// TargetMergePolicy returns the merge policy settings the DSLC drives
// every managed non-write index toward.
func (c Config) TargetMergePolicy() types.MergePolicySettings {
	return types.MergePolicySettings{
		FloorSegmentBytes: c.MergeFloorSegmentMB * 1024 * 1024,
		MergeFactor:       c.MergeFactor,
	}
}
