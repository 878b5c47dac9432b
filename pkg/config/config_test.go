package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:9000", cfg.BindAddr)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, int64(DefaultMergeFloorSegmentMB), cfg.MergeFloorSegmentMB)
	assert.Equal(t, DefaultMergeFactor, cfg.MergeFactor)
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysProvidedFields(t *testing.T) {
	path := writeConfigFile(t, `
nodeId: node-a
bindAddr: 10.0.0.1:9000
pollInterval: 30s
mergeFactor: 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node-a", cfg.NodeID)
	assert.Equal(t, "10.0.0.1:9000", cfg.BindAddr)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 8, cfg.MergeFactor)
	// Fields not present in the file keep Default's values.
	assert.Equal(t, "127.0.0.1:9500", cfg.ActionClientAddr)
	assert.Equal(t, int64(DefaultMergeFloorSegmentMB), cfg.MergeFloorSegmentMB)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAMLErrors(t *testing.T) {
	path := writeConfigFile(t, "not: [valid yaml")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ZeroPollIntervalErrors(t *testing.T) {
	path := writeConfigFile(t, "pollInterval: 0s")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_UnparseablePollIntervalErrors(t *testing.T) {
	path := writeConfigFile(t, "pollInterval: not-a-duration")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_TargetMergePolicy(t *testing.T) {
	cfg := Config{MergeFloorSegmentMB: 50, MergeFactor: 4}
	target := cfg.TargetMergePolicy()
	assert.Equal(t, int64(50*1024*1024), target.FloorSegmentBytes)
	assert.Equal(t, 4, target.MergeFactor)
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}
