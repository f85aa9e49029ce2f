package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPopulatesEveryField(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultWorkerCount, cfg.Worker.Count)
	assert.Equal(t, DefaultQueueCapacity, cfg.Queue.Capacity)
	assert.Equal(t, DefaultEnqueueWaitMs, cfg.Queue.EnqueueWaitMs)
	assert.Equal(t, DefaultMetricsWindow, cfg.Metrics.WindowSize)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkerCount, cfg.Worker.Count)
}

func TestLoadPartialFileFillsRemainingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := "worker:\n  count: 16\nqueue:\n  capacity: 500\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Worker.Count)
	assert.Equal(t, 500, cfg.Queue.Capacity)
	assert.Equal(t, DefaultEnqueueWaitMs, cfg.Queue.EnqueueWaitMs)
	assert.Equal(t, DefaultMetricsWindow, cfg.Metrics.WindowSize)
}

func TestLoadMalformedYAMLReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnqueueWaitBudgetConvertsMillisToDuration(t *testing.T) {
	cfg := Default()
	cfg.Queue.EnqueueWaitMs = 250
	assert.Equal(t, int64(250), cfg.EnqueueWaitBudget().Milliseconds())
}
