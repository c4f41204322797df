package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "netbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
capture:
  interface: eth0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Run.Runs)
	assert.Equal(t, 4, cfg.Run.Threads)
	assert.Equal(t, 100, cfg.Run.QueueDepth)
	assert.Equal(t, 0.10, cfg.Regression.Threshold)
	assert.Equal(t, "netbench-result.json", cfg.OutputPath)
}

func TestLoadMissingInterfaceIsInvalid(t *testing.T) {
	path := writeConfig(t, `
run:
  runs: 3
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture.interface")
}

func TestLoadRejectsUnsupportedFilter(t *testing.T) {
	path := writeConfig(t, `
capture:
  interface: eth0
  filter: tcp
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture.filter")
}

func TestLoadAggregatesMultipleErrors(t *testing.T) {
	path := writeConfig(t, `
capture:
  filter: udp
run:
  runs: -1
  warmup_sec: -1
`)
	_, err := Load(path)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "capture.interface")
	assert.Contains(t, msg, "capture.filter")
	assert.Contains(t, msg, "run.runs")
	assert.Contains(t, msg, "run.warmup_sec")
}

func TestLoadValidConfigPassesThrough(t *testing.T) {
	path := writeConfig(t, `
capture:
  interface: eth0
  filter: icmp
  promiscuous: true
run:
  runs: 3
  threads: 8
  warmup_sec: 2
  duration_sec: 10
traffic:
  mode: ping
  target: 127.0.0.1
  rate: 50
regression:
  baseline_path: baseline.json
  threshold: 0.2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "eth0", cfg.Capture.Interface)
	assert.True(t, cfg.Capture.Promiscuous)
	assert.Equal(t, 8, cfg.Run.Threads)
	assert.Equal(t, "ping", cfg.Traffic.Mode)
	assert.Equal(t, 0.2, cfg.Regression.Threshold)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
