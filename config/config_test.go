package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYamlConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
ws_url: wss://api.example.com/ws
rest_url: https://api.example.com
dashboard_addr: ":9090"
tls_domains:
  - dash.example.com
batch_interval: 50ms
token_refresh_interval: 5m
history_limit: 500
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := getYaml(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://api.example.com/ws", cfg.WSURL)
	assert.Equal(t, ":9090", cfg.DashboardAddr)
	assert.Equal(t, []string{"dash.example.com"}, cfg.TLSDomains)
	assert.Equal(t, 50*time.Millisecond, cfg.BatchInterval)
	assert.Equal(t, 5*time.Minute, cfg.TokenRefreshInterval)
	assert.Equal(t, 500, cfg.HistoryLimit)

	// unset fields fall back to defaults
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, DefaultRecentFillsLimit, cfg.RecentFillsLimit)
	assert.Equal(t, DefaultSnapshotDir, cfg.SnapshotDir)
	assert.Equal(t, "cert-cache", cfg.CertCacheDir)
}

func TestYamlConfigRejectsCoarseBatchInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_interval: 5s\n"), 0644))

	_, err := getYaml(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_interval")
}

func TestDefaultsForSimulation(t *testing.T) {
	cfg, err := withDefaults(Config{Simulate: true})
	require.NoError(t, err)

	assert.True(t, cfg.Simulate)
	assert.NotEmpty(t, cfg.SimulatorAddr)
	assert.Equal(t, DefaultBatchInterval, cfg.BatchInterval)
	assert.Equal(t, DefaultHistoryLimit, cfg.HistoryLimit)
}
