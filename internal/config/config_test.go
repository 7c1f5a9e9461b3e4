package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	appDir := t.TempDir()

	cfg, err := Load(appDir)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Address)
	assert.Equal(t, filepath.Join(appDir, "data"), cfg.Server.DataDir)
	assert.Equal(t, "file", cfg.Server.Backend)
	assert.Equal(t, "127.0.0.1:8123", cfg.Agent.Listen)
	assert.Equal(t, "http://127.0.0.1:3000", cfg.Agent.CollectorURL)
	assert.Equal(t, 10*time.Second, cfg.Agent.CaptureInterval)
	assert.Equal(t, 30*time.Second, cfg.Agent.SyncInterval)
	assert.Equal(t, 15*time.Second, cfg.Viewer.Tolerance)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFile(t *testing.T) {
	appDir := t.TempDir()
	content := []byte(`
server:
  backend: sqlite
  address: 127.0.0.1:4000
agent:
  sync_interval: 45s
`)
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "config.yaml"), content, 0o644))

	cfg, err := Load(appDir)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Server.Backend)
	assert.Equal(t, "127.0.0.1:4000", cfg.Server.Address)
	assert.Equal(t, 45*time.Second, cfg.Agent.SyncInterval)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.Agent.CaptureInterval)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("UXTRACE_SERVER_BACKEND", "bolt")
	t.Setenv("UXTRACE_AGENT_COLLECTOR_URL", "http://collector:3000/")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "bolt", cfg.Server.Backend)
	// Trailing slash is trimmed so URL joining stays simple.
	assert.Equal(t, "http://collector:3000", cfg.Agent.CollectorURL)
}

func TestUnknownBackendRejected(t *testing.T) {
	t.Setenv("UXTRACE_SERVER_BACKEND", "redis")

	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestMalformedConfigFile(t *testing.T) {
	appDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "config.yaml"), []byte("server: ["), 0o644))

	_, err := Load(appDir)
	assert.Error(t, err)
}
