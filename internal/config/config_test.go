package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 27495, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Watcher.DebounceWindow)
	assert.Equal(t, 5*time.Second, cfg.Watcher.MaxHold)
	assert.GreaterOrEqual(t, cfg.Indexing.ReaderConcurrency, 4)
	assert.NoError(t, cfg.Validate())
}

func TestMergeWithOverridesNonZeroFields(t *testing.T) {
	cfg := NewConfig()
	other := &Config{
		Server: ServerConfig{Port: 9000},
		Store:  StoreConfig{Driver: "sqlite3"},
	}
	cfg.mergeWith(other)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	// Untouched fields keep defaults.
	assert.Equal(t, 500*time.Millisecond, cfg.Watcher.DebounceWindow)
}

func TestLoadYAMLFromUserConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(`
server:
  port: 8080
store:
  driver: sqlite3
`), 0o644)
	require.NoError(t, err)

	cfg := NewConfig()
	require.NoError(t, cfg.loadYAML(path))
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GKG_PORT", "9191")
	t.Setenv("GKG_STORE_DRIVER", "sqlite3")
	t.Setenv("GKG_DEBOUNCE_WINDOW", "750ms")

	cfg := NewConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	assert.Equal(t, 750*time.Millisecond, cfg.Watcher.DebounceWindow)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.Port = -1
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Store.Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Watcher.MaxHold = 10 * time.Millisecond
	cfg.Watcher.DebounceWindow = 500 * time.Millisecond
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Indexing.GlobalConcurrency = 0
	assert.Error(t, cfg.Validate())
}

func TestBearerTokenReadsConfiguredEnvVar(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.BearerTokenEnv = "GKG_TEST_TOKEN"
	t.Setenv("GKG_TEST_TOKEN", "s3cr3t")
	assert.Equal(t, "s3cr3t", cfg.BearerToken())
}

func TestLoadAppliesDefaultsWithNoUserConfigPresent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 27495, cfg.Server.Port)
}
