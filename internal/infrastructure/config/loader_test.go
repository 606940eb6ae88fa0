package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/aish/assets"
	"github.com/doeshing/aish/internal/domain"
)

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.Preferences.DefaultModel)
	assert.Equal(t, 3, cfg.Execution.MaxRetries)
	assert.Equal(t, domain.PolicyAbort, cfg.Execution.OnFailure)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, assets.DefaultConfigYAML, written)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(domain.SecureFilePermissions), info.Mode().Perm())
}

func TestLoadKeepsDefaultsForOmittedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("execution:\n  on_failure: skip\n  max_retries: 1\n"), 0o600))

	cfg, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PolicySkip, cfg.Execution.OnFailure)
	assert.Equal(t, 1, cfg.Execution.MaxRetries)
	assert.Equal(t, "5m", cfg.Execution.CommandTimeout)
	assert.NotEmpty(t, cfg.Models)
	assert.True(t, filepath.IsAbs(cfg.History.Path), cfg.History.Path)
}

func TestLoadEnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("preferences:\n  default_model: local\n"), 0o600))

	t.Setenv("AISH_MODEL", "ollama")
	t.Setenv("AISH_BACKEND", "Heuristic")
	t.Setenv("AISH_MAX_RETRIES", "0")
	t.Setenv("AISH_TIMEOUT", "30s")
	t.Setenv("AISH_ON_FAILURE", "SKIP")
	t.Setenv("AISH_DEBUG", "true")

	cfg, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Preferences.DefaultModel)
	assert.Equal(t, domain.BackendHeuristic, cfg.Preferences.Backend)
	assert.Equal(t, 0, cfg.Execution.MaxRetries)
	assert.Equal(t, "30s", cfg.Execution.CommandTimeout)
	assert.Equal(t, domain.PolicySkip, cfg.Execution.OnFailure)
	assert.True(t, cfg.Preferences.Debug)
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("models: [\n"), 0o600))
		_, err := NewFileLoader(path).Load(context.Background())
		assert.ErrorContains(t, err, "parse config")
	})

	t.Run("retries", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		t.Setenv("AISH_MAX_RETRIES", "many")
		_, err := NewFileLoader(path).Load(context.Background())
		assert.ErrorContains(t, err, "AISH_MAX_RETRIES")
	})
}

func TestPathFromEnv(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv("AISH_CONFIG", custom)
	assert.Equal(t, custom, NewFileLoader("").Path())

	explicit := filepath.Join(t.TempDir(), "explicit.yaml")
	assert.Equal(t, explicit, NewFileLoader(explicit).Path())
}
