package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/aish/internal/domain"
)

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("preferences:\n  default_model: local\nhistory:\n  path: %s\n  sqlite_index: true\n  index_path: %s\nlogging:\n  file: \"\"\n%s",
		filepath.Join(dir, "history.jsonl"), filepath.Join(dir, "history.db"), extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestBuildContainerAppliesOverrides(t *testing.T) {
	retries := 0
	c, err := BuildContainer(context.Background(), Overrides{
		ConfigPath: writeConfig(t, ""),
		Backend:    "HEURISTIC",
		MaxRetries: &retries,
		Timeout:    30 * time.Second,
		OnFailure:  "skip",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, "local", c.Model.Name)
	assert.Equal(t, domain.BackendHeuristic, c.Model.Backend)
	settings := c.Orchestrator.Settings
	assert.Equal(t, 0, settings.MaxRetries)
	assert.Equal(t, domain.PolicySkip, settings.Policy)
	assert.Equal(t, 30*time.Second, settings.CommandTimeout)
	assert.NotNil(t, c.HistorySearch, "sqlite index enabled")
	assert.Nil(t, c.Cache)
}

func TestBuildContainerRejectsInvalidConfig(t *testing.T) {
	_, err := BuildContainer(context.Background(), Overrides{ConfigPath: writeConfig(t, ""), Model: "missing"})
	assert.ErrorContains(t, err, "default model missing")

	_, err = BuildContainer(context.Background(), Overrides{ConfigPath: writeConfig(t, ""), Backend: "telepathy"})
	assert.ErrorContains(t, err, "preferences.backend")
}

func TestBuildContainerWiresPlanCache(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "plans")
	path := writeConfig(t, fmt.Sprintf("cache:\n  enabled: true\n  dir: %s\n", cacheDir))
	c, err := BuildContainer(context.Background(), Overrides{ConfigPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NotNil(t, c.Cache)
	assert.Equal(t, cacheDir, c.Cache.Dir())
	assert.Equal(t, c.Cache, c.Planner.Cache)
}

func TestPrepareCollectsSnapshotOnce(t *testing.T) {
	c, err := BuildContainer(context.Background(), Overrides{ConfigPath: writeConfig(t, "")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	c.Prepare(context.Background())
	first := c.Planner.Snapshot
	assert.NotEmpty(t, first.OS)
	assert.Equal(t, first.OS, c.Generator.Snapshot.OS)

	c.Planner.Snapshot.OS = "changed"
	c.Prepare(context.Background())
	assert.Equal(t, "changed", c.Planner.Snapshot.OS)
}
