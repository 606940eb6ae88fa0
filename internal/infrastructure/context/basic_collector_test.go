package contextcollector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/aish/internal/domain"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(prev) })
	require.NoError(t, os.Chdir(dir))
}

func TestBasicCollectorIncludesFiles(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "file1.txt"), []byte("test"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(tmp, "src"), 0o755))

	cfg := domain.Config{
		Context: domain.ContextSettings{IncludeFiles: true, MaxFiles: 5, IncludeGit: "never"},
	}

	snapshot, err := NewBasicCollector().Collect(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, snapshot.Files, 2)
	assert.Equal(t, "file1.txt", snapshot.Files[0].Path)
	assert.Equal(t, domain.FileTypeFile, snapshot.Files[0].Type)
	assert.Equal(t, domain.FileTypeDir, snapshot.Files[1].Type)
	assert.Nil(t, snapshot.Git)
	assert.NotEmpty(t, snapshot.OS)
	assert.NotEmpty(t, snapshot.Arch)
}

func TestBasicCollectorIncludesEnvWhenRequested(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	t.Setenv("VIRTUAL_ENV", "/tmp/venv")
	cfg := domain.Config{
		Context: domain.ContextSettings{MaxFiles: 5, IncludeEnv: true, IncludeGit: "never"},
	}
	snapshot, err := NewBasicCollector().Collect(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin", snapshot.EnvironmentVars["PATH"])
	assert.Equal(t, "/tmp/venv", snapshot.EnvironmentVars["VIRTUAL_ENV"])
	assert.Empty(t, snapshot.Files)
}

func TestDetectPackageManagerFollowsPlatformOrder(t *testing.T) {
	onPath := map[string]bool{"yum": true, "dnf": true, "brew": true}
	c := NewBasicCollector()
	c.lookPath = func(name string) (string, error) {
		if onPath[name] {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}

	c.goos = "linux"
	assert.Equal(t, "dnf", c.detectPackageManager())
	c.goos = "darwin"
	assert.Equal(t, "brew", c.detectPackageManager())
	c.goos = "plan9"
	assert.Equal(t, "", c.detectPackageManager())
}

func TestDetectShellPrefersConfiguredShell(t *testing.T) {
	t.Setenv("SHELL", "/bin/zsh")
	assert.Equal(t, "zsh", detectShell(domain.Config{Execution: domain.ExecutionSettings{Shell: "auto"}}))
	assert.Equal(t, "bash", detectShell(domain.Config{Execution: domain.ExecutionSettings{Shell: "/usr/local/bin/bash"}}))
}
