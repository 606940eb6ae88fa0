package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "aish.log")
	log := New(Options{Level: "info", File: path})

	log.Info("plan ready", map[string]interface{}{"steps": 2})
	log.Debug("hidden at info level", nil)
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"plan ready"`)
	assert.Contains(t, string(data), `"steps":2`)
	assert.NotContains(t, string(data), "hidden at info level")
}

func TestDebugAddsConsoleCore(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Debug: true, Console: &buf})

	log.Error("history append failed", errors.New("disk full"), map[string]interface{}{"path": "/tmp/x"})
	_ = log.Sync()

	assert.Contains(t, buf.String(), "history append failed")
	assert.Contains(t, buf.String(), "disk full")
}

func TestNewWithoutSinksIsNop(t *testing.T) {
	log := New(Options{})
	assert.NotPanics(t, func() {
		log.Warn("nothing configured", nil)
		log.Named("child").Info("still nothing", nil)
	})
}
