//go:build !windows

package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

func newTestExecutor() *LocalExecutor {
	return NewLocalExecutor("/bin/sh", nil)
}

func TestExecuteSucceeds(t *testing.T) {
	defer goleak.VerifyNone(t)

	result, err := newTestExecutor().Execute(context.Background(), ports.ExecRequest{
		Command: "echo hello",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, result.Status)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello\n", result.Tail)
	assert.EqualValues(t, 6, result.OutputBytes)
}

func TestExecuteNonZeroExitFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	result, err := newTestExecutor().Execute(context.Background(), ports.ExecRequest{
		Command: "echo oops >&2; exit 3",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Tail, "oops")
}

func TestExecuteStreamsInEmissionOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		mu     sync.Mutex
		chunks []domain.OutputChunk
		stamps []time.Time
	)
	start := time.Now()
	result, err := newTestExecutor().Execute(context.Background(), ports.ExecRequest{
		Command: "for i in 1 2 3 4 5; do echo line$i; sleep 0.05; done; echo done >&2",
		Timeout: 10 * time.Second,
		OnChunk: func(c domain.OutputChunk) {
			mu.Lock()
			defer mu.Unlock()
			chunks = append(chunks, c)
			stamps = append(stamps, time.Now())
		},
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusSucceeded, result.Status)

	var stdout strings.Builder
	var sawStderr bool
	for _, c := range chunks {
		switch c.Stream {
		case domain.Stdout:
			require.False(t, sawStderr, "stdout chunk delivered after the final stderr chunk")
			stdout.Write(c.Data)
		case domain.Stderr:
			sawStderr = true
			assert.Equal(t, "done\n", string(c.Data))
		}
	}
	assert.Equal(t, "line1\nline2\nline3\nline4\nline5\n", stdout.String())
	assert.True(t, sawStderr)

	// the first chunk arrives while the command is still running
	require.NotEmpty(t, stamps)
	assert.Less(t, stamps[0].Sub(start), result.Elapsed)
}

func TestExecuteSlowConsumerDoesNotStallCommand(t *testing.T) {
	defer goleak.VerifyNone(t)

	marker := filepath.Join(t.TempDir(), "done")
	var (
		once     sync.Once
		finished bool
	)
	// the first chunk holds the consumer until the command has exited
	onChunk := func(domain.OutputChunk) {
		once.Do(func() {
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				if _, err := os.Stat(marker); err == nil {
					finished = true
					return
				}
				time.Sleep(10 * time.Millisecond)
			}
		})
	}

	result, err := newTestExecutor().Execute(context.Background(), ports.ExecRequest{
		Command: "head -c 4000000 /dev/zero; touch '" + marker + "'",
		Timeout: 10 * time.Second,
		OnChunk: onChunk,
	})
	require.NoError(t, err)
	assert.True(t, finished, "command should finish while the consumer is blocked")
	assert.Equal(t, domain.StatusSucceeded, result.Status)
	assert.EqualValues(t, 4000000, result.OutputBytes)
}

func TestExecuteTimeoutKillsProcessGroup(t *testing.T) {
	defer goleak.VerifyNone(t)

	start := time.Now()
	result, err := newTestExecutor().Execute(context.Background(), ports.ExecRequest{
		Command: "sleep 30 & sleep 30; wait",
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTimedOut, result.Status)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecuteParentCancelIsCanceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	result, err := newTestExecutor().Execute(ctx, ports.ExecRequest{
		Command: "sleep 30",
		Timeout: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, result.Status)
}

func TestExecuteStartFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	exe := NewLocalExecutor("/definitely/not/a/shell", nil)
	result, err := exe.Execute(context.Background(), ports.ExecRequest{Command: "true"})
	require.Error(t, err)
	assert.Equal(t, domain.StatusFailed, result.Status)
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	tail := newTailBuffer(4)
	tail.Write([]byte("ab"))
	tail.Write([]byte("cdef"))
	assert.Equal(t, "cdef", tail.String())
	tail.Write([]byte("g"))
	assert.Equal(t, "defg", tail.String())
}
