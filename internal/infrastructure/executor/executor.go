// Package executor runs generated commands under the user's shell and streams
// their output while they run.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

// LocalExecutor runs commands on the host shell.
type LocalExecutor struct {
	shell     string
	waitDelay time.Duration
	logger    ports.Logger
}

// NewLocalExecutor builds a new executor. An empty shell means $SHELL, then the
// platform default.
func NewLocalExecutor(shell string, logger ports.Logger) *LocalExecutor {
	if shell == "" && runtime.GOOS != "windows" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = defaultShell
	}
	return &LocalExecutor{shell: shell, waitDelay: domain.KillGracePeriod, logger: logger}
}

// Shell reports the shell binary used for every command.
func (e *LocalExecutor) Shell() string {
	return e.shell
}

// Execute implements ports.Executor. The returned error is non-nil only when the
// shell could not be started; command failures are reported through the result.
func (e *LocalExecutor) Execute(ctx context.Context, req ports.ExecRequest) (domain.ExecutionResult, error) {
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.shell, shellArgs(req.Command)...)
	cmd.Stdin = nil
	cmd.WaitDelay = e.waitDelay
	configureProcess(cmd)

	chunks := newChunkQueue()
	cmd.Stdout = &chunkWriter{stream: domain.Stdout, out: chunks}
	cmd.Stderr = &chunkWriter{stream: domain.Stderr, out: chunks}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return domain.ShortCircuit(domain.StatusFailed), fmt.Errorf("start %s: %w", e.shell, err)
	}
	e.debug("command started", map[string]interface{}{"pid": cmd.Process.Pid, "timeout": req.Timeout.String()})

	var (
		g       errgroup.Group
		waitErr error
	)
	g.Go(func() error {
		defer chunks.close()
		waitErr = cmd.Wait()
		return nil
	})

	tail := newTailBuffer(domain.OutputTailBytes)
	var total int64
	chunks.drain(func(chunk domain.OutputChunk) {
		total += int64(len(chunk.Data))
		tail.Write(chunk.Data)
		if req.OnChunk != nil {
			req.OnChunk(chunk)
		}
	})
	_ = g.Wait()

	result := domain.ExecutionResult{
		ExitCode:    exitCode(cmd, waitErr),
		OutputBytes: total,
		Tail:        tail.String(),
		Elapsed:     time.Since(start),
	}
	result.Status = classify(ctx, runCtx, result.ExitCode, waitErr)
	e.debug("command finished", map[string]interface{}{
		"status":    string(result.Status),
		"exit_code": result.ExitCode,
		"elapsed":   result.Elapsed.String(),
		"bytes":     total,
	})
	return result, nil
}

func classify(parent, run context.Context, code int, waitErr error) domain.ExecStatus {
	switch {
	case parent.Err() != nil:
		return domain.StatusCanceled
	case errors.Is(run.Err(), context.DeadlineExceeded):
		return domain.StatusTimedOut
	case code == 0 && (waitErr == nil || errors.Is(waitErr, exec.ErrWaitDelay)):
		return domain.StatusSucceeded
	default:
		return domain.StatusFailed
	}
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func (e *LocalExecutor) debug(msg string, fields map[string]interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, fields)
	}
}

// chunkWriter forwards each write as one chunk. exec reuses its copy buffer, so
// the data is cloned before it is queued.
type chunkWriter struct {
	stream domain.Stream
	out    *chunkQueue
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data := make([]byte, len(p))
	copy(data, p)
	w.out.push(domain.OutputChunk{Stream: w.stream, Data: data})
	return len(p), nil
}

// chunkQueue is an unbounded FIFO between the pipe copiers and the consumer.
// push never blocks, so a slow consumer cannot stall the child.
type chunkQueue struct {
	mu     sync.Mutex
	items  []domain.OutputChunk
	closed bool
	ready  chan struct{}
}

func newChunkQueue() *chunkQueue {
	return &chunkQueue{ready: make(chan struct{}, 1)}
}

func (q *chunkQueue) push(chunk domain.OutputChunk) {
	q.mu.Lock()
	q.items = append(q.items, chunk)
	q.mu.Unlock()
	q.notify()
}

func (q *chunkQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

func (q *chunkQueue) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// drain hands every chunk to fn in order and returns once the queue is closed
// and empty.
func (q *chunkQueue) drain(fn func(domain.OutputChunk)) {
	for {
		q.mu.Lock()
		batch, closed := q.items, q.closed
		q.items = nil
		q.mu.Unlock()

		for _, chunk := range batch {
			fn(chunk)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.ready
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

var _ ports.Executor = (*LocalExecutor)(nil)
