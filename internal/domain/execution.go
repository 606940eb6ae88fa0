package domain

import "time"

// ExecStatus is the terminal status of one attempt.
type ExecStatus string

const (
	StatusSucceeded ExecStatus = "succeeded"
	StatusFailed    ExecStatus = "failed"
	StatusBlocked   ExecStatus = "blocked"
	StatusDeclined  ExecStatus = "declined"
	StatusTimedOut  ExecStatus = "timed_out"
	StatusCanceled  ExecStatus = "canceled"
)

// Retryable reports whether a step may be retried after this status.
func (s ExecStatus) Retryable() bool {
	return s == StatusFailed || s == StatusTimedOut
}

// ExecutionResult is the finalized outcome of one command attempt.
type ExecutionResult struct {
	ExitCode    int           `json:"exit_code"`
	OutputBytes int64         `json:"output_bytes"`
	Tail        string        `json:"tail,omitempty"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Status      ExecStatus    `json:"status"`
}

// ShortCircuit builds a result for an attempt rejected before execution.
func ShortCircuit(status ExecStatus) ExecutionResult {
	return ExecutionResult{ExitCode: -1, Status: status}
}

// Stream identifies which pipe a chunk came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// OutputChunk is one piece of child output in arrival order.
type OutputChunk struct {
	Stream Stream
	Data   []byte
}
