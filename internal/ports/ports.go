// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the pipeline core and external
// adapters (infrastructure). The orchestrator and the plan/command generators depend
// only on these abstractions, so tests can swap in stubs for the reasoning backend,
// the shell and the audit log.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Provider, Executor, HistoryRecorder)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"time"

	"github.com/doeshing/aish/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.aish/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// ContextCollector gathers environmental context (OS, shell, tools, git) to enrich prompts.
type ContextCollector interface {
	Collect(context.Context, domain.Config) (domain.ContextSnapshot, error)
}

// ProviderFactory builds reasoning backends from model definitions.
type ProviderFactory interface {
	ForModel(domain.ModelDefinition) (Provider, error)
}

// Purpose tells a provider which kind of structured answer is expected.
type Purpose string

const (
	PurposePlan    Purpose = "plan"
	PurposeCommand Purpose = "command"
)

// CompletionRequest is one call to the reasoning collaborator.
type CompletionRequest struct {
	Purpose  Purpose
	Messages []domain.PromptMessage
	// JSON asks the backend for a JSON-only answer when it supports it.
	JSON bool
}

// CompletionResponse carries the raw text produced by the backend.
type CompletionResponse struct {
	Text string
}

// Provider is the opaque reasoning collaborator.
type Provider interface {
	Name() string
	Model() domain.ModelDefinition
	Complete(context.Context, CompletionRequest) (CompletionResponse, error)
}

// Planner decomposes a request into an ordered plan.
type Planner interface {
	Plan(context.Context, domain.Request) (domain.Plan, error)
}

// CommandGenerator maps one step to ranked command candidates.
type CommandGenerator interface {
	Generate(ctx context.Context, step domain.Step, prior []domain.PriorResult) ([]domain.CommandCandidate, error)
}

// SafetyValidator classifies a command. It must be pure.
type SafetyValidator interface {
	Validate(command string) domain.Verdict
}

// ExecRequest describes one command to run.
type ExecRequest struct {
	Command string
	Timeout time.Duration
	// OnChunk receives output in arrival order; it runs on a single goroutine.
	OnChunk func(domain.OutputChunk)
}

// Executor runs shell commands in the configured shell environment.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) (domain.ExecutionResult, error)
}

// HistoryRecorder is the append-only audit sink.
type HistoryRecorder interface {
	Append(ctx context.Context, entry domain.HistoryEntry) error
}

// HistoryReader reads back recent audit entries.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
	Path() string
}

// HistorySearcher finds audit entries by request or command text.
type HistorySearcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.HistoryEntry, error)
}

// PlanCache stores validated plans.
type PlanCache interface {
	Get(key string) (domain.CacheEntry, bool, error)
	Set(entry domain.CacheEntry) error
}

// ConfirmationPrompter asks the user before anything runs.
type ConfirmationPrompter interface {
	// ConfirmPlan asks whether the whole plan should run.
	ConfirmPlan(plan domain.Plan) (bool, error)
	// ConfirmCommand asks for one command. explicit requires typing "yes".
	ConfirmCommand(step domain.Step, candidate domain.CommandCandidate, verdict domain.Verdict, explicit bool) (bool, error)
}

// RunObserver receives progress events from the orchestrator.
type RunObserver interface {
	PlanReady(run *domain.RunState)
	StepStarted(step domain.Step)
	CandidateBlocked(step domain.Step, candidate domain.CommandCandidate, verdict domain.Verdict)
	CommandStarting(step domain.Step, candidate domain.CommandCandidate)
	Output(chunk domain.OutputChunk)
	AttemptFinished(step domain.Step, attempt domain.Attempt)
	StepFinished(record *domain.StepRecord)
	Warning(msg string)
	RunFinished(run *domain.RunState)
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
