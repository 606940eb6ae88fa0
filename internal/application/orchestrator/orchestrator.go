// Package orchestrator drives one request through planning and then, step by
// step, through command generation, safety validation, confirmation and
// execution, with bounded retries and a configurable abort/skip policy.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

// Settings are the run-level knobs read once at startup.
type Settings struct {
	MaxRetries     int
	Policy         domain.FailurePolicy
	CommandTimeout time.Duration
	ConfirmPlan    bool
	// Model is recorded in history entries.
	Model string
}

// Orchestrator runs requests. It holds no per-run state, so one value can serve
// a whole interactive session.
type Orchestrator struct {
	Planner   ports.Planner
	Generator ports.CommandGenerator
	Validator ports.SafetyValidator
	Executor  ports.Executor
	History   ports.HistoryRecorder
	Prompter  ports.ConfirmationPrompter
	Observer  ports.RunObserver
	Logger    ports.Logger
	Settings  Settings

	// CommandContext scopes a single command, typically to Ctrl-C. Optional.
	CommandContext func(context.Context) (context.Context, context.CancelFunc)
	// NewID and Now are swapped in tests.
	NewID func() string
	Now   func() time.Time
}

// Run executes req to completion. The returned state is always non-nil. The
// error is non-nil exactly when the run aborted.
func (o *Orchestrator) Run(ctx context.Context, req domain.Request) (*domain.RunState, error) {
	run := domain.NewRunState(o.newID(), req)
	if err := o.checkDependencies(); err != nil {
		run.Status = domain.RunAborted
		run.Err = err
		return run, err
	}
	obs := o.observer()

	o.info("planning", map[string]interface{}{"run_id": run.ID, "request": req.Text})
	plan, err := o.Planner.Plan(ctx, req)
	if err != nil {
		return o.abort(ctx, run, nil, err), err
	}
	run.Plan = plan
	obs.PlanReady(run)

	if o.Settings.ConfirmPlan {
		ok, err := o.Prompter.ConfirmPlan(plan)
		if err != nil || !ok {
			run.Status = domain.RunDeclined
			reason := "plan declined by user"
			if err != nil {
				reason = fmt.Sprintf("plan confirmation failed: %v", err)
			}
			o.record(ctx, run, nil, reason)
			obs.RunFinished(run)
			return run, nil
		}
	}

	run.Status = domain.RunExecuting
	var prior []domain.PriorResult
	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return o.abort(ctx, run, nil, fmt.Errorf("run canceled before step %d: %w", step.Index, err)), err
		}

		rec, stepErr := o.runStep(ctx, run, step, prior)
		run.Records[step.Index] = rec

		if stepErr != nil {
			return o.abort(ctx, run, rec, stepErr), stepErr
		}
		if i == len(plan.Steps)-1 {
			run.Status = domain.RunCompleted
		}
		o.record(ctx, run, rec, "")
		obs.StepFinished(rec)
		prior = append(prior, priorResult(rec))
	}

	run.Status = domain.RunCompleted
	o.info("run completed", map[string]interface{}{"run_id": run.ID, "steps": plan.Len()})
	obs.RunFinished(run)
	return run, nil
}

// abort finalizes a run that cannot continue. rec is the step that stopped it,
// if any.
func (o *Orchestrator) abort(ctx context.Context, run *domain.RunState, rec *domain.StepRecord, cause error) *domain.RunState {
	run.Status = domain.RunAborted
	run.Err = cause
	o.record(ctx, run, rec, cause.Error())
	if rec != nil {
		o.observer().StepFinished(rec)
	}
	if o.Logger != nil {
		o.Logger.Error("run aborted", cause, map[string]interface{}{"run_id": run.ID})
	}
	o.observer().RunFinished(run)
	return run
}

// runStep drives one step through the state table. A non-nil error means the
// run must abort; the record is complete either way.
func (o *Orchestrator) runStep(ctx context.Context, run *domain.RunState, step domain.Step, prior []domain.PriorResult) (*domain.StepRecord, error) {
	obs := o.observer()
	obs.StepStarted(step)

	rec := &domain.StepRecord{Step: step}
	m := newStepMachine()

	var (
		candidates []domain.CommandCandidate
		next       int
		current    domain.CommandCandidate
		verdict    domain.Verdict
		feedback   []domain.PriorResult
	)

	for {
		if m.err != nil {
			rec.Status = domain.StatusFailed
			rec.Outcome = domain.OutcomeAborted
			rec.Reason = m.err.Error()
			return rec, m.err
		}

		switch m.state {
		case StateGenerating:
			input := make([]domain.PriorResult, 0, len(prior)+len(feedback))
			input = append(append(input, prior...), feedback...)
			cands, err := o.Generator.Generate(ctx, step, input)
			if err == nil && len(cands) == 0 {
				err = &domain.GenerationError{Step: step.Index, Err: errors.New("no candidates")}
			}
			if err != nil {
				m.to(StateAborted)
				rec.Status = domain.StatusFailed
				rec.Outcome = domain.OutcomeAborted
				rec.Reason = err.Error()
				return rec, err
			}
			candidates, next = cands, 0
			m.to(StateValidating)

		case StateValidating:
			current = candidates[next]
			next++
			verdict = o.Validator.Validate(current.Text)
			if verdict.IsBlocked() {
				rec.Attempts = append(rec.Attempts, domain.Attempt{
					Candidate: current,
					Verdict:   verdict,
					Result:    domain.ShortCircuit(domain.StatusBlocked),
					StartedAt: o.now(),
				})
				obs.CandidateBlocked(step, current, verdict)
				if next < len(candidates) {
					m.to(StateValidating)
					continue
				}
				return o.settle(m, rec, current, domain.StatusBlocked, "blocked by safety policy: "+verdict.Reason)
			}
			if verdict.IsWarning() {
				obs.Warning(fmt.Sprintf("step %d: %s", step.Index, verdict.Reason))
			}
			m.to(StateConfirmPending)

		case StateConfirmPending:
			explicit := verdict.IsWarning() || step.Risk == domain.RiskDestructive
			ok, err := o.confirm(step, current, verdict, explicit)
			if err != nil || !ok {
				rec.Attempts = append(rec.Attempts, domain.Attempt{
					Candidate: current,
					Verdict:   verdict,
					Result:    domain.ShortCircuit(domain.StatusDeclined),
					StartedAt: o.now(),
				})
				reason := "declined by user"
				if err != nil {
					reason = fmt.Sprintf("confirmation failed: %v", err)
				}
				return o.settle(m, rec, current, domain.StatusDeclined, reason)
			}
			m.to(StateRunning)

		case StateRunning:
			obs.CommandStarting(step, current)
			attempt, execErr := o.execute(ctx, current, verdict)
			rec.Attempts = append(rec.Attempts, attempt)
			obs.AttemptFinished(step, attempt)

			status := attempt.Result.Status
			switch {
			case execErr != nil:
				return o.settle(m, rec, current, status, execErr.Error())
			case status == domain.StatusSucceeded:
				m.to(StateDone)
				rec.Status = status
				rec.Outcome = domain.OutcomeCompleted
				return rec, nil
			case status.Retryable() && rec.Retries < o.maxRetries():
				rec.Retries++
				run.Retries[step.Index] = rec.Retries
				feedback = append(feedback, priorResultFor(step, attempt,
					fmt.Sprintf("attempt %d of this step %s; try a different approach", rec.Executions(), describe(attempt.Result))))
				m.to(StateRetry)
			default:
				reason := describe(attempt.Result)
				if status.Retryable() {
					reason = fmt.Sprintf("%s after %d retries", reason, rec.Retries)
				}
				return o.settle(m, rec, current, status, reason)
			}

		case StateRetry:
			if next < len(candidates) {
				m.to(StateValidating)
			} else {
				m.to(StateGenerating)
			}

		default:
			return rec, fmt.Errorf("step %d stuck in %s", step.Index, m.state)
		}
	}
}

// settle applies the failure policy to a step that ended without success.
func (o *Orchestrator) settle(m *stepMachine, rec *domain.StepRecord, cand domain.CommandCandidate, status domain.ExecStatus, reason string) (*domain.StepRecord, error) {
	rec.Status = status
	rec.Reason = reason
	if o.policy() == domain.PolicySkip {
		m.to(StateSkipped)
		rec.Outcome = domain.OutcomeSkipped
		o.observer().Warning(fmt.Sprintf("step %d skipped: %s", rec.Step.Index, reason))
		return rec, m.err
	}
	m.to(StateAborted)
	rec.Outcome = domain.OutcomeAborted
	if m.err != nil {
		return rec, m.err
	}
	return rec, &domain.StepError{Step: rec.Step.Index, Command: cand.Text, Status: status, Reason: reason}
}

func (o *Orchestrator) confirm(step domain.Step, cand domain.CommandCandidate, verdict domain.Verdict, explicit bool) (bool, error) {
	if o.Prompter == nil {
		return false, errors.New("no confirmation prompter")
	}
	return o.Prompter.ConfirmCommand(step, cand, verdict, explicit)
}

func (o *Orchestrator) execute(ctx context.Context, cand domain.CommandCandidate, verdict domain.Verdict) (domain.Attempt, error) {
	cmdCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.CommandContext != nil {
		cmdCtx, cancel = o.CommandContext(ctx)
	}
	defer cancel()

	attempt := domain.Attempt{Candidate: cand, Verdict: verdict, StartedAt: o.now()}
	obs := o.observer()
	result, err := o.Executor.Execute(cmdCtx, ports.ExecRequest{
		Command: cand.Text,
		Timeout: o.Settings.CommandTimeout,
		OnChunk: obs.Output,
	})
	attempt.Result = result
	if err != nil && result.Status == "" {
		attempt.Result = domain.ShortCircuit(domain.StatusFailed)
	}
	o.debug("command finished", map[string]interface{}{
		"command":   cand.Text,
		"status":    string(attempt.Result.Status),
		"exit_code": attempt.Result.ExitCode,
	})
	return attempt, err
}

// record writes one history entry. Failures are reported, never returned.
func (o *Orchestrator) record(ctx context.Context, run *domain.RunState, rec *domain.StepRecord, errText string) {
	if o.History == nil {
		return
	}
	entry := domain.HistoryEntry{
		Timestamp: o.now().UTC(),
		RunID:     run.ID,
		Request:   run.Request.Text,
		Model:     o.Settings.Model,
		RunStatus: run.Status,
		StepCount: run.Plan.Len(),
		Step:      rec,
		Error:     errText,
	}
	if err := o.History.Append(context.WithoutCancel(ctx), entry); err != nil {
		if o.Logger != nil {
			o.Logger.Warn("history append failed", map[string]interface{}{"run_id": run.ID, "error": err.Error()})
		}
		o.observer().Warning(fmt.Sprintf("history not saved: %v", err))
	}
}

func (o *Orchestrator) checkDependencies() error {
	if o.Planner == nil || o.Generator == nil || o.Validator == nil || o.Executor == nil {
		return errors.New("orchestrator dependencies not satisfied")
	}
	if o.Settings.ConfirmPlan && o.Prompter == nil {
		return errors.New("plan confirmation needs a prompter")
	}
	return nil
}

func (o *Orchestrator) maxRetries() int {
	if o.Settings.MaxRetries < 0 {
		return 0
	}
	return o.Settings.MaxRetries
}

func (o *Orchestrator) policy() domain.FailurePolicy {
	if o.Settings.Policy.Valid() {
		return o.Settings.Policy
	}
	return domain.PolicyAbort
}

func (o *Orchestrator) observer() ports.RunObserver {
	if o.Observer == nil {
		return nopObserver{}
	}
	return o.Observer
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) info(msg string, fields map[string]interface{}) {
	if o.Logger != nil {
		o.Logger.Info(msg, fields)
	}
}

func (o *Orchestrator) debug(msg string, fields map[string]interface{}) {
	if o.Logger != nil {
		o.Logger.Debug(msg, fields)
	}
}

// describe renders a failed result for users and for generator feedback.
func describe(r domain.ExecutionResult) string {
	switch r.Status {
	case domain.StatusTimedOut:
		return fmt.Sprintf("timed out after %s", r.Elapsed.Round(time.Millisecond))
	case domain.StatusCanceled:
		return "canceled by user"
	case domain.StatusFailed:
		if r.ExitCode < 0 {
			return "failed to start"
		}
		return fmt.Sprintf("exited with status %d", r.ExitCode)
	default:
		return string(r.Status)
	}
}

// priorResult summarizes a finished step for the steps after it.
func priorResult(rec *domain.StepRecord) domain.PriorResult {
	last, _ := rec.Last()
	p := priorResultFor(rec.Step, last, rec.Reason)
	p.Status = rec.Status
	return p
}

func priorResultFor(step domain.Step, attempt domain.Attempt, feedback string) domain.PriorResult {
	return domain.PriorResult{
		StepIndex:   step.Index,
		Description: step.Description,
		Command:     attempt.Candidate.Text,
		Status:      attempt.Result.Status,
		ExitCode:    attempt.Result.ExitCode,
		OutputTail:  attempt.Result.Tail,
		Feedback:    feedback,
	}
}

type nopObserver struct{}

func (nopObserver) PlanReady(*domain.RunState)                                             {}
func (nopObserver) StepStarted(domain.Step)                                                {}
func (nopObserver) CandidateBlocked(domain.Step, domain.CommandCandidate, domain.Verdict) {}
func (nopObserver) CommandStarting(domain.Step, domain.CommandCandidate)                   {}
func (nopObserver) Output(domain.OutputChunk)                                              {}
func (nopObserver) AttemptFinished(domain.Step, domain.Attempt)                            {}
func (nopObserver) StepFinished(*domain.StepRecord)                                        {}
func (nopObserver) Warning(string)                                                         {}
func (nopObserver) RunFinished(*domain.RunState)                                           {}

var _ ports.RunObserver = nopObserver{}
