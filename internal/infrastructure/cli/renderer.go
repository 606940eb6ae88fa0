package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
)

// Renderer implements ports.RunObserver for a terminal. Command output goes
// straight through; everything else is short status lines.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	color   bool
	spinner *Spinner
	steps   int
}

// NewRenderer builds a renderer. color enables ANSI styling and the planning
// spinner, which only make sense on a terminal.
func NewRenderer(out, errOut io.Writer, color bool) *Renderer {
	r := &Renderer{out: out, errOut: errOut, color: color}
	if color {
		r.spinner = NewSpinner(errOut)
	}
	return r
}

// BeginPlanning shows the spinner until the plan is ready or the run ends.
func (r *Renderer) BeginPlanning() {
	if r.spinner != nil {
		r.spinner.Start("planning...")
	}
}

func (r *Renderer) stopSpinner() {
	if r.spinner != nil {
		r.spinner.Stop()
	}
}

// PlanReady implements ports.RunObserver.
func (r *Renderer) PlanReady(run *domain.RunState) {
	r.stopSpinner()
	r.mu.Lock()
	defer r.mu.Unlock()

	plan := run.Plan
	r.steps = plan.Len()
	header := fmt.Sprintf("Plan: %d step%s", plan.Len(), plural(plan.Len()))
	if plan.EstimatedTime != "" {
		header += ", about " + plan.EstimatedTime
	}
	fmt.Fprintln(r.out, r.paint(ansiBold, header))
	if plan.Summary != "" {
		fmt.Fprintf(r.out, "  %s\n", plan.Summary)
	}
	for _, step := range plan.Steps {
		fmt.Fprintf(r.out, "  %d. %s [%s, %s]\n", step.Index, step.Description, step.Category, r.risk(step.Risk))
	}
	if plan.RequiresSudo {
		fmt.Fprintln(r.out, r.paint(ansiYellow, "  Some steps need elevated privileges."))
	}
	for _, w := range plan.Warnings {
		fmt.Fprintf(r.out, "  %s %s\n", r.paint(ansiYellow, "note:"), w)
	}
}

// StepStarted implements ports.RunObserver.
func (r *Renderer) StepStarted(step domain.Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "\n%s %s\n", r.paint(ansiBold, fmt.Sprintf("[%d/%d]", step.Index, r.steps)), step.Description)
}

// CandidateBlocked implements ports.RunObserver.
func (r *Renderer) CandidateBlocked(_ domain.Step, candidate domain.CommandCandidate, verdict domain.Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "  %s %s (%s)\n", r.paint(ansiRed, "blocked:"), candidate.Text, verdict.Reason)
}

// CommandStarting implements ports.RunObserver.
func (r *Renderer) CommandStarting(_ domain.Step, candidate domain.CommandCandidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "  $ %s\n", candidate.Text)
}

// Output implements ports.RunObserver.
func (r *Renderer) Output(chunk domain.OutputChunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chunk.Stream == domain.Stderr {
		_, _ = r.errOut.Write(chunk.Data)
		return
	}
	_, _ = r.out.Write(chunk.Data)
}

// AttemptFinished implements ports.RunObserver.
func (r *Renderer) AttemptFinished(_ domain.Step, attempt domain.Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := attempt.Result
	stats := fmt.Sprintf("%s, %s output", res.Elapsed.Round(time.Millisecond), humanize.Bytes(uint64(res.OutputBytes)))
	switch res.Status {
	case domain.StatusSucceeded:
		fmt.Fprintf(r.out, "  %s (%s)\n", r.paint(ansiGreen, "ok"), stats)
	case domain.StatusTimedOut:
		fmt.Fprintf(r.out, "  %s (%s)\n", r.paint(ansiRed, "timed out"), stats)
	case domain.StatusCanceled:
		fmt.Fprintf(r.out, "  %s (%s)\n", r.paint(ansiYellow, "canceled"), stats)
	default:
		fmt.Fprintf(r.out, "  %s exit %d (%s)\n", r.paint(ansiRed, string(res.Status)), res.ExitCode, stats)
	}
}

// StepFinished implements ports.RunObserver.
func (r *Renderer) StepFinished(rec *domain.StepRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.Outcome == domain.OutcomeSkipped {
		fmt.Fprintf(r.out, "  %s step %d: %s\n", r.paint(ansiYellow, "skipped"), rec.Step.Index, rec.Reason)
	}
}

// Warning implements ports.RunObserver.
func (r *Renderer) Warning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.errOut, "%s %s\n", r.paint(ansiYellow, "warning:"), msg)
}

// RunFinished implements ports.RunObserver.
func (r *Renderer) RunFinished(run *domain.RunState) {
	r.stopSpinner()
	r.mu.Lock()
	defer r.mu.Unlock()

	switch run.Status {
	case domain.RunCompleted:
		done, skipped := 0, 0
		for _, rec := range run.Ordered() {
			if rec.Outcome == domain.OutcomeSkipped {
				skipped++
			} else {
				done++
			}
		}
		msg := fmt.Sprintf("Done: %d of %d step%s completed", done, run.Plan.Len(), plural(run.Plan.Len()))
		if skipped > 0 {
			msg += fmt.Sprintf(", %d skipped", skipped)
		}
		fmt.Fprintln(r.out, "\n"+r.paint(ansiGreen, msg+"."))
	case domain.RunDeclined:
		fmt.Fprintln(r.out, "Plan declined; nothing was run.")
	case domain.RunAborted:
		reason := "unknown error"
		if run.Err != nil {
			reason = run.Err.Error()
		}
		fmt.Fprintf(r.errOut, "\n%s %s\n", r.paint(ansiRed, "Aborted:"), reason)
	}
}

func (r *Renderer) risk(risk domain.Risk) string {
	switch risk {
	case domain.RiskDestructive:
		return r.paint(ansiRed, string(risk))
	case domain.RiskElevated:
		return r.paint(ansiYellow, string(risk))
	}
	return string(risk)
}

func (r *Renderer) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

var _ ports.RunObserver = (*Renderer)(nil)
