package domain

import "time"

// RunStatus is the overall state of one request.
type RunStatus string

const (
	RunPlanning  RunStatus = "planning"
	RunExecuting RunStatus = "executing"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	// RunDeclined means the user rejected the plan before anything ran.
	RunDeclined RunStatus = "declined"
)

// IsTerminal reports whether the run has finished.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunAborted || s == RunDeclined
}

// Outcome is how a step left the pipeline.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeAborted   Outcome = "aborted"
)

// Attempt is one candidate taken through validation and possibly execution.
type Attempt struct {
	Candidate CommandCandidate `json:"candidate"`
	Verdict   Verdict          `json:"verdict"`
	Result    ExecutionResult  `json:"result"`
	StartedAt time.Time        `json:"started_at"`
}

// Executed reports whether the executor actually ran this attempt.
func (a Attempt) Executed() bool {
	switch a.Result.Status {
	case StatusBlocked, StatusDeclined:
		return false
	}
	return true
}

// StepRecord folds every attempt of one step into a single record.
type StepRecord struct {
	Step     Step       `json:"step"`
	Attempts []Attempt  `json:"attempts"`
	Retries  int        `json:"retries"`
	Status   ExecStatus `json:"status"`
	Outcome  Outcome    `json:"outcome"`
	Reason   string     `json:"reason,omitempty"`
}

// Last returns the most recent attempt, if any.
func (r *StepRecord) Last() (Attempt, bool) {
	if r == nil || len(r.Attempts) == 0 {
		return Attempt{}, false
	}
	return r.Attempts[len(r.Attempts)-1], true
}

// Executions counts attempts that reached the executor.
func (r *StepRecord) Executions() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, a := range r.Attempts {
		if a.Executed() {
			n++
		}
	}
	return n
}

// RunState is the orchestrator's working memory for one request.
type RunState struct {
	ID      string              `json:"id"`
	Request Request             `json:"request"`
	Plan    Plan                `json:"plan"`
	Records map[int]*StepRecord `json:"records"`
	Retries map[int]int         `json:"retries"`
	Status  RunStatus           `json:"status"`
	Err     error               `json:"-"`
}

// NewRunState creates an empty state in the planning status.
func NewRunState(id string, req Request) *RunState {
	return &RunState{
		ID:      id,
		Request: req,
		Records: make(map[int]*StepRecord),
		Retries: make(map[int]int),
		Status:  RunPlanning,
	}
}

// Ordered returns step records in plan order, skipping steps never reached.
func (s *RunState) Ordered() []*StepRecord {
	var out []*StepRecord
	for _, step := range s.Plan.Steps {
		if rec, ok := s.Records[step.Index]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// PriorResult is the cross-step feedback handed to the command generator.
type PriorResult struct {
	StepIndex   int        `json:"step"`
	Description string     `json:"description"`
	Command     string     `json:"command"`
	Status      ExecStatus `json:"status"`
	ExitCode    int        `json:"exit_code"`
	OutputTail  string     `json:"output_tail,omitempty"`
	Feedback    string     `json:"feedback,omitempty"`
}
