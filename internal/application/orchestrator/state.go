package orchestrator

import "fmt"

// StepState is the sub-state of the step currently being driven.
type StepState string

const (
	StateGenerating     StepState = "generating"
	StateValidating     StepState = "validating"
	StateConfirmPending StepState = "confirm_pending"
	StateRunning        StepState = "running"
	StateRetry          StepState = "retry"
	StateDone           StepState = "done"
	StateSkipped        StepState = "skipped"
	StateAborted        StepState = "aborted"
)

// transitions lists every legal move. Terminal states have no entry.
var transitions = map[StepState][]StepState{
	StateGenerating: {StateValidating, StateAborted},
	// validating loops onto itself when a blocked candidate has a fallback
	StateValidating:     {StateValidating, StateConfirmPending, StateSkipped, StateAborted},
	StateConfirmPending: {StateRunning, StateSkipped, StateAborted},
	StateRunning:        {StateDone, StateRetry, StateSkipped, StateAborted},
	StateRetry:          {StateValidating, StateGenerating},
}

// Terminal reports whether no further transitions are allowed.
func (s StepState) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// ValidateTransition returns an error for moves outside the table.
func ValidateTransition(from, to StepState) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("illegal step transition %s -> %s", from, to)
}

// stepMachine tracks one step's state. The first illegal move is kept in err
// and every later move is ignored.
type stepMachine struct {
	state StepState
	trail []StepState
	err   error
}

func newStepMachine() *stepMachine {
	return &stepMachine{state: StateGenerating, trail: []StepState{StateGenerating}}
}

func (m *stepMachine) to(next StepState) {
	if m.err != nil {
		return
	}
	if err := ValidateTransition(m.state, next); err != nil {
		m.err = err
		return
	}
	m.state = next
	m.trail = append(m.trail, next)
}
