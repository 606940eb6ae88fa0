package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyPlan is returned when the planner yields nothing executable.
var ErrEmptyPlan = errors.New("empty or invalid plan")

// PlanningError reports that no usable plan could be produced.
type PlanningError struct {
	Err error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed: %v", e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// GenerationError reports that no command could be produced for a step.
type GenerationError struct {
	Step int
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("command generation failed for step %d: %v", e.Step, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PersistenceError reports a history write failure. It never aborts a run.
type PersistenceError struct {
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history write to %s failed: %v", e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// StepError describes the step that stopped a run.
type StepError struct {
	Step    int
	Command string
	Status  ExecStatus
	Reason  string
}

func (e *StepError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("step %d %s: %s", e.Step, e.Status, e.Reason)
	}
	return fmt.Sprintf("step %d %s (%s): %s", e.Step, e.Status, e.Command, e.Reason)
}
