package domain

import "time"

// HistoryEntry is one line of the audit log.
type HistoryEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	RunID     string      `json:"run_id"`
	Request   string      `json:"request"`
	Model     string      `json:"model,omitempty"`
	RunStatus RunStatus   `json:"run_status"`
	StepCount int         `json:"step_count"`
	Step      *StepRecord `json:"step,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Command returns the last command attempted in the entry, if any.
func (e HistoryEntry) Command() string {
	if a, ok := e.Step.Last(); ok {
		return a.Candidate.Text
	}
	return ""
}

// CacheEntry stores a cached plan.
type CacheEntry struct {
	Key       string    `json:"key"`
	Model     string    `json:"model"`
	Plan      Plan      `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}
