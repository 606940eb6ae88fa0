package domain

import "time"

// Request is one natural-language request entering the pipeline.
type Request struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRequest stamps text with the current time.
func NewRequest(text string) Request {
	return Request{Text: text, CreatedAt: time.Now().UTC()}
}

// Risk is the planner's assessment of a step.
type Risk string

const (
	RiskLow         Risk = "low"
	RiskElevated    Risk = "elevated"
	RiskDestructive Risk = "destructive"
)

// Valid reports whether r is one of the known risk levels.
func (r Risk) Valid() bool {
	switch r {
	case RiskLow, RiskElevated, RiskDestructive:
		return true
	}
	return false
}

// Category groups steps by the kind of change they make.
type Category string

const (
	CategoryInstall   Category = "install"
	CategoryConfigure Category = "configure"
	CategoryStart     Category = "start"
	CategoryStop      Category = "stop"
	CategoryCheck     Category = "check"
	CategoryCreate    Category = "create"
	CategoryDelete    Category = "delete"
	CategoryUpdate    Category = "update"
	CategoryOther     Category = "other"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryInstall, CategoryConfigure, CategoryStart, CategoryStop, CategoryCheck,
		CategoryCreate, CategoryDelete, CategoryUpdate, CategoryOther:
		return true
	}
	return false
}

// Step is one unit of a plan. Steps are never mutated after planning.
type Step struct {
	Index         int      `json:"index"`
	Description   string   `json:"description"`
	Task          string   `json:"task,omitempty"`
	Category      Category `json:"category"`
	Risk          Risk     `json:"risk"`
	EstimatedCost string   `json:"estimated_cost,omitempty"`
	DependsOn     []int    `json:"depends_on,omitempty"`
}

// Plan is the ordered decomposition of a request.
type Plan struct {
	Steps         []Step   `json:"steps"`
	Summary       string   `json:"summary,omitempty"`
	EstimatedTime string   `json:"estimated_time,omitempty"`
	RequiresSudo  bool     `json:"requires_sudo,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Len returns the number of steps.
func (p Plan) Len() int {
	return len(p.Steps)
}

// CommandCandidate is one ranked command for a step. Rank 0 is the primary.
type CommandCandidate struct {
	Text        string `json:"text"`
	Rank        int    `json:"rank"`
	StepIndex   int    `json:"step_index"`
	Explanation string `json:"explanation,omitempty"`
}

// IsPrimary reports whether the candidate is the generator's first choice.
func (c CommandCandidate) IsPrimary() bool {
	return c.Rank == 0
}
