package planner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/pkg/llmtext"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformed is returned when the reply holds no decodable plan object.
var ErrMalformed = errors.New("malformed plan reply")

type rawPlan struct {
	Plan          []rawStep `json:"plan"`
	Steps         []rawStep `json:"steps"`
	Summary       string    `json:"summary"`
	EstimatedTime flexText  `json:"estimated_time"`
	RequiresSudo  bool      `json:"requires_sudo"`
	Warnings      []string  `json:"warnings"`
}

type rawStep struct {
	Step        flexInt   `json:"step"`
	Description string    `json:"description"`
	Task        string    `json:"task"`
	Category    string    `json:"category"`
	Risk        string    `json:"risk"`
	Cost        flexText  `json:"cost"`
	DependsOn   []flexInt `json:"depends_on"`
}

// flexInt accepts 3 and "3".
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("not an integer: %s", data)
	}
	*f = flexInt(n)
	return nil
}

// flexText accepts strings and numbers.
type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexText(s)
		return nil
	}
	text := strings.TrimSpace(string(data))
	if text == "null" {
		text = ""
	}
	*f = flexText(text)
	return nil
}

// Parse decodes a backend reply into a validated plan.
func Parse(reply string) (domain.Plan, error) {
	object, ok := llmtext.ExtractJSON(reply)
	if !ok {
		return domain.Plan{}, fmt.Errorf("%w: no JSON object found", ErrMalformed)
	}
	var raw rawPlan
	if err := json.Unmarshal([]byte(object), &raw); err != nil {
		return domain.Plan{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	steps := raw.Plan
	if len(steps) == 0 {
		steps = raw.Steps
	}

	plan := domain.Plan{
		Summary:       strings.TrimSpace(raw.Summary),
		EstimatedTime: strings.TrimSpace(string(raw.EstimatedTime)),
		RequiresSudo:  raw.RequiresSudo,
		Warnings:      nonEmpty(raw.Warnings),
	}
	for i, rs := range steps {
		index := int(rs.Step)
		if index <= 0 {
			index = i + 1
		}
		deps := make([]int, 0, len(rs.DependsOn))
		for _, d := range rs.DependsOn {
			deps = append(deps, int(d))
		}
		plan.Steps = append(plan.Steps, domain.Step{
			Index:         index,
			Description:   strings.TrimSpace(rs.Description),
			Task:          strings.TrimSpace(rs.Task),
			Category:      domain.Category(strings.ToLower(strings.TrimSpace(rs.Category))),
			Risk:          domain.Risk(strings.ToLower(strings.TrimSpace(rs.Risk))),
			EstimatedCost: strings.TrimSpace(string(rs.Cost)),
			DependsOn:     deps,
		})
	}
	return Validate(plan)
}

// Validate checks ordering and references and normalizes step metadata. The
// returned plan is a copy. Every rejection wraps domain.ErrEmptyPlan.
func Validate(plan domain.Plan) (domain.Plan, error) {
	if len(plan.Steps) == 0 {
		return domain.Plan{}, domain.ErrEmptyPlan
	}

	position := make(map[int]int, len(plan.Steps))
	out := plan
	out.Steps = make([]domain.Step, 0, len(plan.Steps))

	for pos, step := range plan.Steps {
		if step.Index <= 0 {
			step.Index = pos + 1
		}
		if _, dup := position[step.Index]; dup {
			return domain.Plan{}, fmt.Errorf("%w: duplicate step %d", domain.ErrEmptyPlan, step.Index)
		}
		position[step.Index] = pos

		if step.Description == "" {
			step.Description = step.Task
		}
		if step.Description == "" {
			return domain.Plan{}, fmt.Errorf("%w: step %d has no description", domain.ErrEmptyPlan, step.Index)
		}
		if step.Task == "" {
			step.Task = step.Description
		}
		out.Steps = append(out.Steps, step)
	}

	for i := range out.Steps {
		step := &out.Steps[i]
		deps, err := checkDependencies(*step, i, position)
		if err != nil {
			return domain.Plan{}, err
		}
		step.DependsOn = deps
		if !step.Category.Valid() {
			step.Category = domain.CategoryOther
		}
		if !step.Risk.Valid() {
			step.Risk = inferRisk(*step, plan.RequiresSudo)
		}
	}
	return out, nil
}

func checkDependencies(step domain.Step, pos int, position map[int]int) ([]int, error) {
	if len(step.DependsOn) == 0 {
		return nil, nil
	}
	seen := make(map[int]bool, len(step.DependsOn))
	deps := make([]int, 0, len(step.DependsOn))
	for _, dep := range step.DependsOn {
		if dep == step.Index || seen[dep] {
			continue
		}
		depPos, ok := position[dep]
		if !ok {
			return nil, fmt.Errorf("%w: step %d depends on unknown step %d", domain.ErrEmptyPlan, step.Index, dep)
		}
		if depPos >= pos {
			return nil, fmt.Errorf("%w: step %d depends on later step %d", domain.ErrEmptyPlan, step.Index, dep)
		}
		seen[dep] = true
		deps = append(deps, dep)
	}
	if len(deps) == 0 {
		return nil, nil
	}
	return deps, nil
}

func inferRisk(step domain.Step, requiresSudo bool) domain.Risk {
	switch {
	case step.Category == domain.CategoryDelete:
		return domain.RiskDestructive
	case requiresSudo, step.Category == domain.CategoryInstall, step.Category == domain.CategoryConfigure:
		return domain.RiskElevated
	default:
		return domain.RiskLow
	}
}

func nonEmpty(items []string) []string {
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
