// Package generator maps one plan step to ranked shell command candidates.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/doeshing/aish/internal/application/prompt"
	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/pkg/llmtext"
	"github.com/doeshing/aish/internal/ports"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// maxCandidates bounds primary plus fallbacks.
	maxCandidates = 4
	// promptTailBytes is how much of each prior output is sent back.
	promptTailBytes = 1200
)

var errNoCandidates = errors.New("no usable command in reply")

// Service implements ports.CommandGenerator.
type Service struct {
	Provider ports.Provider
	Snapshot domain.ContextSnapshot
	Logger   ports.Logger
}

type reply struct {
	Command     string   `json:"command"`
	Commands    []string `json:"commands"`
	Fallbacks   []string `json:"fallbacks"`
	Explanation string   `json:"explanation"`
}

// Generate asks the backend for commands. Every failure is a *domain.GenerationError.
func (s *Service) Generate(ctx context.Context, step domain.Step, prior []domain.PriorResult) ([]domain.CommandCandidate, error) {
	if s.Provider == nil {
		return nil, &domain.GenerationError{Step: step.Index, Err: errors.New("generator has no reasoning backend")}
	}

	messages, err := s.messages(step, prior)
	if err != nil {
		return nil, &domain.GenerationError{Step: step.Index, Err: err}
	}

	resp, err := s.Provider.Complete(ctx, ports.CompletionRequest{
		Purpose:  ports.PurposeCommand,
		Messages: messages,
		JSON:     true,
	})
	if err != nil {
		return nil, &domain.GenerationError{Step: step.Index, Err: err}
	}

	candidates := Candidates(step.Index, resp.Text)
	if len(candidates) == 0 {
		if s.Logger != nil {
			s.Logger.Debug("no command in reply", map[string]interface{}{"step": step.Index, "reply": resp.Text})
		}
		return nil, &domain.GenerationError{Step: step.Index, Err: errNoCandidates}
	}
	return candidates, nil
}

// Candidates turns a backend reply into ranked candidates. JSON replies give a
// primary and fallbacks; anything else yields at most one command.
func Candidates(stepIndex int, text string) []domain.CommandCandidate {
	var texts []string
	explanation := ""

	if object, ok := llmtext.ExtractJSON(text); ok {
		var r reply
		if err := json.Unmarshal([]byte(object), &r); err == nil {
			texts = append(texts, r.Command)
			texts = append(texts, r.Commands...)
			texts = append(texts, r.Fallbacks...)
			explanation = strings.TrimSpace(r.Explanation)
		}
	}
	if len(texts) == 0 && !strings.HasPrefix(strings.TrimSpace(text), "{") {
		texts = append(texts, llmtext.ExtractCommand(text))
	}

	seen := make(map[string]bool, len(texts))
	var out []domain.CommandCandidate
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		c := domain.CommandCandidate{Text: t, Rank: len(out), StepIndex: stepIndex}
		if c.IsPrimary() {
			c.Explanation = explanation
		}
		out = append(out, c)
		if len(out) == maxCandidates {
			break
		}
	}
	return out
}

type priorView struct {
	StepIndex   int
	Description string
	Command     string
	Status      domain.ExecStatus
	ExitCode    int
	Feedback    string
	OutputTail  string
}

func (s *Service) messages(step domain.Step, prior []domain.PriorResult) ([]domain.PromptMessage, error) {
	env := prompt.NewEnvironment(s.Snapshot)
	system, err := prompt.Render("command-system", systemTemplate, struct{ Snippet string }{env.Snippet()})
	if err != nil {
		return nil, err
	}

	views := make([]priorView, 0, len(prior))
	for _, p := range prior {
		views = append(views, priorView{
			StepIndex:   p.StepIndex,
			Description: p.Description,
			Command:     p.Command,
			Status:      p.Status,
			ExitCode:    p.ExitCode,
			Feedback:    p.Feedback,
			OutputTail:  indent(lastBytes(p.OutputTail, promptTailBytes), "    "),
		})
	}

	user, err := prompt.Render("command-user", userTemplate, struct {
		Index       int
		Description string
		Task        string
		Category    domain.Category
		Risk        domain.Risk
		Prior       []priorView
	}{step.Index, step.Description, step.Task, step.Category, step.Risk, views})
	if err != nil {
		return nil, err
	}
	if user == "" {
		return nil, fmt.Errorf("empty prompt for step %d", step.Index)
	}
	return prompt.Messages(system, user), nil
}

func lastBytes(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

func indent(s, prefix string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

var _ ports.CommandGenerator = (*Service)(nil)
