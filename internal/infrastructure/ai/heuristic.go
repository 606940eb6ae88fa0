package ai

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

// Prompt lines the heuristic reads back out of planner and generator prompts.
const (
	requestMarker = "Request:"
	stepMarker    = "Step:"
	taskMarker    = "Task:"
)

var (
	stepSplit  = regexp.MustCompile(`(?i)\s*(?:;|,?\s+and then\s+|,?\s+then\s+)\s*`)
	dateOrTime = regexp.MustCompile(`\b(date|time)\b`)
)

// heuristicProvider answers without a network backend. It splits requests on
// "then" and maps a handful of common tasks to commands.
type heuristicProvider struct {
	model domain.ModelDefinition
}

func newHeuristicProvider(model domain.ModelDefinition) *heuristicProvider {
	return &heuristicProvider{model: model}
}

func (p *heuristicProvider) Name() string {
	return string(domain.BackendHeuristic)
}

func (p *heuristicProvider) Model() domain.ModelDefinition {
	return p.model
}

func (p *heuristicProvider) Complete(_ context.Context, req ports.CompletionRequest) (ports.CompletionResponse, error) {
	prompt := lastUserMessage(req.Messages)
	switch req.Purpose {
	case ports.PurposePlan:
		text := markedLine(prompt, requestMarker)
		if text == "" {
			text = prompt
		}
		return jsonResponse(heuristicPlan(text))
	case ports.PurposeCommand:
		task := markedLine(prompt, taskMarker)
		if task == "" {
			task = markedLine(prompt, stepMarker)
		}
		if task == "" {
			task = prompt
		}
		primary, fallbacks, ok := guessCommand(task)
		if !ok {
			return ports.CompletionResponse{}, fmt.Errorf("offline heuristic has no command for %q; configure a reasoning model", task)
		}
		return jsonResponse(map[string]interface{}{
			"command":     primary,
			"fallbacks":   fallbacks,
			"explanation": "offline heuristic suggestion",
		})
	default:
		return ports.CompletionResponse{}, fmt.Errorf("unsupported purpose %q", req.Purpose)
	}
}

func heuristicPlan(request string) map[string]interface{} {
	var steps []map[string]interface{}
	for _, part := range stepSplit.Split(strings.TrimSpace(request), -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n := len(steps) + 1
		step := map[string]interface{}{
			"step":        n,
			"description": part,
			"task":        part,
			"category":    string(guessCategory(part)),
			"cost":        "seconds",
		}
		if n > 1 {
			step["depends_on"] = []int{n - 1}
		}
		steps = append(steps, step)
	}
	return map[string]interface{}{
		"plan":           steps,
		"summary":        strings.TrimSpace(request),
		"estimated_time": fmt.Sprintf("%d step(s)", len(steps)),
	}
}

func guessCategory(task string) domain.Category {
	lower := strings.ToLower(task)
	switch {
	case containsAny(lower, "install", "add package"):
		return domain.CategoryInstall
	case containsAny(lower, "configure", "config", "set up", "setup", "enable"):
		return domain.CategoryConfigure
	case containsAny(lower, "start", "launch", "run "):
		return domain.CategoryStart
	case containsAny(lower, "stop", "kill", "halt"):
		return domain.CategoryStop
	case containsAny(lower, "delete", "remove", "erase", "clean"):
		return domain.CategoryDelete
	case containsAny(lower, "create", "make", "new "):
		return domain.CategoryCreate
	case containsAny(lower, "update", "upgrade"):
		return domain.CategoryUpdate
	case containsAny(lower, "check", "show", "list", "status", "find", "display"):
		return domain.CategoryCheck
	default:
		return domain.CategoryOther
	}
}

// guessCommand maps a task to a primary command and fallbacks.
func guessCommand(task string) (string, []string, bool) {
	lower := strings.ToLower(task)
	switch {
	case strings.Contains(lower, "docker"):
		return "docker ps", []string{"docker container ls"}, true
	case strings.Contains(lower, "git") && strings.Contains(lower, "log"):
		return "git log --oneline -n 10", nil, true
	case strings.Contains(lower, "git"):
		return "git status", []string{"git status --short"}, true
	case strings.Contains(lower, "disk"):
		return "df -h", []string{"du -sh ."}, true
	case strings.Contains(lower, "memory"):
		if runtime.GOOS == "darwin" {
			return "vm_stat", nil, true
		}
		return "free -h", []string{"cat /proc/meminfo"}, true
	case strings.Contains(lower, "process"):
		return "ps aux | head -n 20", []string{"ps -ef"}, true
	case strings.Contains(lower, "list") && strings.Contains(lower, "file"):
		return "ls -la", []string{"ls"}, true
	case containsAny(lower, "current directory", "working directory", "where am i"):
		return "pwd", nil, true
	case containsAny(lower, "who am i", "whoami", "current user"):
		return "whoami", []string{"id -un"}, true
	case strings.Contains(lower, "uptime"):
		return "uptime", nil, true
	case dateOrTime.MatchString(lower):
		return "date", nil, true
	case containsAny(lower, "kernel", "system info", "operating system"):
		return "uname -a", []string{"uname -s"}, true
	case containsAny(lower, "ip address", "network interface"):
		return "ip addr", []string{"ifconfig"}, true
	case strings.Contains(lower, "kubernetes") || strings.Contains(lower, "pod"):
		return "kubectl get pods", nil, true
	default:
		return "", nil, false
	}
}

func lastUserMessage(messages []domain.PromptMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			return messages[i].Content
		}
	}
	return ""
}

func markedLine(prompt, marker string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), marker); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func jsonResponse(v interface{}) (ports.CompletionResponse, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ports.CompletionResponse{}, err
	}
	return ports.CompletionResponse{Text: string(data)}, nil
}

var _ ports.Provider = (*heuristicProvider)(nil)
