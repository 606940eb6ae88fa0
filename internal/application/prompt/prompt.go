// Package prompt renders the chat messages sent to the reasoning backend.
//
// Template Variables Available:
//   - {{.WorkingDir}}: Current working directory
//   - {{.Shell}}: Active shell (bash, zsh, etc.)
//   - {{.OS}} / {{.Arch}}: Operating system and architecture
//   - {{.User}}: Current user
//   - {{.PackageManager}}: Detected package manager
//   - {{.Files}}: Comma-separated list of files in the working directory
//   - {{.AvailableTools}}: Comma-separated list of available CLI tools
//   - {{.GitStatus}}: Git repository status summary
//   - {{.Environment}}: Environment variables as key=value pairs
package prompt

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/doeshing/aish/internal/domain"
)

// maxFilesListed keeps the file list from dominating the prompt.
const maxFilesListed = 30

// Environment is the template view of a context snapshot.
type Environment struct {
	WorkingDir     string
	Shell          string
	OS             string
	Arch           string
	User           string
	PackageManager string
	Files          string
	AvailableTools string
	GitStatus      string
	Environment    string
}

// NewEnvironment flattens a snapshot into template-friendly strings.
func NewEnvironment(ctx domain.ContextSnapshot) Environment {
	return Environment{
		WorkingDir:     ctx.WorkingDir,
		Shell:          ctx.Shell,
		OS:             ctx.OS,
		Arch:           ctx.Arch,
		User:           ctx.User,
		PackageManager: ctx.PackageManager,
		Files:          filesSummary(ctx.Files),
		AvailableTools: strings.Join(ctx.AvailableTools, ", "),
		GitStatus:      gitSummary(ctx.Git),
		Environment:    envSummary(ctx.EnvironmentVars),
	}
}

// Snippet renders the environment as "Key: value" lines.
func (e Environment) Snippet() string {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", label, value))
		}
	}
	os := e.OS
	if os != "" && e.Arch != "" {
		os += "/" + e.Arch
	}
	add("OS", os)
	add("Shell", e.Shell)
	add("Directory", e.WorkingDir)
	add("User", e.User)
	add("Package manager", e.PackageManager)
	add("Tools", e.AvailableTools)
	add("Git", e.GitStatus)
	add("Files", e.Files)
	add("Environment", e.Environment)
	return strings.Join(lines, "\n")
}

// Render executes a text/template against data.
func Render(name, raw string, data interface{}) (string, error) {
	tmpl, err := template.New(name).Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Messages builds the usual system + user pair.
func Messages(system, user string) []domain.PromptMessage {
	return []domain.PromptMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

func filesSummary(files []domain.FileInfo) string {
	if len(files) == 0 {
		return ""
	}
	var names []string
	for i, file := range files {
		if i == maxFilesListed {
			names = append(names, fmt.Sprintf("(+%d more)", len(files)-maxFilesListed))
			break
		}
		name := file.Path
		if file.Type == domain.FileTypeDir {
			name += "/"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func gitSummary(status *domain.GitStatus) string {
	if status == nil {
		return ""
	}
	return fmt.Sprintf("branch %s, modified %d, untracked %d", status.Branch, status.ModifiedCount, status.UntrackedCount)
}

func envSummary(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", key, env[key]))
	}
	return strings.Join(parts, ", ")
}
