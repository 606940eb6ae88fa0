package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

// KeyStatus reports whether a model needs an API key and whether one is set.
type KeyStatus func(domain.ModelDefinition) (required, present bool)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider   ports.ConfigProvider
	ConfigPath       string
	Validate         func(domain.Config) error
	RuleCount        func() int
	ContextCollector ports.ContextCollector
	Keys             KeyStatus
	Shell            string
}

// Run executes checks and returns a report. The error is non-nil only when the
// configuration itself cannot be loaded.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("%s (format %s)", s.ConfigPath, cfg.ConfigFormatVersion)))

	if s.Validate != nil {
		if err := s.Validate(cfg); err != nil {
			checks = append(checks, fail("Config values", err.Error()))
		} else {
			checks = append(checks, ok("Config values", "valid"))
		}
	}

	checks = append(checks, s.modelCheck(cfg))
	checks = append(checks, s.guardrailCheck(cfg))
	checks = append(checks, historyCheck(cfg.History))
	checks = append(checks, s.shellCheck())

	if s.ContextCollector != nil {
		if snapshot, err := s.ContextCollector.Collect(ctx, cfg); err == nil {
			details := fmt.Sprintf("%s/%s, tools: %d", snapshot.OS, snapshot.Arch, len(snapshot.AvailableTools))
			if snapshot.PackageManager != "" {
				details += ", package manager: " + snapshot.PackageManager
			}
			checks = append(checks, ok("Context collector", details))
		} else {
			checks = append(checks, warn("Context collector", err.Error()))
		}
	}

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) modelCheck(cfg domain.Config) domain.HealthCheck {
	model, err := cfg.ResolveModel("")
	if err != nil {
		return fail("Model", err.Error())
	}
	if s.Keys == nil {
		return ok("Model", model.Name)
	}
	required, present := s.Keys(model)
	switch {
	case !required:
		return ok("Model", fmt.Sprintf("%s (no key needed)", model.Name))
	case present:
		return ok("Model", fmt.Sprintf("%s (%s set)", model.Name, model.AuthEnvVar))
	default:
		return warn("Model", fmt.Sprintf("%s: %s missing, falling back to offline suggestions", model.Name, model.AuthEnvVar))
	}
}

func (s *Service) guardrailCheck(cfg domain.Config) domain.HealthCheck {
	if s.RuleCount == nil {
		return warn("Guardrail", "validator not initialized")
	}
	source := cfg.Security.RulesFile
	if _, err := os.Stat(source); err != nil {
		source = "embedded defaults"
	}
	return ok("Guardrail", fmt.Sprintf("%d user rules from %s plus built-ins", s.RuleCount(), source))
}

func historyCheck(h domain.HistorySettings) domain.HealthCheck {
	dir := filepath.Dir(h.Path)
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return warn("History", fmt.Sprintf("%s does not exist yet", dir))
	case err != nil:
		return fail("History", err.Error())
	case !info.IsDir():
		return fail("History", fmt.Sprintf("%s is not a directory", dir))
	}
	details := h.Path
	if h.SQLiteIndex {
		details += ", index " + h.IndexPath
	}
	return ok("History", details)
}

func (s *Service) shellCheck() domain.HealthCheck {
	shell := strings.TrimSpace(s.Shell)
	if shell == "" {
		return warn("Shell", "no shell configured")
	}
	if _, err := exec.LookPath(shell); err != nil {
		return fail("Shell", fmt.Sprintf("%s not found: %v", shell, err))
	}
	return ok("Shell", shell)
}

// Failed reports whether any check errored.
func Failed(report domain.HealthReport) bool {
	return report.Count(domain.HealthError) > 0
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
