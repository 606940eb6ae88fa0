package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/doeshing/aish/internal/domain"
)

// Validate ensures config structure is consistent. Every problem is reported,
// not just the first.
func Validate(cfg domain.Config) error {
	var err error
	err = multierr.Append(err, validateModels(cfg))
	err = multierr.Append(err, validateContext(cfg.Context))
	err = multierr.Append(err, validateExecution(cfg.Execution))
	err = multierr.Append(err, validateReasoning(cfg.Reasoning))
	err = multierr.Append(err, validateCache(cfg.Cache))
	err = multierr.Append(err, validateHistory(cfg.History))
	return err
}

func validateModels(cfg domain.Config) error {
	if len(cfg.Models) == 0 {
		return errors.New("at least one model must be configured")
	}
	var err error
	seen := make(map[string]bool, len(cfg.Models))
	for i, model := range cfg.Models {
		if model.Name == "" {
			err = multierr.Append(err, fmt.Errorf("models[%d].name must be set", i))
			continue
		}
		if seen[model.Name] {
			err = multierr.Append(err, fmt.Errorf("model %s defined twice", model.Name))
		}
		seen[model.Name] = true
		err = multierr.Append(err, validateBackend(fmt.Sprintf("model %s backend", model.Name), model.Backend))
	}
	if cfg.Preferences.DefaultModel != "" && !seen[cfg.Preferences.DefaultModel] {
		err = multierr.Append(err, fmt.Errorf("default model %s not found in models list", cfg.Preferences.DefaultModel))
	}
	for _, name := range cfg.Preferences.FallbackModels {
		if !seen[name] {
			err = multierr.Append(err, fmt.Errorf("fallback model %s not found", name))
		}
	}
	return multierr.Append(err, validateBackend("preferences.backend", cfg.Preferences.Backend))
}

func validateBackend(field string, backend domain.Backend) error {
	switch backend {
	case domain.BackendAuto, domain.BackendOpenAI, domain.BackendAnthropic,
		domain.BackendOllama, domain.BackendGemini, domain.BackendHeuristic:
		return nil
	}
	return fmt.Errorf("%s %q is not one of openai|anthropic|ollama|gemini|heuristic", field, backend)
}

func validateContext(ctx domain.ContextSettings) error {
	switch strings.ToLower(ctx.IncludeGit) {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("context.include_git must be auto|always|never, got %s", ctx.IncludeGit)
	}
	if ctx.MaxFiles < 0 {
		return fmt.Errorf("context.max_files must be >= 0")
	}
	return nil
}

func validateExecution(exec domain.ExecutionSettings) error {
	var err error
	if exec.MaxRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("execution.max_retries must be >= 0, got %d", exec.MaxRetries))
	}
	if exec.OnFailure != "" && !domain.FailurePolicy(strings.ToLower(string(exec.OnFailure))).Valid() {
		err = multierr.Append(err, fmt.Errorf("execution.on_failure must be abort|skip, got %s", exec.OnFailure))
	}
	return multierr.Append(err, validateDuration("execution.command_timeout", exec.CommandTimeout))
}

func validateReasoning(r domain.ReasoningSettings) error {
	var err error
	if r.MaxRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("reasoning.max_retries must be >= 0"))
	}
	if r.RequestsPerSecond < 0 {
		err = multierr.Append(err, fmt.Errorf("reasoning.requests_per_second must be >= 0"))
	}
	return multierr.Append(err, validateDuration("reasoning.request_timeout", r.RequestTimeout))
}

func validateCache(cache domain.CacheSettings) error {
	if !cache.Enabled {
		return nil
	}
	var err error
	if cache.MaxEntries < 0 {
		err = multierr.Append(err, fmt.Errorf("cache.max_entries must be >= 0"))
	}
	return multierr.Append(err, validateDuration("cache.ttl", cache.TTL))
}

func validateHistory(history domain.HistorySettings) error {
	if history.Path == "" {
		return errors.New("history.path must be set")
	}
	if history.SQLiteIndex && history.IndexPath == "" {
		return errors.New("history.index_path must be set when sqlite_index is on")
	}
	return nil
}

func validateDuration(field, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s invalid: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, raw)
	}
	return nil
}
