package domain

import (
	"fmt"
	"strings"
	"time"
)

// GetDefaultModel retrieves the default model definition from configuration.
func (c *Config) GetDefaultModel() (ModelDefinition, error) {
	if c.Preferences.DefaultModel == "" {
		return ModelDefinition{}, fmt.Errorf("no default model configured")
	}
	model, ok := c.FindModelByName(c.Preferences.DefaultModel)
	if !ok {
		return ModelDefinition{}, fmt.Errorf("default model %s not found in configuration", c.Preferences.DefaultModel)
	}
	return model, nil
}

// ResolveModel returns the named model, or the default one when name is empty.
func (c *Config) ResolveModel(name string) (ModelDefinition, error) {
	if name == "" {
		if c.Preferences.DefaultModel == "" && len(c.Models) > 0 {
			return c.Models[0], nil
		}
		return c.GetDefaultModel()
	}
	model, ok := c.FindModelByName(name)
	if !ok {
		return ModelDefinition{}, fmt.Errorf("model %s not found in configuration", name)
	}
	return model, nil
}

// FindModelByName searches for a model by its name.
func (c *Config) FindModelByName(name string) (ModelDefinition, bool) {
	for _, model := range c.Models {
		if model.Name == name {
			return model, true
		}
	}
	return ModelDefinition{}, false
}

// HasModel checks if a model with the given name exists in the configuration.
func (c *Config) HasModel(name string) bool {
	_, exists := c.FindModelByName(name)
	return exists
}

// GetFallbackModels returns the fallback models that actually exist.
func (c *Config) GetFallbackModels() []ModelDefinition {
	var fallbackModels []ModelDefinition
	for _, fallbackName := range c.Preferences.FallbackModels {
		if model, exists := c.FindModelByName(fallbackName); exists {
			fallbackModels = append(fallbackModels, model)
		}
	}
	return fallbackModels
}

// GetExecutionShell returns the configured shell, empty meaning "use $SHELL".
func (c *Config) GetExecutionShell() string {
	if strings.EqualFold(c.Execution.Shell, "auto") {
		return ""
	}
	return c.Execution.Shell
}

// CommandTimeout returns the per-command timeout.
func (c *Config) CommandTimeout() time.Duration {
	return parseDurationOr(c.Execution.CommandTimeout, DefaultCommandTimeout)
}

// RequestTimeout returns the per-request timeout for the reasoning backend.
func (c *Config) RequestTimeout() time.Duration {
	return parseDurationOr(c.Reasoning.RequestTimeout, DefaultRequestTimeout)
}

// CacheTTL returns the plan cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return parseDurationOr(c.Cache.TTL, DefaultCacheTTL)
}

// MaxRetries returns the per-step retry bound.
func (c *Config) MaxRetries() int {
	if c.Execution.MaxRetries < 0 {
		return 0
	}
	return c.Execution.MaxRetries
}

// FailurePolicy returns the configured policy, defaulting to abort.
func (c *Config) FailurePolicy() FailurePolicy {
	policy := FailurePolicy(strings.ToLower(string(c.Execution.OnFailure)))
	if !policy.Valid() {
		return PolicyAbort
	}
	return policy
}

// IsGitContextEnabled checks if git context collection is enabled.
func (c *Config) IsGitContextEnabled() bool {
	// "auto" and "always" both mean enabled
	return c.Context.IncludeGit == "auto" || c.Context.IncludeGit == "always"
}

// GetMaxContextFiles returns the maximum number of files to include in context.
func (c *Config) GetMaxContextFiles() int {
	const defaultMaxFiles = 5

	if c.Context.MaxFiles <= 0 {
		return defaultMaxFiles
	}
	return c.Context.MaxFiles
}

// GetCacheMaxEntries returns the maximum number of cache entries.
func (c *Config) GetCacheMaxEntries() int {
	if c.Cache.MaxEntries <= 0 {
		return DefaultMaxCacheEntries
	}
	return c.Cache.MaxEntries
}

// ValidateConsistency checks the internal consistency of the configuration.
func (c *Config) ValidateConsistency() error {
	if c.Preferences.DefaultModel != "" && len(c.Models) == 0 {
		return fmt.Errorf("default model is set but no models are configured")
	}
	if c.Preferences.DefaultModel != "" && !c.HasModel(c.Preferences.DefaultModel) {
		return fmt.Errorf("default model %s does not exist in models list", c.Preferences.DefaultModel)
	}
	for _, fallbackName := range c.Preferences.FallbackModels {
		if !c.HasModel(fallbackName) {
			return fmt.Errorf("fallback model %s does not exist in models list", fallbackName)
		}
	}
	return nil
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
