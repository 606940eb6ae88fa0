// Package ai builds reasoning backends from model definitions.
//
// Backends are configuration driven:
//   - httpProvider: any chat-completions style HTTP API, shaped by the model's APIFormat
//   - geminiProvider: Google Gemini through the genai SDK
//   - heuristicProvider: offline keyword matching, used when no credentials exist
//
// Every remote backend is wrapped in a retryingProvider that applies the request
// timeout, rate limit and bounded backoff from the reasoning settings.
package ai

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

// Factory creates provider instances based on model definitions.
// It maintains a single HTTP client shared across all providers.
type Factory struct {
	httpClient *http.Client
	settings   domain.ReasoningSettings
	logger     ports.Logger
}

// NewFactory creates a new provider factory.
func NewFactory(settings domain.ReasoningSettings, logger ports.Logger) *Factory {
	return &Factory{
		// per-request deadlines come from the retrying wrapper's context
		httpClient: &http.Client{},
		settings:   settings,
		logger:     logger,
	}
}

// ForModel picks a backend for model. Remote backends without credentials fall
// back to the offline heuristic with a warning.
func (f *Factory) ForModel(model domain.ModelDefinition) (ports.Provider, error) {
	backend := model.Backend
	if backend == domain.BackendAuto {
		backend = inferBackend(model)
	}

	var provider ports.Provider
	switch backend {
	case domain.BackendHeuristic:
		return newHeuristicProvider(model), nil
	case domain.BackendOllama:
		provider = newHTTPProvider(string(backend), model, f.httpClient, f.settings.Temperature)
	case domain.BackendOpenAI, domain.BackendAnthropic:
		if getAPIKey(model) == "" {
			return f.offline(model), nil
		}
		provider = newHTTPProvider(string(backend), model, f.httpClient, f.settings.Temperature)
	case domain.BackendGemini:
		key := getAPIKey(model)
		if key == "" {
			return f.offline(model), nil
		}
		provider = newGeminiProvider(model, key, f.settings.Temperature)
	default:
		return nil, fmt.Errorf("unsupported backend %q for model %s", backend, model.Name)
	}

	return newRetryingProvider(provider, retryOptions{
		maxRetries:        f.settings.MaxRetries,
		timeout:           parseTimeout(f.settings.RequestTimeout),
		requestsPerSecond: f.settings.RequestsPerSecond,
		logger:            f.logger,
	}), nil
}

func (f *Factory) offline(model domain.ModelDefinition) ports.Provider {
	if f.logger != nil {
		f.logger.Warn("no API key for model, using offline heuristic", map[string]interface{}{
			"model":   model.Name,
			"env_var": model.AuthEnvVar,
		})
	}
	return newHeuristicProvider(model)
}

func inferBackend(model domain.ModelDefinition) domain.Backend {
	endpoint := strings.ToLower(model.Endpoint)
	name := strings.ToLower(model.Name)

	switch {
	case strings.Contains(endpoint, "anthropic.com"):
		return domain.BackendAnthropic
	case strings.Contains(endpoint, "openai.com"):
		return domain.BackendOpenAI
	case strings.Contains(endpoint, "googleapis.com"), strings.Contains(name, "gemini"):
		return domain.BackendGemini
	case strings.Contains(name, "ollama"), strings.Contains(endpoint, "11434"), strings.Contains(endpoint, "localhost"):
		return domain.BackendOllama
	case endpoint == "":
		return domain.BackendHeuristic
	default:
		return domain.BackendOpenAI
	}
}

// getAPIKey retrieves the API key from environment variables.
func getAPIKey(model domain.ModelDefinition) string {
	if model.AuthEnvVar == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(model.AuthEnvVar))
}

// RequiresKey reports whether model needs an API key to reach its backend.
func RequiresKey(model domain.ModelDefinition) bool {
	backend := model.Backend
	if backend == domain.BackendAuto {
		backend = inferBackend(model)
	}
	switch backend {
	case domain.BackendOpenAI, domain.BackendAnthropic, domain.BackendGemini:
		return true
	default:
		return false
	}
}

// HasKey reports whether the model's API key is present in the environment.
func HasKey(model domain.ModelDefinition) bool {
	return getAPIKey(model) != ""
}

var _ ports.ProviderFactory = (*Factory)(nil)
