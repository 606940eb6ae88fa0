package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

func planRequest(text string) ports.CompletionRequest {
	return ports.CompletionRequest{
		Purpose: ports.PurposePlan,
		JSON:    true,
		Messages: []domain.PromptMessage{
			{Role: "system", Content: "plan it"},
			{Role: "user", Content: "Request: " + text},
		},
	}
}

func TestFactorySelectsBackend(t *testing.T) {
	t.Setenv("AISH_TEST_KEY", "secret")
	factory := NewFactory(domain.ReasoningSettings{MaxRetries: 1}, nil)

	tests := []struct {
		name  string
		model domain.ModelDefinition
		want  string
	}{
		{"explicit heuristic", domain.ModelDefinition{Name: "local", Backend: domain.BackendHeuristic}, "heuristic"},
		{"openai with key", domain.ModelDefinition{Name: "gpt", Backend: domain.BackendOpenAI, AuthEnvVar: "AISH_TEST_KEY"}, "openai"},
		{"openai without key", domain.ModelDefinition{Name: "gpt", Backend: domain.BackendOpenAI, AuthEnvVar: "AISH_MISSING_KEY"}, "heuristic"},
		{"inferred anthropic", domain.ModelDefinition{Name: "haiku", Endpoint: "https://api.anthropic.com/v1/messages", AuthEnvVar: "AISH_TEST_KEY"}, "anthropic"},
		{"inferred ollama", domain.ModelDefinition{Name: "ollama", Endpoint: "http://localhost:11434/v1/chat/completions"}, "ollama"},
		{"gemini with key", domain.ModelDefinition{Name: "gemini", Backend: domain.BackendGemini, AuthEnvVar: "AISH_TEST_KEY"}, "gemini"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := factory.ForModel(tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.want, provider.Name())
			assert.Equal(t, tt.model.Name, provider.Model().Name)
		})
	}

	_, err := factory.ForModel(domain.ModelDefinition{Name: "odd", Backend: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestHTTPProviderOpenAIFormat(t *testing.T) {
	t.Setenv("AISH_TEST_KEY", "secret")
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  {\"plan\":[]}  "}}]}`))
	}))
	defer server.Close()

	model := domain.ModelDefinition{
		Name:       "gpt",
		Endpoint:   server.URL,
		AuthEnvVar: "AISH_TEST_KEY",
		ModelID:    "gpt-4o-mini",
		APIFormat:  domain.APIFormat{ResponseFormat: "json_object"},
	}
	provider := newHTTPProvider("openai", model, server.Client(), 0.1)

	resp, err := provider.Complete(context.Background(), planRequest("list files"))
	require.NoError(t, err)
	assert.Equal(t, `{"plan":[]}`, resp.Text)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	assert.Equal(t, map[string]interface{}{"type": "json_object"}, captured["response_format"])
	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestHTTPProviderAnthropicFormat(t *testing.T) {
	t.Setenv("AISH_TEST_KEY", "secret")
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ls -la"}]}`))
	}))
	defer server.Close()

	model := domain.ModelDefinition{
		Name:       "haiku",
		Endpoint:   server.URL,
		AuthEnvVar: "AISH_TEST_KEY",
		APIFormat: domain.APIFormat{
			AuthHeaderName:    "x-api-key",
			SystemMessageMode: domain.SystemMessageModeSeparate,
			ContentWrapper:    domain.ContentWrapperAnthropic,
			ResponseJSONPath:  domain.AnthropicResponsePath,
			ExtraHeaders:      map[string]string{"anthropic-version": "2023-06-01"},
		},
	}
	provider := newHTTPProvider("anthropic", model, server.Client(), 0.1)

	resp, err := provider.Complete(context.Background(), planRequest("list files"))
	require.NoError(t, err)
	assert.Equal(t, "ls -la", resp.Text)
	assert.Equal(t, "plan it", captured["system"])
	assert.NotContains(t, captured, "response_format")
	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 1)
}

func TestHTTPProviderStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := newHTTPProvider("ollama", domain.ModelDefinition{Endpoint: server.URL}, server.Client(), 0)
	_, err := provider.Complete(context.Background(), planRequest("x"))

	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusTooManyRequests, status.Code)
	assert.True(t, status.Temporary())
	assert.Contains(t, status.Error(), "slow down")
}

func TestHTTPProviderMissingKeyIsPermanent(t *testing.T) {
	provider := newHTTPProvider("openai", domain.ModelDefinition{
		Endpoint:   "http://127.0.0.1:1",
		AuthEnvVar: "AISH_DEFINITELY_UNSET",
	}, http.DefaultClient, 0)

	_, err := provider.Complete(context.Background(), planRequest("x"))
	require.ErrorIs(t, err, errMissingKey)
	assert.False(t, retryable(err))
}

func TestExtractJSONPath(t *testing.T) {
	data := map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{"message": map[string]interface{}{"content": "hi"}},
		},
		"count": 3.0,
	}

	got, err := extractJSONPath(data, "choices[0].message.content")
	require.NoError(t, err)
	assert.Equal(t, "hi", got)

	for _, path := range []string{"choices[1].message.content", "missing", "count", "choices.message"} {
		_, err := extractJSONPath(data, path)
		assert.Error(t, err, path)
	}
}

type flakyProvider struct {
	calls    atomic.Int32
	failures int32
	err      error
}

func (p *flakyProvider) Name() string                  { return "flaky" }
func (p *flakyProvider) Model() domain.ModelDefinition { return domain.ModelDefinition{Name: "flaky"} }
func (p *flakyProvider) Complete(ctx context.Context, _ ports.CompletionRequest) (ports.CompletionResponse, error) {
	if n := p.calls.Add(1); n <= p.failures {
		return ports.CompletionResponse{}, p.err
	}
	return ports.CompletionResponse{Text: "ok"}, nil
}

func zeroBackOff() backoff.BackOff { return &backoff.ZeroBackOff{} }

func TestRetryingProviderRetriesTransientFailures(t *testing.T) {
	inner := &flakyProvider{failures: 2, err: &StatusError{Code: 503, Status: "503 Service Unavailable"}}
	p := newRetryingProvider(inner, retryOptions{maxRetries: 2, timeout: time.Second, newBackOff: zeroBackOff})

	resp, err := p.Complete(context.Background(), planRequest("x"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.EqualValues(t, 3, inner.calls.Load())
}

func TestRetryingProviderGivesUpAfterMaxRetries(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: errors.New("connection reset")}
	p := newRetryingProvider(inner, retryOptions{maxRetries: 2, timeout: time.Second, newBackOff: zeroBackOff})

	_, err := p.Complete(context.Background(), planRequest("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 attempt(s)")
	assert.EqualValues(t, 3, inner.calls.Load())
}

func TestRetryingProviderDoesNotRetryClientErrors(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: &StatusError{Code: 401, Status: "401 Unauthorized"}}
	p := newRetryingProvider(inner, retryOptions{maxRetries: 5, timeout: time.Second, newBackOff: zeroBackOff})

	_, err := p.Complete(context.Background(), planRequest("x"))
	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, 401, status.Code)
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestRetryingProviderStopsOnCancel(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: errors.New("boom")}
	p := newRetryingProvider(inner, retryOptions{maxRetries: 5, timeout: time.Second, newBackOff: zeroBackOff})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Complete(ctx, planRequest("x"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestHeuristicPlanSplitsOnThen(t *testing.T) {
	p := newHeuristicProvider(domain.ModelDefinition{Name: "local"})
	resp, err := p.Complete(context.Background(), planRequest("list files then show disk usage"))
	require.NoError(t, err)

	var decoded struct {
		Plan []struct {
			Step        int    `json:"step"`
			Description string `json:"description"`
			Category    string `json:"category"`
			DependsOn   []int  `json:"depends_on"`
		} `json:"plan"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Text), &decoded))
	require.Len(t, decoded.Plan, 2)
	assert.Equal(t, "list files", decoded.Plan[0].Description)
	assert.Equal(t, "check", decoded.Plan[1].Category)
	assert.Equal(t, []int{1}, decoded.Plan[1].DependsOn)
}

func TestHeuristicCommand(t *testing.T) {
	p := newHeuristicProvider(domain.ModelDefinition{Name: "local"})
	req := ports.CompletionRequest{
		Purpose:  ports.PurposeCommand,
		Messages: []domain.PromptMessage{{Role: "user", Content: "Task: list files in the project\nStep: 1"}},
	}
	resp, err := p.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"ls -la","fallbacks":["ls"],"explanation":"offline heuristic suggestion"}`, resp.Text)

	req.Messages[0].Content = "Task: compose a sonnet"
	_, err = p.Complete(context.Background(), req)
	assert.Error(t, err)
}
