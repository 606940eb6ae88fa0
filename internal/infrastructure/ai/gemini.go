package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

const defaultGeminiModel = "gemini-2.5-flash"

// geminiProvider talks to Gemini through the genai SDK.
type geminiProvider struct {
	model       domain.ModelDefinition
	apiKey      string
	temperature float32

	mu     sync.Mutex
	client *genai.Client
}

func newGeminiProvider(model domain.ModelDefinition, apiKey string, temperature float64) *geminiProvider {
	return &geminiProvider{
		model:       model,
		apiKey:      apiKey,
		temperature: float32(temperature),
	}
}

func (p *geminiProvider) Name() string {
	return string(domain.BackendGemini)
}

func (p *geminiProvider) Model() domain.ModelDefinition {
	return p.model
}

func (p *geminiProvider) Complete(ctx context.Context, req ports.CompletionRequest) (ports.CompletionResponse, error) {
	client, err := p.clientFor(ctx)
	if err != nil {
		return ports.CompletionResponse{}, err
	}

	system, contents := toGeminiContents(req.Messages)
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.temperature),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	modelID := p.model.ModelID
	if modelID == "" {
		modelID = defaultGeminiModel
	}

	resp, err := client.Models.GenerateContent(ctx, modelID, contents, config)
	if err != nil {
		return ports.CompletionResponse{}, fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return ports.CompletionResponse{}, fmt.Errorf("gemini returned an empty response")
	}
	return ports.CompletionResponse{Text: text}, nil
}

func (p *geminiProvider) clientFor(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	p.client = client
	return client, nil
}

// toGeminiContents folds system messages into a single instruction and maps the
// remaining chat turns onto user/model roles.
func toGeminiContents(messages []domain.PromptMessage) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case "system":
			system = append(system, msg.Content)
		case "assistant", "model":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.TrimSpace(strings.Join(system, "\n")), contents
}

var _ ports.Provider = (*geminiProvider)(nil)
