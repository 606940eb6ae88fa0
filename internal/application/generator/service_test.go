package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

type stubProvider struct {
	reply string
	err   error
	last  ports.CompletionRequest
}

func (s *stubProvider) Name() string                  { return "stub" }
func (s *stubProvider) Model() domain.ModelDefinition { return domain.ModelDefinition{Name: "stub"} }
func (s *stubProvider) Complete(_ context.Context, req ports.CompletionRequest) (ports.CompletionResponse, error) {
	s.last = req
	return ports.CompletionResponse{Text: s.reply}, s.err
}

var listStep = domain.Step{Index: 2, Description: "List files", Task: "List files in the current directory", Category: domain.CategoryCheck, Risk: domain.RiskLow}

func TestGenerateRanksPrimaryAndFallbacks(t *testing.T) {
	provider := &stubProvider{reply: `{"command":"ls -la","fallbacks":["ls", "ls -la", "  ", "find . -maxdepth 1"],"explanation":"long listing"}`}
	svc := &Service{Provider: provider}

	got, err := svc.Generate(context.Background(), listStep, nil)
	require.NoError(t, err)

	want := []domain.CommandCandidate{
		{Text: "ls -la", Rank: 0, StepIndex: 2, Explanation: "long listing"},
		{Text: "ls", Rank: 1, StepIndex: 2},
		{Text: "find . -maxdepth 1", Rank: 2, StepIndex: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, ports.PurposeCommand, provider.last.Purpose)
	assert.Contains(t, provider.last.Messages[1].Content, "Task: List files in the current directory")
}

func TestGenerateAcceptsPlainText(t *testing.T) {
	svc := &Service{Provider: &stubProvider{reply: "You can use:\n```bash\nls -la\n```"}}
	got, err := svc.Generate(context.Background(), listStep, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ls -la", got[0].Text)
	assert.True(t, got[0].IsPrimary())
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *stubProvider
	}{
		{"backend error", &stubProvider{err: errors.New("timeout")}},
		{"empty json", &stubProvider{reply: `{"command":"","fallbacks":[]}`}},
		{"blank reply", &stubProvider{reply: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &Service{Provider: tt.provider}
			_, err := svc.Generate(context.Background(), listStep, nil)
			var gerr *domain.GenerationError
			require.True(t, errors.As(err, &gerr), "got %v", err)
			assert.Equal(t, 2, gerr.Step)
		})
	}
}

func TestGeneratePassesPriorResults(t *testing.T) {
	provider := &stubProvider{reply: `{"command":"ls -A"}`}
	svc := &Service{Provider: provider, Snapshot: domain.ContextSnapshot{OS: "darwin", Shell: "zsh"}}

	prior := []domain.PriorResult{
		{StepIndex: 1, Description: "Update index", Command: "brew update", Status: domain.StatusSucceeded},
		{StepIndex: 2, Description: "List files", Command: "ls --all", Status: domain.StatusFailed, ExitCode: 1,
			OutputTail: "ls: unrecognized option\nusage: ls", Feedback: "attempt 1 failed"},
	}
	_, err := svc.Generate(context.Background(), listStep, prior)
	require.NoError(t, err)

	user := provider.last.Messages[1].Content
	assert.Contains(t, user, "- step 1 (Update index): `brew update` succeeded, exit 0")
	assert.Contains(t, user, "- step 2 (List files): `ls --all` failed, exit 1")
	assert.Contains(t, user, "feedback: attempt 1 failed")
	assert.Contains(t, user, "    ls: unrecognized option\n    usage: ls")
	assert.Contains(t, provider.last.Messages[0].Content, "- OS: darwin")
}
