package planner

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
	calls int
	last  ports.CompletionRequest
}

func (s *stubProvider) Name() string                  { return "stub" }
func (s *stubProvider) Model() domain.ModelDefinition { return domain.ModelDefinition{Name: "stub-model"} }
func (s *stubProvider) Complete(_ context.Context, req ports.CompletionRequest) (ports.CompletionResponse, error) {
	s.calls++
	s.last = req
	return ports.CompletionResponse{Text: s.reply}, s.err
}

type memoryCache struct {
	entries map[string]domain.CacheEntry
}

func (m *memoryCache) Get(key string) (domain.CacheEntry, bool, error) {
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *memoryCache) Set(entry domain.CacheEntry) error {
	m.entries[entry.Key] = entry
	return nil
}

const nginxReply = "Here is the plan:\n```json\n" + `{
  "plan": [
    {"step": 1, "description": "Update package index", "task": "Refresh apt metadata", "category": "update"},
    {"step": "2", "description": "Install nginx", "task": "Install the nginx package", "category": "install", "depends_on": [1]},
    {"step": 3, "description": "Start nginx", "task": "Start and enable nginx", "category": "START", "risk": "elevated", "depends_on": [2, 3, 2], "cost": 30},
    {"description": "Remove default site", "category": "delete"}
  ],
  "summary": "Install and start nginx",
  "estimated_time": "2-3 minutes",
  "requires_sudo": true,
  "warnings": ["Port 80 will be used", "  "]
}` + "\n```"

func TestPlanParsesAndNormalizes(t *testing.T) {
	provider := &stubProvider{reply: nginxReply}
	svc := &Service{Provider: provider, Snapshot: domain.ContextSnapshot{OS: "linux", Shell: "bash", PackageManager: "apt"}}

	plan, err := svc.Plan(context.Background(), domain.NewRequest("install nginx and start it"))
	require.NoError(t, err)

	want := domain.Plan{
		Summary:       "Install and start nginx",
		EstimatedTime: "2-3 minutes",
		RequiresSudo:  true,
		Warnings:      []string{"Port 80 will be used"},
		Steps: []domain.Step{
			{Index: 1, Description: "Update package index", Task: "Refresh apt metadata", Category: domain.CategoryUpdate, Risk: domain.RiskElevated},
			{Index: 2, Description: "Install nginx", Task: "Install the nginx package", Category: domain.CategoryInstall, Risk: domain.RiskElevated, DependsOn: []int{1}},
			{Index: 3, Description: "Start nginx", Task: "Start and enable nginx", Category: domain.CategoryStart, Risk: domain.RiskElevated, EstimatedCost: "30", DependsOn: []int{2}},
			{Index: 4, Description: "Remove default site", Task: "Remove default site", Category: domain.CategoryDelete, Risk: domain.RiskDestructive},
		},
	}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, ports.PurposePlan, provider.last.Purpose)
	assert.True(t, provider.last.JSON)
	require.Len(t, provider.last.Messages, 2)
	assert.Contains(t, provider.last.Messages[0].Content, "Package manager: apt")
	assert.Equal(t, "Request: install nginx and start it", provider.last.Messages[1].Content)
}

func TestPlanRejectsInvalidPlans(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"zero steps", `{"plan": [], "summary": "nothing"}`},
		{"unknown dependency", `{"plan": [{"step": 1, "description": "a", "depends_on": [7]}]}`},
		{"forward dependency", `{"plan": [{"step": 1, "description": "a", "depends_on": [2]}, {"step": 2, "description": "b"}]}`},
		{"duplicate index", `{"plan": [{"step": 1, "description": "a"}, {"step": 1, "description": "b"}]}`},
		{"blank step", `{"plan": [{"step": 1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &Service{Provider: &stubProvider{reply: tt.reply}}
			_, err := svc.Plan(context.Background(), domain.NewRequest("do things"))

			var perr *domain.PlanningError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.ErrorIs(t, err, domain.ErrEmptyPlan)
			assert.Contains(t, err.Error(), "empty or invalid plan")
		})
	}
}

func TestPlanMalformedReply(t *testing.T) {
	for _, reply := range []string{"I cannot help with that.", `{"plan": [{"step": "one"}]}`} {
		svc := &Service{Provider: &stubProvider{reply: reply}}
		_, err := svc.Plan(context.Background(), domain.NewRequest("x"))
		var perr *domain.PlanningError
		require.True(t, errors.As(err, &perr), reply)
		assert.ErrorIs(t, err, ErrMalformed)
	}
}

func TestPlanBackendFailure(t *testing.T) {
	backendErr := errors.New("connection refused")
	svc := &Service{Provider: &stubProvider{err: backendErr}}

	_, err := svc.Plan(context.Background(), domain.NewRequest("list files"))
	var perr *domain.PlanningError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, backendErr)
}

func TestPlanEmptyRequest(t *testing.T) {
	provider := &stubProvider{}
	svc := &Service{Provider: provider}
	_, err := svc.Plan(context.Background(), domain.NewRequest("   "))
	var perr *domain.PlanningError
	require.True(t, errors.As(err, &perr))
	assert.Zero(t, provider.calls)
}

func TestPlanUsesCache(t *testing.T) {
	provider := &stubProvider{reply: `{"plan": [{"step": 1, "description": "List files", "category": "check"}]}`}
	cache := &memoryCache{entries: map[string]domain.CacheEntry{}}
	svc := &Service{Provider: provider, Cache: cache, Snapshot: domain.ContextSnapshot{WorkingDir: "/tmp"}}

	first, err := svc.Plan(context.Background(), domain.NewRequest("list files"))
	require.NoError(t, err)
	second, err := svc.Plan(context.Background(), domain.NewRequest("list files"))
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, first, second)
	require.Len(t, cache.entries, 1)
	for _, entry := range cache.entries {
		assert.Equal(t, "stub-model", entry.Model)
	}

	svc.Snapshot.WorkingDir = "/srv"
	_, err = svc.Plan(context.Background(), domain.NewRequest("list files"))
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}
