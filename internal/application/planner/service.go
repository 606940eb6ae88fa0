// Package planner turns a request into a validated plan through the reasoning
// backend. Backend output is untrusted: it is decoded leniently and then
// checked before the orchestrator ever sees it.
package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/doeshing/aish/internal/application/prompt"
	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

// Service implements ports.Planner.
type Service struct {
	Provider ports.Provider
	Snapshot domain.ContextSnapshot
	// Cache is optional.
	Cache  ports.PlanCache
	Logger ports.Logger
}

// Plan asks the backend for a plan and validates it. Every failure is a
// *domain.PlanningError.
func (s *Service) Plan(ctx context.Context, req domain.Request) (domain.Plan, error) {
	if s.Provider == nil {
		return domain.Plan{}, &domain.PlanningError{Err: errors.New("planner has no reasoning backend")}
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return domain.Plan{}, &domain.PlanningError{Err: errors.New("empty request")}
	}

	key := s.cacheKey(text)
	if plan, ok := s.cached(key); ok {
		return plan, nil
	}

	messages, err := s.messages(text)
	if err != nil {
		return domain.Plan{}, &domain.PlanningError{Err: err}
	}

	s.debug("requesting plan", map[string]interface{}{
		"backend": s.Provider.Name(),
		"model":   s.Provider.Model().Name,
	})
	resp, err := s.Provider.Complete(ctx, ports.CompletionRequest{
		Purpose:  ports.PurposePlan,
		Messages: messages,
		JSON:     true,
	})
	if err != nil {
		return domain.Plan{}, &domain.PlanningError{Err: err}
	}

	plan, err := Parse(resp.Text)
	if err != nil {
		s.debug("rejected plan", map[string]interface{}{"error": err.Error(), "reply": resp.Text})
		return domain.Plan{}, &domain.PlanningError{Err: err}
	}

	s.store(key, plan)
	return plan, nil
}

func (s *Service) messages(request string) ([]domain.PromptMessage, error) {
	env := prompt.NewEnvironment(s.Snapshot)
	system, err := prompt.Render("plan-system", systemTemplate, struct{ Snippet string }{env.Snippet()})
	if err != nil {
		return nil, err
	}
	user, err := prompt.Render("plan-user", userTemplate, struct{ Request string }{request})
	if err != nil {
		return nil, err
	}
	return prompt.Messages(system, user), nil
}

func (s *Service) cacheKey(request string) string {
	if s.Cache == nil {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		s.Provider.Model().Name,
		request,
		s.Snapshot.OS,
		s.Snapshot.Shell,
		s.Snapshot.WorkingDir,
	}, "\x00")))
	return hex.EncodeToString(sum[:])
}

func (s *Service) cached(key string) (domain.Plan, bool) {
	if key == "" {
		return domain.Plan{}, false
	}
	entry, ok, err := s.Cache.Get(key)
	if err != nil {
		s.warn("plan cache read failed", err)
		return domain.Plan{}, false
	}
	if !ok {
		return domain.Plan{}, false
	}
	// cached plans went through Parse once; check again in case the file was edited
	plan, err := Validate(entry.Plan)
	if err != nil {
		return domain.Plan{}, false
	}
	s.debug("plan cache hit", map[string]interface{}{"key": key[:12]})
	return plan, true
}

func (s *Service) store(key string, plan domain.Plan) {
	if key == "" {
		return
	}
	if err := s.Cache.Set(domain.CacheEntry{Key: key, Model: s.Provider.Model().Name, Plan: plan}); err != nil {
		s.warn("plan cache write failed", err)
	}
}

func (s *Service) debug(msg string, fields map[string]interface{}) {
	if s.Logger != nil {
		s.Logger.Debug(msg, fields)
	}
}

func (s *Service) warn(msg string, err error) {
	if s.Logger != nil {
		s.Logger.Warn(msg, map[string]interface{}{"error": fmt.Sprint(err)})
	}
}

var _ ports.Planner = (*Service)(nil)
