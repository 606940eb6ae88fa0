package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/aish/assets"
	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/pkg/filesystem"
)

// DangerPattern describes a regex-based guardrail rule.
type DangerPattern struct {
	Pattern string `yaml:"pattern"`
	Level   string `yaml:"level"`
	Message string `yaml:"message"`
	Action  string `yaml:"action"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules struct {
		DangerPatterns []DangerPattern `yaml:"danger_patterns"`
	} `yaml:"rules"`
}

type compiledPattern struct {
	re   *regexp.Regexp
	rule DangerPattern
}

func (p compiledPattern) verdict() domain.Verdict {
	name := "user:" + p.rule.Pattern
	switch strings.ToLower(p.rule.Action) {
	case "block":
		return domain.Blocked(name, p.rule.Message)
	case "allow":
		return domain.Verdict{Kind: domain.VerdictAllowed, Rule: name}
	default:
		return domain.Warning(name, p.rule.Message)
	}
}

// loadRules reads the guardrail file, falling back to the embedded defaults when
// the file does not exist.
func loadRules(path string) (RulesFile, error) {
	var rules RulesFile
	data := assets.DefaultGuardrailYAML
	if path != "" {
		raw, err := os.ReadFile(filesystem.ExpandPath(path))
		switch {
		case err == nil:
			data = raw
		case errors.Is(err, fs.ErrNotExist):
		default:
			return RulesFile{}, fmt.Errorf("read guardrail rules: %w", err)
		}
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RulesFile{}, fmt.Errorf("parse guardrail rules: %w", err)
	}
	return rules, nil
}

func compileRules(rules RulesFile) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(rules.Rules.DangerPatterns))
	for _, pattern := range rules.Rules.DangerPatterns {
		re, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile guardrail pattern %q: %w", pattern.Pattern, err)
		}
		compiled = append(compiled, compiledPattern{re: re, rule: pattern})
	}
	return compiled, nil
}
