package llmtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		{"prose around", "Sure! Here it is: {\"a\":\"}\"} hope it helps {\"b\":1}", `{"a":"}"}`, true},
		{"escaped quote", `{"a":"say \"hi\" {"}`, `{"a":"say \"hi\" {"}`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"none", "no json here", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"```bash\nls -la\n```", "ls -la"},
		{"Run this:\n```\ndf -h\n```\nthanks", "df -h"},
		{"Explanation first\ncommand: git status", "git status"},
		{"  pwd  ", "pwd"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractCommand(tt.input), tt.input)
	}
}
