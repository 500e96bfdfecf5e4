package openai

import (
	"testing"

	"go.uber.org/zap"

	"github.com/mikey/llm-chat-guard/internal/utils"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"bare object",
			`{"is_spam": true}`,
			`{"is_spam": true}`,
		},
		{
			"code fenced",
			"```json\n{\"is_spam\": false}\n```",
			`{"is_spam": false}`,
		},
		{
			"prose wrapped",
			`Here is my analysis: {"is_spam": true, "confidence": 0.9} hope that helps`,
			`{"is_spam": true, "confidence": 0.9}`,
		},
		{
			"nested braces",
			`{"signs": [{"type": "monetary_gain"}]}`,
			`{"signs": [{"type": "monetary_gain"}]}`,
		},
		{
			"no json at all",
			"I cannot answer that",
			"I cannot answer that",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseVerdict(t *testing.T) {
	client := NewOpenAIClient(nil, "gpt-4o", 1000, 0.5, 0.9, 4096,
		zap.NewNop(), utils.NewTextProcessor(zap.NewNop()))

	response := "```json\n" + `{
		"is_spam": true,
		"confidence": 0.85,
		"signs": [
			{"type": "monetary_gain", "description": "promises 500$ per week"},
			{"type": "off_platform_redirect", "description": "asks to write in PM"}
		],
		"explanation": "classic recruitment spam"
	}` + "\n```"

	verdict, err := client.parseVerdict(response)
	if err != nil {
		t.Fatalf("parseVerdict: %v", err)
	}
	if !verdict.IsSpam {
		t.Error("IsSpam = false, want true")
	}
	if verdict.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", verdict.Confidence)
	}
	if len(verdict.Signs) != 2 {
		t.Fatalf("signs = %d, want 2", len(verdict.Signs))
	}
	if string(verdict.Signs[0].Type) != "monetary_gain" {
		t.Errorf("first sign = %q, want monetary_gain", verdict.Signs[0].Type)
	}
	if verdict.ModelUsed != "gpt-4o" {
		t.Errorf("ModelUsed = %q, want gpt-4o", verdict.ModelUsed)
	}
	if verdict.AnalyzedAt.IsZero() {
		t.Error("AnalyzedAt should be stamped")
	}
}

func TestParseVerdict_RejectsNonJSON(t *testing.T) {
	client := NewOpenAIClient(nil, "gpt-4o", 1000, 0.5, 0.9, 4096,
		zap.NewNop(), utils.NewTextProcessor(zap.NewNop()))

	if _, err := client.parseVerdict("the message looks fine to me"); err == nil {
		t.Error("expected an error for a non-JSON reply")
	}
}
