package anyllm_test

import (
	"testing"

	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm/anyllm"
)

func TestParseModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in           string
		wantProvider string
		wantModel    string
	}{
		{"openai/gpt-4o", "openai", "gpt-4o"},
		{"anthropic/claude-3-5-sonnet-latest", "anthropic", "claude-3-5-sonnet-latest"},
		{"ollama/llama3.1:8b", "ollama", "llama3.1:8b"},
		{"gpt-4o", "openai", "gpt-4o"},
		{"groq/llama-3.3-70b/versatile", "groq", "llama-3.3-70b/versatile"},
	}

	for _, tt := range tests {
		gotProvider, gotModel := anyllm.ParseModel(tt.in)
		if gotProvider != tt.wantProvider || gotModel != tt.wantModel {
			t.Errorf("ParseModel(%q) = (%q, %q), want (%q, %q)",
				tt.in, gotProvider, gotModel, tt.wantProvider, tt.wantModel)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := anyllm.New("", "gpt-4o"); err == nil {
		t.Error("New with empty provider should return error")
	}
	if _, err := anyllm.New("openai", ""); err == nil {
		t.Error("New with empty model should return error")
	}
	if _, err := anyllm.New("not-a-provider", "m"); err == nil {
		t.Error("New with unknown provider should return error")
	}
}
