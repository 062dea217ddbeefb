package batch

import (
	"encoding/json"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestBuildLineShape(t *testing.T) {
	line, err := BuildLine(RequestSpec{
		CustomID: "task-3",
		Prompt:   "Write a marketing plan.",
	})
	if err != nil {
		t.Fatalf("BuildLine failed: %v", err)
	}
	if line[len(line)-1] != '\n' {
		t.Fatal("line must be newline terminated")
	}

	var parsed struct {
		CustomID string                       `json:"custom_id"`
		Method   string                       `json:"method"`
		URL      string                       `json:"url"`
		Body     openai.ChatCompletionRequest `json:"body"`
	}
	if err := json.Unmarshal(line, &parsed); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}

	if parsed.CustomID != "task-3" {
		t.Errorf("custom_id = %q", parsed.CustomID)
	}
	if parsed.Method != "POST" {
		t.Errorf("method = %q", parsed.Method)
	}
	if parsed.URL != "/v1/chat/completions" {
		t.Errorf("url = %q", parsed.URL)
	}
	if parsed.Body.Model != DefaultModel {
		t.Errorf("model = %q, want default", parsed.Body.Model)
	}
	if parsed.Body.Temperature != 0.7 || parsed.Body.MaxTokens != 4096 {
		t.Errorf("generation params = %v/%v", parsed.Body.Temperature, parsed.Body.MaxTokens)
	}
	if len(parsed.Body.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(parsed.Body.Messages))
	}
	if parsed.Body.Messages[0].Role != "system" || parsed.Body.Messages[0].Content != SystemInstruction {
		t.Errorf("unexpected system message: %+v", parsed.Body.Messages[0])
	}
	if parsed.Body.Messages[1].Role != "user" || parsed.Body.Messages[1].Content != "Write a marketing plan." {
		t.Errorf("unexpected user message: %+v", parsed.Body.Messages[1])
	}
}

func TestBuildLineModelOverride(t *testing.T) {
	line, err := BuildLine(RequestSpec{CustomID: "task-1", Model: "custom-model", Prompt: "p"})
	if err != nil {
		t.Fatalf("BuildLine failed: %v", err)
	}
	if !strings.Contains(string(line), `"model":"custom-model"`) {
		t.Fatalf("model override missing: %s", line)
	}
}

func TestBuildLineRequiresPrompt(t *testing.T) {
	if _, err := BuildLine(RequestSpec{CustomID: "task-1"}); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestExtractResult(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "first choice content",
			input: `{"response":{"body":{"choices":[{"message":{"content":"The plan."}},{"message":{"content":"ignored"}}]}}}`,
			want:  "The plan.",
		},
		{
			name: "only first line is read",
			input: `{"response":{"body":{"choices":[{"message":{"content":"first"}}]}}}` + "\n" +
				`{"response":{"body":{"choices":[{"message":{"content":"second"}}]}}}`,
			want: "first",
		},
		{
			name:  "empty output",
			input: "",
			want:  ResultEmptyFallback,
		},
		{
			name:  "malformed line",
			input: "not json",
			want:  ResultFallback,
		},
		{
			name:  "no choices",
			input: `{"response":{"body":{"choices":[]}}}`,
			want:  ResultFallback,
		},
		{
			name:  "empty content",
			input: `{"response":{"body":{"choices":[{"message":{"content":""}}]}}}`,
			want:  ResultFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractResult(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ExtractResult failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
