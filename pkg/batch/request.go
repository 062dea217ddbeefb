package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Fixed generation parameters for delegated tasks. The live conversation
// keeps replies short; the batch side is where thoroughness happens.
const (
	// DefaultModel is used when no batch model is configured.
	DefaultModel = "Qwen/Qwen3-VL-235B-A22B-Instruct-FP8"

	// SystemInstruction is the fixed system message for every batch request.
	SystemInstruction = "You are a professional assistant. Complete the task thoroughly and professionally."

	// CompletionWindow is the advisory completion-window hint sent to the provider.
	CompletionWindow = "1h"

	temperature = 0.7
	maxTokens   = 4096
)

// RequestSpec describes one delegated chat-completion call.
type RequestSpec struct {
	CustomID string
	Model    string
	Prompt   string
}

// requestLine is the wire shape of one JSONL input line.
type requestLine struct {
	CustomID string                       `json:"custom_id"`
	Method   string                       `json:"method"`
	URL      string                       `json:"url"`
	Body     openai.ChatCompletionRequest `json:"body"`
}

// BuildLine encodes a request spec as a single batch input line,
// newline terminated.
func BuildLine(spec RequestSpec) ([]byte, error) {
	if spec.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	model := spec.Model
	if model == "" {
		model = DefaultModel
	}

	line := requestLine{
		CustomID: spec.CustomID,
		Method:   "POST",
		URL:      string(openai.BatchEndpointChatCompletions),
		Body: openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: SystemInstruction},
				{Role: openai.ChatMessageRoleUser, Content: spec.Prompt},
			},
			Temperature: temperature,
			MaxTokens:   maxTokens,
		},
	}

	data, err := json.Marshal(line)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch request: %w", err)
	}
	return append(data, '\n'), nil
}

// Fallback result texts, used when the provider output is missing or
// not in the expected chat-completion shape.
const (
	ResultFallback      = "Task completed."
	ResultEmptyFallback = "Task completed but no results found."
)

// outputLine mirrors the provider's newline-delimited output records:
// a nested response body containing a chat-completion choice list.
type outputLine struct {
	Response struct {
		Body struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"body"`
	} `json:"response"`
}

// ExtractResult reads provider output and returns the first line's first
// choice's message content. Missing or malformed output degrades to a
// fallback string rather than an error; only read failures propagate.
func ExtractResult(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var parsed outputLine
		if err := json.Unmarshal(line, &parsed); err != nil {
			return ResultFallback, nil
		}
		if len(parsed.Response.Body.Choices) == 0 {
			return ResultFallback, nil
		}
		content := parsed.Response.Body.Choices[0].Message.Content
		if content == "" {
			return ResultFallback, nil
		}
		return content, nil
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read batch output: %w", err)
	}
	return ResultEmptyFallback, nil
}
