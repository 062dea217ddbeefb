package fake

import (
	"context"
	"sync"

	"github.com/chriscow/voicetask/pkg/ai/llm"
)

// FakeLLM is a fake LLM implementation for testing. Responses are served
// from a script: either plain text replies or full ChatResponse entries
// (for function-call sequences). Every request is recorded.
type FakeLLM struct {
	mu        sync.Mutex
	script    []llm.ChatResponse
	callCount int
	requests  []llm.ChatRequest
}

// DefaultResponse is returned when the script is empty.
const DefaultResponse = "This is a fake response from the fake LLM provider."

// NewFakeLLM creates a new fake LLM provider with predefined text
// responses. With no arguments the script starts empty; append turns
// with Script.
func NewFakeLLM(responses ...string) *FakeLLM {
	f := &FakeLLM{}
	for _, r := range responses {
		f.script = append(f.script, llm.ChatResponse{
			Message:      llm.Message{Role: llm.RoleAssistant, Content: r},
			FinishReason: "stop",
		})
	}
	return f
}

// Script appends a full response to the playback script. Use this to make
// the fake request a function call on a given turn.
func (f *FakeLLM) Script(resp llm.ChatResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, resp)
}

// Requests returns a copy of every chat request seen so far.
func (f *FakeLLM) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.ChatRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Chat returns the next scripted response. When the script runs out the
// last entry repeats.
func (f *FakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)

	if len(f.script) == 0 {
		return llm.ChatResponse{
			Message:      llm.Message{Role: llm.RoleAssistant, Content: DefaultResponse},
			FinishReason: "stop",
		}, nil
	}

	idx := f.callCount
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	f.callCount++

	return f.script[idx], nil
}

// Capabilities returns the fake LLM capabilities.
func (f *FakeLLM) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsFunctions:  true,
		SupportsStreaming:  false,
		MaxTokens:          4096,
		SupportsSystemRole: true,
	}
}
