// Package llm defines the chat-completion interface the conversational
// side of the assistant is built on, including function-tool calling.
package llm

import (
	"context"

	"github.com/chriscow/voicetask/pkg/ai"
)

var (
	// ErrRecoverable indicates a temporary LLM failure that may succeed if retried.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent LLM failure that will not succeed if retried.
	ErrFatal = ai.ErrFatal
)

// MessageRole represents the role of a message in a chat conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message represents a single message in a chat conversation. A tool
// exchange is two messages: an assistant message whose ToolCall holds
// the request, then a RoleTool message whose ToolCallID echoes the
// call's ID and whose Content is the result.
type Message struct {
	Role       MessageRole
	Content    string
	Name       string        // tool name, on tool messages
	ToolCall   *FunctionCall // the call issued, on assistant messages
	ToolCallID string        // the call answered, on tool messages
}

// FunctionCall represents a function call request from the LLM.
type FunctionCall struct {
	ID        string // provider-assigned call id
	Name      string
	Arguments string // JSON-encoded arguments
}

// FunctionDefinition defines a function that the LLM can call.
type FunctionDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// ChatRequest contains parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
	TopP        float32
	Functions   []FunctionDefinition
}

// ChatResponse contains the response from a chat completion request.
type ChatResponse struct {
	Message      Message
	FunctionCall *FunctionCall
	TokensUsed   int
	FinishReason string
}

// Capabilities describes the capabilities of an LLM provider.
type Capabilities struct {
	SupportsFunctions  bool
	SupportsStreaming  bool
	MaxTokens          int
	SupportsSystemRole bool
}

// LLM is the main interface for large language model providers.
type LLM interface {
	// Chat performs a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() Capabilities
}
