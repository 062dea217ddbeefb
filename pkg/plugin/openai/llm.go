package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chriscow/voicetask/pkg/ai/llm"
	openai "github.com/sashabaranov/go-openai"
)

// LLM implements the llm.LLM interface using OpenAI chat models.
type LLM struct {
	client *openai.Client
	model  string
}

func newLLM(cfg map[string]any) (any, error) {
	apiKey, err := apiKeyFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	model, ok := cfg["model"].(string)
	if !ok || model == "" {
		model = "gpt-4o-mini"
	}

	return &LLM{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Chat performs chat completion with conversation history and tools.
func (o *LLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		if msg.ToolCall != nil {
			messages[i].ToolCalls = []openai.ToolCall{{
				ID:   msg.ToolCall.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      msg.ToolCall.Name,
					Arguments: msg.ToolCall.Arguments,
				},
			}}
		}
	}

	var tools []openai.Tool
	if len(req.Functions) > 0 {
		tools = make([]openai.Tool, len(req.Functions))
		for i, fn := range req.Functions {
			tools[i] = openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        fn.Name,
					Description: fn.Description,
					Parameters:  fn.Parameters,
				},
			}
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Tools:       tools,
	})
	if err != nil {
		return llm.ChatResponse{}, fmt.Errorf("chat completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return llm.ChatResponse{}, fmt.Errorf("no chat completion choices returned")
	}

	choice := resp.Choices[0]
	result := llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.MessageRole(choice.Message.Role),
			Content: choice.Message.Content,
		},
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(choice.FinishReason),
	}

	// Only the first tool call is surfaced; the assistant dispatches one
	// tool per turn.
	if len(choice.Message.ToolCalls) > 0 {
		toolCall := choice.Message.ToolCalls[0]
		result.FunctionCall = &llm.FunctionCall{
			ID:        toolCall.ID,
			Name:      toolCall.Function.Name,
			Arguments: toolCall.Function.Arguments,
		}
	}

	slog.Debug("chat completion finished",
		slog.String("model", o.model),
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}

// Capabilities returns the OpenAI provider's capabilities.
func (o *LLM) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsFunctions:  true,
		SupportsStreaming:  false,
		MaxTokens:          128000,
		SupportsSystemRole: true,
	}
}
