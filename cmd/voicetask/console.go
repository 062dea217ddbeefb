package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chriscow/voicetask/internal/config"
	"github.com/chriscow/voicetask/pkg/ai/llm"
	"github.com/chriscow/voicetask/pkg/assistant"
	"github.com/chriscow/voicetask/pkg/batch"
	"github.com/chriscow/voicetask/pkg/task"
	"github.com/chriscow/voicetask/pkg/voice"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Text chat with the assistant policy (no audio, no room)",
	Long: `console runs the assistant policy and the batch task pipeline against
stdin/stdout. Useful for exercising task delegation, status checks, and
result retrieval without a LiveKit deployment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(true)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
		if cfg.BatchAPIKey == "" {
			return fmt.Errorf("BATCH_API_KEY (or DOUBLEWORD_API_KEY) is required")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runConsole(ctx, cfg)
	},
}

func runConsole(ctx context.Context, cfg *config.Config) error {
	stack, err := buildStack(cfg)
	if err != nil {
		return err
	}

	store := task.NewStore(cfg.StorePath)
	manager, err := task.NewManager(ctx, task.ManagerConfig{
		Client:       batch.NewClient(cfg.BatchAPIKey, cfg.BatchBaseURL),
		Store:        store,
		Model:        cfg.BatchModel,
		Cooldown:     cfg.Cooldown,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		return err
	}

	asst := assistant.New(manager)
	chat := &consoleChat{model: stack.llm, tools: asst.Tools()}
	asst.BindSession(chat)

	fmt.Println("voicetask console. Type a message, Ctrl-D to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reply, err := chat.respond(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			continue
		}
		fmt.Printf("[agent] %s\n", reply)
	}
	return scanner.Err()
}

// consoleChat drives the assistant policy over text. It implements
// task.Speaker so background pollers can announce task outcomes on
// stdout.
type consoleChat struct {
	model   llm.LLM
	tools   []voice.Tool
	history []llm.Message
}

func (c *consoleChat) respond(ctx context.Context, input string) (string, error) {
	c.history = append(c.history, llm.Message{Role: llm.RoleUser, Content: input})

	defs := make([]llm.FunctionDefinition, 0, len(c.tools))
	byName := make(map[string]voice.Tool, len(c.tools))
	for _, tool := range c.tools {
		def := tool.Definition()
		defs = append(defs, def)
		byName[def.Name] = tool
	}

	for round := 0; round < voice.DefaultMaxToolRounds; round++ {
		msgs := make([]llm.Message, 0, len(c.history)+1)
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: assistant.SystemPrompt})
		msgs = append(msgs, c.history...)

		resp, err := c.model.Chat(ctx, llm.ChatRequest{Messages: msgs, Functions: defs})
		if err != nil {
			return "", err
		}

		if resp.FunctionCall == nil {
			c.history = append(c.history, llm.Message{Role: llm.RoleAssistant, Content: resp.Message.Content})
			return resp.Message.Content, nil
		}

		tool, ok := byName[resp.FunctionCall.Name]
		if !ok {
			return "", fmt.Errorf("model called unknown tool %q", resp.FunctionCall.Name)
		}
		result, err := tool.Call(ctx, json.RawMessage(resp.FunctionCall.Arguments))
		if err != nil {
			result = fmt.Sprintf("Tool %s failed: %s", resp.FunctionCall.Name, err)
		}
		c.history = append(c.history,
			llm.Message{Role: llm.RoleAssistant, ToolCall: resp.FunctionCall},
			llm.Message{
				Role:       llm.RoleTool,
				Name:       resp.FunctionCall.Name,
				ToolCallID: resp.FunctionCall.ID,
				Content:    result,
			})
	}
	return "", fmt.Errorf("tool call limit reached")
}

// Interrupt implements task.Speaker; a text console has nothing to cut off.
func (c *consoleChat) Interrupt() {}

// Say implements task.Speaker.
func (c *consoleChat) Say(ctx context.Context, text string) error {
	c.history = append(c.history, llm.Message{Role: llm.RoleAssistant, Content: text})
	fmt.Printf("\n[agent] %s\n> ", text)
	return nil
}

// GenerateReply implements task.Speaker.
func (c *consoleChat) GenerateReply(ctx context.Context, instructions string) error {
	reply, err := c.respond(ctx, instructions)
	if err != nil {
		return err
	}
	fmt.Printf("\n[agent] %s\n> ", reply)
	return nil
}
