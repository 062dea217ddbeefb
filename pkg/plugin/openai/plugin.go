// Package openai provides OpenAI-backed providers for the conversational
// pipeline: GPT chat completion (with function tools), Whisper
// speech-to-text and TTS synthesis.
package openai

import (
	"fmt"
	"os"

	"github.com/chriscow/voicetask/pkg/plugin"
)

func apiKeyFromConfig(cfg map[string]any) (string, error) {
	if key, ok := cfg["api_key"].(string); ok && key != "" {
		return key, nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY environment variable or provide api_key in config)")
}

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        "llm",
		Name:        "openai",
		Factory:     newLLM,
		Description: "OpenAI GPT chat completion service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key": "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":   "gpt-4o-mini",
		},
	})

	plugin.Register(&plugin.Plugin{
		Kind:        "stt",
		Name:        "openai",
		Factory:     newSTT,
		Description: "OpenAI Whisper speech-to-text service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":    "whisper-1",
			"language": "auto-detect (leave empty) or specify language code",
		},
	})

	plugin.Register(&plugin.Plugin{
		Kind:        "tts",
		Name:        "openai",
		Factory:     newTTS,
		Description: "OpenAI text-to-speech service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key": "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":   "tts-1",
			"voice":   "alloy",
		},
	})
}
