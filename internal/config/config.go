// Package config loads process configuration from the environment.
// Values come from the process environment, optionally seeded from a
// .env file by the CLI before Load runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/chriscow/voicetask/pkg/batch"
	"github.com/chriscow/voicetask/pkg/task"
)

// DefaultBatchBaseURL targets the Doubleword OpenAI-compatible batch API.
const DefaultBatchBaseURL = "https://api.doubleword.ai/v1"

// Config holds all environment-provided settings.
type Config struct {
	// LiveKit connection.
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string

	// Conversational stack.
	OpenAIAPIKey string
	LLMModel     string

	// Batch provider.
	BatchAPIKey  string
	BatchBaseURL string
	BatchModel   string

	// Task manager.
	StorePath    string
	Cooldown     time.Duration
	PollInterval time.Duration
}

// Load reads configuration from the environment, applying defaults for
// everything optional.
func Load() (*Config, error) {
	cfg := &Config{
		LiveKitURL:       os.Getenv("LIVEKIT_URL"),
		LiveKitAPIKey:    os.Getenv("LIVEKIT_API_KEY"),
		LiveKitAPISecret: os.Getenv("LIVEKIT_API_SECRET"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		LLMModel:         os.Getenv("LLM_MODEL"),
		BatchAPIKey:      os.Getenv("BATCH_API_KEY"),
		BatchBaseURL:     getenvDefault("BATCH_BASE_URL", DefaultBatchBaseURL),
		BatchModel:       getenvDefault("BATCH_MODEL", batch.DefaultModel),
		StorePath:        getenvDefault("TASKS_FILE", task.DefaultStorePath),
		Cooldown:         task.DefaultCooldown,
		PollInterval:     task.DefaultPollInterval,
	}

	// DOUBLEWORD_API_KEY is the historical name for the batch credential.
	if cfg.BatchAPIKey == "" {
		cfg.BatchAPIKey = os.Getenv("DOUBLEWORD_API_KEY")
	}

	var err error
	if cfg.Cooldown, err = getenvDuration("SUBMISSION_COOLDOWN_SECONDS", task.DefaultCooldown); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getenvDuration("POLL_INTERVAL_SECONDS", task.DefaultPollInterval); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that everything required for the full agent is set.
func (c *Config) Validate() error {
	if c.LiveKitURL == "" {
		return fmt.Errorf("LIVEKIT_URL is required")
	}
	if c.LiveKitAPIKey == "" || c.LiveKitAPISecret == "" {
		return fmt.Errorf("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.BatchAPIKey == "" {
		return fmt.Errorf("BATCH_API_KEY (or DOUBLEWORD_API_KEY) is required")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(secs) * time.Second, nil
}
