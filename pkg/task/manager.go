package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/voicetask/pkg/batch"
)

// Manager owns all delegated-task state for one process: the batch
// client, the record store, the submission gate, and the poller
// supervisor. It is constructed once at startup and passed explicitly
// to whatever needs it; nothing here lives in package globals.
type Manager struct {
	client     batch.API
	store      *Store
	gate       *SubmissionGate
	supervisor *Supervisor
	poller     *Poller
	model      string
}

// ManagerConfig configures a task Manager.
type ManagerConfig struct {
	// Client is the batch provider. Required.
	Client batch.API

	// Store persists job records. Required.
	Store *Store

	// Model is the batch model identifier. Empty uses batch.DefaultModel.
	Model string

	// Cooldown between accepted submissions. Zero uses DefaultCooldown.
	Cooldown time.Duration

	// PollInterval between status checks. Zero uses DefaultPollInterval.
	PollInterval time.Duration

	// Notifier announces terminal outcomes. Nil uses DirectSpeechNotifier.
	Notifier Notifier
}

// NewManager builds a Manager. The supervisor's pollers are children of
// ctx; cancelling it stops all polling.
func NewManager(ctx context.Context, cfg ManagerConfig) (*Manager, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("batch client is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("task store is required")
	}

	return &Manager{
		client:     cfg.Client,
		store:      cfg.Store,
		gate:       NewSubmissionGate(cfg.Cooldown),
		supervisor: NewSupervisor(ctx),
		poller:     NewPoller(cfg.Client, cfg.Store, cfg.Notifier, cfg.PollInterval),
		model:      cfg.Model,
	}, nil
}

// Store exposes the record store for read paths (status and result
// lookups go straight to the store, not through the manager).
func (m *Manager) Store() *Store {
	return m.store
}

// Supervisor exposes the poller registry.
func (m *Manager) Supervisor() *Supervisor {
	return m.supervisor
}

// Submit delegates one task to the batch API and starts a background
// poller for it. It returns the remote job id.
//
// The gate timestamp advances before any remote call, so a concurrent
// retry inside the cooldown window fails fast with ErrRateLimited. A
// failure after the gate but before the record write leaves no partial
// record behind; the cooldown alone is the cost of the failed attempt.
func (m *Manager) Submit(ctx context.Context, description, detailedPrompt string, session Speaker) (string, error) {
	if err := m.gate.TryAcquire(); err != nil {
		return "", err
	}

	count, err := m.store.Count()
	if err != nil {
		return "", fmt.Errorf("failed to submit task: %w", err)
	}

	line, err := batch.BuildLine(batch.RequestSpec{
		CustomID: fmt.Sprintf("task-%d", count+1),
		Model:    m.model,
		Prompt:   detailedPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to submit task: %w", err)
	}

	// The request is staged in memory and handed to the client in one
	// call, so there is no temporary file to clean up on any path.
	file, err := m.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    "tasks.jsonl",
		Bytes:   line,
		Purpose: openai.PurposeBatch,
	})
	if err != nil {
		return "", fmt.Errorf("failed to submit task: %w", err)
	}

	resp, err := m.client.CreateBatch(ctx, openai.CreateBatchRequest{
		InputFileID:      file.ID,
		Endpoint:         openai.BatchEndpointChatCompletions,
		CompletionWindow: batch.CompletionWindow,
	})
	if err != nil {
		return "", fmt.Errorf("failed to submit task: %w", err)
	}

	if err := m.store.Put(resp.ID, Record{
		Description: description,
		Status:      StatusProcessing,
	}); err != nil {
		return "", fmt.Errorf("failed to submit task: %w", err)
	}

	m.supervisor.Start(resp.ID, func(pollCtx context.Context) {
		m.poller.Run(pollCtx, resp.ID, description, session)
	})

	slog.Info("submitted batch task",
		slog.String("job_id", resp.ID),
		slog.String("description", description))

	return resp.ID, nil
}

// Shutdown cancels all pollers and waits for them to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	return m.supervisor.Shutdown(ctx)
}
