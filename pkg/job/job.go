package job

import (
	"context"
	"fmt"
	"log/slog"
)

// New creates a Job bound to one room, with its own lifecycle Context.
func New(parentCtx context.Context, cfg Config) (*Job, error) {
	if cfg.RoomName == "" {
		return nil, fmt.Errorf("room name is required")
	}

	jobID := cfg.ID
	if jobID == "" {
		jobID = generateJobID()
	}

	ctx := parentCtx
	if cfg.Timeout > 0 {
		// Cancellation is driven through Context.Shutdown, not this cancel func.
		ctx, _ = context.WithTimeout(parentCtx, cfg.Timeout)
	}

	j := &Job{
		ID:       jobID,
		RoomName: cfg.RoomName,
		Context:  NewContext(ctx),
	}

	slog.Info("created new job",
		slog.String("job_id", jobID),
		slog.String("room_name", cfg.RoomName),
		slog.Duration("timeout", cfg.Timeout))

	return j, nil
}

// Shutdown gracefully shuts down the job with the given reason.
func (j *Job) Shutdown(reason string) {
	slog.Info("shutting down job",
		slog.String("job_id", j.ID),
		slog.String("reason", reason))

	j.Context.Shutdown(reason)
}

// Wait blocks until the job context is cancelled.
// Returns the context error (context.Canceled or context.DeadlineExceeded).
func (j *Job) Wait() error {
	<-j.Context.Done()
	return j.Context.Err()
}

// IsActive returns true if the job is still running (not shut down).
func (j *Job) IsActive() bool {
	return !j.Context.IsShutdown()
}
