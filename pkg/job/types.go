// Package job manages a dispatched agent job: the lifecycle context the
// dispatch runtime hands the worker, and the LiveKit room the
// conversation runs in.
package job

import (
	"context"
	"time"
)

// Job represents a single agent job execution context.
type Job struct {
	// ID is the unique identifier for this job
	ID string

	// RoomName is the LiveKit room this job is assigned to
	RoomName string

	// Context provides lifecycle management and shutdown coordination
	Context *Context
}

// Context manages the lifecycle and cleanup of a job.
// It is immutable after creation and provides coordinated shutdown.
type Context struct {
	// Ctx is the context that gets cancelled when the job ends
	Ctx context.Context

	cancel        context.CancelFunc
	shutdownMu    chan struct{} // buffered size 1; acts as mutex for shutdown state
	shutdownHooks []func(string)
	shutdownOnce  bool
}

// Config contains configuration options for creating a new Job.
type Config struct {
	// ID for the job (if empty, one will be generated)
	ID string

	// RoomName is the LiveKit room to join
	RoomName string

	// Timeout for the overall job execution (0 = none)
	Timeout time.Duration
}

// DefaultJobTimeout is the default timeout for job execution when the
// dispatch runtime does not supply one.
const DefaultJobTimeout = 5 * time.Minute
