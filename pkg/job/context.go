package job

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// NewContext creates a new job Context with the given parent context.
// The context is cancelled when Shutdown is called.
func NewContext(parent context.Context) *Context {
	ctx, cancel := context.WithCancel(parent)

	jc := &Context{
		Ctx:        ctx,
		cancel:     cancel,
		shutdownMu: make(chan struct{}, 1),
	}
	jc.shutdownMu <- struct{}{}
	return jc
}

// ShutdownHookTimeout bounds how long Shutdown waits for hooks.
const ShutdownHookTimeout = 5 * time.Second

func (jc *Context) lock()   { <-jc.shutdownMu }
func (jc *Context) unlock() { jc.shutdownMu <- struct{}{} }

// Shutdown initiates graceful shutdown of the job.
// Idempotent; all registered shutdown hooks run exactly once.
func (jc *Context) Shutdown(reason string) {
	jc.lock()
	if jc.shutdownOnce {
		jc.unlock()
		return
	}
	jc.shutdownOnce = true
	hooks := jc.shutdownHooks
	jc.unlock()

	slog.Info("job shutdown initiated", slog.String("reason", reason))

	var wg sync.WaitGroup
	for _, hook := range hooks {
		wg.Add(1)
		go func(h func(string)) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("shutdown hook panicked", slog.Any("panic", r))
				}
			}()
			h(reason)
		}(hook)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Debug("all shutdown hooks completed")
	case <-time.After(ShutdownHookTimeout):
		slog.Warn("shutdown hooks timed out", slog.Duration("timeout", ShutdownHookTimeout))
	}

	jc.cancel()
}

// OnShutdown registers a callback to run when Shutdown is called.
// Callbacks execute concurrently and handle their own errors. If the job
// has already shut down, the callback runs immediately.
func (jc *Context) OnShutdown(callback func(reason string)) {
	jc.lock()
	defer jc.unlock()

	if jc.shutdownOnce {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("shutdown callback panicked", slog.Any("panic", r))
				}
			}()
			callback("job already shut down")
		}()
		return
	}

	jc.shutdownHooks = append(jc.shutdownHooks, callback)
}

// IsShutdown returns true if the job has been shut down.
func (jc *Context) IsShutdown() bool {
	select {
	case <-jc.Ctx.Done():
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed when the job context is cancelled.
func (jc *Context) Done() <-chan struct{} {
	return jc.Ctx.Done()
}

// Err returns the error associated with the context cancellation.
func (jc *Context) Err() error {
	return jc.Ctx.Err()
}

// generateJobID creates a random job ID.
func generateJobID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID if random fails
		return fmt.Sprintf("job_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("job_%x", bytes)
}
