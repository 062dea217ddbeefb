package task

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Supervisor tracks one polling goroutine per submitted job so the
// process can enumerate, await, and cancel them at shutdown. A job id
// is admitted at most once per process lifetime.
type Supervisor struct {
	mu      sync.Mutex
	pollers map[string]*pollerHandle
	baseCtx context.Context
	cancel  context.CancelFunc
}

type pollerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor creates a supervisor whose pollers are all children of
// parent; cancelling parent cancels every poller.
func NewSupervisor(parent context.Context) *Supervisor {
	baseCtx, cancel := context.WithCancel(parent)
	return &Supervisor{
		pollers: make(map[string]*pollerHandle),
		baseCtx: baseCtx,
		cancel:  cancel,
	}
}

// Start launches run in its own goroutine under the supervisor's
// context, registered under jobID. It returns false without launching
// if a poller for jobID already ran this process, or if the supervisor
// has shut down.
func (s *Supervisor) Start(jobID string, run func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.baseCtx.Err() != nil {
		return false
	}
	if _, exists := s.pollers[jobID]; exists {
		slog.Warn("poller already tracked for job", slog.String("job_id", jobID))
		return false
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	handle := &pollerHandle{cancel: cancel, done: make(chan struct{})}
	s.pollers[jobID] = handle

	go func() {
		defer close(handle.done)
		defer cancel()
		run(ctx)
	}()

	return true
}

// Running returns the job ids of pollers that have not finished yet,
// sorted for stable output.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, h := range s.pollers {
		select {
		case <-h.done:
		default:
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Wait blocks until the poller for jobID finishes. It returns
// immediately for an unknown id.
func (s *Supervisor) Wait(jobID string) {
	s.mu.Lock()
	h, ok := s.pollers[jobID]
	s.mu.Unlock()

	if ok {
		<-h.done
	}
}

// Shutdown cancels all pollers and waits for them to finish, or until
// ctx expires.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	handles := make([]*pollerHandle, 0, len(s.pollers))
	for _, h := range s.pollers {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		select {
		case <-h.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
