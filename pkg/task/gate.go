package task

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultCooldown is the minimum spacing between accepted submissions.
// Speech interruptions can make the conversational layer retry a tool
// call; the gate keeps those retries from delegating the same work twice.
const DefaultCooldown = 60 * time.Second

// ErrRateLimited is returned when a submission arrives inside the
// cooldown window of a previously accepted one.
var ErrRateLimited = errors.New("a task was already submitted recently")

// SubmissionGate admits at most one submission per cooldown window.
// It is process-wide state, reset only by restart.
type SubmissionGate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time

	now func() time.Time
}

// NewSubmissionGate creates a gate with the given cooldown. A zero or
// negative cooldown uses DefaultCooldown.
func NewSubmissionGate(cooldown time.Duration) *SubmissionGate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &SubmissionGate{cooldown: cooldown, now: time.Now}
}

// TryAcquire admits or rejects a submission attempt. On admission the
// gate timestamp is advanced in the same critical section, so two
// concurrent attempts can never both pass.
func (g *SubmissionGate) TryAcquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.last.IsZero() && now.Sub(g.last) < g.cooldown {
		return fmt.Errorf("%w: wait %s between submissions", ErrRateLimited, g.cooldown)
	}
	g.last = now
	return nil
}
