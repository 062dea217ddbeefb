// Package vad defines the voice-activity-detection boundary. The session
// treats the detector as opaque; it only reacts to start/end events.
package vad

import (
	"context"
	"time"

	"github.com/chriscow/voicetask/pkg/ai"
	"github.com/chriscow/voicetask/pkg/rtc"
)

var (
	// ErrRecoverable indicates a temporary VAD failure that may succeed if retried.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent VAD failure that will not succeed if retried.
	ErrFatal = ai.ErrFatal
)

// EventType represents the type of VAD event.
type EventType int

const (
	EventSpeechStart EventType = iota
	EventSpeechEnd
	EventError
)

// Event represents a voice activity detection event.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Error     error
}

// Capabilities describes the capabilities of a VAD provider.
type Capabilities struct {
	SampleRates        []int
	MinSpeechDuration  time.Duration
	MinSilenceDuration time.Duration
	Sensitivity        float32 // 0.0 to 1.0
}

// VAD is the main interface for voice activity detection providers.
type VAD interface {
	// Detect processes audio frames and returns VAD events.
	// The returned channel is closed when the input channel closes or the context is cancelled.
	Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan Event, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() Capabilities
}
