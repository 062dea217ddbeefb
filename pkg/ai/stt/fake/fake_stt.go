package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chriscow/voicetask/pkg/ai/stt"
	"github.com/chriscow/voicetask/pkg/rtc"
)

const (
	// InterimResultFrameInterval controls how often interim results are sent
	InterimResultFrameInterval = 10
	// DefaultTranscript is used when no transcript is provided
	DefaultTranscript = "This is a fake transcript from the fake STT provider."
)

// FakeSTT is a fake STT implementation for testing. Every stream emits
// interim slices of the configured transcript as frames arrive and a
// final event when the stream is closed.
type FakeSTT struct {
	transcript string
}

// NewFakeSTT creates a new fake STT provider with a fixed transcript.
func NewFakeSTT(transcript string) *FakeSTT {
	if transcript == "" {
		transcript = DefaultTranscript
	}
	return &FakeSTT{transcript: transcript}
}

// NewStream creates a new fake STT stream.
func (f *FakeSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	return &FakeStream{
		transcript: f.transcript,
		events:     make(chan stt.SpeechEvent, 10),
		ctx:        ctx,
	}, nil
}

// Capabilities returns the fake STT capabilities.
func (f *FakeSTT) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Streaming:          true,
		InterimResults:     true,
		SupportedLanguages: []string{"en-US"},
		SampleRates:        []int{16000, 48000},
	}
}

// FakeStream is a fake STT stream implementation.
type FakeStream struct {
	transcript string
	events     chan stt.SpeechEvent
	ctx        context.Context

	mu         sync.Mutex
	frameCount int
	closed     bool
}

// Push processes an audio frame (fake implementation just counts frames).
func (s *FakeStream) Push(frame rtc.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("stream is closed")
	}

	s.frameCount++
	if s.frameCount%InterimResultFrameInterval == 0 {
		n := min(len(s.transcript), s.frameCount/2)
		select {
		case s.events <- stt.SpeechEvent{
			Type:      stt.SpeechEventInterim,
			Text:      s.transcript[:n],
			Language:  "en-US",
			Timestamp: time.Now().UnixMilli(),
		}:
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
	return nil
}

// Events returns the stream's event channel.
func (s *FakeStream) Events() <-chan stt.SpeechEvent {
	return s.events
}

// CloseSend emits the final transcript and closes the event channel.
func (s *FakeStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.events <- stt.SpeechEvent{
		Type:      stt.SpeechEventFinal,
		Text:      s.transcript,
		IsFinal:   true,
		Language:  "en-US",
		Timestamp: time.Now().UnixMilli(),
	}
	close(s.events)
	return nil
}
