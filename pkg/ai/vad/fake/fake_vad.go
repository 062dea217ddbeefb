package fake

import (
	"context"
	"time"

	"github.com/chriscow/voicetask/pkg/ai/vad"
	"github.com/chriscow/voicetask/pkg/rtc"
)

// FakeVAD is a fake VAD implementation for testing. Instead of analyzing
// frames it replays events injected by the test, which keeps session
// tests deterministic.
type FakeVAD struct {
	events chan vad.Event
}

// NewFakeVAD creates a new fake VAD provider.
func NewFakeVAD() *FakeVAD {
	return &FakeVAD{events: make(chan vad.Event, 10)}
}

// EmitSpeechStart injects a speech-start event.
func (f *FakeVAD) EmitSpeechStart() {
	f.events <- vad.Event{Type: vad.EventSpeechStart, Timestamp: time.Now()}
}

// EmitSpeechEnd injects a speech-end event.
func (f *FakeVAD) EmitSpeechEnd() {
	f.events <- vad.Event{Type: vad.EventSpeechEnd, Timestamp: time.Now()}
}

// Detect drains incoming frames and forwards injected events.
func (f *FakeVAD) Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan vad.Event, error) {
	output := make(chan vad.Event, 10)

	go func() {
		defer close(output)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-frames:
				if !ok {
					// Keep forwarding events even after audio ends.
					frames = nil
				}
			case ev := <-f.events:
				select {
				case output <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return output, nil
}

// Capabilities returns the fake VAD capabilities.
func (f *FakeVAD) Capabilities() vad.Capabilities {
	return vad.Capabilities{
		SampleRates:        []int{16000, 48000},
		MinSpeechDuration:  100 * time.Millisecond,
		MinSilenceDuration: 100 * time.Millisecond,
		Sensitivity:        0.5,
	}
}
