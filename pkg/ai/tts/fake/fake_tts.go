package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/chriscow/voicetask/pkg/ai/tts"
	"github.com/chriscow/voicetask/pkg/rtc"
)

// FakeTTS is a fake TTS implementation for testing. It synthesizes a
// sine wave whose length scales with the text and records every text it
// was asked to speak, so tests can assert on notification wording.
type FakeTTS struct {
	mu    sync.Mutex
	texts []string

	// FrameDelay, when set, paces frame production so tests can
	// interrupt synthesis mid-utterance.
	FrameDelay time.Duration
}

// NewFakeTTS creates a new fake TTS provider.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{}
}

// Texts returns a copy of every synthesized text in order.
func (f *FakeTTS) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

// Synthesize generates fake audio frames (sine wave) for the given text.
func (f *FakeTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	f.mu.Lock()
	f.texts = append(f.texts, req.Text)
	delay := f.FrameDelay
	f.mu.Unlock()

	output := make(chan rtc.AudioFrame, 10)

	go func() {
		defer close(output)

		// Roughly one 10ms frame per character, at least 10 frames.
		frameCount := len(req.Text)
		if frameCount < 10 {
			frameCount = 10
		}

		sampleRate := 48000
		samplesPerChannel := sampleRate / 100
		frequency := 440.0

		for i := 0; i < frameCount; i++ {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}

			data := make([]byte, samplesPerChannel*2) // 16-bit mono
			for j := 0; j < samplesPerChannel; j++ {
				sampleIndex := i*samplesPerChannel + j
				sample := 0.3 * math.Sin(2*math.Pi*frequency*float64(sampleIndex)/float64(sampleRate))
				intSample := int16(sample * 32767)
				data[j*2] = byte(intSample & 0xFF)
				data[j*2+1] = byte((intSample >> 8) & 0xFF)
			}

			frame := rtc.AudioFrame{
				Data:              data,
				SampleRate:        sampleRate,
				SamplesPerChannel: samplesPerChannel,
				NumChannels:       1,
				Timestamp:         time.Duration(i) * 10 * time.Millisecond,
			}

			select {
			case output <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	return output, nil
}

// Capabilities returns the fake TTS capabilities.
func (f *FakeTTS) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		Streaming:          true,
		SupportedLanguages: []string{"en-US"},
		SupportedVoices:    []string{"default"},
		SampleRates:        []int{48000},
	}
}
