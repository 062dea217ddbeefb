// Package energy implements a simple energy-based voice activity
// detector. It needs no model files, which makes it the default for
// deployments without an ONNX runtime.
package energy

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/chriscow/voicetask/pkg/ai/vad"
	"github.com/chriscow/voicetask/pkg/rtc"
)

// Options tunes the detector.
type Options struct {
	// MinSpeechDuration is how long energy must stay above threshold
	// before speech start is reported.
	MinSpeechDuration time.Duration

	// MinSilenceDuration is how long energy must stay below threshold
	// before speech end is reported.
	MinSilenceDuration time.Duration

	// HistorySize is how many recent frame energies feed the adaptive
	// threshold.
	HistorySize int
}

// DefaultOptions returns the tuning used in production.
func DefaultOptions() Options {
	return Options{
		MinSpeechDuration:  50 * time.Millisecond,
		MinSilenceDuration: 550 * time.Millisecond,
		HistorySize:        50,
	}
}

// VAD detects speech by comparing per-frame RMS energy against an
// adaptive threshold derived from recent history.
type VAD struct {
	opts Options
}

// New creates an energy VAD. Zero-valued options use defaults.
func New(opts Options) *VAD {
	def := DefaultOptions()
	if opts.MinSpeechDuration <= 0 {
		opts.MinSpeechDuration = def.MinSpeechDuration
	}
	if opts.MinSilenceDuration <= 0 {
		opts.MinSilenceDuration = def.MinSilenceDuration
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = def.HistorySize
	}
	return &VAD{opts: opts}
}

func (v *VAD) Capabilities() vad.Capabilities {
	return vad.Capabilities{
		SampleRates:        []int{8000, 16000, 24000, 48000},
		MinSpeechDuration:  v.opts.MinSpeechDuration,
		MinSilenceDuration: v.opts.MinSilenceDuration,
		Sensitivity:        0.5,
	}
}

// Detect consumes frames and emits speech start/end events. The output
// channel closes when frames closes or ctx is cancelled.
func (v *VAD) Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan vad.Event, error) {
	events := make(chan vad.Event, 16)

	go func() {
		defer close(events)

		d := &detector{opts: v.opts, threshold: 1000}
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				if ev, fire := d.process(frame); fire {
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return events, nil
}

type detector struct {
	opts Options

	speaking    bool
	speechTime  time.Duration
	silenceTime time.Duration

	threshold float64
	history   []float64
}

// process classifies one frame and reports a state-change event when
// the speech or silence run crosses its minimum duration.
func (d *detector) process(frame rtc.AudioFrame) (vad.Event, bool) {
	energy := rmsEnergy(frame.Data)
	d.updateThreshold(energy)

	frameDuration := frame.Duration()

	if energy > d.threshold {
		d.speechTime += frameDuration
		d.silenceTime = 0

		if !d.speaking && d.speechTime >= d.opts.MinSpeechDuration {
			d.speaking = true
			return vad.Event{Type: vad.EventSpeechStart, Timestamp: time.Now()}, true
		}
	} else {
		d.silenceTime += frameDuration
		d.speechTime = 0

		if d.speaking && d.silenceTime >= d.opts.MinSilenceDuration {
			d.speaking = false
			return vad.Event{Type: vad.EventSpeechEnd, Timestamp: time.Now()}, true
		}
	}

	return vad.Event{}, false
}

// updateThreshold tracks recent energies and floats the threshold at
// twice the running average, clamped to a noise floor.
func (d *detector) updateThreshold(energy float64) {
	d.history = append(d.history, energy)
	if len(d.history) > d.opts.HistorySize {
		d.history = d.history[1:]
	}

	var sum float64
	for _, e := range d.history {
		sum += e
	}
	avg := sum / float64(len(d.history))

	threshold := avg * 2
	if threshold < 500 {
		threshold = 500
	}
	d.threshold = threshold
}

// rmsEnergy computes root-mean-square energy over 16-bit little-endian
// PCM samples.
func rmsEnergy(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}

	var sum float64
	n := len(data) / 2
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(data[i*2:]))
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(n))
}
