// Package energy registers the energy-based VAD provider.
package energy

import (
	"time"

	"github.com/chriscow/voicetask/pkg/ai/vad/energy"
	"github.com/chriscow/voicetask/pkg/plugin"
)

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        "vad",
		Name:        "energy",
		Factory:     newVAD,
		Description: "Energy-based voice activity detection (no model files required)",
		Version:     "1.0.0",
		Config: map[string]any{
			"min_speech_ms":  50,
			"min_silence_ms": 550,
		},
	})
}

func newVAD(cfg map[string]any) (any, error) {
	opts := energy.DefaultOptions()
	if ms, ok := cfg["min_speech_ms"].(int); ok && ms > 0 {
		opts.MinSpeechDuration = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := cfg["min_silence_ms"].(int); ok && ms > 0 {
		opts.MinSilenceDuration = time.Duration(ms) * time.Millisecond
	}
	return energy.New(opts), nil
}
