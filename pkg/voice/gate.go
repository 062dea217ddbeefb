// Package voice implements the live conversation session: a finite
// state machine over Idle → Listening → Thinking → Speaking that wires
// microphone audio through STT, the language model, and TTS, with
// support for tool dispatch, direct speech, and barge-in interruption.
package voice

import "sync/atomic"

// AudioGate controls whether microphone audio should be discarded
// during TTS playback, for deployments where barge-in is disabled.
type AudioGate interface {
	// SetTTSPlaying sets whether TTS is currently playing.
	SetTTSPlaying(playing bool)

	// ShouldDiscardAudio returns true if microphone frames should be dropped.
	ShouldDiscardAudio() bool
}

// NewAudioGate creates a gate that starts open (audio passes through).
func NewAudioGate() AudioGate {
	return &defaultGate{}
}

type defaultGate struct {
	ttsPlaying atomic.Bool
}

func (g *defaultGate) SetTTSPlaying(playing bool) {
	g.ttsPlaying.Store(playing)
}

func (g *defaultGate) ShouldDiscardAudio() bool {
	return g.ttsPlaying.Load()
}
