package rtc

import (
	"testing"
	"time"
)

func TestNewAudioFrame(t *testing.T) {
	tests := []struct {
		name        string
		sampleRate  int
		numChannels int
		dataLen     int
		wantErr     bool
	}{
		{
			name:        "valid 48kHz mono",
			sampleRate:  48000,
			numChannels: 1,
			dataLen:     960,
			wantErr:     false,
		},
		{
			name:        "valid 16kHz mono",
			sampleRate:  16000,
			numChannels: 1,
			dataLen:     320,
			wantErr:     false,
		},
		{
			name:        "valid 48kHz stereo",
			sampleRate:  48000,
			numChannels: 2,
			dataLen:     1920,
			wantErr:     false,
		},
		{
			name:        "invalid data length",
			sampleRate:  48000,
			numChannels: 1,
			dataLen:     100,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewAudioFrame(make([]byte, tt.dataLen), tt.sampleRate, tt.numChannels, 0)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if frame.SamplesPerChannel != tt.sampleRate/100 {
				t.Errorf("samples per channel = %d, want %d", frame.SamplesPerChannel, tt.sampleRate/100)
			}
			if frame.Duration() != 10*time.Millisecond {
				t.Errorf("duration = %v, want 10ms", frame.Duration())
			}
		})
	}
}

func TestAudioFrameClone(t *testing.T) {
	frame, err := NewAudioFrame(make([]byte, 960), 48000, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame.Data[0] = 42

	clone := frame.Clone()
	if clone.Data[0] != 42 {
		t.Error("clone should copy data")
	}

	clone.Data[0] = 7
	if frame.Data[0] != 42 {
		t.Error("mutating the clone must not affect the original")
	}
}
