package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/voicetask/pkg/ai/stt"
	"github.com/chriscow/voicetask/pkg/rtc"
	openai "github.com/sashabaranov/go-openai"
)

// WhisperSTT implements stt.STT using OpenAI's Whisper API. Whisper has
// no streaming endpoint, so streams buffer audio and transcribe the
// whole utterance when the stream is closed.
type WhisperSTT struct {
	client   *openai.Client
	model    string
	language string
}

func newSTT(cfg map[string]any) (any, error) {
	apiKey, err := apiKeyFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	model, _ := cfg["model"].(string)
	if model == "" {
		model = openai.Whisper1
	}
	language, _ := cfg["language"].(string)

	return &WhisperSTT{
		client:   openai.NewClient(apiKey),
		model:    model,
		language: language,
	}, nil
}

// NewStream creates a new STT session for one utterance.
func (w *WhisperSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	return &whisperStream{
		stt:    w,
		ctx:    ctx,
		config: cfg,
		events: make(chan stt.SpeechEvent, 10),
	}, nil
}

// Capabilities returns the STT capabilities.
func (w *WhisperSTT) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Streaming:      true, // pseudo-streaming: buffered per utterance
		InterimResults: false,
		SupportedLanguages: []string{
			"en", "zh", "de", "es", "ru", "ko", "fr", "ja", "pt", "tr", "pl", "nl",
			"ar", "sv", "it", "id", "hi", "fi", "vi", "he", "uk", "el", "cs", "ro",
		},
		SampleRates: []int{16000, 22050, 44100, 48000},
	}
}

type whisperStream struct {
	stt    *WhisperSTT
	ctx    context.Context
	config stt.StreamConfig
	events chan stt.SpeechEvent

	mu     sync.Mutex
	buffer []rtc.AudioFrame
	closed bool
}

// Push buffers an audio frame for transcription.
func (s *whisperStream) Push(frame rtc.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("stream is closed")
	}
	s.buffer = append(s.buffer, frame)
	return nil
}

// Events returns the channel for receiving speech events.
func (s *whisperStream) Events() <-chan stt.SpeechEvent {
	return s.events
}

// CloseSend flushes the buffered utterance through Whisper.
func (s *whisperStream) CloseSend() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("stream already closed")
	}
	s.closed = true
	frames := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	go s.transcribeAndClose(frames)
	return nil
}

func (s *whisperStream) transcribeAndClose(frames []rtc.AudioFrame) {
	defer close(s.events)

	// Whisper rejects audio shorter than 0.1 s (10 frames of 10 ms).
	if len(frames) < 10 {
		s.sendFinal("", "")
		return
	}

	wavData, err := framesToWAV(frames)
	if err != nil {
		slog.Error("failed to encode utterance as WAV", slog.String("error", err.Error()))
		s.sendError(err)
		return
	}

	resp, err := s.stt.client.CreateTranscription(s.ctx, openai.AudioRequest{
		Model:    s.stt.model,
		Language: s.stt.language,
		Format:   openai.AudioResponseFormatJSON,
		Reader:   bytes.NewReader(wavData),
		FilePath: "audio.wav",
	})
	if err != nil {
		slog.Error("whisper transcription failed", slog.String("error", err.Error()))
		s.sendError(fmt.Errorf("transcription failed: %w", err))
		return
	}

	slog.Debug("whisper transcription result", slog.String("text", resp.Text))
	s.sendFinal(resp.Text, resp.Language)
}

func (s *whisperStream) sendFinal(text, language string) {
	select {
	case s.events <- stt.SpeechEvent{
		Type:      stt.SpeechEventFinal,
		Text:      text,
		IsFinal:   true,
		Language:  language,
		Timestamp: time.Now().UnixMilli(),
	}:
	case <-s.ctx.Done():
	}
}

func (s *whisperStream) sendError(err error) {
	select {
	case s.events <- stt.SpeechEvent{
		Type:      stt.SpeechEventError,
		Error:     err,
		Timestamp: time.Now().UnixMilli(),
	}:
	case <-s.ctx.Done():
	}
}

// framesToWAV wraps raw 16-bit PCM frames in a RIFF/WAVE header.
func framesToWAV(frames []rtc.AudioFrame) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to encode")
	}

	sampleRate := uint32(frames[0].SampleRate)
	numChannels := uint16(frames[0].NumChannels)

	totalSize := 0
	for _, frame := range frames {
		totalSize += len(frame.Data)
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+totalSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, numChannels)
	binary.Write(&buf, binary.LittleEndian, sampleRate)
	bitsPerSample := uint16(16)
	byteRate := sampleRate * uint32(numChannels) * uint32(bitsPerSample) / 8
	binary.Write(&buf, binary.LittleEndian, byteRate)
	blockAlign := numChannels * bitsPerSample / 8
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, bitsPerSample)

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(totalSize))
	for _, frame := range frames {
		buf.Write(frame.Data)
	}

	return buf.Bytes(), nil
}
