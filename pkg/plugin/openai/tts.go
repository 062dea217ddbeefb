package openai

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/chriscow/voicetask/pkg/ai/tts"
	"github.com/chriscow/voicetask/pkg/rtc"
	openai "github.com/sashabaranov/go-openai"
)

// TTS implements tts.TTS using OpenAI's text-to-speech API.
type TTS struct {
	client *openai.Client
	model  string
	voice  string
}

func newTTS(cfg map[string]any) (any, error) {
	apiKey, err := apiKeyFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	model, _ := cfg["model"].(string)
	if model == "" {
		model = "tts-1"
	}
	voice, _ := cfg["voice"].(string)
	if voice == "" {
		voice = "alloy"
	}

	return &TTS{
		client: openai.NewClient(apiKey),
		model:  model,
		voice:  voice,
	}, nil
}

// Synthesize converts text to audio frames using OpenAI TTS.
func (o *TTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	start := time.Now()
	frameChan := make(chan rtc.AudioFrame, 10)

	go func() {
		defer close(frameChan)

		voice := req.Voice
		if voice == "" {
			voice = o.voice
		}

		ttsReq := openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(o.model),
			Input:          req.Text,
			Voice:          openai.SpeechVoice(voice),
			ResponseFormat: openai.SpeechResponseFormatPcm,
		}
		if req.Speed > 0 {
			ttsReq.Speed = float64(req.Speed)
		}

		resp, err := o.client.CreateSpeech(ctx, ttsReq)
		if err != nil {
			slog.Error("TTS synthesis failed", slog.String("error", err.Error()))
			return
		}
		defer resp.Close()

		// OpenAI PCM output is 24 kHz 16-bit mono; chunk into 10ms frames.
		const sampleRate = 24000
		const samplesPerFrame = sampleRate / 100
		buffer := make([]byte, samplesPerFrame*2)

		frameIndex := 0
		for {
			n, err := io.ReadFull(resp, buffer)
			if n > 0 {
				frame := rtc.AudioFrame{
					Data:              append([]byte(nil), buffer[:n]...),
					SampleRate:        sampleRate,
					SamplesPerChannel: n / 2,
					NumChannels:       1,
					Timestamp:         time.Duration(frameIndex) * 10 * time.Millisecond,
				}
				frameIndex++

				select {
				case frameChan <- frame:
				case <-ctx.Done():
					return
				}
			}

			if err != nil {
				if err != io.EOF && err != io.ErrUnexpectedEOF {
					slog.Error("error reading TTS response", slog.String("error", err.Error()))
				}
				break
			}
		}

		slog.Debug("TTS synthesis completed",
			slog.Int("frames", frameIndex),
			slog.Duration("duration", time.Since(start)))
	}()

	return frameChan, nil
}

// Capabilities returns the OpenAI TTS provider's capabilities.
func (o *TTS) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		Streaming:          false,
		SupportedLanguages: []string{"en", "es", "fr", "de", "it", "pt", "ja", "ko", "zh"},
		SupportedVoices:    []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"},
		SampleRates:        []int{24000},
	}
}
