package voice

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/voicetask/pkg/ai/llm"
	"github.com/chriscow/voicetask/pkg/ai/stt"
	"github.com/chriscow/voicetask/pkg/ai/tts"
	"github.com/chriscow/voicetask/pkg/ai/vad"
	"github.com/chriscow/voicetask/pkg/job"
	"github.com/chriscow/voicetask/pkg/rtc"
)

// State represents the current state of the conversation session.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateThinking
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateListening:
		return "Listening"
	case StateThinking:
		return "Thinking"
	case StateSpeaking:
		return "Speaking"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// DefaultMaxToolRounds bounds how many consecutive tool calls the model
// may issue while answering a single user turn.
const DefaultMaxToolRounds = 4

// Config holds configuration for creating a Session.
type Config struct {
	STT stt.STT
	TTS tts.TTS
	LLM llm.LLM
	VAD vad.VAD

	MicIn  <-chan rtc.AudioFrame
	TTSOut chan<- rtc.AudioFrame

	// SystemPrompt is prepended to every chat request.
	SystemPrompt string

	// Tools are exposed to the language model for function calling.
	Tools []Tool

	// Voice selects the TTS voice. Empty uses the provider default.
	Voice string

	// MaxToolRounds bounds tool-call chains per turn. Zero uses
	// DefaultMaxToolRounds.
	MaxToolRounds int

	// Gate controls mic muting during playback. Nil creates a default gate.
	Gate AudioGate

	// FlushOutput, when set, is called on interruption to discard any
	// synthesized audio already queued downstream.
	FlushOutput func()
}

// Session coordinates STT, the language model, TTS, and VAD into one
// conversation, moving through Idle → Listening → Thinking → Speaking.
// Background task pollers can break in at any time through Interrupt
// and Say.
type Session struct {
	stt   stt.STT
	tts   tts.TTS
	model llm.LLM
	vad   vad.VAD

	state atomic.Int32

	micIn  <-chan rtc.AudioFrame
	ttsOut chan<- rtc.AudioFrame
	gate   AudioGate

	systemPrompt  string
	voiceName     string
	maxToolRounds int
	tools         map[string]Tool
	toolDefs      []llm.FunctionDefinition
	flushOutput   func()

	vadEvents    <-chan vad.Event
	sttEvents    <-chan stt.SpeechEvent
	interrupts   chan struct{}
	shutdown     chan struct{}
	shutdownOnce sync.Once

	runCtx context.Context

	// Mic fan-out: one goroutine reads MicIn and feeds both branches.
	micVAD chan rtc.AudioFrame
	micSTT chan rtc.AudioFrame

	sttStream      stt.Stream
	streamMu       sync.Mutex
	feederCancel   context.CancelFunc
	feederCancelMu sync.Mutex
	feederDone     chan struct{}

	historyMu sync.Mutex
	history   []llm.Message

	speakMu     sync.Mutex
	speakCancel context.CancelFunc
	speakDone   chan struct{}

	sessionStart      time.Time
	firstWordTimeOnce sync.Once
	metrics           *SessionMetrics
}

// SessionMetrics holds performance metrics for the session.
type SessionMetrics struct {
	FirstWordLatency *expvar.Float
	SessionDuration  *expvar.Float
	StateTransitions *expvar.Map
}

// NewSession creates a Session with the given configuration.
func NewSession(cfg Config) (*Session, error) {
	if cfg.STT == nil {
		return nil, fmt.Errorf("STT is required")
	}
	if cfg.TTS == nil {
		return nil, fmt.Errorf("TTS is required")
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM is required")
	}
	if cfg.VAD == nil {
		return nil, fmt.Errorf("VAD is required")
	}
	if cfg.MicIn == nil {
		return nil, fmt.Errorf("MicIn channel is required")
	}
	if cfg.TTSOut == nil {
		return nil, fmt.Errorf("TTSOut channel is required")
	}

	gate := cfg.Gate
	if gate == nil {
		gate = NewAudioGate()
	}

	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}

	s := &Session{
		stt:           cfg.STT,
		tts:           cfg.TTS,
		model:         cfg.LLM,
		vad:           cfg.VAD,
		micIn:         cfg.MicIn,
		ttsOut:        cfg.TTSOut,
		gate:          gate,
		systemPrompt:  cfg.SystemPrompt,
		voiceName:     cfg.Voice,
		maxToolRounds: maxRounds,
		tools:         make(map[string]Tool),
		flushOutput:   cfg.FlushOutput,
		interrupts:    make(chan struct{}, 1),
		shutdown:      make(chan struct{}),
		micVAD:        make(chan rtc.AudioFrame, 100),
		micSTT:        make(chan rtc.AudioFrame, 100),
		metrics:       newSessionMetrics(),
	}

	for _, tool := range cfg.Tools {
		def := tool.Definition()
		if _, dup := s.tools[def.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", def.Name)
		}
		s.tools[def.Name] = tool
		s.toolDefs = append(s.toolDefs, def)
	}

	s.setState(StateIdle)
	return s, nil
}

// RegisterTool adds a tool after construction, before Start.
func (s *Session) RegisterTool(tool Tool) error {
	def := tool.Definition()
	if _, dup := s.tools[def.Name]; dup {
		return fmt.Errorf("duplicate tool name %q", def.Name)
	}
	s.tools[def.Name] = tool
	s.toolDefs = append(s.toolDefs, def)
	return nil
}

// Start runs the session's main loop until ctx or the job is cancelled,
// or an unrecoverable error occurs.
func (s *Session) Start(ctx context.Context, j *job.Job) error {
	if j == nil {
		return fmt.Errorf("job is required")
	}

	combinedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-j.Context.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	s.runCtx = combinedCtx
	s.sessionStart = time.Now()
	defer s.updateSessionDuration()

	go s.fanOutMic(combinedCtx)

	vadEvents, err := s.vad.Detect(combinedCtx, s.micVAD)
	if err != nil {
		return fmt.Errorf("failed to start VAD: %w", err)
	}
	s.vadEvents = vadEvents

	return s.run(combinedCtx)
}

// fanOutMic feeds microphone audio to the VAD and STT branches. Frames
// are dropped for a branch that falls behind rather than stalling the
// other, and the STT branch is muted while the gate discards audio.
func (s *Session) fanOutMic(ctx context.Context) {
	defer close(s.micVAD)
	defer close(s.micSTT)

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-s.micIn:
			if !ok {
				return
			}
			select {
			case s.micVAD <- frame:
			default:
			}
			if s.gate.ShouldDiscardAudio() {
				continue
			}
			select {
			case s.micSTT <- frame:
			default:
			}
		}
	}
}

// Interrupt cancels in-flight speech and moves the session toward
// listening. Safe to call from any goroutine, including task pollers.
func (s *Session) Interrupt() {
	select {
	case s.interrupts <- struct{}{}:
	default:
		// Interrupt already pending.
	}
}

// Close shuts down the session and cleans up resources.
func (s *Session) Close() error {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
	})

	s.cancelSpeech()

	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	if s.sttStream != nil {
		s.sttStream.CloseSend()
		s.sttStream = nil
	}
	return nil
}

// GetState returns the current session state.
func (s *Session) GetState() State {
	return State(s.state.Load())
}

// History returns a copy of the conversation history.
func (s *Session) History() []llm.Message {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) appendHistory(msgs ...llm.Message) {
	s.historyMu.Lock()
	s.history = append(s.history, msgs...)
	s.historyMu.Unlock()
}

// setState atomically updates state and records the transition metric.
func (s *Session) setState(newState State) {
	oldState := State(s.state.Swap(int32(newState)))

	transitionKey := fmt.Sprintf("%s_to_%s", oldState, newState)
	if counter := s.metrics.StateTransitions.Get(transitionKey); counter != nil {
		counter.(*expvar.Int).Add(1)
	} else {
		newCounter := &expvar.Int{}
		newCounter.Set(1)
		s.metrics.StateTransitions.Set(transitionKey, newCounter)
	}
}

// run is the main loop processing VAD, STT, and interrupt events.
func (s *Session) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdown:
			return nil
		case <-s.interrupts:
			if err := s.handleInterrupt(ctx); err != nil {
				return fmt.Errorf("interrupt handling failed: %w", err)
			}
		case vadEvent, ok := <-s.vadEvents:
			if !ok {
				// Microphone input ended; nothing more to listen to.
				return nil
			}
			if err := s.handleVADEvent(ctx, vadEvent); err != nil {
				return fmt.Errorf("VAD event handling failed: %w", err)
			}
		case sttEvent, ok := <-s.sttEvents:
			if !ok {
				// Stream finished; a new one arrives on the next listen.
				s.sttEvents = nil
				continue
			}
			if err := s.handleSTTEvent(ctx, sttEvent); err != nil {
				return fmt.Errorf("STT event handling failed: %w", err)
			}
		}
	}
}

// handleInterrupt stops current output and returns to listening. The
// state is read before cancelSpeech: waiting for the speak goroutine
// lets its exit path run first, and deciding on what it left behind
// would strand an interrupted session in Idle.
func (s *Session) handleInterrupt(ctx context.Context) error {
	wasActive := s.GetState()
	s.cancelSpeech()

	switch wasActive {
	case StateSpeaking, StateThinking:
		s.setState(StateListening)
		return s.startListening(ctx)
	default:
		return nil
	}
}

func (s *Session) handleVADEvent(ctx context.Context, event vad.Event) error {
	switch event.Type {
	case vad.EventSpeechStart:
		switch s.GetState() {
		case StateIdle:
			s.setState(StateListening)
			return s.startListening(ctx)
		case StateSpeaking:
			// Barge-in: the user started talking over the agent.
			return s.handleInterrupt(ctx)
		}
	case vad.EventSpeechEnd:
		if s.GetState() == StateListening {
			s.setState(StateThinking)
			return s.startThinking(ctx)
		}
	case vad.EventError:
		slog.Warn("VAD error", slog.String("error", event.Error.Error()))
	}
	return nil
}

func (s *Session) handleSTTEvent(ctx context.Context, event stt.SpeechEvent) error {
	switch event.Type {
	case stt.SpeechEventFinal:
		if s.GetState() == StateThinking && event.Text != "" {
			return s.processTurn(ctx, event.Text)
		}
	case stt.SpeechEventError:
		slog.Warn("STT error", slog.String("error", event.Error.Error()))
	}
	return nil
}

// startListening begins STT processing for the current audio stream.
func (s *Session) startListening(ctx context.Context) error {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	s.feederCancelMu.Lock()
	if s.feederCancel != nil {
		s.feederCancel()
		s.feederCancel = nil
	}
	s.feederCancelMu.Unlock()

	if s.sttStream != nil {
		s.sttStream.CloseSend()
	}

	stream, err := s.stt.NewStream(ctx, stt.StreamConfig{
		SampleRate:  48000,
		NumChannels: 1,
		Lang:        "en-US",
		MaxRetry:    3,
	})
	if err != nil {
		return fmt.Errorf("failed to create STT stream: %w", err)
	}

	s.sttStream = stream
	s.sttEvents = stream.Events()

	feederCtx, feederCancel := context.WithCancel(ctx)
	feederDone := make(chan struct{})

	s.feederCancelMu.Lock()
	s.feederCancel = feederCancel
	s.feederDone = feederDone
	s.feederCancelMu.Unlock()

	go func() {
		defer close(feederDone)
		defer feederCancel()
		for {
			select {
			case <-feederCtx.Done():
				return
			case frame, ok := <-s.micSTT:
				if !ok {
					return
				}
				if err := stream.Push(frame); err != nil {
					return
				}
			}
		}
	}()

	return nil
}

// startThinking stops the mic feeder and flushes the STT stream so a
// final transcript can be produced.
func (s *Session) startThinking(ctx context.Context) error {
	var feederDone chan struct{}
	s.feederCancelMu.Lock()
	if s.feederCancel != nil {
		s.feederCancel()
		feederDone = s.feederDone
		s.feederCancel = nil
		s.feederDone = nil
	}
	s.feederCancelMu.Unlock()

	if feederDone != nil {
		select {
		case <-feederDone:
		case <-ctx.Done():
		case <-time.After(100 * time.Millisecond):
		}
	}

	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	if s.sttStream != nil {
		if err := s.sttStream.CloseSend(); err != nil {
			return fmt.Errorf("failed to close STT stream: %w", err)
		}
	}
	return nil
}

// processTurn sends the user transcript through the language model,
// dispatching any tool calls it issues, and speaks the final reply.
func (s *Session) processTurn(ctx context.Context, transcript string) error {
	s.appendHistory(llm.Message{Role: llm.RoleUser, Content: transcript})

	reply, err := s.complete(ctx, nil)
	if err != nil {
		return err
	}

	if reply != "" {
		s.setState(StateSpeaking)
		return s.startSpeaking(reply)
	}

	s.setState(StateIdle)
	return nil
}

// complete runs the chat loop: system prompt, history, and an optional
// extra instruction message, dispatching tool calls until the model
// produces plain text or the round limit is hit. The final assistant
// message is appended to history and returned.
func (s *Session) complete(ctx context.Context, extra []llm.Message) (string, error) {
	for round := 0; round < s.maxToolRounds; round++ {
		resp, err := s.model.Chat(ctx, llm.ChatRequest{
			Messages:  s.buildMessages(extra),
			Functions: s.toolDefs,
		})
		if err != nil {
			return "", fmt.Errorf("LLM chat failed: %w", err)
		}

		if resp.FunctionCall == nil {
			s.appendHistory(llm.Message{Role: llm.RoleAssistant, Content: resp.Message.Content})
			return resp.Message.Content, nil
		}

		// The provider requires the assistant message carrying the call
		// immediately before the tool message answering it.
		result := s.dispatchTool(ctx, resp.FunctionCall)
		s.appendHistory(
			llm.Message{Role: llm.RoleAssistant, ToolCall: resp.FunctionCall},
			llm.Message{
				Role:       llm.RoleTool,
				Name:       resp.FunctionCall.Name,
				ToolCallID: resp.FunctionCall.ID,
				Content:    result,
			},
		)
	}
	return "", fmt.Errorf("tool call limit reached (%d rounds)", s.maxToolRounds)
}

func (s *Session) buildMessages(extra []llm.Message) []llm.Message {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	msgs := make([]llm.Message, 0, len(s.history)+len(extra)+1)
	if s.systemPrompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: s.systemPrompt})
	}
	msgs = append(msgs, s.history...)
	msgs = append(msgs, extra...)
	return msgs
}

// dispatchTool executes a model-issued tool call. Failures become
// explanatory text for the model rather than session errors.
func (s *Session) dispatchTool(ctx context.Context, call *llm.FunctionCall) string {
	tool, ok := s.tools[call.Name]
	if !ok {
		slog.Warn("model called unknown tool", slog.String("tool", call.Name))
		return fmt.Sprintf("Unknown tool: %s", call.Name)
	}

	start := time.Now()
	result, err := tool.Call(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		slog.Error("tool call failed",
			slog.String("tool", call.Name),
			slog.String("error", err.Error()))
		return fmt.Sprintf("Tool %s failed: %s", call.Name, err)
	}

	slog.Debug("tool call completed",
		slog.String("tool", call.Name),
		slog.Duration("duration", time.Since(start)))
	return result
}

// Say speaks literal text, bypassing the language model. Any in-flight
// speech is replaced. The text is recorded in history so follow-up
// turns have context for what was announced.
func (s *Session) Say(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	s.appendHistory(llm.Message{Role: llm.RoleAssistant, Content: text})
	s.setState(StateSpeaking)
	return s.startSpeaking(text)
}

// GenerateReply asks the language model to produce a reply following
// the given instructions (for example a greeting), then speaks it.
func (s *Session) GenerateReply(ctx context.Context, instructions string) error {
	extra := []llm.Message{{Role: llm.RoleSystem, Content: instructions}}

	reply, err := s.complete(ctx, extra)
	if err != nil {
		return err
	}
	if reply == "" {
		return nil
	}

	s.setState(StateSpeaking)
	return s.startSpeaking(reply)
}

// cancelSpeech stops the current speech goroutine, if any, and flushes
// queued output downstream.
func (s *Session) cancelSpeech() {
	s.speakMu.Lock()
	cancel := s.speakCancel
	done := s.speakDone
	s.speakCancel = nil
	s.speakDone = nil
	s.speakMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.flushOutput != nil {
		s.flushOutput()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}
	s.gate.SetTTSPlaying(false)
}

// startSpeaking synthesizes text and streams the audio to the output,
// replacing any speech already in progress.
func (s *Session) startSpeaking(text string) error {
	s.firstWordTimeOnce.Do(func() {
		latency := time.Since(s.sessionStart)
		s.metrics.FirstWordLatency.Set(float64(latency.Milliseconds()))
	})

	s.cancelSpeech()

	base := s.runCtx
	if base == nil {
		base = context.Background()
	}
	speakCtx, cancel := context.WithCancel(base)
	done := make(chan struct{})

	s.speakMu.Lock()
	s.speakCancel = cancel
	s.speakDone = done
	s.speakMu.Unlock()

	audioFrames, err := s.tts.Synthesize(speakCtx, tts.SynthesizeRequest{
		Text:     text,
		Voice:    s.voiceName,
		Language: "en-US",
	})
	if err != nil {
		cancel()
		close(done)
		return fmt.Errorf("TTS synthesis failed: %w", err)
	}

	s.gate.SetTTSPlaying(true)

	go func() {
		defer close(done)
		defer cancel()
		defer func() {
			s.gate.SetTTSPlaying(false)
			// Drop back to idle only after playing out naturally; when
			// cancelled, the canceller owns the next transition.
			if speakCtx.Err() == nil && s.GetState() == StateSpeaking {
				s.setState(StateIdle)
			}
		}()

		for frame := range audioFrames {
			select {
			case s.ttsOut <- frame:
			case <-speakCtx.Done():
				return
			case <-s.shutdown:
				return
			}
		}
	}()

	return nil
}

func (s *Session) updateSessionDuration() {
	duration := time.Since(s.sessionStart)
	s.metrics.SessionDuration.Set(float64(duration.Milliseconds()))
}

func newSessionMetrics() *SessionMetrics {
	stateTransitions := &expvar.Map{}
	stateTransitions.Init()

	return &SessionMetrics{
		FirstWordLatency: &expvar.Float{},
		SessionDuration:  &expvar.Float{},
		StateTransitions: stateTransitions,
	}
}
