package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/spf13/cobra"

	"github.com/chriscow/voicetask/internal/config"
	"github.com/chriscow/voicetask/internal/worker"
	"github.com/chriscow/voicetask/pkg/ai/llm"
	"github.com/chriscow/voicetask/pkg/ai/stt"
	"github.com/chriscow/voicetask/pkg/ai/tts"
	"github.com/chriscow/voicetask/pkg/ai/vad"
	"github.com/chriscow/voicetask/pkg/assistant"
	"github.com/chriscow/voicetask/pkg/batch"
	"github.com/chriscow/voicetask/pkg/job"
	"github.com/chriscow/voicetask/pkg/plugin"
	"github.com/chriscow/voicetask/pkg/rtc"
	"github.com/chriscow/voicetask/pkg/task"
	"github.com/chriscow/voicetask/pkg/voice"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Connect to the dispatch server and serve assigned rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		token, _ := cmd.Flags().GetString("token")

		logger := setupLogger(false)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if url == "" {
			url = cfg.LiveKitURL
		}
		if token == "" {
			return fmt.Errorf("--token is required")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		w := worker.New(worker.Config{
			URL:   url,
			Token: token,
			Entrypoint: func(jobCtx context.Context, roomName string) error {
				return runAgent(jobCtx, cfg, roomName)
			},
		}, logger)

		return w.Run(ctx)
	},
}

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Join a single room directly (development mode)",
	RunE: func(cmd *cobra.Command, args []string) error {
		roomName, _ := cmd.Flags().GetString("room")

		setupLogger(true)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if roomName == "" {
			return fmt.Errorf("--room is required")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runAgent(ctx, cfg, roomName)
	},
}

func init() {
	startCmd.Flags().String("url", "", "Dispatch server URL (defaults to LIVEKIT_URL)")
	startCmd.Flags().String("token", "", "Worker auth token")
	devCmd.Flags().String("room", "", "Room name to join")
}

// runAgent is the per-room entrypoint: connect, publish the assistant's
// audio track, assemble the conversational stack and the task manager,
// then run the session until the room or context ends.
func runAgent(ctx context.Context, cfg *config.Config, roomName string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	j, err := job.New(ctx, job.Config{RoomName: roomName})
	if err != nil {
		return err
	}
	defer j.Shutdown("entrypoint returned")

	token, err := agentToken(cfg, roomName)
	if err != nil {
		return err
	}

	roomCfg := job.RoomConfig{
		URL:      cfg.LiveKitURL,
		Token:    token,
		RoomName: roomName,
	}
	room, err := job.NewRoom(ctx, roomCfg)
	if err != nil {
		return err
	}
	if err := room.Connect(roomCfg); err != nil {
		return err
	}
	defer room.Disconnect()

	go watchRoomEvents(ctx, cancel, room)

	publisher, err := rtc.PublishTrack(room.LKRoom(), "assistant-voice")
	if err != nil {
		return err
	}
	defer publisher.Close()

	stack, err := buildStack(cfg)
	if err != nil {
		return err
	}

	store := task.NewStore(cfg.StorePath)
	manager, err := task.NewManager(ctx, task.ManagerConfig{
		Client:       batch.NewClient(cfg.BatchAPIKey, cfg.BatchBaseURL),
		Store:        store,
		Model:        cfg.BatchModel,
		Cooldown:     cfg.Cooldown,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		return err
	}
	asst := assistant.New(manager)

	micIn := make(chan rtc.AudioFrame, 100)
	go pumpMicrophone(ctx, room, micIn)

	ttsOut := make(chan rtc.AudioFrame, 100)
	go pumpPlayback(ctx, publisher, ttsOut)

	session, err := voice.NewSession(voice.Config{
		STT:          stack.stt,
		TTS:          stack.tts,
		LLM:          stack.llm,
		VAD:          stack.vad,
		MicIn:        micIn,
		TTSOut:       ttsOut,
		SystemPrompt: assistant.SystemPrompt,
		Tools:        asst.Tools(),
		FlushOutput:  publisher.Flush,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	asst.BindSession(session)

	errCh := make(chan error, 1)
	go func() {
		errCh <- session.Start(ctx, j)
	}()

	if err := session.GenerateReply(ctx, assistant.GreetingInstructions); err != nil {
		slog.Warn("failed to generate greeting", slog.String("error", err.Error()))
	}

	err = <-errCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := manager.Shutdown(shutdownCtx); serr != nil {
		slog.Warn("task pollers did not stop cleanly", slog.String("error", serr.Error()))
	}

	if err == context.Canceled {
		return nil
	}
	return err
}

// aiStack holds the assembled conversational providers.
type aiStack struct {
	stt stt.STT
	tts tts.TTS
	llm llm.LLM
	vad vad.VAD
}

// buildStack assembles providers from the plugin registry.
func buildStack(cfg *config.Config) (*aiStack, error) {
	openaiCfg := map[string]any{"api_key": cfg.OpenAIAPIKey}
	llmCfg := map[string]any{"api_key": cfg.OpenAIAPIKey}
	if cfg.LLMModel != "" {
		llmCfg["model"] = cfg.LLMModel
	}

	llmVal, err := buildPlugin("llm", "openai", llmCfg)
	if err != nil {
		return nil, err
	}
	sttVal, err := buildPlugin("stt", "openai", openaiCfg)
	if err != nil {
		return nil, err
	}
	ttsVal, err := buildPlugin("tts", "openai", openaiCfg)
	if err != nil {
		return nil, err
	}
	vadVal, err := buildPlugin("vad", "energy", nil)
	if err != nil {
		return nil, err
	}

	stack := &aiStack{}
	var ok bool
	if stack.llm, ok = llmVal.(llm.LLM); !ok {
		return nil, fmt.Errorf("llm plugin returned unexpected type %T", llmVal)
	}
	if stack.stt, ok = sttVal.(stt.STT); !ok {
		return nil, fmt.Errorf("stt plugin returned unexpected type %T", sttVal)
	}
	if stack.tts, ok = ttsVal.(tts.TTS); !ok {
		return nil, fmt.Errorf("tts plugin returned unexpected type %T", ttsVal)
	}
	if stack.vad, ok = vadVal.(vad.VAD); !ok {
		return nil, fmt.Errorf("vad plugin returned unexpected type %T", vadVal)
	}
	return stack, nil
}

func buildPlugin(kind, name string, cfg map[string]any) (any, error) {
	factory, ok := plugin.Get(kind, name)
	if !ok {
		return nil, fmt.Errorf("no %s plugin registered under %q", kind, name)
	}
	val, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s/%s: %w", kind, name, err)
	}
	return val, nil
}

// watchRoomEvents drains room activity. The agent serves exactly one
// conversation: once the last remote participant leaves there is
// nobody to listen to or notify, so the run context is cancelled.
func watchRoomEvents(ctx context.Context, cancel context.CancelFunc, room *job.Room) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-room.Events:
			if !ok {
				return
			}
			switch ev.Type {
			case job.EventParticipantDisconnected:
				if len(room.Participants()) == 0 {
					slog.Info("last participant left, ending session",
						slog.String("identity", ev.Participant.GetIdentity()))
					cancel()
				}
			case job.EventDataReceived:
				slog.Debug("room data received",
					slog.String("from", ev.Participant.GetIdentity()),
					slog.Int("bytes", len(ev.Data)))
			case job.EventRoomMetadataChanged:
				slog.Debug("room metadata changed", slog.String("metadata", ev.Metadata))
			case job.EventTrackSubscribed, job.EventTrackUnsubscribed, job.EventParticipantConnected:
				// Logged by the room wrapper.
			}
		}
	}
}

// pumpMicrophone forwards audio from each subscribed remote track into
// the session's mic channel, one track at a time.
func pumpMicrophone(ctx context.Context, room *job.Room, micIn chan<- rtc.AudioFrame) {
	defer close(micIn)

	for {
		select {
		case <-ctx.Done():
			return
		case track, ok := <-room.AudioTracks():
			if !ok {
				return
			}
			for frame := range rtc.ReadTrack(ctx, track) {
				select {
				case micIn <- frame:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// pumpPlayback moves synthesized frames to the published track.
func pumpPlayback(ctx context.Context, publisher *rtc.TrackPublisher, ttsOut <-chan rtc.AudioFrame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-ttsOut:
			if !ok {
				return
			}
			if err := publisher.WriteFrame(ctx, frame); err != nil {
				return
			}
		}
	}
}

// agentToken mints a room-join token for the agent identity.
func agentToken(cfg *config.Config, roomName string) (string, error) {
	at := auth.NewAccessToken(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.SetVideoGrant(grant).
		SetIdentity("voicetask-agent").
		SetValidFor(time.Hour)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("failed to mint room token: %w", err)
	}
	return token, nil
}
