package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
)

// Room wraps the LiveKit room connection and surfaces room activity as
// a single event channel the entrypoint can select on.
type Room struct {
	// Events channel for room events
	Events chan *Event

	room   *lksdk.Room
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	connected    bool
	eventsClosed bool
	participants map[string]*livekit.ParticipantInfo

	// Subscribed remote audio tracks, forwarded for STT ingestion.
	audioTracks chan *webrtc.TrackRemote
}

// RoomConfig contains configuration for connecting to a room.
type RoomConfig struct {
	// URL of the LiveKit server
	URL string

	// Token for authentication
	Token string

	// Room name to join
	RoomName string

	// Buffer size for events channel
	EventBufferSize int
}

// NewRoom creates a new Room wrapper with the given configuration.
func NewRoom(ctx context.Context, config RoomConfig) (*Room, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if config.RoomName == "" {
		return nil, fmt.Errorf("room name is required")
	}

	bufferSize := config.EventBufferSize
	if bufferSize == 0 {
		bufferSize = 100
	}

	roomCtx, cancel := context.WithCancel(ctx)

	return &Room{
		Events:       make(chan *Event, bufferSize),
		ctx:          roomCtx,
		cancel:       cancel,
		participants: make(map[string]*livekit.ParticipantInfo),
		audioTracks:  make(chan *webrtc.TrackRemote, 4),
	}, nil
}

// Connect establishes the connection to the LiveKit room.
func (r *Room) Connect(config RoomConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connected {
		return fmt.Errorf("room is already connected")
	}

	callback := &lksdk.RoomCallback{
		OnParticipantConnected:    r.onParticipantConnected,
		OnParticipantDisconnected: r.onParticipantDisconnected,
		OnRoomMetadataChanged:     r.onRoomMetadataChanged,
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed:   r.onTrackSubscribed,
			OnTrackUnsubscribed: r.onTrackUnsubscribed,
			OnDataReceived:      r.onDataReceived,
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(config.URL, config.Token, callback)
	if err != nil {
		return fmt.Errorf("failed to connect to room: %w", err)
	}

	r.room = room
	r.connected = true

	slog.Info("connected to LiveKit room",
		slog.String("room_name", config.RoomName),
		slog.String("url", config.URL))

	return nil
}

// Disconnect closes the room connection and cleans up resources.
func (r *Room) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancel()

	if r.connected {
		r.connected = false
		if r.room != nil {
			r.room.Disconnect()
		}
		slog.Info("disconnected from LiveKit room")
	}

	if !r.eventsClosed {
		close(r.Events)
		r.eventsClosed = true
	}

	return nil
}

// IsConnected returns true if the room is currently connected.
func (r *Room) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// LKRoom exposes the underlying SDK room for track publication.
func (r *Room) LKRoom() *lksdk.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.room
}

// LocalParticipant returns the local participant.
func (r *Room) LocalParticipant() *lksdk.LocalParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.room == nil {
		return nil
	}
	return r.room.LocalParticipant
}

// AudioTracks delivers each subscribed remote audio track once, in
// subscription order. The session reads microphone audio from these.
func (r *Room) AudioTracks() <-chan *webrtc.TrackRemote {
	return r.audioTracks
}

// Participants returns a copy of all participants in the room.
func (r *Room) Participants() map[string]*livekit.ParticipantInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*livekit.ParticipantInfo)
	for k, v := range r.participants {
		result[k] = v
	}
	return result
}

func (r *Room) onParticipantConnected(participant *lksdk.RemoteParticipant) {
	participantInfo := &livekit.ParticipantInfo{
		Sid:      participant.SID(),
		Identity: participant.Identity(),
		State:    livekit.ParticipantInfo_ACTIVE,
	}

	r.mu.Lock()
	r.participants[participant.Identity()] = participantInfo
	r.mu.Unlock()

	r.sendEvent(&Event{Type: EventParticipantConnected, Participant: participantInfo})

	slog.Info("participant connected",
		slog.String("identity", participant.Identity()),
		slog.String("sid", participant.SID()))
}

func (r *Room) onParticipantDisconnected(participant *lksdk.RemoteParticipant) {
	participantInfo := &livekit.ParticipantInfo{
		Sid:      participant.SID(),
		Identity: participant.Identity(),
		State:    livekit.ParticipantInfo_DISCONNECTED,
	}

	r.mu.Lock()
	delete(r.participants, participant.Identity())
	r.mu.Unlock()

	r.sendEvent(&Event{Type: EventParticipantDisconnected, Participant: participantInfo})

	slog.Info("participant disconnected",
		slog.String("identity", participant.Identity()))
}

func (r *Room) onTrackSubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	trackInfo := &livekit.TrackInfo{
		Sid:  publication.SID(),
		Name: publication.Name(),
		Type: publication.Kind().ProtoType(),
	}

	r.sendEvent(&Event{
		Type: EventTrackSubscribed,
		Participant: &livekit.ParticipantInfo{
			Sid:      participant.SID(),
			Identity: participant.Identity(),
			State:    livekit.ParticipantInfo_ACTIVE,
		},
		Track: trackInfo,
	})

	if publication.Kind() == lksdk.TrackKindAudio {
		select {
		case r.audioTracks <- track:
		default:
			slog.Warn("audio track channel full, dropping track",
				slog.String("track_sid", publication.SID()))
		}
	}

	slog.Info("track subscribed",
		slog.String("participant", participant.Identity()),
		slog.String("track_sid", publication.SID()),
		slog.String("track_type", publication.Kind().String()))
}

func (r *Room) onTrackUnsubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	trackInfo := &livekit.TrackInfo{
		Sid:  publication.SID(),
		Name: publication.Name(),
		Type: publication.Kind().ProtoType(),
	}

	r.sendEvent(&Event{
		Type: EventTrackUnsubscribed,
		Participant: &livekit.ParticipantInfo{
			Sid:      participant.SID(),
			Identity: participant.Identity(),
			State:    livekit.ParticipantInfo_ACTIVE,
		},
		Track: trackInfo,
	})
}

func (r *Room) onDataReceived(data []byte, params lksdk.DataReceiveParams) {
	participantInfo := &livekit.ParticipantInfo{}
	if params.Sender != nil {
		participantInfo.Sid = params.Sender.SID()
		participantInfo.Identity = params.Sender.Identity()
		participantInfo.State = livekit.ParticipantInfo_ACTIVE
	}

	r.sendEvent(&Event{
		Type:        EventDataReceived,
		Participant: participantInfo,
		Data:        data,
	})
}

func (r *Room) onRoomMetadataChanged(metadata string) {
	r.sendEvent(&Event{Type: EventRoomMetadataChanged, Metadata: metadata})
}

// sendEvent stamps and delivers an event, dropping it if the consumer
// has fallen a full buffer behind.
func (r *Room) sendEvent(event *Event) {
	r.mu.RLock()
	closed := r.eventsClosed
	r.mu.RUnlock()

	if closed {
		return
	}

	event.Timestamp = time.Now()

	select {
	case r.Events <- event:
	case <-r.ctx.Done():
	default:
		slog.Warn("events channel is full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}
