package job

import (
	"time"

	"github.com/livekit/protocol/livekit"
)

// EventType identifies a kind of room activity.
type EventType string

const (
	EventParticipantConnected    EventType = "participant_connected"
	EventParticipantDisconnected EventType = "participant_disconnected"
	EventTrackSubscribed         EventType = "track_subscribed"
	EventTrackUnsubscribed       EventType = "track_unsubscribed"
	EventDataReceived            EventType = "data_received"
	EventRoomMetadataChanged     EventType = "room_metadata_changed"
)

// Event is one piece of room activity, delivered on Room.Events. Only
// the fields relevant to the event's type are populated; Timestamp is
// stamped at send time.
type Event struct {
	Type        EventType
	Timestamp   time.Time
	Participant *livekit.ParticipantInfo
	Track       *livekit.TrackInfo
	Data        []byte
	Metadata    string
}
