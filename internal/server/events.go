package server

import (
	"time"

	"github.com/sjawhar/ghost-rooms/internal/transcribe"
)

const EventVersion = 1

const (
	EventSubscribed      = "subscribed"
	EventMessageInserted = "message_inserted"
	EventMessageDeleted  = "message_deleted"
	EventRoomCleared     = "room_cleared"
	EventPresenceSync    = "presence_sync"
)

// Client-to-server message types on /ws.
const (
	ClientTrack   = "track"
	ClientUntrack = "untrack"
)

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

// Presence is the payload a connection announces with a track message.
type Presence struct {
	User     string `json:"user"`
	OnlineAt string `json:"online_at"`
}

type SubscribedEvent struct {
	Event
	Room         string `json:"room"`
	ConnectionID string `json:"connection_id"`
}

type MessageInsertedEvent struct {
	Event
	Room    string             `json:"room"`
	Message transcribe.Segment `json:"message"`
}

// MessageDeletedEvent carries the id of the removed row. Consumers that see an
// empty id must refetch the room.
type MessageDeletedEvent struct {
	Event
	Room string `json:"room"`
	ID   string `json:"id,omitempty"`
}

type RoomClearedEvent struct {
	Event
	Room  string `json:"room"`
	Count int64  `json:"count"`
}

// PresenceSyncEvent is the full presence state of a room keyed by connection id.
type PresenceSyncEvent struct {
	Event
	Room      string              `json:"room"`
	Presences map[string]Presence `json:"presences"`
}

// ClientMessage is what a websocket client sends to the server.
type ClientMessage struct {
	Type     string `json:"type"`
	User     string `json:"user,omitempty"`
	OnlineAt string `json:"online_at,omitempty"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
