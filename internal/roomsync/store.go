package roomsync

import (
	"context"
	"errors"

	"github.com/sjawhar/ghost-rooms/internal/transcribe"
)

var (
	ErrClosed   = errors.New("room sync closed")
	ErrNotFound = errors.New("message not found")
)

// Store is the handle to the room messages store. Implementations must be
// safe for concurrent use.
type Store interface {
	List(ctx context.Context, room string) ([]transcribe.Segment, error)
	Insert(ctx context.Context, room, author, text string) (transcribe.Segment, error)
	Delete(ctx context.Context, room, id string) error
	DeleteAll(ctx context.Context, room string) (int64, error)
	Subscribe(ctx context.Context, room string) (Subscription, error)
}

// Subscription is one push channel for a room. Events is closed when the
// channel ends.
type Subscription interface {
	Events() <-chan Event
	Track(ctx context.Context, p Presence) error
	Close() error
}

type Presence struct {
	User     string `json:"user"`
	OnlineAt string `json:"online_at"`
}

// Event is one push notification from a room subscription.
type Event interface {
	roomEvent()
}

// Ready reports that the subscription is live.
type Ready struct{}

// History is a full ordered listing of the room.
type History struct {
	Messages []transcribe.Segment
}

type Inserted struct {
	Message transcribe.Segment
}

// Deleted reports a removal. An empty ID means the store could not say which
// rows went and the room must be refetched.
type Deleted struct {
	ID string
}

// PresenceSync is the room's full presence state keyed by connection id.
type PresenceSync struct {
	Presences map[string]Presence
}

func (Ready) roomEvent()        {}
func (History) roomEvent()      {}
func (Inserted) roomEvent()     {}
func (Deleted) roomEvent()      {}
func (PresenceSync) roomEvent() {}
