package roomclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/ghost-rooms/internal/roomsync"
	"github.com/sjawhar/ghost-rooms/internal/server"
)

type subscription struct {
	conn   *websocket.Conn
	events chan roomsync.Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Subscribe opens the room's websocket feed and translates server events into
// room sync events.
func (c *Client) Subscribe(ctx context.Context, room string) (roomsync.Subscription, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.base.Path + "/ws"
	u.RawPath = ""
	u.RawQuery = url.Values{"room": {room}}.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial room feed: %w", err)
	}

	sub := &subscription{
		conn:   conn,
		events: make(chan roomsync.Event, 64),
		done:   make(chan struct{}),
	}
	go sub.read()
	return sub, nil
}

func (s *subscription) Events() <-chan roomsync.Event {
	return s.events
}

func (s *subscription) Track(ctx context.Context, p roomsync.Presence) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	}
	return s.conn.WriteJSON(server.ClientMessage{
		Type:     server.ClientTrack,
		User:     p.User,
		OnlineAt: p.OnlineAt,
	})
}

func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteJSON(server.ClientMessage{Type: server.ClientUntrack})
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *subscription) read() {
	defer close(s.events)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		ev, ok := decodeEvent(raw)
		if !ok {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func decodeEvent(raw []byte) (roomsync.Event, bool) {
	var envelope server.Event
	if err := json.Unmarshal(raw, &envelope); err != nil {
		slog.Warn("undecodable room event", "error", err)
		return nil, false
	}

	switch envelope.Type {
	case server.EventSubscribed:
		return roomsync.Ready{}, true
	case server.EventMessageInserted:
		var e server.MessageInsertedEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, false
		}
		return roomsync.Inserted{Message: e.Message}, true
	case server.EventMessageDeleted:
		var e server.MessageDeletedEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return roomsync.Deleted{}, true
		}
		return roomsync.Deleted{ID: e.ID}, true
	case server.EventRoomCleared:
		return roomsync.Deleted{}, true
	case server.EventPresenceSync:
		var e server.PresenceSyncEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, false
		}
		presences := make(map[string]roomsync.Presence, len(e.Presences))
		for id, p := range e.Presences {
			presences[id] = roomsync.Presence{User: p.User, OnlineAt: p.OnlineAt}
		}
		return roomsync.PresenceSync{Presences: presences}, true
	default:
		return nil, false
	}
}
