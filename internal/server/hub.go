package server

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/ghost-rooms/internal/transcribe"
)

// Subscription is one websocket connection's view of a room.
type Subscription struct {
	ID   string
	Room string
	C    chan []byte

	presence *Presence
}

// Hub fans room events out to subscribed connections and tracks presence.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscription]struct{}
	now   func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Subscription]struct{}),
		now:   time.Now,
	}
}

// Subscribe registers a connection in a room. The current presence state is
// queued on the new subscription so late joiners see who is already there.
func (h *Hub) Subscribe(room string) *Subscription {
	sub := &Subscription{
		ID:   uuid.NewString(),
		Room: room,
		C:    make(chan []byte, 64),
	}

	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Subscription]struct{})
		h.rooms[room] = members
	}
	members[sub] = struct{}{}
	payload, err := json.Marshal(h.presenceEventLocked(room))
	h.mu.Unlock()

	if err == nil {
		sub.C <- payload
	}
	return sub
}

// Unsubscribe removes the connection and closes its channel. If it had
// announced presence the remaining members get a fresh presence sync.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	members := h.rooms[sub.Room]
	if _, ok := members[sub]; !ok {
		h.mu.Unlock()
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.rooms, sub.Room)
	}
	close(sub.C)
	tracked := sub.presence != nil
	h.mu.Unlock()

	if tracked {
		h.broadcastPresence(sub.Room)
	}
}

// Track records a connection's presence and broadcasts the room's presence set.
func (h *Hub) Track(sub *Subscription, p Presence) {
	p.User = strings.TrimSpace(p.User)
	if p.User == "" {
		return
	}
	if p.OnlineAt == "" {
		p.OnlineAt = h.now().UTC().Format(time.RFC3339Nano)
	}

	h.mu.Lock()
	if _, ok := h.rooms[sub.Room][sub]; !ok {
		h.mu.Unlock()
		return
	}
	sub.presence = &p
	h.mu.Unlock()

	h.broadcastPresence(sub.Room)
}

func (h *Hub) Untrack(sub *Subscription) {
	h.mu.Lock()
	if sub.presence == nil {
		h.mu.Unlock()
		return
	}
	sub.presence = nil
	h.mu.Unlock()

	h.broadcastPresence(sub.Room)
}

// Presences returns the room's presence set keyed by connection id.
func (h *Hub) Presences(room string) map[string]Presence {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.presencesLocked(room)
}

// Stats reports the number of rooms with live connections and the number of connections.
func (h *Hub) Stats() (rooms, connections int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, members := range h.rooms {
		connections += len(members)
	}
	return len(h.rooms), connections
}

func (h *Hub) Broadcast(room string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[room] {
		select {
		case sub.C <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastInserted(room string, seg transcribe.Segment) {
	h.broadcastEvent(room, MessageInsertedEvent{
		Event:   newEvent(EventMessageInserted, h.now()),
		Room:    room,
		Message: seg,
	})
}

func (h *Hub) BroadcastDeleted(room, id string) {
	h.broadcastEvent(room, MessageDeletedEvent{
		Event: newEvent(EventMessageDeleted, h.now()),
		Room:  room,
		ID:    id,
	})
}

func (h *Hub) BroadcastCleared(room string, count int64) {
	h.broadcastEvent(room, RoomClearedEvent{
		Event: newEvent(EventRoomCleared, h.now()),
		Room:  room,
		Count: count,
	})
}

func (h *Hub) broadcastPresence(room string) {
	h.mu.RLock()
	event := h.presenceEventLocked(room)
	h.mu.RUnlock()
	h.broadcastEvent(room, event)
}

func (h *Hub) presenceEventLocked(room string) PresenceSyncEvent {
	return PresenceSyncEvent{
		Event:     newEvent(EventPresenceSync, h.now()),
		Room:      room,
		Presences: h.presencesLocked(room),
	}
}

func (h *Hub) presencesLocked(room string) map[string]Presence {
	out := make(map[string]Presence)
	for sub := range h.rooms[room] {
		if sub.presence != nil {
			out[sub.ID] = *sub.presence
		}
	}
	return out
}

func (h *Hub) broadcastEvent(room string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(room, payload)
}
