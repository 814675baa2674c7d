package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sjawhar/ghost-rooms/internal/transcribe"
)

func TestEventSerialization(t *testing.T) {
	at := time.Unix(1, 0)
	events := []any{
		SubscribedEvent{Event: newEvent(EventSubscribed, at), Room: "1234", ConnectionID: "c1"},
		MessageInsertedEvent{Event: newEvent(EventMessageInserted, at), Room: "1234", Message: transcribe.Segment{ID: "1", Text: "hi", Author: "ana"}},
		MessageDeletedEvent{Event: newEvent(EventMessageDeleted, at), Room: "1234", ID: "1"},
		RoomClearedEvent{Event: newEvent(EventRoomCleared, at), Room: "1234", Count: 3},
		PresenceSyncEvent{Event: newEvent(EventPresenceSync, at), Room: "1234", Presences: map[string]Presence{"c1": {User: "ana"}}},
	}

	for _, event := range events {
		b, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var payload map[string]any
		if err := json.Unmarshal(b, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}

		if payload["type"] == nil {
			t.Fatalf("missing type in payload: %s", string(b))
		}
		if payload["version"] != float64(EventVersion) {
			t.Fatalf("unexpected version in payload: %s", string(b))
		}
		if payload["timestamp"] == nil {
			t.Fatalf("missing timestamp in payload: %s", string(b))
		}
		if payload["room"] != "1234" {
			t.Fatalf("missing room in payload: %s", string(b))
		}
	}
}

func TestDeletedEventOmitsEmptyID(t *testing.T) {
	b, err := json.Marshal(MessageDeletedEvent{Event: newEvent(EventMessageDeleted, time.Unix(1, 0)), Room: "r"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(b, &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := payload["id"]; ok {
		t.Fatalf("expected no id field, got %s", string(b))
	}
}
