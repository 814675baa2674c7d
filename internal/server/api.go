package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sjawhar/ghost-rooms/internal/storage"
	"github.com/sjawhar/ghost-rooms/internal/transcribe"
)

const maxRoomIDLength = 128

type MessageStore interface {
	InsertMessage(roomID, author, text string) (transcribe.Segment, error)
	ListMessages(roomID string) ([]transcribe.Segment, error)
	DeleteMessage(roomID, id string) error
	DeleteRoomMessages(roomID string) (int64, error)
	ListRooms() ([]storage.Room, error)
}

type createMessageRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

func registerAPIRoutes(mux *http.ServeMux, hub *Hub, store MessageStore, hooks Hooks) {
	mux.HandleFunc("GET /api/rooms", func(w http.ResponseWriter, r *http.Request) {
		rooms, err := store.ListRooms()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list rooms: %v", err))
			return
		}
		if rooms == nil {
			rooms = []storage.Room{}
		}
		writeJSON(w, http.StatusOK, rooms)
	})

	mux.HandleFunc("GET /api/rooms/{room}/messages", func(w http.ResponseWriter, r *http.Request) {
		room := r.PathValue("room")
		if !validRoomID(room) {
			writeJSONError(w, http.StatusBadRequest, "invalid room id")
			return
		}

		messages, err := store.ListMessages(room)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list messages: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, messages)
	})

	mux.HandleFunc("POST /api/rooms/{room}/messages", func(w http.ResponseWriter, r *http.Request) {
		room := r.PathValue("room")
		if !validRoomID(room) {
			writeJSONError(w, http.StatusBadRequest, "invalid room id")
			return
		}

		var req createMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeJSONError(w, http.StatusBadRequest, "text is required")
			return
		}
		if strings.TrimSpace(req.Author) == "" {
			writeJSONError(w, http.StatusBadRequest, "author is required")
			return
		}

		seg, err := store.InsertMessage(room, req.Author, req.Text)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("insert message: %v", err))
			return
		}

		hub.BroadcastInserted(room, seg)
		writeJSON(w, http.StatusCreated, seg)
	})

	mux.HandleFunc("DELETE /api/rooms/{room}/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		room := r.PathValue("room")
		if !validRoomID(room) {
			writeJSONError(w, http.StatusBadRequest, "invalid room id")
			return
		}
		id := r.PathValue("id")

		if err := store.DeleteMessage(room, id); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, storage.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("delete message: %v", err))
			return
		}

		hub.BroadcastDeleted(room, id)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE /api/rooms/{room}/messages", func(w http.ResponseWriter, r *http.Request) {
		room := r.PathValue("room")
		if !validRoomID(room) {
			writeJSONError(w, http.StatusBadRequest, "invalid room id")
			return
		}

		n, err := store.DeleteRoomMessages(room)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("clear room: %v", err))
			return
		}

		hub.BroadcastCleared(room, n)
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		rooms, connections := hub.Stats()
		var warnings []string
		if hooks.Warnings != nil {
			warnings = hooks.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"rooms":       rooms,
			"connections": connections,
			"warnings":    warnings,
		})
	})
}

func validRoomID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && len(id) <= maxRoomIDLength
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
