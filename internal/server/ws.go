package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func registerWSRoute(mux *http.ServeMux, hub *Hub) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		room := r.URL.Query().Get("room")
		if !validRoomID(room) {
			writeJSONError(w, http.StatusBadRequest, "room query parameter is required")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		sub := hub.Subscribe(room)
		defer hub.Unsubscribe(sub)

		subscribed := SubscribedEvent{
			Event:        newEvent(EventSubscribed, time.Now().UTC()),
			Room:         room,
			ConnectionID: sub.ID,
		}
		payload, err := json.Marshal(subscribed)
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}

		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				var msg ClientMessage
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				switch msg.Type {
				case ClientTrack:
					hub.Track(sub, Presence{User: msg.User, OnlineAt: msg.OnlineAt})
				case ClientUntrack:
					hub.Untrack(sub)
				default:
					log.Printf("ws room %s: ignoring client message %q", room, msg.Type)
				}
			}
		}()

		for {
			select {
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-readDone:
				return
			}
		}
	})
}
