package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"nia/internal/service"
)

const eventWriteTimeout = 5 * time.Second

// EventsHandler streams session change notifications over a WebSocket
type EventsHandler struct {
	hub     *service.Hub
	devMode bool
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *service.Hub, devMode bool) *EventsHandler {
	return &EventsHandler{hub: hub, devMode: devMode}
}

// ServeHTTP upgrades the request and forwards every event for the caller's session
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.devMode,
	})
	if err != nil {
		log.Printf("Failed to accept websocket: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events, unsubscribe := h.hub.Subscribe(session.ID)
	defer unsubscribe()

	// Clients never send anything; CloseRead handles pings and notices the close.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(ctx, conn, event); err != nil {
				log.Printf("Error writing session event: %v", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event service.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
