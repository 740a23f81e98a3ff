package service

import (
	"sync"
	"time"

	"nia/internal/models"
)

// Event kinds published when a session changes
const (
	EventIdentity     = "identity"
	EventMessage      = "message"
	EventReply        = "reply"
	EventFailed       = "failed"
	EventConversation = "conversation"
	EventQuickTopic   = "quick_topic"
)

// subscriberBuffer bounds how far a subscriber may fall behind before events are dropped
const subscriberBuffer = 8

// SessionEvent notifies subscribers that a session was saved
type SessionEvent struct {
	SessionID  string            `json:"session_id"`
	Kind       string            `json:"kind"`
	ChatStatus models.ChatStatus `json:"chat_status"`
	At         time.Time         `json:"at"`
}

// Hub fans session events out to subscribers of that session
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan SessionEvent]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan SessionEvent]struct{})}
}

// Subscribe registers for events of one session. The returned function
// unsubscribes and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(sessionID string) (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan SessionEvent]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers an event without blocking. Subscribers with a full buffer miss it.
func (h *Hub) Publish(event SessionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[event.SessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers returns the number of subscribers for a session
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
