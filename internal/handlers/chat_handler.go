package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"nia/internal/models"
	"nia/internal/service"
)

// maxMessageBytes bounds a chat message body
const maxMessageBytes = 16 << 10

// ChatHandler serves the chat page and its actions
type ChatHandler struct {
	chat       *service.ChatService
	sessions   *service.SessionService
	middleware *Middleware
	templates  *Templates
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *service.ChatService, sessions *service.SessionService, middleware *Middleware, templates *Templates) *ChatHandler {
	return &ChatHandler{
		chat:       chat,
		sessions:   sessions,
		middleware: middleware,
		templates:  templates,
	}
}

// ShowChat renders the transcript and sidebar
func (h *ChatHandler) ShowChat(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())

	data := NewChatViewData(session)
	data.CSRFToken = h.middleware.CSRFToken(r)
	data.Celebrations = parseCelebrations(r.URL.Query().Get("celebrate"))
	if h.chat.InFlight(session.ID) {
		data.Pending = true
	}

	if err := h.templates.ExecuteTemplate(w, "chat.tmpl", data); err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error rendering chat template", err)
		return
	}

	// A failure is shown once
	if data.Error != "" {
		if err := h.sessions.DismissError(r.Context(), session); err != nil {
			log.Printf("Error dismissing chat failure: %v", err)
		}
	}
}

type sendRequest struct {
	Message string `json:"message"`
}

// SendMessage relays one message to the tutoring service
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)

	var text string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, http.StatusBadRequest, ErrInvalidFormData)
			return
		}
		text = req.Message
	} else {
		if err := r.ParseForm(); err != nil {
			respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "Error parsing chat form", err)
			return
		}
		text = r.FormValue("message")
	}

	outcome, err := h.chat.Send(r.Context(), session, text)

	if wantsJSON(r) {
		if err != nil {
			respondJSON(w, statusFor(err), struct {
				Error string    `json:"error"`
				State ChatState `json:"state"`
			}{Error: service.UserMessage(err), State: newChatState(session)})
			return
		}
		respondJSON(w, http.StatusOK, SendResponse{
			Reply:           outcome.Reply,
			NewAchievements: nonNil(outcome.NewAchievements),
			Celebrations:    celebrationNames(outcome.Celebrations),
			State:           newChatState(session),
		})
		return
	}

	// Failures are stored on the session and shown by the chat page
	if err != nil {
		var fe *service.FlowError
		if !errors.As(err, &fe) && !errors.Is(err, service.ErrEmptyMessage) && !errors.Is(err, service.ErrRequestInFlight) {
			log.Printf("Error sending chat message: %v", err)
		}
		http.Redirect(w, r, "/chat", http.StatusSeeOther)
		return
	}

	target := "/chat"
	if names := celebrationNames(outcome.Celebrations); len(names) > 0 {
		target += "?" + url.Values{"celebrate": {strings.Join(names, ",")}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// State returns the chat page as JSON
func (h *ChatHandler) State(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	respondJSON(w, http.StatusOK, newChatState(session))
}

// NewConversation clears the transcript
func (h *ChatHandler) NewConversation(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if err := h.sessions.NewConversation(r.Context(), session); err != nil {
		if errors.Is(err, service.ErrRequestInFlight) {
			respondBusy(w, r)
			return
		}
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error starting new conversation", err)
		return
	}

	if wantsJSON(r) {
		respondJSON(w, http.StatusOK, newChatState(session))
		return
	}
	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// QuickTopic pre-fills the chat input with a question about a topic
func (h *ChatHandler) QuickTopic(w http.ResponseWriter, r *http.Request) {
	topic, ok := models.ParseTopic(r.PathValue("topic"))
	if !ok {
		respondWithError(w, http.StatusNotFound, ErrTopicNotFound, "", nil)
		return
	}

	session := GetSessionFromContext(r.Context())
	prompt, err := h.sessions.SetQuickTopic(r.Context(), session, topic)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error saving quick topic", err)
		return
	}

	if wantsJSON(r) {
		respondJSON(w, http.StatusOK, struct {
			Topic  string `json:"topic"`
			Prompt string `json:"prompt"`
		}{Topic: string(topic), Prompt: prompt})
		return
	}
	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// respondBusy answers an action that must wait for a pending reply
func respondBusy(w http.ResponseWriter, r *http.Request) {
	msg := service.UserMessage(service.ErrRequestInFlight)
	if wantsJSON(r) {
		respondJSONError(w, http.StatusConflict, msg)
		return
	}
	respondWithError(w, http.StatusConflict, msg, "", nil)
}

func celebrationNames(celebrations []models.Celebration) []string {
	names := make([]string, 0, len(celebrations))
	for _, c := range celebrations {
		names = append(names, string(c))
	}
	return names
}

// parseCelebrations keeps only known effects from a comma-separated list
func parseCelebrations(raw string) []string {
	var out []string
	for _, name := range strings.Split(raw, ",") {
		switch c := models.Celebration(strings.TrimSpace(name)); c {
		case models.CelebrateBalloons, models.CelebrateSnow:
			out = append(out, string(c))
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
