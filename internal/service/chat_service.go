package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"nia/internal/models"
	"nia/internal/tutor"
)

// FallbackReply is shown when the tutoring service answers without text
const FallbackReply = "Let me think about that differently..."

// ChatOutcome describes a successful exchange
type ChatOutcome struct {
	Reply           string
	NewAchievements []string
	Celebrations    []models.Celebration
}

// ChatService relays messages to the tutoring service and tracks progress
type ChatService struct {
	tutor    TutorClient
	sessions *SessionService
}

// NewChatService creates a new chat service
func NewChatService(tutorClient TutorClient, sessions *SessionService) *ChatService {
	return &ChatService{
		tutor:    tutorClient,
		sessions: sessions,
	}
}

// InFlight reports whether a reply is pending for the session
func (s *ChatService) InFlight(sessionID string) bool {
	return s.sessions.InFlight(sessionID)
}

// Send appends the student's message, asks the tutoring service for a reply
// and records progress. The user message is saved before the call is made and
// stays in the transcript when the call fails.
func (s *ChatService) Send(ctx context.Context, session *models.Session, text string) (*ChatOutcome, error) {
	if !session.HasIdentity() {
		return nil, ErrNoStudent
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	done, ok := s.sessions.beginReply(session.ID)
	if !ok {
		return nil, ErrRequestInFlight
	}
	defer done()

	session.AppendMessage(models.RoleUser, text)
	session.ChatStatus = models.ChatAwaitingReply
	session.LastError = ""
	session.QuickTopic = ""
	if err := s.sessions.Save(ctx, session, EventMessage); err != nil {
		return nil, err
	}

	resp, err := s.tutor.Chat(ctx, session.StudentID, text)

	// The browser may be gone; the outcome is still recorded.
	saveCtx := context.WithoutCancel(ctx)

	if err != nil {
		flowErr := chatError(err)
		log.Printf("Chat failed for student %s: %v", session.StudentID, err)

		session.ChatStatus = models.ChatFailed
		session.LastError = flowErr.Message
		if saveErr := s.sessions.Save(saveCtx, session, EventFailed); saveErr != nil {
			log.Printf("Warning: failed to save failed chat state: %v", saveErr)
		}
		return nil, flowErr
	}

	reply := FallbackReply
	if resp.Response != nil && strings.TrimSpace(*resp.Response) != "" {
		reply = *resp.Response
	}

	session.AppendMessage(models.RoleAssistant, reply)
	unlocked := recordExchange(session, text)
	session.ChatStatus = models.ChatRendered
	if err := s.sessions.Save(saveCtx, session, EventReply); err != nil {
		return nil, err
	}

	outcome := &ChatOutcome{Reply: reply, NewAchievements: unlocked}
	for _, a := range unlocked {
		log.Printf("Student %s unlocked %q", session.StudentID, a)
		if c := models.CelebrationFor(a); c != "" {
			outcome.Celebrations = append(outcome.Celebrations, c)
		}
	}
	return outcome, nil
}

func chatError(err error) *FlowError {
	var statusErr *tutor.StatusError
	if errors.As(err, &statusErr) {
		return &FlowError{Message: msgChatRemoteFailure, Err: err}
	}
	return &FlowError{Message: msgChatTransportFailure, Err: err}
}
