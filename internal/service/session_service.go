package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"nia/internal/config"
	"nia/internal/models"
	"nia/internal/repository"
	"nia/internal/security"
)

// quickTopicPrompt pre-fills the chat input after a quick-topic click
const quickTopicPrompt = "Tell me something fun about %s!"

// SessionService loads, saves and resets sessions, publishing every change
type SessionService struct {
	repo       repository.SessionRepository
	hub        *Hub
	ttl        time.Duration
	resetScope string

	// inFlight holds the IDs of sessions waiting for a reply
	inFlight sync.Map
}

// NewSessionService creates a new session service
func NewSessionService(repo repository.SessionRepository, hub *Hub, ttl time.Duration, resetScope string) *SessionService {
	if resetScope != config.ResetScopeStudent {
		resetScope = config.ResetScopeSession
	}
	return &SessionService{
		repo:       repo,
		hub:        hub,
		ttl:        ttl,
		resetScope: resetScope,
	}
}

// Load returns the stored session for id, or a new unsaved session when it
// is missing or expired. created reports whether a new session was made.
func (s *SessionService) Load(ctx context.Context, id string) (session *models.Session, created bool, err error) {
	if id != "" {
		session, err = s.repo.Get(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load session: %w", err)
		}
		if session != nil && !session.IsExpired() {
			s.settleStaleReply(session)
			return session, false, nil
		}
	}

	return models.NewSession(security.GenerateSessionID(), s.ttl), true, nil
}

// settleStaleReply marks a stored awaiting_reply status as failed when no
// request is waiting on it, for example after a failed save or a restart.
func (s *SessionService) settleStaleReply(session *models.Session) {
	if session.ChatStatus != models.ChatAwaitingReply || s.InFlight(session.ID) {
		return
	}
	session.ChatStatus = models.ChatFailed
	session.LastError = msgChatTransportFailure
}

// InFlight reports whether a reply is pending for the session
func (s *SessionService) InFlight(sessionID string) bool {
	_, ok := s.inFlight.Load(sessionID)
	return ok
}

// beginReply marks a reply as pending. ok is false when one already is.
func (s *SessionService) beginReply(sessionID string) (done func(), ok bool) {
	if _, busy := s.inFlight.LoadOrStore(sessionID, struct{}{}); busy {
		return nil, false
	}
	return func() { s.inFlight.Delete(sessionID) }, true
}

// Save persists the session and notifies subscribers
func (s *SessionService) Save(ctx context.Context, session *models.Session, kind string) error {
	session.UpdatedAt = time.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.hub.Publish(SessionEvent{
		SessionID:  session.ID,
		Kind:       kind,
		ChatStatus: session.ChatStatus,
		At:         session.UpdatedAt,
	})
	return nil
}

// NewConversation clears the transcript and keeps identity and progress
func (s *SessionService) NewConversation(ctx context.Context, session *models.Session) error {
	if s.InFlight(session.ID) {
		return ErrRequestInFlight
	}
	session.ClearMessages()
	session.QuickTopic = ""
	return s.Save(ctx, session, EventConversation)
}

// SwitchStudent logs the student out and clears the transcript. Progress is
// cleared too when resets are scoped to the student. A pending reply would
// restore the old student when it lands, so switching waits for it.
func (s *SessionService) SwitchStudent(ctx context.Context, session *models.Session) error {
	if s.InFlight(session.ID) {
		return ErrRequestInFlight
	}
	session.ClearIdentity()
	session.ClearMessages()
	session.QuickTopic = ""
	if s.resetScope == config.ResetScopeStudent {
		session.ResetProgress()
	}
	return s.Save(ctx, session, EventIdentity)
}

// DismissError clears a failure once it has been shown. Subscribers are not
// notified so an open chat page does not reload over the message.
func (s *SessionService) DismissError(ctx context.Context, session *models.Session) error {
	if session.ChatStatus != models.ChatFailed {
		return nil
	}
	session.ChatStatus = models.ChatRendered
	if len(session.Messages) == 0 {
		session.ChatStatus = models.ChatIdle
	}
	session.LastError = ""
	session.UpdatedAt = time.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// SetQuickTopic records the chosen topic and returns the prompt for the chat input
func (s *SessionService) SetQuickTopic(ctx context.Context, session *models.Session, topic models.Topic) (string, error) {
	if !topic.Valid() {
		return "", fmt.Errorf("unknown topic %q", topic)
	}
	session.QuickTopic = topic
	if err := s.Save(ctx, session, EventQuickTopic); err != nil {
		return "", err
	}
	return QuickTopicPrompt(topic), nil
}

// QuickTopicPrompt returns the suggested question for a topic
func QuickTopicPrompt(topic models.Topic) string {
	return fmt.Sprintf(quickTopicPrompt, topic)
}

// CleanupExpiredSessions removes expired sessions from the store
func (s *SessionService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	removed, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	if removed > 0 {
		log.Printf("Cleaned up %d expired sessions", removed)
	}
	return removed, nil
}
