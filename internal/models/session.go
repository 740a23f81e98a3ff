package models

import (
	"slices"
	"time"
)

// Role identifies who wrote a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatStatus tracks where the most recent chat exchange stands
type ChatStatus string

const (
	ChatIdle          ChatStatus = "idle"
	ChatAwaitingReply ChatStatus = "awaiting_reply"
	ChatRendered      ChatStatus = "rendered"
	ChatFailed        ChatStatus = "failed"
)

// GenericStudentName is shown for students who logged in with an ID only
const GenericStudentName = "Student"

// Message is a single entry in the chat transcript
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}

// Session holds everything one browser knows about its tutoring session
type Session struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id,omitempty"`
	StudentName    string     `json:"student_name,omitempty"`
	Messages       []Message  `json:"messages"`
	QuestionsAsked int        `json:"questions_asked"`
	TopicsExplored []Topic    `json:"topics_explored"`
	Achievements   []string   `json:"achievements"`
	QuickTopic     Topic      `json:"quick_topic,omitempty"`
	ChatStatus     ChatStatus `json:"chat_status"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
}

// NewSession creates an empty session that expires after ttl
func NewSession(id string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		Messages:       []Message{},
		TopicsExplored: []Topic{},
		Achievements:   []string{},
		ChatStatus:     ChatIdle,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// HasIdentity reports whether a student is logged in. Chat requires it.
func (s *Session) HasIdentity() bool {
	return s.StudentID != "" && s.StudentName != ""
}

// SetIdentity stores the student identity. Both parts are set together.
func (s *Session) SetIdentity(studentID, studentName string) {
	if studentID == "" || studentName == "" {
		return
	}
	s.StudentID = studentID
	s.StudentName = studentName
}

// ClearIdentity logs the student out of this session
func (s *Session) ClearIdentity() {
	s.StudentID = ""
	s.StudentName = ""
}

// AppendMessage adds a message to the end of the transcript
func (s *Session) AppendMessage(role Role, content string) Message {
	msg := Message{Role: role, Content: content, SentAt: time.Now()}
	s.Messages = append(s.Messages, msg)
	return msg
}

// ClearMessages empties the transcript and resets the chat status
func (s *Session) ClearMessages() {
	s.Messages = []Message{}
	s.ChatStatus = ChatIdle
	s.LastError = ""
}

// AddTopic marks a topic as explored. Returns false if it already was.
func (s *Session) AddTopic(topic Topic) bool {
	if !topic.Valid() || s.HasTopic(topic) {
		return false
	}
	s.TopicsExplored = append(s.TopicsExplored, topic)
	slices.SortFunc(s.TopicsExplored, func(a, b Topic) int {
		return a.order() - b.order()
	})
	return true
}

// HasTopic reports whether a topic has been explored
func (s *Session) HasTopic(topic Topic) bool {
	return slices.Contains(s.TopicsExplored, topic)
}

// Unlock appends an achievement once. Returns false if it was already unlocked.
func (s *Session) Unlock(achievement string) bool {
	if achievement == "" || s.HasAchievement(achievement) {
		return false
	}
	s.Achievements = append(s.Achievements, achievement)
	return true
}

// HasAchievement reports whether an achievement is unlocked
func (s *Session) HasAchievement(achievement string) bool {
	return slices.Contains(s.Achievements, achievement)
}

// ResetProgress clears the gamification counters
func (s *Session) ResetProgress() {
	s.QuestionsAsked = 0
	s.TopicsExplored = []Topic{}
	s.Achievements = []string{}
}

// Normalize restores empty collections after decoding so the session never
// carries nil slices into templates or JSON.
func (s *Session) Normalize() {
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if s.TopicsExplored == nil {
		s.TopicsExplored = []Topic{}
	}
	if s.Achievements == nil {
		s.Achievements = []string{}
	}
	if s.ChatStatus == "" {
		s.ChatStatus = ChatIdle
	}
	if s.StudentID == "" || s.StudentName == "" {
		s.ClearIdentity()
	}
}
