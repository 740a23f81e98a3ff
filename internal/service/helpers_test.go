package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nia/internal/models"
	"nia/internal/repository"
	"nia/internal/tutor"
)

// fakeTutor records requests and answers with canned results
type fakeTutor struct {
	mu sync.Mutex

	createResp *tutor.CreateStudentResponse
	createErr  error
	chatReply  *string
	chatErr    error
	greetErr   error

	// block, when set, holds Chat until it is closed
	block chan struct{}
	// entered is signalled when Chat starts
	entered chan struct{}

	profiles []models.StudentProfile
	messages []string
	greeted  []string
}

func (f *fakeTutor) CreateStudent(ctx context.Context, profile models.StudentProfile) (*tutor.CreateStudentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = append(f.profiles, profile)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResp, nil
}

func (f *fakeTutor) Chat(ctx context.Context, studentID, message string) (*tutor.ChatResponse, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &tutor.ChatResponse{Response: f.chatReply}, nil
}

func (f *fakeTutor) Greet(ctx context.Context, studentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.greeted = append(f.greeted, studentID)
	return f.greetErr
}

func (f *fakeTutor) chatCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func strPtr(s string) *string { return &s }

type fixture struct {
	repo     *repository.MemorySessionRepository
	hub      *Hub
	sessions *SessionService
	identity *IdentityService
	chat     *ChatService
	tutor    *fakeTutor
}

func newFixture(t *testing.T, scope string) *fixture {
	t.Helper()

	repo := repository.NewMemorySessionRepository()
	hub := NewHub()
	sessions := NewSessionService(repo, hub, time.Hour, scope)
	ft := &fakeTutor{chatReply: strPtr("Great question!")}

	return &fixture{
		repo:     repo,
		hub:      hub,
		sessions: sessions,
		identity: NewIdentityService(ft, sessions, nil),
		chat:     NewChatService(ft, sessions),
		tutor:    ft,
	}
}

// loggedIn returns a saved session for student_1_abc / Mia
func (f *fixture) loggedIn(t *testing.T) *models.Session {
	t.Helper()

	session, created, err := f.sessions.Load(context.Background(), "")
	require.NoError(t, err)
	require.True(t, created)
	session.SetIdentity("student_1_abc", "Mia")
	require.NoError(t, f.sessions.Save(context.Background(), session, EventIdentity))
	return session
}

func (f *fixture) stored(t *testing.T, id string) *models.Session {
	t.Helper()

	session, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, session)
	return session
}
