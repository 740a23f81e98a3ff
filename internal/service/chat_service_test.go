package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nia/internal/config"
	"nia/internal/models"
	"nia/internal/repository"
	"nia/internal/tutor"
)

func TestSendSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.ResetScopeSession)
	session := f.loggedIn(t)

	outcome, err := f.chat.Send(ctx, session, "Can you help me with math?")
	require.NoError(t, err)

	assert.Equal(t, "Great question!", outcome.Reply)
	assert.Empty(t, outcome.NewAchievements)

	stored := f.stored(t, session.ID)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, models.RoleUser, stored.Messages[0].Role)
	assert.Equal(t, "Can you help me with math?", stored.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, stored.Messages[1].Role)
	assert.Equal(t, "Great question!", stored.Messages[1].Content)
	assert.Equal(t, 1, stored.QuestionsAsked)
	assert.Equal(t, []models.Topic{models.TopicMath}, stored.TopicsExplored)
	assert.Equal(t, models.ChatRendered, stored.ChatStatus)
}

func TestSendWithoutTopic(t *testing.T) {
	f := newFixture(t, config.ResetScopeSession)
	session := f.loggedIn(t)

	_, err := f.chat.Send(context.Background(), session, "What is 2+2?")
	require.NoError(t, err)

	assert.Equal(t, 1, session.QuestionsAsked)
	assert.Empty(t, session.TopicsExplored)
}

func TestSendFallbackReply(t *testing.T) {
	tests := []struct {
		name  string
		reply *string
	}{
		{name: "missing response", reply: nil},
		{name: "empty response", reply: strPtr("  ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.ResetScopeSession)
			f.tutor.chatReply = tt.reply
			session := f.loggedIn(t)

			outcome, err := f.chat.Send(context.Background(), session, "hello")
			require.NoError(t, err)
			assert.Equal(t, FallbackReply, outcome.Reply)
			assert.Equal(t, 1, session.QuestionsAsked)
		})
	}
}

func TestSendFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{
			name:    "remote failure",
			err:     &tutor.StatusError{StatusCode: 500, Body: "boom"},
			message: "Connection issue. Try again!",
		},
		{
			name:    "transport failure",
			err:     fmt.Errorf("%w: malformed response", tutor.ErrTransport),
			message: "Something went wrong! Try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.ResetScopeSession)
			f.tutor.chatErr = tt.err
			session := f.loggedIn(t)

			_, err := f.chat.Send(context.Background(), session, "Tell me about science")
			require.Error(t, err)
			assert.Equal(t, tt.message, UserMessage(err))

			stored := f.stored(t, session.ID)
			require.Len(t, stored.Messages, 1, "the user message stays, no assistant message")
			assert.Equal(t, models.RoleUser, stored.Messages[0].Role)
			assert.Equal(t, 0, stored.QuestionsAsked)
			assert.Empty(t, stored.TopicsExplored)
			assert.Equal(t, models.ChatFailed, stored.ChatStatus)
			assert.Equal(t, tt.message, stored.LastError)
		})
	}
}

func TestSendRejectsBeforeAnyCall(t *testing.T) {
	ctx := context.Background()

	t.Run("no student", func(t *testing.T) {
		f := newFixture(t, config.ResetScopeSession)
		session, _, _ := f.sessions.Load(ctx, "")

		_, err := f.chat.Send(ctx, session, "hello")
		assert.ErrorIs(t, err, ErrNoStudent)
		assert.Zero(t, f.tutor.chatCalls())
	})

	t.Run("blank message", func(t *testing.T) {
		f := newFixture(t, config.ResetScopeSession)
		session := f.loggedIn(t)

		_, err := f.chat.Send(ctx, session, " \n\t ")
		assert.ErrorIs(t, err, ErrEmptyMessage)
		assert.Empty(t, session.Messages)
		assert.Zero(t, f.tutor.chatCalls())
	})
}

func TestSendInFlightGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.ResetScopeSession)
	f.tutor.block = make(chan struct{})
	f.tutor.entered = make(chan struct{}, 1)
	session := f.loggedIn(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.chat.Send(ctx, session, "first question")
		assert.NoError(t, err)
	}()

	<-f.tutor.entered
	assert.True(t, f.chat.InFlight(session.ID))

	pending := f.stored(t, session.ID)
	assert.Equal(t, models.ChatAwaitingReply, pending.ChatStatus)
	require.Len(t, pending.Messages, 1, "user message is saved before the reply")

	second := f.stored(t, session.ID)
	_, err := f.chat.Send(ctx, second, "second question")
	assert.ErrorIs(t, err, ErrRequestInFlight)
	assert.Len(t, second.Messages, 1)

	close(f.tutor.block)
	wg.Wait()

	assert.False(t, f.chat.InFlight(session.ID))
	assert.Equal(t, 1, f.stored(t, session.ID).QuestionsAsked)
}

func TestPendingActionsWaitForReply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.ResetScopeStudent)
	f.tutor.block = make(chan struct{})
	f.tutor.entered = make(chan struct{}, 1)
	session := f.loggedIn(t)

	done := make(chan error, 1)
	go func() {
		_, err := f.chat.Send(ctx, session, "math please")
		done <- err
	}()
	<-f.tutor.entered

	other := f.stored(t, session.ID)
	assert.ErrorIs(t, f.sessions.SwitchStudent(ctx, other), ErrRequestInFlight)
	assert.ErrorIs(t, f.sessions.NewConversation(ctx, other), ErrRequestInFlight)
	assert.True(t, f.stored(t, session.ID).HasIdentity())

	close(f.tutor.block)
	require.NoError(t, <-done)

	other = f.stored(t, session.ID)
	require.NoError(t, f.sessions.SwitchStudent(ctx, other))
	stored := f.stored(t, session.ID)
	assert.False(t, stored.HasIdentity())
	assert.Empty(t, stored.Messages)
	assert.Zero(t, stored.QuestionsAsked)
}

// failingRepo stops saving after a number of successful saves
type failingRepo struct {
	*repository.MemorySessionRepository
	okSaves int
	saves   int
}

func (r *failingRepo) Save(ctx context.Context, session *models.Session) error {
	r.saves++
	if r.saves > r.okSaves {
		return errors.New("store unavailable")
	}
	return r.MemorySessionRepository.Save(ctx, session)
}

func TestSendSaveFailureLeavesNoPendingReply(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{MemorySessionRepository: repository.NewMemorySessionRepository(), okSaves: 2}
	sessions := NewSessionService(repo, NewHub(), time.Hour, config.ResetScopeSession)
	chat := NewChatService(&fakeTutor{chatReply: strPtr("Great question!")}, sessions)

	session, _, err := sessions.Load(ctx, "")
	require.NoError(t, err)
	session.SetIdentity("student_1_abc", "Mia")
	require.NoError(t, sessions.Save(ctx, session, EventIdentity))

	// The awaiting_reply save succeeds, the reply save does not
	_, err = chat.Send(ctx, session, "math")
	require.Error(t, err)
	assert.False(t, chat.InFlight(session.ID))

	raw, err := repo.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChatAwaitingReply, raw.ChatStatus)

	loaded, created, err := sessions.Load(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.ChatFailed, loaded.ChatStatus)
	assert.Equal(t, msgChatTransportFailure, loaded.LastError)
	assert.Len(t, loaded.Messages, 1)

	// The student can carry on once the store is back
	repo.okSaves = 100
	_, err = chat.Send(ctx, loaded, "math again")
	require.NoError(t, err)
	assert.Equal(t, models.ChatRendered, loaded.ChatStatus)
}

func TestFirstStepsUnlocksOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.ResetScopeSession)
	session := f.loggedIn(t)

	for i := 1; i <= 7; i++ {
		outcome, err := f.chat.Send(ctx, session, fmt.Sprintf("question %d", i))
		require.NoError(t, err)

		if i == 5 {
			assert.Equal(t, []string{models.AchievementFirstSteps}, outcome.NewAchievements)
			assert.Equal(t, []models.Celebration{models.CelebrateBalloons}, outcome.Celebrations)
		} else {
			assert.Empty(t, outcome.NewAchievements, "question %d", i)
		}
	}

	assert.Equal(t, 7, session.QuestionsAsked)
	assert.Equal(t, []string{models.AchievementFirstSteps}, session.Achievements)
}

func TestExplorerUnlocksOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.ResetScopeSession)
	session := f.loggedIn(t)

	questions := []string{
		"I love math",
		"Do an experiment",
		"Math again please",
		"Which country is biggest?",
		"Tell me about history",
	}
	var unlockedAt []int
	for i, q := range questions {
		outcome, err := f.chat.Send(ctx, session, q)
		require.NoError(t, err)
		for _, a := range outcome.NewAchievements {
			if a == models.AchievementExplorer {
				unlockedAt = append(unlockedAt, i)
				assert.Contains(t, outcome.Celebrations, models.CelebrateSnow)
			}
		}
	}

	assert.Equal(t, []int{3}, unlockedAt, "unlocks when the third topic arrives")
	assert.Equal(t, []models.Topic{models.TopicMath, models.TopicScience, models.TopicHistory, models.TopicGeography}, session.TopicsExplored)
	assert.Equal(t, []string{models.AchievementExplorer, models.AchievementFirstSteps}, session.Achievements)
}

func TestCounterEqualsSuccessfulExchanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.ResetScopeSession)
	session := f.loggedIn(t)

	_, err := f.chat.Send(ctx, session, "one")
	require.NoError(t, err)

	f.tutor.chatErr = &tutor.StatusError{StatusCode: 503}
	_, err = f.chat.Send(ctx, session, "two")
	require.Error(t, err)

	f.tutor.chatErr = nil
	_, err = f.chat.Send(ctx, session, "three")
	require.NoError(t, err)

	assert.Equal(t, 2, session.QuestionsAsked)
	assert.Len(t, session.Messages, 5)
}
