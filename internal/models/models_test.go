package models

import (
	"testing"
	"time"
)

func TestSessionIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "future expiration",
			expiresAt: time.Now().Add(1 * time.Hour),
			want:      false,
		},
		{
			name:      "just expired",
			expiresAt: time.Now().Add(-1 * time.Second),
			want:      true,
		},
		{
			name:      "expired yesterday",
			expiresAt: time.Now().Add(-24 * time.Hour),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := Session{
				ID:        "test-session",
				ExpiresAt: tt.expiresAt,
				CreatedAt: time.Now().Add(-1 * time.Hour),
			}
			result := session.IsExpired()
			if result != tt.want {
				t.Errorf("Session.IsExpired() = %v, want %v", result, tt.want)
			}
		})
	}
}

func TestSessionIdentityIsAtomic(t *testing.T) {
	tests := []struct {
		name         string
		studentID    string
		studentName  string
		wantIdentity bool
	}{
		{
			name:         "both parts",
			studentID:    "student_1_abc",
			studentName:  "Mia",
			wantIdentity: true,
		},
		{
			name:         "missing name",
			studentID:    "student_1_abc",
			studentName:  "",
			wantIdentity: false,
		},
		{
			name:         "missing id",
			studentID:    "",
			studentName:  "Mia",
			wantIdentity: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := NewSession("s1", time.Hour)
			session.SetIdentity(tt.studentID, tt.studentName)

			if session.HasIdentity() != tt.wantIdentity {
				t.Errorf("HasIdentity() = %v, want %v", session.HasIdentity(), tt.wantIdentity)
			}
			if (session.StudentID == "") != (session.StudentName == "") {
				t.Errorf("identity half set: id=%q name=%q", session.StudentID, session.StudentName)
			}
		})
	}
}

func TestSessionClearIdentity(t *testing.T) {
	session := NewSession("s1", time.Hour)
	session.SetIdentity("student_1_abc", "Mia")
	session.ClearIdentity()

	if session.HasIdentity() || session.StudentID != "" || session.StudentName != "" {
		t.Errorf("identity not cleared: %+v", session)
	}
}

func TestSessionAddTopic(t *testing.T) {
	session := NewSession("s1", time.Hour)

	if !session.AddTopic(TopicReading) {
		t.Fatal("first AddTopic(Reading) should report true")
	}
	if session.AddTopic(TopicReading) {
		t.Error("second AddTopic(Reading) should report false")
	}
	if session.AddTopic(Topic("Cooking")) {
		t.Error("unknown topic should be rejected")
	}
	session.AddTopic(TopicMath)

	want := []Topic{TopicMath, TopicReading}
	if len(session.TopicsExplored) != len(want) {
		t.Fatalf("TopicsExplored = %v, want %v", session.TopicsExplored, want)
	}
	for i := range want {
		if session.TopicsExplored[i] != want[i] {
			t.Errorf("position %d: got %v, want %v", i, session.TopicsExplored[i], want[i])
		}
	}
}

func TestSessionUnlock(t *testing.T) {
	session := NewSession("s1", time.Hour)

	if !session.Unlock(AchievementExplorer) {
		t.Fatal("first unlock should report true")
	}
	if session.Unlock(AchievementExplorer) {
		t.Error("second unlock should be a no-op")
	}
	session.Unlock(AchievementFirstSteps)

	if len(session.Achievements) != 2 {
		t.Fatalf("Achievements = %v", session.Achievements)
	}
	if session.Achievements[0] != AchievementExplorer {
		t.Errorf("unlock order lost: %v", session.Achievements)
	}
}

func TestSessionNormalize(t *testing.T) {
	session := &Session{ID: "s1", StudentID: "student_1_abc"}
	session.Normalize()

	if session.Messages == nil || session.TopicsExplored == nil || session.Achievements == nil {
		t.Error("Normalize() left nil collections")
	}
	if session.ChatStatus != ChatIdle {
		t.Errorf("ChatStatus = %q, want %q", session.ChatStatus, ChatIdle)
	}
	if session.StudentID != "" {
		t.Error("Normalize() should drop a half identity")
	}
}

func TestParseTopic(t *testing.T) {
	tests := []struct {
		input  string
		want   Topic
		wantOK bool
	}{
		{input: "Math", want: TopicMath, wantOK: true},
		{input: " geography ", want: TopicGeography, wantOK: true},
		{input: "Art", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseTopic(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseTopic(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
