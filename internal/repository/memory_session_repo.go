package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"nia/internal/models"
)

// MemorySessionRepository keeps sessions in process memory. Sessions are
// stored encoded so callers never share a *models.Session.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// NewMemorySessionRepository creates an empty in-memory repository
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]memoryEntry)}
}

// Get retrieves a copy of a session by ID
func (r *MemorySessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	entry, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok || entry.expired(time.Now()) {
		return nil, nil
	}
	return decodeSession(entry.data)
}

// Save stores a copy of the session
func (r *MemorySessionRepository) Save(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	r.mu.Lock()
	r.sessions[session.ID] = memoryEntry{data: data, expiresAt: session.ExpiresAt}
	r.mu.Unlock()
	return nil
}

// Delete removes a session
func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

// DeleteExpired removes all expired sessions
func (r *MemorySessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var removed int64
	for id, entry := range r.sessions {
		if entry.expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored sessions, expired or not
func (r *MemorySessionRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.sessions)), nil
}

// List returns every session that has not expired, oldest first
func (r *MemorySessionRepository) List(ctx context.Context) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	sessions := make([]*models.Session, 0, len(r.sessions))
	for _, entry := range r.sessions {
		if entry.expired(now) {
			continue
		}
		session, err := decodeSession(entry.data)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	slices.SortFunc(sessions, func(a, b *models.Session) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})
	return sessions, nil
}
