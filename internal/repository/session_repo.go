package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nia/internal/database"
	"nia/internal/models"
)

// SessionRepository persists tutoring sessions. Get returns (nil, nil) when
// the session does not exist or has expired.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]*models.Session, error)
}

// SQLSessionRepository stores sessions as JSON documents in the sessions table
type SQLSessionRepository struct {
	db *database.DB
}

// NewSQLSessionRepository creates a new SQL-backed session repository
func NewSQLSessionRepository(db *database.DB) *SQLSessionRepository {
	return &SQLSessionRepository{db: db}
}

// Get retrieves a session by ID
func (r *SQLSessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT data
		FROM sessions
		WHERE id = ? AND expires_at > ?
	`
	var data string
	err := r.db.QueryRowContext(ctx, query, id, time.Now().Unix()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return decodeSession([]byte(data))
}

// Save inserts or replaces a session
func (r *SQLSessionRepository) Save(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	studentID := sql.NullString{String: session.StudentID, Valid: session.StudentID != ""}
	_, err = r.db.ExecContext(ctx, r.db.Dialect.UpsertSessionQuery(),
		session.ID, studentID, string(data), session.ExpiresAt.Unix(), session.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session
func (r *SQLSessionRepository) Delete(ctx context.Context, id string) error {
	query := "DELETE FROM sessions WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and reports how many were removed
func (r *SQLSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := "DELETE FROM sessions WHERE expires_at <= ?"
	result, err := r.db.ExecContext(ctx, query, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	return rows, nil
}

// Count returns the number of stored sessions, expired or not
func (r *SQLSessionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// List returns every session that has not expired, oldest first
func (r *SQLSessionRepository) List(ctx context.Context) ([]*models.Session, error) {
	query := `
		SELECT data
		FROM sessions
		WHERE expires_at > ?
		ORDER BY updated_at
	`
	rows, err := r.db.QueryContext(ctx, query, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		session, err := decodeSession([]byte(data))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func decodeSession(data []byte) (*models.Session, error) {
	session := &models.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	session.Normalize()
	return session, nil
}
