package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"nia/internal/models"
)

// sessionKeyPrefix namespaces session keys in Redis
const sessionKeyPrefix = "nia:session:"

// ErrRedisConnection is returned when Redis cannot be reached at startup
var ErrRedisConnection = errors.New("redis: connection failed")

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// RedisSessionRepository stores each session as a JSON value whose key
// expires together with the session
type RedisSessionRepository struct {
	client redis.UniversalClient
}

// NewRedisSessionRepository connects to Redis and verifies the connection
func NewRedisSessionRepository(cfg RedisConfig) (*RedisSessionRepository, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrRedisConnection, err)
	}

	return &RedisSessionRepository{client: client}, nil
}

// Close closes the Redis connection
func (r *RedisSessionRepository) Close() error {
	return r.client.Close()
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Get retrieves a session by ID
func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return decodeSession(data)
}

// Save stores a session until it expires. Already expired sessions are removed.
func (r *RedisSessionRepository) Save(ctx context.Context, session *models.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return r.Delete(ctx, session.ID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session
func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis expires session keys on its own
func (r *RedisSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// Count returns the number of stored sessions
func (r *RedisSessionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// List returns every stored session, oldest first
func (r *RedisSessionRepository) List(ctx context.Context) ([]*models.Session, error) {
	var sessions []*models.Session
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		session, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	slices.SortFunc(sessions, func(a, b *models.Session) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})
	return sessions, nil
}
