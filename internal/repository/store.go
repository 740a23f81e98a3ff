package repository

import (
	"fmt"
	"io"
	"log"
	"os"

	"nia/internal/config"
	"nia/internal/database"
)

// Session store kinds besides the SQL dialects
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenSessionStore builds the session repository selected by cfg.SessionStore.
// SQL stores are migrated before they are returned. The closer releases the
// underlying connection.
func OpenSessionStore(cfg *config.Config) (SessionRepository, io.Closer, error) {
	switch cfg.SessionStore {
	case StoreMemory, "":
		log.Println("Using in-memory session store")
		return NewMemorySessionRepository(), nopCloser{}, nil

	case StoreRedis:
		repo, err := NewRedisSessionRepository(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Using Redis session store at %s", cfg.RedisAddr)
		return repo, repo, nil

	default:
		db, err := database.InitializeWithConfig(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.RunMigrations(os.DirFS(cfg.MigrationsPath)); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Printf("Using %s session store", db.Dialect.DriverName())
		return NewSQLSessionRepository(db), db, nil
	}
}
