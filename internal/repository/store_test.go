package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nia/internal/config"
)

func TestOpenSessionStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		repo, closer, err := OpenSessionStore(&config.Config{SessionStore: StoreMemory})
		require.NoError(t, err)
		defer closer.Close()
		assert.IsType(t, &MemorySessionRepository{}, repo)
	})

	t.Run("sqlite", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping SQLite test in short mode")
		}

		cfg := &config.Config{
			SessionStore:   "sqlite",
			DatabasePath:   filepath.Join(t.TempDir(), "nia.db"),
			MigrationsPath: "../../migrations",
		}
		repo, closer, err := OpenSessionStore(cfg)
		require.NoError(t, err)
		defer closer.Close()
		require.IsType(t, &SQLSessionRepository{}, repo)

		ctx := context.Background()
		require.NoError(t, repo.Save(ctx, sampleSession("store-1", time.Hour)))
		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := OpenSessionStore(&config.Config{SessionStore: "cassandra"})
		assert.Error(t, err)
	})
}
