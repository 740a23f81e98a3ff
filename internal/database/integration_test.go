package database

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_integration.db")
	db, err := Initialize(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(os.DirFS("../../migrations")); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// TestDatabaseIntegration tests the complete database lifecycle
func TestDatabaseIntegration(t *testing.T) {
	// Skip if not in integration test mode
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	// Test that tables were created by migrations
	for _, table := range []string{"sessions", "migrations"} {
		query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
		var name string
		if err := db.QueryRowContext(ctx, query, table).Scan(&name); err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	// Running again must be a no-op
	if err := db.RunMigrations(os.DirFS("../../migrations")); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 recorded migration, got %d", count)
	}
}

// TestUpsertSession checks the dialect upsert against a real SQLite database
func TestUpsertSession(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()
	upsert := db.Dialect.UpsertSessionQuery()

	if _, err := db.ExecContext(ctx, upsert, "s1", nil, `{"id":"s1"}`, 100, 1); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, upsert, "s1", "student_1_abc", `{"id":"s1","student_id":"student_1_abc"}`, 200, 2); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var studentID string
	var expiresAt int64
	err := db.QueryRowContext(ctx, "SELECT student_id, expires_at FROM sessions WHERE id = ?", "s1").Scan(&studentID, &expiresAt)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if studentID != "student_1_abc" || expiresAt != 200 {
		t.Errorf("got student_id=%q expires_at=%d", studentID, expiresAt)
	}
}

// TestConcurrentAccess tests concurrent database access
func TestConcurrentAccess(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, db.Dialect.UpsertSessionQuery(), "shared", "student_2", "{}", 100, 1); err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var studentID string
			err := db.QueryRowContext(ctx, "SELECT student_id FROM sessions WHERE id = ?", "shared").Scan(&studentID)
			if err != nil {
				t.Errorf("Concurrent read failed: %v", err)
			}
			if studentID != "student_2" {
				t.Errorf("Expected student_id 'student_2', got '%s'", studentID)
			}
		}()
	}
	wg.Wait()
}
