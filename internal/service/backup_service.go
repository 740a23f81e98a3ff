package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"nia/internal/models"
	"nia/internal/repository"
)

const backupVersion = "1.0"

// BackupData is the file format written by Export
type BackupData struct {
	Version    string            `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	StoreType  string            `json:"store_type"`
	Sessions   []*models.Session `json:"sessions"`
}

// BackupService copies live sessions between stores through a JSON file
type BackupService struct {
	repo      repository.SessionRepository
	storeType string
}

// NewBackupService creates a new backup service
func NewBackupService(repo repository.SessionRepository, storeType string) *BackupService {
	return &BackupService{repo: repo, storeType: storeType}
}

// Export writes every live session to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	count, err := s.ExportToWriter(ctx, file)
	if err != nil {
		return err
	}

	log.Printf("Exported %d sessions to %s", count, outputPath)
	return nil
}

// ExportToWriter encodes every live session to w and returns how many were written
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) (int, error) {
	sessions, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to export sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}

	backup := &BackupData{
		Version:    backupVersion,
		ExportedAt: time.Now(),
		StoreType:  s.storeType,
		Sessions:   sessions,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return 0, fmt.Errorf("failed to encode backup: %w", err)
	}
	return len(sessions), nil
}

// Import restores sessions from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string) error {
	log.Printf("Starting session import from %s...", inputPath)

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	imported, skipped, err := s.ImportFromReader(ctx, file)
	if err != nil {
		return err
	}

	log.Printf("Session import completed: %d imported, %d expired skipped", imported, skipped)
	return nil
}

// ImportFromReader saves every unexpired session in the backup. Existing
// sessions with the same ID are replaced.
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader) (imported, skipped int, err error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return 0, 0, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != backupVersion {
		return 0, 0, fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	log.Printf("Backup version: %s, exported at: %s from %s", backup.Version, backup.ExportedAt, backup.StoreType)

	for _, session := range backup.Sessions {
		if session == nil || session.ID == "" {
			continue
		}
		session.Normalize()
		if session.IsExpired() {
			skipped++
			continue
		}
		if err := s.repo.Save(ctx, session); err != nil {
			return imported, skipped, fmt.Errorf("failed to import session %s: %w", session.ID, err)
		}
		imported++
	}
	return imported, skipped, nil
}
