package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/ccm/internal/ccm/storage"
)

// Service keeps content-addressed copies of files before they are overwritten.
type Service struct {
	storage   *storage.Storage
	backupDir string
	enabled   bool
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a new backup Service.
func New(storage *storage.Storage, backupDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		storage:   storage,
		backupDir: backupDir,
		enabled:   true,
		now:       time.Now,
		logger:    logger,
	}
}

// SetNow allows overriding the clock for testing.
func (s *Service) SetNow(now func() time.Time) {
	if now == nil {
		s.now = time.Now
		return
	}
	s.now = now
}

// SetEnabled turns backups on or off. Disabled backups make BackupFile a no-op.
func (s *Service) SetEnabled(enabled bool) {
	s.enabled = enabled
}

// BackupDir returns the backup directory path.
func (s *Service) BackupDir() string {
	return s.backupDir
}

// Hash returns the SHA-256 of data, or "empty" for zero-length content.
func Hash(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BackupFile stores the current content of path under <backupDir>/<sha256>.json.
//
// Identical content maps to the same backup file, whose mtime is refreshed so
// that pruning measures "last referenced" rather than "first created". Missing
// files are skipped.
func (s *Service) BackupFile(path string) error {
	if !s.enabled {
		return nil
	}
	if err := s.storage.ValidatePathSafety(path); err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	data, found, err := s.storage.ReadFileIfExists(path)
	if err != nil {
		return fmt.Errorf("failed to read file for backup: %w", err)
	}
	if !found {
		return nil
	}
	if len(data) == 0 {
		s.logger.Warn("empty file detected during backup",
			"path", path,
			"operation", "backup")
	}

	hash := Hash(data)
	backupPath := filepath.Join(s.backupDir, hash+".json")
	now := s.now()

	exists, err := s.storage.Exists(backupPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}
	if !exists {
		if err := s.storage.WriteFileAtomic(backupPath, data); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		s.logger.Info("backup created",
			"path", path,
			"hash", hash,
			"backup_path", backupPath)
	} else {
		s.logger.Debug("backup already exists, updated timestamp",
			"path", path,
			"hash", hash,
			"backup_path", backupPath)
	}

	if err := s.storage.Chtimes(backupPath, now, now); err != nil {
		return fmt.Errorf("failed to update backup timestamp: %w", err)
	}
	return nil
}

// PruneBackups removes backup files whose mtime is older than olderThan and
// returns the number deleted.
func (s *Service) PruneBackups(olderThan time.Duration) (int, error) {
	entries, err := s.storage.ReadDir(s.backupDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}
	cutoff := s.now().Add(-olderThan)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if entry.ModTime().Before(cutoff) {
			path := filepath.Join(s.backupDir, entry.Name())
			if err := s.storage.Remove(path); err != nil {
				return deleted, fmt.Errorf("failed to delete backup: %w", err)
			}
			s.logger.Debug("backup pruned", "backup_path", path)
			deleted++
		}
	}
	return deleted, nil
}
