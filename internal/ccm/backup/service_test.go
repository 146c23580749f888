package backup

// Content-addressed backups: dedup by SHA-256, mtime refresh, and
// mtime-based pruning.

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/ccm/internal/ccm/storage"
	"github.com/spf13/afero"
)

func newTestService(t *testing.T) (*Service, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	stor := storage.New(fs)
	backupDir := "/cfg/backups"
	if err := fs.MkdirAll(backupDir, 0o700); err != nil {
		t.Fatalf("setup backup dir: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(stor, backupDir, logger), fs
}

func TestHash(t *testing.T) {
	if got := Hash(nil); got != "empty" {
		t.Errorf("expected 'empty', got %q", got)
	}
	h := Hash([]byte("content"))
	if len(h) != 64 {
		t.Errorf("expected SHA-256 hex (64 chars), got %d", len(h))
	}
	if Hash([]byte("content")) != h {
		t.Error("hash should be deterministic")
	}
}

func TestBackupFile_CreatesAndDeduplicates(t *testing.T) {
	svc, fs := newTestService(t)

	path := "/home/test/.claude/settings.json"
	content := []byte(`{"env":{"ANTHROPIC_AUTH_TOKEN":"sk-bar"}}`)
	if err := afero.WriteFile(fs, path, content, 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	time1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	time2 := time1.Add(2 * time.Hour)

	svc.SetNow(func() time.Time { return time1 })
	if err := svc.BackupFile(path); err != nil {
		t.Fatalf("first backup: %v", err)
	}
	svc.SetNow(func() time.Time { return time2 })
	if err := svc.BackupFile(path); err != nil {
		t.Fatalf("second backup: %v", err)
	}

	entries, err := afero.ReadDir(fs, svc.BackupDir())
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 deduplicated backup, got %d", len(entries))
	}

	backupPath := filepath.Join(svc.BackupDir(), Hash(content)+".json")
	got, err := afero.ReadFile(fs, backupPath)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("backup content mismatch: %q", got)
	}
	info, err := fs.Stat(backupPath)
	if err != nil {
		t.Fatalf("stat backup: %v", err)
	}
	if !info.ModTime().Equal(time2) {
		t.Errorf("expected mtime refreshed to %v, got %v", time2, info.ModTime())
	}
}

func TestBackupFile_DifferentContentCreatesSeparateBackups(t *testing.T) {
	svc, fs := newTestService(t)

	for i, body := range []string{"content A", "content B"} {
		path := filepath.Join("/test", []string{"a.json", "b.json"}[i])
		if err := afero.WriteFile(fs, path, []byte(body), 0o600); err != nil {
			t.Fatalf("setup: %v", err)
		}
		if err := svc.BackupFile(path); err != nil {
			t.Fatalf("backup %s: %v", path, err)
		}
	}

	entries, err := afero.ReadDir(fs, svc.BackupDir())
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 backups, got %d", len(entries))
	}
}

func TestBackupFile_MissingFileIsSkipped(t *testing.T) {
	svc, fs := newTestService(t)

	if err := svc.BackupFile("/nonexistent"); err != nil {
		t.Fatalf("BackupFile should not error for missing file: %v", err)
	}
	entries, _ := afero.ReadDir(fs, svc.BackupDir())
	if len(entries) != 0 {
		t.Errorf("expected no backups, got %d", len(entries))
	}
}

func TestBackupFile_EmptyFile(t *testing.T) {
	svc, fs := newTestService(t)

	path := "/test/empty.json"
	if err := afero.WriteFile(fs, path, []byte{}, 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := svc.BackupFile(path); err != nil {
		t.Fatalf("BackupFile failed: %v", err)
	}
	if exists, _ := afero.Exists(fs, filepath.Join(svc.BackupDir(), "empty.json")); !exists {
		t.Error("backup for empty file should exist")
	}
}

func TestBackupFile_Disabled(t *testing.T) {
	svc, fs := newTestService(t)
	svc.SetEnabled(false)

	path := "/test/file.json"
	if err := afero.WriteFile(fs, path, []byte("data"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := svc.BackupFile(path); err != nil {
		t.Fatalf("BackupFile failed: %v", err)
	}
	entries, _ := afero.ReadDir(fs, svc.BackupDir())
	if len(entries) != 0 {
		t.Errorf("disabled backups should write nothing, got %d", len(entries))
	}
}

func TestPruneBackups_DeletesOldFiles(t *testing.T) {
	svc, fs := newTestService(t)

	time1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	time2 := time1.Add(48 * time.Hour)

	oldPath := filepath.Join(svc.BackupDir(), "old.json")
	recentPath := filepath.Join(svc.BackupDir(), "recent.json")
	for path, ts := range map[string]time.Time{oldPath: time1, recentPath: time2} {
		if err := afero.WriteFile(fs, path, []byte(path), 0o600); err != nil {
			t.Fatalf("create backup: %v", err)
		}
		if err := fs.Chtimes(path, ts, ts); err != nil {
			t.Fatalf("set time: %v", err)
		}
	}

	svc.SetNow(func() time.Time { return time2.Add(time.Hour) })
	deleted, err := svc.PruneBackups(24 * time.Hour)
	if err != nil {
		t.Fatalf("PruneBackups failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
	if exists, _ := afero.Exists(fs, oldPath); exists {
		t.Error("old backup should be deleted")
	}
	if exists, _ := afero.Exists(fs, recentPath); !exists {
		t.Error("recent backup should remain")
	}
}

func TestPruneBackups_IgnoresDirectoriesAndForeignFiles(t *testing.T) {
	svc, fs := newTestService(t)

	dirPath := filepath.Join(svc.BackupDir(), "subdir")
	if err := fs.MkdirAll(dirPath, 0o700); err != nil {
		t.Fatalf("create directory: %v", err)
	}
	notes := filepath.Join(svc.BackupDir(), "README")
	if err := afero.WriteFile(fs, notes, []byte("keep"), 0o600); err != nil {
		t.Fatalf("create notes: %v", err)
	}

	svc.SetNow(func() time.Time { return time.Now().Add(24 * time.Hour) })
	deleted, err := svc.PruneBackups(0)
	if err != nil {
		t.Fatalf("PruneBackups failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected nothing deleted, got %d", deleted)
	}
	if exists, _ := afero.DirExists(fs, dirPath); !exists {
		t.Error("directory should not be deleted")
	}
}

func TestPruneBackups_MissingDirectory(t *testing.T) {
	svc := New(storage.New(afero.NewMemMapFs()), "/nonexistent", nil)
	deleted, err := svc.PruneBackups(24 * time.Hour)
	if err != nil {
		t.Fatalf("missing backup dir should read as empty: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected 0 deleted, got %d", deleted)
	}
}
