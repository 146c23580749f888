package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Storage provides whole-file operations over an afero filesystem.
type Storage struct {
	fs  afero.Fs
	now func() time.Time
}

// New creates a new Storage instance.
func New(fs afero.Fs) *Storage {
	return &Storage{fs: fs, now: time.Now}
}

// ValidatePathSafety checks that the path is not a symlink.
// It returns nil if the path doesn't exist or is a regular file/directory.
func (s *Storage) ValidatePathSafety(path string) error {
	if lstater, ok := s.fs.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("failed to check path: %w", err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to operate on symlink: %s", path)
		}
	}
	return nil
}

// ReadFile reads the entire file. A missing file yields an error matching
// fs.ErrNotExist.
func (s *Storage) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

// ReadFileIfExists reads path, reporting found=false instead of an error when
// the file does not exist.
func (s *Storage) ReadFileIfExists(path string) (data []byte, found bool, err error) {
	data, err = afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, so readers never observe a partially written file.
func (s *Storage) WriteFileAtomic(path string, data []byte) error {
	if err := s.ValidatePathSafety(path); err != nil {
		return fmt.Errorf("validate destination: %w", err)
	}

	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%d.tmp", filepath.Base(path), s.now().UnixNano()))
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	_, writeErr := f.Write(data)
	var syncErr error
	if writeErr == nil {
		syncErr = f.Sync()
	}
	closeErr := f.Close()

	if writeErr != nil || syncErr != nil || closeErr != nil {
		s.fs.Remove(tmp)
		switch {
		case writeErr != nil:
			return fmt.Errorf("write temp file: %w", writeErr)
		case syncErr != nil:
			return fmt.Errorf("sync temp file: %w", syncErr)
		default:
			return fmt.Errorf("close temp file: %w", closeErr)
		}
	}

	// rename(2) atomically replaces the destination on unix.
	if err := s.fs.Rename(tmp, path); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}

	return nil
}

// Exists checks if a path exists.
func (s *Storage) Exists(path string) (bool, error) {
	return afero.Exists(s.fs, path)
}

// ReadDir reads directory contents. A missing directory reads as empty.
func (s *Storage) ReadDir(path string) ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(s.fs, path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}

// Rename moves oldpath to newpath.
func (s *Storage) Rename(oldpath, newpath string) error {
	return s.fs.Rename(oldpath, newpath)
}

// Remove deletes a file.
func (s *Storage) Remove(path string) error {
	return s.fs.Remove(path)
}

// Chtimes changes file access and modification times.
func (s *Storage) Chtimes(path string, atime, mtime time.Time) error {
	return s.fs.Chtimes(path, atime, mtime)
}

// Lock takes an exclusive advisory lock on path for the lifetime of the
// returned release func. Filesystems without real file descriptors get a
// no-op lock.
func (s *Storage) Lock(path string) (release func() error, err error) {
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return func() error { return nil }, nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return func() error {
		unlockErr := unlockFile(f)
		closeErr := f.Close()
		if unlockErr != nil {
			return unlockErr
		}
		return closeErr
	}, nil
}
