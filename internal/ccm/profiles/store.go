package profiles

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/example/ccm/internal/ccm/backup"
	"github.com/example/ccm/internal/ccm/domain"
	"github.com/example/ccm/internal/ccm/paths"
	"github.com/example/ccm/internal/ccm/storage"
	"github.com/example/ccm/internal/ccm/validator"
)

// Store manages the directory of named profile files.
type Store struct {
	storage   *storage.Storage
	layout    paths.Layout
	validator *validator.Validator
	backups   *backup.Service
	logger    *slog.Logger
}

// NewStore creates a profile Store.
func NewStore(stor *storage.Storage, layout paths.Layout, backups *backup.Service, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		storage:   stor,
		layout:    layout,
		validator: validator.New(),
		backups:   backups,
		logger:    logger,
	}
}

// Dir returns the profile directory.
func (s *Store) Dir() string {
	return s.layout.ProfilesDir()
}

// Path validates name and returns the profile's file path.
func (s *Store) Path(name string) (string, error) {
	normalized, err := s.validator.NormalizeName(name)
	if err != nil {
		return "", fmt.Errorf("invalid profile name %q: %w", name, err)
	}
	return s.layout.ProfilePath(normalized), nil
}

// List returns the names of all stored profiles, sorted lexicographically.
// Hidden files, directories and non-.json files are skipped.
func (s *Store) List() ([]string, error) {
	entries, err := s.storage.ReadDir(s.Dir())
	if err != nil {
		return nil, domain.IOError("read profile directory", s.Dir(), err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, paths.ProfileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, paths.ProfileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a profile file exists.
func (s *Store) Exists(name string) (bool, error) {
	path, err := s.Path(name)
	if err != nil {
		return false, err
	}
	exists, err := s.storage.Exists(path)
	if err != nil {
		return false, domain.IOError("stat profile", path, err)
	}
	return exists, nil
}

// ReadRaw returns the stored bytes of a profile.
func (s *Store) ReadRaw(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := s.storage.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("profile '%s': %w", name, domain.ErrProfileNotFound)
		}
		return nil, domain.IOError("read profile", path, err)
	}
	return data, nil
}

// Load reads and parses a profile.
func (s *Store) Load(name string) (Document, error) {
	data, err := s.ReadRaw(name)
	if err != nil {
		return Document{}, err
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return Document{}, fmt.Errorf("profile '%s' (%s): %w", name, s.layout.ProfilePath(strings.TrimSpace(name)), err)
	}
	return doc, nil
}

// Lookup is Load for names that may legitimately be missing, such as the
// target of a dangling current pointer. found is false when no file exists.
func (s *Store) Lookup(name string) (doc Document, found bool, err error) {
	doc, err = s.Load(name)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return Document{}, false, nil
		}
		return Document{}, false, err
	}
	return doc, true, nil
}

// Create validates doc and writes it as a new profile.
func (s *Store) Create(name string, doc Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("profile '%s': %w", name, err)
	}
	exists, err := s.Exists(name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("profile '%s': %w", name, domain.ErrProfileAlreadyExists)
	}
	return s.Save(name, doc)
}

// Save overwrites a profile with the canonical form of doc.
func (s *Store) Save(name string, doc Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	return s.write(name, data)
}

// SaveRaw overwrites a profile with data, which must parse as a document.
// Absorb uses it so the stored file keeps the settings file's exact bytes.
func (s *Store) SaveRaw(name string, data []byte) error {
	if _, err := ParseDocument(data); err != nil {
		return fmt.Errorf("profile '%s': %w", name, err)
	}
	return s.write(name, data)
}

func (s *Store) write(name string, data []byte) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if s.backups != nil {
		if err := s.backups.BackupFile(path); err != nil {
			return fmt.Errorf("backup profile '%s': %w", name, err)
		}
	}
	if err := s.storage.WriteFileAtomic(path, data); err != nil {
		return domain.IOError("write profile", path, err)
	}
	s.logger.Debug("profile written", "profile", name, "path", path)
	return nil
}

// Delete removes a profile file. It does not consult the current pointer;
// callers enforce that rule.
func (s *Store) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	exists, err := s.storage.Exists(path)
	if err != nil {
		return domain.IOError("stat profile", path, err)
	}
	if !exists {
		return fmt.Errorf("profile '%s': %w", name, domain.ErrProfileNotFound)
	}
	if s.backups != nil {
		if err := s.backups.BackupFile(path); err != nil {
			return fmt.Errorf("backup profile '%s': %w", name, err)
		}
	}
	if err := s.storage.Remove(path); err != nil {
		return domain.IOError("remove profile", path, err)
	}
	s.logger.Info("profile removed", "profile", name, "path", path)
	return nil
}

// Rename moves a profile to a new name.
func (s *Store) Rename(from, to string) error {
	fromPath, err := s.Path(from)
	if err != nil {
		return err
	}
	toPath, err := s.Path(to)
	if err != nil {
		return err
	}
	if exists, err := s.storage.Exists(fromPath); err != nil {
		return domain.IOError("stat profile", fromPath, err)
	} else if !exists {
		return fmt.Errorf("profile '%s': %w", from, domain.ErrProfileNotFound)
	}
	if exists, err := s.storage.Exists(toPath); err != nil {
		return domain.IOError("stat profile", toPath, err)
	} else if exists {
		return fmt.Errorf("profile '%s': %w", to, domain.ErrProfileAlreadyExists)
	}
	if err := s.storage.Rename(fromPath, toPath); err != nil {
		return domain.IOError("rename profile", fromPath, err)
	}
	s.logger.Info("profile renamed", "from", from, "to", to)
	return nil
}

// SetEnv sets a single env key in place, leaving the rest of the file's
// formatting untouched.
func (s *Store) SetEnv(name, key, value string) error {
	if err := ValidateEnvKey(key); err != nil {
		return err
	}
	data, err := s.ReadRaw(name)
	if err != nil {
		return err
	}
	updated, err := sjson.SetBytes(data, envMember+"."+key, value)
	if err != nil {
		return fmt.Errorf("set %s in profile '%s': %w", key, name, err)
	}
	return s.SaveRaw(name, updated)
}

// UnsetEnv removes a single env key. Required keys cannot be removed.
func (s *Store) UnsetEnv(name, key string) error {
	if err := ValidateEnvKey(key); err != nil {
		return err
	}
	if key == KeyBaseURL || key == KeyAuthToken {
		return fmt.Errorf("%w: %s cannot be removed", domain.ErrMissingRequiredKey, key)
	}
	data, err := s.ReadRaw(name)
	if err != nil {
		return err
	}
	updated, err := sjson.DeleteBytes(data, envMember+"."+key)
	if err != nil {
		return fmt.Errorf("unset %s in profile '%s': %w", key, name, err)
	}
	return s.SaveRaw(name, updated)
}
