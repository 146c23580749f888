package ccm

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/example/ccm/internal/ccm/backup"
	"github.com/example/ccm/internal/ccm/config"
	"github.com/example/ccm/internal/ccm/domain"
	"github.com/example/ccm/internal/ccm/paths"
	"github.com/example/ccm/internal/ccm/profiles"
	"github.com/example/ccm/internal/ccm/storage"
	"github.com/example/ccm/internal/ccm/validator"
)

// Manager coordinates the profile store, the current pointer and the live
// settings file.
type Manager struct {
	layout    paths.Layout
	cfg       config.Config
	storage   *storage.Storage
	backups   *backup.Service
	profiles  *profiles.Store
	pointer   *profiles.Pointer
	mirror    *profiles.Mirror
	validator *validator.Validator
	logger    *slog.Logger
}

// NewManager wires a Manager rooted at layout.ConfigDir on fs.
func NewManager(fs afero.Fs, layout paths.Layout, cfg config.Config, logger *slog.Logger) (*Manager, error) {
	if fs == nil {
		return nil, errors.New("filesystem cannot be nil")
	}
	if layout.ConfigDir == "" {
		return nil, errors.New("config directory cannot be empty")
	}
	if layout.SettingsPath == "" {
		return nil, errors.New("settings path cannot be empty")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	stor := storage.New(fs)
	backups := backup.New(stor, layout.BackupDir(), logger)
	backups.SetEnabled(cfg.BackupsEnabled())

	return &Manager{
		layout:    layout,
		cfg:       cfg,
		storage:   stor,
		backups:   backups,
		profiles:  profiles.NewStore(stor, layout, backups, logger),
		pointer:   profiles.NewPointer(stor, layout.CurrentPath()),
		mirror:    profiles.NewMirror(stor, layout.SettingsPath, backups, logger),
		validator: validator.New(),
		logger:    logger,
	}, nil
}

// Layout returns the resolved paths.
func (m *Manager) Layout() paths.Layout {
	return m.layout
}

// Config returns the loaded configuration.
func (m *Manager) Config() config.Config {
	return m.cfg
}

// Logger returns the manager's logger.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// Profiles exposes the underlying profile store.
func (m *Manager) Profiles() *profiles.Store {
	return m.profiles
}

// SetNow overrides the clock used for backups.
func (m *Manager) SetNow(now func() time.Time) {
	m.backups.SetNow(now)
}

func (m *Manager) withLock(operation string, fn func() error) error {
	release, err := m.storage.Lock(m.layout.LockPath())
	if err != nil {
		return domain.IOError("lock "+operation, m.layout.LockPath(), err)
	}
	defer func() {
		if err := release(); err != nil {
			m.logger.Warn("failed to release lock", "operation", operation, "error", err)
		}
	}()
	return fn()
}

// Entry is one line of the profile listing.
type Entry struct {
	Name     string
	Current  bool
	Modified bool
	Missing  bool
}

// List returns every stored profile plus, when the pointer dangles, an
// entry for the missing current profile.
func (m *Manager) List() ([]Entry, error) {
	names, err := m.profiles.List()
	if err != nil {
		return nil, err
	}
	current, stored, found, err := m.currentProfile()
	if err != nil {
		return nil, err
	}

	modified := false
	if found {
		live, _, mirrorFound, err := m.mirror.Read()
		switch {
		case err != nil:
			m.logger.Warn("cannot compare current profile with settings", "profile", current, "error", err)
		case mirrorFound:
			modified = !profiles.Compare(stored, live).Equal()
		}
	}

	entries := make([]Entry, 0, len(names)+1)
	for _, name := range names {
		entry := Entry{Name: name}
		if found && name == current {
			entry.Current = true
			entry.Modified = modified
		}
		entries = append(entries, entry)
	}
	if current != "" && !found {
		entries = append(entries, Entry{Name: current, Current: true, Missing: true})
	}
	return entries, nil
}

// Current returns the name recorded in the pointer file.
func (m *Manager) Current() (string, bool, error) {
	return m.pointer.Get()
}

// currentProfile resolves the pointer. A pointer naming a missing file, or
// holding something that is not a valid profile name, dangles: found is
// false and err is nil.
func (m *Manager) currentProfile() (name string, doc profiles.Document, found bool, err error) {
	name, set, err := m.pointer.Get()
	if err != nil || !set {
		return "", profiles.Document{}, false, err
	}
	if _, err := m.validator.NormalizeName(name); err != nil {
		m.logger.Warn("current pointer holds an invalid name", "profile", name, "error", err)
		return name, profiles.Document{}, false, nil
	}
	doc, found, err = m.profiles.Lookup(name)
	if err != nil {
		return name, profiles.Document{}, false, err
	}
	if !found {
		m.logger.Debug("current pointer dangles", "profile", name)
	}
	return name, doc, found, nil
}

// Show loads a profile.
func (m *Manager) Show(name string) (profiles.Document, error) {
	return m.profiles.Load(name)
}

// Add creates a new profile.
func (m *Manager) Add(name string, doc profiles.Document) error {
	return m.withLock("add", func() error {
		if err := m.profiles.Create(name, doc); err != nil {
			return err
		}
		m.logger.Info("profile added", "profile", name)
		return nil
	})
}

// ImportCurrent stores the live settings file as a new profile and makes it
// current. An existing profile is only replaced when force is set.
func (m *Manager) ImportCurrent(name string, force bool) error {
	normalized, err := m.validator.NormalizeName(name)
	if err != nil {
		return fmt.Errorf("invalid profile name %q: %w", name, err)
	}
	return m.withLock("import", func() error {
		live, raw, found, err := m.mirror.Read()
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s: %w", m.mirror.Path(), domain.ErrMirrorNotFound)
		}
		if err := live.Validate(); err != nil {
			return fmt.Errorf("settings %s: %w", m.mirror.Path(), err)
		}
		exists, err := m.profiles.Exists(normalized)
		if err != nil {
			return err
		}
		if exists && !force {
			return fmt.Errorf("profile '%s': %w", normalized, domain.ErrProfileAlreadyExists)
		}
		if err := m.profiles.SaveRaw(normalized, raw); err != nil {
			return err
		}
		if err := m.pointer.Set(normalized); err != nil {
			return err
		}
		m.logger.Info("settings imported", "profile", normalized, "path", m.mirror.Path())
		return nil
	})
}

// Remove deletes a profile. The current profile cannot be removed.
func (m *Manager) Remove(name string) error {
	normalized, err := m.validator.NormalizeName(name)
	if err != nil {
		return fmt.Errorf("invalid profile name %q: %w", name, err)
	}
	return m.withLock("remove", func() error {
		current, set, err := m.pointer.Get()
		if err != nil {
			return err
		}
		if set && current == normalized {
			return fmt.Errorf("profile '%s': %w", normalized, domain.ErrActiveProfile)
		}
		return m.profiles.Delete(normalized)
	})
}

// Rename moves a profile and follows it with the pointer when it is current.
func (m *Manager) Rename(from, to string) error {
	oldName, err := m.validator.NormalizeName(from)
	if err != nil {
		return fmt.Errorf("invalid profile name %q: %w", from, err)
	}
	newName, err := m.validator.NormalizeName(to)
	if err != nil {
		return fmt.Errorf("invalid profile name %q: %w", to, err)
	}
	return m.withLock("rename", func() error {
		if err := m.profiles.Rename(oldName, newName); err != nil {
			return err
		}
		current, set, err := m.pointer.Get()
		if err != nil {
			return err
		}
		if set && current == oldName {
			return m.pointer.Set(newName)
		}
		return nil
	})
}

// SetEnv sets one env key in a profile.
func (m *Manager) SetEnv(name, key, value string) error {
	return m.editEnv(name, "set", func(normalized string) error {
		return m.profiles.SetEnv(normalized, key, value)
	})
}

// UnsetEnv removes one env key from a profile.
func (m *Manager) UnsetEnv(name, key string) error {
	return m.editEnv(name, "unset", func(normalized string) error {
		return m.profiles.UnsetEnv(normalized, key)
	})
}

// editEnv applies edit to a stored profile. When the profile is current and
// the settings file matched it beforehand, the settings file follows the
// edit so the pair stays in sync.
func (m *Manager) editEnv(name, operation string, edit func(string) error) error {
	normalized, err := m.validator.NormalizeName(name)
	if err != nil {
		return fmt.Errorf("invalid profile name %q: %w", name, err)
	}
	return m.withLock(operation, func() error {
		current, stored, found, err := m.currentProfile()
		if err != nil {
			return err
		}
		inSync := false
		if found && current == normalized {
			live, _, mirrorFound, err := m.mirror.Read()
			if err != nil {
				return err
			}
			inSync = mirrorFound && profiles.Compare(stored, live).Equal()
		}

		if err := edit(normalized); err != nil {
			return err
		}
		if !inSync {
			return nil
		}
		updated, err := m.profiles.Load(normalized)
		if err != nil {
			return err
		}
		m.logger.Debug("applying edit to settings", "profile", normalized, "operation", operation)
		return m.mirror.Write(updated)
	})
}

// DiffReport is the read-only comparison of a profile with the live
// settings file.
type DiffReport struct {
	Profile    string
	Stored     profiles.Document
	Live       profiles.Document
	Comparison profiles.Comparison
}

// Diff compares a profile (the current one when name is empty) with the
// live settings file. It never writes.
func (m *Manager) Diff(name string) (DiffReport, error) {
	if name == "" {
		current, set, err := m.pointer.Get()
		if err != nil {
			return DiffReport{}, err
		}
		if !set {
			return DiffReport{}, fmt.Errorf("no current profile: %w", domain.ErrProfileNotFound)
		}
		name = current
	}
	report := DiffReport{Profile: name}
	stored, err := m.profiles.Load(name)
	if err != nil {
		return report, err
	}
	live, _, found, err := m.mirror.Read()
	if err != nil {
		return report, err
	}
	if !found {
		return report, fmt.Errorf("%s: %w", m.mirror.Path(), domain.ErrMirrorNotFound)
	}
	report.Stored = stored
	report.Live = live
	report.Comparison = profiles.Compare(stored, live)
	return report, nil
}

// PruneBackups deletes backups older than olderThan.
func (m *Manager) PruneBackups(olderThan time.Duration) (int, error) {
	var deleted int
	err := m.withLock("prune", func() error {
		var err error
		deleted, err = m.backups.PruneBackups(olderThan)
		return err
	})
	return deleted, err
}
