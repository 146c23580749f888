package profiles

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/example/ccm/internal/ccm/backup"
	"github.com/example/ccm/internal/ccm/domain"
	"github.com/example/ccm/internal/ccm/storage"
)

// Mirror is the live settings file read by the assistant.
type Mirror struct {
	storage *storage.Storage
	path    string
	backups *backup.Service
	logger  *slog.Logger
}

// NewMirror creates a Mirror for the settings file at path.
func NewMirror(stor *storage.Storage, path string, backups *backup.Service, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Mirror{storage: stor, path: path, backups: backups, logger: logger}
}

// Path returns the settings file path.
func (m *Mirror) Path() string {
	return m.path
}

// Read loads the settings file. found is false when it does not exist; the
// raw bytes are returned alongside the parsed document for absorb.
func (m *Mirror) Read() (doc Document, raw []byte, found bool, err error) {
	if err := m.storage.ValidatePathSafety(m.path); err != nil {
		return Document{}, nil, false, err
	}
	raw, found, err = m.storage.ReadFileIfExists(m.path)
	if err != nil {
		return Document{}, nil, false, domain.IOError("read settings", m.path, err)
	}
	if !found {
		return Document{}, nil, false, nil
	}
	doc, err = ParseDocument(raw)
	if err != nil {
		return Document{}, nil, false, fmt.Errorf("settings %s: %w", m.path, err)
	}
	return doc, raw, true, nil
}

// Write replaces the settings file with the canonical form of doc, backing
// up the previous content first.
func (m *Mirror) Write(doc Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	if m.backups != nil {
		if err := m.backups.BackupFile(m.path); err != nil {
			return fmt.Errorf("backup settings: %w", err)
		}
	}
	if err := m.storage.WriteFileAtomic(m.path, data); err != nil {
		return domain.IOError("write settings", m.path, err)
	}
	m.logger.Debug("settings written", "path", m.path)
	return nil
}
