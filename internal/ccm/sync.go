package ccm

import (
	"fmt"

	"github.com/example/ccm/internal/ccm/profiles"
)

// SyncStatus is the result class of Sync.
type SyncStatus int

const (
	SyncNothing SyncStatus = iota
	SyncAlreadyInSync
	SyncUpdated
)

func (s SyncStatus) String() string {
	switch s {
	case SyncNothing:
		return "nothing"
	case SyncAlreadyInSync:
		return "already-in-sync"
	case SyncUpdated:
		return "updated"
	}
	return fmt.Sprintf("SyncStatus(%d)", int(s))
}

// SyncOutcome reports what Sync did.
type SyncOutcome struct {
	Status  SyncStatus
	Profile string
	// Reason explains SyncNothing.
	Reason     string
	Stored     profiles.Document
	Live       profiles.Document
	Comparison profiles.Comparison
}

// Sync copies the live settings file into the current profile when they
// differ. Nothing is written when there is no current profile, no settings
// file, or no difference.
func (m *Manager) Sync() (SyncOutcome, error) {
	var outcome SyncOutcome
	err := m.withLock("sync", func() error {
		current, stored, found, err := m.currentProfile()
		if err != nil {
			return err
		}
		outcome.Profile = current
		switch {
		case current == "":
			outcome.Reason = "no current profile"
			return nil
		case !found:
			outcome.Reason = fmt.Sprintf("current profile '%s' does not exist", current)
			return nil
		}

		live, raw, mirrorFound, err := m.mirror.Read()
		if err != nil {
			return err
		}
		if !mirrorFound {
			outcome.Reason = fmt.Sprintf("settings file %s does not exist", m.mirror.Path())
			return nil
		}

		outcome.Stored = stored
		outcome.Live = live
		outcome.Comparison = profiles.Compare(stored, live)
		if outcome.Comparison.Equal() {
			outcome.Status = SyncAlreadyInSync
			return nil
		}
		if err := m.profiles.SaveRaw(current, raw); err != nil {
			return err
		}
		outcome.Status = SyncUpdated
		m.logger.Info("profile synced from settings",
			"profile", current,
			"operation", "sync",
			"path", m.mirror.Path())
		return nil
	})
	return outcome, err
}
