package ccm

import (
	"errors"
	"fmt"

	"github.com/example/ccm/internal/ccm/config"
	"github.com/example/ccm/internal/ccm/domain"
	"github.com/example/ccm/internal/ccm/profiles"
)

// Decision is the resolution chosen for a diverged current profile.
type Decision int

const (
	// DecisionDirect discards the live edits and switches.
	DecisionDirect Decision = iota
	// DecisionAbsorb saves the live settings into the current profile first.
	DecisionAbsorb
	// DecisionCancel aborts the switch.
	DecisionCancel
)

func (d Decision) String() string {
	switch d {
	case DecisionDirect:
		return "direct"
	case DecisionAbsorb:
		return "absorb"
	case DecisionCancel:
		return "cancel"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// DecisionForPolicy maps a non-interactive on_conflict policy to a
// Decision. ok is false for the prompt policy.
func DecisionForPolicy(policy string) (d Decision, ok bool) {
	switch policy {
	case config.OnConflictSwitch:
		return DecisionDirect, true
	case config.OnConflictAbsorb:
		return DecisionAbsorb, true
	case config.OnConflictCancel:
		return DecisionCancel, true
	}
	return DecisionCancel, false
}

// Conflict describes a current profile whose stored content no longer
// matches the live settings file.
type Conflict struct {
	Current    string
	Target     string
	Stored     profiles.Document
	Live       profiles.Document
	Comparison profiles.Comparison
}

// Resolver picks how to handle a Conflict. Resolve may block on the user.
type Resolver interface {
	Resolve(Conflict) (Decision, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(Conflict) (Decision, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(c Conflict) (Decision, error) {
	return f(c)
}

// FixedResolver always answers d.
func FixedResolver(d Decision) Resolver {
	return ResolverFunc(func(Conflict) (Decision, error) { return d, nil })
}

// SwitchState classifies the pair (current profile, live settings) at the
// start of a switch.
type SwitchState int

const (
	// StateNoCurrent covers both an absent and a dangling pointer.
	StateNoCurrent SwitchState = iota
	StateMirrorMissing
	StateCurrentMatchesMirror
	StateCurrentDivergesFromMirror
)

func (s SwitchState) String() string {
	switch s {
	case StateNoCurrent:
		return "no-current"
	case StateMirrorMissing:
		return "mirror-missing"
	case StateCurrentMatchesMirror:
		return "current-matches-mirror"
	case StateCurrentDivergesFromMirror:
		return "current-diverges-from-mirror"
	}
	return fmt.Sprintf("SwitchState(%d)", int(s))
}

// SwitchOutcome reports what a switch did.
type SwitchOutcome struct {
	Target   string
	Previous string
	State    SwitchState
	// Decision is DecisionDirect unless a conflict was resolved otherwise.
	Decision   Decision
	Comparison profiles.Comparison
}

// Switch makes name the active profile.
//
// The target is loaded before anything else, so an unknown name writes
// nothing. When the current profile's stored content differs from the live
// settings file, resolver decides whether to discard the live edits, absorb
// them into the current profile, or cancel. A cancelled switch touches no
// file and returns domain.ErrCancelledByUser with the outcome.
func (m *Manager) Switch(name string, resolver Resolver) (SwitchOutcome, error) {
	target, err := m.validator.NormalizeName(name)
	if err != nil {
		return SwitchOutcome{}, fmt.Errorf("invalid profile name %q: %w", name, err)
	}

	var outcome SwitchOutcome
	err = m.withLock("switch", func() error {
		var err error
		outcome, err = m.switchLocked(target, resolver)
		return err
	})
	return outcome, err
}

func (m *Manager) switchLocked(target string, resolver Resolver) (SwitchOutcome, error) {
	outcome := SwitchOutcome{Target: target, Decision: DecisionDirect}

	doc, err := m.profiles.Load(target)
	if err != nil {
		return outcome, err
	}

	current, stored, found, err := m.currentProfile()
	if err != nil {
		return outcome, err
	}
	outcome.Previous = current
	if !found {
		outcome.State = StateNoCurrent
		return outcome, m.apply(target, doc, outcome)
	}

	live, raw, mirrorFound, err := m.mirror.Read()
	if err != nil {
		return outcome, err
	}
	if !mirrorFound {
		outcome.State = StateMirrorMissing
		return outcome, m.apply(target, doc, outcome)
	}

	outcome.Comparison = profiles.Compare(stored, live)
	if outcome.Comparison.Equal() {
		outcome.State = StateCurrentMatchesMirror
		return outcome, m.apply(target, doc, outcome)
	}

	outcome.State = StateCurrentDivergesFromMirror
	if resolver == nil {
		return outcome, errors.New("settings diverge from the current profile and no resolver was given")
	}
	decision, err := resolver.Resolve(Conflict{
		Current:    current,
		Target:     target,
		Stored:     stored,
		Live:       live,
		Comparison: outcome.Comparison,
	})
	if err != nil {
		return outcome, fmt.Errorf("resolve conflict: %w", err)
	}
	outcome.Decision = decision
	m.logger.Debug("conflict resolved",
		"profile", current,
		"operation", "switch",
		"decision", decision.String())

	switch decision {
	case DecisionCancel:
		return outcome, domain.ErrCancelledByUser
	case DecisionAbsorb:
		if err := m.profiles.SaveRaw(current, raw); err != nil {
			return outcome, fmt.Errorf("absorb settings into '%s': %w", current, err)
		}
		m.logger.Info("settings absorbed", "profile", current, "path", m.mirror.Path())
		// The target may be the profile that was just rewritten.
		if doc, err = m.profiles.Load(target); err != nil {
			return outcome, err
		}
	case DecisionDirect:
	default:
		return outcome, fmt.Errorf("unknown decision %v", decision)
	}
	return outcome, m.apply(target, doc, outcome)
}

func (m *Manager) apply(target string, doc profiles.Document, outcome SwitchOutcome) error {
	if err := m.mirror.Write(doc); err != nil {
		return err
	}
	if err := m.pointer.Set(target); err != nil {
		return err
	}
	m.logger.Info("switched profile",
		"profile", target,
		"operation", "switch",
		"decision", outcome.Decision.String(),
		"state", outcome.State.String())
	return nil
}
