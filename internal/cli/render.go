package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/example/ccm/internal/ccm/profiles"
)

// theme holds the styles for one output stream. Colors are dropped
// automatically when the stream is not a terminal.
type theme struct {
	header  lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
	changed lipgloss.Style
	muted   lipgloss.Style
	current lipgloss.Style
	warning lipgloss.Style
}

func newTheme(w io.Writer) theme {
	r := lipgloss.NewRenderer(w)
	return theme{
		header:  r.NewStyle().Bold(true),
		added:   r.NewStyle().Foreground(lipgloss.Color("2")),
		removed: r.NewStyle().Foreground(lipgloss.Color("1")),
		changed: r.NewStyle().Foreground(lipgloss.Color("3")),
		muted:   r.NewStyle().Faint(true),
		current: r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		warning: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

// maskSecret hides all but the edges of a token.
func maskSecret(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + strings.Repeat("*", 4) + value[len(value)-4:]
}

func displayValue(key, value string, reveal bool) string {
	if key == profiles.KeyAuthToken && !reveal {
		return maskSecret(value)
	}
	return value
}

// renderComparison prints the difference between a stored profile and the
// live settings file, one key per line.
func renderComparison(w io.Writer, profile, settingsPath string, stored, live profiles.Document, cmp profiles.Comparison, reveal bool) {
	th := newTheme(w)
	settingsName := filepath.Base(settingsPath)
	fmt.Fprintln(w, th.header.Render(fmt.Sprintf("Differences between profile '%s' and %s:", profile, settingsName)))

	for _, key := range cmp.Env.Removed {
		line := fmt.Sprintf("  - %s: %s", key, displayValue(key, stored.Get(key), reveal))
		fmt.Fprintln(w, th.removed.Render(line)+th.muted.Render("  (only in profile)"))
	}
	for _, key := range cmp.Env.Added {
		line := fmt.Sprintf("  + %s: %s", key, displayValue(key, live.Get(key), reveal))
		fmt.Fprintln(w, th.added.Render(line)+th.muted.Render("  (only in "+settingsName+")"))
	}
	for _, change := range cmp.Env.Changed {
		line := fmt.Sprintf("  ~ %s: %s -> %s", change.Key,
			displayValue(change.Key, change.Before, reveal),
			displayValue(change.Key, change.After, reveal))
		fmt.Fprintln(w, th.changed.Render(line))
	}
	if len(cmp.Extra) > 0 {
		line := fmt.Sprintf("  ~ %s: %s", profiles.OutsideEnvKey, strings.Join(cmp.Extra, ", "))
		fmt.Fprintln(w, th.changed.Render(line))
	}
}

// maskedDocument returns a copy of doc with the token masked.
func maskedDocument(doc profiles.Document) profiles.Document {
	masked := profiles.NewDocument(doc.Env)
	masked.Extra = doc.Extra
	if token, ok := masked.Env[profiles.KeyAuthToken]; ok {
		masked.Env[profiles.KeyAuthToken] = maskSecret(token)
	}
	return masked
}
