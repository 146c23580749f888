package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "/cfg/config.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OnConflict != OnConflictPrompt {
		t.Errorf("OnConflict = %q", cfg.OnConflict)
	}
	if cfg.ClaudeBinary != DefaultClaudeBinary {
		t.Errorf("ClaudeBinary = %q", cfg.ClaudeBinary)
	}
	if !cfg.BackupsEnabled() {
		t.Error("backups should default to enabled")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	body := `
settings_path: /alt/settings.json
editor: nano
backups: false
backup_retention: 7d
log_file: /cfg/ccm.log
on_conflict: Absorb
`
	if err := afero.WriteFile(fs, "/cfg/config.yaml", []byte(body), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg, err := Load(fs, "/cfg/config.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SettingsPath != "/alt/settings.json" {
		t.Errorf("SettingsPath = %q", cfg.SettingsPath)
	}
	if cfg.Editor != "nano" {
		t.Errorf("Editor = %q", cfg.Editor)
	}
	if cfg.BackupsEnabled() {
		t.Error("backups should be disabled")
	}
	if cfg.BackupRetention != "7d" {
		t.Errorf("BackupRetention = %q", cfg.BackupRetention)
	}
	if cfg.LogFile != "/cfg/ccm.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
	if cfg.OnConflict != OnConflictAbsorb {
		t.Errorf("OnConflict = %q", cfg.OnConflict)
	}
	if cfg.ClaudeBinary != DefaultClaudeBinary {
		t.Errorf("unset fields should keep defaults, ClaudeBinary = %q", cfg.ClaudeBinary)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "editor: [unterminated"},
		{"bad policy", "on_conflict: merge"},
		{"bad retention", "backup_retention: forever"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if err := afero.WriteFile(fs, "/cfg/config.yaml", []byte(tt.body), 0o600); err != nil {
				t.Fatalf("setup: %v", err)
			}
			if _, err := Load(fs, "/cfg/config.yaml"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseRetentionInterval(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"30d", 30 * 24 * time.Hour},
		{"12h", 12 * time.Hour},
		{"90m", 90 * time.Minute},
		{"1d12h", 36 * time.Hour},
		{"10S", 10 * time.Second},
	}
	for _, tt := range tests {
		got, err := ParseRetentionInterval(tt.input)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("parse %q = %v, want %v", tt.input, got, tt.want)
		}
	}

	for _, bad := range []string{"", "5x", "-1h", "d", "30 d"} {
		if _, err := ParseRetentionInterval(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
