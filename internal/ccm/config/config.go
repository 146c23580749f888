package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Conflict policies accepted by on_conflict and the --on-conflict flag.
const (
	OnConflictPrompt = "prompt"
	OnConflictSwitch = "switch"
	OnConflictAbsorb = "absorb"
	OnConflictCancel = "cancel"
)

const (
	DefaultClaudeBinary    = "claude"
	DefaultBackupRetention = "30d"
)

// Config is the optional config.yaml living in the ccm directory.
type Config struct {
	SettingsPath    string `yaml:"settings_path"`
	Editor          string `yaml:"editor"`
	ClaudeBinary    string `yaml:"claude_binary"`
	Backups         *bool  `yaml:"backups"`
	BackupRetention string `yaml:"backup_retention"`
	LogFile         string `yaml:"log_file"`
	OnConflict      string `yaml:"on_conflict"`
}

// Default returns the configuration used when config.yaml is absent.
func Default() Config {
	enabled := true
	return Config{
		ClaudeBinary:    DefaultClaudeBinary,
		Backups:         &enabled,
		BackupRetention: DefaultBackupRetention,
		OnConflict:      OnConflictPrompt,
	}
}

// BackupsEnabled reports whether backups should be written.
func (c Config) BackupsEnabled() bool {
	return c.Backups == nil || *c.Backups
}

// Load reads path from fsys and fills unset fields with defaults. A missing
// file is not an error.
func Load(fsys afero.Fs, path string) (Config, error) {
	cfg := Default()
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if loaded.SettingsPath != "" {
		cfg.SettingsPath = loaded.SettingsPath
	}
	if loaded.Editor != "" {
		cfg.Editor = loaded.Editor
	}
	if loaded.ClaudeBinary != "" {
		cfg.ClaudeBinary = loaded.ClaudeBinary
	}
	if loaded.Backups != nil {
		cfg.Backups = loaded.Backups
	}
	if loaded.BackupRetention != "" {
		cfg.BackupRetention = loaded.BackupRetention
	}
	if loaded.LogFile != "" {
		cfg.LogFile = loaded.LogFile
	}
	if loaded.OnConflict != "" {
		cfg.OnConflict = strings.ToLower(strings.TrimSpace(loaded.OnConflict))
	}

	if err := ValidateOnConflict(cfg.OnConflict); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if _, err := ParseRetentionInterval(cfg.BackupRetention); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateOnConflict checks a conflict policy name.
func ValidateOnConflict(value string) error {
	switch value {
	case OnConflictPrompt, OnConflictSwitch, OnConflictAbsorb, OnConflictCancel:
		return nil
	}
	return fmt.Errorf("invalid on_conflict %q (want prompt, switch, absorb or cancel)", value)
}

var durationPattern = regexp.MustCompile(`(?i)^(\d+[dhms])+$`)
var durationPart = regexp.MustCompile(`(?i)(\d+)([dhms])`)

// ParseRetentionInterval converts strings like "30d", "12h" or "1d12h" into a
// time.Duration.
func ParseRetentionInterval(input string) (time.Duration, error) {
	value := strings.TrimSpace(input)
	if !durationPattern.MatchString(value) {
		return 0, fmt.Errorf("invalid duration format: %q", input)
	}
	total := time.Duration(0)
	for _, parts := range durationPart.FindAllStringSubmatch(value, -1) {
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration number: %w", err)
		}
		switch strings.ToLower(parts[2]) {
		case "d":
			total += time.Duration(n) * 24 * time.Hour
		case "h":
			total += time.Duration(n) * time.Hour
		case "m":
			total += time.Duration(n) * time.Minute
		case "s":
			total += time.Duration(n) * time.Second
		}
	}
	return total, nil
}
