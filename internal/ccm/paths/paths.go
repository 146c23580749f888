package paths

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Directory and file name constants for the profile store.
const (
	AppDirName       = "ccm"
	ProfilesDirName  = "profiles"
	CurrentFileName  = "current"
	BackupDirName    = "backups"
	LockFileName     = ".lock"
	ConfigFileName   = "config.yaml"
	ClaudeDirName    = ".claude"
	SettingsFileName = "settings.json"
	ProfileExt       = ".json"
)

// Environment overrides.
const (
	EnvConfigDir    = "CCM_CONFIG_DIR"
	EnvSettingsPath = "CLAUDE_SETTINGS_PATH"
)

// Env abstracts the process environment so resolution can be tested.
type Env struct {
	Getenv        func(string) string
	UserConfigDir func() (string, error)
	UserHomeDir   func() (string, error)
}

// OSEnv returns an Env backed by the real process environment.
func OSEnv() Env {
	return Env{
		Getenv:        os.Getenv,
		UserConfigDir: os.UserConfigDir,
		UserHomeDir:   os.UserHomeDir,
	}
}

// Layout holds every path the tool reads or writes.
type Layout struct {
	ConfigDir    string
	SettingsPath string
}

// Resolve computes the layout. CCM_CONFIG_DIR replaces the config directory,
// CLAUDE_SETTINGS_PATH replaces the mirror path. settingsOverride (from the
// config file) applies when the environment does not set one.
func Resolve(env Env, settingsOverride string) (Layout, error) {
	configDir, err := ResolveConfigDir(env)
	if err != nil {
		return Layout{}, err
	}

	settingsPath := strings.TrimSpace(env.Getenv(EnvSettingsPath))
	if settingsPath == "" {
		settingsPath = strings.TrimSpace(settingsOverride)
	}
	if settingsPath == "" {
		home, err := env.UserHomeDir()
		if err != nil {
			return Layout{}, err
		}
		settingsPath = filepath.Join(home, ClaudeDirName, SettingsFileName)
	} else {
		settingsPath = expandHome(env, settingsPath)
	}

	return Layout{ConfigDir: configDir, SettingsPath: settingsPath}, nil
}

// ResolveConfigDir returns the tool's own directory.
func ResolveConfigDir(env Env) (string, error) {
	if custom := strings.TrimSpace(env.Getenv(EnvConfigDir)); custom != "" {
		return expandHome(env, custom), nil
	}
	base, err := env.UserConfigDir()
	if err != nil || base == "" {
		home, herr := env.UserHomeDir()
		if herr != nil {
			return "", errors.Join(err, herr)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppDirName), nil
}

func expandHome(env Env, path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := env.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ProfilesDir returns the directory where named profiles are stored.
func (l Layout) ProfilesDir() string {
	return filepath.Join(l.ConfigDir, ProfilesDirName)
}

// ProfilePath returns the path for a named profile.
func (l Layout) ProfilePath(name string) string {
	return filepath.Join(l.ProfilesDir(), name+ProfileExt)
}

// CurrentPath returns the path to the current-profile marker.
func (l Layout) CurrentPath() string {
	return filepath.Join(l.ConfigDir, CurrentFileName)
}

// BackupDir returns the directory where backups are stored.
func (l Layout) BackupDir() string {
	return filepath.Join(l.ConfigDir, BackupDirName)
}

// LockPath returns the advisory lock file path.
func (l Layout) LockPath() string {
	return filepath.Join(l.ConfigDir, LockFileName)
}

// ConfigPath returns the path to config.yaml.
func (l Layout) ConfigPath() string {
	return filepath.Join(l.ConfigDir, ConfigFileName)
}
