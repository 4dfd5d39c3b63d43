// Package config handles configuration loading, saving, and path management.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// GlobalDirName is the name of the global OpenSync directory.
	GlobalDirName = ".opensync"

	// HomeEnv overrides the global directory, e.g. for a read-only root.
	HomeEnv = "OPENSYNC_HOME"

	// LogsDirName is the name of the raw log archive within the data path.
	LogsDirName = "logs"
)

// File names
const (
	DaemonFileName    = "daemon.yaml"
	DaemonLogFileName = "opensyncd.log"
	SettingsFileName  = "settings.yaml"
	DatabaseFileName  = "opensync.db"
)

// GlobalDir returns the path to the global OpenSync directory (~/.opensync/).
func GlobalDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return ExpandPath(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, GlobalDirName), nil
}

// GlobalDaemonFile returns the path to the daemon.yaml file.
func GlobalDaemonFile() (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DaemonFileName), nil
}

// GlobalDaemonLogFile returns the path to the daemon's log file.
func GlobalDaemonLogFile() (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DaemonLogFileName), nil
}

// GlobalSettingsFile returns the path to the settings.yaml file.
func GlobalSettingsFile() (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SettingsFileName), nil
}

// DatabaseFile returns the metadata database path within a data path.
func DatabaseFile(dataPath string) string {
	return filepath.Join(dataPath, DatabaseFileName)
}

// LogsDir returns the raw log archive within a data path.
func LogsDir(dataPath string) string {
	return filepath.Join(dataPath, LogsDirName)
}

// ExpandPath expands a leading ~ and environment variables and makes the
// result absolute.
func ExpandPath(path string) (string, error) {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// EnsureGlobalDir creates the global OpenSync directory if it doesn't exist.
func EnsureGlobalDir() error {
	dir, err := GlobalDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}
