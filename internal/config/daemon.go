package config

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/opensync-io/opensync/internal/models"
)

// LoadDaemonInfo loads the daemon info from ~/.opensync/daemon.yaml.
// Returns nil if the file doesn't exist.
func LoadDaemonInfo() (*models.DaemonInfo, error) {
	path, err := GlobalDaemonFile()
	if err != nil {
		return nil, err
	}

	var info models.DaemonInfo
	if err := LoadYAML(path, &info); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return &info, nil
}

// SaveDaemonInfo saves the daemon info to ~/.opensync/daemon.yaml.
func SaveDaemonInfo(info *models.DaemonInfo) error {
	path, err := GlobalDaemonFile()
	if err != nil {
		return err
	}
	return SaveYAML(path, info)
}

// RemoveDaemonInfo removes the daemon.yaml file.
func RemoveDaemonInfo() error {
	path, err := GlobalDaemonFile()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ProcessAlive reports whether pid names a live process.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// IsDaemonRunning checks whether the daemon recorded in daemon.yaml is
// alive. A stale file is removed.
func IsDaemonRunning() (bool, *models.DaemonInfo, error) {
	info, err := LoadDaemonInfo()
	if err != nil || info == nil {
		return false, nil, err
	}
	if !ProcessAlive(info.PID) {
		_ = RemoveDaemonInfo()
		return false, info, nil
	}
	return true, info, nil
}

// SignalDaemon sends sig to the running daemon.
func SignalDaemon(sig os.Signal) (*models.DaemonInfo, error) {
	running, info, err := IsDaemonRunning()
	if err != nil {
		return nil, err
	}
	if !running {
		return nil, fmt.Errorf("daemon is not running")
	}
	process, err := os.FindProcess(info.PID)
	if err != nil {
		return nil, err
	}
	if err := process.Signal(sig); err != nil {
		return nil, fmt.Errorf("failed to signal daemon (PID %d): %w", info.PID, err)
	}
	return info, nil
}
