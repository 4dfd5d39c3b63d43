package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/opensync-io/opensync/internal/config"
)

// startDaemon starts the daemon process in the background.
func startDaemon() error {
	daemonPath, err := findDaemonBinary()
	if err != nil {
		return err
	}

	var args []string
	if settingsPath != "" {
		args = append(args, "-config", settingsPath)
	}
	cmd := exec.Command(daemonPath, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// The Notecard startup sync can take up to its sync timeout before the
	// daemon records itself.
	for i := 0; i < 900; i++ {
		time.Sleep(100 * time.Millisecond)
		running, _, err := config.IsDaemonRunning()
		if err == nil && running {
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start within timeout")
}

// findDaemonBinary locates the opensyncd binary.
func findDaemonBinary() (string, error) {
	// Try PATH first
	path, err := exec.LookPath("opensyncd")
	if err == nil {
		return path, nil
	}

	// Try next to the current executable
	execPath, err := os.Executable()
	if err == nil {
		daemonPath := filepath.Join(filepath.Dir(execPath), "opensyncd")
		if _, err := os.Stat(daemonPath); err == nil {
			return daemonPath, nil
		}
	}

	// Try build directory
	if _, err := os.Stat("./build/opensyncd"); err == nil {
		return "./build/opensyncd", nil
	}

	return "", fmt.Errorf("opensyncd not found. Install or build it first")
}

// waitForStop polls until the daemon has removed its info file.
func waitForStop(timeout time.Duration) error {
	for deadline := time.Now().Add(timeout); time.Now().Before(deadline); {
		time.Sleep(100 * time.Millisecond)
		running, _, err := config.IsDaemonRunning()
		if err == nil && !running {
			return nil
		}
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}
