package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opensync-io/opensync/internal/config"
	"github.com/opensync-io/opensync/internal/updater"
)

var updateCheckOnly bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update opensync to the latest version",
	RunE:  runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateCheckOnly, "check", false, "only report whether an update is available")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	fmt.Println("Checking for updates...")

	checker := updater.NewChecker()
	result, err := checker.CheckForUpdate(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	if !result.Available {
		fmt.Printf("Already up to date (v%s).\n", result.CurrentVersion)
		return nil
	}

	fmt.Println(render(styleUpdate, fmt.Sprintf("Update available: v%s -> v%s", result.CurrentVersion, result.LatestVersion)))
	fmt.Printf("Release: %s\n", result.ReleaseURL)
	if updateCheckOnly {
		return nil
	}

	cliAsset := updater.FindAsset(result.Release, updater.CLIAssetName())
	daemonAsset := updater.FindAsset(result.Release, updater.DaemonAssetName())
	if cliAsset == nil {
		return fmt.Errorf("CLI binary not found in release (expected %s)", updater.CLIAssetName())
	}
	if daemonAsset == nil {
		return fmt.Errorf("daemon binary not found in release (expected %s)", updater.DaemonAssetName())
	}

	fmt.Printf("Downloading CLI (%s)...\n", cliAsset.Name)
	cliTmpPath, err := checker.DownloadAsset(cmd.Context(), cliAsset)
	if err != nil {
		return fmt.Errorf("failed to download CLI: %w", err)
	}
	defer os.Remove(cliTmpPath)

	fmt.Printf("Downloading daemon (%s)...\n", daemonAsset.Name)
	daemonTmpPath, err := checker.DownloadAsset(cmd.Context(), daemonAsset)
	if err != nil {
		return fmt.Errorf("failed to download daemon: %w", err)
	}
	defer os.Remove(daemonTmpPath)

	// Stop the daemon only once both downloads succeeded, so a failed
	// update never leaves logs uncaptured.
	daemonWasRunning, _, _ := config.IsDaemonRunning()
	if daemonWasRunning {
		fmt.Println("Stopping daemon...")
		if _, err := config.SignalDaemon(syscall.SIGTERM); err != nil {
			fmt.Println(render(styleWarning, fmt.Sprintf("Warning: failed to stop daemon: %v", err)))
		} else if err := waitForStop(stopTimeout); err != nil {
			fmt.Println(render(styleWarning, fmt.Sprintf("Warning: %v", err)))
		}
	}

	selfPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to find self: %w", err)
	}
	selfPath, err = filepath.EvalSymlinks(selfPath)
	if err != nil {
		return fmt.Errorf("failed to resolve self: %w", err)
	}

	fmt.Println("Installing CLI...")
	if err := updater.ReplaceBinary(selfPath, cliTmpPath); err != nil {
		return fmt.Errorf("failed to update CLI: %w", err)
	}

	daemonBinPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("failed to find daemon binary: %w", err)
	}
	fmt.Println("Installing daemon...")
	if err := updater.ReplaceBinary(daemonBinPath, daemonTmpPath); err != nil {
		return fmt.Errorf("failed to update daemon: %w", err)
	}

	if daemonWasRunning {
		fmt.Println("Restarting daemon...")
		if err := startDaemon(); err != nil {
			fmt.Println(render(styleWarning, fmt.Sprintf("Warning: failed to restart daemon: %v", err)))
		}
	}

	fmt.Println(render(styleSuccess, fmt.Sprintf("Updated to v%s.", result.LatestVersion)))
	return nil
}
