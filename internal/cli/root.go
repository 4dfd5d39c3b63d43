// Package cli implements the opensync CLI commands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// settingsPath is the --config flag; empty selects ~/.opensync/settings.yaml.
var settingsPath string

var rootCmd = &cobra.Command{
	Use:   "opensync",
	Short: "Capture G1000 flight logs and relay their summaries",
	Long: `OpenSync watches a WiFi SD card in the G1000 for new flight logs,
summarizes each completed log and relays it over a Blues Notecard.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "settings file (default ~/.opensync/settings.yaml)")

	// Add subcommands (alphabetical)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(notecardCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}
