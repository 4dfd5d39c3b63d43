package cli

import (
	"github.com/spf13/cobra"

	"github.com/opensync-io/opensync/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"ui"},
	Short:   "Open the interactive dashboard",
	Long: `Open a terminal dashboard with the processed flight logs, the daemon's
capture state and the tail of its log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Run(settingsPath)
	},
}
