package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensync-io/opensync/internal/daemon"
	"github.com/opensync-io/opensync/internal/models"
)

var processForce bool

var processCmd = &cobra.Command{
	Use:   "process FILE|DIR...",
	Short: "Summarize and relay local flight logs",
	Long: `Process flight logs from disk through the same path as logs captured
from the SD card: summarize, record in the database and relay. A single
directory argument processes every file in it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVar(&processForce, "force", false, "reprocess logs that are already recorded")
}

func runProcess(cmd *cobra.Command, args []string) error {
	d, err := daemon.Open(cmd.Context(), settingsPath, func(s *models.Settings) {
		s.Force = s.Force || processForce
	})
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.RunFiles(cmd.Context(), args); err != nil {
		return err
	}
	fmt.Println(render(styleSuccess, fmt.Sprintf("Processed %d path(s).", len(args))))
	return nil
}
