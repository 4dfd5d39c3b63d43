package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensync-io/opensync/internal/config"
	"github.com/opensync-io/opensync/internal/g1000"
)

var pruneColumns []string

var pruneCmd = &cobra.Command{
	Use:   "prune IN OUT",
	Short: "Write a copy of a log with only the engine and fuel columns",
	Args:  cobra.ExactArgs(2),
	RunE:  runPrune,
}

func init() {
	pruneCmd.Flags().StringSliceVar(&pruneColumns, "columns", nil, "columns to keep (default engine and fuel columns)")
}

func runPrune(cmd *cobra.Command, args []string) error {
	keep := pruneColumns
	if len(keep) == 0 {
		keep = g1000.DefaultKeepColumns
	}

	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer in.Close()

	var out bytes.Buffer
	if err := g1000.Prune(in, &out, keep); err != nil {
		return fmt.Errorf("failed to prune %s: %w", args[0], err)
	}
	data := out.Bytes()
	if err := config.WriteFileAtomic(args[1], data); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d bytes).\n", args[1], len(data))
	return nil
}
