package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opensync-io/opensync/internal/g1000"
	"github.com/opensync-io/opensync/internal/geo"
	"github.com/opensync-io/opensync/internal/models"
)

var (
	summarizeJSON     bool
	summarizeAirports string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize FILE...",
	Short: "Print the flight summary of G1000 logs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSummarize,
}

func init() {
	summarizeCmd.Flags().BoolVar(&summarizeJSON, "json", false, "print summaries as JSON")
	summarizeCmd.Flags().StringVar(&summarizeAirports, "airports", "", "airport CSV used to name origin and destination")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	var geocoder g1000.Geocoder
	if summarizeAirports != "" {
		idx, err := geo.Load(summarizeAirports)
		if err != nil {
			return err
		}
		geocoder = idx
	}

	for _, path := range args {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		info, ts, err := g1000.Parse(raw)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		summary := g1000.Summarize(ts, geocoder)
		summary.AirframeInfo = info
		summary.FileName = filepath.Base(path)

		if summarizeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
			continue
		}
		printSummary(summary)
	}
	return nil
}

func printSummary(s *models.FlightSummary) {
	fmt.Println(render(styleHeader, s.FileName))
	for _, row := range g1000.Rows(s) {
		fmt.Println(field(row[0], 16, row[1]))
	}
	fmt.Println()
}
