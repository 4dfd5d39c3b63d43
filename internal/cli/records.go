package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opensync-io/opensync/internal/config"
	"github.com/opensync-io/opensync/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:     "records",
	Aliases: []string{"ls"},
	Short:   "List processed flight logs",
	RunE:    runRecords,
}

func runRecords(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return err
	}
	db, err := store.Open(config.DatabaseFile(settings.DataPath))
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(render(styleHint, "No flight logs processed yet."))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROCESSED\tLOG\tORIGIN\tHOBBS\tSTATUS")
	for _, rec := range records {
		status := render(styleSuccess, "ok")
		if rec.Error != "" {
			status = render(styleError, rec.Error)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\n",
			rec.ProcessedAt.Local().Format("2006-01-02 15:04"),
			rec.DisplayName,
			rec.Origin,
			rec.Summary.Hobbs(),
			status,
		)
	}
	return w.Flush()
}
