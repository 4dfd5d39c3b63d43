package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensync-io/opensync/internal/config"
	"github.com/opensync-io/opensync/internal/notecard"
)

var (
	notecardPort      string
	notecardTransport string

	monitorInterval time.Duration
	syncTimeout     time.Duration

	postName    string
	postContent string
	postChunk   int
	postTimeout time.Duration
	postNoWait  bool
)

var notecardCmd = &cobra.Command{
	Use:   "notecard",
	Short: "Talk to the Notecard",
	Long: `Run Notecard operations directly. Stop the daemon first: only one
process may own the card's port.`,
}

var notecardMonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print the card's status periodically",
	RunE:  runNotecardMonitor,
}

var notecardModeCmd = &cobra.Command{
	Use:   "mode [periodic|continuous|minimum|off]",
	Short: "Show or set the hub mode",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runNotecardMode,
}

var notecardSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync with Notehub and wait for it to finish",
	RunE:  runNotecardSync,
}

var notecardPostCmd = &cobra.Command{
	Use:   "post ROUTE FILE",
	Short: "Upload a file through a Notehub route with web.post",
	Args:  cobra.ExactArgs(2),
	RunE:  runNotecardPost,
}

var notecardReqCmd = &cobra.Command{
	Use:   "req JSON",
	Short: "Send a raw request and print the response",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotecardReq,
}

func init() {
	notecardCmd.PersistentFlags().StringVar(&notecardPort, "port", "", "card port (default from settings)")
	notecardCmd.PersistentFlags().StringVar(&notecardTransport, "transport", "", "i2c or serial (default from settings)")

	notecardMonitorCmd.Flags().DurationVar(&monitorInterval, "interval", 10*time.Second, "time between status reports")
	notecardSyncCmd.Flags().DurationVar(&syncTimeout, "timeout", 60*time.Second, "how long to wait for the sync")

	notecardPostCmd.Flags().StringVar(&postName, "name", "", "path appended to the route URL")
	notecardPostCmd.Flags().StringVar(&postContent, "content", "", "content type of the payload")
	notecardPostCmd.Flags().IntVar(&postChunk, "chunk", notecard.DefaultChunkSize, "fragment size in bytes")
	notecardPostCmd.Flags().DurationVar(&postTimeout, "timeout", 0, "connection timeout (0 waits forever)")
	notecardPostCmd.Flags().BoolVar(&postNoWait, "no-wait", false, "post without waiting for a connection")

	notecardCmd.AddCommand(notecardModeCmd)
	notecardCmd.AddCommand(notecardMonitorCmd)
	notecardCmd.AddCommand(notecardPostCmd)
	notecardCmd.AddCommand(notecardReqCmd)
	notecardCmd.AddCommand(notecardSyncCmd)
}

// openCard opens the card configured in settings, with flag overrides.
func openCard() (*notecard.Card, func(), error) {
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, nil, err
	}
	port := settings.Notecard.Port
	if notecardPort != "" {
		port = notecardPort
	}
	kind := settings.Notecard.Transport
	if notecardTransport != "" {
		kind = notecardTransport
	}

	tr, err := notecard.Open(kind, port)
	if err != nil {
		return nil, nil, err
	}
	return notecard.New(tr), func() { _ = tr.Close() }, nil
}

func runNotecardMonitor(cmd *cobra.Command, args []string) error {
	card, closeCard, err := openCard()
	if err != nil {
		return err
	}
	defer closeCard()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	for {
		st, err := card.ReportStatus(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(st)

		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printStatus(st *notecard.Status) {
	connected := render(styleWarning, "disconnected")
	if st.Connected {
		connected = render(styleSuccess, "connected")
	}
	cardTime := "unknown"
	if !st.CardTime.IsZero() {
		cardTime = st.CardTime.Format(time.RFC3339)
	}
	location := "no fix"
	if st.HasLocation {
		location = fmt.Sprintf("%.5f,%.5f", st.Lat, st.Lon)
	}
	fmt.Printf("%s %s bars=%d voltage=%.2f motion=%d time=%s location=%s\n",
		render(styleHint, time.Now().Format("15:04:05")),
		connected, st.Bars, st.Voltage, st.Motion, cardTime, location)
}

func runNotecardMode(cmd *cobra.Command, args []string) error {
	card, closeCard, err := openCard()
	if err != nil {
		return err
	}
	defer closeCard()

	if len(args) == 0 {
		mode, err := card.Mode(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(mode)
		return nil
	}
	return card.SetMode(cmd.Context(), notecard.Mode(args[0]))
}

func runNotecardSync(cmd *cobra.Command, args []string) error {
	card, closeCard, err := openCard()
	if err != nil {
		return err
	}
	defer closeCard()

	start := time.Now()
	if err := card.SyncAndWait(cmd.Context(), syncTimeout); err != nil {
		return err
	}
	fmt.Printf("Sync finished in %s.\n", time.Since(start).Truncate(time.Second))
	return nil
}

func runNotecardPost(cmd *cobra.Command, args []string) error {
	payload, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}

	card, closeCard, err := openCard()
	if err != nil {
		return err
	}
	defer closeCard()

	result, err := card.WebPost(cmd.Context(), args[0], payload, notecard.PostOptions{
		Name:              postName,
		Content:           postContent,
		ChunkSize:         postChunk,
		NoWait:            postNoWait,
		ConnectionTimeout: postTimeout,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Posted %d bytes in %d fragment(s), result %d.\n", len(payload), result.Fragments, result.Response.Int("result"))
	if len(result.Body) > 0 {
		fmt.Println(string(result.Body))
	}
	return nil
}

func runNotecardReq(cmd *cobra.Command, args []string) error {
	var req notecard.Request
	if err := json.Unmarshal([]byte(args[0]), &req); err != nil {
		return fmt.Errorf("invalid request JSON: %w", err)
	}
	if req.Name() == "" {
		return fmt.Errorf(`request must have a "req" field`)
	}

	card, closeCard, err := openCard()
	if err != nil {
		return err
	}
	defer closeCard()

	rsp, err := card.Transaction(cmd.Context(), req)
	if err != nil {
		return err
	}
	out, err := json.Marshal(rsp)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
