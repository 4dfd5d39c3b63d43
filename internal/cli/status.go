package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/opensync-io/opensync/internal/config"
	"github.com/opensync-io/opensync/internal/daemon/server"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the daemon's capture health",
	Long: `Query the daemon's gRPC health endpoint. Exits non-zero unless the
capture engine is polling.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	info, err := config.LoadDaemonInfo()
	if err != nil {
		return fmt.Errorf("failed to load daemon info: %w", err)
	}
	if info == nil {
		return fmt.Errorf("daemon not running")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	defer cancel()
	status, err := server.Check(ctx, fmt.Sprintf("%s:%d", info.Host, info.Port))
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", render(styleLabel, server.CaptureService), captureBadge(status))
	if status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("capture is %s", status)
	}
	return nil
}
