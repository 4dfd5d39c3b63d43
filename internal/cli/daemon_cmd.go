package cli

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/opensync-io/opensync/internal/config"
	"github.com/opensync-io/opensync/internal/daemon/server"
)

// stopTimeout covers the drain of pending logs and the final hub sync.
const stopTimeout = 3 * time.Minute

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the OpenSync daemon",
	Long:  `Manage the opensyncd capture daemon process.`,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runDaemonStatus,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon, processing pending logs first",
	RunE:  runDaemonStop,
}

var daemonPowerToggleCmd = &cobra.Command{
	Use:   "power-toggle",
	Short: "Toggle simulated external power",
	Long: `Toggle simulated external power on a daemon running with
power.simulate set. Turning power off starts the grace period.`,
	RunE: runDaemonPowerToggle,
}

func init() {
	daemonCmd.AddCommand(daemonPowerToggleCmd)
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	running, info, err := config.IsDaemonRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if running && info != nil {
		fmt.Printf("Daemon is already running (PID %d, port %d).\n", info.PID, info.Port)
		return nil
	}

	fmt.Print("Starting daemon...")
	if startErr := startDaemon(); startErr != nil {
		fmt.Println()
		return startErr
	}

	_, freshInfo, err := config.IsDaemonRunning()
	if err != nil || freshInfo == nil {
		fmt.Println(" started.")
		return nil
	}

	fmt.Printf(" started (PID %d, port %d).\n", freshInfo.PID, freshInfo.Port)
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	running, info, err := config.IsDaemonRunning()
	if err != nil {
		return err
	}

	if !running || info == nil {
		fmt.Println("Daemon is not running.")
		return nil
	}

	uptime := time.Since(info.StartedAt).Truncate(time.Second)

	fmt.Println("Daemon is running.")
	fmt.Println(field("Host:", 8, info.Host))
	fmt.Println(field("Port:", 8, fmt.Sprint(info.Port)))
	fmt.Println(field("PID:", 8, fmt.Sprint(info.PID)))
	fmt.Println(field("Mode:", 8, info.Mode))
	fmt.Println(field("Uptime:", 8, uptime.String()))

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	defer cancel()
	status, err := server.Check(ctx, fmt.Sprintf("%s:%d", info.Host, info.Port))
	if err != nil {
		fmt.Println(field("Capture:", 8, render(styleError, "unreachable")))
		return nil
	}
	fmt.Println(field("Capture:", 8, captureBadge(status)))
	return nil
}

func captureBadge(status healthpb.HealthCheckResponse_ServingStatus) string {
	if status == healthpb.HealthCheckResponse_SERVING {
		return render(badgeServing, "polling")
	}
	return render(badgeNotServing, "stopping")
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	if running, _, _ := config.IsDaemonRunning(); !running {
		fmt.Println("Daemon is not running.")
		return nil
	}
	info, err := config.SignalDaemon(syscall.SIGTERM)
	if err != nil {
		return fmt.Errorf("failed to send stop signal: %w", err)
	}

	fmt.Printf("Stopping daemon (PID %d)...\n", info.PID)
	if err := waitForStop(stopTimeout); err != nil {
		return err
	}
	fmt.Println(render(styleSuccess, "Daemon stopped."))
	return nil
}

func runDaemonPowerToggle(cmd *cobra.Command, args []string) error {
	if running, _, _ := config.IsDaemonRunning(); !running {
		fmt.Println("Daemon is not running.")
		return nil
	}
	info, err := config.SignalDaemon(syscall.SIGUSR1)
	if err != nil {
		return fmt.Errorf("failed to signal daemon: %w", err)
	}
	fmt.Printf("Toggled simulated power on PID %d.\n", info.PID)
	return nil
}
