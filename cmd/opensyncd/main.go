// Package main is the entry point for the opensyncd capture daemon.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/opensync-io/opensync/internal/cli"
	"github.com/opensync-io/opensync/internal/config"
	"github.com/opensync-io/opensync/internal/daemon"
)

func main() {
	os.Exit(start())
}

// start runs the daemon and returns its exit code, letting deferred cleanup
// run before the process exits.
func start() int {
	// Parse flags
	configPath := flag.String("config", "", "Settings file (default ~/.opensync/settings.yaml)")
	foreground := flag.Bool("foreground", false, "Log to stderr instead of the daemon log file")
	files := flag.String("files", "", "Comma-separated files or a directory to process instead of polling the SD card")
	version := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *version {
		cli.PrintVersion("opensyncd")
		return 0
	}

	log.SetPrefix("[opensyncd] ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	// Ensure global directory exists
	if err := config.EnsureGlobalDir(); err != nil {
		log.Fatalf("Failed to create global directory: %v", err)
	}

	if !*foreground {
		closeLog, err := redirectLog()
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer closeLog()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *files != "" {
		return runFiles(ctx, *configPath, strings.Split(*files, ","))
	}

	// Check if daemon is already running
	running, info, err := config.IsDaemonRunning()
	if err != nil {
		log.Fatalf("Failed to check daemon status: %v", err)
	}
	if running {
		log.Fatalf("Daemon already running on port %d (PID %d)", info.Port, info.PID)
	}

	return run(ctx, *configPath)
}

func run(ctx context.Context, configPath string) int {
	d, err := daemon.Open(ctx, configPath)
	if err != nil {
		log.Printf("Failed to start: %v", err)
		return 1
	}
	defer d.Close()

	// SIGUSR1 toggles simulated power for bench testing.
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)
	go func() {
		for range usr1 {
			if !d.TogglePower() {
				log.Printf("[power] Ignoring SIGUSR1, power is not simulated")
			}
		}
	}()

	err = d.Run(ctx)
	if err != nil {
		log.Printf("Daemon stopped: %v", err)
	} else {
		log.Printf("Daemon stopped")
	}
	code := d.ExitCode(err)
	if code == daemon.ExitPowerOff {
		log.Printf("Exiting with %d to power off the host", code)
	}
	return code
}

func runFiles(ctx context.Context, configPath string, paths []string) int {
	d, err := daemon.Open(ctx, configPath)
	if err != nil {
		log.Printf("Failed to start: %v", err)
		return 1
	}
	defer d.Close()

	if err := d.RunFiles(ctx, paths); err != nil {
		log.Printf("Failed to process files: %v", err)
		return 1
	}
	return 0
}

// redirectLog appends log output to opensyncd.log in the global directory.
func redirectLog() (func(), error) {
	path, err := config.GlobalDaemonLogFile()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return func() { _ = f.Close() }, nil
}
