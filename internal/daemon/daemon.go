// Package daemon assembles the capture engine and its collaborators from
// settings and runs them.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/opensync-io/opensync/internal/config"
	"github.com/opensync-io/opensync/internal/daemon/capture"
	"github.com/opensync-io/opensync/internal/daemon/power"
	"github.com/opensync-io/opensync/internal/daemon/server"
	"github.com/opensync-io/opensync/internal/daemon/watcher"
	"github.com/opensync-io/opensync/internal/geo"
	"github.com/opensync-io/opensync/internal/models"
	"github.com/opensync-io/opensync/internal/notecard"
	"github.com/opensync-io/opensync/internal/relay"
	"github.com/opensync-io/opensync/internal/storage"
	"github.com/opensync-io/opensync/internal/store"
)

// ExitPowerOff is the exit code that asks the service manager to power the
// host off.
const ExitPowerOff = 255

// Daemon owns every resource the capture engine uses.
type Daemon struct {
	Settings *models.Settings
	Engine   *capture.Engine

	settingsPath string
	card         *notecard.Card
	transport    io.Closer
	store        *store.SQLite
	simulated    *power.Simulated
	watcher      *watcher.Watcher
}

// Override adjusts loaded settings before the daemon is built.
type Override func(*models.Settings)

// Open loads settings from settingsPath (empty for the default location)
// and builds the daemon. When the Notecard is enabled its startup sequence
// runs here, so Open may block until the card's first sync completes.
func Open(ctx context.Context, settingsPath string, overrides ...Override) (*Daemon, error) {
	path, err := config.SettingsPath(settingsPath)
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(settings)
	}

	d := &Daemon{Settings: settings, settingsPath: path}
	if err := d.open(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) open(ctx context.Context) error {
	s := d.Settings

	if s.Notecard.Enabled {
		if err := d.startNotecard(ctx); err != nil {
			return err
		}
	}

	db, err := store.Open(config.DatabaseFile(s.DataPath))
	if err != nil {
		return err
	}
	d.store = db

	opts := capture.Options{
		Store:       db,
		Archive:     config.NewLogArchive(s.DataPath),
		Relay:       BuildRelay(s, d.card),
		PollPeriod:  s.PollPeriod,
		StableAfter: s.SDCard.StableAfter,
		Force:       s.Force,
		Standalone:  s.Mode == models.ModeStandalone,
	}

	if !opts.Standalone {
		feed, err := storage.New(s.SDCard, nil)
		if err != nil {
			return err
		}
		opts.Feed = feed
	}

	if s.Airports != "" {
		idx, err := geo.Load(s.Airports)
		if err != nil {
			return err
		}
		log.Printf("[capture] Loaded %d airports from %s", idx.Len(), s.Airports)
		opts.Geocoder = idx
	}

	if d.card != nil {
		opts.Link = d.card
		if s.Notecard.SetClock {
			opts.SetClock = setSystemClock
		}
	}

	if s.Power.EnableUPS {
		src, err := d.powerSource()
		if err != nil {
			return err
		}
		opts.Power = power.NewMonitor(src, s.Grace())
	}

	w, err := watcher.New(capture.LogNamePattern)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	d.watcher = w
	if s.SDCard.Type == models.SDCardLocal && !opts.Standalone {
		if err := w.WatchDir(s.SDCard.LocalDir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", s.SDCard.LocalDir, err)
		}
		opts.Wake = w.Wake()
	}
	if config.FileExists(d.settingsPath) {
		if err := w.WatchSettings(d.settingsPath); err != nil {
			log.Printf("[watcher] Failed to watch settings: %v", err)
		}
	}

	d.Engine = capture.New(opts)
	return nil
}

func (d *Daemon) startNotecard(ctx context.Context) error {
	s := d.Settings
	tr, err := notecard.Open(s.Notecard.Transport, s.Notecard.Port)
	if err != nil {
		return err
	}
	d.transport = tr
	d.card = notecard.New(tr)

	env, err := d.card.Startup(ctx, s.Notecard.Product)
	if err != nil {
		return err
	}
	fileKeys, err := config.SettingsKeys(d.settingsPath)
	if err != nil {
		return err
	}
	if applied := config.ApplyEnv(s, env, fileKeys); len(applied) > 0 {
		log.Printf("[config] Settings from notecard environment: %s", strings.Join(applied, ", "))
	}

	if s.Notecard.EnableTracking {
		if err := d.card.EnableTracking(ctx); err != nil {
			return err
		}
	}
	return d.card.SyncAndWait(ctx, s.Notecard.SyncTimeout)
}

func (d *Daemon) powerSource() (power.Source, error) {
	if d.Settings.Power.Simulate {
		d.simulated = power.NewSimulated()
		log.Printf("[power] Using simulated power, send SIGUSR1 to toggle")
		return d.simulated, nil
	}
	return power.NewGPIO()
}

// BuildRelay assembles the relay chain for s. card may be nil, in which
// case Notehub notes are skipped and Savvy uploads go direct.
func BuildRelay(s *models.Settings, card *notecard.Card) relay.Notifier {
	var chain relay.Multi
	if card != nil {
		chain = append(chain, &relay.NoteRelay{Card: card})
	}
	if s.SavvyEnabled() {
		var poster relay.Poster
		if card != nil && !s.Savvy.Direct {
			poster = card
		}
		chain = append(chain, relay.NewSavvyRelay(s.Savvy, poster))
	}
	return &relay.Gate{
		Next:           chain,
		MinHobbs:       s.MinHobbs,
		ReportZeroHour: s.ReportZeroHourFlights,
	}
}

// TogglePower flips simulated power. It reports false when power is not
// simulated.
func (d *Daemon) TogglePower() bool {
	if d.simulated == nil {
		return false
	}
	d.simulated.Toggle()
	return true
}

// Run serves the status endpoint, records daemon.yaml and runs the engine
// until ctx is cancelled or power is lost. The final hub sync runs in
// either case.
func (d *Daemon) Run(ctx context.Context) error {
	srv, err := server.New(d.Settings.StatusAddr)
	if err != nil {
		return err
	}
	go func() {
		if err := srv.Serve(); err != nil {
			log.Printf("[server] Server error: %v", err)
		}
	}()
	defer srv.Stop()

	mirrorCtx, stopMirror := context.WithCancel(context.WithoutCancel(ctx))
	defer stopMirror()
	go srv.Mirror(mirrorCtx, d.Engine)

	info := models.NewDaemonInfo("localhost", srv.Port(), os.Getpid(), d.Settings.Mode)
	if err := config.SaveDaemonInfo(info); err != nil {
		return fmt.Errorf("failed to write daemon info: %w", err)
	}
	defer func() {
		if err := config.RemoveDaemonInfo(); err != nil {
			log.Printf("Failed to remove daemon info: %v", err)
		}
	}()
	log.Printf("Daemon started on port %d (PID %d)", srv.Port(), os.Getpid())

	d.watcher.Start()
	go d.logSettingsChanges(mirrorCtx)

	runErr := d.Engine.Run(ctx)
	srv.SetState(d.Engine.State())
	d.finalSync(ctx)
	return runErr
}

// RunFiles processes local files through the same path as captured logs.
func (d *Daemon) RunFiles(ctx context.Context, paths []string) error {
	err := d.Engine.ProcessFiles(ctx, paths)
	d.finalSync(ctx)
	return err
}

func (d *Daemon) finalSync(ctx context.Context) {
	if d.card == nil {
		return
	}
	log.Printf("[notecard] Running final sync")
	if err := d.card.SyncAndWait(context.WithoutCancel(ctx), d.Settings.Notecard.SyncTimeout); err != nil {
		log.Printf("[notecard] Final sync failed: %v", err)
	}
}

func (d *Daemon) logSettingsChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.watcher.Events():
			if ev.Type == watcher.EventSettingsChanged {
				log.Printf("[config] %s changed, restart opensyncd to apply", ev.Path)
			}
		}
	}
}

// ExitCode maps Run's result to a process exit code.
func (d *Daemon) ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, capture.ErrPowerLost) && d.Settings.EnableShutdown:
		return ExitPowerOff
	default:
		return 1
	}
}

// Close releases the daemon's resources.
func (d *Daemon) Close() {
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			log.Printf("[storage] Failed to close store: %v", err)
		}
	}
	if d.transport != nil {
		if err := d.transport.Close(); err != nil {
			log.Printf("[notecard] Failed to close transport: %v", err)
		}
	}
}

// setSystemClock sets the host clock. It needs root.
func setSystemClock(t time.Time) error {
	out, err := exec.Command("date", "-u", "-s", t.UTC().Format("2006-01-02 15:04:05")).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to set system clock: %w: %s", err, strings.TrimSpace(string(out)))
	}
	log.Printf("[capture] System clock set to %s", t.UTC().Format(time.RFC3339))
	return nil
}
