// Package capture runs the loop that watches the SD card, decides when a
// flight log is complete and hands it to the summarizer and the relays.
package capture

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"github.com/opensync-io/opensync/internal/g1000"
	"github.com/opensync-io/opensync/internal/models"
	"github.com/opensync-io/opensync/internal/notecard"
	"github.com/opensync-io/opensync/internal/relay"
	"github.com/opensync-io/opensync/internal/storage"
)

// State is the engine lifecycle state.
type State int32

const (
	StatePolling State = iota
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "POLLING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// ErrPowerLost is returned by Run when it stopped because external power
// stayed off past the grace period.
var ErrPowerLost = errors.New("external power lost")

const powerSamplePeriod = time.Second

// Store persists processed records, keyed uniquely by name.
type Store interface {
	FindByName(ctx context.Context, name string) (*models.ProcessedRecord, error)
	Insert(ctx context.Context, rec *models.ProcessedRecord) error
	Update(ctx context.Context, rec *models.ProcessedRecord, name string) error
}

// DeviceLink is the read-only view of the Notecard used on each tick.
type DeviceLink interface {
	ReportStatus(ctx context.Context) (*notecard.Status, error)
	Location(ctx context.Context) (lat, lon float64, ok bool, err error)
}

// PowerMonitor reports sustained external power loss.
type PowerMonitor interface {
	Check() bool
	BatteryAvailable(ctx context.Context) bool
}

// Archive keeps a copy of each raw log and returns where it was written.
type Archive interface {
	Save(name string, data []byte) (string, error)
}

// Options wires the engine's collaborators. Only Store is required; Feed
// is required unless Standalone is set.
type Options struct {
	Feed     storage.Feed
	Store    Store
	Relay    relay.Notifier
	Link     DeviceLink
	Power    PowerMonitor
	Geocoder g1000.Geocoder
	Archive  Archive

	PollPeriod  time.Duration
	StableAfter time.Duration
	Force       bool
	Standalone  bool

	// SetClock, when set, is called with the card time if the system clock
	// has drifted from it.
	SetClock func(time.Time) error

	// Wake triggers an early poll.
	Wake <-chan struct{}
}

type pendingEntry struct {
	size   int64
	data   []byte // nil until downloaded
	seenAt time.Time
}

// Engine is the capture state machine. Run, ProcessFile and ProcessFiles
// must be called from a single goroutine; State is safe from any.
type Engine struct {
	opts  Options
	state atomic.Int32

	pending   map[string]*pendingEntry
	forced    map[string]bool
	connected bool
	battery   bool

	now         func() time.Time
	powerPeriod time.Duration
}

// New creates an engine.
func New(opts Options) *Engine {
	if opts.PollPeriod <= 0 {
		opts.PollPeriod = 10 * time.Second
	}
	return &Engine{
		opts:        opts,
		pending:     make(map[string]*pendingEntry),
		forced:      make(map[string]bool),
		now:         time.Now,
		powerPeriod: powerSamplePeriod,
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	if old := State(e.state.Swap(int32(s))); old != s {
		log.Printf("[capture] %s -> %s", old, s)
	}
}

// Pending returns the names waiting to stabilize, sorted.
func (e *Engine) Pending() []string {
	names := make([]string, 0, len(e.pending))
	for name := range e.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run polls until ctx is cancelled or power is lost, then drains pending
// files. It returns ErrPowerLost in the latter case.
func (e *Engine) Run(ctx context.Context) error {
	e.setState(StatePolling)

	if e.opts.Power != nil {
		e.battery = e.opts.Power.BatteryAvailable(ctx)
		if !e.battery {
			log.Printf("[capture] Warning: no battery is available, pending files will not be processed on shutdown")
		}
	}

	pollTicker := time.NewTicker(e.opts.PollPeriod)
	defer pollTicker.Stop()

	var powerC <-chan time.Time
	if e.opts.Power != nil {
		powerTicker := time.NewTicker(e.powerPeriod)
		defer powerTicker.Stop()
		powerC = powerTicker.C
	}

	if e.powerExpired() {
		return e.powerShutdown(ctx)
	}
	e.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[capture] Stopping: %v", ctx.Err())
			e.drain(context.WithoutCancel(ctx))
			e.setState(StateTerminated)
			return nil
		case <-powerC:
			if e.powerExpired() {
				return e.powerShutdown(ctx)
			}
		case <-pollTicker.C:
			if e.powerExpired() {
				return e.powerShutdown(ctx)
			}
			e.poll(ctx)
		case <-e.opts.Wake:
			e.poll(ctx)
		}
	}
}

// powerExpired samples the monitor. The grace period applies with or
// without a battery, so a brief dip never ends the loop.
func (e *Engine) powerExpired() bool {
	if e.opts.Power == nil {
		return false
	}
	return e.opts.Power.Check()
}

func (e *Engine) powerShutdown(ctx context.Context) error {
	log.Printf("[capture] External power lost for too long, initiating shutdown")
	if e.battery {
		e.drain(context.WithoutCancel(ctx))
	} else if len(e.pending) > 0 {
		log.Printf("[capture] Warning: no battery, abandoning %d pending files", len(e.pending))
	}
	e.setState(StateTerminated)
	return ErrPowerLost
}

// drain processes every pending entry that has been downloaded.
func (e *Engine) drain(ctx context.Context) {
	e.setState(StateShuttingDown)
	log.Printf("[capture] Beginning shutdown process, processing %d pending files", len(e.pending))
	for _, name := range e.Pending() {
		entry := e.pending[name]
		delete(e.pending, name)
		if entry.data == nil {
			log.Printf("[capture] Warning: skipping %s, it was never downloaded", name)
			continue
		}
		e.handle(ctx, name, entry.data)
	}
}
