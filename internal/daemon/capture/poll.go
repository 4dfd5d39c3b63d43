package capture

import (
	"context"
	"errors"
	"log"
	"regexp"
	"time"

	"github.com/opensync-io/opensync/internal/storage"
	"github.com/opensync-io/opensync/internal/store"
)

// LogNamePattern matches G1000 log file names, e.g.
// log_220917_124302_KJYO.csv.
var LogNamePattern = regexp.MustCompile(`^log_(\d+)_(\d+)_(.*)\.csv$`)

// maxClockDrift is the card/system time difference that triggers SetClock.
const maxClockDrift = 2 * time.Second

// poll runs one tick. Errors are logged; the next tick retries.
func (e *Engine) poll(ctx context.Context) {
	if e.opts.Link != nil {
		if e.opts.Standalone {
			e.checkLocation(ctx)
			return
		}
		e.checkLink(ctx)
	}
	if e.opts.Standalone || e.opts.Feed == nil {
		return
	}

	if !e.connect(ctx) {
		return
	}

	listing, err := e.opts.Feed.List(ctx, e.opts.Feed.LogDir())
	if err != nil {
		log.Printf("[capture] Lost connection to sd card: %v", err)
		e.connected = false
		return
	}

	files := listing[:0]
	for _, f := range listing {
		if LogNamePattern.MatchString(f.Name) {
			files = append(files, f)
		}
	}
	log.Printf("[capture] Card has %d files on it, %d files pending", len(files), len(e.pending))

	for _, f := range files {
		if ctx.Err() != nil {
			return
		}
		if !e.wanted(ctx, f.Name) {
			continue
		}
		if !e.observe(ctx, f) {
			return
		}
	}
}

// connect ensures the feed answers, reconnecting after a lost connection.
func (e *Engine) connect(ctx context.Context) bool {
	if e.connected {
		return true
	}
	version, err := e.opts.Feed.Version(ctx)
	if err != nil {
		log.Printf("[capture] Waiting for connection to sd card: %v", err)
		return false
	}
	log.Printf("[capture] Connected to sd card: %s", version)
	e.connected = true
	return true
}

// wanted reports whether a listed file still needs processing.
func (e *Engine) wanted(ctx context.Context, name string) bool {
	if e.forced[name] {
		return false
	}
	_, err := e.opts.Store.FindByName(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return true
	case err != nil:
		log.Printf("[capture] Failed to look up %s: %v", name, err)
		return false
	case e.opts.Force:
		return true
	default:
		return false
	}
}

// observe advances the pending entry for f. It returns false when the
// rest of the tick must be skipped.
func (e *Engine) observe(ctx context.Context, f storage.File) bool {
	now := e.now()
	entry, ok := e.pending[f.Name]
	if !ok {
		e.pending[f.Name] = &pendingEntry{size: f.Size, seenAt: now}
		return true
	}

	if entry.size != f.Size {
		// Still being written. Download now so the log survives a power cut
		// that ends the flight.
		log.Printf("[capture] Downloading %s (%d bytes)", f.Name, f.Size)
		data, err := e.opts.Feed.Download(ctx, f.Handle)
		if err != nil {
			e.downloadFailed(f.Name, err)
			return false
		}
		entry.size, entry.data, entry.seenAt = f.Size, data, now
		log.Printf("[capture] File %s current size %d", f.Name, f.Size)
		return true
	}

	if now.Sub(entry.seenAt) < e.opts.StableAfter {
		return true
	}

	if entry.data == nil {
		data, err := e.opts.Feed.Download(ctx, f.Handle)
		if err != nil {
			e.downloadFailed(f.Name, err)
			return false
		}
		entry.data = data
	}

	delete(e.pending, f.Name)
	log.Printf("[capture] Processing %s at %s", f.Name, f.Handle)
	e.handle(ctx, f.Name, entry.data)
	return true
}

func (e *Engine) downloadFailed(name string, err error) {
	var trErr *storage.TransportError
	if errors.As(err, &trErr) {
		log.Printf("[capture] Lost connection to sd card downloading %s: %v", name, err)
		e.connected = false
		return
	}
	log.Printf("[capture] Failed to download %s: %v", name, err)
}

// checkLink runs the status transactions and corrects the system clock
// from the card when asked to.
func (e *Engine) checkLink(ctx context.Context) {
	st, err := e.opts.Link.ReportStatus(ctx)
	if err != nil {
		log.Printf("[capture] Failed to read notecard status: %v", err)
		return
	}
	if st.CardTime.IsZero() {
		log.Printf("[capture] Warning: failed to obtain card time")
		return
	}

	now := e.now().UTC()
	drift := now.Sub(st.CardTime).Abs()
	log.Printf("[capture] Card time %s system time %s delta %s", st.CardTime.Format(time.RFC3339), now.Format(time.RFC3339), drift)
	if drift > maxClockDrift && e.opts.SetClock != nil {
		if err := e.opts.SetClock(st.CardTime); err != nil {
			log.Printf("[capture] Failed to set time: %v", err)
		}
	}
}

func (e *Engine) checkLocation(ctx context.Context) {
	lat, lon, ok, err := e.opts.Link.Location(ctx)
	switch {
	case err != nil:
		log.Printf("[capture] Failed to read location: %v", err)
	case !ok:
		log.Printf("[capture] No GPS fix")
	default:
		log.Printf("[capture] Location %.5f,%.5f", lat, lon)
	}
}
