package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/opensync-io/opensync/internal/g1000"
	"github.com/opensync-io/opensync/internal/models"
	"github.com/opensync-io/opensync/internal/notecard"
	"github.com/opensync-io/opensync/internal/store"
)

// UnknownOrigin is used when neither GPS nor the file name gives an origin.
const UnknownOrigin = "UNK"

// handle processes one complete log and relays the result. Failures of
// either step are logged and contained here.
func (e *Engine) handle(ctx context.Context, name string, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[capture] Unexpected error processing %s: %v", name, r)
		}
	}()

	rec, err := e.ProcessFile(ctx, name, raw)
	if err != nil {
		log.Printf("[capture] Failed to process %s: %v", name, err)
		return
	}
	if rec == nil || rec.Error != "" || e.opts.Relay == nil {
		return
	}

	if err := e.opts.Relay.Notify(ctx, rec, raw); err != nil {
		var timeoutErr *notecard.ConnectionTimeoutError
		if errors.As(err, &timeoutErr) {
			log.Printf("[capture] Warning: abandoned upload of %s: %v", rec.DisplayName, err)
			return
		}
		log.Printf("[capture] Failed to relay %s: %v", rec.DisplayName, err)
	}
}

// ProcessFile summarizes a raw log and persists the record. A log that has
// already been processed returns a nil record unless Force is set. A log
// that cannot be parsed is persisted with its Error set and no summary.
func (e *Engine) ProcessFile(ctx context.Context, name string, raw []byte) (*models.ProcessedRecord, error) {
	base := filepath.Base(name)

	existing, err := e.opts.Store.FindByName(ctx, base)
	switch {
	case err == nil && !e.opts.Force:
		log.Printf("[capture] Already have processed %s", base)
		return nil, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to look up %s: %w", base, err)
	}

	rec := models.NewProcessedRecord(base)
	rec.Origin = originFromName(base)

	if e.opts.Archive != nil {
		path, err := e.opts.Archive.Save(base, raw)
		if err != nil {
			log.Printf("[capture] Failed to archive %s: %v", base, err)
		} else {
			rec.DataPath = path
		}
	}

	info, ts, err := g1000.Parse(raw)
	if err != nil {
		log.Printf("[capture] Failed to parse %s: %v", base, err)
		rec.Error = err.Error()
	} else {
		summary := g1000.Summarize(ts, e.opts.Geocoder)
		summary.AirframeInfo = info
		summary.FileName = base
		if summary.Origin != "" {
			rec.Origin = summary.Origin
		} else {
			summary.Origin = rec.Origin
		}
		rec.Summary = summary
	}

	if existing != nil {
		log.Printf("[capture] Updating record %s", base)
		err = e.opts.Store.Update(ctx, rec, base)
	} else {
		log.Printf("[capture] Inserting record %s", base)
		err = e.opts.Store.Insert(ctx, rec)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist %s: %w", base, err)
	}
	if e.opts.Force {
		e.forced[base] = true
	}
	return rec, nil
}

// ProcessFiles runs the offline path over files, or over the contents of a
// single directory, in name order.
func (e *Engine) ProcessFiles(ctx context.Context, paths []string) error {
	paths = slices.Clone(paths)
	if len(paths) == 1 {
		if info, err := os.Stat(paths[0]); err == nil && info.IsDir() {
			entries, err := os.ReadDir(paths[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", paths[0], err)
			}
			dir := paths[0]
			paths = nil
			for _, entry := range entries {
				paths = append(paths, filepath.Join(dir, entry.Name()))
			}
		}
	}
	sort.Slice(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("[capture] Failed to read %s: %v", path, err)
			continue
		}
		e.handle(ctx, path, raw)
	}
	return nil
}

// originFromName extracts the departure airport the G1000 writes into the
// log name. Unknown airports are padded with underscores.
func originFromName(name string) string {
	m := LogNamePattern.FindStringSubmatch(name)
	if m == nil {
		log.Printf("[capture] Warning: couldn't extract flight log metadata from file name %s", name)
		return UnknownOrigin
	}
	if origin := strings.Trim(m[3], "_"); origin != "" {
		return origin
	}
	return UnknownOrigin
}
