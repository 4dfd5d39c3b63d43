// Package relay forwards processed flight records to the cloud.
package relay

import (
	"context"
	"errors"
	"log"

	"github.com/opensync-io/opensync/internal/models"
)

// Notifier delivers a processed record, optionally with the raw log.
type Notifier interface {
	Notify(ctx context.Context, rec *models.ProcessedRecord, raw []byte) error
}

// Gate drops records that should not be reported: failed parses and
// flights shorter than MinHobbs unless ReportZeroHour is set.
type Gate struct {
	Next           Notifier
	MinHobbs       float64
	ReportZeroHour bool
}

// Reportable reports whether rec passes the gate.
func (g *Gate) Reportable(rec *models.ProcessedRecord) bool {
	if rec == nil || rec.Error != "" {
		return false
	}
	if g.ReportZeroHour {
		return true
	}
	return rec.Summary != nil && rec.Summary.Hobbs() >= g.MinHobbs
}

func (g *Gate) Notify(ctx context.Context, rec *models.ProcessedRecord, raw []byte) error {
	if !g.Reportable(rec) {
		if rec != nil && rec.Error == "" {
			log.Printf("[relay] Skipping zero hour flight %s", rec.DisplayName)
		}
		return nil
	}
	return g.Next.Notify(ctx, rec, raw)
}

// Multi notifies every relay in order. A failing relay does not stop the
// ones after it.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, rec *models.ProcessedRecord, raw []byte) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, rec, raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noter queues a Notehub note.
type Noter interface {
	AddNote(ctx context.Context, body any) error
}

// NoteRelay sends the record as a note body.
type NoteRelay struct {
	Card Noter
}

func (n *NoteRelay) Notify(ctx context.Context, rec *models.ProcessedRecord, raw []byte) error {
	log.Printf("[relay] Sending note for %s", rec.DisplayName)
	return n.Card.AddNote(ctx, rec)
}
