package notecard

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// EnvPrefix marks Notehub environment variables that override settings.
const EnvPrefix = "opensync_"

// Status is a snapshot of the card's health, gathered with read-only
// transactions.
type Status struct {
	Connected   bool
	SyncPending bool
	Bars        int
	Voltage     float64
	Motion      int
	CardTime    time.Time // zero when the card has no time yet
	Lat, Lon    float64
	HasLocation bool
}

// ReportStatus runs the observability transactions and requests a sync if
// one is pending, without waiting for it.
func (c *Card) ReportStatus(ctx context.Context) (*Status, error) {
	st := &Status{}

	rsp, err := c.tr.Transaction(ctx, NewRequest("hub.status"))
	if err != nil {
		return nil, err
	}
	st.Connected = rsp.Bool("connected")

	rsp, err = c.tr.Transaction(ctx, NewRequest("hub.sync.status"))
	if err != nil {
		return nil, err
	}
	if rsp.Bool("sync") {
		st.SyncPending = true
		if _, err := c.tr.Transaction(ctx, NewRequest("hub.sync")); err != nil {
			return nil, err
		}
		log.Printf("[notecard] Requested pending hub sync")
	}

	rsp, err = c.tr.Transaction(ctx, NewRequest("card.wireless"))
	if err != nil {
		return nil, err
	}
	if net := rsp.Map("net"); net != nil {
		if bars, ok := net["bars"].(float64); ok {
			st.Bars = int(bars)
		}
	}

	rsp, err = c.tr.Transaction(ctx, NewRequest("card.voltage"))
	if err != nil {
		return nil, err
	}
	st.Voltage, _ = rsp.Float("value")

	rsp, err = c.tr.Transaction(ctx, NewRequest("card.motion"))
	if err != nil {
		return nil, err
	}
	st.Motion = rsp.Int("count")

	if st.CardTime, err = c.Time(ctx); err != nil {
		return nil, err
	}

	if st.Lat, st.Lon, st.HasLocation, err = c.Location(ctx); err != nil {
		return nil, err
	}

	log.Printf("[notecard] Status: connected=%t sync=%t bars=%d voltage=%.2f motion=%d", st.Connected, st.SyncPending, st.Bars, st.Voltage, st.Motion)
	return st, nil
}

// Location returns the card's last GPS fix. ok is false when the card has
// no position.
func (c *Card) Location(ctx context.Context) (lat, lon float64, ok bool, err error) {
	rsp, err := c.tr.Transaction(ctx, NewRequest("card.location"))
	if err != nil {
		return 0, 0, false, err
	}
	lat, okLat := rsp.Float("lat")
	lon, okLon := rsp.Float("lon")
	if !okLat || !okLon {
		return 0, 0, false, nil
	}
	return lat, lon, true, nil
}

// Time returns the card's clock, or the zero time if the card has not
// obtained one.
func (c *Card) Time(ctx context.Context) (time.Time, error) {
	rsp, err := c.tr.Transaction(ctx, NewRequest("card.time"))
	if err != nil {
		return time.Time{}, err
	}
	secs, ok := rsp.Float("time")
	zone := rsp.String("zone")
	if !ok || secs == 0 || zone == "" || zone == "UTC,Unknown" {
		return time.Time{}, nil
	}
	return time.Unix(int64(secs), 0).UTC(), nil
}

// Startup logs the card version, reads opensync_ environment variables,
// puts the card in periodic mode and logs the start to Notehub. The
// returned map holds the environment with the prefix stripped.
func (c *Card) Startup(ctx context.Context, product string) (map[string]string, error) {
	rsp, err := c.Do(ctx, NewRequest("card.version"))
	if err != nil {
		return nil, fmt.Errorf("failed to read card version: %w", err)
	}
	log.Printf("[notecard] Found notecard %s", rsp.String("version"))

	rsp, err = c.Do(ctx, NewRequest("env.get"))
	if err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	env := make(map[string]string)
	for k, v := range rsp.Map("body") {
		if name, ok := strings.CutPrefix(k, EnvPrefix); ok && name != "" {
			env[name] = fmt.Sprint(v)
		}
	}

	req := NewRequest("hub.set")
	req["mode"] = string(ModePeriodic)
	if product != "" {
		req["product"] = product
	}
	if _, err := c.Do(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to set periodic mode: %w", err)
	}

	req = NewRequest("hub.log")
	req["text"] = "Open Sync Has Started"
	if _, err := c.Do(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to log startup: %w", err)
	}

	return env, nil
}

// EnableTracking turns on periodic GPS tracking and motion-triggered sync.
func (c *Card) EnableTracking(ctx context.Context) error {
	reqs := []Request{
		{"req": "card.location.mode", "mode": "periodic", "seconds": 60},
		{"req": "card.location.track", "start": true},
		{"req": "card.motion.mode", "start": true, "seconds": 10, "sensitivity": 2},
		{"req": "card.motion.sync", "start": true, "minutes": 20, "count": 20, "threshold": 5},
	}
	for _, req := range reqs {
		if _, err := c.Do(ctx, req); err != nil {
			return fmt.Errorf("failed to enable tracking: %w", err)
		}
	}
	log.Printf("[notecard] GPS tracking enabled")
	return nil
}

// AddNote queues a note for the next sync.
func (c *Card) AddNote(ctx context.Context, body any) error {
	req := NewRequest("note.add")
	req["body"] = body
	_, err := c.Do(ctx, req)
	return err
}
