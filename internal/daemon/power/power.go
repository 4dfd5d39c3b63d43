// Package power tracks the aircraft bus supply through a UPS HAT so the
// daemon can flush pending logs before its battery runs out.
package power

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Source reads the UPS signals.
type Source interface {
	// ExternalPower reports whether the aircraft bus is supplying power.
	ExternalPower() (bool, error)
	// BatteryAvailable reports whether a charged UPS battery is fitted. It
	// may block for up to a second.
	BatteryAvailable(ctx context.Context) bool
}

// Simulated is a Source for hosts without a UPS. External power starts
// present and is flipped by Toggle.
type Simulated struct {
	lost atomic.Bool
}

// NewSimulated creates a simulated source with power present.
func NewSimulated() *Simulated {
	return &Simulated{}
}

func (s *Simulated) ExternalPower() (bool, error) {
	return !s.lost.Load(), nil
}

func (s *Simulated) BatteryAvailable(ctx context.Context) bool {
	return true
}

// Toggle flips the simulated external power state.
func (s *Simulated) Toggle() {
	for {
		old := s.lost.Load()
		if s.lost.CompareAndSwap(old, !old) {
			log.Printf("[power] Simulated external power present=%t", old)
			return
		}
	}
}

// Set forces the simulated external power state.
func (s *Simulated) Set(present bool) {
	s.lost.Store(!present)
}

// Monitor debounces external power loss against a grace period.
type Monitor struct {
	src    Source
	grace  time.Duration
	now    func() time.Time
	lostAt time.Time
}

// NewMonitor creates a monitor that reports expiry once power has been
// absent for grace.
func NewMonitor(src Source, grace time.Duration) *Monitor {
	return &Monitor{src: src, grace: grace, now: time.Now}
}

// Grace returns the configured grace period.
func (m *Monitor) Grace() time.Duration {
	return m.grace
}

// Check samples the source and reports whether external power has been
// continuously absent for at least the grace period. A failed read counts
// as power present.
func (m *Monitor) Check() bool {
	present, err := m.src.ExternalPower()
	if err != nil {
		log.Printf("[power] Failed to read external power: %v", err)
		present = true
	}

	now := m.now()
	switch {
	case present && !m.lostAt.IsZero():
		log.Printf("[power] External power restored after %s", now.Sub(m.lostAt).Truncate(time.Second))
		m.lostAt = time.Time{}
	case !present && m.lostAt.IsZero():
		log.Printf("[power] External power lost, shutting down in %s unless restored", m.grace)
		m.lostAt = now
	}
	return !m.lostAt.IsZero() && now.Sub(m.lostAt) >= m.grace
}

// Lost reports whether external power was absent at the last Check.
func (m *Monitor) Lost() bool {
	return !m.lostAt.IsZero()
}

// LostFor returns how long external power has been absent, or zero.
func (m *Monitor) LostFor() time.Duration {
	if m.lostAt.IsZero() {
		return 0
	}
	return m.now().Sub(m.lostAt)
}

// BatteryAvailable forwards the one-shot battery check to the source.
func (m *Monitor) BatteryAvailable(ctx context.Context) bool {
	return m.src.BatteryAvailable(ctx)
}
