package notecard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	// SegmentMaxLen is the largest chunk written to the card in one write.
	SegmentMaxLen = 250

	// DefaultSegmentDelay is the pause between request segments.
	DefaultSegmentDelay = 250 * time.Millisecond

	// ResponseTimeout bounds how long a transaction waits for its reply.
	ResponseTimeout = 90 * time.Second
)

// Transactor executes a single request/response transaction.
type Transactor interface {
	Transaction(ctx context.Context, req Request) (Response, error)
}

// SegmentDelayer is implemented by transactors whose inter-segment delay
// can be tuned.
type SegmentDelayer interface {
	SegmentDelay() time.Duration
	SetSegmentDelay(d time.Duration)
}

// lineDevice is a byte channel that accepts request segments and returns
// newline-terminated replies.
type lineDevice interface {
	writeSegment(p []byte) error
	readLine(ctx context.Context, deadline time.Time) ([]byte, error)
	io.Closer
}

// Transport frames JSON requests over a serial or I2C line device.
type Transport struct {
	mu    sync.Mutex
	dev   lineDevice
	name  string
	delay time.Duration
}

func newTransport(name string, dev lineDevice) *Transport {
	return &Transport{dev: dev, name: name, delay: DefaultSegmentDelay}
}

// Open opens a transport by kind ("i2c" or "serial").
func Open(kind, port string) (*Transport, error) {
	switch kind {
	case "i2c":
		return OpenI2C(port)
	case "serial":
		return OpenSerial(port, DefaultBaudRate)
	default:
		return nil, fmt.Errorf("unknown notecard transport %q", kind)
	}
}

// String returns the port the transport is attached to.
func (t *Transport) String() string {
	return t.name
}

// SegmentDelay returns the current inter-segment delay.
func (t *Transport) SegmentDelay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}

// SetSegmentDelay changes the inter-segment delay.
func (t *Transport) SetSegmentDelay(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = d
}

// Transaction sends a request and waits for its reply.
func (t *Transport) Transaction(ctx context.Context, req Request) (Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", req.Name(), err)
	}
	data = append(data, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()

	for off := 0; off < len(data); off += SegmentMaxLen {
		end := min(off+SegmentMaxLen, len(data))
		if err := t.dev.writeSegment(data[off:end]); err != nil {
			return nil, &TransportError{Op: "write", Err: err}
		}
		if end < len(data) {
			time.Sleep(t.delay)
		}
	}

	line, err := t.dev.readLine(ctx, time.Now().Add(ResponseTimeout))
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}

	var rsp Response
	if err := json.Unmarshal(bytes.TrimSpace(line), &rsp); err != nil {
		return nil, &TransportError{Op: "decode", Err: err}
	}
	return rsp, nil
}

// Close closes the underlying device.
func (t *Transport) Close() error {
	return t.dev.Close()
}

var errResponseTimeout = errors.New("timed out waiting for response")
