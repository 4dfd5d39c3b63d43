// Package notecard implements the transaction layer to a Blues Notecard:
// connectivity mode control, hub sync and chunked web.post uploads.
package notecard

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"time"
)

const (
	// DefaultChunkSize is the web.post fragment size.
	DefaultChunkSize = 4096

	// MinSegmentDelay is the smallest inter-segment delay the card tolerates.
	MinSegmentDelay = 25 * time.Millisecond

	// UploadSegmentDelay is the inter-segment delay used during web.post.
	UploadSegmentDelay = 50 * time.Millisecond

	connectPollInterval = 5 * time.Second
	syncPollInterval    = time.Second
)

// Card drives a Notecard through a Transactor. It is not safe for
// concurrent use; a single owner threads all operations through it.
type Card struct {
	tr Transactor

	// Clock hooks, replaced in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a card over the given transactor.
func New(tr Transactor) *Card {
	return &Card{
		tr:    tr,
		now:   time.Now,
		sleep: sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Transaction performs a raw transaction. Card-reported errors are left in
// the response.
func (c *Card) Transaction(ctx context.Context, req Request) (Response, error) {
	return c.tr.Transaction(ctx, req)
}

// Do performs a transaction and converts a card-reported error into a
// DeviceError.
func (c *Card) Do(ctx context.Context, req Request) (Response, error) {
	rsp, err := c.tr.Transaction(ctx, req)
	if err != nil {
		return nil, err
	}
	if e := rsp.Err(); e != "" {
		return rsp, &DeviceError{Req: req.Name(), Err: e}
	}
	return rsp, nil
}

// Mode returns the current hub mode.
func (c *Card) Mode(ctx context.Context) (Mode, error) {
	rsp, err := c.Do(ctx, NewRequest("hub.get"))
	if err != nil {
		return "", err
	}
	return Mode(rsp.String("mode")), nil
}

// SetMode sets the hub mode.
func (c *Card) SetMode(ctx context.Context, mode Mode) error {
	req := NewRequest("hub.set")
	req["mode"] = string(mode)
	rsp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	log.Printf("[notecard] Set mode %s: %v", mode, rsp)
	return nil
}

// WithMode runs fn with the card switched to target. When wait is set it
// first polls hub.status until the card reports a connection, failing with
// ConnectionTimeoutError once timeout elapses (zero means no deadline).
// The prior mode is always restored if it was changed.
func (c *Card) WithMode(ctx context.Context, target Mode, wait bool, timeout time.Duration, fn func(ctx context.Context) error) (err error) {
	prior, err := c.Mode(ctx)
	if err != nil {
		return fmt.Errorf("failed to read hub mode: %w", err)
	}

	if prior != target {
		if err := c.SetMode(ctx, target); err != nil {
			return fmt.Errorf("failed to set %s mode: %w", target, err)
		}
		defer func() {
			// The caller's context may already be cancelled; the card must not
			// be left in the temporary mode.
			restoreErr := c.SetMode(context.WithoutCancel(ctx), prior)
			if restoreErr != nil {
				log.Printf("[notecard] Failed to restore mode %s: %v", prior, restoreErr)
				if err == nil {
					err = fmt.Errorf("failed to restore %s mode: %w", prior, restoreErr)
				}
				return
			}
			log.Printf("[notecard] Restored mode %s", prior)
		}()
	} else {
		log.Printf("[notecard] Card is already in mode %s", target)
	}

	if wait {
		if err := c.waitForConnection(ctx, target, timeout); err != nil {
			return err
		}
	}

	return fn(ctx)
}

func (c *Card) waitForConnection(ctx context.Context, mode Mode, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = c.now().Add(timeout)
	}
	for {
		if !deadline.IsZero() && c.now().After(deadline) {
			return &ConnectionTimeoutError{Mode: mode, Timeout: timeout}
		}

		rsp, err := c.tr.Transaction(ctx, NewRequest("hub.status"))
		if err != nil {
			return err
		}
		log.Printf("[notecard] Checking connection: %v", rsp)
		if rsp.Bool("connected") {
			return nil
		}

		rsp, err = c.tr.Transaction(ctx, NewRequest("hub.sync.status"))
		if err != nil {
			return err
		}
		log.Printf("[notecard] Checking sync status: %v", rsp)

		if err := c.sleep(ctx, connectPollInterval); err != nil {
			return err
		}
		if !deadline.IsZero() {
			log.Printf("[notecard] %s remaining waiting for %s connection", deadline.Sub(c.now()).Truncate(time.Second), mode)
		}
	}
}

// WithSegmentDelay runs fn with the transport's inter-segment delay set to
// delay, restoring the prior value afterwards.
func (c *Card) WithSegmentDelay(delay time.Duration, fn func() error) error {
	if delay < MinSegmentDelay {
		return fmt.Errorf("segment delay %s is below the %s minimum", delay, MinSegmentDelay)
	}
	sd, ok := c.tr.(SegmentDelayer)
	if !ok {
		return fn()
	}
	prior := sd.SegmentDelay()
	sd.SetSegmentDelay(delay)
	defer sd.SetSegmentDelay(prior)
	return fn()
}

// SyncAndWait requests a hub sync and polls until it completes. Running
// out of time is logged, not returned: the sync continues in the background.
func (c *Card) SyncAndWait(ctx context.Context, timeout time.Duration) error {
	req := NewRequest("hub.sync.status")
	req["sync"] = true
	rsp, err := c.tr.Transaction(ctx, req)
	if err != nil {
		return err
	}
	log.Printf("[notecard] Requested hub sync: %v", rsp)

	var deadline time.Time
	if timeout > 0 {
		deadline = c.now().Add(timeout)
	}
	for rsp.Bool("sync") {
		if !deadline.IsZero() && c.now().After(deadline) {
			log.Printf("[notecard] Warning: sync still pending after %s", timeout)
			return nil
		}
		if err := c.sleep(ctx, syncPollInterval); err != nil {
			return err
		}
		rsp, err = c.tr.Transaction(ctx, NewRequest("hub.sync.status"))
		if err != nil {
			return err
		}
	}
	return nil
}

// PostOptions configures WebPost.
type PostOptions struct {
	Name              string
	Content           string
	ChunkSize         int
	NoWait            bool
	ConnectionTimeout time.Duration
}

// PostResult is the outcome of a WebPost.
type PostResult struct {
	Response  Response
	Body      []byte
	Fragments int
}

// WebPost uploads payload to a Notehub route. Payloads larger than the
// chunk size are sent as fragments, each carrying its offset and MD5 so
// Notehub can verify and reassemble them.
func (c *Card) WebPost(ctx context.Context, route string, payload []byte, opts PostOptions) (*PostResult, error) {
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	result := &PostResult{}
	start := c.now()

	err := c.WithMode(ctx, ModeContinuous, !opts.NoWait, opts.ConnectionTimeout, func(ctx context.Context) error {
		return c.WithSegmentDelay(UploadSegmentDelay, func() error {
			rsp, n, err := c.postFragments(ctx, route, payload, chunk, opts)
			result.Response = rsp
			result.Fragments = n
			return err
		})
	})
	if err != nil {
		return result, err
	}

	if p := result.Response.String("payload"); p != "" {
		body, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return result, fmt.Errorf("failed to decode web.post response payload: %w", err)
		}
		result.Body = body
	}
	log.Printf("[notecard] web.post to %s took %s for %d bytes", route, c.now().Sub(start).Truncate(time.Millisecond), len(payload))
	return result, nil
}

func (c *Card) postFragments(ctx context.Context, route string, payload []byte, chunk int, opts PostOptions) (Response, int, error) {
	fragmented := len(payload) > chunk

	var rsp Response
	sent := 0
	for offset := 0; offset < len(payload) || sent == 0; offset += chunk {
		req := NewRequest("web.post")
		req["route"] = route
		if opts.Name != "" {
			req["name"] = opts.Name
		}
		if opts.Content != "" {
			req["content"] = opts.Content
		}

		if fragmented {
			fragment := payload[offset:min(offset+chunk, len(payload))]
			sum := md5.Sum(fragment)
			req["total"] = len(payload)
			req["payload"] = base64.StdEncoding.EncodeToString(fragment)
			req["status"] = hex.EncodeToString(sum[:])
			req["offset"] = offset
			req["verify"] = true
		} else {
			req["payload"] = base64.StdEncoding.EncodeToString(payload)
		}

		var err error
		rsp, err = c.Do(ctx, req)
		sent++
		if err != nil {
			return rsp, sent, err
		}
	}
	return rsp, sent, nil
}
