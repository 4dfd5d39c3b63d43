// Package storage lists and downloads flight logs from the WiFi SD cards
// fitted to the avionics, or from a local directory on the bench.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensync-io/opensync/internal/models"
)

// DefaultHTTPTimeout bounds a single request to an SD card.
const DefaultHTTPTimeout = 30 * time.Second

// File is one entry of a directory listing.
type File struct {
	Handle    string // adapter-specific download handle
	Name      string
	CreatedAt time.Time
	Size      int64
}

// Feed is a source of log files.
type Feed interface {
	// Version identifies the card firmware and doubles as a connection check.
	Version(ctx context.Context) (string, error)
	List(ctx context.Context, dir string) ([]File, error)
	Download(ctx context.Context, handle string) ([]byte, error)
	// LogDir is the directory the avionics write logs to.
	LogDir() string
}

// TransportError means the card could not be reached. It is transient.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// New creates the feed selected by cfg. A nil client uses a default one.
func New(cfg models.SDCardConfig, client *http.Client) (Feed, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	switch cfg.Type {
	case models.SDCardEzShare:
		return NewEzShare(cfg.EzShareURL, client), nil
	case models.SDCardFlashAir:
		return NewFlashAir(cfg.FlashAirURL, client), nil
	case models.SDCardLocal:
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("sdcard.local_dir is required for the local feed")
		}
		return NewLocal(cfg.LocalDir), nil
	default:
		return nil, fmt.Errorf("unknown sdcard type %q", cfg.Type)
	}
}

// fetch performs a GET and returns the body. Failing to reach the card is a
// TransportError; an unexpected status is not.
func fetch(ctx context.Context, client *http.Client, op, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s returned %d", op, url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}
	return body, nil
}
