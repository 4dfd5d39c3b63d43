package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/opensync-io/opensync/internal/g1000"
	"github.com/opensync-io/opensync/internal/models"
	"github.com/opensync-io/opensync/internal/notecard"
)

const (
	// DefaultSavvyURL is the Savvy Aviation upload API.
	DefaultSavvyURL = "https://apps.savvyaviation.com/upload_files_api/"

	// SavvyRoute is the Notehub route that proxies to the upload API.
	SavvyRoute = "SavvyAnalysis"

	savvyChunkSize = 8192
	savvyBoundary  = "flight_log_data"
)

// Poster uploads a payload through a Notehub route.
type Poster interface {
	WebPost(ctx context.Context, route string, payload []byte, opts notecard.PostOptions) (*notecard.PostResult, error)
}

// SavvyRelay uploads the log to Savvy Aviation for analysis, through the
// Notecard when Card is set and directly over HTTPS otherwise.
type SavvyRelay struct {
	Token      string
	AircraftID string
	FullLog    bool
	Timeout    time.Duration

	Card    Poster
	Client  *http.Client
	BaseURL string
}

// NewSavvyRelay creates a relay from settings. A nil card selects the
// direct route.
func NewSavvyRelay(cfg models.SavvyConfig, card Poster) *SavvyRelay {
	return &SavvyRelay{
		Token:      cfg.Token,
		AircraftID: cfg.AircraftID,
		FullLog:    cfg.FullLog,
		Timeout:    cfg.Timeout,
		Card:       card,
		Client:     &http.Client{Timeout: cfg.Timeout},
		BaseURL:    DefaultSavvyURL,
	}
}

func (s *SavvyRelay) Notify(ctx context.Context, rec *models.ProcessedRecord, raw []byte) error {
	content := raw
	if !s.FullLog {
		var pruned bytes.Buffer
		if err := g1000.Prune(bytes.NewReader(raw), &pruned, g1000.DefaultKeepColumns); err != nil {
			log.Printf("[relay] Failed to prune %s, sending full log: %v", rec.DisplayName, err)
		} else {
			log.Printf("[relay] Pruned %s from %d to %d bytes", rec.DisplayName, len(raw), pruned.Len())
			content = pruned.Bytes()
		}
	}

	body, contentType, err := savvyMultipart(s.Token, rec.DisplayName, content)
	if err != nil {
		return err
	}

	if s.Card != nil {
		return s.viaNotecard(ctx, body, contentType)
	}
	return s.direct(ctx, body, contentType)
}

func (s *SavvyRelay) viaNotecard(ctx context.Context, body []byte, contentType string) error {
	res, err := s.Card.WebPost(ctx, SavvyRoute, body, notecard.PostOptions{
		Name:              s.AircraftID + "/",
		Content:           contentType,
		ChunkSize:         savvyChunkSize,
		ConnectionTimeout: s.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to post to %s: %w", SavvyRoute, err)
	}
	if code := res.Response.Int("result"); code != http.StatusOK {
		log.Printf("[relay] Warning: transaction error posting to %s: result=%d %s", SavvyRoute, code, res.Body)
	}
	checkSavvyStatus(res.Body)
	return nil
}

func (s *SavvyRelay) direct(ctx context.Context, body []byte, contentType string) error {
	url := s.BaseURL + s.AircraftID + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to Savvy Aviation: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("savvy aviation returned %d: %s", resp.StatusCode, respBody)
	}
	checkSavvyStatus(respBody)
	return nil
}

func checkSavvyStatus(body []byte) {
	if len(body) == 0 {
		return
	}
	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		log.Printf("[relay] Unexpected Savvy Aviation response: %s", body)
		return
	}
	if status.Status == "Error" {
		log.Printf("[relay] Warning: Savvy Aviation rejected upload: %s", body)
	}
}

// savvyMultipart builds the form with a token field and a text/plain file
// part, in that order.
func savvyMultipart(token, name string, content []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(savvyBoundary); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("token", token); err != nil {
		return nil, "", fmt.Errorf("write token field: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", "text/plain")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
