package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FlashAirLogDir is where the G1000 writes logs on a FlashAir card.
const FlashAirLogDir = "/data_log"

// FAT attribute bits reported in a FlashAir listing.
const (
	attrReadOnly = 1 << iota
	attrHidden
	attrSystem
	attrVolume
	attrDirectory
	attrArchive
)

// FlashAir reads a Toshiba FlashAir card through command.cgi.
type FlashAir struct {
	baseURL string
	client  *http.Client
}

// NewFlashAir creates a feed for the card at baseURL.
func NewFlashAir(baseURL string, client *http.Client) *FlashAir {
	return &FlashAir{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (f *FlashAir) LogDir() string { return FlashAirLogDir }

// Version returns the firmware string, e.g. "F15DBW3BW4.00.03".
func (f *FlashAir) Version(ctx context.Context) (string, error) {
	body, err := fetch(ctx, f.client, "version", f.baseURL+"/command.cgi?op=108")
	if err != nil {
		return "", err
	}
	version := strings.TrimSpace(string(body))
	if len(version) >= 11 && version[9:11] != "W4" {
		log.Printf("[storage] Using earlier version of FlashAir: %s", version)
	}
	return version, nil
}

// List parses the WLANSD_FILELIST CSV:
//
//	/data_log,log_220917_124302_KJYO.csv,1630208,32,21809,27564
//
// The columns are directory, name, size, attributes, FAT date and FAT time.
// Only plain files are returned.
func (f *FlashAir) List(ctx context.Context, dir string) ([]File, error) {
	escaped := strings.ReplaceAll(dir, "/", "%2F")
	body, err := fetch(ctx, f.client, "list", f.baseURL+"/command.cgi?op=100&DIR="+escaped)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse FlashAir listing: %w", err)
	}

	var files []File
	for _, rec := range records {
		if len(rec) < 6 {
			continue
		}
		size, err1 := strconv.ParseInt(rec[2], 10, 64)
		attrs, err2 := strconv.Atoi(rec[3])
		date, err3 := strconv.Atoi(rec[4])
		clock, err4 := strconv.Atoi(rec[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			log.Printf("[storage] Skipping malformed FlashAir entry %q", rec)
			continue
		}
		if !isPlainFile(attrs) {
			continue
		}
		files = append(files, File{
			Handle:    rec[0] + "/" + rec[1],
			Name:      rec[1],
			CreatedAt: decodeFATTime(date, clock),
			Size:      size,
		})
	}
	return files, nil
}

// Download fetches a file by its full path on the card.
func (f *FlashAir) Download(ctx context.Context, handle string) ([]byte, error) {
	if !strings.HasPrefix(handle, "/") {
		handle = "/" + handle
	}
	body, err := fetch(ctx, f.client, "download", f.baseURL+handle)
	if err != nil {
		return nil, err
	}
	log.Printf("[storage] Downloaded %s (%d bytes)", handle, len(body))
	return body, nil
}

func isPlainFile(attrs int) bool {
	return attrs&attrArchive != 0 && attrs&(attrSystem|attrHidden) == 0
}

// decodeFATTime unpacks FAT date (bits 15-9 year since 1980, 8-5 month, 4-0
// day) and time (15-11 hour, 10-5 minute, 4-0 seconds/2). Out-of-range
// fields are clamped.
func decodeFATTime(date, clock int) time.Time {
	year := date>>9 + 1980
	month := min(max((date>>5)&0x0f, 1), 12)
	day := max(date&0x1f, 1)
	hour := clock >> 11
	minute := (clock >> 5) & 0x3f
	second := (clock & 0x1f) * 2
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
}
