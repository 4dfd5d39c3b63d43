package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// EzShareLogDir is where the G1000 writes logs on an ezShare card.
const EzShareLogDir = `A:\data_log`

var (
	// 2022- 9-17  12:20:52    1592KB
	ezShareEntryRe = regexp.MustCompile(`^(\d{4})-( \d|\d{2})-( \d|\d{2})\s+( \d|\d{2}):( \d|\d{2}):( \d|\d{2})\s+(\d+)KB`)
	ezShareHrefRe  = regexp.MustCompile(`^http://.+/download\?file=(.+)$`)
)

// EzShare reads an ezShare WiFi SD card through its HTML interface.
type EzShare struct {
	baseURL string
	client  *http.Client
}

// NewEzShare creates a feed for the card at baseURL.
func NewEzShare(baseURL string, client *http.Client) *EzShare {
	return &EzShare{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (e *EzShare) LogDir() string { return EzShareLogDir }

// Version reads <response><device><version> from the client endpoint.
func (e *EzShare) Version(ctx context.Context) (string, error) {
	body, err := fetch(ctx, e.client, "version", e.baseURL+"/client?command=version")
	if err != nil {
		return "", err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse ezShare version: %w", err)
	}
	n := findPath(doc, "response", "device", "version")
	if n == nil {
		log.Printf("[storage] Unexpected ezShare version response: %s", body)
		return "", fmt.Errorf("ezShare version response has no version element")
	}
	return strings.TrimSpace(textOf(n)), nil
}

// List scrapes the directory page. Each file is an anchor preceded by a text
// node carrying its timestamp and size in KB.
func (e *EzShare) List(ctx context.Context, dir string) ([]File, error) {
	escaped := strings.NewReplacer("/", "%5C", `\`, "%5C").Replace(dir)
	body, err := fetch(ctx, e.client, "list", e.baseURL+"/dir?dir="+escaped)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ezShare listing: %w", err)
	}

	var files []File
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "a" || n.PrevSibling == nil || n.PrevSibling.Type != html.TextNode {
			return
		}
		meta := ezShareEntryRe.FindStringSubmatch(strings.TrimSpace(n.PrevSibling.Data))
		href := ezShareHrefRe.FindStringSubmatch(attr(n, "href"))
		if meta == nil || href == nil {
			return
		}

		var v [7]int
		for i := range v {
			v[i], _ = strconv.Atoi(strings.TrimSpace(meta[i+1]))
		}
		files = append(files, File{
			Handle:    href[1],
			Name:      strings.TrimSpace(textOf(n)),
			CreatedAt: time.Date(v[0], time.Month(v[1]), v[2], v[3], v[4], v[5], 0, time.Local),
			Size:      int64(v[6]) * 1024,
		})
	})
	return files, nil
}

// Download fetches a file by its short (8.3) name.
func (e *EzShare) Download(ctx context.Context, handle string) ([]byte, error) {
	body, err := fetch(ctx, e.client, "download", e.baseURL+"/download?file="+handle)
	if err != nil {
		return nil, err
	}
	log.Printf("[storage] Downloaded %s (%d bytes)", handle, len(body))
	return body, nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// findPath returns the first element reached by descending through the
// named elements in order.
func findPath(n *html.Node, names ...string) *html.Node {
	if len(names) == 0 {
		return n
	}
	var found *html.Node
	var search func(*html.Node)
	search = func(p *html.Node) {
		for c := p.FirstChild; c != nil && found == nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == names[0] {
				found = findPath(c, names[1:]...)
				if found != nil {
					return
				}
			}
			search(c)
		}
	}
	search(n)
	return found
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
