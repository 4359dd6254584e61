package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultUserAgent identifies the ingestor to publishers.
	DefaultUserAgent = "Mozilla/5.0 (compatible; NewsIngestor/1.0; +https://newsingestor.dev)"

	defaultTimeout     = 10 * time.Second
	defaultMaxInFlight = 8
	maxBodyBytes       = 8 << 20
)

// FetchOptions tune outbound HTTP behaviour shared by feed and page fetches.
type FetchOptions struct {
	Timeout     time.Duration
	UserAgent   string
	MaxInFlight int64
}

// Fetcher performs bounded, timed GET requests. All network fetches of a process
// share one Fetcher so MaxInFlight caps the total load put on publishers.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	slots     *semaphore.Weighted
}

// NewFetcher wires an HTTP client; zero options fall back to defaults.
func NewFetcher(client *http.Client, opts FetchOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaultMaxInFlight
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		client:    client,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		slots:     semaphore.NewWeighted(opts.MaxInFlight),
	}
}

// Get fetches pageURL and hands the body to read. Non-2xx responses are errors.
func (f *Fetcher) Get(ctx context.Context, pageURL string, read func(io.Reader) error) error {
	if err := f.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire fetch slot: %w", err)
	}
	defer f.slots.Release(1)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	return read(io.LimitReader(resp.Body, maxBodyBytes))
}

// Document fetches pageURL and parses it as HTML.
func (f *Fetcher) Document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := f.Get(ctx, pageURL, func(body io.Reader) error {
		parsed, err := goquery.NewDocumentFromReader(body)
		if err != nil {
			return fmt.Errorf("parse document: %w", err)
		}
		doc = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// visibleText joins the text nodes under sel with spaces and collapses whitespace,
// so adjacent block elements do not glue words together.
func visibleText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return collapseSpaces(strings.Join(parts, " "))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// plainText strips markup from an HTML fragment such as a feed description.
func plainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapseSpaces(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpaces(fragment)
	}
	return visibleText(doc.Find("body"))
}
