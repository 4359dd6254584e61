package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/scanner"
)

// FeedScanner reads RSS, Atom and JSON feeds. It is the canonical scanner strategy.
type FeedScanner struct {
	fetcher *Fetcher
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner wires the shared fetcher.
func NewFeedScanner(fetcher *Fetcher) *FeedScanner {
	return &FeedScanner{fetcher: fetcher}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return domain.DefaultStrategy
}

// Scan fetches one feed endpoint and returns its entries in feed order.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.FeedEntry, error) {
	if strings.TrimSpace(req.FeedURL) == "" {
		return nil, fmt.Errorf("no feed url provided for source %s", req.SourceName)
	}

	var feed *gofeed.Feed
	err := f.fetcher.Get(ctx, req.FeedURL, func(body io.Reader) error {
		parsed, err := gofeed.NewParser().Parse(body)
		if err != nil {
			return fmt.Errorf("parse feed: %w", err)
		}
		feed = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", req.FeedURL, err)
	}

	entries := make([]domain.FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, parseItem(item))
	}
	return entries, nil
}

func parseItem(item *gofeed.Item) domain.FeedEntry {
	entry := domain.FeedEntry{
		Title:   strings.TrimSpace(item.Title),
		Link:    strings.TrimSpace(item.Link),
		Summary: itemSummary(item),
	}

	if item.Author != nil {
		entry.Author = strings.TrimSpace(item.Author.Name)
	}
	if entry.Author == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
		entry.Author = strings.TrimSpace(item.Authors[0].Name)
	}

	switch {
	case item.PublishedParsed != nil:
		published := item.PublishedParsed.UTC()
		entry.PublishedAt = &published
	case item.UpdatedParsed != nil:
		updated := item.UpdatedParsed.UTC()
		entry.PublishedAt = &updated
	}

	return entry
}

// itemSummary prefers the description and falls back to the full content, as plain text.
func itemSummary(item *gofeed.Item) string {
	raw := item.Description
	if strings.TrimSpace(raw) == "" {
		raw = item.Content
	}
	return plainText(raw)
}
