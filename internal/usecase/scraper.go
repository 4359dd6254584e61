package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"NewsIngestor/internal/classifier"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

const socialImageCaption = "Social preview image"

var (
	slugStrip      = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace = regexp.MustCompile(`\s+`)
)

// ScraperDeps wires the driven adapters a scrape needs.
type ScraperDeps struct {
	Feeds      ports.FeedReader
	Articles   ports.ArticleLookup
	Pages      ports.PageExtractor
	Classifier ports.Classifier
	Logger     *slog.Logger
	Now        func() time.Time
}

// Scraper turns one source's feed entries into normalized, not yet persisted drafts.
type Scraper struct {
	feeds      ports.FeedReader
	articles   ports.ArticleLookup
	pages      ports.PageExtractor
	classifier ports.Classifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewScraper constructs the scraping component.
func NewScraper(deps ScraperDeps) *Scraper {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Scraper{
		feeds:      deps.Feeds,
		articles:   deps.Articles,
		pages:      deps.Pages,
		classifier: deps.Classifier,
		logger:     logger.With("component", "scraper"),
		now:        now,
	}
}

// Scrape returns drafts for entries not seen before. Broken feeds and entries are logged and
// skipped; an error means the source could not be read at all.
func (s *Scraper) Scrape(ctx context.Context, source domain.Source) ([]domain.ArticleDraft, error) {
	logger := s.logger.With("source", source.Name)
	logger.Info("scraping source", "feeds", len(source.FeedURLs))

	entries, err := s.feeds.FetchEntries(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("fetch entries of %s: %w", source.Name, err)
	}

	seen := make(map[string]struct{}, len(entries))
	drafts := make([]domain.ArticleDraft, 0, len(entries))
	for _, entry := range entries {
		draft, err := s.scrapeEntry(ctx, source, entry, seen)
		if err != nil {
			level := slog.LevelError
			if errors.Is(err, classifier.ErrNoCategory) {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "entry skipped", "link", entry.Link, "error", err)
			continue
		}
		if draft != nil {
			drafts = append(drafts, *draft)
		}
	}

	logger.Info("source scraped", "entries", len(entries), "drafts", len(drafts))
	return drafts, nil
}

// scrapeEntry returns nil without error for entries that are incomplete or already known.
func (s *Scraper) scrapeEntry(ctx context.Context, source domain.Source, entry domain.FeedEntry, seen map[string]struct{}) (draft *domain.ArticleDraft, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("entry panicked", "source", source.Name, "link", entry.Link, "panic", r, "stack", string(debug.Stack()))
			draft, err = nil, fmt.Errorf("entry %s panicked: %v", entry.Link, r)
		}
	}()

	title := strings.TrimSpace(entry.Title)
	link := strings.TrimSpace(entry.Link)
	if title == "" || link == "" {
		return nil, nil
	}

	hash := domain.ContentHash(title, link)
	if _, dup := seen[hash]; dup {
		return nil, nil
	}
	seen[hash] = struct{}{}

	existing, err := s.articles.FindArticleByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup hash: %w", err)
	}
	if existing != nil {
		s.logger.Debug("duplicate entry", "source", source.Name, "title", title)
		return nil, nil
	}

	text, markup := s.pages.FetchAndClean(ctx, link)
	social := s.pages.ExtractSocialMetadata(ctx, link)
	images := s.pages.ExtractImages(markup, link)
	if len(images) == 0 && social.Image != "" {
		images = append(images, domain.Image{
			URL:        social.Image,
			Alt:        title,
			Caption:    socialImageCaption,
			Provenance: domain.ProvenanceSocial,
		})
	}

	summary := entry.Summary
	if strings.TrimSpace(summary) == "" {
		summary = text
	}

	category, err := s.classifier.ResolveCategory(ctx, title, summary, source.Categories)
	if err != nil {
		return nil, fmt.Errorf("resolve category: %w", err)
	}

	author := s.pages.ExtractAuthor(markup)
	if author == "" {
		author = entry.Author
	}
	if author == "" {
		author = source.Name
	}

	published := s.now().UTC()
	if entry.PublishedAt != nil {
		published = *entry.PublishedAt
	}

	return &domain.ArticleDraft{
		Title:       title,
		Slug:        Slugify(title),
		Summary:     truncateRunes(summary, domain.SummaryLimit),
		Content:     text,
		Images:      images,
		CategoryID:  category.ID,
		Tags:        s.classifier.ExtractTags(title, summary, text),
		Author:      author,
		Lang:        source.Lang,
		SourceID:    source.ID,
		SourceURL:   link,
		PublishedAt: published,
		Hash:        hash,
		Social:      social,
	}, nil
}

// Slugify lower-cases title, drops characters outside [a-z0-9 -] and joins words with dashes.
func Slugify(title string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(title), "")
	return slugWhitespace.ReplaceAllString(strings.TrimSpace(slug), "-")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
