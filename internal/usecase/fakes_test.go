package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"NewsIngestor/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory ports.Store with insert-if-absent semantics.
type memStore struct {
	mu          sync.Mutex
	sources     []domain.Source
	categories  []domain.Category
	articles    map[string]domain.Article
	lastScraped map[string]time.Time
	listErr     error
	insertErr   map[string]error
}

func newMemStore(categories []domain.Category, sources ...domain.Source) *memStore {
	return &memStore{
		sources:     sources,
		categories:  categories,
		articles:    make(map[string]domain.Article),
		lastScraped: make(map[string]time.Time),
		insertErr:   make(map[string]error),
	}
}

func (m *memStore) FindCategoryByKey(_ context.Context, key string) (*domain.Category, error) {
	for _, c := range m.categories {
		if c.Key == key {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListCategories(context.Context) ([]domain.Category, error) {
	return m.categories, nil
}

func (m *memStore) FindArticleByHash(_ context.Context, hash string) (*domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.articles[hash]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *memStore) FindActiveSources(context.Context) ([]domain.Source, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.sources, nil
}

func (m *memStore) InsertArticleIfAbsent(_ context.Context, article domain.Article) (*domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertErr[article.SourceID]; err != nil {
		return nil, err
	}
	if _, ok := m.articles[article.Hash]; ok {
		return nil, nil
	}
	m.articles[article.Hash] = article
	return &article, nil
}

func (m *memStore) UpdateSourceLastScraped(_ context.Context, sourceID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastScraped[sourceID] = at
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.articles)
}

func (m *memStore) scraped(sourceID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.lastScraped[sourceID]
	return at, ok
}

// recordingCache records invalidated patterns.
type recordingCache struct {
	mu       sync.Mutex
	patterns []string
	err      error
}

func (c *recordingCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (c *recordingCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (c *recordingCache) Invalidate(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = append(c.patterns, pattern)
	return 0, c.err
}

func (c *recordingCache) invalidated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.patterns...)
	sort.Strings(out)
	return out
}

// stubFeeds returns canned entries per source ID.
type stubFeeds struct {
	entries map[string][]domain.FeedEntry
	err     error
}

func (s stubFeeds) FetchEntries(_ context.Context, source domain.Source) ([]domain.FeedEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.entries[source.ID], nil
}

// stubPages serves canned page data keyed by URL.
type stubPages struct {
	text    map[string]string
	markup  map[string]string
	social  map[string]domain.SocialMetadata
	images  map[string][]domain.Image
	author  string
	panicOn string
}

func (s stubPages) FetchAndClean(_ context.Context, pageURL string) (string, string) {
	if pageURL == s.panicOn {
		panic("malformed document")
	}
	return s.text[pageURL], s.markup[pageURL]
}

func (s stubPages) ExtractImages(markup, baseURL string) []domain.Image {
	return s.images[baseURL]
}

func (s stubPages) ExtractSocialMetadata(_ context.Context, pageURL string) domain.SocialMetadata {
	return s.social[pageURL]
}

func (s stubPages) ExtractAuthor(string) string { return s.author }

// scriptedScraper returns drafts, errors or panics per source name.
type scriptedScraper struct {
	mu     sync.Mutex
	drafts map[string][]domain.ArticleDraft
	fail   map[string]error
	panics map[string]bool
	calls  []string
}

var errScrape = errors.New("feed unreachable")

func (s *scriptedScraper) Scrape(_ context.Context, source domain.Source) ([]domain.ArticleDraft, error) {
	s.mu.Lock()
	s.calls = append(s.calls, source.Name)
	s.mu.Unlock()

	if s.panics[source.Name] {
		panic("nil pointer in " + source.Name)
	}
	if err := s.fail[source.Name]; err != nil {
		return nil, err
	}
	return s.drafts[source.Name], nil
}
