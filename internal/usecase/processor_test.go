package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsIngestor/internal/domain"
)

func testSource(id, name string) domain.Source {
	return domain.Source{
		ID:         id,
		Name:       name,
		FeedURLs:   []string{"https://" + id + ".example/rss"},
		Lang:       "en",
		Categories: []domain.Category{catLocal},
		Active:     true,
	}
}

func testDraft(sourceID, title string) domain.ArticleDraft {
	link := "https://" + sourceID + ".example/" + Slugify(title)
	return domain.ArticleDraft{
		Title:      title,
		Slug:       Slugify(title),
		CategoryID: catLocal.ID,
		SourceID:   sourceID,
		SourceURL:  link,
		Hash:       domain.ContentHash(title, link),
	}
}

func newTestProcessor(store *memStore, scraper SourceScraper, cache *recordingCache, concurrency int) *Processor {
	return NewProcessor(ProcessorDeps{
		Store:             store,
		Scraper:           scraper,
		Cache:             cache,
		Logger:            discardLogger(),
		SourceConcurrency: concurrency,
	})
}

func TestProcessorIsolatesFailingSources(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run("concurrency", func(t *testing.T) {
			store := newMemStore([]domain.Category{catLocal},
				testSource("a", "Panicky"),
				testSource("b", "Unreachable"),
				testSource("c", "Healthy"),
			)
			scraper := &scriptedScraper{
				panics: map[string]bool{"Panicky": true},
				fail:   map[string]error{"Unreachable": errScrape},
				drafts: map[string][]domain.ArticleDraft{
					"Healthy": {testDraft("c", "First story"), testDraft("c", "Second story")},
				},
			}
			cache := &recordingCache{}

			report, err := newTestProcessor(store, scraper, cache, concurrency).Run(context.Background(), domain.Job{ID: "job-1"})
			require.NoError(t, err)

			assert.Equal(t, domain.IngestReport{Sources: 3, Failed: 2, Inserted: 2}, report)
			assert.Equal(t, 2, store.count())
			assert.Len(t, scraper.calls, 3, "every source is attempted")

			_, ok := store.scraped("c")
			assert.True(t, ok)
			_, ok = store.scraped("a")
			assert.False(t, ok)
			_, ok = store.scraped("b")
			assert.False(t, ok)

			assert.Equal(t, []string{"article:*", "articles:*", "trending:*"}, cache.invalidated())
		})
	}
}

func TestProcessorIsIdempotent(t *testing.T) {
	store := newMemStore([]domain.Category{catLocal}, testSource("c", "Healthy"))
	scraper := &scriptedScraper{drafts: map[string][]domain.ArticleDraft{
		"Healthy": {testDraft("c", "First story"), testDraft("c", "Second story")},
	}}
	p := newTestProcessor(store, scraper, nil, 1)

	first, err := p.Run(context.Background(), domain.Job{ID: "job-1"})
	require.NoError(t, err)
	second, err := p.Run(context.Background(), domain.Job{ID: "job-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Duplicates)
	assert.Equal(t, 2, store.count())
}

func TestProcessorSkipsMisconfiguredSources(t *testing.T) {
	noCategories := testSource("a", "No categories")
	noCategories.Categories = nil
	noFeeds := testSource("b", "No feeds")
	noFeeds.FeedURLs = nil

	store := newMemStore([]domain.Category{catLocal}, noCategories, noFeeds, testSource("c", "Quiet"))
	scraper := &scriptedScraper{}

	report, err := newTestProcessor(store, scraper, nil, 1).Run(context.Background(), domain.Job{})
	require.NoError(t, err)

	assert.Equal(t, domain.IngestReport{Sources: 3, Skipped: 2}, report)
	assert.Equal(t, []string{"Quiet"}, scraper.calls)

	_, ok := store.scraped("c")
	assert.True(t, ok, "last scraped moves even when nothing new was found")
	_, ok = store.scraped("a")
	assert.False(t, ok)
}

func TestProcessorStoreFailureIsolatesSource(t *testing.T) {
	store := newMemStore([]domain.Category{catLocal}, testSource("a", "Broken store"), testSource("c", "Healthy"))
	store.insertErr["a"] = errors.New("disk full")
	scraper := &scriptedScraper{drafts: map[string][]domain.ArticleDraft{
		"Broken store": {testDraft("a", "Lost story")},
		"Healthy":      {testDraft("c", "Kept story")},
	}}

	report, err := newTestProcessor(store, scraper, nil, 1).Run(context.Background(), domain.Job{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Inserted)
}

func TestProcessorListFailureFailsJob(t *testing.T) {
	store := newMemStore(nil)
	store.listErr = errors.New("connection refused")

	_, err := newTestProcessor(store, &scriptedScraper{}, nil, 1).Run(context.Background(), domain.Job{})
	assert.ErrorIs(t, err, store.listErr)
	assert.Error(t, newTestProcessor(store, &scriptedScraper{}, nil, 1).Handle(context.Background(), domain.Job{}))
}

func TestProcessorCacheErrorsDoNotFailJob(t *testing.T) {
	store := newMemStore([]domain.Category{catLocal})
	cache := &recordingCache{err: errors.New("redis down")}

	_, err := newTestProcessor(store, &scriptedScraper{}, cache, 1).Run(context.Background(), domain.Job{})
	require.NoError(t, err)
	assert.Len(t, cache.invalidated(), 3)
}

func TestProcessorAutoPublish(t *testing.T) {
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore([]domain.Category{catLocal}, testSource("c", "Healthy"))
	draft := testDraft("c", "Published story")
	scraper := &scriptedScraper{drafts: map[string][]domain.ArticleDraft{"Healthy": {draft}}}

	p := NewProcessor(ProcessorDeps{
		Store:       store,
		Scraper:     scraper,
		Logger:      discardLogger(),
		AutoPublish: true,
		Now:         func() time.Time { return now },
	})
	_, err := p.Run(context.Background(), domain.Job{})
	require.NoError(t, err)

	stored := store.articles[draft.Hash]
	assert.Equal(t, domain.StatusPublished, stored.Status)
	assert.Equal(t, now, stored.CreatedAt)
	at, _ := store.scraped("c")
	assert.Equal(t, now, at)
}
