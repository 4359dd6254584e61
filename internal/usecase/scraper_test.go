package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsIngestor/internal/classifier"
	"NewsIngestor/internal/domain"
)

var (
	catSports  = domain.Category{ID: "c-sports", Key: "sports", Label: "Sports"}
	catGeneral = domain.Category{ID: "c-general", Key: "general", Label: "General"}
	catLocal   = domain.Category{ID: "c-local", Key: "local", Label: "Local"}
)

func planetSource() domain.Source {
	return domain.Source{
		ID:         "src-planet",
		Name:       "Daily Planet",
		FeedURLs:   []string{"https://planet.example/rss"},
		Lang:       "en",
		Categories: []domain.Category{catLocal},
		Active:     true,
	}
}

func newTestScraper(store *memStore, feeds stubFeeds, pages stubPages, now time.Time) *Scraper {
	return NewScraper(ScraperDeps{
		Feeds:      feeds,
		Articles:   store,
		Pages:      pages,
		Classifier: classifier.New(store, nil),
		Logger:     discardLogger(),
		Now:        func() time.Time { return now },
	})
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Local Team Wins Championship Final", "local-team-wins-championship-final"},
		{"  Breaking:   Markets  rally!  ", "breaking-markets-rally"},
		{"Q&A with the mayor - part 2", "qa-with-the-mayor---part-2"},
		{"Café déjà vu", "caf-dj-vu"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestScrapeBuildsDraft(t *testing.T) {
	published := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	link := "https://planet.example/news/final"
	store := newMemStore([]domain.Category{catSports, catLocal, catGeneral})
	feeds := stubFeeds{entries: map[string][]domain.FeedEntry{
		"src-planet": {{
			Title:       "Local Team Wins Championship Final",
			Link:        link,
			Summary:     "The football club lifted the trophy.",
			PublishedAt: &published,
		}},
	}}
	pages := stubPages{
		text:   map[string]string{link: "The football club lifted the trophy after a dramatic final."},
		markup: map[string]string{link: "<p>The football club lifted the trophy.</p>"},
		images: map[string][]domain.Image{link: {{URL: "https://planet.example/trophy.jpg", Alt: "Trophy", Provenance: domain.ProvenanceScraped}}},
		social: map[string]domain.SocialMetadata{link: {Title: "Final", Image: "https://planet.example/og.jpg"}},
	}

	drafts, err := newTestScraper(store, feeds, pages, time.Now()).Scrape(context.Background(), planetSource())
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	d := drafts[0]
	assert.Equal(t, domain.ContentHash("Local Team Wins Championship Final", link), d.Hash)
	assert.Equal(t, "local-team-wins-championship-final", d.Slug)
	assert.Equal(t, catSports.ID, d.CategoryID)
	assert.Equal(t, "Daily Planet", d.Author, "author falls back to the source name")
	assert.Equal(t, published, d.PublishedAt)
	assert.Equal(t, "en", d.Lang)
	assert.Equal(t, "src-planet", d.SourceID)
	assert.Equal(t, link, d.SourceURL)
	require.Len(t, d.Images, 1)
	assert.Equal(t, domain.ProvenanceScraped, d.Images[0].Provenance)
	assert.Contains(t, d.Tags, "trophy")
	assert.Equal(t, "Final", d.Social.Title)
}

func TestScrapeSocialImageFallbackAndDefaults(t *testing.T) {
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	link := "https://planet.example/news/bakery"
	long := strings.Repeat("é", 400)
	store := newMemStore([]domain.Category{catLocal})
	feeds := stubFeeds{entries: map[string][]domain.FeedEntry{
		"src-planet": {{Title: "Bakery opens downtown", Link: link, Summary: long}},
	}}
	pages := stubPages{
		social: map[string]domain.SocialMetadata{link: {Image: "https://planet.example/og.jpg"}},
		author: "Jimmy Olsen",
	}

	drafts, err := newTestScraper(store, feeds, pages, now).Scrape(context.Background(), planetSource())
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	d := drafts[0]
	require.Len(t, d.Images, 1)
	assert.Equal(t, "https://planet.example/og.jpg", d.Images[0].URL)
	assert.Equal(t, domain.ProvenanceSocial, d.Images[0].Provenance)
	assert.Equal(t, "Bakery opens downtown", d.Images[0].Alt)
	assert.Equal(t, domain.SummaryLimit, len([]rune(d.Summary)))
	assert.Equal(t, now, d.PublishedAt, "missing publish time defaults to now")
	assert.Equal(t, "Jimmy Olsen", d.Author)
	assert.Equal(t, catLocal.ID, d.CategoryID, "no keyword match takes the first allowed category")
}

func TestScrapeSkipsIncompleteKnownAndRepeatedEntries(t *testing.T) {
	store := newMemStore([]domain.Category{catLocal})
	known := domain.ContentHash("Old news", "https://planet.example/old")
	store.articles[known] = domain.Article{Hash: known}

	feeds := stubFeeds{entries: map[string][]domain.FeedEntry{
		"src-planet": {
			{Title: "", Link: "https://planet.example/no-title"},
			{Title: "No link"},
			{Title: "Old news", Link: "https://planet.example/old"},
			{Title: "Fresh story", Link: "https://planet.example/fresh"},
			{Title: "Fresh story", Link: "https://planet.example/fresh"},
		},
	}}

	drafts, err := newTestScraper(store, feeds, stubPages{}, time.Now()).Scrape(context.Background(), planetSource())
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Fresh story", drafts[0].Title)
}

func TestScrapeIsolatesPanickingEntry(t *testing.T) {
	store := newMemStore([]domain.Category{catLocal})
	feeds := stubFeeds{entries: map[string][]domain.FeedEntry{
		"src-planet": {
			{Title: "Broken page", Link: "https://planet.example/broken"},
			{Title: "Good page", Link: "https://planet.example/good"},
		},
	}}
	pages := stubPages{panicOn: "https://planet.example/broken"}

	drafts, err := newTestScraper(store, feeds, pages, time.Now()).Scrape(context.Background(), planetSource())
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Good page", drafts[0].Title)
}

func TestScrapeDropsEntriesWithoutCategory(t *testing.T) {
	store := newMemStore(nil)
	src := planetSource()
	src.Categories = nil
	feeds := stubFeeds{entries: map[string][]domain.FeedEntry{
		"src-planet": {{Title: "Bakery opens downtown", Link: "https://planet.example/b"}},
	}}

	drafts, err := newTestScraper(store, feeds, stubPages{}, time.Now()).Scrape(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestScrapeHashIsStableAcrossRuns(t *testing.T) {
	store := newMemStore([]domain.Category{catLocal})
	feeds := stubFeeds{entries: map[string][]domain.FeedEntry{
		"src-planet": {{Title: "Same story", Link: "https://planet.example/same"}},
	}}
	s := newTestScraper(store, feeds, stubPages{}, time.Now())

	first, err := s.Scrape(context.Background(), planetSource())
	require.NoError(t, err)
	second, err := s.Scrape(context.Background(), planetSource())
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Hash, second[0].Hash)
}

func TestScrapeFeedError(t *testing.T) {
	store := newMemStore([]domain.Category{catLocal})
	_, err := newTestScraper(store, stubFeeds{err: errScrape}, stubPages{}, time.Now()).Scrape(context.Background(), planetSource())
	assert.ErrorIs(t, err, errScrape)
}
