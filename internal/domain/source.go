package domain

import "time"

// DefaultStrategy is the scanner used for sources that do not name one.
const DefaultStrategy = "rss"

// Category groups articles; Key is the stable unique identifier.
type Category struct {
	ID    string
	Key   string
	Label string
	Icon  string
	Color string
	Order int
}

// Source is a publisher with one or more feed endpoints.
type Source struct {
	ID          string
	Name        string
	URL         string
	FeedURLs    []string
	Lang        string
	Categories  []Category
	Active      bool
	LastScraped *time.Time
	Strategy    string
}

// StrategyName returns the configured scanner or the default feed scanner.
func (s Source) StrategyName() string {
	if s.Strategy == "" {
		return DefaultStrategy
	}
	return s.Strategy
}

// FeedEntry is one item read from a source feed before normalization.
type FeedEntry struct {
	Title       string
	Link        string
	Summary     string
	Author      string
	PublishedAt *time.Time
}
