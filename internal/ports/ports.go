package ports

import (
	"context"
	"time"

	"NewsIngestor/internal/domain"
)

// CategoryLookup resolves categories for classification.
type CategoryLookup interface {
	FindCategoryByKey(ctx context.Context, key string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// ArticleLookup answers scrape-time dedup questions.
type ArticleLookup interface {
	FindArticleByHash(ctx context.Context, hash string) (*domain.Article, error)
}

// Store is everything the ingestion pipeline needs from persistence.
type Store interface {
	CategoryLookup
	ArticleLookup
	FindActiveSources(ctx context.Context) ([]domain.Source, error)
	// InsertArticleIfAbsent returns nil without error when the hash already exists.
	InsertArticleIfAbsent(ctx context.Context, article domain.Article) (*domain.Article, error)
	UpdateSourceLastScraped(ctx context.Context, sourceID string, at time.Time) error
}

// Cache is the read-through cache shared with the read side. The pipeline only invalidates.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) (int, error)
}

// FeedReader reads the entries of every feed endpoint a source declares.
type FeedReader interface {
	FetchEntries(ctx context.Context, source domain.Source) ([]domain.FeedEntry, error)
}

// PageExtractor pulls readable content and metadata out of article pages.
type PageExtractor interface {
	FetchAndClean(ctx context.Context, pageURL string) (text string, html string)
	ExtractImages(html, baseURL string) []domain.Image
	ExtractSocialMetadata(ctx context.Context, pageURL string) domain.SocialMetadata
	ExtractAuthor(html string) string
}

// Classifier assigns one category and a few tags to a draft.
type Classifier interface {
	ResolveCategory(ctx context.Context, title, summary string, allowed []domain.Category) (domain.Category, error)
	ExtractTags(title, summary, body string) []string
}

// Enqueuer puts ingestion jobs on the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload []byte) (domain.Job, error)
}

// JobQueue is the durable at-least-once queue contract used by workers.
type JobQueue interface {
	Enqueuer
	Reserve(ctx context.Context, lease time.Duration) (*domain.Job, error)
	Complete(ctx context.Context, job domain.Job) error
	Fail(ctx context.Context, job domain.Job, cause error, retryAt time.Time) (domain.JobState, error)
	Get(ctx context.Context, jobID string) (*domain.Job, error)
}

// Alerter notifies operators about permanently failed jobs.
type Alerter interface {
	JobFailed(ctx context.Context, job domain.Job, cause error) error
}

// Scheduler controls when jobs are triggered.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
