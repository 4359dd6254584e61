package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// CacheInvalidationPatterns are the read-side key families made stale by new articles.
var CacheInvalidationPatterns = []string{"article:*", "articles:*", "trending:*"}

// SourceScraper produces drafts for one source.
type SourceScraper interface {
	Scrape(ctx context.Context, source domain.Source) ([]domain.ArticleDraft, error)
}

// ProcessorDeps wires the job processor.
type ProcessorDeps struct {
	Store   ports.Store
	Scraper SourceScraper
	Cache   ports.Cache
	Logger  *slog.Logger
	// SourceConcurrency bounds how many sources are scraped at once; below 2 means sequential.
	SourceConcurrency int
	AutoPublish       bool
	Now               func() time.Time
}

// Processor executes one scrape-source job across every active source.
type Processor struct {
	store       ports.Store
	scraper     SourceScraper
	cache       ports.Cache
	logger      *slog.Logger
	concurrency int
	status      domain.ArticleStatus
	now         func() time.Time
}

// NewProcessor constructs the job processor.
func NewProcessor(deps ProcessorDeps) *Processor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	concurrency := deps.SourceConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	status := domain.StatusDraft
	if deps.AutoPublish {
		status = domain.StatusPublished
	}
	return &Processor{
		store:       deps.Store,
		scraper:     deps.Scraper,
		cache:       deps.Cache,
		logger:      logger.With("component", "processor"),
		concurrency: concurrency,
		status:      status,
		now:         now,
	}
}

// Handle adapts Run to the queue handler signature.
func (p *Processor) Handle(ctx context.Context, job domain.Job) error {
	_, err := p.Run(ctx, job)
	return err
}

type sourceOutcome int

const (
	outcomeDone sourceOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// Run scrapes and persists every active source. One source failing never affects the others;
// only failing to list sources is returned as an error.
func (p *Processor) Run(ctx context.Context, job domain.Job) (domain.IngestReport, error) {
	logger := p.logger.With("job_id", job.ID)
	started := p.now()

	sources, err := p.store.FindActiveSources(ctx)
	if err != nil {
		return domain.IngestReport{}, fmt.Errorf("list active sources: %w", err)
	}
	logger.Info("ingestion started", "sources", len(sources), "concurrency", p.concurrency)

	var (
		mu     sync.Mutex
		report = domain.IngestReport{Sources: len(sources)}
	)

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, source := range sources {
		g.Go(func() error {
			outcome, inserted, duplicates := p.processSource(ctx, source)

			mu.Lock()
			defer mu.Unlock()
			report.Inserted += inserted
			report.Duplicates += duplicates
			switch outcome {
			case outcomeSkipped:
				report.Skipped++
			case outcomeFailed:
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	p.invalidateCache(ctx, logger)

	logger.Info("ingestion finished",
		"sources", report.Sources,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"duration", p.now().Sub(started),
	)
	return report, nil
}

func (p *Processor) processSource(ctx context.Context, source domain.Source) (outcome sourceOutcome, inserted, duplicates int) {
	logger := p.logger.With("source", source.Name)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("source panicked", "panic", r, "stack", string(debug.Stack()))
			outcome = outcomeFailed
		}
	}()

	if len(source.Categories) == 0 {
		logger.Warn("source has no categories, skipping")
		return outcomeSkipped, 0, 0
	}
	if len(source.FeedURLs) == 0 {
		logger.Warn("source has no feed urls, skipping")
		return outcomeSkipped, 0, 0
	}

	drafts, err := p.scraper.Scrape(ctx, source)
	if err != nil {
		logger.Error("scrape failed", "error", err)
		return outcomeFailed, 0, 0
	}

	for _, draft := range drafts {
		created, err := p.store.InsertArticleIfAbsent(ctx, domain.NewArticle(draft, p.status, p.now()))
		if err != nil {
			logger.Error("persist article failed", "title", draft.Title, "error", err)
			return outcomeFailed, inserted, duplicates
		}
		if created == nil {
			duplicates++
			continue
		}
		inserted++
	}

	if err := p.store.UpdateSourceLastScraped(ctx, source.ID, p.now()); err != nil {
		logger.Error("update last scraped failed", "error", err)
		return outcomeFailed, inserted, duplicates
	}

	logger.Info("source processed", "drafts", len(drafts), "inserted", inserted, "duplicates", duplicates)
	return outcomeDone, inserted, duplicates
}

func (p *Processor) invalidateCache(ctx context.Context, logger *slog.Logger) {
	if p.cache == nil {
		return
	}
	for _, pattern := range CacheInvalidationPatterns {
		n, err := p.cache.Invalidate(ctx, pattern)
		if err != nil {
			logger.Warn("cache invalidation failed", "pattern", pattern, "error", err)
			continue
		}
		logger.Debug("cache invalidated", "pattern", pattern, "keys", n)
	}
}
