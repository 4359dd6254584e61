package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsIngestor/internal/classifier"
	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/infrastructure/cache"
	"NewsIngestor/internal/infrastructure/httpapi"
	"NewsIngestor/internal/infrastructure/parser"
	"NewsIngestor/internal/infrastructure/queue"
	"NewsIngestor/internal/infrastructure/scheduler"
	"NewsIngestor/internal/infrastructure/storage"
	"NewsIngestor/internal/infrastructure/telegram"
	"NewsIngestor/internal/logging"
	"NewsIngestor/internal/ports"
	"NewsIngestor/internal/scanner"
	"NewsIngestor/internal/usecase"
)

const stopTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db        *storage.DB
	store     *storage.SQLStore
	queue     *queue.SQLQueue
	worker    *queue.Worker
	scheduler *usecase.Scheduler
	server    *httpapi.Server

	closers []func() error
}

// New opens the database and cache and builds every component. Call Close when done.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a := &Application{cfg: cfg, logger: baseLogger, db: db}
	a.closers = append(a.closers, db.Close)

	checks := map[string]httpapi.Pinger{"database": db}

	var articleCache ports.Cache = cache.NewMemory()
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, redisCache.Close)
		checks["cache"] = redisCache
		articleCache = redisCache
	}

	a.store = storage.NewSQLStore(db)
	a.queue = queue.NewSQLQueue(db, cfg.Queue.MaxAttempts)

	fetcher := parser.NewFetcher(nil, parser.FetchOptions{
		Timeout:     cfg.Fetch.Timeout,
		UserAgent:   cfg.Fetch.UserAgent,
		MaxInFlight: cfg.Fetch.MaxInFlight,
	})
	registry := scanner.NewRegistry()
	registry.Register(parser.NewFeedScanner(fetcher))
	baseLogger.Debug("scanner strategies registered", "names", registry.Names())

	scraper := usecase.NewScraper(usecase.ScraperDeps{
		Feeds:      parser.NewStrategySource(registry, baseLogger.With("component", "source")),
		Articles:   a.store,
		Pages:      parser.NewPageExtractor(fetcher, baseLogger.With("component", "page")),
		Classifier: classifier.New(a.store, nil),
		Logger:     baseLogger,
	})
	processor := usecase.NewProcessor(usecase.ProcessorDeps{
		Store:             a.store,
		Scraper:           scraper,
		Cache:             articleCache,
		Logger:            baseLogger,
		SourceConcurrency: cfg.Ingest.SourceConcurrency,
		AutoPublish:       cfg.Ingest.AutoPublish,
	})

	var alerter ports.Alerter
	notifier := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	if notifier.Configured() {
		alerter = notifier
	}

	a.worker = queue.NewWorker(a.queue, alerter, queue.WorkerOptions{
		Concurrency:    cfg.Queue.Workers,
		PollInterval:   cfg.Queue.PollInterval,
		Lease:          cfg.Queue.Lease,
		InitialBackoff: cfg.Queue.InitialBackoff,
		MaxBackoff:     cfg.Queue.MaxBackoff,
	}, baseLogger)
	a.worker.Handle(domain.JobScrapeSources, processor.Handle)

	driver := scheduler.NewTickerScheduler(cfg.Scheduler.Interval, cfg.Scheduler.RunOnStart)
	a.scheduler = usecase.NewScheduler(driver, a.queue, baseLogger)

	a.server = httpapi.NewServer(cfg.HTTP.Addr, cfg.HTTP.ShutdownTimeout, baseLogger)
	httpapi.NewIngestRouter(a.server.Echo, a.queue, a.queue, checks).Bind()

	return a, nil
}

// Migrate creates missing tables.
func (a *Application) Migrate(ctx context.Context) error {
	return a.db.EnsureSchema(ctx)
}

// Serve runs the scheduler, the workers and the admin HTTP server until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.RunScheduler(ctx) })
	g.Go(func() error { return a.RunWorker(ctx) })
	g.Go(func() error { return a.server.Start(ctx) })
	return g.Wait()
}

// RunWorker drains the queue until ctx is cancelled.
func (a *Application) RunWorker(ctx context.Context) error {
	a.logger.Info("worker started", "concurrency", a.cfg.Queue.Workers)
	return a.worker.Run(ctx)
}

// RunScheduler enqueues ingestion on every tick until ctx is cancelled.
func (a *Application) RunScheduler(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval)
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}

// Enqueue puts one ingestion job on the queue.
func (a *Application) Enqueue(ctx context.Context) (domain.Job, error) {
	return a.queue.Enqueue(ctx, domain.JobScrapeSources, nil)
}

// RunOnce enqueues an ingestion job and works the queue until that job settles,
// waiting out retry delays in between. Other due jobs are processed along the way.
func (a *Application) RunOnce(ctx context.Context) (domain.Job, error) {
	job, err := a.Enqueue(ctx)
	if err != nil {
		return domain.Job{}, err
	}

	for {
		current, err := a.queue.Get(ctx, job.ID)
		if err != nil {
			return domain.Job{}, err
		}
		if current.State == domain.JobCompleted || current.State == domain.JobFailed {
			return *current, nil
		}

		took, err := a.worker.ProcessNext(ctx)
		if err != nil {
			return *current, err
		}
		if took {
			continue
		}

		wait := time.Until(current.RunAt)
		if wait < a.cfg.Queue.PollInterval {
			wait = a.cfg.Queue.PollInterval
		}
		select {
		case <-ctx.Done():
			return *current, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Close releases the cache and database connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
