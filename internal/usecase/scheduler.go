package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// Scheduler wires the ticker driver with the durable queue.
type Scheduler struct {
	driver   ports.Scheduler
	enqueuer ports.Enqueuer
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring ingestion.
func NewScheduler(driver ports.Scheduler, enqueuer ports.Enqueuer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, enqueuer: enqueuer, logger: logger.With("component", "scheduler")}
}

// Start registers the enqueue tick with the driver. Ticks never wait for the job itself.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.enqueuer == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.Tick(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// Tick enqueues one ingestion job. A failure is logged; the next tick tries again.
func (s *Scheduler) Tick(ctx context.Context, trigger time.Time) {
	job, err := s.enqueuer.Enqueue(ctx, domain.JobScrapeSources, nil)
	if err != nil {
		s.logger.Error("enqueue ingestion failed", "trigger", trigger, "error", err)
		return
	}
	s.logger.Info("ingestion enqueued", "job_id", job.ID, "trigger", trigger)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
