package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// ErrUnknownJob is recorded for jobs no handler is registered for.
var ErrUnknownJob = errors.New("unknown job")

// Handler executes one job. Returning an error hands the job back to the queue for retry.
type Handler func(ctx context.Context, job domain.Job) error

// WorkerOptions tunes polling, leases and retries.
type WorkerOptions struct {
	Concurrency    int
	PollInterval   time.Duration
	Lease          time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o WorkerOptions) withDefaults() WorkerOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.Lease <= 0 {
		o.Lease = 10 * time.Minute
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 30 * time.Second
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = 10 * o.InitialBackoff
	}
	return o
}

// Worker drains the queue, dispatching jobs to handlers by name.
type Worker struct {
	queue   ports.JobQueue
	alerter ports.Alerter
	logger  *slog.Logger
	opts    WorkerOptions
	now     func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewWorker wires a queue; alerter may be nil.
func NewWorker(queue ports.JobQueue, alerter ports.Alerter, opts WorkerOptions, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:    queue,
		alerter:  alerter,
		logger:   logger.With("component", "worker"),
		opts:     opts.withDefaults(),
		now:      time.Now,
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for jobs called name, replacing any previous handler.
func (w *Worker) Handle(name string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = h
}

func (w *Worker) handler(name string) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[name]
	return h, ok
}

// Run polls until ctx is cancelled with Concurrency parallel loops.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "concurrency", w.opts.Concurrency, "lease", w.opts.Lease)
	defer w.logger.Info("worker stopped")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		g.Go(func() error {
			w.loop(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		processed, err := w.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("queue poll failed", "error", err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.opts.PollInterval):
		}
	}
}

// ProcessNext reserves and runs at most one job. It reports whether a job was taken.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	job, err := w.queue.Reserve(ctx, w.opts.Lease)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	w.execute(ctx, *job)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, job domain.Job) {
	logger := w.logger.With("job_id", job.ID, "job", job.Name, "attempt", job.Attempts)
	started := w.now()

	deadline := started.Add(w.opts.Lease)
	if job.LeaseUntil != nil {
		deadline = *job.LeaseUntil
	}
	jobCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	runErr := w.run(jobCtx, job)

	// State transitions must land even when the job used up its lease.
	stateCtx, stateCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer stateCancel()

	if runErr == nil {
		if err := w.queue.Complete(stateCtx, job); err != nil {
			logger.Error("mark job completed", "error", err)
			return
		}
		logger.Info("job completed", "duration", w.now().Sub(started))
		return
	}

	retryAt := w.now().Add(RetryDelay(w.opts.InitialBackoff, w.opts.MaxBackoff, job.Attempts))
	state, err := w.queue.Fail(stateCtx, job, runErr, retryAt)
	if err != nil {
		logger.Error("mark job failed", "error", err, "cause", runErr)
		return
	}

	if state != domain.JobFailed {
		logger.Warn("job failed, will retry", "error", runErr, "retry_at", retryAt)
		return
	}

	logger.Error("job failed permanently", "error", runErr, "max_attempts", job.MaxAttempts)
	if w.alerter == nil {
		return
	}
	job.State = state
	job.LastError = runErr.Error()
	if err := w.alerter.JobFailed(stateCtx, job, runErr); err != nil {
		logger.Warn("failed job alert not delivered", "error", err)
	}
}

func (w *Worker) run(ctx context.Context, job domain.Job) (err error) {
	h, ok := w.handler(job.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, job.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("job panicked", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()

	return h(ctx, job)
}
