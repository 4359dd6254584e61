// Package queue is a durable at-least-once job queue kept in the ingestion database.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/infrastructure/storage"
	"NewsIngestor/internal/ports"
)

const (
	jobsTable          = "ingest_jobs"
	defaultMaxAttempts = 3
	expiredLeaseError  = "lease expired"
)

var jobColumns = []string{
	"id", "name", "payload", "state", "attempts", "max_attempts", "run_at", "lease_until", "last_error", "created_at", "updated_at",
}

// SQLQueue stores jobs in ingest_jobs. Several workers may share one database.
type SQLQueue struct {
	db          *storage.DB
	maxAttempts int
	now         func() time.Time
}

var _ ports.JobQueue = (*SQLQueue)(nil)

// NewSQLQueue builds a queue; maxAttempts <= 0 selects the default of three attempts.
func NewSQLQueue(db *storage.DB, maxAttempts int) *SQLQueue {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &SQLQueue{db: db, maxAttempts: maxAttempts, now: time.Now}
}

// Enqueue stores a waiting job runnable immediately.
func (q *SQLQueue) Enqueue(ctx context.Context, name string, payload []byte) (domain.Job, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if !json.Valid(payload) {
		return domain.Job{}, fmt.Errorf("enqueue %s: payload is not valid json", name)
	}

	now := q.now().UTC().Truncate(time.Millisecond)
	job := domain.Job{
		ID:          uuid.NewString(),
		Name:        name,
		Payload:     json.RawMessage(payload),
		State:       domain.JobWaiting,
		MaxAttempts: q.maxAttempts,
		RunAt:       now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query, args, err := q.db.Builder.Insert(jobsTable).
		Columns("id", "name", "payload", "state", "attempts", "max_attempts", "run_at", "last_error", "created_at", "updated_at").
		Values(job.ID, job.Name, string(job.Payload), string(job.State), 0, job.MaxAttempts,
			storage.Millis(job.RunAt), "", storage.Millis(now), storage.Millis(now)).
		ToSql()
	if err != nil {
		return domain.Job{}, fmt.Errorf("build enqueue: %w", err)
	}
	if _, err := q.db.SQL.ExecContext(ctx, query, args...); err != nil {
		return domain.Job{}, fmt.Errorf("enqueue %s: %w", name, err)
	}
	return job, nil
}

// Reserve claims the oldest runnable waiting job for lease. It returns nil when nothing is runnable.
// Jobs whose lease expired are put back first, or failed when they have no attempts left.
func (q *SQLQueue) Reserve(ctx context.Context, lease time.Duration) (*domain.Job, error) {
	now := q.now()
	if err := q.recoverStalled(ctx, now); err != nil {
		return nil, err
	}

	next := sq.Select("id").
		From(jobsTable).
		Where(sq.Eq{"state": string(domain.JobWaiting)}).
		Where(sq.LtOrEq{"run_at": storage.Millis(now)}).
		OrderBy("run_at", "created_at").
		Limit(1)
	if q.db.Dialect == storage.Postgres {
		next = next.Suffix("FOR UPDATE SKIP LOCKED")
	}

	query, args, err := q.db.Builder.Update(jobsTable).
		Set("state", string(domain.JobActive)).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("lease_until", storage.Millis(now.Add(lease))).
		Set("updated_at", storage.Millis(now)).
		Where(sq.Expr("id = (?)", next)).
		Where(sq.Eq{"state": string(domain.JobWaiting)}).
		Suffix("RETURNING " + strings.Join(jobColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build reserve: %w", err)
	}

	job, err := scanJob(q.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve job: %w", err)
	}
	return job, nil
}

func (q *SQLQueue) recoverStalled(ctx context.Context, now time.Time) error {
	stalled := sq.And{
		sq.Eq{"state": string(domain.JobActive)},
		sq.Lt{"lease_until": storage.Millis(now)},
	}

	exhausted, args, err := q.db.Builder.Update(jobsTable).
		Set("state", string(domain.JobFailed)).
		Set("lease_until", nil).
		Set("last_error", expiredLeaseError).
		Set("updated_at", storage.Millis(now)).
		Where(stalled).
		Where(sq.Expr("attempts >= max_attempts")).
		ToSql()
	if err != nil {
		return fmt.Errorf("build stalled failure: %w", err)
	}
	if _, err := q.db.SQL.ExecContext(ctx, exhausted, args...); err != nil {
		return fmt.Errorf("fail stalled jobs: %w", err)
	}

	requeue, args, err := q.db.Builder.Update(jobsTable).
		Set("state", string(domain.JobWaiting)).
		Set("lease_until", nil).
		Set("last_error", expiredLeaseError).
		Set("updated_at", storage.Millis(now)).
		Where(stalled).
		ToSql()
	if err != nil {
		return fmt.Errorf("build stalled requeue: %w", err)
	}
	if _, err := q.db.SQL.ExecContext(ctx, requeue, args...); err != nil {
		return fmt.Errorf("requeue stalled jobs: %w", err)
	}
	return nil
}

// Complete marks a reserved job completed. It returns storage.ErrNotFound when the reservation
// no longer holds, because the lease expired and the job was handed to another worker.
func (q *SQLQueue) Complete(ctx context.Context, job domain.Job) error {
	now := storage.Millis(q.now())
	query, args, err := q.db.Builder.Update(jobsTable).
		Set("state", string(domain.JobCompleted)).
		Set("lease_until", nil).
		Set("last_error", "").
		Set("updated_at", now).
		Where(reservedBy(job)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build complete: %w", err)
	}
	return q.execOne(ctx, job.ID, query, args)
}

// Fail records cause. The job waits until retryAt, or becomes failed when its attempts are spent.
// Like Complete it only applies to the current reservation.
func (q *SQLQueue) Fail(ctx context.Context, job domain.Job, cause error, retryAt time.Time) (domain.JobState, error) {
	state := domain.JobWaiting
	if job.Exhausted() {
		state = domain.JobFailed
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	update := q.db.Builder.Update(jobsTable).
		Set("state", string(state)).
		Set("lease_until", nil).
		Set("last_error", message).
		Set("updated_at", storage.Millis(q.now())).
		Where(reservedBy(job))
	if state == domain.JobWaiting {
		update = update.Set("run_at", storage.Millis(retryAt))
	}

	query, args, err := update.ToSql()
	if err != nil {
		return "", fmt.Errorf("build fail: %w", err)
	}
	if err := q.execOne(ctx, job.ID, query, args); err != nil {
		return "", err
	}
	return state, nil
}

// reservedBy matches the job only while it is still active under the caller's attempt.
// Each Reserve bumps attempts, so a stale holder's updates match nothing.
func reservedBy(job domain.Job) sq.Eq {
	return sq.Eq{"id": job.ID, "state": string(domain.JobActive), "attempts": job.Attempts}
}

// Get returns a job by id or storage.ErrNotFound.
func (q *SQLQueue) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	query, args, err := q.db.Builder.Select(jobColumns...).
		From(jobsTable).
		Where(sq.Eq{"id": jobID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get: %w", err)
	}

	job, err := scanJob(q.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// execOne runs a state transition that must hit exactly one active job. A zero count means the
// lease was lost to another worker.
func (q *SQLQueue) execOne(ctx context.Context, jobID, query string, args []any) error {
	res, err := q.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("active job %s: %w", jobID, storage.ErrNotFound)
	}
	return nil
}

// RetryDelay is the exponential wait after the given failed attempt: initial, 2x, 4x, capped at maxDelay.
func RetryDelay(initial, maxDelay time.Duration, attempt int) time.Duration {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initial
	policy.MaxInterval = maxDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Reset()

	delay := initial
	for i := 0; i < attempt; i++ {
		delay = policy.NextBackOff()
	}
	return delay
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job                     domain.Job
		payload, state          string
		runAt, created, updated int64
		leaseUntil              sql.NullInt64
	)
	if err := row.Scan(
		&job.ID,
		&job.Name,
		&payload,
		&state,
		&job.Attempts,
		&job.MaxAttempts,
		&runAt,
		&leaseUntil,
		&job.LastError,
		&created,
		&updated,
	); err != nil {
		return nil, err
	}

	job.Payload = json.RawMessage(payload)
	job.State = domain.JobState(state)
	job.RunAt = storage.FromMillis(runAt)
	job.CreatedAt = storage.FromMillis(created)
	job.UpdatedAt = storage.FromMillis(updated)
	if leaseUntil.Valid {
		at := storage.FromMillis(leaseUntil.Int64)
		job.LeaseUntil = &at
	}
	return &job, nil
}
