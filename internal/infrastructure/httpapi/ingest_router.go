package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/infrastructure/storage"
	"NewsIngestor/internal/ports"
)

// JobReader looks up queued jobs.
type JobReader interface {
	Get(ctx context.Context, jobID string) (*domain.Job, error)
}

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IngestRouter exposes the manual trigger, job inspection and health routes.
type IngestRouter struct {
	e        *echo.Echo
	enqueuer ports.Enqueuer
	jobs     JobReader
	checks   map[string]Pinger
}

// NewIngestRouter wires handlers; checks are named dependencies probed by /health.
func NewIngestRouter(e *echo.Echo, enqueuer ports.Enqueuer, jobs JobReader, checks map[string]Pinger) *IngestRouter {
	return &IngestRouter{e: e, enqueuer: enqueuer, jobs: jobs, checks: checks}
}

func (r *IngestRouter) Bind() {
	r.e.POST("/ingest/run", r.runHandler)
	r.e.GET("/ingest/jobs/:id", r.jobHandler)
	r.e.GET("/health", r.healthHandler)
}

type jobResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	State       domain.JobState `json:"state"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	RunAt       time.Time       `json:"runAt"`
	LastError   string          `json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func toJobResponse(job domain.Job) jobResponse {
	return jobResponse{
		ID:          job.ID,
		Name:        job.Name,
		State:       job.State,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		RunAt:       job.RunAt,
		LastError:   job.LastError,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}

func (r *IngestRouter) runHandler(c echo.Context) error {
	job, err := r.enqueuer.Enqueue(c.Request().Context(), domain.JobScrapeSources, nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"message": "ingestion job enqueued",
		"job":     toJobResponse(job),
	})
}

func (r *IngestRouter) jobHandler(c echo.Context) error {
	job, err := r.jobs.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toJobResponse(*job))
}

func (r *IngestRouter) healthHandler(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	report := make(map[string]string, len(r.checks))
	for name, check := range r.checks {
		if err := check.Ping(ctx); err != nil {
			report[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	return c.JSON(status, map[string]any{"status": overall, "checks": report})
}
