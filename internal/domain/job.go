package domain

import (
	"encoding/json"
	"time"
)

// JobScrapeSources is the only ingestion job type; its payload is empty.
const JobScrapeSources = "scrape-source"

// JobState enumerates queue lifecycle milestones.
type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Job is a queue entry. Its state is owned by the queue runtime.
type Job struct {
	ID          string
	Name        string
	Payload     json.RawMessage
	State       JobState
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	LeaseUntil  *time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Exhausted reports whether no retry is left after the current attempt.
func (j Job) Exhausted() bool {
	return j.MaxAttempts > 0 && j.Attempts >= j.MaxAttempts
}

// IngestReport summarizes one processor run.
type IngestReport struct {
	Sources    int
	Skipped    int
	Failed     int
	Inserted   int
	Duplicates int
}
