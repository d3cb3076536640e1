// Package store defines the persistence collaborators the crawl core
// reports into. The core only writes job progress and outcomes; it
// never queries this state for control decisions mid-job.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pricewatch/pricewatch/internal/crawler"
)

// JobStatus is the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted against the job record. Completed means
// the orchestrator finished iterating, not that every target
// succeeded.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound is returned for lookups of unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobState is the job record shape the orchestrator populates.
type JobState struct {
	ID        uuid.UUID  `json:"id"`
	Status    JobStatus  `json:"status"`
	Progress  int        `json:"progress"`
	Processed int        `json:"processed"`
	Total     int        `json:"total"`
	ErrorText string     `json:"error_text,omitempty"`
	Started   *time.Time `json:"started_at,omitempty"`
	Finished  *time.Time `json:"finished_at,omitempty"`
}

// ResultStore persists job progress and per-target outcomes. A
// successful outcome additionally feeds the price history and the
// product's current price.
type ResultStore interface {
	StartJob(ctx context.Context, jobID uuid.UUID, total int) error
	UpdateProgress(ctx context.Context, jobID uuid.UUID, processed, total int) error
	RecordOutcome(ctx context.Context, jobID uuid.UUID, outcome crawler.Outcome) error
	CompleteJob(ctx context.Context, jobID uuid.UUID, status JobStatus, errText string) error
	GetJob(ctx context.Context, jobID uuid.UUID) (JobState, error)
	ListOutcomes(ctx context.Context, jobID uuid.UUID) ([]crawler.Outcome, error)
}

// ProgressPercent derives the integer progress percentage recorded
// after each target.
func ProgressPercent(processed, total int) int {
	if total <= 0 {
		return 0
	}
	return processed * 100 / total
}
