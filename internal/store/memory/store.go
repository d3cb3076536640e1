// Package memory provides an in-memory ResultStore for development
// and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pricewatch/pricewatch/internal/crawler"
	"github.com/pricewatch/pricewatch/internal/store"
)

// Store implements store.ResultStore with mutex-guarded maps.
type Store struct {
	mu       sync.RWMutex
	jobs     map[uuid.UUID]store.JobState
	outcomes map[uuid.UUID][]crawler.Outcome
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		jobs:     make(map[uuid.UUID]store.JobState),
		outcomes: make(map[uuid.UUID][]crawler.Outcome),
	}
}

// StartJob records the job as running with zero progress.
func (s *Store) StartJob(_ context.Context, jobID uuid.UUID, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.jobs[jobID] = store.JobState{
		ID:      jobID,
		Status:  store.JobStatusRunning,
		Total:   total,
		Started: &now,
	}
	return nil
}

// UpdateProgress updates processed count and derived percentage.
func (s *Store) UpdateProgress(_ context.Context, jobID uuid.UUID, processed, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}
	job.Processed = processed
	job.Total = total
	job.Progress = store.ProgressPercent(processed, total)
	s.jobs[jobID] = job
	return nil
}

// RecordOutcome appends one per-target outcome.
func (s *Store) RecordOutcome(_ context.Context, jobID uuid.UUID, outcome crawler.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[jobID] = append(s.outcomes[jobID], outcome)
	return nil
}

// CompleteJob records the terminal status.
func (s *Store) CompleteJob(_ context.Context, jobID uuid.UUID, status store.JobStatus, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}
	now := time.Now().UTC()
	job.Status = status
	job.ErrorText = errText
	job.Finished = &now
	if status == store.JobStatusCompleted {
		job.Progress = 100
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job state by ID.
func (s *Store) GetJob(_ context.Context, jobID uuid.UUID) (store.JobState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return store.JobState{}, store.ErrJobNotFound
	}
	return job, nil
}

// ListOutcomes returns a copy of all recorded outcomes for a job.
func (s *Store) ListOutcomes(_ context.Context, jobID uuid.UUID) ([]crawler.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	outcomes := s.outcomes[jobID]
	out := make([]crawler.Outcome, len(outcomes))
	copy(out, outcomes)
	return out, nil
}
