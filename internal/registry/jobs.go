// Package registry holds the canonical in-process state of every analysis job
// and every completed result. It is the single owner of job lifecycle: all
// state transitions go through the JobStore and are validated against the
// queued → processing → completed|error state machine.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trueform/formsight/pkg/models"
)

var (
	// ErrNotFound is returned when no job or result exists for the given id.
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicateID is returned when a job is created with an id already in use.
	ErrDuplicateID = errors.New("duplicate job id")
	// ErrCapacityExceeded is returned when admission would exceed the configured bound.
	ErrCapacityExceeded = errors.New("analysis capacity exceeded")
	// ErrInvalidTransition indicates an illegal state transition was attempted.
	// This is an orchestrator bug, not a client error — callers must not swallow it.
	ErrInvalidTransition = errors.New("invalid job state transition")
	// ErrJobActive is returned when removing a job that has not reached a terminal state.
	ErrJobActive = errors.New("job is still queued or processing")
)

// JobStore is the Job Record Store. The store mutex guards the map and the
// active-job counter; each entry carries its own mutex so transitions on
// different jobs never serialize against each other. The entry mutex is never
// acquired while the store mutex is held.
type JobStore struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*jobEntry
	active int
}

type jobEntry struct {
	mu  sync.Mutex
	job models.Job
}

// NewJobStore creates an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]*jobEntry)}
}

// Create admits a new job in the queued state. The capacity check against
// limit (count of jobs in queued or processing) and the insert are one
// critical section, so two racing submissions with one slot left resolve to
// exactly one admission. A limit of zero or less disables the bound.
func (s *JobStore) Create(job models.Job, limit int) (models.Job, error) {
	if job.ID == uuid.Nil {
		return models.Job{}, fmt.Errorf("create job: id is required")
	}

	now := time.Now().UTC()
	job.Status = models.JobStatusQueued
	job.Progress = nil
	job.AnalysisID = nil
	job.ErrorMessage = nil
	job.CreatedAt = now
	job.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return models.Job{}, fmt.Errorf("%w: %s", ErrDuplicateID, job.ID)
	}
	if limit > 0 && s.active >= limit {
		return models.Job{}, ErrCapacityExceeded
	}

	s.jobs[job.ID] = &jobEntry{job: job}
	s.active++
	return job, nil
}

// Get returns a snapshot of the job. The copy is taken under the entry lock,
// so callers never observe a half-applied transition.
func (s *JobStore) Get(id uuid.UUID) (models.Job, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Job{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job, nil
}

// MarkProcessing transitions a queued job to processing with progress 0.
func (s *JobStore) MarkProcessing(id uuid.UUID) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := checkTransition(e.job.Status, models.JobStatusProcessing); err != nil {
		return err
	}
	zero := 0.0
	e.job.Status = models.JobStatusProcessing
	e.job.Progress = &zero
	e.job.UpdatedAt = time.Now().UTC()
	return nil
}

// SetProgress applies a progress report to a processing job. Reports are
// clamped monotonic: a value below the current progress is raised to it, and
// values are bounded to [0,100]. A report targeting a job that is not
// processing is dropped — the engine may race a timeout-forced terminal
// transition, and that race is benign.
func (s *JobStore) SetProgress(id uuid.UUID, progress float64) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.job.Status != models.JobStatusProcessing {
		return nil
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if e.job.Progress != nil && progress < *e.job.Progress {
		progress = *e.job.Progress
	}
	e.job.Progress = &progress
	e.job.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete transitions a processing job to completed, pins progress to 100 and
// records the result reference. All fields change under one lock, so a reader
// can never see completed without an analysis id.
func (s *JobStore) Complete(id uuid.UUID, analysisID uuid.UUID) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if err := checkTransition(e.job.Status, models.JobStatusCompleted); err != nil {
		e.mu.Unlock()
		return err
	}
	full := 100.0
	e.job.Status = models.JobStatusCompleted
	e.job.Progress = &full
	e.job.AnalysisID = &analysisID
	e.job.UpdatedAt = time.Now().UTC()
	e.mu.Unlock()

	s.release()
	return nil
}

// Fail transitions a queued or processing job to error with the given message.
func (s *JobStore) Fail(id uuid.UUID, message string) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if err := checkTransition(e.job.Status, models.JobStatusError); err != nil {
		e.mu.Unlock()
		return err
	}
	e.job.Status = models.JobStatusError
	e.job.ErrorMessage = &message
	e.job.UpdatedAt = time.Now().UTC()
	e.mu.Unlock()

	s.release()
	return nil
}

// Remove forgets a terminal job. Removing a queued or processing job fails
// with ErrJobActive so admission accounting stays exact. The job's archived
// result, if any, is untouched.
func (s *JobStore) Remove(id uuid.UUID) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	terminal := e.job.Status.Terminal()
	e.mu.Unlock()
	if !terminal {
		return ErrJobActive
	}

	// Terminal states are write-once, so the check above cannot go stale.
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
	return nil
}

// CountActive returns the number of jobs currently in queued or processing.
func (s *JobStore) CountActive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *JobStore) entry(id uuid.UUID) (*jobEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	return e, nil
}

// release decrements the active counter after a terminal transition. The
// transition itself is validated under the entry lock, so exactly one caller
// reaches this per job.
func (s *JobStore) release() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

func checkTransition(from, to models.JobStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
