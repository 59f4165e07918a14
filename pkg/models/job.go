package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	// JobStatusQueued indicates a job has been admitted and is waiting for a worker.
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing indicates a worker is running the analysis engine on the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the analysis finished and a result was written.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusError indicates the analysis failed; ErrorMessage holds the reason.
	JobStatusError JobStatus = "error"
)

// Valid returns true if the JobStatus is one of the four lifecycle states.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusProcessing ||
		s == JobStatusCompleted || s == JobStatusError
}

// Terminal returns true once no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// queued → processing → completed|error; queued → error is also allowed so a job
// can be failed before a worker ever picks it up.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusProcessing || next == JobStatusError
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusError
	default:
		return false
	}
}

// Job tracks one submitted video through the analysis pipeline. The API returns
// the job ID on upload; the client polls the status endpoint until the job
// reaches completed or error.
type Job struct {
	ID           uuid.UUID  `json:"job_id"`
	Sport        string     `json:"sport"`
	ExerciseType string     `json:"exercise_type,omitempty"`
	VideoPath    string     `json:"-"`
	Status       JobStatus  `json:"status"`
	Progress     *float64   `json:"progress,omitempty"`
	AnalysisID   *uuid.UUID `json:"analysis_id,omitempty"`
	ErrorMessage *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
