package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trueform/formsight/internal/api/response"
	"github.com/trueform/formsight/internal/orchestrator"
	"github.com/trueform/formsight/pkg/models"
)

// StatusReader defines the interface the status handler depends on.
type StatusReader interface {
	Status(jobID uuid.UUID) (models.Job, error)
}

type statusResponse struct {
	JobID      uuid.UUID  `json:"job_id"`
	Status     string     `json:"status"`
	Progress   *float64   `json:"progress,omitempty"`
	AnalysisID *uuid.UUID `json:"analysis_id,omitempty"`
	Error      *string    `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/v1/status/{jobID}.
// The response is a pure projection of the job record; it never blocks on
// in-progress analysis work.
func NewStatusHandler(svc StatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := parseJobID(w, r)
		if !ok {
			return
		}

		job, err := svc.Status(jobID)
		if err != nil {
			if errors.Is(err, orchestrator.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, statusResponse{
			JobID:      job.ID,
			Status:     string(job.Status),
			Progress:   job.Progress,
			AnalysisID: job.AnalysisID,
			Error:      job.ErrorMessage,
			CreatedAt:  job.CreatedAt,
			UpdatedAt:  job.UpdatedAt,
		})
	}
}

// parseJobID extracts and validates the jobID URL parameter, writing a 400 on
// malformed input.
func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "jobID")
	jobID, err := uuid.Parse(raw)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"jobID must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return jobID, true
}
