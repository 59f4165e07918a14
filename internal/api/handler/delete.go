package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/trueform/formsight/internal/api/response"
	"github.com/trueform/formsight/internal/orchestrator"
	"github.com/trueform/formsight/pkg/models"
)

// Forgetter defines the interface the delete handler depends on.
type Forgetter interface {
	Forget(jobID uuid.UUID) (models.Job, error)
}

// NewDeleteVideoHandler returns an http.HandlerFunc for
// DELETE /api/v1/upload/video/{jobID}. Only terminal jobs can be deleted; the
// archived result, if any, survives the job record.
func NewDeleteVideoHandler(svc Forgetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := parseJobID(w, r)
		if !ok {
			return
		}

		job, err := svc.Forget(jobID)
		if err != nil {
			switch {
			case errors.Is(err, orchestrator.ErrNotFound):
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			case errors.Is(err, orchestrator.ErrJobActive):
				response.Error(w, http.StatusConflict, "JOB_ACTIVE",
					"Job is still queued or processing and cannot be deleted", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		if job.VideoPath != "" {
			if err := os.Remove(job.VideoPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("removing uploaded video", "job_id", jobID, "error", err)
			}
		}

		response.JSON(w, map[string]string{"message": "Video and job record deleted"})
	}
}
