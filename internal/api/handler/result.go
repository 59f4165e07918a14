package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/trueform/formsight/internal/api/response"
	"github.com/trueform/formsight/internal/orchestrator"
	"github.com/trueform/formsight/pkg/models"
)

// ResultReader defines the interface the result handler depends on.
type ResultReader interface {
	ResultForJob(ctx context.Context, jobID uuid.UUID) (*models.Result, error)
}

// NewResultHandler returns an http.HandlerFunc for GET /api/v1/status/results/{jobID}.
// A job that exists but has not completed yields the same 404 as an unknown
// id; clients distinguish the two by polling the status endpoint first.
func NewResultHandler(svc ResultReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := parseJobID(w, r)
		if !ok {
			return
		}

		result, err := svc.ResultForJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, orchestrator.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "RESULT_NOT_FOUND",
					"Analysis results not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, result)
	}
}
