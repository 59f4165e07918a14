package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trueform/formsight/internal/api/response"
	"github.com/trueform/formsight/internal/config"
	"github.com/trueform/formsight/internal/orchestrator"
	"github.com/trueform/formsight/pkg/models"
)

// allowedExtensions is the upload extension allow-list.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".mkv":  true,
}

// Submitter defines the interface the upload handler depends on.
type Submitter interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (models.Job, error)
}

type uploadResponse struct {
	JobID        uuid.UUID `json:"job_id"`
	Status       string    `json:"status"`
	Sport        string    `json:"sport"`
	ExerciseType string    `json:"exercise_type,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUploadHandler returns an http.HandlerFunc for POST /api/v1/upload. It
// validates the sport/exercise taxonomy and file constraints at the boundary,
// stores the clip, and submits it for admission. A CapacityExceeded rejection
// leaves no state behind; the caller resubmits later.
func NewUploadHandler(svc Submitter, cfg config.UploadConfig) http.HandlerFunc {
	maxBytes := int64(cfg.MaxSizeMB) << 20

	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

		if err := r.ParseMultipartForm(8 << 20); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Request must be multipart/form-data with a video file", nil)
			return
		}

		sportID := r.FormValue("sport")
		if sportID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "sport is required", nil)
			return
		}
		sport, ok := models.SportByID(sportID)
		if !ok {
			response.Error(w, http.StatusBadRequest, "UNSUPPORTED_SPORT",
				fmt.Sprintf("Unsupported sport: %s", sportID), nil)
			return
		}

		exerciseType, ok := models.NormalizeExercise(sport, r.FormValue("exercise_type"))
		if !ok {
			response.Error(w, http.StatusBadRequest, "UNSUPPORTED_EXERCISE_TYPE",
				fmt.Sprintf("Unsupported exercise_type %q for sport %q", r.FormValue("exercise_type"), sport.ID), nil)
			return
		}

		if d := r.FormValue("duration_seconds"); d != "" {
			duration, err := strconv.ParseFloat(d, 64)
			if err != nil || duration < 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"duration_seconds must be a non-negative number", nil)
				return
			}
			if cfg.MaxDurationSec > 0 && duration > float64(cfg.MaxDurationSec) {
				response.Error(w, http.StatusBadRequest, "VIDEO_TOO_LONG",
					fmt.Sprintf("Video duration exceeds %d seconds", cfg.MaxDurationSec), nil)
				return
			}
		}

		file, header, err := r.FormFile("video")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "video file is required", nil)
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedExtensions[ext] {
			response.Error(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT",
				fmt.Sprintf("Unsupported video format %q", ext), nil)
			return
		}

		videoID := uuid.New()
		videoPath, err := saveUpload(cfg.Dir, videoID, ext, file, maxBytes)
		if err != nil {
			if errors.Is(err, errFileTooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
					fmt.Sprintf("File size exceeds %dMB limit", cfg.MaxSizeMB), nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to store uploaded video", nil)
			return
		}

		job, err := svc.Submit(r.Context(), orchestrator.SubmitRequest{
			VideoID:      videoID,
			VideoPath:    videoPath,
			Sport:        sport.ID,
			ExerciseType: exerciseType,
		})
		if err != nil {
			os.Remove(videoPath)
			if errors.Is(err, orchestrator.ErrCapacityExceeded) {
				w.Header().Set("Retry-After", "60")
				response.Error(w, http.StatusTooManyRequests, "CAPACITY_EXCEEDED",
					"Analysis capacity exceeded, please retry later", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.Accepted(w, uploadResponse{
			JobID:        job.ID,
			Status:       string(job.Status),
			Sport:        job.Sport,
			ExerciseType: job.ExerciseType,
			CreatedAt:    job.CreatedAt,
		})
	}
}

var errFileTooLarge = errors.New("file too large")

// saveUpload streams the multipart file to disk, enforcing the size cap while
// copying. The partial file is removed on any failure.
func saveUpload(dir string, videoID uuid.UUID, ext string, src io.Reader, maxBytes int64) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(dir, videoID.String()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	written, err := io.Copy(dst, io.LimitReader(src, maxBytes+1))
	closeErr := dst.Close()
	switch {
	case err != nil:
		os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	case closeErr != nil:
		os.Remove(path)
		return "", fmt.Errorf("close upload: %w", closeErr)
	case written > maxBytes:
		os.Remove(path)
		return "", errFileTooLarge
	}
	return path, nil
}
