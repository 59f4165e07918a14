package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trueform/formsight/internal/config"
	"github.com/trueform/formsight/internal/orchestrator"
	"github.com/trueform/formsight/pkg/models"
)

// --- helpers ---

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int) map[string]any {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("expected %d, got %d: %s", wantStatus, rec.Code, rec.Body.String())
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env.Data
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return env.Error.Code
}

// --- upload ---

type mockSubmitter struct {
	fn func(req orchestrator.SubmitRequest) (models.Job, error)
}

func (m *mockSubmitter) Submit(_ context.Context, req orchestrator.SubmitRequest) (models.Job, error) {
	return m.fn(req)
}

func admitAll() *mockSubmitter {
	return &mockSubmitter{fn: func(req orchestrator.SubmitRequest) (models.Job, error) {
		return models.Job{
			ID:           req.VideoID,
			Sport:        req.Sport,
			ExerciseType: req.ExerciseType,
			VideoPath:    req.VideoPath,
			Status:       models.JobStatusQueued,
		}, nil
	}}
}

func uploadConfig(t *testing.T) config.UploadConfig {
	return config.UploadConfig{
		Dir:            t.TempDir(),
		MaxSizeMB:      1,
		MaxDurationSec: 60,
	}
}

type uploadOpts struct {
	sport    string
	exercise string
	duration string
	filename string
	content  []byte
}

func uploadRequest(t *testing.T, opts uploadOpts) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)

	if opts.sport != "" {
		mp.WriteField("sport", opts.sport)
	}
	if opts.exercise != "" {
		mp.WriteField("exercise_type", opts.exercise)
	}
	if opts.duration != "" {
		mp.WriteField("duration_seconds", opts.duration)
	}
	if opts.filename != "" {
		fw, err := mp.CreateFormFile("video", opts.filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		content := opts.content
		if content == nil {
			content = []byte("fake video bytes")
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	mp.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	r.Header.Set("Content-Type", mp.FormDataContentType())
	return r
}

func TestUploadHandler_Accepted(t *testing.T) {
	cfg := uploadConfig(t)
	h := NewUploadHandler(admitAll(), cfg)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadRequest(t, uploadOpts{
		sport: "weightlifting", exercise: "squat", filename: "lift.mp4",
	}))

	data := decodeData(t, rec, http.StatusAccepted)
	if data["status"] != "queued" {
		t.Errorf("expected queued, got %v", data["status"])
	}
	if data["sport"] != "weightlifting" {
		t.Errorf("unexpected sport: %v", data["sport"])
	}
	// Alias resolved at the boundary.
	if data["exercise_type"] != "barbell_squat" {
		t.Errorf("expected alias resolved to barbell_squat, got %v", data["exercise_type"])
	}
	if _, err := uuid.Parse(data["job_id"].(string)); err != nil {
		t.Errorf("job_id is not a uuid: %v", data["job_id"])
	}

	// The clip landed in the upload dir under the job id.
	entries, err := os.ReadDir(cfg.Dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected 1 stored upload, got %v (err %v)", entries, err)
	}
	if filepath.Ext(entries[0].Name()) != ".mp4" {
		t.Errorf("stored file lost its extension: %s", entries[0].Name())
	}
}

func TestUploadHandler_BasketballDefaultsExercise(t *testing.T) {
	h := NewUploadHandler(admitAll(), uploadConfig(t))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadRequest(t, uploadOpts{sport: "basketball", filename: "shot.mov"}))

	data := decodeData(t, rec, http.StatusAccepted)
	if data["exercise_type"] != "shot_off_dribble" {
		t.Errorf("expected basketball default, got %v", data["exercise_type"])
	}
}

func TestUploadHandler_MissingSport(t *testing.T) {
	h := NewUploadHandler(admitAll(), uploadConfig(t))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadRequest(t, uploadOpts{filename: "clip.mp4"}))

	if rec.Code != http.StatusBadRequest || decodeErr(t, rec) != "INVALID_REQUEST" {
		t.Errorf("expected 400 INVALID_REQUEST, got %d", rec.Code)
	}
}

func TestUploadHandler_UnknownSport(t *testing.T) {
	h := NewUploadHandler(admitAll(), uploadConfig(t))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadRequest(t, uploadOpts{sport: "cricket", filename: "clip.mp4"}))

	if rec.Code != http.StatusBadRequest || decodeErr(t, rec) != "UNSUPPORTED_SPORT" {
		t.Errorf("expected 400 UNSUPPORTED_SPORT, got %d", rec.Code)
	}
}

func TestUploadHandler_UnknownExercise(t *testing.T) {
	h := NewUploadHandler(admitAll(), uploadConfig(t))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadRequest(t, uploadOpts{
		sport: "golf", exercise: "deadlift", filename: "swing.mp4",
	}))

	if rec.Code != http.StatusBadRequest || decodeErr(t, rec) != "UNSUPPORTED_EXERCISE_TYPE" {
		t.Errorf("expected 400 UNSUPPORTED_EXERCISE_TYPE, got %d", rec.Code)
	}
}

func TestUploadHandler_MissingExerciseWhenRequired(t *testing.T) {
	h := NewUploadHandler(admitAll(), uploadConfig(t))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadRequest(t, uploadOpts{sport: "golf", filename: "swing.mp4"}))

	if rec.Code != http.StatusBadRequest || decodeErr(t, rec) != "UNSUPPORTED_EXERCISE_TYPE" {
		t.Errorf("expected 400 for golf without movement, got %d", rec.Code)
	}
}

func TestUploadHandler_MissingFile(t *testing.T) {
	h := NewUploadHandler(admitAll(), uploadConfig(t))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadRequest(t, uploadOpts{sport: "basketball"}))

	if rec.Code != http.StatusBadRequest || decodeErr(t, rec) != "INVALID_REQUEST" {
		t.Errorf("expected 400 INVALID_REQUEST, got %d", rec.Code)
	}
}

func TestUploadHandler_UnsupportedFormat(t *testing.T) {
	h := NewUploadHandler(admitAll(), uploadConfig(t))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadRequest(t, uploadOpts{sport: "basketball", filename: "clip.gif"}))

	if rec.Code != http.StatusBadRequest || decodeErr(t, rec) != "UNSUPPORTED_FORMAT" {
		t.Errorf("expected 400 UNSUPPORTED_FORMAT, got %d", rec.Code)
	}
}

func TestUploadHandler_DurationTooLong(t *testing.T) {
	h := NewUploadHandler(admitAll(), uploadConfig(t))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadRequest(t, uploadOpts{
		sport: "basketball", duration: "61.5", filename: "clip.mp4",
	}))

	if rec.Code != http.StatusBadRequest || decodeErr(t, rec) != "VIDEO_TOO_LONG" {
		t.Errorf("expected 400 VIDEO_TOO_LONG, got %d", rec.Code)
	}
}

func TestUploadHandler_FileTooLarge(t *testing.T) {
	cfg := uploadConfig(t) // 1MB cap
	h := NewUploadHandler(admitAll(), cfg)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadRequest(t, uploadOpts{
		sport: "basketball", filename: "big.mp4", content: bytes.Repeat([]byte("x"), 1<<20+1),
	}))

	if rec.Code != http.StatusRequestEntityTooLarge || decodeErr(t, rec) != "FILE_TOO_LARGE" {
		t.Errorf("expected 413 FILE_TOO_LARGE, got %d", rec.Code)
	}

	// No partial file left behind.
	entries, _ := os.ReadDir(cfg.Dir)
	if len(entries) != 0 {
		t.Errorf("oversized upload left %d files behind", len(entries))
	}
}

func TestUploadHandler_CapacityExceeded(t *testing.T) {
	cfg := uploadConfig(t)
	rejecting := &mockSubmitter{fn: func(_ orchestrator.SubmitRequest) (models.Job, error) {
		return models.Job{}, orchestrator.ErrCapacityExceeded
	}}
	h := NewUploadHandler(rejecting, cfg)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadRequest(t, uploadOpts{sport: "basketball", filename: "clip.mp4"}))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After header, got %q", rec.Header().Get("Retry-After"))
	}
	if decodeErr(t, rec) != "CAPACITY_EXCEEDED" {
		t.Error("expected CAPACITY_EXCEEDED code")
	}

	// The saved upload is cleaned up on rejection.
	entries, _ := os.ReadDir(cfg.Dir)
	if len(entries) != 0 {
		t.Errorf("rejected upload left %d files behind", len(entries))
	}
}

// --- status ---

type mockStatusReader struct {
	fn func(jobID uuid.UUID) (models.Job, error)
}

func (m *mockStatusReader) Status(jobID uuid.UUID) (models.Job, error) { return m.fn(jobID) }

func TestStatusHandler_Processing(t *testing.T) {
	jobID := uuid.New()
	progress := 60.0
	h := NewStatusHandler(&mockStatusReader{fn: func(id uuid.UUID) (models.Job, error) {
		if id != jobID {
			t.Errorf("handler passed wrong id %s", id)
		}
		return models.Job{ID: id, Status: models.JobStatusProcessing, Progress: &progress}, nil
	}})

	rec := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/status/"+jobID.String(), nil), "jobID", jobID.String())
	h.ServeHTTP(rec, r)

	data := decodeData(t, rec, http.StatusOK)
	if data["status"] != "processing" {
		t.Errorf("expected processing, got %v", data["status"])
	}
	if data["progress"] != 60.0 {
		t.Errorf("expected progress 60, got %v", data["progress"])
	}
	if _, present := data["error"]; present {
		t.Error("error field should be omitted for healthy jobs")
	}
}

func TestStatusHandler_CompletedCarriesAnalysisID(t *testing.T) {
	jobID, analysisID := uuid.New(), uuid.New()
	full := 100.0
	h := NewStatusHandler(&mockStatusReader{fn: func(id uuid.UUID) (models.Job, error) {
		return models.Job{ID: id, Status: models.JobStatusCompleted, Progress: &full, AnalysisID: &analysisID}, nil
	}})

	rec := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "jobID", jobID.String())
	h.ServeHTTP(rec, r)

	data := decodeData(t, rec, http.StatusOK)
	if data["analysis_id"] != analysisID.String() {
		t.Errorf("expected analysis id %s, got %v", analysisID, data["analysis_id"])
	}
}

func TestStatusHandler_NotFound(t *testing.T) {
	h := NewStatusHandler(&mockStatusReader{fn: func(id uuid.UUID) (models.Job, error) {
		return models.Job{}, orchestrator.ErrNotFound
	}})

	rec := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "jobID", uuid.NewString())
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusNotFound || decodeErr(t, rec) != "JOB_NOT_FOUND" {
		t.Errorf("expected 404 JOB_NOT_FOUND, got %d", rec.Code)
	}
}

func TestStatusHandler_MalformedID(t *testing.T) {
	h := NewStatusHandler(&mockStatusReader{fn: func(id uuid.UUID) (models.Job, error) {
		t.Fatal("service must not be called for malformed ids")
		return models.Job{}, nil
	}})

	rec := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "jobID", "not-a-uuid")
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusBadRequest || decodeErr(t, rec) != "INVALID_REQUEST" {
		t.Errorf("expected 400 INVALID_REQUEST, got %d", rec.Code)
	}
}

// --- result ---

type mockResultReader struct {
	fn func(jobID uuid.UUID) (*models.Result, error)
}

func (m *mockResultReader) ResultForJob(_ context.Context, jobID uuid.UUID) (*models.Result, error) {
	return m.fn(jobID)
}

func TestResultHandler_Success(t *testing.T) {
	jobID := uuid.New()
	h := NewResultHandler(&mockResultReader{fn: func(id uuid.UUID) (*models.Result, error) {
		return &models.Result{
			AnalysisID:   uuid.New(),
			VideoID:      id,
			Sport:        "golf",
			OverallScore: 77.5,
			Scores:       map[string]float64{"tempo": 70},
		}, nil
	}})

	rec := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "jobID", jobID.String())
	h.ServeHTTP(rec, r)

	data := decodeData(t, rec, http.StatusOK)
	if data["overall_score"] != 77.5 {
		t.Errorf("unexpected overall score: %v", data["overall_score"])
	}
	if data["video_id"] != jobID.String() {
		t.Errorf("unexpected video id: %v", data["video_id"])
	}
}

func TestResultHandler_NotFound(t *testing.T) {
	h := NewResultHandler(&mockResultReader{fn: func(id uuid.UUID) (*models.Result, error) {
		return nil, orchestrator.ErrNotFound
	}})

	rec := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "jobID", uuid.NewString())
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusNotFound || decodeErr(t, rec) != "RESULT_NOT_FOUND" {
		t.Errorf("expected 404 RESULT_NOT_FOUND, got %d", rec.Code)
	}
}

func TestResultHandler_InternalError(t *testing.T) {
	h := NewResultHandler(&mockResultReader{fn: func(id uuid.UUID) (*models.Result, error) {
		return nil, errors.New("archive down")
	}})

	rec := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "jobID", uuid.NewString())
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusInternalServerError || decodeErr(t, rec) != "INTERNAL_ERROR" {
		t.Errorf("expected 500 INTERNAL_ERROR, got %d", rec.Code)
	}
}

// --- sports ---

func TestListSportsHandler(t *testing.T) {
	h := NewListSportsHandler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sports", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var env struct {
		Data []models.Sport `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Data) != 8 {
		t.Errorf("expected 8 sports, got %d", len(env.Data))
	}
}

func TestGetSportHandler(t *testing.T) {
	h := NewGetSportHandler()

	rec := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "sportID", "weightlifting")
	h.ServeHTTP(rec, r)

	data := decodeData(t, rec, http.StatusOK)
	if data["id"] != "weightlifting" {
		t.Errorf("unexpected sport: %v", data["id"])
	}

	rec = httptest.NewRecorder()
	r = withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "sportID", "chess")
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusNotFound || decodeErr(t, rec) != "SPORT_NOT_FOUND" {
		t.Errorf("expected 404 SPORT_NOT_FOUND, got %d", rec.Code)
	}
}

// --- delete ---

type mockForgetter struct {
	fn func(jobID uuid.UUID) (models.Job, error)
}

func (m *mockForgetter) Forget(jobID uuid.UUID) (models.Job, error) { return m.fn(jobID) }

func TestDeleteVideoHandler_RemovesVideoFile(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(videoPath, []byte("bytes"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	jobID := uuid.New()
	h := NewDeleteVideoHandler(&mockForgetter{fn: func(id uuid.UUID) (models.Job, error) {
		return models.Job{ID: id, Status: models.JobStatusCompleted, VideoPath: videoPath}, nil
	}})

	rec := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "jobID", jobID.String())
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(videoPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("video file should be removed, stat err: %v", err)
	}
}

func TestDeleteVideoHandler_ActiveJobConflict(t *testing.T) {
	h := NewDeleteVideoHandler(&mockForgetter{fn: func(id uuid.UUID) (models.Job, error) {
		return models.Job{}, orchestrator.ErrJobActive
	}})

	rec := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "jobID", uuid.NewString())
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusConflict || decodeErr(t, rec) != "JOB_ACTIVE" {
		t.Errorf("expected 409 JOB_ACTIVE, got %d", rec.Code)
	}
}

func TestDeleteVideoHandler_NotFound(t *testing.T) {
	h := NewDeleteVideoHandler(&mockForgetter{fn: func(id uuid.UUID) (models.Job, error) {
		return models.Job{}, orchestrator.ErrNotFound
	}})

	rec := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "jobID", uuid.NewString())
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusNotFound || decodeErr(t, rec) != "JOB_NOT_FOUND" {
		t.Errorf("expected 404 JOB_NOT_FOUND, got %d", rec.Code)
	}
}
