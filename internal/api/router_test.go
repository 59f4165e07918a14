package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trueform/formsight/internal/api"
	mw "github.com/trueform/formsight/internal/api/middleware"
	"github.com/trueform/formsight/internal/cache"
)

type stubCache struct{}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *stubCache) Ping(_ context.Context) error                                     { return nil }
func (c *stubCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (c *stubCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

var _ cache.Cache = (*stubCache)(nil)

// marker writes the name of the route that handled the request.
func marker(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(name))
	}
}

func newTestRouter() http.Handler {
	return api.NewRouter(api.Dependencies{
		RateLimit: mw.NewRateLimit(&stubCache{}, 60),

		HealthHandler:      marker("health"),
		UploadHandler:      marker("upload"),
		StatusHandler:      marker("status"),
		ResultHandler:      marker("result"),
		ListSportsHandler:  marker("sports"),
		GetSportHandler:    marker("sport"),
		DeleteVideoHandler: marker("delete"),
	})
}

func TestRouter_RoutesDispatch(t *testing.T) {
	router := newTestRouter()
	jobID := uuid.NewString()

	cases := []struct {
		method string
		path   string
		want   string
	}{
		{"GET", "/api/v1/health", "health"},
		{"POST", "/api/v1/upload", "upload"},
		{"DELETE", "/api/v1/upload/video/" + jobID, "delete"},
		{"GET", "/api/v1/status/" + jobID, "status"},
		{"GET", "/api/v1/status/results/" + jobID, "result"},
		{"GET", "/api/v1/sports", "sports"},
		{"GET", "/api/v1/sports/basketball", "sport"},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.RemoteAddr = "10.0.0.1:52000"
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.want, w.Body.String())
		})
	}
}

// The results subtree must not be swallowed by the {jobID} wildcard.
func TestRouter_ResultsSegmentPrecedence(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/status/results/"+uuid.NewString(), nil)
	req.RemoteAddr = "10.0.0.1:52000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "result", w.Body.String())
}

func TestRouter_URLParamExtraction(t *testing.T) {
	var captured string
	router := api.NewRouter(api.Dependencies{
		RateLimit: mw.NewRateLimit(&stubCache{}, 60),
		StatusHandler: func(w http.ResponseWriter, r *http.Request) {
			captured = chi.URLParam(r, "jobID")
			w.WriteHeader(http.StatusOK)
		},
	})

	jobID := uuid.NewString()
	req := httptest.NewRequest("GET", "/api/v1/status/"+jobID, nil)
	req.RemoteAddr = "10.0.0.1:52000"
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, jobID, captured)
}

func TestRouter_MissingHandlerReturns501(t *testing.T) {
	router := api.NewRouter(api.Dependencies{
		RateLimit: mw.NewRateLimit(&stubCache{}, 60),
	})

	req := httptest.NewRequest("POST", "/api/v1/upload", nil)
	req.RemoteAddr = "10.0.0.1:52000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "NOT_IMPLEMENTED", errObj["code"])
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
