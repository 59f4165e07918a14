package mock

import (
	"context"
	"time"

	"github.com/trueform/formsight/pkg/models"
)

// MockEngine satisfies models.Engine for testing.
type MockEngine struct {
	Name_       string
	AnalyzeFunc func(ctx context.Context, req models.AnalysisRequest, report models.ProgressFunc) (*models.Result, error)
}

func (m *MockEngine) Name() string { return m.Name_ }

func (m *MockEngine) Analyze(ctx context.Context, req models.AnalysisRequest, report models.ProgressFunc) (*models.Result, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req, report)
	}
	return &models.Result{}, nil
}

// CannedResult returns a well-formed result for the given request.
func CannedResult(req models.AnalysisRequest) *models.Result {
	return &models.Result{
		VideoID:      req.VideoID,
		Sport:        req.Sport,
		ExerciseType: req.ExerciseType,
		OverallScore: 82.5,
		Scores: map[string]float64{
			"balance":        88,
			"follow_through": 77,
		},
		Feedback: []models.Feedback{
			{Category: req.Sport, Aspect: "follow_through", Message: "Hold the follow-through longer", Severity: "warning"},
		},
		Strengths:      []string{"balance"},
		Weaknesses:     []string{"follow_through"},
		FramesAnalyzed: 120,
		ProcessingTime: 0.1,
		AnalyzedAt:     time.Now().UTC(),
	}
}

// NewMockEngine returns a MockEngine that reports the given progress sequence
// and then succeeds with a canned result.
func NewMockEngine(progress ...float64) *MockEngine {
	return &MockEngine{
		Name_: "mock",
		AnalyzeFunc: func(_ context.Context, req models.AnalysisRequest, report models.ProgressFunc) (*models.Result, error) {
			for _, p := range progress {
				if report != nil {
					report(p)
				}
			}
			return CannedResult(req), nil
		},
	}
}

// NewFailingEngine returns a MockEngine that always returns the given error.
func NewFailingEngine(err error) *MockEngine {
	return &MockEngine{
		Name_: "mock-failing",
		AnalyzeFunc: func(_ context.Context, _ models.AnalysisRequest, _ models.ProgressFunc) (*models.Result, error) {
			return nil, err
		},
	}
}

// NewNoPoseEngine returns a MockEngine that reports the domain failure of a
// video without usable pose data.
func NewNoPoseEngine() *MockEngine {
	return NewFailingEngine(models.ErrNoPoseData)
}

// NewBlockingEngine returns a MockEngine that blocks until ctx is cancelled.
func NewBlockingEngine() *MockEngine {
	return &MockEngine{
		Name_: "mock-blocking",
		AnalyzeFunc: func(ctx context.Context, _ models.AnalysisRequest, _ models.ProgressFunc) (*models.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

// NewGatedEngine returns a MockEngine that waits on gate before succeeding,
// so tests can hold workers busy and release them one at a time.
func NewGatedEngine(gate <-chan struct{}) *MockEngine {
	return &MockEngine{
		Name_: "mock-gated",
		AnalyzeFunc: func(ctx context.Context, req models.AnalysisRequest, _ models.ProgressFunc) (*models.Result, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-gate:
				return CannedResult(req), nil
			}
		},
	}
}

// Compile-time check that MockEngine implements models.Engine.
var _ models.Engine = (*MockEngine)(nil)
