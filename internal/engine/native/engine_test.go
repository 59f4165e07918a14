package native

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/trueform/formsight/internal/config"
	"github.com/trueform/formsight/pkg/models"
)

func testEngine() *Engine {
	e := NewEngine(config.NativeEngineConfig{FrameRate: 30})
	e.stageDelay = time.Millisecond
	return e
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("not a real mp4, but not empty"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return path
}

func testRequest(t *testing.T, sport, exercise string) models.AnalysisRequest {
	return models.AnalysisRequest{
		VideoID:      uuid.New(),
		VideoPath:    writeVideo(t),
		Sport:        sport,
		ExerciseType: exercise,
	}
}

func TestAnalyze_ProducesWellFormedResult(t *testing.T) {
	e := testEngine()
	req := testRequest(t, "basketball", "free_throw")

	result, err := e.Analyze(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if result.VideoID != req.VideoID {
		t.Errorf("video id not carried over")
	}
	if result.Sport != "basketball" || result.ExerciseType != "free_throw" {
		t.Errorf("request fields not carried over: %s/%s", result.Sport, result.ExerciseType)
	}
	if len(result.Scores) != 5 {
		t.Errorf("expected 5 basketball metrics, got %d", len(result.Scores))
	}
	for name, score := range result.Scores {
		if score < 55 || score > 95 {
			t.Errorf("metric %s outside [55,95]: %v", name, score)
		}
	}
	if result.OverallScore < 55 || result.OverallScore > 95 {
		t.Errorf("overall score outside metric range: %v", result.OverallScore)
	}
	if result.FramesAnalyzed <= 0 {
		t.Errorf("expected positive frame count, got %d", result.FramesAnalyzed)
	}
	if result.AnalyzedAt.IsZero() {
		t.Error("expected analyzed_at timestamp")
	}

	for _, fb := range result.Feedback {
		if fb.Severity != "warning" && fb.Severity != "critical" {
			t.Errorf("unexpected severity %q", fb.Severity)
		}
		if fb.Message == "" {
			t.Errorf("feedback for %s has no message", fb.Aspect)
		}
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	e := testEngine()
	req := testRequest(t, "golf", "driver_swing")

	first, err := e.Analyze(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	second, err := e.Analyze(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}

	if first.OverallScore != second.OverallScore {
		t.Errorf("same clip scored differently: %v vs %v", first.OverallScore, second.OverallScore)
	}
	for name, score := range first.Scores {
		if second.Scores[name] != score {
			t.Errorf("metric %s differs between runs: %v vs %v", name, score, second.Scores[name])
		}
	}
}

func TestAnalyze_ReportsStagedProgress(t *testing.T) {
	e := testEngine()
	req := testRequest(t, "weightlifting", "deadlift")

	var reports []float64
	_, err := e.Analyze(context.Background(), req, func(p float64) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	want := []float64{10, 20, 30, 60, 70, 90, 100}
	if len(reports) != len(want) {
		t.Fatalf("expected %d progress reports, got %v", len(want), reports)
	}
	for i, p := range want {
		if reports[i] != p {
			t.Errorf("report %d: expected %v, got %v", i, p, reports[i])
		}
	}
}

func TestAnalyze_MissingVideo(t *testing.T) {
	e := testEngine()
	req := models.AnalysisRequest{
		VideoID:   uuid.New(),
		VideoPath: filepath.Join(t.TempDir(), "missing.mp4"),
		Sport:     "basketball",
	}

	_, err := e.Analyze(context.Background(), req, nil)
	if !errors.Is(err, models.ErrNoPoseData) {
		t.Errorf("expected ErrNoPoseData for missing file, got %v", err)
	}
}

func TestAnalyze_EmptyVideo(t *testing.T) {
	e := testEngine()
	path := filepath.Join(t.TempDir(), "empty.mp4")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := e.Analyze(context.Background(), models.AnalysisRequest{
		VideoID: uuid.New(), VideoPath: path, Sport: "golf", ExerciseType: "chip_shot",
	}, nil)
	if !errors.Is(err, models.ErrNoPoseData) {
		t.Errorf("expected ErrNoPoseData for empty file, got %v", err)
	}
}

func TestAnalyze_ContextCancelled(t *testing.T) {
	e := NewEngine(config.NativeEngineConfig{})
	e.stageDelay = 10 * time.Second // never elapses

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := e.Analyze(ctx, testRequest(t, "soccer", ""), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAnalyze_SportWithoutMetricTable(t *testing.T) {
	e := testEngine()
	req := testRequest(t, "lacrosse", "")
	req.Sport = "unlisted_sport"

	result, err := e.Analyze(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(result.Scores) != 4 {
		t.Errorf("expected fallback metric set of 4, got %d", len(result.Scores))
	}
}
