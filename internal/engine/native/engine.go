// Package native runs the in-process form analysis pipeline. It stands in for
// the full pose-estimation stack in development and single-binary deployments:
// scoring is derived deterministically from the submitted video so repeated
// runs of the same clip produce the same result.
package native

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"github.com/trueform/formsight/internal/config"
	"github.com/trueform/formsight/pkg/models"
)

// Pipeline stage boundaries reported as progress while an analysis runs.
var stageProgress = []float64{10, 20, 30, 60, 70, 90}

// metricNames maps a sport to the sub-metrics its analyzer scores.
var metricNames = map[string][]string{
	"basketball":    {"release_angle", "elbow_alignment", "follow_through", "knee_bend", "balance"},
	"golf":          {"hip_rotation", "shoulder_turn", "swing_plane", "tempo", "weight_transfer"},
	"weightlifting": {"depth", "back_angle", "bar_path", "knee_tracking", "tempo"},
	"baseball":      {"hip_rotation", "stride_length", "bat_path", "weight_transfer"},
	"soccer":        {"plant_foot", "hip_rotation", "follow_through", "balance"},
	"track_field":   {"stride_length", "arm_drive", "posture", "ground_contact"},
	"volleyball":    {"approach_timing", "arm_swing", "jump_mechanics", "landing"},
	"lacrosse":      {"hand_position", "hip_rotation", "follow_through", "footwork"},
}

// metricAdvice carries the feedback text attached to a low-scoring metric.
var metricAdvice = map[string]string{
	"release_angle":   "Raise your release point for a higher arc",
	"elbow_alignment": "Keep the shooting elbow tucked under the ball",
	"follow_through":  "Hold the follow-through until the motion completes",
	"knee_bend":       "Load deeper through the knees before extending",
	"balance":         "Keep your weight centered through the movement",
	"hip_rotation":    "Drive the hips through earlier in the sequence",
	"shoulder_turn":   "Complete the shoulder turn before starting down",
	"swing_plane":     "Keep the club on plane through the downswing",
	"tempo":           "Slow the transition to keep a consistent tempo",
	"weight_transfer": "Shift weight fully onto the lead side at contact",
	"depth":           "Reach full depth before reversing the movement",
	"back_angle":      "Keep the spine neutral under load",
	"bar_path":        "Keep the bar over mid-foot through the lift",
	"knee_tracking":   "Track the knees over the toes",
}

// Engine implements models.Engine with the simulated native pipeline.
type Engine struct {
	cfg config.NativeEngineConfig

	// stageDelay spaces out progress reports; overridable in tests.
	stageDelay time.Duration
}

func NewEngine(cfg config.NativeEngineConfig) *Engine {
	return &Engine{cfg: cfg, stageDelay: 50 * time.Millisecond}
}

func (e *Engine) Name() string { return "native" }

// Analyze scores the clip sport by sport, reporting staged progress as the
// pipeline advances. It fails with ErrNoPoseData when the video cannot be
// read, and returns early when ctx is cancelled.
func (e *Engine) Analyze(ctx context.Context, req models.AnalysisRequest, report models.ProgressFunc) (*models.Result, error) {
	start := time.Now()

	info, err := os.Stat(req.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrNoPoseData, req.VideoPath)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: empty video file", models.ErrNoPoseData)
	}

	for _, p := range stageProgress {
		if err := e.wait(ctx); err != nil {
			return nil, err
		}
		if report != nil {
			report(p)
		}
	}

	seed := e.seed(req)
	names, ok := metricNames[req.Sport]
	if !ok {
		names = []string{"posture", "balance", "timing", "alignment"}
	}

	scores := make(map[string]float64, len(names))
	var total float64
	var strengths, weaknesses []string
	var feedback []models.Feedback

	for i, name := range names {
		score := scoreFor(seed, i)
		scores[name] = score
		total += score

		switch {
		case score >= 85:
			strengths = append(strengths, name)
		case score < 70:
			weaknesses = append(weaknesses, name)
			severity := "warning"
			if score < 60 {
				severity = "critical"
			}
			feedback = append(feedback, models.Feedback{
				Category: req.Sport,
				Aspect:   name,
				Message:  adviceFor(name),
				Severity: severity,
			})
		}
	}

	if report != nil {
		report(100)
	}

	frameRate := e.cfg.FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}

	return &models.Result{
		VideoID:        req.VideoID,
		Sport:          req.Sport,
		ExerciseType:   req.ExerciseType,
		OverallScore:   total / float64(len(names)),
		Scores:         scores,
		Feedback:       feedback,
		Strengths:      strengths,
		Weaknesses:     weaknesses,
		FramesAnalyzed: int(seed%240) + frameRate,
		ProcessingTime: time.Since(start).Seconds(),
		AnalyzedAt:     time.Now().UTC(),
	}, nil
}

func (e *Engine) wait(ctx context.Context) error {
	t := time.NewTimer(e.stageDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// seed hashes the request so the same clip always scores the same.
func (e *Engine) seed(req models.AnalysisRequest) uint64 {
	h := fnv.New64a()
	h.Write([]byte(req.VideoID.String()))
	h.Write([]byte(req.Sport))
	h.Write([]byte(req.ExerciseType))
	return h.Sum64()
}

// scoreFor spreads metric scores across [55,95].
func scoreFor(seed uint64, i int) float64 {
	v := (seed >> (uint(i%8) * 8)) & 0xff
	return 55 + float64(v%41)
}

func adviceFor(metric string) string {
	if msg, ok := metricAdvice[metric]; ok {
		return msg
	}
	return "Focus on consistency through the " + metric + " phase"
}

var _ models.Engine = (*Engine)(nil)
