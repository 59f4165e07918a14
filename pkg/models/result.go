package models

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is one coaching observation produced by the analysis engine.
// Feedback entries are ordered for presentation; the order is preserved
// end to end.
type Feedback struct {
	Category string `json:"category"`
	Aspect   string `json:"aspect"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Result is the immutable output of one completed analysis. It is written once
// by the dispatcher at the moment of success and never mutated afterward.
// VideoID is a lookup key back to the submitted video, not an ownership
// relation — a Result outlives its Job.
type Result struct {
	AnalysisID     uuid.UUID          `json:"analysis_id"`
	VideoID        uuid.UUID          `json:"video_id"`
	Sport          string             `json:"sport"`
	ExerciseType   string             `json:"exercise_type,omitempty"`
	OverallScore   float64            `json:"overall_score"`
	Scores         map[string]float64 `json:"scores"`
	Feedback       []Feedback         `json:"feedback"`
	Strengths      []string           `json:"strengths"`
	Weaknesses     []string           `json:"weaknesses"`
	FramesAnalyzed int                `json:"frames_analyzed"`
	ProcessingTime float64            `json:"processing_time"`
	AnalyzedAt     time.Time          `json:"analyzed_at"`
}

// Clone returns a deep copy so callers can hand out Results without exposing
// the stored maps and slices to mutation.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Scores != nil {
		cp.Scores = make(map[string]float64, len(r.Scores))
		for k, v := range r.Scores {
			cp.Scores[k] = v
		}
	}
	cp.Feedback = append([]Feedback(nil), r.Feedback...)
	cp.Strengths = append([]string(nil), r.Strengths...)
	cp.Weaknesses = append([]string(nil), r.Weaknesses...)
	return &cp
}
