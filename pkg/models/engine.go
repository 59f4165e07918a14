// Package models contains shared data models used across the FormSight codebase.
package models

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNoPoseData is a domain failure: the video decoded fine but contained
	// no usable pose landmarks.
	ErrNoPoseData = errors.New("no pose data extracted from video")
	// ErrEngineUnavailable indicates the engine could not be reached at all.
	ErrEngineUnavailable = errors.New("analysis engine unavailable")
	// ErrInvalidResponse indicates the remote engine returned something unparseable.
	ErrInvalidResponse = errors.New("analysis engine returned invalid response")
)

// ProgressFunc receives incremental progress reports in [0,100] while an
// analysis runs. Implementations must be safe to call from the engine's
// goroutine; out-of-order reports are tolerated downstream.
type ProgressFunc func(progress float64)

// AnalysisRequest is the input to one engine invocation.
type AnalysisRequest struct {
	VideoID      uuid.UUID
	VideoPath    string
	Sport        string
	ExerciseType string
}

// Engine is the capability interface over the pose-analysis pipeline. Never
// call a specific engine implementation directly — always inject this
// interface. Analyze is a long-running, single-shot operation: it either
// returns a Result or an error, with no other side effects. Implementations
// must honor ctx cancellation.
type Engine interface {
	Analyze(ctx context.Context, req AnalysisRequest, report ProgressFunc) (*Result, error)
	// Name returns the engine identifier (e.g., "native", "remote").
	Name() string
}
