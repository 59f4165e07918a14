// Package remote calls an external pose-analysis sidecar over HTTP. The
// sidecar streams newline-delimited JSON: zero or more progress events
// followed by exactly one result or error event.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/trueform/formsight/internal/config"
	"github.com/trueform/formsight/pkg/models"
)

// Engine implements models.Engine against a remote analysis service.
type Engine struct {
	baseURL string
	client  *http.Client
}

func NewEngine(cfg config.RemoteEngineConfig) *Engine {
	return &Engine{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (e *Engine) Name() string { return "remote" }

type analyzeRequest struct {
	VideoPath    string `json:"video_path"`
	Sport        string `json:"sport"`
	ExerciseType string `json:"exercise_type,omitempty"`
}

type analyzeEvent struct {
	Event    string         `json:"event"`
	Progress float64        `json:"progress,omitempty"`
	Result   *models.Result `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func (e *Engine) Analyze(ctx context.Context, req models.AnalysisRequest, report models.ProgressFunc) (*models.Result, error) {
	body, err := json.Marshal(analyzeRequest{
		VideoPath:    req.VideoPath,
		Sport:        req.Sport,
		ExerciseType: req.ExerciseType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	u := e.baseURL + "/api/v1/analyze"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", models.ErrEngineUnavailable, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ev analyzeEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
		}

		switch ev.Event {
		case "progress":
			if report != nil {
				report(ev.Progress)
			}
		case "result":
			if ev.Result == nil {
				return nil, fmt.Errorf("%w: result event without payload", models.ErrInvalidResponse)
			}
			return ev.Result, nil
		case "error":
			if ev.Error == "no pose data" {
				return nil, models.ErrNoPoseData
			}
			return nil, fmt.Errorf("remote analysis failed: %s", ev.Error)
		default:
			return nil, fmt.Errorf("%w: unknown event %q", models.ErrInvalidResponse, ev.Event)
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reading engine stream: %w", err)
	}

	return nil, fmt.Errorf("%w: stream ended without a result", models.ErrInvalidResponse)
}

func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrEngineUnavailable, err)
}

var _ models.Engine = (*Engine)(nil)
