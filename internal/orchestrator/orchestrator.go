// Package orchestrator turns uploaded videos into tracked analysis jobs. It
// owns admission control (bounded capacity, atomic admit-or-reject), the
// fixed-size worker pool that runs the analysis engine, and the read-only
// query surface over job state and results.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/trueform/formsight/internal/cache"
	"github.com/trueform/formsight/internal/registry"
	"github.com/trueform/formsight/internal/store"
	"github.com/trueform/formsight/pkg/models"
)

// Re-exported so API handlers depend on one package for error mapping.
var (
	ErrCapacityExceeded = registry.ErrCapacityExceeded
	ErrNotFound         = registry.ErrNotFound
	ErrJobActive        = registry.ErrJobActive
)

// statusMirrorTTL bounds how long a mirrored status outlives its job.
const statusMirrorTTL = 30 * time.Minute

// Options holds the dependencies for creating an Orchestrator. Archive and
// Cache are optional; everything else is required.
type Options struct {
	Jobs    *registry.JobStore
	Results *registry.ResultStore
	Archive store.Store
	Cache   cache.Cache
	Engine  models.Engine

	// Capacity is the worker count. QueueBuffer adds queued-only admission
	// depth on top of it. AnalysisTimeout forces a hung engine call to error.
	Capacity        int
	QueueBuffer     int
	AnalysisTimeout time.Duration
}

// Orchestrator coordinates admission, dispatch and queries. Create with New,
// call Start once, and Stop on shutdown.
type Orchestrator struct {
	jobs    *registry.JobStore
	results *registry.ResultStore
	archive store.Store
	cache   cache.Cache
	engine  models.Engine

	capacity   int
	admitLimit int
	timeout    time.Duration

	// queue carries admitted job ids in submission order. Its capacity equals
	// the admission bound, so a send after successful admission never blocks.
	queue chan uuid.UUID

	g      *errgroup.Group
	cancel context.CancelFunc
}

// New validates options and creates an Orchestrator. Workers do not run until
// Start is called.
func New(opts Options) (*Orchestrator, error) {
	if opts.Jobs == nil || opts.Results == nil {
		return nil, errors.New("job and result stores are required")
	}
	if opts.Engine == nil {
		return nil, errors.New("analysis engine is required")
	}
	if opts.Capacity < 1 {
		return nil, fmt.Errorf("capacity must be at least 1, got %d", opts.Capacity)
	}
	if opts.QueueBuffer < 0 {
		return nil, fmt.Errorf("queue buffer must not be negative, got %d", opts.QueueBuffer)
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = 5 * time.Minute
	}

	admitLimit := opts.Capacity + opts.QueueBuffer
	return &Orchestrator{
		jobs:       opts.Jobs,
		results:    opts.Results,
		archive:    opts.Archive,
		cache:      opts.Cache,
		engine:     opts.Engine,
		capacity:   opts.Capacity,
		admitLimit: admitLimit,
		timeout:    opts.AnalysisTimeout,
		queue:      make(chan uuid.UUID, admitLimit),
	}, nil
}

// Start launches the worker pool. Workers drain in-flight jobs and exit when
// ctx is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	o.g, ctx = errgroup.WithContext(ctx)
	for i := 0; i < o.capacity; i++ {
		worker := i
		o.g.Go(func() error {
			o.runWorker(ctx, worker)
			return nil
		})
	}
	slog.Info("dispatcher started", "workers", o.capacity, "admission_limit", o.admitLimit)
}

// Stop cancels the workers and waits for them to finish. In-flight engine
// calls are interrupted through their context.
func (o *Orchestrator) Stop() error {
	if o.cancel != nil {
		o.cancel()
	}
	if o.g != nil {
		return o.g.Wait()
	}
	return nil
}

// SubmitRequest carries an admission attempt. Sport and exercise type are
// validated upstream at the API boundary.
type SubmitRequest struct {
	VideoID      uuid.UUID
	VideoPath    string
	Sport        string
	ExerciseType string
}

// Submit decides admission synchronously. The capacity check and the job
// creation are one atomic operation inside the registry, so concurrent
// submissions racing for the last slot resolve to exactly one admission. On
// rejection nothing is mutated and the caller must resubmit later.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (models.Job, error) {
	job, err := o.jobs.Create(models.Job{
		ID:           req.VideoID,
		Sport:        req.Sport,
		ExerciseType: req.ExerciseType,
		VideoPath:    req.VideoPath,
	}, o.admitLimit)
	if err != nil {
		return models.Job{}, err
	}

	select {
	case o.queue <- job.ID:
	default:
		// Admission succeeded, so a queue slot must exist. Reaching here means
		// the accounting is broken; fail the job loudly rather than drop it.
		slog.Error("dispatch queue full after admission", "job_id", job.ID)
		if ferr := o.jobs.Fail(job.ID, "internal error: dispatch queue full"); ferr != nil {
			slog.Error("failing undispatchable job", "job_id", job.ID, "error", ferr)
		}
		return models.Job{}, fmt.Errorf("dispatch queue full for job %s", job.ID)
	}

	o.mirrorStatus(job.ID, models.JobStatusQueued)
	slog.Info("job admitted", "job_id", job.ID, "sport", req.Sport, "active", o.jobs.CountActive())
	return job, nil
}

// runWorker consumes admitted jobs in FIFO order. One worker occupies exactly
// one execution slot; the slot is released by returning to the receive loop,
// which happens on every exit path of runJob including panics.
func (o *Orchestrator) runWorker(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-o.queue:
			o.runJob(ctx, worker, jobID)
		}
	}
}

func (o *Orchestrator) runJob(ctx context.Context, worker int, jobID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in analysis worker", "worker", worker, "job_id", jobID, "panic", r)
			o.failJob(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	job, err := o.jobs.Get(jobID)
	if err != nil {
		slog.Error("queued job missing from registry", "job_id", jobID, "error", err)
		return
	}

	if err := o.jobs.MarkProcessing(jobID); err != nil {
		// A queued job has a single consumer, so this cannot happen unless the
		// state machine is broken. Surface it, never swallow it.
		slog.Error("illegal transition to processing", "job_id", jobID, "error", err)
		return
	}
	o.mirrorStatus(jobID, models.JobStatusProcessing)
	slog.Info("analysis started", "worker", worker, "job_id", jobID, "sport", job.Sport)

	actx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	report := func(p float64) {
		if err := o.jobs.SetProgress(jobID, p); err != nil {
			slog.Warn("progress update dropped", "job_id", jobID, "error", err)
		}
	}

	result, err := o.engine.Analyze(actx, models.AnalysisRequest{
		VideoID:      job.ID,
		VideoPath:    job.VideoPath,
		Sport:        job.Sport,
		ExerciseType: job.ExerciseType,
	}, report)
	if err != nil {
		o.failJob(jobID, failureMessage(err, actx, o.timeout))
		return
	}

	o.completeJob(jobID, job, result)
}

// completeJob writes the result and moves the job to completed. The result is
// stored before the transition, and the job is the only externally visible
// path to it, so no reader can observe completed without a fetchable result.
func (o *Orchestrator) completeJob(jobID uuid.UUID, job models.Job, result *models.Result) {
	result.AnalysisID = uuid.New()
	result.VideoID = job.ID
	result.Sport = job.Sport
	if result.ExerciseType == "" {
		result.ExerciseType = job.ExerciseType
	}
	if result.AnalyzedAt.IsZero() {
		result.AnalyzedAt = time.Now().UTC()
	}
	if result.OverallScore < 0 {
		result.OverallScore = 0
	}
	if result.OverallScore > 100 {
		result.OverallScore = 100
	}

	if err := o.results.Put(result); err != nil {
		slog.Error("storing result", "job_id", jobID, "analysis_id", result.AnalysisID, "error", err)
		o.failJob(jobID, fmt.Sprintf("storing result: %v", err))
		return
	}

	if o.archive != nil {
		actx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := o.archive.SaveResult(actx, result); err != nil {
			slog.Warn("archiving result", "analysis_id", result.AnalysisID, "error", err)
		}
		cancel()
	}

	if err := o.jobs.Complete(jobID, result.AnalysisID); err != nil {
		slog.Error("illegal transition to completed", "job_id", jobID, "error", err)
		return
	}
	o.mirrorStatus(jobID, models.JobStatusCompleted)
	slog.Info("analysis completed", "job_id", jobID, "analysis_id", result.AnalysisID,
		"overall_score", result.OverallScore)
}

func (o *Orchestrator) failJob(jobID uuid.UUID, message string) {
	if err := o.jobs.Fail(jobID, message); err != nil {
		slog.Error("illegal transition to error", "job_id", jobID, "error", err)
		return
	}
	o.mirrorStatus(jobID, models.JobStatusError)
	slog.Info("analysis failed", "job_id", jobID, "reason", message)
}

// failureMessage translates an engine error into the job's error message.
func failureMessage(err error, actx context.Context, timeout time.Duration) string {
	switch {
	case errors.Is(actx.Err(), context.DeadlineExceeded):
		return fmt.Sprintf("analysis timed out after %s", timeout)
	case errors.Is(err, context.Canceled):
		return "analysis cancelled during shutdown"
	case errors.Is(err, models.ErrNoPoseData):
		return "no pose data extracted from video; make sure the video contains a person and is a valid video file"
	default:
		return err.Error()
	}
}

// Status returns a consistent snapshot of the job.
func (o *Orchestrator) Status(jobID uuid.UUID) (models.Job, error) {
	return o.jobs.Get(jobID)
}

// ResultForJob resolves a job's result. A job that exists but has not
// completed yields ErrNotFound, indistinguishable from an unknown id — the
// caller separates "not ready" from "never existed" via Status. When the job
// record is gone but the result was archived, the archive serves it.
func (o *Orchestrator) ResultForJob(ctx context.Context, jobID uuid.UUID) (*models.Result, error) {
	job, err := o.jobs.Get(jobID)
	if errors.Is(err, registry.ErrNotFound) {
		return o.archivedResult(ctx, jobID)
	}
	if err != nil {
		return nil, err
	}

	if job.Status != models.JobStatusCompleted || job.AnalysisID == nil {
		return nil, fmt.Errorf("%w: no result for job %s", ErrNotFound, jobID)
	}

	result, err := o.results.Get(*job.AnalysisID)
	if errors.Is(err, registry.ErrNotFound) && o.archive != nil {
		return o.archive.GetResultByAnalysisID(ctx, *job.AnalysisID)
	}
	return result, err
}

func (o *Orchestrator) archivedResult(ctx context.Context, videoID uuid.UUID) (*models.Result, error) {
	if o.archive == nil {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, videoID)
	}
	result, err := o.archive.GetResultByVideoID(ctx, videoID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, videoID)
	}
	return result, err
}

// Forget removes a terminal job record and its status mirror, returning the
// removed snapshot so the caller can clean up the uploaded file. The archived
// result, if any, is deliberately left in place.
func (o *Orchestrator) Forget(jobID uuid.UUID) (models.Job, error) {
	job, err := o.jobs.Get(jobID)
	if err != nil {
		return models.Job{}, err
	}
	if err := o.jobs.Remove(jobID); err != nil {
		return models.Job{}, err
	}

	if o.cache != nil {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if cerr := o.cache.Delete(cctx, cache.JobStatusKey(jobID)); cerr != nil {
			slog.Warn("deleting status mirror", "job_id", jobID, "error", cerr)
		}
		cancel()
	}
	return job, nil
}

// mirrorStatus publishes the job status to Redis, best-effort. The registry
// stays authoritative; a mirror failure is logged and otherwise ignored.
func (o *Orchestrator) mirrorStatus(jobID uuid.UUID, status models.JobStatus) {
	if o.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.cache.SetJobStatus(ctx, jobID, string(status), statusMirrorTTL); err != nil {
		slog.Warn("mirroring job status", "job_id", jobID, "status", status, "error", err)
	}
}
