// Package tracker accepts uploaded clips as jobs and runs the reaction
// pipeline for them on a bounded worker pool.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/priyadarshi7/ZenLearn/internal/artifact"
	"github.com/priyadarshi7/ZenLearn/internal/audio"
	"github.com/priyadarshi7/ZenLearn/internal/cache"
	"github.com/priyadarshi7/ZenLearn/internal/events"
	"github.com/priyadarshi7/ZenLearn/internal/store"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrQueueFull         = errors.New("job queue is full")
	ErrShuttingDown      = errors.New("service shutting down")
	ErrStageTimeout      = errors.New("stage timed out")
	ErrUnsupportedFormat = errors.New("only mp3 files are supported")
	ErrUploadStorage     = errors.New("storing upload failed")
)

// Work is one uploaded clip.
type Work struct {
	Filename string
	Voice    string
	Audio    io.Reader
}

// Config sizes the worker pool.
type Config struct {
	Workers   int
	QueueSize int
	StatusTTL time.Duration
}

type queuedJob struct {
	id        uuid.UUID
	inputPath string
	voice     string
	ready     <-chan struct{}
}

// Tracker owns job records and dispatches submitted jobs to workers started by Run.
type Tracker struct {
	store     store.Store
	cache     cache.Cache
	bus       *events.Bus
	artifacts *artifact.Store
	pipeline  *Pipeline
	workers   int
	statusTTL time.Duration

	mu      sync.RWMutex
	stopped bool
	queue   chan queuedJob
}

// New creates a Tracker. Jobs are accepted immediately but only processed once Run is called.
func New(cfg Config, st store.Store, ca cache.Cache, bus *events.Bus, artifacts *artifact.Store, pipeline *Pipeline) *Tracker {
	if ca == nil {
		ca = cache.Nop{}
	}
	if bus == nil {
		bus = events.NewBus()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Tracker{
		store:     st,
		cache:     ca,
		bus:       bus,
		artifacts: artifacts,
		pipeline:  pipeline,
		workers:   workers,
		statusTTL: cfg.StatusTTL,
		queue:     make(chan queuedJob, queueSize),
	}
}

// Submit stores the clip, records a submitted job and reserves a queue slot for it.
// The returned job is the snapshot taken at creation. No worker starts the job
// until dispatch is called, so callers hand the job id to the client first and
// dispatch afterwards. dispatch is safe to call more than once.
func (t *Tracker) Submit(ctx context.Context, work Work) (job *models.Job, dispatch func(), err error) {
	if !audio.HasAcceptedExtension(work.Filename) {
		return nil, nil, ErrUnsupportedFormat
	}

	id := uuid.New()
	inputPath, err := t.artifacts.SaveUpload(id, work.Filename, work.Audio)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUploadStorage, err)
	}

	voice := work.Voice
	if voice == "" {
		voice = t.pipeline.DefaultVoice()
	}

	now := time.Now().UTC()
	created := &models.Job{
		ID:        id,
		Status:    models.JobStatusSubmitted,
		Voice:     voice,
		InputFile: inputPath,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.CreateJob(ctx, created); err != nil {
		if rmErr := os.Remove(inputPath); rmErr != nil {
			slog.Warn("removing orphaned upload", "path", inputPath, "error", rmErr)
		}
		return nil, nil, fmt.Errorf("creating job: %w", err)
	}
	_ = t.cache.SetJobStatus(ctx, id, models.JobStatusSubmitted, t.statusTTL)
	t.bus.Publish(events.Event{JobID: id, Status: models.JobStatusSubmitted})

	snapshot := *created

	ready := make(chan struct{})
	if err := t.enqueue(queuedJob{id: id, inputPath: inputPath, voice: voice, ready: ready}); err != nil {
		slog.Warn("job not queued", "job_id", id, "error", err)
		t.fail(context.WithoutCancel(ctx), id, err.Error())
		return nil, nil, err
	}

	var once sync.Once
	dispatch = func() { once.Do(func() { close(ready) }) }

	slog.Info("job submitted", "job_id", id, "input_file", inputPath, "voice", voice)
	return &snapshot, dispatch, nil
}

func (t *Tracker) enqueue(q queuedJob) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.stopped {
		return ErrShuttingDown
	}
	select {
	case t.queue <- q:
		return nil
	default:
		return ErrQueueFull
	}
}

// GetStatus returns the current state of a job. Malformed and unknown ids yield ErrNotFound.
func (t *Tracker) GetStatus(ctx context.Context, id string) (*models.Job, error) {
	jobID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}

	job, err := t.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return job, nil
}

// Process runs the pipeline inline under ctx. No job record is created.
func (t *Tracker) Process(ctx context.Context, work Work) (*models.ReactionResult, error) {
	if !audio.HasAcceptedExtension(work.Filename) {
		return nil, ErrUnsupportedFormat
	}

	id := uuid.New()
	inputPath, err := t.artifacts.SaveUpload(id, work.Filename, work.Audio)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadStorage, err)
	}

	return t.pipeline.Run(ctx, id, inputPath, work.Voice)
}

// Run starts the worker pool and blocks until ctx is cancelled. Jobs already
// running finish; jobs still queued are marked failed.
func (t *Tracker) Run(ctx context.Context) error {
	slog.Info("tracker started", "workers", t.workers, "queue_size", cap(t.queue))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < t.workers; i++ {
		g.Go(func() error {
			t.work(gctx)
			return nil
		})
	}
	err := g.Wait()

	t.drain()
	slog.Info("tracker stopped")
	return err
}

func (t *Tracker) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case q := <-t.queue:
			if !t.awaitDispatch(ctx, q) {
				return
			}
			t.runJob(context.WithoutCancel(ctx), q)
		}
	}
}

// awaitDispatch blocks until the submitter released q. A job still held back
// when shutdown begins is failed like any other queued job.
func (t *Tracker) awaitDispatch(ctx context.Context, q queuedJob) bool {
	select {
	case <-q.ready:
		return true
	case <-ctx.Done():
		t.fail(context.WithoutCancel(ctx), q.id, ErrShuttingDown.Error())
		return false
	}
}

// drain stops intake and fails every job that never reached a worker.
func (t *Tracker) drain() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()

	ctx := context.Background()
	for {
		select {
		case q := <-t.queue:
			t.fail(ctx, q.id, ErrShuttingDown.Error())
		default:
			return
		}
	}
}

// runJob performs one job. It recovers from panics and always leaves the job terminal.
func (t *Tracker) runJob(ctx context.Context, q queuedJob) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in runJob", "error", r, "job_id", q.id)
			t.fail(ctx, q.id, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := t.transition(ctx, q.id, models.JobStatusProcessing, ""); err != nil {
		slog.Error("starting job", "job_id", q.id, "error", err)
		return
	}

	result, err := t.pipeline.Run(ctx, q.id, q.inputPath, q.voice)
	if err != nil {
		t.fail(ctx, q.id, err.Error())
		return
	}

	if err := t.transition(ctx, q.id, models.JobStatusCompleted, "", store.WithResult(result)); err != nil {
		slog.Error("completing job", "job_id", q.id, "error", err)
	}
}

func (t *Tracker) fail(ctx context.Context, id uuid.UUID, message string) {
	if err := t.transition(ctx, id, models.JobStatusFailed, message, store.WithErrorMessage(message)); err != nil {
		slog.Error("failing job", "job_id", id, "error", err)
	}
}

// transition persists a status change, mirrors it to the cache and publishes it.
func (t *Tracker) transition(ctx context.Context, id uuid.UUID, status, message string, opts ...store.JobUpdateOption) error {
	if err := t.store.UpdateJobStatus(ctx, id, status, opts...); err != nil {
		return err
	}
	if err := t.cache.SetJobStatus(ctx, id, status, t.statusTTL); err != nil {
		slog.Warn("caching job status", "job_id", id, "error", err)
	}
	t.bus.Publish(events.Event{JobID: id, Status: status, Message: message})
	return nil
}
