package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/models"
	"media-pipeline/internal/pipeline"
)

// Processor runs one job's pipeline. *pipeline.Processor implements it.
type Processor interface {
	Process(ctx context.Context, job models.Job, report pipeline.ReportFunc) (*models.PipelineResult, error)
}

// Config controls scheduling and retention.
type Config struct {
	// Workers bounds how many jobs process at once. Values < 1 mean 1.
	Workers int
	// Retention is how long terminal jobs stay queryable. 0 keeps them
	// until MaxJobs forces eviction.
	Retention time.Duration
	// MaxJobs caps the number of retained terminal jobs. 0 means no cap.
	MaxJobs int
	// DefaultTimeout applies to jobs without their own timeout. 0 = none.
	DefaultTimeout time.Duration
	// JanitorInterval is how often expired jobs are swept.
	JanitorInterval time.Duration
}

const defaultJanitorInterval = time.Minute

type entry struct {
	mu     sync.Mutex
	job    models.Job
	cancel context.CancelFunc
}

// Queue owns every job record.
type Queue struct {
	processor Processor
	cfg       Config
	slots     *semaphore.Weighted

	mu     sync.RWMutex
	jobs   map[string]*entry
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	janitorWG sync.WaitGroup

	now func() time.Time
}

// New creates a Queue. Call Start to run the janitor and Shutdown to stop.
func New(processor Processor, cfg Config) *Queue {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = defaultJanitorInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		processor: processor,
		cfg:       cfg,
		slots:     semaphore.NewWeighted(int64(cfg.Workers)),
		jobs:      make(map[string]*entry),
		ctx:       ctx,
		cancel:    cancel,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// Workers returns the number of concurrent job slots.
func (q *Queue) Workers() int {
	return q.cfg.Workers
}

// Start launches the retention janitor.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.janitorWG.Add(1)
		go q.janitor()
		logging.Info("Job queue started: %d worker slot(s), retention %v, max retained %d",
			q.cfg.Workers, q.cfg.Retention, q.cfg.MaxJobs)
	})
}

// Shutdown stops accepting jobs, cancels running ones and waits for every
// background task to finish or ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		close(q.stopCh)
		q.cancel()
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		q.janitorWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

// AddJob registers a job and schedules it. An empty id is replaced with a
// generated one. The returned id identifies the job for GetStatus and
// CancelJob.
func (q *Queue) AddJob(id, input, outputDir string, opts models.JobOptions) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("%w: input is required", ErrInvalidJob)
	}
	if strings.TrimSpace(outputDir) == "" {
		return "", fmt.Errorf("%w: output directory is required", ErrInvalidJob)
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}
	if existing, ok := q.jobs[id]; ok {
		existing.mu.Lock()
		status := existing.job.Status
		existing.mu.Unlock()
		if !status.IsTerminal() {
			q.mu.Unlock()
			return "", &DuplicateJobError{ID: id, Status: status}
		}
	}

	ctx, cancel := context.WithCancel(q.ctx)
	e := &entry{
		job: models.Job{
			ID:        id,
			Input:     input,
			OutputDir: outputDir,
			Options:   opts,
			Status:    models.StatusQueued,
			CreatedAt: q.now(),
		},
		cancel: cancel,
	}
	q.jobs[id] = e
	q.wg.Add(1)
	q.mu.Unlock()

	metrics.JobsSubmittedTotal.Inc()
	logging.For("job", id).Info("Queued: input=%s output=%s", logging.Sanitize(input), outputDir)

	go q.run(ctx, e)
	return id, nil
}

// GetStatus returns a snapshot of the job.
func (q *Queue) GetStatus(id string) (models.Job, bool) {
	q.mu.RLock()
	e, ok := q.jobs[id]
	q.mu.RUnlock()
	if !ok {
		return models.Job{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), true
}

// CancelJob cancels a queued job. It returns false when the job is unknown
// or has already started.
func (q *Queue) CancelJob(id string) bool {
	q.mu.RLock()
	e, ok := q.jobs[id]
	q.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	if e.job.Status != models.StatusQueued {
		e.mu.Unlock()
		return false
	}
	now := q.now()
	e.job.Status = models.StatusCancelled
	e.job.ErrorDetail = ErrCancelled.Error()
	e.job.FinishedAt = &now
	created := e.job.CreatedAt
	e.mu.Unlock()

	// Wakes the task if it is waiting for a slot.
	e.cancel()

	metrics.JobsFinishedTotal.WithLabelValues(string(models.StatusCancelled)).Inc()
	metrics.JobDuration.WithLabelValues(string(models.StatusCancelled)).Observe(now.Sub(created).Seconds())
	logging.For("job", id).Info("Cancelled while queued")
	return true
}

// List returns snapshots of every retained job, oldest first.
func (q *Queue) List() []models.Job {
	q.mu.RLock()
	out := make([]models.Job, 0, len(q.jobs))
	for _, e := range q.jobs {
		e.mu.Lock()
		out = append(out, e.job.Clone())
		e.mu.Unlock()
	}
	q.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetStats counts retained jobs by status.
func (q *Queue) GetStats() metrics.Stats {
	stats := metrics.Stats{ByStatus: make(map[string]int, len(models.AllStatuses))}
	for _, s := range models.AllStatuses {
		stats.ByStatus[string(s)] = 0
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, e := range q.jobs {
		e.mu.Lock()
		stats.ByStatus[string(e.job.Status)]++
		e.mu.Unlock()
		stats.Total++
	}
	return stats
}

// run is the job's background task. It is the only writer of the job's
// progress and result once the job leaves the queued state.
func (q *Queue) run(ctx context.Context, e *entry) {
	defer q.wg.Done()
	defer e.cancel()

	id := e.job.ID
	log := logging.For("job", id)

	if err := q.slots.Acquire(ctx, 1); err != nil {
		// Either cancelled while queued (already recorded) or shutting down.
		q.finish(e, models.StatusError, nil, ErrShutdown)
		return
	}
	defer q.slots.Release(1)

	if ctx.Err() != nil {
		q.finish(e, models.StatusError, nil, ErrShutdown)
		return
	}

	e.mu.Lock()
	if !e.job.Status.CanTransition(models.StatusProcessing) {
		e.mu.Unlock()
		return
	}
	started := q.now()
	e.job.Status = models.StatusProcessing
	e.job.StartedAt = &started
	snapshot := e.job.Clone()
	e.mu.Unlock()

	metrics.JobsInProgress.Inc()
	defer metrics.JobsInProgress.Dec()
	log.Info("Processing started")

	timeout := snapshot.Options.Timeout
	if timeout <= 0 {
		timeout = q.cfg.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := q.process(ctx, snapshot, e)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("job timed out after %v: %w", timeout, err)
		}
		q.finish(e, models.StatusError, result, err)
		return
	}
	q.finish(e, models.StatusCompleted, result, nil)
}

// process calls the Processor, converting a panic into an error so the job
// always reaches a terminal state.
func (q *Queue) process(ctx context.Context, job models.Job, e *entry) (result *models.PipelineResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.For("job", job.ID).Error("Panic during processing: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("panic during processing: %v", r)
		}
	}()

	return q.processor.Process(ctx, job, func(stage string, percent float64) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.job.Status != models.StatusProcessing {
			return
		}
		e.job.Stage = stage
		if percent > 100 {
			percent = 100
		}
		if percent > e.job.ProgressPercent {
			e.job.ProgressPercent = percent
		}
	})
}

// finish moves the job to a terminal status if that transition is allowed.
func (q *Queue) finish(e *entry, status models.JobStatus, result *models.PipelineResult, err error) {
	e.mu.Lock()
	if !e.job.Status.CanTransition(status) {
		e.mu.Unlock()
		return
	}
	now := q.now()
	e.job.Status = status
	e.job.FinishedAt = &now
	e.job.Result = result
	if err != nil {
		e.job.ErrorDetail = err.Error()
	}
	if status == models.StatusCompleted {
		e.job.ProgressPercent = 100
	}
	id := e.job.ID
	since := e.job.CreatedAt
	if e.job.StartedAt != nil {
		since = *e.job.StartedAt
	}
	e.mu.Unlock()

	metrics.JobsFinishedTotal.WithLabelValues(string(status)).Inc()
	metrics.JobDuration.WithLabelValues(string(status)).Observe(now.Sub(since).Seconds())

	log := logging.For("job", id)
	if err != nil {
		log.Error("Finished with status %s: %v", status, err)
	} else {
		log.Info("Finished with status %s in %v", status, now.Sub(since).Round(time.Millisecond))
	}

	q.evict()
}

func (q *Queue) janitor() {
	defer q.janitorWG.Done()

	ticker := time.NewTicker(q.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.evict()
		}
	}
}

// evict drops terminal jobs past retention, then the oldest terminal jobs
// beyond MaxJobs.
func (q *Queue) evict() {
	type terminal struct {
		id       string
		finished time.Time
	}

	now := q.now()

	q.mu.Lock()
	defer q.mu.Unlock()

	var kept []terminal
	removed := 0
	for id, e := range q.jobs {
		e.mu.Lock()
		done := e.job.Status.IsTerminal() && e.job.FinishedAt != nil
		var finished time.Time
		if done {
			finished = *e.job.FinishedAt
		}
		e.mu.Unlock()
		if !done {
			continue
		}

		if q.cfg.Retention > 0 && now.Sub(finished) > q.cfg.Retention {
			delete(q.jobs, id)
			removed++
			continue
		}
		kept = append(kept, terminal{id: id, finished: finished})
	}

	if q.cfg.MaxJobs > 0 && len(kept) > q.cfg.MaxJobs {
		sort.Slice(kept, func(i, j int) bool {
			if !kept[i].finished.Equal(kept[j].finished) {
				return kept[i].finished.Before(kept[j].finished)
			}
			return kept[i].id < kept[j].id
		})
		for _, t := range kept[:len(kept)-q.cfg.MaxJobs] {
			delete(q.jobs, t.id)
			removed++
		}
	}

	if removed > 0 {
		metrics.JobsEvictedTotal.Add(float64(removed))
		logging.Debug("Evicted %d finished job(s)", removed)
	}
}
