package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the buffer has no room; Enqueue never blocks.
	ErrQueueFull = errors.New("queue full")
	// ErrQueueStopped is returned when the queue is not accepting jobs.
	ErrQueueStopped = errors.New("queue stopped")
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Stats counts job outcomes since the queue was built. Pending covers buffered, running and
// retry-scheduled jobs.
type Stats struct {
	Processed uint64 `json:"processed"`
	Retried   uint64 `json:"retried"`
	Failed    uint64 `json:"failed"`
	Pending   int    `json:"pending"`
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	// OnFailure is invoked once a job exhausted its retries.
	OnFailure func(Job, error)
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
	onFailure  func(Job, error)

	processed atomic.Uint64
	retried   atomic.Uint64
	failed    atomic.Uint64
	pending   atomic.Int64

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		onFailure:  cfg.OnFailure,
		jobs:       make(chan Job, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers and waits for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.started = false
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue pushes a job onto the queue without waiting for buffer space.
func (q *Queue) Enqueue(job Job) error {
	ctx, err := q.accepting()
	if err != nil {
		return err
	}
	prepare(&job)

	q.pending.Add(1)
	select {
	case <-ctx.Done():
		q.pending.Add(-1)
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueStopped)
	case q.jobs <- job:
		return nil
	default:
		q.pending.Add(-1)
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

// EnqueueWait pushes a job, waiting for buffer space until ctx is done or the queue stops.
func (q *Queue) EnqueueWait(ctx context.Context, job Job) error {
	qctx, err := q.accepting()
	if err != nil {
		return err
	}
	prepare(&job)

	q.pending.Add(1)
	select {
	case q.jobs <- job:
		return nil
	case <-qctx.Done():
		q.pending.Add(-1)
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueStopped)
	case <-ctx.Done():
		q.pending.Add(-1)
		return fmt.Errorf("queue %s: %w", q.name, ctx.Err())
	}
}

// Drain waits until every accepted job finished or failed for good, then stops the queue.
// Jobs still pending when ctx is done are dropped.
func (q *Queue) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for q.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			dropped := q.pending.Load()
			q.Stop()
			return fmt.Errorf("queue %s: %d jobs dropped: %w", q.name, dropped, ctx.Err())
		case <-ticker.C:
		}
	}
	q.Stop()
	return nil
}

func (q *Queue) accepting() (context.Context, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return nil, fmt.Errorf("queue %s: %w", q.name, ErrQueueStopped)
	}
	return q.ctx, nil
}

func prepare(job *Job) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
}

// Len reports the number of buffered jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Stats returns a snapshot of the outcome counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Processed: q.processed.Load(),
		Retried:   q.retried.Load(),
		Failed:    q.failed.Load(),
		Pending:   int(q.pending.Load()),
	}
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.run(job); err != nil {
				q.handleFailure(job, err)
				continue
			}
			q.processed.Add(1)
			q.pending.Add(-1)
		}
	}
}

// run shields the worker from a panicking handler.
func (q *Queue) run(job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, p)
		}
	}()
	return q.handler(q.ctx, job)
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.fail(job, err)
		return
	}
	q.retried.Add(1)
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.fail(j, fmt.Errorf("queue %s: requeue: %w", q.name, ErrQueueStopped))
		case <-timer.C:
			select {
			case q.jobs <- j:
			case <-q.ctx.Done():
				q.fail(j, fmt.Errorf("queue %s: requeue: %w", q.name, ErrQueueStopped))
			}
		}
	}(job)
}

// fail is the single exit for jobs that will not be attempted again.
func (q *Queue) fail(job Job, err error) {
	q.failed.Add(1)
	q.pending.Add(-1)
	q.logger.Sugar().Errorw("job failed permanently", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)
	if q.onFailure != nil {
		q.onFailure(job, err)
	}
}
