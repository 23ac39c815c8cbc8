package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-voice/internal/jobs"
)

// QueueConfig sizes the queue and its worker pool.
type QueueConfig struct {
	BufferSize int
	Workers    int
	// MaxRetries is applied to jobs published without their own limit.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number.
	RetryBackoff time.Duration
	// Log receives store failures. The zero value discards them.
	Log zerolog.Logger
}

// DefaultQueueConfig returns the defaults used by the batch runner.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize:   100,
		Workers:      5,
		MaxRetries:   3,
		RetryBackoff: time.Second,
	}
}

// Queue is a channel-backed publisher and consumer, suitable for a single
// process.
type Queue struct {
	cfg       QueueConfig
	jobChan   chan *jobs.TranscriptionJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	log       zerolog.Logger

	// OnFinish is called once per job when it reaches a terminal status.
	OnFinish func(job *jobs.TranscriptionJob)
}

// NewQueue creates a new in-memory job queue. store may be nil.
func NewQueue(cfg QueueConfig, store jobs.JobStore) *Queue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultQueueConfig().BufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Queue{
		cfg:       cfg,
		jobChan:   make(chan *jobs.TranscriptionJob, cfg.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		log:       cfg.Log,
	}
}

// Workers returns the size of the worker pool.
func (q *Queue) Workers() int {
	return q.cfg.Workers
}

// Publish enqueues a job for asynchronous processing.
func (q *Queue) Publish(ctx context.Context, job *jobs.TranscriptionJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.cfg.MaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start launches the worker pool. It returns immediately.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.TranscriptionJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	q.saveJob(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()

		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			q.saveJob(ctx, job)

			backoff := time.Duration(job.RetryCount) * q.cfg.RetryBackoff
			time.AfterFunc(backoff, func() {
				job.Status = jobs.JobStatusPending
				job.StartedAt = nil
				job.CompletedAt = nil
				if err := q.Publish(ctx, job); err != nil {
					job.Status = jobs.JobStatusFailed
					job.Error = fmt.Sprintf("%s (requeue: %v)", job.Error, err)
					q.finish(ctx, job)
				}
			})
			return
		}
		job.Status = jobs.JobStatusFailed
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	q.finish(ctx, job)
}

func (q *Queue) finish(ctx context.Context, job *jobs.TranscriptionJob) {
	q.saveJob(ctx, job)
	if q.OnFinish != nil {
		q.OnFinish(job)
	}
}

func (q *Queue) saveJob(ctx context.Context, job *jobs.TranscriptionJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Warn().
			Err(err).
			Str("job_id", job.JobID).
			Str("status", string(job.Status)).
			Msg("Failed to save job state")
	}
}

// Stop closes the queue and waits for in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
