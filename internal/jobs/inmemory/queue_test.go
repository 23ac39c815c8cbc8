package inmemory

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-voice/internal/jobs"
)

// collect waits for n finished jobs.
func collect(t *testing.T, q *Queue, n int) func() []*jobs.TranscriptionJob {
	t.Helper()
	var (
		mu       sync.Mutex
		finished []*jobs.TranscriptionJob
		wg       sync.WaitGroup
	)
	wg.Add(n)
	q.OnFinish = func(job *jobs.TranscriptionJob) {
		mu.Lock()
		finished = append(finished, job)
		mu.Unlock()
		wg.Done()
	}
	return func() []*jobs.TranscriptionJob {
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
		mu.Lock()
		defer mu.Unlock()
		return finished
	}
}

func TestQueue_ProcessesJobs(t *testing.T) {
	store := NewStore()
	q := NewQueue(QueueConfig{BufferSize: 10, Workers: 3}, store)
	wait := collect(t, q, 4)

	ctx := context.Background()
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.TranscriptionJob)
		j.Transcript = "text of " + j.FilePath
		return nil
	}))

	for i, f := range []string{"a.wav", "b.wav", "c.wav", "d.wav"} {
		require.NoError(t, q.Publish(ctx, &jobs.TranscriptionJob{BatchID: "b1", FilePath: f, Index: i}))
	}

	finished := wait()
	require.NoError(t, q.Stop(ctx))

	assert.Len(t, finished, 4)
	listed, err := store.ListJobs(ctx, jobs.JobFilter{BatchID: "b1", Status: jobs.JobStatusCompleted})
	require.NoError(t, err)
	require.Len(t, listed, 4)
	for i, j := range listed {
		assert.Equal(t, i, j.Index, "ordered by index")
		assert.Equal(t, "text of "+j.FilePath, j.Transcript)
		assert.NotEmpty(t, j.JobID)
		assert.NotNil(t, j.CompletedAt)
	}
}

func TestQueue_RetriesThenFails(t *testing.T) {
	q := NewQueue(QueueConfig{BufferSize: 2, Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond}, nil)
	wait := collect(t, q, 1)

	var mu sync.Mutex
	attempts := 0
	ctx := context.Background()
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("provider down")
	}))
	require.NoError(t, q.Publish(ctx, &jobs.TranscriptionJob{FilePath: "x.wav"}))

	finished := wait()
	require.NoError(t, q.Stop(ctx))

	require.Len(t, finished, 1)
	assert.Equal(t, jobs.JobStatusFailed, finished[0].Status)
	assert.Equal(t, "provider down", finished[0].Error)
	assert.Equal(t, 2, finished[0].RetryCount)
	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
}

func TestQueue_RetrySucceeds(t *testing.T) {
	q := NewQueue(QueueConfig{BufferSize: 2, Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)
	wait := collect(t, q, 1)

	ctx := context.Background()
	calls := 0
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}))
	require.NoError(t, q.Publish(ctx, &jobs.TranscriptionJob{FilePath: "x.wav"}))

	finished := wait()
	require.NoError(t, q.Stop(ctx))
	assert.Equal(t, jobs.JobStatusCompleted, finished[0].Status)
	assert.Empty(t, finished[0].Error)
}

func TestQueue_PublishAfterStop(t *testing.T) {
	q := NewQueue(DefaultQueueConfig(), nil)
	require.NoError(t, q.Stop(context.Background()))
	assert.Error(t, q.Publish(context.Background(), &jobs.TranscriptionJob{}))
	assert.Error(t, q.Start(context.Background(), nil))
	assert.NoError(t, q.Close(), "stop is idempotent")
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	assert.Error(t, s.SaveJob(ctx, &jobs.TranscriptionJob{}))

	job := &jobs.TranscriptionJob{JobID: "j1", FilePath: "a.wav", Status: jobs.JobStatusPending}
	require.NoError(t, s.SaveJob(ctx, job))
	job.FilePath = "mutated"

	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "a.wav", got.FilePath, "store keeps a copy")

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"))
	got, err = s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.True(t, got.Status.Terminal())

	_, err = s.GetJob(ctx, "missing")
	assert.Error(t, err)
	assert.Error(t, s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveJob(ctx, &jobs.TranscriptionJob{JobID: string(rune('k' + i)), BatchID: "b", Index: i}))
	}
	page, err := s.ListJobs(ctx, jobs.JobFilter{BatchID: "b", Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 1, page[0].Index)

	empty, err := s.ListJobs(ctx, jobs.JobFilter{BatchID: "b", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// flakyStore accepts the first save and rejects the rest.
type flakyStore struct {
	*Store
	mu    sync.Mutex
	saves int
}

func (s *flakyStore) SaveJob(ctx context.Context, job *jobs.TranscriptionJob) error {
	s.mu.Lock()
	s.saves++
	n := s.saves
	s.mu.Unlock()
	if n > 1 {
		return errors.New("store unavailable")
	}
	return s.Store.SaveJob(ctx, job)
}

func TestQueue_StoreFailuresAreLogged(t *testing.T) {
	var logs bytes.Buffer
	store := &flakyStore{Store: NewStore()}
	q := NewQueue(QueueConfig{BufferSize: 1, Workers: 1, Log: zerolog.New(&logs)}, store)
	wait := collect(t, q, 1)

	ctx := context.Background()
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error { return nil }))
	require.NoError(t, q.Publish(ctx, &jobs.TranscriptionJob{FilePath: "a.wav"}))

	finished := wait()
	require.NoError(t, q.Stop(ctx))

	require.Len(t, finished, 1)
	assert.Equal(t, jobs.JobStatusCompleted, finished[0].Status)
	assert.Contains(t, logs.String(), "Failed to save job state")
	assert.Contains(t, logs.String(), "store unavailable")
}
