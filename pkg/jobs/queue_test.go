package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("mail", func(context.Context, Job) error { return nil }, QueueConfig{})

	err := q.Enqueue(Job{Type: "status"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueStopped)
}

func TestQueueProcessesJobs(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	var seen int32
	q := NewQueue("mail", func(_ context.Context, job Job) error {
		atomic.AddInt32(&seen, 1)
		wg.Done()
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "status"}))
	require.NoError(t, q.Enqueue(Job{Type: "status"}))

	waitTimeout(t, &wg)
	assert.Equal(t, int32(2), atomic.LoadInt32(&seen))
}

func TestQueueFullDoesNotBlock(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	// one job occupies the worker, the second fills the buffer
	require.NoError(t, q.Enqueue(Job{Type: "a"}))
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(Job{Type: "b"}))

	err := q.Enqueue(Job{Type: "c"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueRetriesThenReportsFailure(t *testing.T) {
	var attempts int32
	failed := make(chan Job, 1)
	q := NewQueue("mail", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("smtp down")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnFailure:  func(j Job, _ error) { failed <- j },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "status"}))

	select {
	case job := <-failed:
		assert.Equal(t, 3, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never reported as failed")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueRecoversFromPanickingHandler(t *testing.T) {
	failed := make(chan error, 1)
	q := NewQueue("mail", func(_ context.Context, job Job) error {
		if job.Type == "boom" {
			panic("template exploded")
		}
		return nil
	}, QueueConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		OnFailure:  func(_ Job, err error) { failed <- err },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "boom"}))
	select {
	case err := <-failed:
		assert.Contains(t, err.Error(), "panicked")
	case <-time.After(2 * time.Second):
		t.Fatal("panicking job never reported")
	}

	require.NoError(t, q.Enqueue(Job{Type: "status"}))
	require.Eventually(t, func() bool { return q.Stats().Processed == 1 }, time.Second, 5*time.Millisecond)
	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Retried)
	assert.Equal(t, uint64(1), stats.Failed)
}

func TestQueueEnqueueWaitBlocksUntilSpace(t *testing.T) {
	release := make(chan struct{})
	var handled int32
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()

	done := make(chan error, 1)
	go func() {
		var err error
		for i := 0; i < 5 && err == nil; i++ {
			err = q.EnqueueWait(context.Background(), Job{Type: "status"})
		}
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("enqueue returned although the buffer was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue never got buffer space")
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&handled) == 5 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, q.Stats().Pending)
}

func TestQueueEnqueueWaitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	require.NoError(t, q.Enqueue(Job{Type: "a"}))
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(Job{Type: "b"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.EnqueueWait(ctx, Job{Type: "c"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, q.Stats().Pending)
}

func TestQueueDrainFinishesBufferedJobs(t *testing.T) {
	var handled int32
	q := NewQueue("mail", func(context.Context, Job) error {
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 20})
	q.Start(context.Background())

	for i := 0; i < 20; i++ {
		require.NoError(t, q.Enqueue(Job{Type: "status"}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Drain(ctx))

	assert.Equal(t, int32(20), atomic.LoadInt32(&handled))
	assert.Equal(t, uint64(20), q.Stats().Processed)
	assert.ErrorIs(t, q.Enqueue(Job{Type: "late"}), ErrQueueStopped)
}

func TestQueueDrainTimeoutReportsDroppedJobs(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{Type: "a"}))
	require.NoError(t, q.Enqueue(Job{Type: "b"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Drain(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueRetryCancelledByStopCountsAsFailure(t *testing.T) {
	attempted := make(chan struct{}, 1)
	failed := make(chan error, 1)
	q := NewQueue("mail", func(context.Context, Job) error {
		attempted <- struct{}{}
		return errors.New("smtp down")
	}, QueueConfig{
		MaxRetries: 3,
		RetryDelay: time.Hour,
		OnFailure:  func(_ Job, err error) { failed <- err },
	})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{Type: "status"}))

	<-attempted
	require.Eventually(t, func() bool { return q.Stats().Retried == 1 }, time.Second, 5*time.Millisecond)
	q.Stop()

	select {
	case err := <-failed:
		assert.ErrorIs(t, err, ErrQueueStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("dropped retry was never reported")
	}
	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Zero(t, stats.Pending)
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs")
	}
}
