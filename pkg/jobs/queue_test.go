package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("training", func(ctx context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "run-1", Type: "training"}))
	select {
	case job := <-done:
		assert.Equal(t, "run-1", job.ID)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(time.Second):
		t.Fatal("job was not processed")
	}
}

func TestQueueRunsFailedJobOnce(t *testing.T) {
	var calls int32
	q := NewQueue("training", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("no samples")
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "run-1"}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueueSurvivesPanic(t *testing.T) {
	done := make(chan string, 2)
	q := NewQueue("training", func(ctx context.Context, job Job) error {
		if job.ID == "boom" {
			panic("classifier crashed")
		}
		done <- job.ID
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "boom"}))
	require.NoError(t, q.Enqueue(Job{ID: "next"}))
	select {
	case id := <-done:
		assert.Equal(t, "next", id)
	case <-time.After(time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

func TestQueueRejectsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	q := NewQueue("training", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))
	assert.Equal(t, 1, q.Pending())

	err := q.Enqueue(Job{ID: "overflow"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("training", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "run-1"}))
}
