package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	badgerstore "github.com/poiesic/indexit/storage/badger"
)

func testQueue(t *testing.T, opts ...DurableOption) *Durable {
	t.Helper()
	backend, err := badgerstore.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	opts = append([]DurableOption{WithPollInterval(20 * time.Millisecond)}, opts...)
	q, err := NewDurable(backend, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestEnqueueAndProcess(t *testing.T) {
	q := testQueue(t)

	var processed atomic.Int32
	var gotPayload atomic.Value
	err := q.Process("test", 2, time.Minute, func(ctx context.Context, job *Job) error {
		gotPayload.Store(string(job.Payload))
		processed.Add(1)
		return nil
	})
	require.NoError(t, err)

	id, err := q.Enqueue(context.Background(), "test", []byte("hello"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	waitFor(t, 5*time.Second, func() bool { return processed.Load() == 1 })
	assert.Equal(t, "hello", gotPayload.Load().(string))

	counts, err := q.Counts(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Completed)
	assert.Equal(t, 0, counts.Waiting)
	assert.Equal(t, 0, counts.Failed)
}

func TestCompletedCountsPerQueue(t *testing.T) {
	q := testQueue(t)

	var done atomic.Int32
	handler := func(ctx context.Context, job *Job) error {
		done.Add(1)
		return nil
	}
	require.NoError(t, q.Process("first", 1, time.Minute, handler))
	require.NoError(t, q.Process("second", 1, time.Minute, handler))

	ctx := context.Background()
	_, err := q.Enqueue(ctx, "first", nil)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "first", nil)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "second", nil)
	require.NoError(t, err)

	waitFor(t, 5*time.Second, func() bool { return done.Load() == 3 })

	first, err := q.Counts(ctx, "first")
	require.NoError(t, err)
	second, err := q.Counts(ctx, "second")
	require.NoError(t, err)
	idle, err := q.Counts(ctx, "idle")
	require.NoError(t, err)

	assert.Equal(t, 2, first.Completed)
	assert.Equal(t, 1, second.Completed)
	assert.Equal(t, 0, idle.Completed)
}

func TestRetryWithBackoffThenDeadLetter(t *testing.T) {
	q := testQueue(t, WithMaxAttempts(2))

	var attempts atomic.Int32
	err := q.Process("flaky", 1, time.Minute, func(ctx context.Context, job *Job) error {
		attempts.Add(1)
		return errors.New("boom")
	})
	require.NoError(t, err)

	_, err = q.Enqueue(context.Background(), "flaky", []byte("x"))
	require.NoError(t, err)

	// First attempt fails fast; the retry waits out the base backoff.
	waitFor(t, 10*time.Second, func() bool { return attempts.Load() >= 2 })
	waitFor(t, 5*time.Second, func() bool {
		counts, err := q.Counts(context.Background(), "flaky")
		return err == nil && counts.Failed == 1
	})

	assert.Equal(t, int32(2), attempts.Load())
}

func TestRetryFailedRequeues(t *testing.T) {
	q := testQueue(t, WithMaxAttempts(1))

	var fail atomic.Bool
	fail.Store(true)
	var completions atomic.Int32
	err := q.Process("recover", 1, time.Minute, func(ctx context.Context, job *Job) error {
		if fail.Load() {
			return errors.New("transient")
		}
		completions.Add(1)
		return nil
	})
	require.NoError(t, err)

	_, err = q.Enqueue(context.Background(), "recover", nil)
	require.NoError(t, err)

	waitFor(t, 5*time.Second, func() bool {
		counts, err := q.Counts(context.Background(), "recover")
		return err == nil && counts.Failed == 1
	})

	fail.Store(false)
	n, err := q.RetryFailed(context.Background(), "recover")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	waitFor(t, 5*time.Second, func() bool { return completions.Load() == 1 })
}

func TestDrainWaiting(t *testing.T) {
	q := testQueue(t)

	// No processor registered: jobs stay waiting.
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, "idle", []byte("payload"))
		require.NoError(t, err)
	}

	counts, err := q.Counts(ctx, "idle")
	require.NoError(t, err)
	require.Equal(t, 3, counts.Waiting)

	drained, err := q.DrainWaiting(ctx, "idle")
	require.NoError(t, err)
	assert.Equal(t, 3, drained)

	counts, err = q.Counts(ctx, "idle")
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Waiting)
}

func TestQueuesAreIsolated(t *testing.T) {
	q := testQueue(t)

	ctx := context.Background()
	_, err := q.Enqueue(ctx, "alpha", nil)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "beta", nil)
	require.NoError(t, err)

	counts, err := q.Counts(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Waiting)
}

func TestProcessTwiceRejected(t *testing.T) {
	q := testQueue(t)

	handler := func(ctx context.Context, job *Job) error { return nil }
	require.NoError(t, q.Process("dup", 1, time.Minute, handler))

	err := q.Process("dup", 1, time.Minute, handler)
	assert.ErrorIs(t, err, ErrAlreadyProcessing)

	assert.True(t, q.Running("dup"))
	assert.False(t, q.Running("other"))
}

func TestJobSerializationRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &Job{
		ID:          "0c9b21de-9f3d-4c4b-9b74-2f7a86a1d001",
		Queue:       "embed",
		Payload:     []byte(`{"workspace_id":"ws-1"}`),
		Attempts:    2,
		MaxAttempts: 5,
		State:       StateActive,
		EnqueuedAt:  now,
		ReadyAt:     now,
		LeaseUntil:  now.Add(time.Minute),
		LastError:   "timeout",
	}

	buf := make([]byte, JobMUS.Size(job))
	n := JobMUS.Marshal(job, buf)
	require.Equal(t, len(buf), n)

	got, n, err := JobMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.Queue, got.Queue)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, string(job.Payload), string(got.Payload))
	assert.Equal(t, StateActive, got.State)
	assert.True(t, got.LeaseUntil.Equal(job.LeaseUntil))
}
