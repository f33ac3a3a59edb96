package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestQueue(t *testing.T, opts Options) (*Queue, *miniredis.Miniredis, *clock) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	q := New(rdb, "test-queue", opts)
	q.now = c.Now
	return q, mr, c
}

func defaultOpts() Options {
	return Options{
		Attempts:         3,
		Backoff:          2 * time.Second,
		RemoveOnComplete: 100,
		RemoveOnFail:     50,
		LockDuration:     time.Minute,
	}
}

func TestQueue_AddAndGetJob(t *testing.T) {
	q, _, _ := newTestQueue(t, defaultOpts())
	ctx := context.Background()

	job, err := q.Add(ctx, "generate", map[string]string{"topic": "launch"}, AddOptions{Owner: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "1", job.ID)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "generate", got.Name)
	assert.Equal(t, "user-1", got.Owner)
	assert.Equal(t, domain.JobStateWaiting, got.State)
	assert.Equal(t, 3, got.Attempts)
	assert.JSONEq(t, `{"topic":"launch"}`, string(got.Data))
	assert.IsType(t, domain.JobWaiting{}, got.Outcome())

	count, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = q.GetJob(ctx, "999")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestQueue_ReserveIsFIFO(t *testing.T) {
	q, _, _ := newTestQueue(t, defaultOpts())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.Add(ctx, "generate", i, AddOptions{})
		require.NoError(t, err)
	}

	for _, want := range []string{"1", "2", "3"} {
		job, err := q.Reserve(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, want, job.ID)
		assert.Equal(t, domain.JobStateActive, job.State)
	}

	_, err := q.Reserve(ctx, "token")
	assert.ErrorIs(t, err, ErrJobNotFound)

	count, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "active jobs still count as pending")
}

func TestQueue_Complete(t *testing.T) {
	q, _, _ := newTestQueue(t, defaultOpts())
	ctx := context.Background()

	_, err := q.Add(ctx, "generate", "payload", AddOptions{})
	require.NoError(t, err)
	job, err := q.Reserve(ctx, "token-a")
	require.NoError(t, err)

	require.NoError(t, q.UpdateProgress(ctx, job, 50))

	err = q.Complete(ctx, job, "token-b", "nope")
	assert.ErrorIs(t, err, ErrLockLost)

	require.NoError(t, q.Complete(ctx, job, "token-a", map[string]string{"content": "done"}))

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, got.State)
	assert.Equal(t, 1, got.AttemptsMade)
	assert.Equal(t, 50, got.Progress)

	outcome, ok := got.Outcome().(domain.JobCompleted)
	require.True(t, ok)
	var result map[string]string
	require.NoError(t, json.Unmarshal(outcome.Result, &result))
	assert.Equal(t, "done", result["content"])

	count, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestQueue_FailRetriesWithBackoff(t *testing.T) {
	q, _, c := newTestQueue(t, defaultOpts())
	ctx := context.Background()

	_, err := q.Add(ctx, "generate", "payload", AddOptions{})
	require.NoError(t, err)

	// Attempt 1 fails: delayed by 2s.
	job, err := q.Reserve(ctx, "t")
	require.NoError(t, err)
	state, err := q.Fail(ctx, job, "t", errors.New("model overloaded"))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateDelayed, state)
	assert.Equal(t, c.Now().Add(2*time.Second).UnixMilli(), job.DelayedUntil.UnixMilli())

	_, err = q.Reserve(ctx, "t")
	assert.ErrorIs(t, err, ErrJobNotFound, "delayed job must not run early")

	// Attempt 2 fails: delayed by 4s.
	c.Advance(2 * time.Second)
	job, err = q.Reserve(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 1, job.AttemptsMade)
	state, err = q.Fail(ctx, job, "t", errors.New("model overloaded"))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateDelayed, state)
	assert.Equal(t, c.Now().Add(4*time.Second).UnixMilli(), job.DelayedUntil.UnixMilli())

	// Attempt 3 fails: permanently failed.
	c.Advance(4 * time.Second)
	job, err = q.Reserve(ctx, "t")
	require.NoError(t, err)
	state, err = q.Fail(ctx, job, "t", errors.New("model overloaded"))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, state)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	failed, ok := got.Outcome().(domain.JobFailed)
	require.True(t, ok)
	assert.Equal(t, "model overloaded", failed.Reason)
	assert.Equal(t, 3, failed.AttemptsMade)

	count, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestQueue_FailUnrecoverable(t *testing.T) {
	q, _, _ := newTestQueue(t, defaultOpts())
	ctx := context.Background()

	_, err := q.Add(ctx, "generate", "payload", AddOptions{})
	require.NoError(t, err)
	job, err := q.Reserve(ctx, "t")
	require.NoError(t, err)

	state, err := q.Fail(ctx, job, "t", Unrecoverable(domain.ErrMissingTopic))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, state)
	assert.Equal(t, 1, job.AttemptsMade)
}

func TestQueue_RemoveOnComplete(t *testing.T) {
	opts := defaultOpts()
	opts.RemoveOnComplete = 2
	q, mr, _ := newTestQueue(t, opts)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.Add(ctx, "generate", i, AddOptions{})
		require.NoError(t, err)
		job, err := q.Reserve(ctx, "t")
		require.NoError(t, err)
		require.NoError(t, q.Complete(ctx, job, "t", i))
	}

	members, err := mr.ZMembers(q.key("completed"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2", "3"}, members)

	_, err = q.GetJob(ctx, "1")
	assert.ErrorIs(t, err, ErrJobNotFound, "trimmed job is deleted")
}

func TestQueue_RequeueStalled(t *testing.T) {
	q, mr, _ := newTestQueue(t, defaultOpts())
	ctx := context.Background()

	_, err := q.Add(ctx, "generate", "payload", AddOptions{})
	require.NoError(t, err)
	job, err := q.Reserve(ctx, "t")
	require.NoError(t, err)

	ids, err := q.RequeueStalled(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "locked job is not stalled")

	mr.FastForward(2 * time.Minute)

	ids, err = q.RequeueStalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, ids)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateWaiting, got.State)
	assert.Equal(t, 1, got.Stalled)

	// The worker that lost its lock can no longer finish the job.
	assert.ErrorIs(t, q.Complete(ctx, job, "t", "late"), ErrLockLost)
}

func TestQueue_ExtendLock(t *testing.T) {
	q, mr, _ := newTestQueue(t, defaultOpts())
	ctx := context.Background()

	_, err := q.Add(ctx, "generate", "payload", AddOptions{})
	require.NoError(t, err)
	job, err := q.Reserve(ctx, "t")
	require.NoError(t, err)

	mr.FastForward(50 * time.Second)
	require.NoError(t, q.ExtendLock(ctx, job.ID, "t"))
	mr.FastForward(50 * time.Second)

	ids, err := q.RequeueStalled(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.ErrorIs(t, q.ExtendLock(ctx, job.ID, "other"), ErrLockLost)
}

func TestQueue_Subscribe(t *testing.T) {
	q, _, _ := newTestQueue(t, defaultOpts())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := q.Subscribe(ctx)
	require.NoError(t, err)

	job, err := q.Add(ctx, "generate", "payload", AddOptions{Owner: "user-7"})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, job.ID, ev.JobID)
		assert.Equal(t, "user-7", ev.Owner)
		assert.Equal(t, domain.JobStateWaiting, ev.State)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job event")
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, Backoff(2*time.Second, 1))
	assert.Equal(t, 4*time.Second, Backoff(2*time.Second, 2))
	assert.Equal(t, 8*time.Second, Backoff(2*time.Second, 3))
	assert.Equal(t, 2*time.Second, Backoff(2*time.Second, 0))
}
