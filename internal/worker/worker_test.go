package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/llm"
	"github.com/scripta/scripta-api/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	errs  []error
	panic bool
}

func (g *fakeGenerator) Generate(_ context.Context, p domain.Principal, req domain.GenerationRequest) (*domain.Draft, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	if g.panic {
		panic("model client exploded")
	}
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &domain.Draft{
		ID:        uuid.New(),
		UserID:    p.UserID,
		Title:     req.Topic,
		Content:   "generated: " + req.Topic,
		Platform:  req.Platform,
		Tone:      req.Tone,
		Generated: true,
	}, nil
}

func newTestQueue(t *testing.T, backoff time.Duration) *queue.Queue {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return queue.New(rdb, "worker-test", queue.Options{
		Attempts:         3,
		Backoff:          backoff,
		RemoveOnComplete: 100,
		RemoveOnFail:     50,
		LockDuration:     time.Minute,
	})
}

func addJob(t *testing.T, q *queue.Queue, userID uuid.UUID, topic string) *queue.Job {
	t.Helper()

	job, err := q.Add(context.Background(), "generate-post", domain.GenerationJob{
		UserID:            userID,
		GenerationRequest: domain.GenerationRequest{Topic: topic, Tone: "excited", Platform: "x"},
	}, queue.AddOptions{Owner: userID.String()})
	require.NoError(t, err)
	return job
}

func TestWorker_ProcessNext_Completes(t *testing.T) {
	q := newTestQueue(t, time.Millisecond)
	gen := &fakeGenerator{}
	w := New(q, gen, Config{}, zerolog.Nop())
	ctx := context.Background()
	userID := uuid.New()

	job := addJob(t, q, userID, "launch")

	processed, err := w.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	completed, ok := got.Outcome().(domain.JobCompleted)
	require.True(t, ok, "job should be completed, got %s", got.State)

	var draft domain.Draft
	require.NoError(t, json.Unmarshal(completed.Result, &draft))
	assert.Equal(t, userID, draft.UserID)
	assert.Equal(t, "generated: launch", draft.Content)
	assert.True(t, draft.Generated)
}

func TestWorker_ProcessNext_Empty(t *testing.T) {
	q := newTestQueue(t, time.Millisecond)
	w := New(q, &fakeGenerator{}, Config{}, zerolog.Nop())

	processed, err := w.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestWorker_RetriesTransientFailures(t *testing.T) {
	q := newTestQueue(t, time.Millisecond)
	gen := &fakeGenerator{errs: []error{errors.New("overloaded"), errors.New("overloaded")}}
	w := New(q, gen, Config{}, zerolog.Nop())
	ctx := context.Background()

	job := addJob(t, q, uuid.New(), "launch")

	require.Eventually(t, func() bool {
		if _, err := w.ProcessNext(ctx); err != nil {
			return false
		}
		got, err := q.GetJob(ctx, job.ID)
		return err == nil && got.State == domain.JobStateCompleted
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, gen.calls)
}

func TestWorker_FailsAfterThreeAttempts(t *testing.T) {
	q := newTestQueue(t, time.Millisecond)
	boom := errors.New("overloaded")
	gen := &fakeGenerator{errs: []error{boom, boom, boom, boom}}
	w := New(q, gen, Config{}, zerolog.Nop())
	ctx := context.Background()

	job := addJob(t, q, uuid.New(), "launch")

	require.Eventually(t, func() bool {
		if _, err := w.ProcessNext(ctx); err != nil {
			return false
		}
		got, err := q.GetJob(ctx, job.ID)
		return err == nil && got.State == domain.JobStateFailed
	}, 2*time.Second, 5*time.Millisecond)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	failed := got.Outcome().(domain.JobFailed)
	assert.Equal(t, "generation failed", failed.Reason)
	assert.Equal(t, 3, failed.AttemptsMade)
	assert.Equal(t, 3, gen.calls)
}

func TestWorker_PermanentErrorSkipsRetries(t *testing.T) {
	q := newTestQueue(t, time.Millisecond)
	gen := &fakeGenerator{errs: []error{&domain.QuotaError{Limit: 10}}}
	w := New(q, gen, Config{}, zerolog.Nop())
	ctx := context.Background()

	job := addJob(t, q, uuid.New(), "launch")

	_, err := w.ProcessNext(ctx)
	require.NoError(t, err)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	failed, ok := got.Outcome().(domain.JobFailed)
	require.True(t, ok)
	assert.Contains(t, failed.Reason, "daily generation limit of 10")
	assert.Equal(t, 1, gen.calls)
}

func TestWorker_ProviderErrorIsNotExposed(t *testing.T) {
	q := newTestQueue(t, time.Millisecond)
	upstream := fmt.Errorf("%w: gemini: API key AIza-secret rejected for project internal-42", llm.ErrPermanent)
	gen := &fakeGenerator{errs: []error{upstream}}
	w := New(q, gen, Config{}, zerolog.Nop())
	ctx := context.Background()

	job := addJob(t, q, uuid.New(), "launch")

	_, err := w.ProcessNext(ctx)
	require.NoError(t, err)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, got.State)
	assert.Equal(t, "generation failed", got.FailedReason)
	assert.NotContains(t, got.FailedReason, "AIza")
	assert.Equal(t, 1, gen.calls)
}

func TestPublicReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"quota", fmt.Errorf("generate: %w", &domain.QuotaError{Limit: 5}), (&domain.QuotaError{Limit: 5}).Error()},
		{"missing topic", domain.ErrMissingTopic, "topic is required"},
		{"database", errors.New("pq: relation \"drafts\" does not exist"), "generation failed"},
		{"provider", llm.ErrPermanent, "generation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publicReason(tt.err))
		})
	}
}

func TestWorker_RecoversPanics(t *testing.T) {
	q := newTestQueue(t, time.Millisecond)
	gen := &fakeGenerator{panic: true}
	w := New(q, gen, Config{}, zerolog.Nop())
	ctx := context.Background()

	job := addJob(t, q, uuid.New(), "launch")

	_, err := w.ProcessNext(ctx)
	require.NoError(t, err)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateDelayed, got.State)
	assert.Equal(t, "generation failed", got.FailedReason)
	assert.NotContains(t, got.FailedReason, "exploded")
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	q := newTestQueue(t, time.Millisecond)
	gen := &fakeGenerator{}
	w := New(q, gen, Config{Concurrency: 2, PollInterval: 5 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	job := addJob(t, q, uuid.New(), "launch")

	require.Eventually(t, func() bool {
		got, err := q.GetJob(context.Background(), job.ID)
		return err == nil && got.State == domain.JobStateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
