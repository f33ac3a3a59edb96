package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/scripta/scripta-api/internal/domain"
)

type Options struct {
	Attempts         int
	Backoff          time.Duration
	RemoveOnComplete int64
	RemoveOnFail     int64
	LockDuration     time.Duration
}

// AddOptions overrides queue defaults for one job. Zero values keep defaults.
type AddOptions struct {
	Owner    string
	Attempts int
	Backoff  time.Duration
}

// Event is published whenever a job changes state.
type Event struct {
	JobID string          `json:"jobId"`
	Owner string          `json:"owner"`
	State domain.JobState `json:"state"`
}

// Queue is a Redis-backed job queue with at-least-once delivery. Jobs move
// wait -> active -> completed, or back to delayed while attempts remain.
type Queue struct {
	rdb    redis.UniversalClient
	name   string
	prefix string
	opts   Options
	now    func() time.Time
}

func New(rdb redis.UniversalClient, name string, opts Options) *Queue {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.LockDuration <= 0 {
		opts.LockDuration = 30 * time.Second
	}
	return &Queue{
		rdb:    rdb,
		name:   name,
		prefix: fmt.Sprintf("scripta:%s:", name),
		opts:   opts,
		now:    time.Now,
	}
}

func (q *Queue) Name() string { return q.name }

func (q *Queue) key(parts ...string) string {
	k := q.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

func (q *Queue) jobKey(id string) string  { return q.key("job", id) }
func (q *Queue) lockKey(id string) string { return q.key("lock", id) }

// Add enqueues a job and returns it in the waiting state.
func (q *Queue) Add(ctx context.Context, name string, data interface{}, opts AddOptions) (*Job, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal job data: %w", err)
	}

	n, err := q.rdb.Incr(ctx, q.key("id")).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate job id: %w", err)
	}

	job := &Job{
		ID:        strconv.FormatInt(n, 10),
		Name:      name,
		Owner:     opts.Owner,
		Data:      payload,
		Attempts:  q.opts.Attempts,
		Backoff:   q.opts.Backoff,
		State:     domain.JobStateWaiting,
		Timestamp: q.now(),
	}
	if opts.Attempts > 0 {
		job.Attempts = opts.Attempts
	}
	if opts.Backoff > 0 {
		job.Backoff = opts.Backoff
	}

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.jobKey(job.ID), job.fields())
		pipe.LPush(ctx, q.key("wait"), job.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	q.publish(ctx, job, domain.JobStateWaiting)
	return job, nil
}

// PendingCount returns the number of jobs not yet finished: waiting, active
// and delayed.
func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	var wait, active, delayed *redis.IntCmd
	_, err := q.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		wait = pipe.LLen(ctx, q.key("wait"))
		active = pipe.LLen(ctx, q.key("active"))
		delayed = pipe.ZCard(ctx, q.key("delayed"))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return wait.Val() + active.Val() + delayed.Val(), nil
}

func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	h, err := q.rdb.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, ErrJobNotFound
	}
	return parseJob(id, h), nil
}

// Reserve moves the next waiting job to active and locks it with token.
// Delayed jobs whose retry time has passed are promoted first. It returns
// ErrJobNotFound when nothing is waiting.
func (q *Queue) Reserve(ctx context.Context, token string) (*Job, error) {
	id, err := reserveScript.Run(ctx, q.rdb,
		[]string{q.key("wait"), q.key("active"), q.key("delayed")},
		q.now().UnixMilli(), token, q.opts.LockDuration.Milliseconds(), q.prefix,
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reserve job: %w", err)
	}

	job, err := q.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	q.publish(ctx, job, domain.JobStateActive)
	return job, nil
}

func (q *Queue) ExtendLock(ctx context.Context, id, token string) error {
	ok, err := extendLockScript.Run(ctx, q.rdb, []string{q.lockKey(id)}, token, q.opts.LockDuration.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrLockLost
	}
	return nil
}

func (q *Queue) UpdateProgress(ctx context.Context, job *Job, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if err := q.rdb.HSet(ctx, q.jobKey(job.ID), "progress", progress).Err(); err != nil {
		return err
	}
	job.Progress = progress
	q.publish(ctx, job, domain.JobStateActive)
	return nil
}

// Complete records result as the job's return value.
func (q *Queue) Complete(ctx context.Context, job *Job, token string, result interface{}) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}

	now := q.now()
	res, err := completeScript.Run(ctx, q.rdb,
		[]string{q.key("active"), q.key("completed"), q.lockKey(job.ID), q.jobKey(job.ID)},
		job.ID, token, now.UnixMilli(), string(payload), q.opts.RemoveOnComplete, q.prefix,
	).Int()
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if res < 0 {
		return ErrLockLost
	}

	job.State = domain.JobStateCompleted
	job.ReturnValue = payload
	job.AttemptsMade++
	job.FinishedOn = now
	q.publish(ctx, job, domain.JobStateCompleted)
	return nil
}

// Fail records cause against the job. While attempts remain and cause is not
// unrecoverable, the job is delayed by Backoff * 2^(attempt-1) and retried.
func (q *Queue) Fail(ctx context.Context, job *Job, token string, cause error) (domain.JobState, error) {
	now := q.now()
	attempt := job.AttemptsMade + 1

	var retryAt int64
	var unrecoverable *UnrecoverableError
	if attempt < job.Attempts && !errors.As(cause, &unrecoverable) {
		retryAt = now.Add(Backoff(job.Backoff, attempt)).UnixMilli()
		if retryAt <= 0 {
			retryAt = 1
		}
	}

	res, err := failScript.Run(ctx, q.rdb,
		[]string{q.key("active"), q.key("delayed"), q.key("failed"), q.lockKey(job.ID), q.jobKey(job.ID)},
		job.ID, token, now.UnixMilli(), cause.Error(), attempt, retryAt, q.opts.RemoveOnFail, q.prefix,
	).Int()
	if err != nil {
		return "", fmt.Errorf("fail job: %w", err)
	}
	if res < 0 {
		return "", ErrLockLost
	}

	job.AttemptsMade = attempt
	job.FailedReason = cause.Error()
	if res == 2 {
		job.State = domain.JobStateDelayed
		job.DelayedUntil = time.UnixMilli(retryAt)
	} else {
		job.State = domain.JobStateFailed
		job.FinishedOn = now
	}
	q.publish(ctx, job, job.State)
	return job.State, nil
}

// RequeueStalled returns active jobs whose lock expired to the front of the
// wait list. It reports the ids it moved.
func (q *Queue) RequeueStalled(ctx context.Context) ([]string, error) {
	ids, err := stalledScript.Run(ctx, q.rdb, []string{q.key("active"), q.key("wait")}, q.prefix).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("requeue stalled jobs: %w", err)
	}
	for _, id := range ids {
		if job, err := q.GetJob(ctx, id); err == nil {
			q.publish(ctx, job, domain.JobStateWaiting)
		}
	}
	return ids, nil
}

// Backoff returns the delay before retrying after the given attempt (1-based).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<uint(attempt-1))
}

func (q *Queue) publish(ctx context.Context, job *Job, state domain.JobState) {
	payload, err := json.Marshal(Event{JobID: job.ID, Owner: job.Owner, State: state})
	if err != nil {
		return
	}
	// Events are advisory; status is always readable through GetJob.
	_ = q.rdb.Publish(ctx, q.key("events"), payload).Err()
}

// Subscribe streams job events until ctx is cancelled.
func (q *Queue) Subscribe(ctx context.Context) (<-chan Event, error) {
	sub := q.rdb.Subscribe(ctx, q.key("events"))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe to job events: %w", err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
