package queue

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/scripta/scripta-api/internal/domain"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrLockLost    = errors.New("job lock is missing or held by another worker")
)

type Job struct {
	ID           string
	Name         string
	Owner        string
	Data         json.RawMessage
	Attempts     int
	Backoff      time.Duration
	AttemptsMade int
	Progress     int
	ReturnValue  json.RawMessage
	FailedReason string
	State        domain.JobState
	Timestamp    time.Time
	ProcessedOn  time.Time
	FinishedOn   time.Time
	DelayedUntil time.Time
	Stalled      int
}

// Outcome converts the job's state into the closed outcome variant.
func (j *Job) Outcome() domain.JobOutcome {
	switch j.State {
	case domain.JobStateActive:
		return domain.JobActive{Progress: j.Progress}
	case domain.JobStateCompleted:
		return domain.JobCompleted{Result: j.ReturnValue}
	case domain.JobStateFailed:
		return domain.JobFailed{Reason: j.FailedReason, AttemptsMade: j.AttemptsMade}
	case domain.JobStateDelayed:
		return domain.JobDelayed{Until: j.DelayedUntil, AttemptsMade: j.AttemptsMade}
	default:
		return domain.JobWaiting{}
	}
}

func (j *Job) fields() map[string]interface{} {
	return map[string]interface{}{
		"name":         j.Name,
		"owner":        j.Owner,
		"data":         string(j.Data),
		"attempts":     j.Attempts,
		"backoff":      j.Backoff.Milliseconds(),
		"attemptsMade": 0,
		"progress":     0,
		"state":        string(domain.JobStateWaiting),
		"timestamp":    j.Timestamp.UnixMilli(),
	}
}

func parseJob(id string, h map[string]string) *Job {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(h[key])
		return n
	}
	millis := func(key string) time.Time {
		n, err := strconv.ParseInt(h[key], 10, 64)
		if err != nil || n == 0 {
			return time.Time{}
		}
		return time.UnixMilli(n)
	}

	job := &Job{
		ID:           id,
		Name:         h["name"],
		Owner:        h["owner"],
		Data:         json.RawMessage(h["data"]),
		Attempts:     atoi("attempts"),
		Backoff:      time.Duration(atoi("backoff")) * time.Millisecond,
		AttemptsMade: atoi("attemptsMade"),
		Progress:     atoi("progress"),
		FailedReason: h["failedReason"],
		State:        domain.JobState(h["state"]),
		Timestamp:    millis("timestamp"),
		ProcessedOn:  millis("processedOn"),
		FinishedOn:   millis("finishedOn"),
		DelayedUntil: millis("delayedUntil"),
		Stalled:      atoi("stalledCounter"),
	}
	if rv, ok := h["returnvalue"]; ok && rv != "" {
		job.ReturnValue = json.RawMessage(rv)
	}
	return job
}

// UnrecoverableError fails a job immediately, skipping remaining attempts.
type UnrecoverableError struct {
	Err error
}

func (e *UnrecoverableError) Error() string { return e.Err.Error() }
func (e *UnrecoverableError) Unwrap() error { return e.Err }

func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &UnrecoverableError{Err: err}
}
