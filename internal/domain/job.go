package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobState string

const (
	JobStateWaiting   JobState = "waiting"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateDelayed   JobState = "delayed"
)

// GenerationRequest is the input of one generation, inline or queued.
type GenerationRequest struct {
	Topic      string `json:"topic"`
	Tone       string `json:"tone"`
	Platform   string `json:"platform"`
	Regenerate bool   `json:"regenerate"`
}

// GenerationJob is the payload stored on a queued job.
type GenerationJob struct {
	UserID uuid.UUID `json:"userId"`
	GenerationRequest
}

// JobOutcome is the state of a queued job. The set of implementations is
// closed: JobWaiting, JobActive, JobCompleted, JobFailed and JobDelayed.
type JobOutcome interface {
	State() JobState
	jobOutcome()
}

type JobWaiting struct{}

type JobActive struct {
	Progress int
}

type JobCompleted struct {
	Result json.RawMessage
}

type JobFailed struct {
	Reason       string
	AttemptsMade int
}

type JobDelayed struct {
	Until        time.Time
	AttemptsMade int
}

func (JobWaiting) State() JobState   { return JobStateWaiting }
func (JobActive) State() JobState    { return JobStateActive }
func (JobCompleted) State() JobState { return JobStateCompleted }
func (JobFailed) State() JobState    { return JobStateFailed }
func (JobDelayed) State() JobState   { return JobStateDelayed }

func (JobWaiting) jobOutcome()   {}
func (JobActive) jobOutcome()    {}
func (JobCompleted) jobOutcome() {}
func (JobFailed) jobOutcome()    {}
func (JobDelayed) jobOutcome()   {}

type JobStatus struct {
	ID        string
	UserID    uuid.UUID
	Outcome   JobOutcome
	Progress  int
	CreatedAt time.Time
}
