package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/queue"
)

const GenerateJobName = "generate-post"

// JobQueue is the part of the queue the request path needs.
type JobQueue interface {
	Add(ctx context.Context, name string, data interface{}, opts queue.AddOptions) (*queue.Job, error)
	PendingCount(ctx context.Context) (int64, error)
	GetJob(ctx context.Context, id string) (*queue.Job, error)
}

// Generator runs one generation for a principal.
type Generator interface {
	Generate(ctx context.Context, p domain.Principal, req domain.GenerationRequest) (*domain.Draft, error)
}

// JobService decides whether a generation runs inline or through the queue.
type JobService struct {
	queue      JobQueue
	generation Generator
	logger     zerolog.Logger
}

func NewJobService(q JobQueue, generation Generator, logger zerolog.Logger) *JobService {
	return &JobService{
		queue:      q,
		generation: generation,
		logger:     logger.With().Str("service", "JobService").Logger(),
	}
}

// SubmitResult holds either the finished draft (inline) or the queued job.
type SubmitResult struct {
	Draft *domain.Draft
	Job   *domain.JobStatus
}

func (r *SubmitResult) Queued() bool {
	return r.Job != nil
}

// Submit runs the generation inline when the queue is idle and the caller did
// not ask for queueing; otherwise it enqueues a job and returns immediately.
func (s *JobService) Submit(ctx context.Context, p domain.Principal, req domain.GenerationRequest, forceQueue bool) (*SubmitResult, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, domain.ErrMissingTopic
	}

	if !forceQueue {
		pending, err := s.queue.PendingCount(ctx)
		if err != nil {
			return nil, err
		}
		if pending == 0 {
			draft, err := s.generation.Generate(ctx, p, req)
			if err != nil {
				return nil, err
			}
			return &SubmitResult{Draft: draft}, nil
		}
	}

	job, err := s.queue.Add(ctx, GenerateJobName, domain.GenerationJob{
		UserID:            p.UserID,
		GenerationRequest: req,
	}, queue.AddOptions{Owner: p.UserID.String()})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", p.UserID.String()).
		Str("job_id", job.ID).
		Bool("forced", forceQueue).
		Msg("generation queued")

	return &SubmitResult{Job: toJobStatus(job, p)}, nil
}

// Status reports a job owned by p. Jobs of other users are reported as not found.
func (s *JobService) Status(ctx context.Context, p domain.Principal, id string) (*domain.JobStatus, error) {
	job, err := s.queue.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if job.Owner != p.UserID.String() {
		return nil, domain.ErrNotFound
	}
	return toJobStatus(job, p), nil
}

func toJobStatus(job *queue.Job, p domain.Principal) *domain.JobStatus {
	return &domain.JobStatus{
		ID:        job.ID,
		UserID:    p.UserID,
		Outcome:   job.Outcome(),
		Progress:  job.Progress,
		CreatedAt: job.Timestamp,
	}
}
