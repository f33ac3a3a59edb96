package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/llm"
	"github.com/scripta/scripta-api/internal/queue"
	"golang.org/x/sync/errgroup"
)

// JobSource is the consuming side of the job queue.
type JobSource interface {
	Reserve(ctx context.Context, token string) (*queue.Job, error)
	ExtendLock(ctx context.Context, id, token string) error
	UpdateProgress(ctx context.Context, job *queue.Job, progress int) error
	Complete(ctx context.Context, job *queue.Job, token string, result interface{}) error
	Fail(ctx context.Context, job *queue.Job, token string, cause error) (domain.JobState, error)
	RequeueStalled(ctx context.Context) ([]string, error)
}

type Generator interface {
	Generate(ctx context.Context, p domain.Principal, req domain.GenerationRequest) (*domain.Draft, error)
}

// Purger removes expired one-time codes during housekeeping.
type Purger interface {
	PurgeExpiredCodes(ctx context.Context) (int64, error)
}

type Config struct {
	Concurrency     int
	PollInterval    time.Duration
	StalledInterval time.Duration
	LockDuration    time.Duration
}

// Worker consumes generation jobs. Each slot processes one job at a time.
type Worker struct {
	source    JobSource
	generator Generator
	purger    Purger
	cfg       Config
	logger    zerolog.Logger
}

func New(source JobSource, generator Generator, cfg Config, logger zerolog.Logger) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.StalledInterval <= 0 {
		cfg.StalledInterval = 30 * time.Second
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = 30 * time.Second
	}
	return &Worker{
		source:    source,
		generator: generator,
		cfg:       cfg,
		logger:    logger.With().Str("component", "worker").Logger(),
	}
}

func (w *Worker) WithPurger(p Purger) *Worker {
	w.purger = p
	return w
}

// Run blocks until ctx is cancelled or a slot fails with an unexpected error.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < w.cfg.Concurrency; i++ {
		slot := i
		g.Go(func() error {
			return w.runSlot(ctx, slot)
		})
	}
	g.Go(func() error {
		return w.runHousekeeping(ctx)
	})

	w.logger.Info().Int("concurrency", w.cfg.Concurrency).Msg("worker started")
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	w.logger.Info().Msg("worker stopped")
	return err
}

func (w *Worker) runSlot(ctx context.Context, slot int) error {
	log := w.logger.With().Int("slot", slot).Logger()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		processed, err := w.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("process job")
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

func (w *Worker) runHousekeeping(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.StalledInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.housekeeping(ctx)
		}
	}
}

func (w *Worker) housekeeping(ctx context.Context) {
	ids, err := w.source.RequeueStalled(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("requeue stalled jobs")
	} else if len(ids) > 0 {
		w.logger.Warn().Strs("job_ids", ids).Msg("requeued stalled jobs")
	}

	if w.purger != nil {
		n, err := w.purger.PurgeExpiredCodes(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("purge expired codes")
		} else if n > 0 {
			w.logger.Debug().Int64("deleted", n).Msg("purged expired codes")
		}
	}
}

// ProcessNext reserves and processes a single job. It reports whether a job
// was available.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	job, err := w.source.Reserve(ctx, token)
	if errors.Is(err, queue.ErrJobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, w.process(ctx, job, token)
}

func (w *Worker) process(ctx context.Context, job *queue.Job, token string) error {
	log := w.logger.With().Str("job_id", job.ID).Int("attempt", job.AttemptsMade+1).Logger()
	log.Info().Msg("processing job")

	stopLock := w.keepLock(ctx, job.ID, token, log)
	draft, err := w.run(ctx, job)
	stopLock()

	if err != nil {
		failure := error(&jobError{reason: publicReason(err), err: err})
		if isPermanent(err) {
			failure = queue.Unrecoverable(failure)
		}
		state, failErr := w.source.Fail(ctx, job, token, failure)
		if failErr != nil {
			return fmt.Errorf("record failure of job %s: %w", job.ID, failErr)
		}
		log.Warn().Err(err).Str("state", string(state)).Msg("job failed")
		return nil
	}

	if err := w.source.Complete(ctx, job, token, draft); err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	log.Info().Str("draft_id", draft.ID.String()).Msg("job completed")
	return nil
}

func (w *Worker) run(ctx context.Context, job *queue.Job) (draft *domain.Draft, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	var payload domain.GenerationJob
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		return nil, queue.Unrecoverable(fmt.Errorf("decode job payload: %w", err))
	}

	if err := w.source.UpdateProgress(ctx, job, 10); err != nil {
		w.logger.Debug().Err(err).Str("job_id", job.ID).Msg("update progress")
	}

	return w.generator.Generate(ctx, domain.Principal{UserID: payload.UserID}, payload.GenerationRequest)
}

// keepLock extends the job lock until the returned stop function is called.
func (w *Worker) keepLock(ctx context.Context, id, token string, log zerolog.Logger) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.cfg.LockDuration / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.source.ExtendLock(ctx, id, token); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Msg("extend job lock")
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func isPermanent(err error) bool {
	return domain.IsPermanent(err) || errors.Is(err, llm.ErrPermanent)
}

// jobError stores a client-safe reason on the job while keeping the cause
// reachable for errors.Is and errors.As.
type jobError struct {
	reason string
	err    error
}

func (e *jobError) Error() string { return e.reason }
func (e *jobError) Unwrap() error { return e.err }

// publicReason is the failure reason job owners see. Anything that is not a
// domain rule collapses to a generic message; the full error is only logged.
func publicReason(err error) string {
	var quota *domain.QuotaError
	switch {
	case errors.As(err, &quota):
		return quota.Error()
	case errors.Is(err, domain.ErrMissingTopic):
		return domain.ErrMissingTopic.Error()
	default:
		return "generation failed"
	}
}
