package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/service"
)

type AIHandler struct {
	jobService *service.JobService
	validate   *validator.Validate
	logger     zerolog.Logger
}

func NewAIHandler(jobService *service.JobService, validate *validator.Validate, logger zerolog.Logger) *AIHandler {
	return &AIHandler{
		jobService: jobService,
		validate:   validate,
		logger:     logger.With().Str("handler", "ai").Logger(),
	}
}

type GenerateRequest struct {
	Topic    string `json:"topic" validate:"max=500"`
	Tone     string `json:"tone" validate:"max=50"`
	Platform string `json:"platform" validate:"max=50"`
	// Async sends the request through the queue even when it is idle.
	Async bool `json:"async"`
}

type QueuedResponse struct {
	Message   string          `json:"message"`
	JobID     string          `json:"jobId"`
	State     domain.JobState `json:"state"`
	StatusURL string          `json:"statusUrl"`
}

type JobStatusResponse struct {
	JobID        string          `json:"jobId"`
	State        domain.JobState `json:"state"`
	Progress     int             `json:"progress"`
	Result       json.RawMessage `json:"result,omitempty"`
	FailedReason string          `json:"failedReason,omitempty"`
	AttemptsMade int             `json:"attemptsMade,omitempty"`
	RetryAt      *time.Time      `json:"retryAt,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

func (h *AIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, false)
}

func (h *AIHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, true)
}

func (h *AIHandler) submit(w http.ResponseWriter, r *http.Request, regenerate bool) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if !decodeBody(w, r, h.validate, &req) {
		return
	}

	result, err := h.jobService.Submit(r.Context(), p, domain.GenerationRequest{
		Topic:      req.Topic,
		Tone:       req.Tone,
		Platform:   req.Platform,
		Regenerate: regenerate,
	}, req.Async)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	if result.Queued() {
		writeJSON(w, http.StatusAccepted, QueuedResponse{
			Message:   "Generation queued",
			JobID:     result.Job.ID,
			State:     result.Job.Outcome.State(),
			StatusURL: "/api/v1/ai/jobs/" + result.Job.ID,
		})
		return
	}

	writeJSON(w, http.StatusCreated, result.Draft)
}

func (h *AIHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	status, err := h.jobService.Status(r.Context(), p, chi.URLParam(r, "jobId"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Job")
		return
	}

	writeJSON(w, http.StatusOK, toJobStatusResponse(status))
}

func toJobStatusResponse(s *domain.JobStatus) JobStatusResponse {
	resp := JobStatusResponse{
		JobID:     s.ID,
		State:     s.Outcome.State(),
		Progress:  s.Progress,
		Timestamp: s.CreatedAt,
	}
	switch o := s.Outcome.(type) {
	case domain.JobActive:
		resp.Progress = o.Progress
	case domain.JobCompleted:
		resp.Progress = 100
		resp.Result = o.Result
	case domain.JobFailed:
		resp.FailedReason = o.Reason
		resp.AttemptsMade = o.AttemptsMade
	case domain.JobDelayed:
		until := o.Until
		resp.RetryAt = &until
		resp.AttemptsMade = o.AttemptsMade
	}
	return resp
}
