package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/service"
)

type DraftHandler struct {
	draftService *service.DraftService
	validate     *validator.Validate
	logger       zerolog.Logger
}

func NewDraftHandler(draftService *service.DraftService, validate *validator.Validate, logger zerolog.Logger) *DraftHandler {
	return &DraftHandler{
		draftService: draftService,
		validate:     validate,
		logger:       logger.With().Str("handler", "draft").Logger(),
	}
}

type CreateDraftRequest struct {
	Title    string `json:"title" validate:"max=200"`
	Content  string `json:"content"`
	Platform string `json:"platform" validate:"max=50"`
	Tone     string `json:"tone" validate:"max=50"`
}

type UpdateDraftRequest struct {
	Title   *string `json:"title" validate:"omitempty,max=200"`
	Content *string `json:"content"`
}

func (h *DraftHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req CreateDraftRequest
	if !decodeBody(w, r, h.validate, &req) {
		return
	}

	draft, err := h.draftService.Create(r.Context(), p, service.CreateDraftInput{
		Title:    req.Title,
		Content:  req.Content,
		Platform: req.Platform,
		Tone:     req.Tone,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Draft")
		return
	}

	writeJSON(w, http.StatusCreated, draft)
}

func (h *DraftHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	drafts, err := h.draftService.List(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Draft")
		return
	}
	if drafts == nil {
		drafts = []*domain.Draft{}
	}

	writeJSON(w, http.StatusOK, drafts)
}

func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	id, ok := draftID(w, r)
	if !ok {
		return
	}

	draft, err := h.draftService.Get(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Draft")
		return
	}

	writeJSON(w, http.StatusOK, draft)
}

func (h *DraftHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	id, ok := draftID(w, r)
	if !ok {
		return
	}

	var req UpdateDraftRequest
	if !decodeBody(w, r, h.validate, &req) {
		return
	}

	draft, err := h.draftService.Update(r.Context(), p, id, service.UpdateDraftInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Draft")
		return
	}

	writeJSON(w, http.StatusOK, draft)
}

func (h *DraftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	id, ok := draftID(w, r)
	if !ok {
		return
	}

	if err := h.draftService.Delete(r.Context(), p, id); err != nil {
		writeServiceError(w, r, h.logger, err, "Draft")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Draft deleted successfully"})
}

func draftID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid draft ID")
		return uuid.Nil, false
	}
	return id, true
}
