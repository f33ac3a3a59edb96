package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
	logger         zerolog.Logger
}

func NewSessionHandler(sessionService *service.SessionService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		logger:         logger.With().Str("handler", "session").Logger(),
	}
}

type SessionListResponse struct {
	Message  string                   `json:"message"`
	Sessions []*domain.TrustedSession `json:"sessions"`
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	sessions, err := h.sessionService.List(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Session")
		return
	}
	if sessions == nil {
		sessions = []*domain.TrustedSession{}
	}

	writeJSON(w, http.StatusOK, SessionListResponse{
		Message:  "Active sessions retrieved",
		Sessions: sessions,
	})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	session, err := h.sessionService.Get(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	if err := h.sessionService.Revoke(r.Context(), p, id); err != nil {
		writeServiceError(w, r, h.logger, err, "Session")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Session revoked successfully"})
}
