package handlers

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/service"
)

type UsageHandler struct {
	usageService *service.UsageService
	logger       zerolog.Logger
}

func NewUsageHandler(usageService *service.UsageService, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
		logger:       logger.With().Str("handler", "usage").Logger(),
	}
}

type AllUsageResponse struct {
	Usage []*domain.UsageGroup `json:"usage"`
}

// Me handles GET /ai/usage/me?from=&to=.
func (h *UsageHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	rng := h.usageService.ParseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	report, err := h.usageService.ForUser(r.Context(), p, rng)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "User")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *UsageHandler) All(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	rng := h.usageService.ParseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	groups, err := h.usageService.All(r.Context(), p, rng)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	if groups == nil {
		groups = []*domain.UsageGroup{}
	}

	writeJSON(w, http.StatusOK, AllUsageResponse{Usage: groups})
}
