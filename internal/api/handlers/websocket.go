package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/api/middleware"
	ws "github.com/scripta/scripta-api/internal/websocket"
)

type WebSocketHandler struct {
	hub       *ws.Hub
	validator middleware.TokenValidator
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
}

// NewWebSocketHandler accepts upgrades from any origin in allowedOrigins, or
// from all origins when the list contains "*".
func NewWebSocketHandler(hub *ws.Hub, validator middleware.TokenValidator, allowedOrigins []string, logger zerolog.Logger) *WebSocketHandler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return &WebSocketHandler{
		hub:       hub,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		},
		logger: logger.With().Str("handler", "websocket").Logger(),
	}
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Token required")
		return
	}

	principal, err := h.validator.ValidateToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, principal.UserID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
