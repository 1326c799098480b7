package observer

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests to WebSocket observer connections.
type Handler struct {
	hub    *Hub
	auth   Authenticator
	logger zerolog.Logger
}

// NewHandler creates a Handler serving hub's feed behind auth.
func NewHandler(hub *Hub, auth Authenticator, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, auth: auth, logger: logger}
}

// ServeHTTP authenticates, upgrades, and registers the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Authenticate(r); err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("observer authentication failed")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("observer upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := NewClient(clientID, h.hub, conn)

	h.logger.Info().Str("client_id", clientID).Str("remote_addr", r.RemoteAddr).Msg("observer client connected")

	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}
