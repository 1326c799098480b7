package observer

import (
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster fans a Feed event out to every connected client. A single
// exploration run has no per-client subscription scoping, unlike the
// workflow engine's per-execution broadcaster.
type Broadcaster interface {
	Broadcast(event *Feed)
}

// Hub manages WebSocket connections and broadcasts feed events to all of
// them.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Feed

	logger zerolog.Logger
	mu     sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Feed, 256),
		logger:     logger,
	}
}

// Run starts the hub's event loop; call it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	h.logger.Debug().Str("client_id", client.id).Int("total_clients", len(h.clients)).Msg("observer client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.logger.Debug().Str("client_id", client.id).Int("total_clients", len(h.clients)).Msg("observer client unregistered")
}

// Broadcast sends event to every connected client. Implements Broadcaster.
func (h *Hub) Broadcast(event *Feed) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().Str("event_type", event.Type).Msg("observer broadcast channel full, dropping event")
	}
}

func (h *Hub) broadcastEvent(event *Feed) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			h.logger.Warn().Str("client_id", client.id).Str("event_type", event.Type).Msg("client buffer full, dropping message")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
