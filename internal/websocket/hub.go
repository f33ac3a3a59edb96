package websocket

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/queue"
)

// Hub tracks connected clients by user and fans job events out to them.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	stop       chan struct{}
	done       chan struct{} // closed when Run() exits
	stopped    bool
	stopOnce   sync.Once
	logger     zerolog.Logger
	mu         sync.RWMutex
}

type delivery struct {
	userID uuid.UUID
	msg    *Message
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 256),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			h.stopped = true
			for _, set := range h.clients {
				for client := range set {
					client.Close()
				}
			}
			h.clients = make(map[uuid.UUID]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if !h.stopped {
				set, ok := h.clients[client.userID]
				if !ok {
					set = make(map[*Client]bool)
					h.clients[client.userID] = set
				}
				set[client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.userID]; ok && set[client] {
				delete(set, client)
				if len(set) == 0 {
					delete(h.clients, client.userID)
				}
				client.Close()
			}
			h.mu.Unlock()

		case d := <-h.deliver:
			h.mu.RLock()
			for client := range h.clients[d.userID] {
				client.Send(d.msg)
			}
			h.mu.RUnlock()
		}
	}
}

// Stop closes every client and blocks until Run has exited.
// Safe to call more than once and from several goroutines.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client, handling the case where the hub may be stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToUser delivers msg to every connection of userID.
func (h *Hub) SendToUser(userID uuid.UUID, msg *Message) {
	select {
	case h.deliver <- delivery{userID: userID, msg: msg}:
	case <-h.done:
	}
}

// ConnectionCount returns the number of open connections for userID.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// PumpEvents forwards queue events to the owning user until events is closed
// or ctx is done.
func (h *Hub) PumpEvents(ctx context.Context, events <-chan queue.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			userID, err := uuid.Parse(ev.Owner)
			if err != nil {
				continue
			}
			msg, err := NewMessage(MessageTypeJobUpdated, JobUpdatedPayload{
				JobID: ev.JobID,
				State: ev.State,
			})
			if err != nil {
				continue
			}
			h.SendToUser(userID, msg)
		}
	}
}
