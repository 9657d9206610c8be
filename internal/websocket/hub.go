package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub tracks the open connections of each user and fans events out to them.
type Hub struct {
	clients    map[int64]map[*Client]bool
	clientsMux sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")
	for {
		select {
		case client := <-h.register:
			h.clientsMux.Lock()
			if _, ok := h.clients[client.userID]; !ok {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			n := len(h.clients[client.userID])
			h.clientsMux.Unlock()
			client.logger.Debug("client registered", zap.Int("connections", n))

		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.clientsMux.Lock()
			for userID, userClients := range h.clients {
				for client := range userClients {
					close(client.send)
				}
				delete(h.clients, userID)
			}
			h.clientsMux.Unlock()
			close(h.done)
			h.logger.Info("websocket hub stopped")
			return
		}
	}
}

// Done is closed once Run has returned. Registrations and unregistrations
// after that are dropped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) remove(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	userClients, ok := h.clients[client.userID]
	if !ok || !userClients[client] {
		return
	}
	close(client.send)
	delete(userClients, client)
	if len(userClients) == 0 {
		delete(h.clients, client.userID)
	}
	client.logger.Debug("client unregistered", zap.Int("remaining", len(userClients)))
}

// NotifyUser sends an event to every connection of userID. Users without a
// connection are skipped; the REST history stays authoritative.
func (h *Hub) NotifyUser(userID int64, msgType string, payload interface{}) {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	for client := range h.clients[userID] {
		client.SendMessage(msgType, payload)
	}
}

// Connections reports how many sockets userID has open.
func (h *Hub) Connections(userID int64) int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients[userID])
}
