// Package websocket pushes change feed events to browser clients.
package websocket

import (
	"context"
	"github.com/rookgm/tableorder/internal/feed"
	"github.com/rookgm/tableorder/internal/metrics"
	"go.uber.org/zap"
	"sync"
)

// Message types for WebSocket communication
const (
	MessageTypeSnapshot = "snapshot"
	MessageTypeChange   = "change"
	MessageTypeError    = "error"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message represents a WebSocket message
type Message struct {
	Type   string `json:"type"`
	Filter string `json:"filter,omitempty"`
	Data   any    `json:"data"`
}

// ChangeMessage wraps a row event for delivery
func ChangeMessage(f feed.Filter, ev feed.RowEvent) Message {
	return Message{Type: MessageTypeChange, Filter: f.String(), Data: ev}
}

// Hub maintains the set of active clients
type Hub struct {
	clients    map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.Named("ws_hub"),
	}
}

// Run tracks clients until ctx is done, then closes all of them
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			h.logger.Info("websocket hub stopped")
			return ctx.Err()

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Inc()
			h.logger.Debug("websocket client connected",
				zap.Uint64("client", client.ID()),
				zap.Int("total_clients", total),
			)

		case client := <-h.Unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			delete(h.clients, client)
			total := len(h.clients)
			h.mu.Unlock()
			if ok {
				metrics.WebSocketClients.Dec()
				client.close()
			}
			h.logger.Debug("websocket client disconnected",
				zap.Uint64("client", client.ID()),
				zap.Int("total_clients", total),
			)
		}
	}
}

// register adds c, reporting false when the hub is stopped
func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
		c.close()
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		metrics.WebSocketClients.Dec()
		client.close()
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
