package websocket

import (
	"context"
	"sync"
	"time"

	"chat-rooms/pkg/logger"
)

// Hub tracks live clients so the server can close them all on shutdown.
// Room membership lives in the chat coordinator, not here.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	closing bool
	empty   chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
	}
}

// Register adds a client. Clients arriving after shutdown began are closed.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		client.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, client)
	if len(h.clients) == 0 && h.empty != nil {
		close(h.empty)
		h.empty = nil
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll closes every client and waits until their read pumps have run
// disconnect handling, or ctx expires.
func (h *Hub) CloseAll(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	var wait chan struct{}
	if len(clients) > 0 {
		wait = make(chan struct{})
		h.empty = wait
	}
	h.mu.Unlock()

	if wait == nil {
		return nil
	}

	start := time.Now()
	for _, client := range clients {
		client.Close()
	}
	logger.Info("Closing connections", "count", len(clients))

	select {
	case <-wait:
		logger.Info("All connections closed", "elapsed", time.Since(start))
		return nil
	case <-ctx.Done():
		logger.Warn("Connections still open at shutdown deadline", "remaining", h.Count())
		return ctx.Err()
	}
}
