package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Hub tracks the connected WebSocket clients. The overlay, the voice
// client, and the vision client each hold one connection; output frames fan
// out to all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

// Register adds a connection to the fan-out set.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
	slog.Info("Chat client registered", "clients", len(h.clients))
}

// Unregister removes a connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	slog.Info("Chat client unregistered", "clients", len(h.clients))
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a text frame to every client except exclude (which may be
// nil). Write failures are logged and skipped; the read loop notices dead
// connections and unregisters them.
func (h *Hub) Broadcast(ctx context.Context, text string, exclude *websocket.Conn) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		if c != exclude {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.Write(ctx, websocket.MessageText, []byte(text)); err != nil {
			slog.Debug("Broadcast write failed", "error", err)
		}
	}
}
