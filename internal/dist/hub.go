// Package dist implements the distribution server: REST snapshot and
// leaderboard endpoints, the WebSocket streaming hub, the pub/sub relay,
// and the command proxy to the order subsystem.
package dist

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub manages the WebSocket client set. Fan-out itself lives in
// Broadcaster; the hub only tracks membership.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	// Metrics hooks (optional)
	OnClientCount func(n int)
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// HandleWSRequest registers an upgraded connection and starts its pumps.
// New clients receive live traffic only; there is no backlog replay, the
// REST snapshot endpoint covers catch-up.
func (h *Hub) HandleWSRequest(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[dist] ws client connected (%d total)", count)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub. Idempotent per client via
// the readPump defer.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
