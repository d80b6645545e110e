package dist

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Optional symbol filter. Empty set means receive everything.
	subMu   sync.RWMutex
	symbols map[string]bool
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: use NextWriter to batch queued messages
			// into a single WebSocket frame with newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[dist] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var base struct {
			Type    string   `json:"type"`
			Symbols []string `json:"symbols"`
			Ping    int64    `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}

		switch base.Type {
		case "SUBSCRIBE":
			set := make(map[string]bool, len(base.Symbols))
			for _, s := range base.Symbols {
				set[strings.ToUpper(s)] = true
			}
			c.subMu.Lock()
			c.symbols = set
			c.subMu.Unlock()
			log.Printf("[dist] ws client filter: %v", base.Symbols)

		case "UNSUBSCRIBE":
			c.subMu.Lock()
			c.symbols = nil
			c.subMu.Unlock()

		default:
			if base.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      base.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				select {
				case c.send <- pong:
				default:
				}
			}
		}
	}
}

// matchesChannel reports whether this client should receive a message on
// the given pub/sub channel. Global channels always deliver; symbol
// channels respect the client filter.
func (c *Client) matchesChannel(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if len(c.symbols) == 0 {
		return true
	}

	// Symbol channels end in ":<SYMBOL>"; everything else is global.
	i := strings.LastIndexByte(channel, ':')
	if i < 0 {
		return true
	}
	sym := channel[i+1:]
	if !c.symbols[sym] {
		// Global channels like order:update carry a non-symbol suffix.
		return !looksLikeSymbolChannel(channel)
	}
	return true
}

func looksLikeSymbolChannel(channel string) bool {
	return strings.HasPrefix(channel, "bar:") || strings.HasPrefix(channel, "position:")
}
