// Package feed implements the ingestion side: a WebSocket bar-feed
// client, the 1m to 5m bucket aggregator, and the pipeline that
// annotates bars and writes them into the shared state store.
package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"tickerhub/internal/model"

	"github.com/gorilla/websocket"
)

// ClientConfig holds configuration for the bar-feed WebSocket client.
type ClientConfig struct {
	// URL of the bar feed, e.g. "ws://localhost:9001/ws"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *ClientConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Client connects to a plain-JSON WebSocket bar feed and pushes finalized
// minute bars into barCh. The expected message format matches model.Bar:
//
//	{"symbol":"QQQ","time":1717421400,"open":449.1,"high":449.5,"low":448.9,"close":449.3,"volume":125000}
type Client struct {
	cfg ClientConfig

	// Optional hook — called each time a reconnection happens.
	OnReconnect func()
}

// NewClient creates a Client. Returns an error if the URL is unparseable.
func NewClient(cfg ClientConfig) (*Client, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg}, nil
}

// Start connects to the feed and streams bars into barCh. Blocks until
// ctx is cancelled. Reconnects automatically on disconnect.
func (c *Client) Start(ctx context.Context, barCh chan<- model.Bar) error {
	delay := c.cfg.ReconnectDelay

	for {
		// Check context before each attempt
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := c.runOnce(ctx, barCh)
		if err == nil {
			// Context cancelled cleanly
			return nil
		}

		log.Printf("[feed] disconnected (%v), reconnecting in %s...", err, delay)
		if c.OnReconnect != nil {
			c.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		// Exponential backoff
		delay *= 2
		if delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx cancel.
func (c *Client) runOnce(ctx context.Context, barCh chan<- model.Bar) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[feed] connected to %s", c.cfg.URL)

	// Async context watcher — closes the connection when ctx is cancelled.
	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Check if it's a context cancellation
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var bar model.Bar
		if err := json.Unmarshal(raw, &bar); err != nil {
			log.Printf("[feed] parse error: %v (raw: %s)", err, raw)
			continue
		}

		if bar.Symbol == "" {
			log.Printf("[feed] skipping bar with empty symbol")
			continue
		}
		// The upstream feed sends minute bars without a timeframe tag.
		if bar.TF == "" {
			bar.TF = model.TFFine
		}

		select {
		case barCh <- bar:
		default:
			log.Println("[feed] barCh full, dropping bar")
		}
	}
}
