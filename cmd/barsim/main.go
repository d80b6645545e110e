// cmd/barsim — Demo WebSocket bar server.
// Broadcasts simulated 1-minute bars for testing feedengine without a
// real market data subscription.
//
// Bar JSON shape is identical to what feedengine ingests:
//
//	{"symbol":"QQQ","time":1717421400,"open":449.1,"high":449.5,"low":448.9,"close":449.3,"volume":125000}
//
// Timestamps are exchange-local seconds (New York wall clock read as UTC).
//
// Config (env vars):
//
//	BARSIM_ADDR         — listen address (default: ":9001")
//	BARSIM_SYMBOLS      — comma-separated symbols (default: "QQQ,AAPL,NVDA,TSLA")
//	BARSIM_INTERVAL_MS  — broadcast interval milliseconds (default: "1000";
//	                      each interval emits the next simulated minute)
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"tickerhub/internal/marketclock"

	"github.com/gorilla/websocket"
)

// barMsg mirrors the minute-bar wire format.
type barMsg struct {
	Symbol string  `json:"symbol"`
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// instrument holds per-symbol simulation state.
type instrument struct {
	Symbol string
	Price  float64
}

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client — drop bar
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[barsim] upgrade error: %v", err)
			return
		}
		log.Printf("[barsim] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[barsim] client disconnected: %s", r.RemoteAddr)
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// makeBar simulates one minute of trading as a random walk around the
// instrument's current price and advances it to the bar's close.
func makeBar(inst *instrument, ts int64, rng *rand.Rand) barMsg {
	open := inst.Price
	drift := open * (rng.Float64()*0.4 - 0.2) / 100.0
	closePx := open + drift

	high := open
	if closePx > high {
		high = closePx
	}
	high += open * rng.Float64() * 0.05 / 100.0

	low := open
	if closePx < low {
		low = closePx
	}
	low -= open * rng.Float64() * 0.05 / 100.0

	inst.Price = closePx
	return barMsg{
		Symbol: inst.Symbol,
		Time:   ts,
		Open:   round2(open),
		High:   round2(high),
		Low:    round2(low),
		Close:  round2(closePx),
		Volume: int64(rng.Intn(200000) + 10000),
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// runGenerator emits one simulated minute per interval. The simulated
// clock starts at the current exchange-local minute so warm-up flags and
// day keys behave exactly as with a live feed.
func runGenerator(h *hub, instruments []instrument, intervalMs int) {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	clock := marketclock.NewYork()

	ts := int64(clock.ToLocal(time.Now()))
	ts -= ts % 60

	for range ticker.C {
		for i := range instruments {
			msg := makeBar(&instruments[i], ts, rng)
			b, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
		ts += 60
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[barsim] starting demo bar server...")

	addr := envOrDefault("BARSIM_ADDR", ":9001")
	symbolsEnv := envOrDefault("BARSIM_SYMBOLS", "QQQ,AAPL,NVDA,TSLA")
	intervalMs := envIntOrDefault("BARSIM_INTERVAL_MS", 1000)

	instruments := parseInstruments(symbolsEnv)
	if len(instruments) == 0 {
		log.Fatalf("[barsim] no symbols configured via BARSIM_SYMBOLS")
	}
	log.Printf("[barsim] instruments: %+v", instruments)
	log.Printf("[barsim] broadcast interval: %dms per simulated minute", intervalMs)

	h := newHub()
	go runGenerator(h, instruments, intervalMs)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"barsim"}`)
	})

	log.Printf("[barsim] listening on %s  (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[barsim] server error: %v", err)
	}
}

func parseInstruments(s string) []instrument {
	defaultPrices := map[string]float64{
		"QQQ":  449.50,
		"AAPL": 228.10,
		"NVDA": 142.30,
		"TSLA": 262.80,
	}

	var result []instrument
	for _, part := range strings.Split(s, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym == "" {
			continue
		}
		price := defaultPrices[sym]
		if price == 0 {
			price = 100.00
		}
		result = append(result, instrument{Symbol: sym, Price: price})
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
