package dist

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tickerhub/internal/marketclock"
	"tickerhub/internal/model"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// HistoryReader serves bar history beyond the state store's rolling
// window, backed by the SQLite journal.
type HistoryReader interface {
	ReadBars(symbol, tf string, afterTS int64, limit int) ([]model.Bar, error)
}

// Server bundles the REST handler dependencies.
type Server struct {
	Store   Store
	Hub     *Hub
	Proxy   *OrderProxy
	Clock   *marketclock.Clock
	History HistoryReader // optional, nil when no journal is mounted
	Symbols []string
	Start   time.Time

	// OnSnapshotBuilt observes snapshot build duration (optional).
	OnSnapshotBuilt func(d time.Duration)
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/snapshot/", s.handleSnapshot)
	mux.HandleFunc("/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("/position/", s.handlePosition)
	mux.HandleFunc("/order/", s.handleOrder)
	mux.HandleFunc("/settings/", s.handleSettings)
	mux.HandleFunc("/history/", s.handleHistory)
	mux.HandleFunc("/health", s.handleHealth)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[dist] ws upgrade error: %v", err)
		return
	}
	s.Hub.HandleWSRequest(conn)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	symbol := pathSymbol(r.URL.Path, "/snapshot/")
	if symbol == "" {
		http.Error(w, `{"error":"symbol required"}`, http.StatusBadRequest)
		return
	}

	start := time.Now()
	snap, err := BuildSnapshot(r.Context(), s.Store, symbol)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			http.Error(w, `{"error":"no data"}`, http.StatusNotFound)
			return
		}
		log.Printf("[dist] snapshot %s: %v", symbol, err)
		http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	if s.OnSnapshotBuilt != nil {
		s.OnSnapshotBuilt(time.Since(start))
	}

	json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	rows, err := BuildLeaderboard(r.Context(), s.Store, s.Symbols)
	if err != nil {
		log.Printf("[dist] leaderboard: %v", err)
		http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	json.NewEncoder(w).Encode(rows)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")

	symbol := pathSymbol(r.URL.Path, "/position/")
	if symbol == "" {
		http.Error(w, `{"error":"symbol required"}`, http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)

	case http.MethodPost:
		var pos model.Position
		if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
			http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
			return
		}
		pos.Symbol = symbol
		if err := s.Store.SetPosition(r.Context(), pos); err != nil {
			log.Printf("[dist] set position %s: %v", symbol, err)
			http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	case http.MethodDelete:
		if err := s.Store.DeletePosition(r.Context(), symbol); err != nil {
			log.Printf("[dist] delete position %s: %v", symbol, err)
			http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	default:
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	symbol := pathSymbol(r.URL.Path, "/order/")
	if symbol == "" {
		http.Error(w, `{"error":"symbol required"}`, http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		http.Error(w, `{"error":"read body"}`, http.StatusBadRequest)
		return
	}
	var req model.OrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	req.Symbol = symbol
	body, _ = json.Marshal(req)

	status, reply := s.Proxy.Forward("/order/"+symbol, body)
	w.WriteHeader(status)
	w.Write(reply)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	symbol := pathSymbol(r.URL.Path, "/settings/")
	if symbol == "" {
		http.Error(w, `{"error":"symbol required"}`, http.StatusBadRequest)
		return
	}

	var patch model.Settings
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	merged, err := s.Store.MergeSettings(r.Context(), symbol, patch)
	if err != nil {
		log.Printf("[dist] merge settings %s: %v", symbol, err)
		http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	// Trailing-stop keys also live in the order subsystem; push them
	// through best-effort, the merged store copy is the source of truth.
	if fwd := trailingKeys(patch); len(fwd) > 0 && s.Proxy != nil {
		body, _ := json.Marshal(fwd)
		status, _ := s.Proxy.Forward("/settings/"+symbol, body)
		log.Printf("[dist] forwarded %d trailing keys for %s (status %d)", len(fwd), symbol, status)
	}

	json.NewEncoder(w).Encode(merged)
}

// trailingKeys extracts the st_trail-class settings that the order
// subsystem consumes.
func trailingKeys(patch model.Settings) model.Settings {
	out := model.Settings{}
	for k, v := range patch {
		if strings.HasPrefix(k, "st_trail") {
			out[k] = v
		}
	}
	return out
}

// handleHistory serves journaled bars older than the store's rolling
// window: GET /history/{symbol}?tf=1m&after=<unix>&limit=<n>.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.History == nil {
		http.Error(w, `{"error":"history unavailable"}`, http.StatusNotFound)
		return
	}

	symbol := pathSymbol(r.URL.Path, "/history/")
	if symbol == "" {
		http.Error(w, `{"error":"symbol required"}`, http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	tf := q.Get("tf")
	if tf == "" {
		tf = model.TFFine
	}
	after, _ := strconv.ParseInt(q.Get("after"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}

	bars, err := s.History.ReadBars(symbol, tf, after, limit)
	if err != nil {
		log.Printf("[dist] history %s: %v", symbol, err)
		http.Error(w, `{"error":"journal unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	if bars == nil {
		bars = []model.Bar{}
	}
	json.NewEncoder(w).Encode(bars)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")

	now := time.Now()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":        "ok",
		"ws_clients":    s.Hub.ClientCount(),
		"uptime_sec":    int64(time.Since(s.Start).Seconds()),
		"market_status": s.Clock.StatusString(now),
		"ts":            now.UTC().Format(time.RFC3339Nano),
	})
}

// pathSymbol extracts and normalizes the symbol path segment.
func pathSymbol(path, prefix string) string {
	sym := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(sym, '/'); i >= 0 {
		sym = sym[:i]
	}
	return strings.ToUpper(strings.TrimSpace(sym))
}
