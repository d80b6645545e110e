// Package metrics exposes Prometheus instrumentation and the health
// probe server shared by the feed engine and distribution server.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bar pipeline and the
// distribution server. Processes register only what they touch; unused
// series simply stay at zero.
type Metrics struct {
	// Feed engine
	BarsIngested  prometheus.Counter
	BarsRejected  prometheus.Counter
	CoarseBars    prometheus.Counter
	FeedReconnect prometheus.Counter

	// Store writes
	StoreWriteErrors   prometheus.Counter
	StoreWriteDur      prometheus.Histogram
	SQLiteCommitDur    prometheus.Histogram
	CircuitState       prometheus.Gauge // 0=closed, 1=open, 2=half-open
	CircuitTrips       prometheus.Counter
	BufferedWrites     prometheus.Counter

	// Distribution server
	RelayMessages  prometheus.Counter
	WSClients      prometheus.Gauge
	WSDrops        prometheus.Counter
	SnapshotDur    prometheus.Histogram
	NewHighEvents  prometheus.Counter
	ProxyFallbacks prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		BarsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerhub_bars_ingested_total",
			Help: "Total minute bars accepted by the pipeline",
		}),
		BarsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerhub_bars_rejected_total",
			Help: "Bars rejected as malformed (non-finite or non-monotonic)",
		}),
		CoarseBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerhub_coarse_bars_total",
			Help: "Total finalized 5m bars emitted by the aggregator",
		}),
		FeedReconnect: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerhub_feed_reconnects_total",
			Help: "Total bar-feed WebSocket reconnection attempts",
		}),

		StoreWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerhub_store_write_errors_total",
			Help: "Failed state-store bar writes",
		}),
		StoreWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickerhub_store_write_duration_seconds",
			Help:    "State-store write latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickerhub_sqlite_commit_duration_seconds",
			Help:    "SQLite journal batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		CircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickerhub_store_circuit_breaker_state",
			Help: "Store circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		CircuitTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerhub_store_circuit_breaker_trips_total",
			Help: "Times the store circuit breaker tripped open",
		}),
		BufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerhub_store_buffered_writes_total",
			Help: "Bar writes buffered locally while the store was unreachable",
		}),

		RelayMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerhub_relay_messages_total",
			Help: "Pub/sub messages relayed to WebSocket clients",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickerhub_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerhub_ws_drops_total",
			Help: "Messages dropped to slow WebSocket consumers",
		}),
		SnapshotDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickerhub_snapshot_build_duration_seconds",
			Help:    "REST snapshot composition latency",
			Buckets: prometheus.DefBuckets,
		}),
		NewHighEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerhub_newhigh_events_total",
			Help: "Synthesized new-high events",
		}),
		ProxyFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerhub_order_proxy_fallbacks_total",
			Help: "Order commands answered with the degraded offline reply",
		}),
	}

	prometheus.MustRegister(
		m.BarsIngested,
		m.BarsRejected,
		m.CoarseBars,
		m.FeedReconnect,
		m.StoreWriteErrors,
		m.StoreWriteDur,
		m.SQLiteCommitDur,
		m.CircuitState,
		m.CircuitTrips,
		m.BufferedWrites,
		m.RelayMessages,
		m.WSClients,
		m.WSDrops,
		m.SnapshotDur,
		m.NewHighEvents,
		m.ProxyFallbacks,
	)

	return m
}

// HealthStatus represents the process health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastBarTime    time.Time `json:"last_bar_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastBarTime(t time.Time) {
	h.mu.Lock()
	h.LastBarTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.FeedConnected || !h.RedisConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	barAge := ""
	if !h.LastBarTime.IsZero() {
		barAge = time.Since(h.LastBarTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedConnected   bool    `json:"feed_connected"`
		LastBarTime     string  `json:"last_bar_time"`
		BarAge          string  `json:"bar_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastBarTime:     h.LastBarTime.Format(time.RFC3339),
		BarAge:          barAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
