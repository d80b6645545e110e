package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickerhub/config"
	"tickerhub/internal/dist"
	"tickerhub/internal/logger"
	"tickerhub/internal/marketclock"
	"tickerhub/internal/metrics"
	"tickerhub/internal/notification"
	redisstore "tickerhub/internal/store/redis"
	sqlitestore "tickerhub/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[distserver] starting...")
	logger.Init("distserver", slog.LevelInfo)

	cfg := config.Load()
	symbols := cfg.ParseSymbols()

	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetFeedConnected(true) // no upstream feed in this process
	health.SetSQLiteOK(true)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- State store; keep retrying so a store outage at boot never
	// kills the process ----
	var store *redisstore.Store
	var err error
	for {
		store, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err == nil {
			break
		}
		log.Printf("[distserver] store unavailable: %v (retrying in 5s)", err)
		select {
		case <-sigCh:
			return
		case <-time.After(5 * time.Second):
		}
	}
	defer store.Close()
	health.SetRedisConnected(true)
	health.StartLivenessChecker(ctx, store.Client(), nil, 10*time.Second)

	// ---- WebSocket hub + relay ----
	hub := dist.NewHub()
	hub.OnClientCount = func(n int) { prom.WSClients.Set(float64(n)) }

	broadcaster := dist.NewBroadcaster(hub)
	broadcaster.OnDrop = func() { prom.WSDrops.Inc() }

	tracker := dist.NewTracker(store)

	notifier := buildNotifier(cfg)
	relay := dist.NewRelay(store.Client(), store, broadcaster, tracker, notifier, cfg.NewHighAlertStreak)
	relay.OnRelayed = func() { prom.RelayMessages.Inc() }
	relay.OnNewHigh = func() { prom.NewHighEvents.Inc() }
	go relay.Run(ctx)

	// ---- Deep-history journal (optional; feedengine owns the writer) ----
	var history dist.HistoryReader
	if journal, err := sqlitestore.NewReader(cfg.SQLitePath); err != nil {
		log.Printf("[distserver] bar journal unavailable: %v (history endpoint disabled)", err)
	} else {
		defer journal.Close()
		history = journal
	}

	// ---- REST + WS server ----
	proxy := dist.NewOrderProxy(cfg.OrderGatewayURL, cfg.OrderTOTPSecret)
	proxy.OnFallback = func() { prom.ProxyFallbacks.Inc() }

	srv := &dist.Server{
		Store:   store,
		Hub:     hub,
		Proxy:   proxy,
		Clock:   marketclock.NewYork(),
		History: history,
		Symbols: symbols,
		Start:   time.Now(),
	}
	srv.OnSnapshotBuilt = func(d time.Duration) { prom.SnapshotDur.Observe(d.Seconds()) }

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	httpSrv := &http.Server{
		Addr:    cfg.DistAddr,
		Handler: mux,
	}
	go func() {
		log.Printf("[distserver] listening on %s", cfg.DistAddr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[distserver] http server error: %v", err)
		}
	}()

	log.Printf("[distserver] serving %d symbols, relaying store pub/sub to /ws", len(symbols))

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[distserver] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	log.Println("[distserver] shutdown complete.")
}

// buildNotifier assembles the alert backends from config. Always logs;
// webhook and Telegram are added when configured.
func buildNotifier(cfg *config.Config) notification.Notifier {
	backends := notification.Multi{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Printf("[distserver] webhook alerts -> %s", cfg.WebhookURL)
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Println("[distserver] telegram alerts enabled")
	}
	return backends
}
