package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickerhub/config"
	"tickerhub/internal/feed"
	"tickerhub/internal/indicator"
	"tickerhub/internal/logger"
	"tickerhub/internal/marketclock"
	"tickerhub/internal/metrics"
	"tickerhub/internal/model"
	redisstore "tickerhub/internal/store/redis"
	sqlitestore "tickerhub/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[feedengine] starting...")
	logger.Init("feedengine", slog.LevelInfo)

	cfg := config.Load()
	symbols := cfg.ParseSymbols()
	log.Printf("[feedengine] tracking symbols: %v", symbols)

	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite bar journal (off hot path) ----
	os.MkdirAll("data", 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[feedengine] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	sqlWriter.OnCommit = func(d time.Duration) { prom.SQLiteCommitDur.Observe(d.Seconds()) }
	health.SetSQLiteOK(true)

	journalCh := make(chan model.Bar, 5000)
	go sqlWriter.Run(ctx, journalCh)

	for _, sym := range symbols {
		if ts, err := sqlWriter.GetLastTimestamp(sym, model.TFFine); err == nil && ts > 0 {
			log.Printf("[feedengine] journal resume point %s: last 1m bar at %d", sym, ts)
		}
	}

	// ---- State store; keep retrying so a store outage at boot never
	// kills the process ----
	var store *redisstore.Store
	for {
		store, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err == nil {
			break
		}
		log.Printf("[feedengine] store unavailable: %v (retrying in 5s)", err)
		select {
		case <-sigCh:
			return
		case <-time.After(5 * time.Second):
		}
	}
	defer store.Close()
	health.SetRedisConnected(true)
	health.StartLivenessChecker(ctx, store.Client(), sqlWriter.DB(), 10*time.Second)

	// ---- Circuit breaker + buffered writes ----
	cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to redisstore.State) {
		log.Printf("[feedengine] store circuit breaker: %s -> %s", from, to)
		prom.CircuitState.Set(float64(to))
		if to == redisstore.StateOpen {
			prom.CircuitTrips.Inc()
		}
	}
	writer := redisstore.NewBufferedWriter(ctx, store, cb, 10000)
	writer.OnBuffer = func() { prom.BufferedWrites.Inc() }
	writer.OnError = func() { prom.StoreWriteErrors.Inc() }
	writer.OnWrite = func(d time.Duration) { prom.StoreWriteDur.Observe(d.Seconds()) }
	writer.OnFlush = func(n int) { log.Printf("[feedengine] store recovered, replayed %d buffered bars", n) }

	// ---- Pipeline ----
	clock := marketclock.NewYork()
	engine := indicator.NewEngine(indicator.Config{})
	svc := feed.NewService(store, writer, clock, engine, journalCh)
	svc.OnIngested = func() {
		prom.BarsIngested.Inc()
		health.SetLastBarTime(time.Now())
	}
	svc.OnRejected = func() { prom.BarsRejected.Inc() }
	svc.OnCoarse = func() { prom.CoarseBars.Inc() }

	// ---- Warm-up replay of today's stored bars ----
	if err := svc.Warmup(ctx, symbols); err != nil {
		log.Printf("[feedengine] WARNING: warmup replay failed: %v (continuing cold)", err)
	}

	// ---- Bar feed ----
	client, err := feed.NewClient(feed.ClientConfig{URL: cfg.FeedURL})
	if err != nil {
		log.Fatalf("[feedengine] feed client init failed: %v", err)
	}
	client.OnReconnect = func() {
		prom.FeedReconnect.Inc()
		health.SetFeedConnected(false)
	}
	health.SetFeedConnected(true)

	barCh := make(chan model.Bar, 10000)
	go func() {
		if err := client.Start(ctx, barCh); err != nil {
			log.Printf("[feedengine] feed client error: %v", err)
			health.SetFeedConnected(false)
		}
	}()

	go svc.Run(ctx, barCh)

	log.Printf("[feedengine] pipeline ready: [feed WS] -> [indicators] -> [5m agg] -> [store/journal]")
	log.Printf("[feedengine] %s", clock.StatusString(time.Now()))

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[feedengine] shutdown signal received, cleaning up...")
	if n := writer.PendingCount(); n > 0 {
		log.Printf("[feedengine] WARNING: %d buffered store writes not replayed", n)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	log.Println("[feedengine] shutdown complete.")
}
