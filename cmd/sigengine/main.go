// sigengine is the streaming signal engine: it aggregates live market data
// into 1s candles, runs the indicator/classifier pipeline per client session
// and serves signals plus simulated orders over WebSocket.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"signal-systemv1/config"
	"signal-systemv1/internal/decision"
	"signal-systemv1/internal/feature"
	"signal-systemv1/internal/gateway"
	"signal-systemv1/internal/inference"
	"signal-systemv1/internal/logger"
	"signal-systemv1/internal/marketdata/binance"
	feedpkg "signal-systemv1/internal/marketdata/feed"
	"signal-systemv1/internal/metrics"
	"signal-systemv1/internal/notification"
	"signal-systemv1/internal/orders"
	"signal-systemv1/internal/pubsub"
	"signal-systemv1/internal/session"
	"signal-systemv1/internal/store/snapshot"
)

func main() {
	cfg := config.Load()
	log := logger.Init("sigengine", logger.ParseLevel(cfg.LogLevel))
	log.Info("starting", "staging", cfg.StagingMode, "symbol", cfg.DefaultSymbol)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prom := metrics.New()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, log)
	metricsSrv.Start()

	// ---- Persistence ----
	snaps, err := snapshot.New(cfg.SnapshotDir, cfg.SnapshotInterval, log)
	if err != nil {
		log.Error("snapshot store init failed", "err", err)
		os.Exit(1)
	}
	go snaps.Run(ctx)

	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		log.Error("data dir create failed", "err", err)
		os.Exit(1)
	}
	journal, err := orders.NewJournal(cfg.SQLitePath, log)
	if err != nil {
		log.Error("order journal init failed", "err", err)
		os.Exit(1)
	}
	defer journal.Close()

	ledger := orders.NewLedger(orders.DefaultCapacity)
	ledger.Restore(snaps.Orders())
	log.Info("order ledger ready", "restored", ledger.Len())

	// ---- Models ----
	registry := inference.NewRegistry(cfg.DefaultSymbol)
	if n, err := registry.LoadDir(cfg.ModelsDir, log); err != nil {
		log.Warn("model load failed", "dir", cfg.ModelsDir, "err", err)
	} else {
		log.Info("models loaded", "count", n)
	}

	// ---- Market data ----
	var feed feedpkg.Feed
	if cfg.StagingMode {
		log.Info("staging mode: simulated feed")
		feed = feedpkg.NewSim(20000, 5, 100*time.Millisecond)
	} else {
		feed = binance.New(binance.Config{
			APIKey:    cfg.BinanceAPIKey,
			APISecret: cfg.BinanceAPISecret,
			UseKlines: cfg.UseKlines,
		}, log)
	}

	// ---- Optional fan-out ----
	var publisher session.Publisher
	if cfg.RedisAddr != "" {
		pub, err := pubsub.New(cfg.RedisAddr, cfg.RedisPassword, log)
		if err != nil {
			log.Warn("continuing without redis", "err", err)
		} else {
			defer pub.Close()
			publisher = pub
		}
	}

	var notifier notification.Notifier = notification.NewLogNotifier(log)
	switch {
	case cfg.TelegramBotToken != "" && cfg.TelegramChatID != "":
		notifier = notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	case cfg.WebhookURL != "":
		notifier = notification.NewWebhookNotifier(cfg.WebhookURL)
	}

	// ---- Gateway ----
	gw := gateway.NewServer(gateway.Config{
		Addr:          cfg.ListenAddr,
		DefaultSymbol: cfg.DefaultSymbol,
		Session: session.Config{
			HistoryCap:     cfg.HistoryCap,
			CandleInterval: cfg.CandleInterval,
			Heartbeat:      cfg.Heartbeat,
			Timeout:        cfg.Timeout,
			Backoff:        cfg.ReconnectBackoff,
			SeedLimit:      cfg.SeedCandles,
		},
	}, session.Deps{
		Feed:      feed,
		Models:    registry,
		Features:  feature.NewEngine(),
		Decider:   decision.NewEngine(cfg.ConfidenceThreshold, ledger),
		Ledger:    ledger,
		Journal:   journal,
		Snapshots: snaps,
		Publisher: publisher,
		Notifier:  notifier,
		Metrics:   prom,
		Log:       log,
	}, log)
	gw.Start()
	log.Info("signal engine ready", "addr", cfg.ListenAddr)

	// ---- Wait for shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	gw.Stop(shutdownCtx)
	cancel() // stops the snapshot loop, which flushes pending state
	snaps.Flush()
	metricsSrv.Stop(shutdownCtx)
	log.Info("shutdown complete")
}
