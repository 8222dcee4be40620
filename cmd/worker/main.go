package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/surveyhub/internal/config"
	"github.com/geocoder89/surveyhub/internal/db"
	"github.com/geocoder89/surveyhub/internal/notifications"
	"github.com/geocoder89/surveyhub/internal/observability"
	"github.com/geocoder89/surveyhub/internal/queue/redisclient"
	"github.com/geocoder89/surveyhub/internal/queue/worker"
	"github.com/geocoder89/surveyhub/internal/repo/postgres"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	log = slog.New(observability.NewTraceHandler(log.Handler()))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "surveyhub-worker", cfg.OTLPEndpoint)

	if err != nil {
		log.Warn("tracing disabled", "err", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)
	metrics := observability.NewDeliveryMetrics()

	messagesRepo := postgres.NewMessagesRepo(pool, prom)

	var waker worker.Waker

	rds := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, pingCancel := config.WithTimeout(2 * time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		log.Warn("redis unreachable, falling back to plain polling", "err", err)
		rds = nil
	} else {
		waker = rds
	}
	pingCancel()

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(),
		notifications.ProtectedNotifierConfig{},
	)

	w := worker.New(worker.Config{
		PollInterval:  cfg.PollInterval,
		WorkerID:      cfg.WorkerID,
		Concurrency:   cfg.Concurrency,
		ShutdownGrace: cfg.ShutdownGrace,
		LockTTL:       cfg.LockTTL,
	}, messagesRepo, notifier, metrics, prom, waker, log)

	// health endpoints on a side port
	healthSrv := &http.Server{
		Addr:              ":8081",
		Handler:           w.HealthHandler(pool),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("worker started", "id", cfg.WorkerID, "concurrency", cfg.Concurrency)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	_ = healthSrv.Shutdown(shutdownCtx)
	_ = shutdownTracer(shutdownCtx)

	if rds != nil {
		_ = rds.Close()
	}

	log.Info("worker shutdown complete")
}
