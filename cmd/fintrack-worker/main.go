package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	logpkg "fintrack/internal/log"
	"fintrack/internal/remote/memory"
	"fintrack/internal/remote/sheets"
	"fintrack/internal/storage"
	syncpkg "fintrack/internal/sync"
	"fintrack/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := logpkg.New(logpkg.DefaultConfig()).WithComponent(logpkg.ComponentWorker)
	logpkg.SetDefault(logger)

	logger.Info("Starting fintrack-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", logpkg.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", logpkg.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote, err := newRemoteStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize remote store", logpkg.FieldError, err, "backend", cfg.RemoteBackend)
		os.Exit(1)
	}
	logger.Info("Remote store initialized", "backend", cfg.RemoteBackend)

	// AMQP is optional: without it the periodic pass still reconciles,
	// just without the low-latency nudge on every write.
	var consumer worker.Consumer
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, periodic sync only", logpkg.FieldError, err)
	} else {
		defer amqpClient.Close()
		consumer = amqpClient
	}

	service := syncpkg.NewService(repo, remote, syncpkg.Config{
		BatchSize:     cfg.SyncBatchSize,
		RemoteTimeout: cfg.RemoteTimeout,
	})

	w := worker.NewSyncWorker(service, consumer, worker.Config{
		SyncInterval: cfg.SyncInterval,
	})
	if err := w.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", logpkg.FieldError, err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := w.Stop(stopCtx); err != nil {
		logger.Error("Sync worker did not stop cleanly", logpkg.FieldError, err)
	}

	logger.Info("fintrack-worker stopped")
}

// newRemoteStore selects the remote backend per configuration.
func newRemoteStore(ctx context.Context, cfg *config.Config) (syncpkg.RemoteStore, error) {
	switch cfg.RemoteBackend {
	case "sheets":
		client, err := sheets.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize sheets backend: %w", err)
		}
		return client, nil
	default:
		return memory.New(), nil
	}
}
