// Package worker runs the background reconciliation loop: a full pass at
// startup to catch up after downtime, a pass whenever a dirty message
// arrives, and a periodic full pass as a backup for lost messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"fintrack/internal/amqp"
	syncpkg "fintrack/internal/sync"
)

// Consumer is the message source, usually the AMQP client. A nil consumer
// leaves only the periodic passes.
type Consumer interface {
	ConsumeRecordDirty(ctx context.Context, handler func(*amqp.RecordDirtyMessage) error) error
}

type Config struct {
	// SyncInterval is how often to run a full pass regardless of
	// notifications (default: 5m).
	SyncInterval time.Duration
}

func DefaultConfig() Config {
	return Config{SyncInterval: 5 * time.Minute}
}

// SyncWorker drives sync passes. Passes are serialized: a notification
// arriving during a pass waits for it to finish.
type SyncWorker struct {
	service  *syncpkg.Service
	consumer Consumer
	config   Config

	mu      gosync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	passMu gosync.Mutex
}

func NewSyncWorker(service *syncpkg.Service, consumer Consumer, config Config) *SyncWorker {
	if config.SyncInterval <= 0 {
		config.SyncInterval = DefaultConfig().SyncInterval
	}
	return &SyncWorker{
		service:  service,
		consumer: consumer,
		config:   config,
	}
}

// Start begins the worker loop. Returns an error if already running.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)
	if w.consumer != nil {
		go w.consumeLoop(ctx)
	}

	slog.InfoContext(ctx, "Sync worker started",
		"sync_interval", w.config.SyncInterval,
		"has_consumer", w.consumer != nil)

	return nil
}

// Stop gracefully stops the worker and waits for the loop to finish.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		slog.InfoContext(ctx, "Sync worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// IsRunning reports whether the worker loop is active.
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.SyncInterval)
	defer ticker.Stop()

	// Catch-up pass: drain whatever accumulated while the worker was down.
	w.fullPass(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.fullPass(ctx)
		}
	}
}

func (w *SyncWorker) consumeLoop(ctx context.Context) {
	err := w.consumer.ConsumeRecordDirty(ctx, func(msg *amqp.RecordDirtyMessage) error {
		return w.entityPass(ctx, msg.Entity)
	})
	if err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Dirty message consumption stopped", "error", err)
	}
}

// fullPass reconciles every entity type. Pushes are no-ops when nothing is
// dirty; pulls still run so remote edits land without a notification.
func (w *SyncWorker) fullPass(ctx context.Context) {
	w.passMu.Lock()
	defer w.passMu.Unlock()

	started := time.Now()
	results := w.service.SyncAll(ctx)
	if err := results.Err(); err != nil {
		slog.ErrorContext(ctx, "Reconciliation pass had failures",
			"error", err, "elapsed", time.Since(started))
		return
	}
	slog.InfoContext(ctx, "Reconciliation pass complete", "elapsed", time.Since(started))
}

func (w *SyncWorker) entityPass(ctx context.Context, entity syncpkg.EntityType) error {
	w.passMu.Lock()
	defer w.passMu.Unlock()
	return w.service.SyncEntity(ctx, entity)
}
