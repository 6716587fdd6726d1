// Package worker keeps the on-disk backup in step with the store by
// listening for change messages and exporting on a debounce.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bucks/internal/amqp"
	"bucks/internal/backup"
)

// Exporter produces a backup snapshot. *backup.Manager satisfies it.
type Exporter interface {
	Export(ctx context.Context) (backup.Outcome, error)
}

// ChangeConsumer delivers change messages until the context ends.
// *amqp.Client satisfies it.
type ChangeConsumer interface {
	ConsumeChanges(ctx context.Context, handler func(*amqp.ChangeMessage) error) error
}

// Config holds settings for the backup worker.
type Config struct {
	// Debounce is how long to wait after the last change before
	// exporting, so a burst of writes yields one backup (default: 10s)
	Debounce time.Duration

	// Interval is the period of the safety export that runs even when
	// no change messages arrive (default: 6h)
	Interval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Debounce: 10 * time.Second,
		Interval: 6 * time.Hour,
	}
}

// BackupWorker exports backups in response to change traffic.
type BackupWorker struct {
	exporter Exporter
	consumer ChangeConsumer
	config   Config

	// A pending kick means at least one change arrived since the last
	// export; the channel conflates bursts.
	kicks chan struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewBackupWorker creates a worker. The consumer may be nil, in which
// case only the periodic safety export runs.
func NewBackupWorker(exporter Exporter, consumer ChangeConsumer, config Config) *BackupWorker {
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &BackupWorker{
		exporter: exporter,
		consumer: consumer,
		config:   config,
		kicks:    make(chan struct{}, 1),
	}
}

// Start begins the export loop. Returns an error if already running.
func (w *BackupWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("backup worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	if w.consumer != nil {
		go func() {
			if err := w.consumer.ConsumeChanges(ctx, w.HandleChange); err != nil && err != context.Canceled {
				slog.ErrorContext(ctx, "Change consumption stopped", "error", err)
			}
		}()
	}

	slog.InfoContext(ctx, "Backup worker started",
		"debounce", w.config.Debounce,
		"interval", w.config.Interval,
		"consuming", w.consumer != nil)

	return nil
}

// Stop gracefully stops the worker and waits for completion.
func (w *BackupWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		slog.InfoContext(ctx, "Backup worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Backup worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// IsRunning returns whether the worker is currently running
func (w *BackupWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// HandleChange records that the store changed and schedules an export.
// The message content does not matter: any change means the files on
// disk are stale.
func (w *BackupWorker) HandleChange(msg *amqp.ChangeMessage) error {
	slog.Debug("Change received",
		"entity", msg.Entity, "action", msg.Action, "id", msg.ID)
	select {
	case w.kicks <- struct{}{}:
	default:
	}
	return nil
}

// Kick schedules an export without a change message, used by the
// startup check.
func (w *BackupWorker) Kick() {
	select {
	case w.kicks <- struct{}{}:
	default:
	}
}

// runLoop is the main export loop
func (w *BackupWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	safetyTicker := time.NewTicker(w.config.Interval)
	defer safetyTicker.Stop()

	// The debounce timer is armed on the first kick and reset on each
	// further one; it fires once the traffic quiets down.
	debounce := time.NewTimer(w.config.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()
	armed := false

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-w.kicks:
			if armed && !debounce.Stop() {
				<-debounce.C
			}
			debounce.Reset(w.config.Debounce)
			armed = true
		case <-debounce.C:
			armed = false
			w.export(ctx, "change")
		case <-safetyTicker.C:
			w.export(ctx, "periodic")
		}
	}
}

func (w *BackupWorker) export(ctx context.Context, reason string) {
	outcome, err := w.exporter.Export(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Backup export failed",
			"reason", reason, "error", err)
		return
	}
	slog.InfoContext(ctx, "Backup export finished",
		"reason", reason, "status", outcome.Status)
}
