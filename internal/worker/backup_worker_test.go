package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"bucks/internal/amqp"
	"bucks/internal/backup"
)

type countingExporter struct {
	mu    sync.Mutex
	calls int
}

func (e *countingExporter) Export(context.Context) (backup.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return backup.Outcome{Status: backup.StatusSuccess}, nil
}

func (e *countingExporter) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func waitForCalls(t *testing.T, e *countingExporter, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.Calls() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("exporter calls = %d, want at least %d", e.Calls(), want)
}

func TestBackupWorker_DebouncesBursts(t *testing.T) {
	exporter := &countingExporter{}
	w := NewBackupWorker(exporter, nil, Config{
		Debounce: 50 * time.Millisecond,
		Interval: time.Hour,
	})

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop(ctx)

	for i := 0; i < 5; i++ {
		msg := amqp.NewChangeMessage(amqp.EntityFund, amqp.ActionInsert, int64(i))
		if err := w.HandleChange(msg); err != nil {
			t.Fatalf("HandleChange() error = %v", err)
		}
	}

	waitForCalls(t, exporter, 1)

	// The burst collapses into a single export.
	time.Sleep(150 * time.Millisecond)
	if got := exporter.Calls(); got != 1 {
		t.Errorf("exporter calls = %d, want 1", got)
	}
}

func TestBackupWorker_KickSchedulesExport(t *testing.T) {
	exporter := &countingExporter{}
	w := NewBackupWorker(exporter, nil, Config{
		Debounce: 20 * time.Millisecond,
		Interval: time.Hour,
	})

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop(ctx)

	w.Kick()
	waitForCalls(t, exporter, 1)
}

func TestBackupWorker_PeriodicExport(t *testing.T) {
	exporter := &countingExporter{}
	w := NewBackupWorker(exporter, nil, Config{
		Debounce: time.Hour,
		Interval: 30 * time.Millisecond,
	})

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop(ctx)

	waitForCalls(t, exporter, 2)
}

func TestBackupWorker_Lifecycle(t *testing.T) {
	exporter := &countingExporter{}
	w := NewBackupWorker(exporter, nil, DefaultConfig())

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !w.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if err := w.Start(ctx); err == nil {
		t.Error("second Start() succeeded, want error")
	}

	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if w.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	if err := w.Stop(ctx); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
