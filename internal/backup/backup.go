// Package backup serializes the full store to a pair of JSON files in
// a fixed directory and restores them with merge-by-insert semantics.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bucks/internal/core"
	"bucks/internal/mirror"
	"bucks/internal/prefs"
	"bucks/internal/storage"
)

// Backup file names inside the backup directory.
const (
	FundFile     = "fund.txt"
	MovementFile = "movement.txt"
)

// Status of a finished backup operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// Outcome reports how an export or import ended. CompletedAt is set
// for successful runs only.
type Outcome struct {
	Status      Status `json:"status"`
	CompletedAt int64  `json:"completedAt,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Manager runs exports and imports against one backup directory.
// An optional mirror writer receives a copy of every exported
// snapshot; mirror failures are logged, never fatal.
type Manager struct {
	repo   *storage.Repository
	store  *prefs.Store
	dir    string
	delay  time.Duration
	mirror mirror.Writer
}

func NewManager(repo *storage.Repository, store *prefs.Store, dir string, delay time.Duration, mirror mirror.Writer) *Manager {
	return &Manager{repo: repo, store: store, dir: dir, delay: delay, mirror: mirror}
}

// Export writes fund.txt and movement.txt, overwriting any prior
// backup. An empty fund set produces an empty outcome and no files.
func (m *Manager) Export(ctx context.Context) (Outcome, error) {
	funds, err := m.repo.ListFunds(ctx)
	if err != nil {
		return m.fail(ctx, "read funds", err)
	}
	if len(funds) == 0 {
		m.pause(ctx)
		slog.InfoContext(ctx, "Backup skipped, nothing to export")
		return Outcome{Status: StatusEmpty, Message: "nothing to back up"}, nil
	}

	movements, err := m.repo.ListMovements(ctx)
	if err != nil {
		return m.fail(ctx, "read movements", err)
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return m.fail(ctx, "create backup directory", err)
	}
	if err := writeJSON(filepath.Join(m.dir, FundFile), funds); err != nil {
		return m.fail(ctx, "write fund backup", err)
	}
	if err := writeJSON(filepath.Join(m.dir, MovementFile), movements); err != nil {
		return m.fail(ctx, "write movement backup", err)
	}

	now := core.NowMillis()
	if err := m.store.SetBackupCreation(ctx, now); err != nil {
		return m.fail(ctx, "record backup timestamp", err)
	}

	if m.mirror != nil {
		// Display presets travel with the snapshot; a prefs read
		// failure falls back to the defaults, not a failed export.
		p, err := m.store.Load(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Reading preferences for mirror failed", "error", err)
		}
		snap := mirror.Snapshot{
			ExportedAt: now,
			Currency:   p.Currency,
			DateFormat: p.DateFormat,
			Funds:      funds,
			Movements:  movements,
		}
		if err := m.mirror.WriteSnapshot(ctx, snap); err != nil {
			slog.ErrorContext(ctx, "Backup mirror failed", "error", err)
		}
	}

	m.pause(ctx)
	slog.InfoContext(ctx, "Backup exported",
		"dir", m.dir, "funds", len(funds), "movements", len(movements))
	return Outcome{Status: StatusSuccess, CompletedAt: now}, nil
}

// Import restores the two backup files. Missing files yield an empty
// outcome; malformed content fails the whole import, nothing is
// partially applied from the unreadable file.
func (m *Manager) Import(ctx context.Context) (Outcome, error) {
	funds, fundsFound, err := readJSON[core.Fund](filepath.Join(m.dir, FundFile))
	if err != nil {
		return m.fail(ctx, "decode fund backup", err)
	}
	movements, movementsFound, err := readJSON[core.Movement](filepath.Join(m.dir, MovementFile))
	if err != nil {
		return m.fail(ctx, "decode movement backup", err)
	}
	if !fundsFound || !movementsFound {
		m.pause(ctx)
		slog.InfoContext(ctx, "Restore skipped, no backup found", "dir", m.dir)
		return Outcome{Status: StatusEmpty, Message: "nothing to restore"}, nil
	}

	// Inserts replace on colliding identifiers and add otherwise, so a
	// restore merges into existing data instead of wiping it.
	for _, f := range funds {
		if err := m.repo.InsertFund(ctx, f); err != nil {
			return m.fail(ctx, "restore fund", err)
		}
	}
	for _, mv := range movements {
		if err := m.repo.InsertMovement(ctx, mv); err != nil {
			return m.fail(ctx, "restore movement", err)
		}
	}

	now := core.NowMillis()
	if err := m.store.SetBackupRecover(ctx, now); err != nil {
		return m.fail(ctx, "record restore timestamp", err)
	}

	m.pause(ctx)
	slog.InfoContext(ctx, "Backup imported",
		"dir", m.dir, "funds", len(funds), "movements", len(movements))
	return Outcome{Status: StatusSuccess, CompletedAt: now}, nil
}

// LastRun reports the most recent export and import timestamps.
func (m *Manager) LastRun(ctx context.Context) (exported, restored int64, err error) {
	p, err := m.store.Load(ctx)
	if err != nil {
		return 0, 0, err
	}
	return p.BackupCreation, p.BackupRecover, nil
}

func (m *Manager) fail(ctx context.Context, op string, err error) (Outcome, error) {
	m.pause(ctx)
	wrapped := fmt.Errorf("%s: %w", op, err)
	slog.ErrorContext(ctx, "Backup operation failed", "op", op, "error", err)
	return Outcome{Status: StatusError, Message: wrapped.Error()}, wrapped
}

// pause applies the configured settle delay before the outcome is
// reported, unless the context ends first.
func (m *Manager) pause(ctx context.Context) {
	if m.delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(m.delay):
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readJSON[T any](path string) ([]T, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, true, nil
}
