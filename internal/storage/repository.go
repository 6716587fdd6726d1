package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"bucks/internal/core"
	"bucks/internal/watch"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by the hard single-record reads. Callers of
// those reads must guarantee existence first (e.g. by holding an id
// obtained from a live list), so hitting this is a precondition
// violation, not a recoverable state.
var ErrNotFound = errors.New("record not found")

// Repository is the single source of truth for funds, movements and
// preferences. Every committed write notifies the hub so live query
// streams re-derive their values; writes are serialized by SQLite.
type Repository struct {
	db  *sql.DB
	hub *watch.Hub
}

// NewRepository opens (or creates) the database at dbPath, runs
// migrations, and wires change notifications into hub. hub may be nil
// for one-shot tooling.
func NewRepository(dbPath string, hub *watch.Hub) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, hub: hub}, nil
}

// Ping verifies the database connection, for readiness checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Hub exposes the change hub for subscribers.
func (r *Repository) Hub() *watch.Hub {
	return r.hub
}

func (r *Repository) notify() {
	if r.hub != nil {
		r.hub.Notify()
	}
}

const fundColumns = "fund_id, title, type, category, cash, serial_number, network, iban, bank, brand, creation_date"

func scanFund(row interface{ Scan(...any) error }) (core.Fund, error) {
	var f core.Fund
	err := row.Scan(&f.ID, &f.Title, &f.Type, &f.Category, &f.Cash,
		&f.SerialNumber, &f.Network, &f.IBAN, &f.Bank, &f.Brand, &f.CreatedAt)
	return f, err
}

// InsertFund upserts: an insert with an existing identifier replaces
// the stored record in place. ON CONFLICT DO UPDATE rather than INSERT
// OR REPLACE: REPLACE deletes the conflicting row first, which would
// trip the movements table's ON DELETE SET NULL and detach the fund's
// history on every upsert.
func (r *Repository) InsertFund(ctx context.Context, f core.Fund) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO funds (`+fundColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fund_id) DO UPDATE SET
		        title = excluded.title, type = excluded.type,
		        category = excluded.category, cash = excluded.cash,
		        serial_number = excluded.serial_number,
		        network = excluded.network, iban = excluded.iban,
		        bank = excluded.bank, brand = excluded.brand,
		        creation_date = excluded.creation_date`,
		f.ID, f.Title, f.Type, f.Category, f.Cash,
		f.SerialNumber, f.Network, f.IBAN, f.Bank, f.Brand, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert fund: %w", err)
	}
	r.notify()
	return nil
}

// UpdateFund replaces the full record by identifier. Updating a missing
// identifier affects zero rows and is not an error.
func (r *Repository) UpdateFund(ctx context.Context, f core.Fund) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE funds SET title = ?, type = ?, category = ?, cash = ?,
		        serial_number = ?, network = ?, iban = ?, bank = ?,
		        brand = ?, creation_date = ?
		 WHERE fund_id = ?`,
		f.Title, f.Type, f.Category, f.Cash, f.SerialNumber,
		f.Network, f.IBAN, f.Bank, f.Brand, f.CreatedAt, f.ID)
	if err != nil {
		return fmt.Errorf("update fund: %w", err)
	}
	r.notify()
	return nil
}

// DeleteFund removes the fund row; foreign keys clear dangling movement
// references so movement history survives.
func (r *Repository) DeleteFund(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM funds WHERE fund_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete fund: %w", err)
	}
	r.notify()
	return nil
}

// GetFund is the hard single read: absent rows are a caller error.
func (r *Repository) GetFund(ctx context.Context, id int64) (core.Fund, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+fundColumns+` FROM funds WHERE fund_id = ?`, id)
	f, err := scanFund(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Fund{}, fmt.Errorf("get fund %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Fund{}, fmt.Errorf("get fund %d: %w", id, err)
	}
	return f, nil
}

// FindFund is the nullable single read: (nil, nil) when absent.
func (r *Repository) FindFund(ctx context.Context, id int64) (*core.Fund, error) {
	f, err := r.GetFund(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFunds returns all funds ordered by creation time descending.
func (r *Repository) ListFunds(ctx context.Context) ([]core.Fund, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+fundColumns+` FROM funds ORDER BY creation_date DESC, fund_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list funds: %w", err)
	}
	defer rows.Close()

	var funds []core.Fund
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fund: %w", err)
		}
		funds = append(funds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list funds: %w", err)
	}
	return funds, nil
}

const movementColumns = "movement_id, fund_in_id, fund_out_id, title, description, amount, date"

func scanMovement(row interface{ Scan(...any) error }) (core.Movement, error) {
	var m core.Movement
	var in, out sql.NullInt64
	err := row.Scan(&m.ID, &in, &out, &m.Title, &m.Description, &m.Amount, &m.Date)
	if err != nil {
		return core.Movement{}, err
	}
	if in.Valid {
		m.FundInID = &in.Int64
	}
	if out.Valid {
		m.FundOutID = &out.Int64
	}
	return m, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMovementTx(ctx context.Context, ex execer, m core.Movement) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO movements (`+movementColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(movement_id) DO UPDATE SET
		        fund_in_id = excluded.fund_in_id,
		        fund_out_id = excluded.fund_out_id,
		        title = excluded.title, description = excluded.description,
		        amount = excluded.amount, date = excluded.date`,
		m.ID, nullableID(m.FundInID), nullableID(m.FundOutID),
		m.Title, m.Description, m.Amount, m.Date)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (r *Repository) InsertMovement(ctx context.Context, m core.Movement) error {
	if err := insertMovementTx(ctx, r.db, m); err != nil {
		return err
	}
	r.notify()
	return nil
}

func (r *Repository) UpdateMovement(ctx context.Context, m core.Movement) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE movements SET fund_in_id = ?, fund_out_id = ?, title = ?,
		        description = ?, amount = ?, date = ?
		 WHERE movement_id = ?`,
		nullableID(m.FundInID), nullableID(m.FundOutID), m.Title,
		m.Description, m.Amount, m.Date, m.ID)
	if err != nil {
		return fmt.Errorf("update movement: %w", err)
	}
	r.notify()
	return nil
}

func (r *Repository) DeleteMovement(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM movements WHERE movement_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}
	r.notify()
	return nil
}

func (r *Repository) GetMovement(ctx context.Context, id int64) (core.Movement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE movement_id = ?`, id)
	m, err := scanMovement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Movement{}, fmt.Errorf("get movement %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Movement{}, fmt.Errorf("get movement %d: %w", id, err)
	}
	return m, nil
}

func (r *Repository) FindMovement(ctx context.Context, id int64) (*core.Movement, error) {
	m, err := r.GetMovement(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMovements returns all movements; no ordering guarantee.
func (r *Repository) ListMovements(ctx context.Context) ([]core.Movement, error) {
	return r.queryMovements(ctx, `SELECT `+movementColumns+` FROM movements`)
}

func (r *Repository) queryMovements(ctx context.Context, query string, args ...any) ([]core.Movement, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var movements []core.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	return movements, nil
}

// FundWithMovements joins a fund with its inbound and outbound movement
// partitions; (nil, nil) when the fund is absent.
func (r *Repository) FundWithMovements(ctx context.Context, id int64) (*core.FundWithMovements, error) {
	fund, err := r.FindFund(ctx, id)
	if err != nil || fund == nil {
		return nil, err
	}

	in, err := r.queryMovements(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE fund_in_id = ?`, id)
	if err != nil {
		return nil, err
	}
	out, err := r.queryMovements(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE fund_out_id = ?`, id)
	if err != nil {
		return nil, err
	}

	return &core.FundWithMovements{Fund: *fund, MovementsIn: in, MovementsOut: out}, nil
}

// ListFundsWithMovements performs the join across all funds, ordered by
// fund creation time descending.
func (r *Repository) ListFundsWithMovements(ctx context.Context) ([]core.FundWithMovements, error) {
	funds, err := r.ListFunds(ctx)
	if err != nil {
		return nil, err
	}

	// One movement pass partitioned in memory instead of 2N queries.
	movements, err := r.ListMovements(ctx)
	if err != nil {
		return nil, err
	}
	byIn := make(map[int64][]core.Movement)
	byOut := make(map[int64][]core.Movement)
	for _, m := range movements {
		if m.FundInID != nil {
			byIn[*m.FundInID] = append(byIn[*m.FundInID], m)
		}
		if m.FundOutID != nil {
			byOut[*m.FundOutID] = append(byOut[*m.FundOutID], m)
		}
	}

	result := make([]core.FundWithMovements, len(funds))
	for i, f := range funds {
		result[i] = core.FundWithMovements{
			Fund:         f,
			MovementsIn:  byIn[f.ID],
			MovementsOut: byOut[f.ID],
		}
	}
	return result, nil
}

// ApplyMovement persists a new movement together with the adjusted fund
// snapshots in one transaction, so balances and records cannot drift on
// partial failure.
func (r *Repository) ApplyMovement(ctx context.Context, m core.Movement, funds ...core.Fund) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertMovementTx(ctx, tx, m); err != nil {
			return err
		}
		return updateFundsTx(ctx, tx, funds)
	})
	if err != nil {
		return fmt.Errorf("apply movement %d: %w", m.ID, err)
	}
	slog.InfoContext(ctx, "Movement applied",
		"movement_id", m.ID, "amount", m.Amount, "funds_updated", len(funds))
	r.notify()
	return nil
}

// RevertMovement removes a movement and restores the given fund
// snapshots in one transaction.
func (r *Repository) RevertMovement(ctx context.Context, movementID int64, funds ...core.Fund) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateFundsTx(ctx, tx, funds); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM movements WHERE movement_id = ?`, movementID); err != nil {
			return fmt.Errorf("delete movement: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("revert movement %d: %w", movementID, err)
	}
	slog.InfoContext(ctx, "Movement reverted",
		"movement_id", movementID, "funds_updated", len(funds))
	r.notify()
	return nil
}

func updateFundsTx(ctx context.Context, tx *sql.Tx, funds []core.Fund) error {
	for _, f := range funds {
		_, err := tx.ExecContext(ctx,
			`UPDATE funds SET title = ?, type = ?, category = ?, cash = ?,
			        serial_number = ?, network = ?, iban = ?, bank = ?,
			        brand = ?, creation_date = ?
			 WHERE fund_id = ?`,
			f.Title, f.Type, f.Category, f.Cash, f.SerialNumber,
			f.Network, f.IBAN, f.Bank, f.Brand, f.CreatedAt, f.ID)
		if err != nil {
			return fmt.Errorf("update fund %d: %w", f.ID, err)
		}
	}
	return nil
}

func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetPreference reads a preference value; ok is false when unset.
func (r *Repository) GetPreference(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %q: %w", key, err)
	}
	return value, true, nil
}

// SetPreference upserts a preference value.
func (r *Repository) SetPreference(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO preferences (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("set preference %q: %w", key, err)
	}
	r.notify()
	return nil
}
