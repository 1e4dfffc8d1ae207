package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"backtester/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// DefaultListLimit caps ListRuns when a non-positive limit is given.
const DefaultListLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                    TEXT PRIMARY KEY,
	symbol                TEXT    NOT NULL,
	start_date            TEXT    NOT NULL,
	end_date              TEXT    NOT NULL,
	strategy              TEXT    NOT NULL,
	short_window          INTEGER NOT NULL,
	long_window           INTEGER NOT NULL,
	initial_capital       REAL    NOT NULL,
	final_value           REAL    NOT NULL,
	total_return          REAL    NOT NULL,
	annualized_return     REAL    NOT NULL,
	annualized_volatility REAL    NOT NULL,
	sharpe_ratio          REAL    NOT NULL,
	max_drawdown          REAL    NOT NULL,
	trade_count           INTEGER NOT NULL,
	created_at            INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at DESC);
`

const runColumns = `id, symbol, start_date, end_date, strategy, short_window, long_window,
	initial_capital, final_value, total_return, annualized_return,
	annualized_volatility, sharpe_ratio, max_drawdown, trade_count, created_at`

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// runs table if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts a new run into the database.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.StartDate, run.EndDate, run.Strategy,
		run.ShortWindow, run.LongWindow, run.InitialCapital, run.FinalValue,
		run.TotalReturn, run.AnnualizedReturn, run.AnnualizedVolatility,
		run.SharpeRatio, run.MaxDrawdown, run.TradeCount, run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a single run by its ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*domain.Run, error) {
	var (
		run       domain.Run
		createdAt int64
	)
	err := sc.Scan(
		&run.ID, &run.Symbol, &run.StartDate, &run.EndDate, &run.Strategy,
		&run.ShortWindow, &run.LongWindow, &run.InitialCapital, &run.FinalValue,
		&run.TotalReturn, &run.AnnualizedReturn, &run.AnnualizedVolatility,
		&run.SharpeRatio, &run.MaxDrawdown, &run.TradeCount, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &run, nil
}
