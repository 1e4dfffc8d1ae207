// Package store defines storage interfaces for cached daily bars and
// backtest run history, with Parquet and SQLite implementations.
package store

import (
	"context"
	"time"

	"backtester/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bar data, and remembers which
// date ranges have been fully fetched for a symbol.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end], oldest
	// first.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)

	// Covers reports whether [start, end] lies inside a range previously
	// recorded with MarkCovered.
	Covers(ctx context.Context, symbol string, start, end time.Time) (bool, error)

	// MarkCovered records that every bar of symbol within [start, end] has
	// been written.
	MarkCovered(ctx context.Context, symbol string, start, end time.Time) error
}

// RunStore persists and retrieves backtest run summaries.
type RunStore interface {
	// SaveRun inserts a run into storage.
	SaveRun(ctx context.Context, run *domain.Run) error

	// GetRun retrieves a single run by its ID. Missing runs return
	// domain.ErrNotFound.
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
}
