// Package marketdata supplies daily close series to the backtester. Sources
// can be chained: an Alpaca-backed source behind a Parquet cache, or a
// static in-memory source for tests and offline use.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"backtester/internal/domain"
	"backtester/internal/util"
)

// Query selects daily closes for one symbol over an inclusive date range.
type Query struct {
	Symbol string
	Start  string // YYYY-MM-DD
	End    string // YYYY-MM-DD
}

// Normalize returns q with the symbol trimmed and upper-cased.
func (q Query) Normalize() Query {
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	return q
}

// Range parses the query dates.
func (q Query) Range() (time.Time, time.Time, error) {
	return util.ParseRange(q.Start, q.End)
}

// Source returns daily closes. Implementations return
// domain.ErrDataUnavailable when the range holds no observations.
type Source interface {
	DailyCloses(ctx context.Context, q Query) (domain.PriceSeries, error)
}

// BarSource returns raw daily bars for a symbol over [start, end].
type BarSource interface {
	DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// seriesFromBars converts bars to a validated, non-empty series.
func seriesFromBars(symbol string, bars []domain.Bar) (domain.PriceSeries, error) {
	series := domain.BarsToSeries(bars)
	return checkSeries(symbol, series)
}

func checkSeries(symbol string, series domain.PriceSeries) (domain.PriceSeries, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrDataUnavailable)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%s: malformed series: %w", symbol, err)
	}
	return series, nil
}

// ---------------------------------------------------------------------------
// StaticSource
// ---------------------------------------------------------------------------

// Compile-time interface check.
var _ Source = (*StaticSource)(nil)

// StaticSource serves series held in memory. It is safe for concurrent use.
type StaticSource struct {
	mu     sync.RWMutex
	series map[string]domain.PriceSeries
}

// NewStaticSource creates an empty StaticSource.
func NewStaticSource() *StaticSource {
	return &StaticSource{series: make(map[string]domain.PriceSeries)}
}

// Set stores the full series for symbol, replacing any previous one.
func (s *StaticSource) Set(symbol string, series domain.PriceSeries) {
	cp := make(domain.PriceSeries, len(series))
	copy(cp, series)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[strings.ToUpper(symbol)] = cp
}

// DailyCloses returns the stored points whose dates fall inside the query.
func (s *StaticSource) DailyCloses(ctx context.Context, q Query) (domain.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.Normalize()
	if _, _, err := q.Range(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := s.series[q.Symbol]
	s.mu.RUnlock()

	// YYYY-MM-DD strings order the same as the dates they name.
	var out domain.PriceSeries
	for _, p := range all {
		if p.Date >= q.Start && p.Date <= q.End {
			out = append(out, p)
		}
	}
	return checkSeries(q.Symbol, out)
}
