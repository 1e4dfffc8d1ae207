// Package domain defines the core value types shared across the backtester:
// price series, bars, trades, results, and persisted run summaries.
package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the calendar-date format used throughout the system.
const DateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Prices
// ---------------------------------------------------------------------------

// PricePoint is a single daily close.
type PricePoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// PriceSeries is an ordered sequence of daily closes, oldest first.
type PriceSeries []PricePoint

// Closes returns the close prices as a fresh slice.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Close
	}
	return out
}

// Dates returns the dates as a fresh slice.
func (s PriceSeries) Dates() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Date
	}
	return out
}

// Validate reports whether the series has parseable, strictly increasing
// dates and positive finite closes. An empty series is valid.
func (s PriceSeries) Validate() error {
	var prev time.Time
	for i, p := range s {
		d, err := time.Parse(DateLayout, p.Date)
		if err != nil {
			return fmt.Errorf("row %d: parsing date %q: %w", i, p.Date, err)
		}
		if i > 0 && !d.After(prev) {
			return fmt.Errorf("row %d: date %s not after %s", i, p.Date, prev.Format(DateLayout))
		}
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return fmt.Errorf("row %d: invalid close %v", i, p.Close)
		}
		prev = d
	}
	return nil
}

// Bar is a daily OHLCV bar as delivered by the market-data provider.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// BarsToSeries converts bars into a PriceSeries keyed by UTC calendar date.
// Bars are sorted by timestamp and later duplicates of a date win.
func BarsToSeries(bars []Bar) PriceSeries {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	series := make(PriceSeries, 0, len(sorted))
	for _, b := range sorted {
		date := b.Timestamp.UTC().Format(DateLayout)
		if n := len(series); n > 0 && series[n-1].Date == date {
			series[n-1].Close = b.Close
			continue
		}
		series = append(series, PricePoint{Date: date, Close: b.Close})
	}
	return series
}

// ---------------------------------------------------------------------------
// Strategies and trades
// ---------------------------------------------------------------------------

// StrategyType tags a signal-generation rule.
type StrategyType string

const (
	StrategyMovingAverage StrategyType = "ma"
	StrategyRSI           StrategyType = "rsi"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade records a position change at a given day's close.
type Trade struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
	Side  Side    `json:"side"`
}

// BacktestResult is the outcome of one backtest. It is a plain value; callers
// own its slices.
type BacktestResult struct {
	FinalValue           float64   `json:"final_value"`
	TotalReturn          float64   `json:"total_return"`
	AnnualizedReturn     float64   `json:"annualized_return"`
	AnnualizedVolatility float64   `json:"annualized_volatility"`
	SharpeRatio          float64   `json:"sharpe_ratio"`
	MaxDrawdown          float64   `json:"max_drawdown"`
	Trades               []Trade   `json:"trades"`
	EquityCurve          []float64 `json:"equity_curve"`
	Dates                []string  `json:"dates"`
}

// ---------------------------------------------------------------------------
// Run history
// ---------------------------------------------------------------------------

// Run is the persisted summary of a completed backtest request.
type Run struct {
	ID                   string       `json:"id"`
	Symbol               string       `json:"symbol"`
	StartDate            string       `json:"start_date"`
	EndDate              string       `json:"end_date"`
	Strategy             StrategyType `json:"strategy_type"`
	ShortWindow          int          `json:"short_window"`
	LongWindow           int          `json:"long_window"`
	InitialCapital       float64      `json:"initial_capital"`
	FinalValue           float64      `json:"final_value"`
	TotalReturn          float64      `json:"total_return"`
	AnnualizedReturn     float64      `json:"annualized_return"`
	AnnualizedVolatility float64      `json:"annualized_volatility"`
	SharpeRatio          float64      `json:"sharpe_ratio"`
	MaxDrawdown          float64      `json:"max_drawdown"`
	TradeCount           int          `json:"trade_count"`
	CreatedAt            time.Time    `json:"created_at"`
}
