package builtins

import (
	"backtester/internal/domain"
	"backtester/internal/indicator"
	"backtester/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*RSIThreshold)(nil)

// Default RSI parameters.
const (
	DefaultRSIPeriod = 14
	DefaultRSILower  = 30.0
	DefaultRSIUpper  = 70.0
)

// RSIThreshold goes long when RSI drops below the lower threshold.
//
// The signal carries no state between rows: it is 1 only on rows where RSI
// is below lower, and 0 everywhere else, including rows between the two
// thresholds and rows where RSI is undefined. The upper threshold therefore
// only matters when lower > upper.
type RSIThreshold struct {
	period int
	lower  float64
	upper  float64
}

// NewRSIThreshold creates an RSIThreshold strategy. Non-positive arguments
// fall back to the defaults (14, 30, 70).
func NewRSIThreshold(period int, lower, upper float64) *RSIThreshold {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if lower <= 0 {
		lower = DefaultRSILower
	}
	if upper <= 0 {
		upper = DefaultRSIUpper
	}
	return &RSIThreshold{
		period: period,
		lower:  lower,
		upper:  upper,
	}
}

// Name returns "rsi".
func (s *RSIThreshold) Name() string {
	return string(domain.StrategyRSI)
}

// Signals returns the per-row RSI threshold signal.
func (s *RSIThreshold) Signals(prices domain.PriceSeries) []int {
	rsi := indicator.RSI(prices.Closes(), s.period)

	signals := make([]int, len(rsi))
	for i, v := range rsi {
		if v < s.lower {
			signals[i] = 1
		}
		if v > s.upper {
			signals[i] = 0
		}
	}
	return signals
}
