// Package builtins provides the strategy implementations that ship with the
// backtester.
package builtins

import (
	"backtester/internal/domain"
	"backtester/internal/indicator"
	"backtester/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It wants
// to be long whenever the short-period SMA is above the long-period SMA.
//
// The caller is responsible for ensuring short < long.
type SMACross struct {
	shortPeriod int
	longPeriod  int
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods.
func NewSMACross(short, long int) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
	}
}

// Name returns "ma".
func (s *SMACross) Name() string {
	return string(domain.StrategyMovingAverage)
}

// Signals returns 1 where the short SMA exceeds the long SMA and 0
// elsewhere, including rows where either average is still undefined.
func (s *SMACross) Signals(prices domain.PriceSeries) []int {
	closes := prices.Closes()
	short := indicator.SMA(closes, s.shortPeriod)
	long := indicator.SMA(closes, s.longPeriod)

	signals := make([]int, len(closes))
	for i := range signals {
		// NaN compares false, so undefined rows stay flat.
		if short[i] > long[i] {
			signals[i] = 1
		}
	}
	return signals
}
