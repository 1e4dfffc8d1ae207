package builtins

import (
	"backtester/internal/domain"
	"backtester/internal/strategy"
)

// Register installs the built-in strategies into r.
func Register(r *strategy.Registry) {
	r.Register(domain.StrategyMovingAverage, func(p strategy.Params) strategy.Strategy {
		return NewSMACross(p.ShortWindow, p.LongWindow)
	})
	r.Register(domain.StrategyRSI, func(p strategy.Params) strategy.Strategy {
		return NewRSIThreshold(p.RSIPeriod, p.RSILower, p.RSIUpper)
	})
}

// NewRegistry returns a registry with every built-in strategy registered.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}
