// Package strategy defines the Strategy interface for signal generation,
// a Registry for constructing strategies by type, and the backtest engine
// that turns signals into an equity curve and performance metrics.
package strategy

import (
	"fmt"
	"sort"

	"backtester/internal/domain"
)

// Strategy is the interface that all signal generators must implement.
type Strategy interface {
	// Name returns the strategy type tag this strategy was built for.
	Name() string

	// Signals returns one desired exposure per price point: 1 for long, 0
	// for flat. The result has the same length as prices.
	Signals(prices domain.PriceSeries) []int
}

// Params carries the tunable inputs of every built-in strategy. Each
// strategy reads only the fields it needs.
type Params struct {
	ShortWindow int
	LongWindow  int

	RSIPeriod int
	RSILower  float64
	RSIUpper  float64
}

// Factory builds a Strategy from parameters.
type Factory func(p Params) Strategy

// Registry holds strategy factories keyed by strategy type.
type Registry struct {
	factories map[domain.StrategyType]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[domain.StrategyType]Factory),
	}
}

// Register adds a factory under the given strategy type, replacing any
// existing one.
func (r *Registry) Register(t domain.StrategyType, f Factory) {
	r.factories[t] = f
}

// Has reports whether a factory is registered for t.
func (r *Registry) Has(t domain.StrategyType) bool {
	_, ok := r.factories[t]
	return ok
}

// New builds the strategy registered under t. Unknown types fail with
// domain.ErrInvalidStrategy.
func (r *Registry) New(t domain.StrategyType, p Params) (Strategy, error) {
	f, ok := r.factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStrategy, string(t))
	}
	return f(p), nil
}

// List returns a sorted slice of all registered strategy types.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for t := range r.factories {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}
