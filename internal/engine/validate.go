package engine

import (
	"fmt"
	"math"
	"strings"

	"backtester/internal/domain"
	"backtester/internal/strategy"
	"backtester/internal/util"
)

// Validator enforces request rules before any data is fetched.
type Validator struct {
	registry *strategy.Registry
}

// NewValidator creates a Validator that accepts the strategy types known to
// registry.
func NewValidator(registry *strategy.Registry) *Validator {
	return &Validator{registry: registry}
}

// Check returns an error wrapping domain.ErrInvalidRequest, or
// domain.ErrInvalidStrategy for an unknown strategy tag.
//
// Window rules apply to the moving-average strategy only; RSI requests carry
// windows that are ignored.
func (v *Validator) Check(req Request) error {
	if strings.TrimSpace(req.Symbol) == "" {
		return invalid("symbol is required")
	}
	if _, _, err := util.ParseRange(req.StartDate, req.EndDate); err != nil {
		return invalid(err.Error())
	}
	if !v.registry.Has(req.StrategyType) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStrategy, req.StrategyType)
	}
	if req.StrategyType == domain.StrategyMovingAverage {
		if req.ShortWindow <= 0 || req.LongWindow <= 0 {
			return invalid("short_window and long_window must be positive")
		}
		if req.ShortWindow >= req.LongWindow {
			return invalid("short_window must be less than long_window")
		}
	}
	if req.InitialCapital < 0 || math.IsNaN(req.InitialCapital) || math.IsInf(req.InitialCapital, 0) {
		return invalid("initial_capital must be a positive number")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, msg)
}
