package strategy

import (
	"backtester/internal/domain"
)

// DefaultInitialCapital is the starting equity used when none is given.
const DefaultInitialCapital = 100000.0

// Backtest replays prices through strat and computes the equity curve, trade
// log, drawdown and performance metrics.
//
// Today's position is yesterday's signal, so a signal observed at a close is
// first exposed to the following period's return. The function is pure: it
// performs no I/O and does not retain or modify its inputs. initialCapital
// should be positive; otherwise the equity curve is degenerate and every
// metric is zero.
func Backtest(prices domain.PriceSeries, strat Strategy, initialCapital float64) *domain.BacktestResult {
	n := len(prices)
	signals := strat.Signals(prices)
	positions := Positions(signals)

	equity := make([]float64, n)
	growth := 1.0
	for i := 0; i < n; i++ {
		var ret float64
		if i > 0 {
			ret = prices[i].Close/prices[i-1].Close - 1
		}
		growth *= 1 + float64(positions[i])*ret
		equity[i] = growth * initialCapital
	}

	m := ComputeMetrics(equity, initialCapital, TradingDaysPerYear)

	finalValue := initialCapital
	if n > 0 {
		finalValue = equity[n-1]
	}

	return &domain.BacktestResult{
		FinalValue:           finalValue,
		TotalReturn:          m.TotalReturn,
		AnnualizedReturn:     m.AnnualizedReturn,
		AnnualizedVolatility: m.AnnualizedVolatility,
		SharpeRatio:          m.SharpeRatio,
		MaxDrawdown:          MaxDrawdown(equity),
		Trades:               ExtractTrades(prices, positions),
		EquityCurve:          equity,
		Dates:                prices.Dates(),
	}
}

// BacktestType resolves t in the registry and runs Backtest. An unknown
// type propagates domain.ErrInvalidStrategy.
func BacktestType(r *Registry, t domain.StrategyType, p Params, prices domain.PriceSeries, initialCapital float64) (*domain.BacktestResult, error) {
	strat, err := r.New(t, p)
	if err != nil {
		return nil, err
	}
	return Backtest(prices, strat, initialCapital), nil
}

// Positions lags signals by one period: position[0] is 0 and position[i] is
// signal[i-1].
func Positions(signals []int) []int {
	positions := make([]int, len(signals))
	for i := 1; i < len(signals); i++ {
		positions[i] = signals[i-1]
	}
	return positions
}

// MaxDrawdown returns the most negative decline of equity from its running
// peak, or 0 if equity never fell below a prior peak.
func MaxDrawdown(equity []float64) float64 {
	var peak, worst float64
	for i, v := range equity {
		if i == 0 || v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := v/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// ExtractTrades emits a trade at every change of position, comparing the
// first period against an implicit prior position of 0.
func ExtractTrades(prices domain.PriceSeries, positions []int) []domain.Trade {
	trades := []domain.Trade{}
	prev := 0
	for i, pos := range positions {
		if pos != prev {
			side := domain.SideSell
			if pos == 1 {
				side = domain.SideBuy
			}
			trades = append(trades, domain.Trade{
				Date:  prices[i].Date,
				Price: prices[i].Close,
				Side:  side,
			})
		}
		prev = pos
	}
	return trades
}
