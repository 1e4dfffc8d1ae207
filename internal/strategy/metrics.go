package strategy

import "math"

// TradingDaysPerYear is the default annualisation factor for daily data.
const TradingDaysPerYear = 252

// Metrics holds the return and risk figures derived from an equity curve.
type Metrics struct {
	TotalReturn          float64
	AnnualizedReturn     float64
	AnnualizedVolatility float64
	SharpeRatio          float64
}

// ComputeMetrics reduces an equity curve to return and risk metrics.
//
// Fewer than two points, or a non-positive initial capital, yields all-zero
// metrics. When the period returns
// have zero population standard deviation, the annualised figures and the
// Sharpe ratio are all zero rather than derived from the compounding
// formula.
func ComputeMetrics(equity []float64, initialCapital float64, periodsPerYear int) Metrics {
	if len(equity) < 2 || initialCapital <= 0 {
		return Metrics{}
	}

	returns := make([]float64, len(equity)-1)
	for i := range returns {
		returns[i] = equity[i+1]/equity[i] - 1
	}

	m := Metrics{
		TotalReturn: equity[len(equity)-1]/initialCapital - 1,
	}

	avg, vol := meanStd(returns)
	if vol > 0 {
		ppy := float64(periodsPerYear)
		m.AnnualizedReturn = math.Pow(1+avg, ppy) - 1
		m.AnnualizedVolatility = vol * math.Sqrt(ppy)
		if m.AnnualizedVolatility > 0 {
			m.SharpeRatio = m.AnnualizedReturn / m.AnnualizedVolatility
		}
	}
	return m
}

// meanStd returns the arithmetic mean and population standard deviation.
func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}
