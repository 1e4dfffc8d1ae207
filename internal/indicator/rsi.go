package indicator

import "math"

// RSI returns the Relative Strength Index of closes using simple rolling
// means of gains and losses over period deltas.
//
// The delta at index 0 is undefined, so the first defined value is at index
// period. A window whose average loss is zero has no defined RSI and yields
// NaN, including a perfectly flat window.
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	if n == 0 {
		return nil
	}
	gains := make([]float64, n)
	losses := make([]float64, n)
	gains[0], losses[0] = math.NaN(), math.NaN()
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGain := SMA(gains, period)
	avgLoss := SMA(losses, period)

	out := make([]float64, n)
	for i := range out {
		out[i] = rsiValue(avgGain[i], avgLoss[i])
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if math.IsNaN(avgGain) || math.IsNaN(avgLoss) || avgLoss == 0 {
		return math.NaN()
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
