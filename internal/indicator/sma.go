// Package indicator computes trailing-window technical indicators over close
// prices. Values are math.NaN() wherever the window is not yet filled or the
// indicator is otherwise undefined.
package indicator

import "math"

// SMA returns the simple moving average of values over a trailing window.
// Entries before the window fills are NaN, as is every entry of a window
// containing a NaN. A non-positive window yields an all-NaN result.
//
// A window of identical values averages to exactly that value, so two
// averages over a flat stretch always compare equal.
func SMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var (
		sum   float64 // non-NaN values in the window
		nans  int     // NaN values in the window
		equal int     // length of the trailing run of identical values
	)
	for i, v := range values {
		if math.IsNaN(v) {
			nans++
		} else {
			sum += v
		}
		if i > 0 && v == values[i-1] {
			equal++
		} else {
			equal = 1
		}
		if window > 0 && i >= window {
			if old := values[i-window]; math.IsNaN(old) {
				nans--
			} else {
				sum -= old
			}
		}

		switch {
		case window <= 0 || i+1 < window || nans > 0:
			out[i] = math.NaN()
		case equal >= window:
			out[i] = v
		default:
			out[i] = sum / float64(window)
		}
	}
	return out
}
