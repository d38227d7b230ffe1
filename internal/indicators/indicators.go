// Package indicators provides the technical indicator library: pure functions
// transforming candle or close-price sequences into same-length numeric
// series. Warm-up bars are NaN; values at index i depend only on bars <= i.
// Functions never panic for well-formed input; malformed input yields an
// empty or all-NaN series.
package indicators

import "math"

// nanSeries returns a series of the given length filled with NaN.
func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// Defined reports whether a series value is usable (not a warm-up bar).
func Defined(v float64) bool {
	return !math.IsNaN(v)
}
