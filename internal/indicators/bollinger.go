package indicators

import "math"

// BollingerResult holds the Bollinger Bands series and derived measures.
type BollingerResult struct {
	Upper     []float64
	Middle    []float64
	Lower     []float64
	PercentB  []float64 // (close - lower) / (upper - lower)
	Bandwidth []float64 // (upper - lower) / middle * 100
	Squeeze   []bool    // bandwidth < 10
}

// CalculateBollingerBands calculates Bollinger Bands with an SMA middle band
// and bands at +/- stdDevMultiplier population standard deviations over the
// trailing window.
func CalculateBollingerBands(prices []float64, period int, stdDevMultiplier float64) *BollingerResult {
	n := len(prices)
	result := &BollingerResult{
		Upper:     nanSeries(n),
		Middle:    CalculateSMA(prices, period),
		Lower:     nanSeries(n),
		PercentB:  nanSeries(n),
		Bandwidth: nanSeries(n),
		Squeeze:   make([]bool, n),
	}
	if period <= 0 || n < period {
		return result
	}

	for i := period - 1; i < n; i++ {
		middle := result.Middle[i]
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			diff := prices[j] - middle
			variance += diff * diff
		}
		stdDev := math.Sqrt(variance / float64(period))

		upper := middle + stdDev*stdDevMultiplier
		lower := middle - stdDev*stdDevMultiplier
		result.Upper[i] = upper
		result.Lower[i] = lower

		if upper != lower {
			result.PercentB[i] = (prices[i] - lower) / (upper - lower)
		} else {
			// Flat window: price sits exactly on the collapsed bands
			result.PercentB[i] = 0.5
		}
		if middle != 0 {
			bw := (upper - lower) / middle * 100
			result.Bandwidth[i] = bw
			result.Squeeze[i] = bw < 10
		}
	}
	return result
}
