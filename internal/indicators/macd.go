package indicators

import "math"

// MACDResult holds the MACD line, signal line, histogram series and the bar
// indexes where the histogram flipped sign.
type MACDResult struct {
	MACD       []float64
	Signal     []float64
	Histogram  []float64
	Crossovers []int
}

// CalculateMACD calculates MACD = fast EMA - slow EMA, the signal line as an
// EMA of the MACD line restricted to its defined region, and the histogram.
// A crossover records the bar index where the histogram sign flips.
func CalculateMACD(prices []float64, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	n := len(prices)
	result := &MACDResult{
		MACD:      nanSeries(n),
		Signal:    nanSeries(n),
		Histogram: nanSeries(n),
	}
	if fastPeriod <= 0 || slowPeriod <= 0 || signalPeriod <= 0 || fastPeriod >= slowPeriod {
		return result
	}

	fast := CalculateEMA(prices, fastPeriod)
	slow := CalculateEMA(prices, slowPeriod)
	for i := 0; i < n; i++ {
		if !math.IsNaN(fast[i]) && !math.IsNaN(slow[i]) {
			result.MACD[i] = fast[i] - slow[i]
		}
	}

	result.Signal = emaOver(result.MACD, signalPeriod)

	// prevSign holds the last nonzero histogram sign, or 0 while the
	// defined region has only produced zeros so far. A cross records when
	// a nonzero sign differs from prevSign; leaving an initial zero
	// region counts, re-emerging on the same side after touching zero
	// does not.
	prevSign := 0
	seen := false
	for i := 0; i < n; i++ {
		if math.IsNaN(result.MACD[i]) || math.IsNaN(result.Signal[i]) {
			continue
		}
		h := result.MACD[i] - result.Signal[i]
		result.Histogram[i] = h

		sign := 0
		if h > 0 {
			sign = 1
		} else if h < 0 {
			sign = -1
		}
		if sign != 0 && seen && sign != prevSign {
			result.Crossovers = append(result.Crossovers, i)
		}
		if sign != 0 {
			prevSign = sign
		}
		seen = true
	}
	return result
}
