package indicators

import "quant-trading-engine/internal/market"

// ============================================================================
// STOCHASTIC OSCILLATOR
// ============================================================================

// StochasticResult holds the %K and %D series.
type StochasticResult struct {
	K []float64
	D []float64
}

// CalculateStochastic calculates the Stochastic Oscillator. A degenerate
// window (highest == lowest) reads the neutral 50 rather than dividing by
// zero. %D is the SMA of %K over dPeriod.
func CalculateStochastic(candles []market.Candle, kPeriod, dPeriod int) *StochasticResult {
	n := len(candles)
	result := &StochasticResult{K: nanSeries(n), D: nanSeries(n)}
	if kPeriod <= 0 || dPeriod <= 0 || n < kPeriod {
		return result
	}

	for i := kPeriod - 1; i < n; i++ {
		highest := candles[i-kPeriod+1].High
		lowest := candles[i-kPeriod+1].Low
		for j := i - kPeriod + 2; j <= i; j++ {
			if candles[j].High > highest {
				highest = candles[j].High
			}
			if candles[j].Low < lowest {
				lowest = candles[j].Low
			}
		}
		if highest == lowest {
			result.K[i] = 50
		} else {
			result.K[i] = (candles[i].Close - lowest) / (highest - lowest) * 100
		}
	}

	// %K is defined from kPeriod-1 on, so the first %D lands dPeriod-1
	// bars later.
	for i := kPeriod + dPeriod - 2; i < n; i++ {
		sum := 0.0
		for j := i - dPeriod + 1; j <= i; j++ {
			sum += result.K[j]
		}
		result.D[i] = sum / float64(dPeriod)
	}
	return result
}

// ============================================================================
// WILLIAMS %R
// ============================================================================

// CalculateWilliamsR calculates Williams %R, bounded [-100, 0]. A degenerate
// window reads the -50 midpoint.
func CalculateWilliamsR(candles []market.Candle, period int) []float64 {
	out := nanSeries(len(candles))
	if period <= 0 || len(candles) < period {
		return out
	}

	for i := period - 1; i < len(candles); i++ {
		highest := candles[i-period+1].High
		lowest := candles[i-period+1].Low
		for j := i - period + 2; j <= i; j++ {
			if candles[j].High > highest {
				highest = candles[j].High
			}
			if candles[j].Low < lowest {
				lowest = candles[j].Low
			}
		}
		if highest == lowest {
			out[i] = -50
		} else {
			out[i] = (highest - candles[i].Close) / (highest - lowest) * -100
		}
	}
	return out
}

// ============================================================================
// CCI (Commodity Channel Index)
// ============================================================================

// CalculateCCI calculates the Commodity Channel Index over typical prices.
// A zero mean deviation reads 0.
func CalculateCCI(candles []market.Candle, period int) []float64 {
	out := nanSeries(len(candles))
	if period <= 0 || len(candles) < period {
		return out
	}

	typical := make([]float64, len(candles))
	for i, c := range candles {
		typical[i] = (c.High + c.Low + c.Close) / 3
	}

	for i := period - 1; i < len(candles); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += typical[j]
		}
		mean := sum / float64(period)

		meanDev := 0.0
		for j := i - period + 1; j <= i; j++ {
			diff := typical[j] - mean
			if diff < 0 {
				diff = -diff
			}
			meanDev += diff
		}
		meanDev /= float64(period)

		if meanDev == 0 {
			out[i] = 0
		} else {
			out[i] = (typical[i] - mean) / (0.015 * meanDev)
		}
	}
	return out
}

// ============================================================================
// MOMENTUM / RATE OF CHANGE
// ============================================================================

// CalculateMomentum calculates the absolute price change over period bars.
func CalculateMomentum(prices []float64, period int) []float64 {
	out := nanSeries(len(prices))
	if period <= 0 || len(prices) < period+1 {
		return out
	}
	for i := period; i < len(prices); i++ {
		out[i] = prices[i] - prices[i-period]
	}
	return out
}

// CalculateROC calculates the percentage Rate of Change over period bars.
// A zero reference price reads 0.
func CalculateROC(prices []float64, period int) []float64 {
	out := nanSeries(len(prices))
	if period <= 0 || len(prices) < period+1 {
		return out
	}
	for i := period; i < len(prices); i++ {
		past := prices[i-period]
		if past == 0 {
			out[i] = 0
		} else {
			out[i] = (prices[i] - past) / past * 100
		}
	}
	return out
}
