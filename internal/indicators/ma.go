package indicators

import "math"

// CalculateSMA calculates the Simple Moving Average series.
func CalculateSMA(prices []float64, period int) []float64 {
	out := nanSeries(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// CalculateEMA calculates the Exponential Moving Average series. The first
// defined value is seeded from the simple average of the first period closes;
// multiplier = 2/(period+1).
func CalculateEMA(prices []float64, period int) []float64 {
	out := nanSeries(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = (prices[i] * multiplier) + (ema * (1 - multiplier))
		out[i] = ema
	}
	return out
}

// CalculateWMA calculates the Weighted Moving Average series, with linearly
// increasing weights toward the most recent bar.
func CalculateWMA(prices []float64, period int) []float64 {
	out := nanSeries(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	denom := float64(period*(period+1)) / 2
	for i := period - 1; i < len(prices); i++ {
		weighted := 0.0
		for j := 0; j < period; j++ {
			weighted += prices[i-period+1+j] * float64(j+1)
		}
		out[i] = weighted / denom
	}
	return out
}

// emaOver computes an EMA restricted to the defined region of an input
// series that may start with NaN warm-up bars.
func emaOver(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}

	start := -1
	for i, v := range values {
		if !math.IsNaN(v) {
			start = i
			break
		}
	}
	if start < 0 || len(values)-start < period {
		return out
	}

	sum := 0.0
	for i := start; i < start+period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[start+period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := start + period; i < len(values); i++ {
		ema = (values[i] * multiplier) + (ema * (1 - multiplier))
		out[i] = ema
	}
	return out
}
