package indicators

import (
	"math"

	"quant-trading-engine/internal/market"
)

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

// CalculateATR calculates the Wilder-smoothed Average True Range series.
// The first period bars are warm-up (true range needs a previous close).
func CalculateATR(candles []market.Candle, period int) []float64 {
	out := nanSeries(len(candles))
	if period <= 0 || len(candles) < period+1 {
		return out
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += TrueRange(candles[i].High, candles[i].Low, candles[i-1].Close)
	}
	atr := sum / float64(period)
	out[period] = atr

	for i := period + 1; i < len(candles); i++ {
		tr := TrueRange(candles[i].High, candles[i].Low, candles[i-1].Close)
		atr = (atr*float64(period-1) + tr) / float64(period)
		out[i] = atr
	}
	return out
}
