package indicators

import "quant-trading-engine/internal/market"

// ============================================================================
// OBV (On-Balance Volume)
// ============================================================================

// CalculateOBV calculates the On-Balance Volume series, seeded at zero on
// the first bar.
func CalculateOBV(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	if len(candles) == 0 {
		return out
	}

	obv := 0.0
	for i := 1; i < len(candles); i++ {
		if candles[i].Close > candles[i-1].Close {
			obv += candles[i].Volume
		} else if candles[i].Close < candles[i-1].Close {
			obv -= candles[i].Volume
		}
		out[i] = obv
	}
	return out
}

// ============================================================================
// VWAP (Volume-Weighted Average Price)
// ============================================================================

// CalculateVWAP calculates the cumulative Volume-Weighted Average Price
// series over typical prices, resetting at each DateKey boundary so the
// measure stays session-scoped. Zero cumulative volume falls back to the
// bar's typical price.
func CalculateVWAP(candles []market.Candle) []float64 {
	out := nanSeries(len(candles))
	if len(candles) == 0 {
		return out
	}

	var cumPV, cumVol float64
	currentDate := candles[0].DateKey
	for i, c := range candles {
		if c.DateKey != currentDate {
			currentDate = c.DateKey
			cumPV, cumVol = 0, 0
		}
		typical := (c.High + c.Low + c.Close) / 3
		cumPV += typical * c.Volume
		cumVol += c.Volume
		if cumVol == 0 {
			out[i] = typical
		} else {
			out[i] = cumPV / cumVol
		}
	}
	return out
}

// ============================================================================
// VOLUME AVERAGES
// ============================================================================

// CalculateAverageVolume calculates the trailing average volume series.
func CalculateAverageVolume(candles []market.Candle, period int) []float64 {
	out := nanSeries(len(candles))
	if period <= 0 || len(candles) < period {
		return out
	}

	sum := 0.0
	for i, c := range candles {
		sum += c.Volume
		if i >= period {
			sum -= candles[i-period].Volume
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}
