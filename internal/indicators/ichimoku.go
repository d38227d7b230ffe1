package indicators

import "quant-trading-engine/internal/market"

// IchimokuResult holds the five Ichimoku Cloud series. Senkou spans are
// stored at the bar they are projected onto (shifted forward by the kijun
// period); chikou is the close shifted back, so Chikou[i] holds the close
// of bar i+kijunPeriod. Chikou is a plotting series for cross checks
// against past price and must not be read as a value known at bar i.
type IchimokuResult struct {
	Tenkan  []float64 // conversion line
	Kijun   []float64 // base line
	SenkouA []float64 // leading span A
	SenkouB []float64 // leading span B
	Chikou  []float64 // lagging span
}

// midpoint returns (highest high + lowest low) / 2 over the trailing window
// ending at index i.
func midpoint(candles []market.Candle, i, period int) float64 {
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
	return (highest + lowest) / 2
}

// CalculateIchimoku calculates the Ichimoku Cloud with the standard
// tenkan/kijun/senkouB periods (typically 9/26/52).
func CalculateIchimoku(candles []market.Candle, tenkanPeriod, kijunPeriod, senkouBPeriod int) *IchimokuResult {
	n := len(candles)
	result := &IchimokuResult{
		Tenkan:  nanSeries(n),
		Kijun:   nanSeries(n),
		SenkouA: nanSeries(n),
		SenkouB: nanSeries(n),
		Chikou:  nanSeries(n),
	}
	if tenkanPeriod <= 0 || kijunPeriod <= 0 || senkouBPeriod <= 0 {
		return result
	}

	for i := 0; i < n; i++ {
		if i >= tenkanPeriod-1 {
			result.Tenkan[i] = midpoint(candles, i, tenkanPeriod)
		}
		if i >= kijunPeriod-1 {
			result.Kijun[i] = midpoint(candles, i, kijunPeriod)
		}

		// Project the spans kijunPeriod bars ahead
		target := i + kijunPeriod
		if target < n {
			if i >= tenkanPeriod-1 && i >= kijunPeriod-1 {
				result.SenkouA[target] = (result.Tenkan[i] + result.Kijun[i]) / 2
			}
			if i >= senkouBPeriod-1 {
				result.SenkouB[target] = midpoint(candles, i, senkouBPeriod)
			}
		}

		// Lag the close kijunPeriod bars back
		if i >= kijunPeriod {
			result.Chikou[i-kijunPeriod] = candles[i].Close
		}
	}
	return result
}
