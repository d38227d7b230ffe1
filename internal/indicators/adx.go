package indicators

import "quant-trading-engine/internal/market"

// ADXResult holds the ADX series together with the directional indexes.
type ADXResult struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// CalculateADX calculates the Average Directional Index with Wilder-smoothed
// +DI/-DI. Zero true-range or zero DI sum reads 0 rather than dividing.
func CalculateADX(candles []market.Candle, period int) *ADXResult {
	n := len(candles)
	result := &ADXResult{
		ADX:     nanSeries(n),
		PlusDI:  nanSeries(n),
		MinusDI: nanSeries(n),
	}
	if period <= 0 || n < 2*period+1 {
		return result
	}

	// Per-bar true range and directional movement
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		tr[i] = TrueRange(candles[i].High, candles[i].Low, candles[i-1].Close)
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	// Wilder-smoothed sums seeded over the first period
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := nanSeries(n)
	for i := period; i < n; i++ {
		if i > period {
			smTR = smTR - smTR/float64(period) + tr[i]
			smPlus = smPlus - smPlus/float64(period) + plusDM[i]
			smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		}

		plusDI, minusDI := 0.0, 0.0
		if smTR != 0 {
			plusDI = smPlus / smTR * 100
			minusDI = smMinus / smTR * 100
		}
		result.PlusDI[i] = plusDI
		result.MinusDI[i] = minusDI

		diSum := plusDI + minusDI
		if diSum == 0 {
			dx[i] = 0
		} else {
			diDiff := plusDI - minusDI
			if diDiff < 0 {
				diDiff = -diDiff
			}
			dx[i] = diDiff / diSum * 100
		}
	}

	// ADX is the Wilder average of DX
	sum := 0.0
	for i := period; i < 2*period; i++ {
		sum += dx[i]
	}
	adx := sum / float64(period)
	result.ADX[2*period-1] = adx
	for i := 2 * period; i < n; i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
		result.ADX[i] = adx
	}
	return result
}
