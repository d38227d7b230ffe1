// Package regime classifies the market trend state at a bar index from
// indicator series. Classification is a pure function of values up to that
// index; no state is carried between calls.
package regime

import "math"

// Regime represents the classified trend state of the market.
type Regime string

const (
	StrongUptrend   Regime = "STRONG_UPTREND"
	Uptrend         Regime = "UPTREND"
	Sideways        Regime = "SIDEWAYS"
	Downtrend       Regime = "DOWNTREND"
	StrongDowntrend Regime = "STRONG_DOWNTREND"
)

// IsUp reports whether the regime is an uptrend variant.
func (r Regime) IsUp() bool {
	return r == Uptrend || r == StrongUptrend
}

// IsDown reports whether the regime is a downtrend variant.
func (r Regime) IsDown() bool {
	return r == Downtrend || r == StrongDowntrend
}

const (
	// minHistory is the bar index below which classification is always
	// Sideways: the designated insufficient-history result, not an error.
	minHistory = 30

	// slopeLookback is the window for the EMA percentage slope.
	slopeLookback = 20

	strongSlopeThreshold = 0.25 // percent over the lookback
	normalSlopeThreshold = 0.10
)

// Classify labels the trend regime at the given bar index from the EMA(20),
// EMA(50) and RSI(14) series. Inconclusive slope/alignment conditions and
// undefined indicator values resolve to Sideways.
func Classify(ema20, ema50, rsi []float64, index int) Regime {
	if index < minHistory || index >= len(ema20) || index >= len(ema50) || index >= len(rsi) {
		return Sideways
	}
	if index-slopeLookback < 0 {
		return Sideways
	}

	e20, e50 := ema20[index], ema50[index]
	e20Past, e50Past := ema20[index-slopeLookback], ema50[index-slopeLookback]
	r := rsi[index]
	if math.IsNaN(e20) || math.IsNaN(e50) || math.IsNaN(e20Past) || math.IsNaN(r) {
		return Sideways
	}

	slope20 := percentSlope(e20Past, e20)

	// The slow EMA needs slopeLookback more bars of warm-up than the fast
	// one. An undefined slow slope only rules out the strong regimes; the
	// plain trend branches use the fast slope and current alignment alone.
	slope50 := math.NaN()
	if !math.IsNaN(e50Past) {
		slope50 = percentSlope(e50Past, e50)
	}

	switch {
	case slope20 > strongSlopeThreshold && slope50 > strongSlopeThreshold/2 && e20 > e50 && r > 55:
		return StrongUptrend
	case slope20 > normalSlopeThreshold && e20 > e50:
		return Uptrend
	case slope20 < -strongSlopeThreshold && slope50 < -strongSlopeThreshold/2 && e20 < e50 && r < 45:
		return StrongDowntrend
	case slope20 < -normalSlopeThreshold && e20 < e50:
		return Downtrend
	default:
		return Sideways
	}
}

// percentSlope returns the percentage change from past to current.
func percentSlope(past, current float64) float64 {
	if past == 0 {
		return 0
	}
	return (current - past) / past * 100
}
