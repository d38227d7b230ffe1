package regime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-trading-engine/internal/indicators"
)

func series(n int, fn func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = fn(i)
	}
	return out
}

func TestClassify(t *testing.T) {
	t.Run("insufficient history is sideways", func(t *testing.T) {
		n := 60
		ema20 := series(n, func(i int) float64 { return 100 + float64(i) })
		ema50 := series(n, func(i int) float64 { return 90 + float64(i) })
		rsi := series(n, func(i int) float64 { return 70 })

		for i := 0; i < 30; i++ {
			assert.Equal(t, Sideways, Classify(ema20, ema50, rsi, i), "index %d", i)
		}
	})

	t.Run("undefined values are sideways", func(t *testing.T) {
		n := 60
		ema20 := series(n, func(i int) float64 { return 100 })
		ema50 := series(n, func(i int) float64 { return 100 })
		rsi := series(n, func(i int) float64 { return 50 })
		ema20[40] = math.NaN()
		assert.Equal(t, Sideways, Classify(ema20, ema50, rsi, 40))
	})

	t.Run("rising emas classify uptrend", func(t *testing.T) {
		n := 60
		// EMA20 rises 0.15% per 20 bars, above the fast EMA50, RSI neutral.
		ema20 := series(n, func(i int) float64 { return 100 * (1 + 0.000075*float64(i)) })
		ema50 := series(n, func(i int) float64 { return 99 * (1 + 0.00005*float64(i)) })
		rsi := series(n, func(i int) float64 { return 52 })

		got := Classify(ema20, ema50, rsi, 59)
		assert.Equal(t, Uptrend, got)
		assert.True(t, got.IsUp())
		assert.False(t, got.IsDown())
	})

	t.Run("steep aligned rise with strong rsi is strong uptrend", func(t *testing.T) {
		n := 60
		ema20 := series(n, func(i int) float64 { return 100 * (1 + 0.0003*float64(i)) })
		ema50 := series(n, func(i int) float64 { return 98 * (1 + 0.0002*float64(i)) })
		rsi := series(n, func(i int) float64 { return 62 })

		assert.Equal(t, StrongUptrend, Classify(ema20, ema50, rsi, 59))
	})

	t.Run("steep aligned fall with weak rsi is strong downtrend", func(t *testing.T) {
		n := 60
		ema20 := series(n, func(i int) float64 { return 100 * (1 - 0.0003*float64(i)) })
		ema50 := series(n, func(i int) float64 { return 102 * (1 - 0.0002*float64(i)) })
		rsi := series(n, func(i int) float64 { return 38 })

		got := Classify(ema20, ema50, rsi, 59)
		assert.Equal(t, StrongDowntrend, got)
		assert.True(t, got.IsDown())
	})

	t.Run("flat emas are sideways", func(t *testing.T) {
		n := 60
		ema20 := series(n, func(i int) float64 { return 100 })
		ema50 := series(n, func(i int) float64 { return 100 })
		rsi := series(n, func(i int) float64 { return 50 })
		assert.Equal(t, Sideways, Classify(ema20, ema50, rsi, 59))
	})

	t.Run("strong slope without rsi confirmation degrades to uptrend", func(t *testing.T) {
		n := 60
		ema20 := series(n, func(i int) float64 { return 100 * (1 + 0.0003*float64(i)) })
		ema50 := series(n, func(i int) float64 { return 98 * (1 + 0.0002*float64(i)) })
		rsi := series(n, func(i int) float64 { return 50 })

		assert.Equal(t, Uptrend, Classify(ema20, ema50, rsi, 59))
	})

	t.Run("undefined slow slope still allows plain uptrend", func(t *testing.T) {
		n := 60
		ema20 := series(n, func(i int) float64 { return 100 * (1 + 0.0003*float64(i)) })
		ema50 := series(n, func(i int) float64 { return 98 * (1 + 0.0002*float64(i)) })
		rsi := series(n, func(i int) float64 { return 62 })
		// Slow EMA warm-up extends past the slope lookback offset.
		ema50[39] = math.NaN()

		assert.Equal(t, Uptrend, Classify(ema20, ema50, rsi, 59))
	})
}

func TestClassifyFromRawCloses(t *testing.T) {
	// 50 flat closes followed by 10 bars each rising 1 percent. The slow
	// EMA is only defined from bar 49, so its slope window is still in
	// warm-up at bar 59; the fast slope and alignment alone must be enough
	// for an uptrend call.
	closes := make([]float64, 60)
	price := 100.0
	for i := 0; i < 50; i++ {
		closes[i] = price
	}
	for i := 50; i < 60; i++ {
		price *= 1.01
		closes[i] = price
	}

	ema20 := indicators.CalculateEMA(closes, 20)
	ema50 := indicators.CalculateEMA(closes, 50)
	rsi := indicators.CalculateRSI(closes, 14)

	require.False(t, math.IsNaN(ema20[59]))
	require.False(t, math.IsNaN(ema50[59]))
	require.True(t, math.IsNaN(ema50[39]))

	got := Classify(ema20, ema50, rsi, 59)
	assert.True(t, got.IsUp(), "got %s", got)
}
