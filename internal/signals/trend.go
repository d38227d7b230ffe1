package signals

import (
	"fmt"
	"math"

	"quant-trading-engine/internal/regime"
)

// The trend-following family is regime-gated: longs only in the uptrend
// regimes, shorts only in the downtrend regimes, and Sideways is excluded
// entirely (it routes to the mean-reversion generator instead).

// ============================================================================
// TREND PULLBACK
// ============================================================================

// TrendPullbackGenerator looks for a retracement to the EMA(20) inside an
// established trend, with the bar reclaiming the average in the trend
// direction.
type TrendPullbackGenerator struct{}

// NewTrendPullbackGenerator creates the pullback generator.
func NewTrendPullbackGenerator() *TrendPullbackGenerator {
	return &TrendPullbackGenerator{}
}

func (g *TrendPullbackGenerator) ID() string { return "trend_pullback" }

// Evaluate returns a pullback continuation signal or nil.
func (g *TrendPullbackGenerator) Evaluate(ctx *Context) *Signal {
	i := ctx.Index
	if i < 1 || i >= len(ctx.Candles) {
		return nil
	}
	ema20 := seriesAt(ctx.Indicators.EMA20, i)
	atr := seriesAt(ctx.Indicators.ATR14, i)
	rsi := seriesAt(ctx.Indicators.RSI14, i)
	if math.IsNaN(ema20) || math.IsNaN(atr) || math.IsNaN(rsi) || atr == 0 {
		return nil
	}

	c := ctx.Candle()
	confidence := 60.0
	if ctx.Regime == regime.StrongUptrend || ctx.Regime == regime.StrongDowntrend {
		confidence = 72.0
	}

	if ctx.Regime.IsUp() {
		// Bar dips into the EMA and closes back above it
		if c.Low > ema20 || c.Close <= ema20 || rsi < 40 || rsi > 60 {
			return nil
		}
		stop := c.Low - 0.5*atr
		risk := c.Close - stop
		return &Signal{
			PatternID:      g.ID(),
			Direction:      Long,
			EntryPrice:     c.Close,
			StopLoss:       stop,
			TakeProfit:     c.Close + 2*risk,
			Confidence:     confidence,
			SizeMultiplier: 1,
			Regime:         ctx.Regime,
			Reason:         fmt.Sprintf("pullback to EMA20 %.4f reclaimed, RSI %.1f", ema20, rsi),
		}
	}

	if ctx.Regime.IsDown() {
		if c.High < ema20 || c.Close >= ema20 || rsi < 40 || rsi > 60 {
			return nil
		}
		stop := c.High + 0.5*atr
		risk := stop - c.Close
		return &Signal{
			PatternID:      g.ID(),
			Direction:      Short,
			EntryPrice:     c.Close,
			StopLoss:       stop,
			TakeProfit:     c.Close - 2*risk,
			Confidence:     confidence,
			SizeMultiplier: 1,
			Regime:         ctx.Regime,
			Reason:         fmt.Sprintf("rally to EMA20 %.4f rejected, RSI %.1f", ema20, rsi),
		}
	}

	return nil
}

// ============================================================================
// MOMENTUM BREAKOUT
// ============================================================================

const breakoutLookback = 20

// MomentumBreakoutGenerator looks for a close beyond the recent range
// extreme on elevated volume, in the direction of the trend.
type MomentumBreakoutGenerator struct{}

// NewMomentumBreakoutGenerator creates the breakout generator.
func NewMomentumBreakoutGenerator() *MomentumBreakoutGenerator {
	return &MomentumBreakoutGenerator{}
}

func (g *MomentumBreakoutGenerator) ID() string { return "momentum_breakout" }

// Evaluate returns a breakout signal or nil.
func (g *MomentumBreakoutGenerator) Evaluate(ctx *Context) *Signal {
	i := ctx.Index
	if i < breakoutLookback || i >= len(ctx.Candles) {
		return nil
	}
	atr := seriesAt(ctx.Indicators.ATR14, i)
	avgVol := seriesAt(ctx.Indicators.AvgVolume, i-1)
	if math.IsNaN(atr) || math.IsNaN(avgVol) || atr == 0 {
		return nil
	}

	c := ctx.Candle()
	volumeSpike := avgVol > 0 && c.Volume >= avgVol*1.5

	if ctx.Regime.IsUp() {
		highest := 0.0
		for j := i - breakoutLookback; j < i; j++ {
			if ctx.Candles[j].High > highest {
				highest = ctx.Candles[j].High
			}
		}
		if c.Close <= highest || !volumeSpike {
			return nil
		}
		stop := c.Close - 1.5*atr
		return &Signal{
			PatternID:      g.ID(),
			Direction:      Long,
			EntryPrice:     c.Close,
			StopLoss:       stop,
			TakeProfit:     c.Close + 2.5*(c.Close-stop),
			Confidence:     65,
			SizeMultiplier: 1,
			Regime:         ctx.Regime,
			Reason:         fmt.Sprintf("close %.4f above %d-bar high %.4f on %.1fx volume", c.Close, breakoutLookback, highest, c.Volume/avgVol),
		}
	}

	if ctx.Regime.IsDown() {
		lowest := math.MaxFloat64
		for j := i - breakoutLookback; j < i; j++ {
			if ctx.Candles[j].Low < lowest {
				lowest = ctx.Candles[j].Low
			}
		}
		if c.Close >= lowest || !volumeSpike {
			return nil
		}
		stop := c.Close + 1.5*atr
		return &Signal{
			PatternID:      g.ID(),
			Direction:      Short,
			EntryPrice:     c.Close,
			StopLoss:       stop,
			TakeProfit:     c.Close - 2.5*(stop-c.Close),
			Confidence:     65,
			SizeMultiplier: 1,
			Regime:         ctx.Regime,
			Reason:         fmt.Sprintf("close %.4f below %d-bar low %.4f on %.1fx volume", c.Close, breakoutLookback, lowest, c.Volume/avgVol),
		}
	}

	return nil
}

// ============================================================================
// INSIDE BAR BREAKOUT (disabled by default)
// ============================================================================

// InsideBarBreakoutGenerator trades the break of an inside bar in trend
// direction. Kept registered but disabled; see the registry metadata.
type InsideBarBreakoutGenerator struct{}

// NewInsideBarBreakoutGenerator creates the inside-bar generator.
func NewInsideBarBreakoutGenerator() *InsideBarBreakoutGenerator {
	return &InsideBarBreakoutGenerator{}
}

func (g *InsideBarBreakoutGenerator) ID() string { return "inside_bar_breakout" }

func (g *InsideBarBreakoutGenerator) Evaluate(ctx *Context) *Signal {
	i := ctx.Index
	if i < 2 || i >= len(ctx.Candles) {
		return nil
	}
	atr := seriesAt(ctx.Indicators.ATR14, i)
	if math.IsNaN(atr) || atr == 0 {
		return nil
	}

	mother := ctx.Candles[i-2]
	inside := ctx.Candles[i-1]
	c := ctx.Candle()
	if inside.High >= mother.High || inside.Low <= mother.Low {
		return nil
	}

	if ctx.Regime.IsUp() && c.Close > mother.High {
		stop := inside.Low - 0.25*atr
		return &Signal{
			PatternID:      g.ID(),
			Direction:      Long,
			EntryPrice:     c.Close,
			StopLoss:       stop,
			TakeProfit:     c.Close + 2*(c.Close-stop),
			Confidence:     55,
			SizeMultiplier: 1,
			Regime:         ctx.Regime,
			Reason:         "inside bar broken upward",
		}
	}
	if ctx.Regime.IsDown() && c.Close < mother.Low {
		stop := inside.High + 0.25*atr
		return &Signal{
			PatternID:      g.ID(),
			Direction:      Short,
			EntryPrice:     c.Close,
			StopLoss:       stop,
			TakeProfit:     c.Close - 2*(stop-c.Close),
			Confidence:     55,
			SizeMultiplier: 1,
			Regime:         ctx.Regime,
			Reason:         "inside bar broken downward",
		}
	}
	return nil
}

// seriesAt reads a series value with bounds checking; out of range is NaN.
func seriesAt(series []float64, i int) float64 {
	if i < 0 || i >= len(series) {
		return math.NaN()
	}
	return series[i]
}
