package signals

import (
	"fmt"
	"math"
)

// SweepConfig tunes the weighted liquidity-sweep generator.
type SweepConfig struct {
	SwingLookback int     `json:"swing_lookback"` // bars scanned for swing levels
	PivotBars     int     `json:"pivot_bars"`     // bars on each side defining a pivot
	TradeFloor    float64 `json:"trade_floor"`    // minimum total score to trade
	ScoreCeiling  float64 `json:"score_ceiling"`  // reference score for full size
}

// DefaultSweepConfig returns the standard sweep tuning.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		SwingLookback: 50,
		PivotBars:     2,
		TradeFloor:    25,
		ScoreCeiling:  60,
	}
}

// swingLevel is a detected swing high or low with its recorded strength:
// the count of later bars that respected the level, capped at the lookback.
type swingLevel struct {
	index    int
	price    float64
	strength int
	isHigh   bool
}

// LiquiditySweepGenerator is the discretionary weighted variant. Every
// qualifying condition contributes points to a bounded total; only a total
// below the trade floor, or the absence of a sweep itself, yields nil.
// A structurally valid setup is never binary-vetoed: weaker scores degrade
// position size and widen the stop instead.
type LiquiditySweepGenerator struct {
	config SweepConfig
}

// NewLiquiditySweepGenerator creates the sweep generator.
func NewLiquiditySweepGenerator(config SweepConfig) *LiquiditySweepGenerator {
	if config.SwingLookback <= 0 {
		config = DefaultSweepConfig()
	}
	return &LiquiditySweepGenerator{config: config}
}

func (g *LiquiditySweepGenerator) ID() string { return "liquidity_sweep" }

// Evaluate returns a sweep signal or nil.
func (g *LiquiditySweepGenerator) Evaluate(ctx *Context) *Signal {
	i := ctx.Index
	minBars := g.config.PivotBars*2 + 5
	if i < minBars || i >= len(ctx.Candles) {
		return nil
	}
	atr := seriesAt(ctx.Indicators.ATR14, i)
	if math.IsNaN(atr) || atr == 0 {
		return nil
	}

	c := ctx.Candle()
	swings := g.findSwings(ctx, i)

	// Collect every level the current bar sweeps
	var sweptHighs, sweptLows []swingLevel
	for _, s := range swings {
		if s.isHigh && c.High > s.price && c.Close < s.price {
			sweptHighs = append(sweptHighs, s)
		}
		if !s.isHigh && c.Low < s.price && c.Close > s.price {
			sweptLows = append(sweptLows, s)
		}
	}
	if len(sweptHighs) == 0 && len(sweptLows) == 0 {
		return nil
	}

	// Conflict resolution: when both sides are swept on the same bar the
	// direction follows the bar's own close direction.
	var direction Direction
	var pool []swingLevel
	switch {
	case len(sweptHighs) > 0 && len(sweptLows) > 0:
		if c.IsBullish() {
			direction, pool = Long, sweptLows
		} else {
			direction, pool = Short, sweptHighs
		}
	case len(sweptLows) > 0:
		direction, pool = Long, sweptLows
	default:
		direction, pool = Short, sweptHighs
	}

	// Of the swept levels on the chosen side, the highest strength wins.
	level := pool[0]
	for _, s := range pool[1:] {
		if s.strength > level.strength {
			level = s
		}
	}

	score, notes := g.score(ctx, i, level, direction)
	if score < g.config.TradeFloor {
		return nil
	}

	// Size degrades continuously with score; the stop widens as score drops.
	sizeMult := score / g.config.ScoreCeiling
	if sizeMult > 1 {
		sizeMult = 1
	} else if sizeMult < 0.25 {
		sizeMult = 0.25
	}
	stopPad := atr * (0.5 + 0.5*(1-sizeMult))

	var stop, target float64
	if direction == Long {
		stop = c.Low - stopPad
		target = c.Close + 2*(c.Close-stop)
	} else {
		stop = c.High + stopPad
		target = c.Close - 2*(stop-c.Close)
	}

	return &Signal{
		PatternID:      g.ID(),
		Direction:      direction,
		EntryPrice:     c.Close,
		StopLoss:       stop,
		TakeProfit:     target,
		Confidence:     math.Min(100, score),
		SizeMultiplier: sizeMult,
		Regime:         ctx.Regime,
		Reason:         fmt.Sprintf("swept %s at %.4f (strength %d): %s", levelKind(level), level.price, level.strength, notes),
	}
}

// findSwings scans the lookback window ending before the current bar for
// pivot highs and lows and records each level's strength.
func (g *LiquiditySweepGenerator) findSwings(ctx *Context, index int) []swingLevel {
	start := index - g.config.SwingLookback
	if start < g.config.PivotBars {
		start = g.config.PivotBars
	}
	end := index - g.config.PivotBars

	var swings []swingLevel
	for j := start; j < end; j++ {
		bar := ctx.Candles[j]

		pivotHigh, pivotLow := true, true
		for k := j - g.config.PivotBars; k <= j+g.config.PivotBars; k++ {
			if k == j {
				continue
			}
			if ctx.Candles[k].High >= bar.High {
				pivotHigh = false
			}
			if ctx.Candles[k].Low <= bar.Low {
				pivotLow = false
			}
		}

		if pivotHigh {
			swings = append(swings, swingLevel{
				index:    j,
				price:    bar.High,
				strength: g.levelStrength(ctx, j, index, bar.High, true),
				isHigh:   true,
			})
		}
		if pivotLow {
			swings = append(swings, swingLevel{
				index:    j,
				price:    bar.Low,
				strength: g.levelStrength(ctx, j, index, bar.Low, false),
				isHigh:   false,
			})
		}
	}
	return swings
}

// levelStrength counts the bars after the pivot that respected the level,
// capped at the lookback window.
func (g *LiquiditySweepGenerator) levelStrength(ctx *Context, pivot, index int, price float64, isHigh bool) int {
	strength := 0
	for k := pivot + 1; k < index; k++ {
		if isHigh && ctx.Candles[k].High <= price {
			strength++
		}
		if !isHigh && ctx.Candles[k].Low >= price {
			strength++
		}
	}
	if strength > g.config.SwingLookback {
		strength = g.config.SwingLookback
	}
	return strength
}

// score accumulates the weighted conditions for a sweep of the given level.
func (g *LiquiditySweepGenerator) score(ctx *Context, index int, level swingLevel, direction Direction) (float64, string) {
	c := ctx.Candles[index]
	score := 0.0
	notes := ""

	// Swing strength: up to 15 points
	strengthPts := float64(level.strength)
	if strengthPts > 5 {
		strengthPts = 5
	}
	score += strengthPts * 3

	// Rejection wick relative to body: up to 15 points
	body := c.Body()
	wick := c.LowerWick()
	if direction == Short {
		wick = c.UpperWick()
	}
	switch {
	case body > 0 && wick >= 2*body:
		score += 15
		notes += "strong rejection wick"
	case body > 0 && wick >= body:
		score += 10
		notes += "rejection wick"
	case wick > 0:
		score += 5
		notes += "minor wick"
	}

	// Volume elevation: up to 15 points
	avgVol := seriesAt(ctx.Indicators.AvgVolume, index-1)
	if !math.IsNaN(avgVol) && avgVol > 0 {
		ratio := c.Volume / avgVol
		switch {
		case ratio >= 2:
			score += 15
			notes += ", heavy volume"
		case ratio >= 1.3:
			score += 10
			notes += ", elevated volume"
		}
	}

	// Close reclaimed past the level midpoint of the bar range: 10 points
	mid := (c.High + c.Low) / 2
	if (direction == Long && c.Close > mid) || (direction == Short && c.Close < mid) {
		score += 10
		notes += ", decisive close"
	}

	// Regime alignment: 10 points
	if (direction == Long && ctx.Regime.IsUp()) || (direction == Short && ctx.Regime.IsDown()) {
		score += 10
		notes += ", with trend"
	}

	// RSI room to run: 5 points
	rsi := seriesAt(ctx.Indicators.RSI14, index)
	if !math.IsNaN(rsi) {
		if (direction == Long && rsi < 60) || (direction == Short && rsi > 40) {
			score += 5
		}
	}

	return score, notes
}

func levelKind(level swingLevel) string {
	if level.isHigh {
		return "swing high"
	}
	return "swing low"
}
