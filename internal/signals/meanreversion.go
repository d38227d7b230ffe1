package signals

import (
	"fmt"
	"math"

	"quant-trading-engine/internal/regime"
)

// BollingerReversionGenerator is the dedicated Sideways generator: it fades
// closes outside the Bollinger Bands back toward the middle band. It never
// fires in a trending regime.
type BollingerReversionGenerator struct{}

// NewBollingerReversionGenerator creates the mean-reversion generator.
func NewBollingerReversionGenerator() *BollingerReversionGenerator {
	return &BollingerReversionGenerator{}
}

func (g *BollingerReversionGenerator) ID() string { return "bollinger_reversion" }

// Evaluate returns a reversion signal or nil.
func (g *BollingerReversionGenerator) Evaluate(ctx *Context) *Signal {
	if ctx.Regime != regime.Sideways {
		return nil
	}
	i := ctx.Index
	if i < 0 || i >= len(ctx.Candles) {
		return nil
	}

	bb := ctx.Indicators.Bollinger
	pctB := seriesAt(bb.PercentB, i)
	middle := seriesAt(bb.Middle, i)
	rsi := seriesAt(ctx.Indicators.RSI14, i)
	atr := seriesAt(ctx.Indicators.ATR14, i)
	if math.IsNaN(pctB) || math.IsNaN(middle) || math.IsNaN(rsi) || math.IsNaN(atr) || atr == 0 {
		return nil
	}

	c := ctx.Candle()

	// Oversold below the lower band
	if pctB < 0 && rsi < 30 {
		stop := c.Low - 0.5*atr
		return &Signal{
			PatternID:      g.ID(),
			Direction:      Long,
			EntryPrice:     c.Close,
			StopLoss:       stop,
			TakeProfit:     middle,
			Confidence:     55 + (30-rsi)/2,
			SizeMultiplier: 1,
			Regime:         ctx.Regime,
			Reason:         fmt.Sprintf("close below lower band (%%B %.2f), RSI %.1f", pctB, rsi),
		}
	}

	// Overbought above the upper band
	if pctB > 1 && rsi > 70 {
		stop := c.High + 0.5*atr
		return &Signal{
			PatternID:      g.ID(),
			Direction:      Short,
			EntryPrice:     c.Close,
			StopLoss:       stop,
			TakeProfit:     middle,
			Confidence:     55 + (rsi-70)/2,
			SizeMultiplier: 1,
			Regime:         ctx.Regime,
			Reason:         fmt.Sprintf("close above upper band (%%B %.2f), RSI %.1f", pctB, rsi),
		}
	}

	return nil
}
