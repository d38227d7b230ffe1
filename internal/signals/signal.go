// Package signals holds the pattern-based signal generators and their
// registry. A generator consumes candles, indicators and the current regime
// and emits at most one directional trade proposal per bar.
package signals

import (
	"quant-trading-engine/internal/indicators"
	"quant-trading-engine/internal/market"
	"quant-trading-engine/internal/regime"
)

// Direction is the side of a proposed trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Signal is a proposed directional trade with entry/stop/target levels and a
// confidence weight.
type Signal struct {
	PatternID      string        `json:"pattern_id"`
	Direction      Direction     `json:"direction"`
	EntryPrice     float64       `json:"entry_price"`
	StopLoss       float64       `json:"stop_loss"`
	TakeProfit     float64       `json:"take_profit"`
	Confidence     float64       `json:"confidence"`      // 0-100
	SizeMultiplier float64       `json:"size_multiplier"` // 0-1, scales position size
	Regime         regime.Regime `json:"regime"`
	Reason         string        `json:"reason"`
}

// IndicatorSet bundles the precomputed series shared by all generators for
// one candle sequence. Computed once per replay, never per bar.
type IndicatorSet struct {
	EMA20     []float64
	EMA50     []float64
	RSI14     []float64
	ATR14     []float64
	AvgVolume []float64
	Bollinger *indicators.BollingerResult
}

// ComputeIndicators derives the shared indicator set from a candle sequence.
func ComputeIndicators(candles []market.Candle) *IndicatorSet {
	closes := market.Closes(candles)
	return &IndicatorSet{
		EMA20:     indicators.CalculateEMA(closes, 20),
		EMA50:     indicators.CalculateEMA(closes, 50),
		RSI14:     indicators.CalculateRSI(closes, 14),
		ATR14:     indicators.CalculateATR(candles, 14),
		AvgVolume: indicators.CalculateAverageVolume(candles, 20),
		Bollinger: indicators.CalculateBollingerBands(closes, 20, 2),
	}
}

// Context is the read-only input handed to every generator for one bar.
type Context struct {
	Candles    []market.Candle
	Index      int
	Indicators *IndicatorSet
	Regime     regime.Regime
}

// Candle returns the bar under evaluation.
func (c *Context) Candle() market.Candle {
	return c.Candles[c.Index]
}

// Generator is a pattern detector. Evaluate returns nil for "no setup" and
// must never panic; insufficient history is a nil result, not an error.
type Generator interface {
	ID() string
	Evaluate(ctx *Context) *Signal
}
