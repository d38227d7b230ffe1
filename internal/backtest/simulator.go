// Package backtest drives the signal generators bar-by-bar over a
// historical candle window, manages one simulated position at a time,
// applies transaction costs and slippage, and aggregates trade statistics.
// The replay is single-threaded and deterministic: the same candles and the
// same generator registration order always produce the same trade list.
package backtest

import (
	"context"
	"math"
	"time"

	"quant-trading-engine/internal/market"
	"quant-trading-engine/internal/regime"
	"quant-trading-engine/internal/signals"
)

// Config holds the simulator parameters.
type Config struct {
	TickSize        float64 `json:"tick_size"`
	Quantity        float64 `json:"quantity"`       // base quantity per trade
	ContractValue   float64 `json:"contract_value"` // P&L per point per unit quantity
	MaxTradesPerDay int     `json:"max_trades_per_day"`
	Intraday        bool    `json:"intraday"` // force close at end of day
	EODHour         int     `json:"eod_hour"` // last tradable hour in intraday mode
	WarmupBars      int     `json:"warmup_bars"`

	// Fixed per-trade cost bundle, charged regardless of outcome
	Commission    float64 `json:"commission"`
	ExchangeFee   float64 `json:"exchange_fee"`
	RegulatoryFee float64 `json:"regulatory_fee"`
	ClearingFee   float64 `json:"clearing_fee"`
}

// DefaultConfig returns the standard simulator tuning.
func DefaultConfig() Config {
	return Config{
		TickSize:        0.05,
		Quantity:        1,
		ContractValue:   1,
		MaxTradesPerDay: 3,
		Intraday:        true,
		EODHour:         15,
		WarmupBars:      50,
		Commission:      20,
		ExchangeFee:     3.5,
		RegulatoryFee:   0.5,
		ClearingFee:     1,
	}
}

// FixedFees returns the per-trade fee bundle total.
func (c Config) FixedFees() float64 {
	return c.Commission + c.ExchangeFee + c.RegulatoryFee + c.ClearingFee
}

// Trade is one completed simulated trade. Immutable once recorded.
type Trade struct {
	PatternID    string            `json:"pattern_id"`
	Direction    signals.Direction `json:"direction"`
	Regime       regime.Regime     `json:"regime"`
	EntryIndex   int               `json:"entry_index"`
	ExitIndex    int               `json:"exit_index"`
	EntryTime    time.Time         `json:"entry_time"`
	ExitTime     time.Time         `json:"exit_time"`
	EntryPrice   float64           `json:"entry_price"` // slippage-adjusted fill
	ExitPrice    float64           `json:"exit_price"`  // slippage-adjusted fill
	Quantity     float64           `json:"quantity"`
	StopLoss     float64           `json:"stop_loss"`
	TakeProfit   float64           `json:"take_profit"`
	ExitReason   string            `json:"exit_reason"`
	GrossPnL     float64           `json:"gross_pnl"` // before slippage and fees
	SlippageCost float64           `json:"slippage_cost"`
	Fees         float64           `json:"fees"`
	NetPnL       float64           `json:"net_pnl"`
	Reason       string            `json:"reason"`
}

// Exit reasons recorded on trades.
const (
	ExitStopLoss   = "stop_loss"
	ExitTakeProfit = "take_profit"
	ExitEndOfDay   = "end_of_day"
	ExitReplayEnd  = "replay_end"
)

// openPosition is the simulator's single in-flight position.
type openPosition struct {
	signal       *signals.Signal
	entryIndex   int
	entryTime    time.Time
	decisionPx   float64 // signal entry price, pre-slippage
	fillPx       float64 // slippage-adjusted
	entrySlipPts float64
	quantity     float64
}

// Simulator replays candles through a signal registry.
type Simulator struct {
	config   Config
	registry *signals.Registry

	// Advisory size multiplier from the intelligence filter; 1 when absent.
	sizeMultiplier float64
}

// NewSimulator creates a simulator over the given registry.
func NewSimulator(config Config, registry *signals.Registry) *Simulator {
	if config.Quantity <= 0 {
		config.Quantity = 1
	}
	if config.ContractValue <= 0 {
		config.ContractValue = 1
	}
	return &Simulator{config: config, registry: registry, sizeMultiplier: 1}
}

// SetSizeMultiplier applies an advisory position-size multiplier (from the
// market intelligence filter) to every entry in the run.
func (s *Simulator) SetSizeMultiplier(m float64) {
	if m <= 0 || m > 1 {
		m = 1
	}
	s.sizeMultiplier = m
}

// Run replays the candle window and returns the aggregated report. The
// replay checks ctx between bars so a long run stays interruptible; on
// cancellation it returns the statistics of the bars processed so far.
func (s *Simulator) Run(ctx context.Context, candles []market.Candle) (*Report, error) {
	trades := make([]Trade, 0)
	if len(candles) == 0 {
		return buildReport(trades, 10), nil
	}

	ind := signals.ComputeIndicators(candles)

	var open *openPosition
	tradesToday := 0
	currentDate := candles[0].DateKey

	start := s.config.WarmupBars
	if start < 1 {
		start = 1
	}

	for i := start; i < len(candles); i++ {
		select {
		case <-ctx.Done():
			if open != nil {
				trades = append(trades, s.closeTrade(open, candles, i-1, candles[i-1].Close, ExitReplayEnd, ind))
			}
			return buildReport(trades, 10), ctx.Err()
		default:
		}

		bar := candles[i]
		if !bar.Valid() {
			continue
		}

		// Daily trade cap resets at each new calendar date in the stream
		if bar.DateKey != currentDate {
			currentDate = bar.DateKey
			tradesToday = 0
		}

		// Exit evaluation first, in fixed priority order
		if open != nil {
			if reason, exitPx := s.checkExit(open, bar); reason != "" {
				trades = append(trades, s.closeTrade(open, candles, i, exitPx, reason, ind))
				open = nil
			}
		}

		// Entry only while flat and under the daily cap; a non-positive
		// cap means unlimited
		if open == nil && (s.config.MaxTradesPerDay <= 0 || tradesToday < s.config.MaxTradesPerDay) {
			if s.config.Intraday && bar.Hour >= s.config.EODHour {
				continue
			}
			rg := regime.Classify(ind.EMA20, ind.EMA50, ind.RSI14, i)
			sig := s.registry.Evaluate(&signals.Context{
				Candles:    candles,
				Index:      i,
				Indicators: ind,
				Regime:     rg,
			})
			if sig != nil {
				open = s.openTrade(sig, i, bar, ind)
				tradesToday++
			}
		}
	}

	// Force-close whatever is still open at the end of the window
	if open != nil {
		last := len(candles) - 1
		trades = append(trades, s.closeTrade(open, candles, last, candles[last].Close, ExitReplayEnd, ind))
	}

	return buildReport(trades, 10), nil
}

// checkExit evaluates the open position against one bar: stop-loss first,
// then take-profit, then the intraday end-of-day close.
func (s *Simulator) checkExit(open *openPosition, bar market.Candle) (string, float64) {
	sig := open.signal
	if sig.Direction == signals.Long {
		if bar.Low <= sig.StopLoss {
			return ExitStopLoss, sig.StopLoss
		}
		if bar.High >= sig.TakeProfit {
			return ExitTakeProfit, sig.TakeProfit
		}
	} else {
		if bar.High >= sig.StopLoss {
			return ExitStopLoss, sig.StopLoss
		}
		if bar.Low <= sig.TakeProfit {
			return ExitTakeProfit, sig.TakeProfit
		}
	}
	if s.config.Intraday && bar.Hour >= s.config.EODHour {
		return ExitEndOfDay, bar.Close
	}
	return "", 0
}

// slippagePoints models adverse fill movement as a function of current
// volatility relative to its average: 0.5 * (1 + 0.5 * min(cur/avg, 2)) *
// tickSize points.
func (s *Simulator) slippagePoints(ind *signals.IndicatorSet, index int) float64 {
	cur := math.NaN()
	if index < len(ind.ATR14) {
		cur = ind.ATR14[index]
	}

	sum, n := 0.0, 0
	for j := 0; j <= index && j < len(ind.ATR14); j++ {
		if !math.IsNaN(ind.ATR14[j]) {
			sum += ind.ATR14[j]
			n++
		}
	}

	ratio := 1.0
	if n > 0 && sum > 0 && !math.IsNaN(cur) {
		ratio = math.Min(cur/(sum/float64(n)), 2)
	}
	return 0.5 * (1 + 0.5*ratio) * s.config.TickSize
}

func (s *Simulator) openTrade(sig *signals.Signal, index int, bar market.Candle, ind *signals.IndicatorSet) *openPosition {
	slip := s.slippagePoints(ind, index)
	fill := sig.EntryPrice + slip
	if sig.Direction == signals.Short {
		fill = sig.EntryPrice - slip
	}

	qty := s.config.Quantity * sig.SizeMultiplier * s.sizeMultiplier
	if qty <= 0 {
		qty = s.config.Quantity
	}

	return &openPosition{
		signal:       sig,
		entryIndex:   index,
		entryTime:    bar.Timestamp,
		decisionPx:   sig.EntryPrice,
		fillPx:       fill,
		entrySlipPts: slip,
		quantity:     qty,
	}
}

func (s *Simulator) closeTrade(open *openPosition, candles []market.Candle, index int, exitDecisionPx float64, reason string, ind *signals.IndicatorSet) Trade {
	sig := open.signal
	exitSlip := s.slippagePoints(ind, index)
	exitFill := exitDecisionPx - exitSlip
	if sig.Direction == signals.Short {
		exitFill = exitDecisionPx + exitSlip
	}

	points := exitDecisionPx - open.decisionPx
	if sig.Direction == signals.Short {
		points = open.decisionPx - exitDecisionPx
	}

	gross := points * open.quantity * s.config.ContractValue
	slippageCost := (open.entrySlipPts + exitSlip) * open.quantity * s.config.ContractValue
	fees := s.config.FixedFees()

	return Trade{
		PatternID:    sig.PatternID,
		Direction:    sig.Direction,
		Regime:       sig.Regime,
		EntryIndex:   open.entryIndex,
		ExitIndex:    index,
		EntryTime:    open.entryTime,
		ExitTime:     candles[index].Timestamp,
		EntryPrice:   open.fillPx,
		ExitPrice:    exitFill,
		Quantity:     open.quantity,
		StopLoss:     sig.StopLoss,
		TakeProfit:   sig.TakeProfit,
		ExitReason:   reason,
		GrossPnL:     gross,
		SlippageCost: slippageCost,
		Fees:         fees,
		NetPnL:       gross - slippageCost - fees,
		Reason:       sig.Reason,
	}
}
