// Package exitengine monitors live positions against their exit rules and
// triggers at most one exit action per tick per position.
package exitengine

import (
	"time"

	"quant-trading-engine/internal/signals"
)

// TriggerMode selects how a stop or target price is derived.
type TriggerMode string

const (
	ModeFixed      TriggerMode = "fixed"       // absolute price
	ModePercent    TriggerMode = "percent"     // percent distance from entry
	ModeATR        TriggerMode = "atr"         // ATR multiple from entry
	ModeRiskReward TriggerMode = "risk_reward" // multiple of the stop distance (take-profit only)
)

// StopLossRule closes the remaining quantity when price crosses the trigger.
type StopLossRule struct {
	Enabled      bool        `json:"enabled"`
	Mode         TriggerMode `json:"mode"`
	Value        float64     `json:"value"`
	TriggerPrice float64     `json:"trigger_price"`
}

// TakeProfitRule closes the remaining quantity at the profit target.
type TakeProfitRule struct {
	Enabled      bool        `json:"enabled"`
	Mode         TriggerMode `json:"mode"`
	Value        float64     `json:"value"`
	TriggerPrice float64     `json:"trigger_price"`
}

// TrailingStopRule activates once unrealized profit crosses the activation
// percent, then tracks a high-water mark that can only improve for the life
// of the activation.
type TrailingStopRule struct {
	Enabled           bool    `json:"enabled"`
	ActivationPercent float64 `json:"activation_percent"`
	TrailPercent      float64 `json:"trail_percent"`
	Activated         bool    `json:"activated"`
	HighWaterMark     float64 `json:"high_water_mark"`
	TriggerPrice      float64 `json:"trigger_price"`
}

// TimeStopRule closes the position after a maximum holding duration.
type TimeStopRule struct {
	Enabled bool          `json:"enabled"`
	MaxHold time.Duration `json:"max_hold"`
}

// BreakEvenRule is a one-shot rule that moves the stop-loss trigger to the
// entry price once the activation profit is reached. It never closes the
// position itself.
type BreakEvenRule struct {
	Enabled           bool    `json:"enabled"`
	ActivationPercent float64 `json:"activation_percent"`
	Activated         bool    `json:"activated"`
}

// PartialExit reduces the position by ExitPercent of the original quantity
// once unrealized profit reaches ProfitPercent. Levels fire at most once.
type PartialExit struct {
	ProfitPercent float64 `json:"profit_percent"`
	ExitPercent   float64 `json:"exit_percent"`
	Executed      bool    `json:"executed"`
}

// ExitRules bundles the independent, optionally-enabled sub-rules attached
// to one monitored position. Trigger prices are computed once at attachment
// and recomputed only when their inputs change.
type ExitRules struct {
	StopLoss     StopLossRule     `json:"stop_loss"`
	TakeProfit   TakeProfitRule   `json:"take_profit"`
	TrailingStop TrailingStopRule `json:"trailing_stop"`
	TimeStop     TimeStopRule     `json:"time_stop"`
	BreakEven    BreakEvenRule    `json:"break_even"`
	PartialExits []PartialExit    `json:"partial_exits"`
}

// Clone returns an independent copy of the rule set, including the partial
// exit levels.
func (r *ExitRules) Clone() *ExitRules {
	if r == nil {
		return nil
	}
	out := *r
	if len(r.PartialExits) > 0 {
		out.PartialExits = make([]PartialExit, len(r.PartialExits))
		copy(out.PartialExits, r.PartialExits)
	}
	return &out
}

// ComputeTriggers resolves the stop-loss and take-profit trigger prices for
// the given entry. atr may be zero when no ATR-based mode is in use.
func (r *ExitRules) ComputeTriggers(side signals.Direction, entryPrice, atr float64) {
	long := side == signals.Long

	if r.StopLoss.Enabled {
		switch r.StopLoss.Mode {
		case ModeFixed:
			r.StopLoss.TriggerPrice = r.StopLoss.Value
		case ModePercent:
			if long {
				r.StopLoss.TriggerPrice = entryPrice * (1 - r.StopLoss.Value/100)
			} else {
				r.StopLoss.TriggerPrice = entryPrice * (1 + r.StopLoss.Value/100)
			}
		case ModeATR:
			if long {
				r.StopLoss.TriggerPrice = entryPrice - r.StopLoss.Value*atr
			} else {
				r.StopLoss.TriggerPrice = entryPrice + r.StopLoss.Value*atr
			}
		}
	}

	if r.TakeProfit.Enabled {
		switch r.TakeProfit.Mode {
		case ModeFixed:
			r.TakeProfit.TriggerPrice = r.TakeProfit.Value
		case ModePercent:
			if long {
				r.TakeProfit.TriggerPrice = entryPrice * (1 + r.TakeProfit.Value/100)
			} else {
				r.TakeProfit.TriggerPrice = entryPrice * (1 - r.TakeProfit.Value/100)
			}
		case ModeATR:
			if long {
				r.TakeProfit.TriggerPrice = entryPrice + r.TakeProfit.Value*atr
			} else {
				r.TakeProfit.TriggerPrice = entryPrice - r.TakeProfit.Value*atr
			}
		case ModeRiskReward:
			stopDist := entryPrice - r.StopLoss.TriggerPrice
			if !long {
				stopDist = r.StopLoss.TriggerPrice - entryPrice
			}
			if stopDist > 0 {
				if long {
					r.TakeProfit.TriggerPrice = entryPrice + r.TakeProfit.Value*stopDist
				} else {
					r.TakeProfit.TriggerPrice = entryPrice - r.TakeProfit.Value*stopDist
				}
			}
		}
	}
}

// updateTrailing advances the trailing stop for the current price and
// reports whether it triggered. The high-water mark only ever improves.
func (r *ExitRules) updateTrailing(side signals.Direction, entryPrice, price float64) bool {
	ts := &r.TrailingStop
	if !ts.Enabled {
		return false
	}
	long := side == signals.Long

	profitPercent := (price - entryPrice) / entryPrice * 100
	if !long {
		profitPercent = (entryPrice - price) / entryPrice * 100
	}

	if !ts.Activated {
		if profitPercent < ts.ActivationPercent {
			return false
		}
		ts.Activated = true
		ts.HighWaterMark = price
	}

	if long {
		if price > ts.HighWaterMark {
			ts.HighWaterMark = price
		}
		ts.TriggerPrice = ts.HighWaterMark * (1 - ts.TrailPercent/100)
		return price <= ts.TriggerPrice
	}

	if price < ts.HighWaterMark {
		ts.HighWaterMark = price
	}
	ts.TriggerPrice = ts.HighWaterMark * (1 + ts.TrailPercent/100)
	return price >= ts.TriggerPrice
}
