package backtest

import (
	"quant-trading-engine/internal/signals"
)

// ProfitFactorCap is reported when there are winning trades and no losing
// trades, keeping the ratio finite for presentation layers.
const ProfitFactorCap = 9999.0

// Breakdown aggregates trade outcomes for one pattern or direction.
type Breakdown struct {
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"`
	NetPnL  float64 `json:"net_pnl"`
}

// Report is the structured backtest summary, complete enough for a thin
// presentation layer to render without further computation.
type Report struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	GrossProfit   float64 `json:"gross_profit"`
	GrossLoss     float64 `json:"gross_loss"`
	NetPnL        float64 `json:"net_pnl"`
	TotalFees     float64 `json:"total_fees"`
	TotalSlippage float64 `json:"total_slippage"`
	ProfitFactor  float64 `json:"profit_factor"`
	MaxDrawdown   float64 `json:"max_drawdown"`

	ByPattern   map[string]*Breakdown            `json:"by_pattern"`
	ByDirection map[signals.Direction]*Breakdown `json:"by_direction"`

	RecentTrades []Trade `json:"recent_trades"`
	AllTrades    []Trade `json:"-"`
}

// buildReport computes every statistic in a single pass after the full
// replay, rather than incrementally, to avoid floating accumulation drift
// over very long runs.
func buildReport(trades []Trade, recentN int) *Report {
	r := &Report{
		ByPattern:   make(map[string]*Breakdown),
		ByDirection: make(map[signals.Direction]*Breakdown),
		AllTrades:   trades,
	}

	r.TotalTrades = len(trades)
	for _, t := range trades {
		win := t.NetPnL > 0
		if win {
			r.WinningTrades++
			r.GrossProfit += t.NetPnL
		} else {
			r.LosingTrades++
			r.GrossLoss += -t.NetPnL
		}
		r.NetPnL += t.NetPnL
		r.TotalFees += t.Fees
		r.TotalSlippage += t.SlippageCost

		applyBreakdown(breakdownFor(r.ByPattern, t.PatternID), t, win)
		applyBreakdown(breakdownForDirection(r.ByDirection, t.Direction), t, win)
	}

	if r.TotalTrades > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades) * 100
	}

	switch {
	case r.GrossLoss > 0:
		r.ProfitFactor = r.GrossProfit / r.GrossLoss
		if r.ProfitFactor > ProfitFactorCap {
			r.ProfitFactor = ProfitFactorCap
		}
	case r.GrossProfit > 0:
		r.ProfitFactor = ProfitFactorCap
	default:
		r.ProfitFactor = 0
	}

	r.MaxDrawdown = maxDrawdown(trades)

	if recentN > len(trades) {
		recentN = len(trades)
	}
	r.RecentTrades = append([]Trade(nil), trades[len(trades)-recentN:]...)

	return r
}

// maxDrawdown computes the peak-to-trough decline on cumulative net P&L.
func maxDrawdown(trades []Trade) float64 {
	cum, peak, maxDD := 0.0, 0.0, 0.0
	for _, t := range trades {
		cum += t.NetPnL
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func breakdownFor(m map[string]*Breakdown, key string) *Breakdown {
	b, ok := m[key]
	if !ok {
		b = &Breakdown{}
		m[key] = b
	}
	return b
}

func breakdownForDirection(m map[signals.Direction]*Breakdown, key signals.Direction) *Breakdown {
	b, ok := m[key]
	if !ok {
		b = &Breakdown{}
		m[key] = b
	}
	return b
}

func applyBreakdown(b *Breakdown, t Trade, win bool) {
	b.Trades++
	if win {
		b.Wins++
	} else {
		b.Losses++
	}
	b.NetPnL += t.NetPnL
	b.WinRate = float64(b.Wins) / float64(b.Trades) * 100
}
