package store

import (
	"time"

	"quant-trading-engine/internal/signals"
)

// TradeRecord is a closed trade as persisted.
type TradeRecord struct {
	ID           string            `json:"id"`
	AccountID    string            `json:"account_id"`
	Symbol       string            `json:"symbol"`
	Side         signals.Direction `json:"side"`
	PatternID    string            `json:"pattern_id"`
	Quantity     float64           `json:"quantity"`
	EntryPrice   float64           `json:"entry_price"`
	ExitPrice    float64           `json:"exit_price"`
	EntryTime    time.Time         `json:"entry_time"`
	ExitTime     time.Time         `json:"exit_time"`
	ExitReason   string            `json:"exit_reason"`
	GrossPnL     float64           `json:"gross_pnl"`
	SlippageCost float64           `json:"slippage_cost"`
	Fees         float64           `json:"fees"`
	NetPnL       float64           `json:"net_pnl"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Account aggregates balance and win/loss statistics.
type Account struct {
	ID        string    `json:"id"`
	Balance   float64   `json:"balance"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WinRate returns the account win rate in percent, zero with no trades.
func (a *Account) WinRate() float64 {
	total := a.Wins + a.Losses
	if total == 0 {
		return 0
	}
	return float64(a.Wins) / float64(total) * 100
}
