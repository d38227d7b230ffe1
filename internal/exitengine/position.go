package exitengine

import (
	"time"

	"github.com/google/uuid"

	"quant-trading-engine/internal/signals"
)

// Status is the lifecycle state of a monitored position. A position moves
// active -> closing -> closed exactly once; partial exits reduce the
// remaining quantity while it stays active.
type Status string

const (
	StatusActive  Status = "active"
	StatusClosing Status = "closing"
	StatusClosed  Status = "closed"
)

// MonitoredPosition is a live position owned exclusively by the exit engine
// while active. Ownership transfers to the persistence store on close.
type MonitoredPosition struct {
	ID                string            `json:"id"`
	AccountID         string            `json:"account_id"`
	Symbol            string            `json:"symbol"`
	Side              signals.Direction `json:"side"`
	Quantity          float64           `json:"quantity"` // original
	RemainingQuantity float64           `json:"remaining_quantity"`
	EntryPrice        float64           `json:"entry_price"`
	LatestPrice       float64           `json:"latest_price"`
	UnrealizedPnL     float64           `json:"unrealized_pnl"`
	EntryTime         time.Time         `json:"entry_time"`
	Status            Status            `json:"status"`
	Rules             *ExitRules        `json:"rules"`

	// exitPending guards against enqueueing a second exit for the same
	// position while one is in flight with the execution worker.
	exitPending bool
}

// NewMonitoredPosition builds an active position with a fresh ID.
func NewMonitoredPosition(accountID, symbol string, side signals.Direction, quantity, entryPrice float64, rules *ExitRules) *MonitoredPosition {
	return &MonitoredPosition{
		ID:                uuid.NewString(),
		AccountID:         accountID,
		Symbol:            symbol,
		Side:              side,
		Quantity:          quantity,
		RemainingQuantity: quantity,
		EntryPrice:        entryPrice,
		EntryTime:         time.Now(),
		Status:            StatusActive,
		Rules:             rules,
	}
}

// snapshot returns a value copy whose rule state is detached from the live
// position, safe to hand out while the check loop keeps mutating rules.
func (p *MonitoredPosition) snapshot() MonitoredPosition {
	out := *p
	out.Rules = p.Rules.Clone()
	return out
}

// profitPercent returns the unrealized profit of the position at the given
// price, in percent of entry.
func (p *MonitoredPosition) profitPercent(price float64) float64 {
	if p.Side == signals.Long {
		return (price - p.EntryPrice) / p.EntryPrice * 100
	}
	return (p.EntryPrice - price) / p.EntryPrice * 100
}

// realizedPnL computes the P&L for exiting qty at the given price.
func (p *MonitoredPosition) realizedPnL(qty, price float64) float64 {
	if p.Side == signals.Long {
		return (price - p.EntryPrice) * qty
	}
	return (p.EntryPrice - price) * qty
}
