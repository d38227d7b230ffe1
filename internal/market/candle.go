package market

import (
	"context"
	"time"
)

// Candle represents one OHLCV price observation over a fixed interval.
// Candle sequences are ordered oldest to newest.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`

	// Derived at construction, used for session-based filtering
	Hour    int    `json:"hour"`
	DateKey string `json:"date_key"` // YYYY-MM-DD
}

// NewCandle builds a candle and populates the derived session fields.
func NewCandle(ts time.Time, open, high, low, close, volume float64) Candle {
	return Candle{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
		Hour:      ts.Hour(),
		DateKey:   ts.Format("2006-01-02"),
	}
}

// Valid reports whether the candle carries a usable OHLC range. Bars with
// missing or nonsense fields are skipped by callers rather than repaired.
func (c Candle) Valid() bool {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return false
	}
	if c.High < c.Low {
		return false
	}
	return true
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// UpperWick returns the distance from the body top to the high.
func (c Candle) UpperWick() float64 {
	top := c.Open
	if c.Close > top {
		top = c.Close
	}
	return c.High - top
}

// LowerWick returns the distance from the body bottom to the low.
func (c Candle) LowerWick() float64 {
	bottom := c.Open
	if c.Close < bottom {
		bottom = c.Close
	}
	return bottom - c.Low
}

// Closes extracts the close series from a candle sequence.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// CandleSource is the boundary to the historical/live candle provider.
// Implementations must drop malformed bars instead of failing the query;
// a short or empty history is a valid result.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]Candle, error)
}
