package market

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tick is the latest observed price for a symbol.
type Tick struct {
	Symbol    string
	Price     float64
	UpdatedAt time.Time
}

// PriceCache provides thread-safe caching of the latest tick per symbol.
// The refresh task is the single writer per symbol; readers get an
// atomically swapped snapshot, so no entry is ever observed half-written.
// A tick older than the staleness window is treated as absent.
type PriceCache struct {
	ticks     sync.Map // symbol -> *Tick (immutable once stored)
	staleness time.Duration

	hitCount  int64
	missCount int64
}

// NewPriceCache creates a price cache with the given staleness window.
func NewPriceCache(staleness time.Duration) *PriceCache {
	if staleness <= 0 {
		staleness = 5 * time.Second
	}
	return &PriceCache{staleness: staleness}
}

// Update stores a new tick for a symbol. The entry is replaced wholesale.
func (c *PriceCache) Update(symbol string, price float64, at time.Time) {
	c.ticks.Store(symbol, &Tick{Symbol: symbol, Price: price, UpdatedAt: at})
}

// Get returns the cached price for a symbol, or false when the symbol is
// unknown or the tick is stale.
func (c *PriceCache) Get(symbol string) (float64, bool) {
	val, ok := c.ticks.Load(symbol)
	if !ok {
		atomic.AddInt64(&c.missCount, 1)
		return 0, false
	}
	tick := val.(*Tick)
	if time.Since(tick.UpdatedAt) > c.staleness {
		atomic.AddInt64(&c.missCount, 1)
		return 0, false
	}
	atomic.AddInt64(&c.hitCount, 1)
	return tick.Price, true
}

// GetTick returns the full cached tick regardless of staleness, for
// diagnostics. The freshness check in Get remains authoritative.
func (c *PriceCache) GetTick(symbol string) (*Tick, bool) {
	val, ok := c.ticks.Load(symbol)
	if !ok {
		return nil, false
	}
	return val.(*Tick), true
}

// Stats returns the cumulative hit and miss counts.
func (c *PriceCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hitCount), atomic.LoadInt64(&c.missCount)
}
