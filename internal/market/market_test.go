package market

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandle(t *testing.T) {
	ts := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	c := NewCandle(ts, 100, 105, 98, 103, 5000)

	t.Run("derived fields", func(t *testing.T) {
		assert.Equal(t, 14, c.Hour)
		assert.Equal(t, "2025-03-10", c.DateKey)
	})

	t.Run("anatomy", func(t *testing.T) {
		assert.True(t, c.IsBullish())
		assert.InDelta(t, 3.0, c.Body(), 1e-9)
		assert.InDelta(t, 2.0, c.UpperWick(), 1e-9)
		assert.InDelta(t, 2.0, c.LowerWick(), 1e-9)
	})

	t.Run("validity", func(t *testing.T) {
		assert.True(t, c.Valid())
		bad := NewCandle(ts, 100, 97, 98, 99, 0)
		assert.False(t, bad.Valid(), "high below low is invalid")
		zero := NewCandle(ts, 0, 105, 98, 103, 0)
		assert.False(t, zero.Valid())
	})
}

func TestPriceCache(t *testing.T) {
	t.Run("returns the latest tick", func(t *testing.T) {
		cache := NewPriceCache(time.Minute)
		cache.Update("ES", 5000.25, time.Now())
		cache.Update("ES", 5001.50, time.Now())

		price, ok := cache.Get("ES")
		require.True(t, ok)
		assert.InDelta(t, 5001.50, price, 1e-9)
	})

	t.Run("unknown symbol misses", func(t *testing.T) {
		cache := NewPriceCache(time.Minute)
		_, ok := cache.Get("NQ")
		assert.False(t, ok)
	})

	t.Run("stale tick treated as absent", func(t *testing.T) {
		cache := NewPriceCache(50 * time.Millisecond)
		cache.Update("ES", 5000, time.Now().Add(-time.Second))

		_, ok := cache.Get("ES")
		assert.False(t, ok)

		// The raw tick stays inspectable for diagnostics.
		tick, found := cache.GetTick("ES")
		require.True(t, found)
		assert.InDelta(t, 5000.0, tick.Price, 1e-9)
	})

	t.Run("hit and miss counters", func(t *testing.T) {
		cache := NewPriceCache(time.Minute)
		cache.Update("ES", 5000, time.Now())
		cache.Get("ES")
		cache.Get("missing")

		hits, misses := cache.Stats()
		assert.Equal(t, int64(1), hits)
		assert.Equal(t, int64(1), misses)
	})
}

func TestLoadCandlesCSV(t *testing.T) {
	writeCSV := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "candles.csv")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("parses rfc3339 rows", func(t *testing.T) {
		path := writeCSV(t, "timestamp,open,high,low,close,volume\n"+
			"2025-03-10T09:30:00Z,100,101,99,100.5,1500\n"+
			"2025-03-10T09:31:00Z,100.5,102,100,101.5,1800\n")

		candles, err := LoadCandlesCSV(path)
		require.NoError(t, err)
		require.Len(t, candles, 2)
		assert.InDelta(t, 100.5, candles[0].Close, 1e-9)
		assert.Equal(t, 9, candles[0].Hour)
		assert.Equal(t, "2025-03-10", candles[1].DateKey)
	})

	t.Run("parses unix second timestamps", func(t *testing.T) {
		path := writeCSV(t, "timestamp,open,high,low,close,volume\n"+
			"1741599000,100,101,99,100.5,1500\n")

		candles, err := LoadCandlesCSV(path)
		require.NoError(t, err)
		require.Len(t, candles, 1)
		assert.Equal(t, int64(1741599000), candles[0].Timestamp.Unix())
	})

	t.Run("rejects malformed rows", func(t *testing.T) {
		path := writeCSV(t, "timestamp,open,high,low,close,volume\n"+
			"2025-03-10T09:30:00Z,abc,101,99,100.5,1500\n")
		_, err := LoadCandlesCSV(path)
		assert.Error(t, err)
	})

	t.Run("rejects empty files", func(t *testing.T) {
		path := writeCSV(t, "timestamp,open,high,low,close,volume\n")
		_, err := LoadCandlesCSV(path)
		assert.Error(t, err)
	})
}
