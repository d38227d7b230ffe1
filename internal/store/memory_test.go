package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-trading-engine/internal/signals"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	trade := func(id string, netPnL float64, exitTime time.Time) *TradeRecord {
		return &TradeRecord{
			ID:        id,
			AccountID: "acct",
			Symbol:    "ES",
			Side:      signals.Long,
			PatternID: "liquidity_sweep",
			Quantity:  1,
			ExitTime:  exitTime,
			NetPnL:    netPnL,
		}
	}

	t.Run("settles balance and counters with the trade", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.EnsureAccount(ctx, "acct", 100000))

		now := time.Now()
		require.NoError(t, s.RecordTrade(ctx, trade("t1", 250, now)))
		require.NoError(t, s.RecordTrade(ctx, trade("t2", -100, now.Add(time.Minute))))
		require.NoError(t, s.RecordTrade(ctx, trade("t3", 0, now.Add(2*time.Minute))))

		acct, err := s.GetAccount(ctx, "acct")
		require.NoError(t, err)
		assert.InDelta(t, 100150.0, acct.Balance, 1e-9)
		assert.Equal(t, 1, acct.Wins)
		assert.Equal(t, 1, acct.Losses)
		assert.InDelta(t, 50.0, acct.WinRate(), 1e-9)
	})

	t.Run("unknown account is rejected", func(t *testing.T) {
		s := NewMemoryStore()
		err := s.RecordTrade(ctx, trade("t1", 10, time.Now()))
		assert.ErrorIs(t, err, ErrAccountNotFound)

		_, err = s.GetAccount(ctx, "missing")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("ensure account is idempotent", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.EnsureAccount(ctx, "acct", 1000))
		require.NoError(t, s.RecordTrade(ctx, trade("t1", 50, time.Now())))
		require.NoError(t, s.EnsureAccount(ctx, "acct", 999999))

		acct, err := s.GetAccount(ctx, "acct")
		require.NoError(t, err)
		assert.InDelta(t, 1050.0, acct.Balance, 1e-9)
	})

	t.Run("trades list newest first with limit", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.EnsureAccount(ctx, "acct", 0))

		base := time.Now()
		for i := 0; i < 5; i++ {
			require.NoError(t, s.RecordTrade(ctx,
				trade(string(rune('a'+i)), float64(i), base.Add(time.Duration(i)*time.Minute))))
		}

		trades, err := s.ListTrades(ctx, "acct", 3)
		require.NoError(t, err)
		require.Len(t, trades, 3)
		assert.Equal(t, "e", trades[0].ID)
		assert.Equal(t, "c", trades[2].ID)
	})
}
