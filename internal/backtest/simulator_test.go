package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-trading-engine/internal/market"
	"quant-trading-engine/internal/signals"
)

// fireAtGenerator emits one long signal at a fixed bar index with levels
// relative to that bar's close.
type fireAtGenerator struct {
	index     int
	stopDelta float64
	tpDelta   float64
	everyBar  bool
}

func (g *fireAtGenerator) ID() string { return "fire_at" }

func (g *fireAtGenerator) Evaluate(ctx *signals.Context) *signals.Signal {
	if !g.everyBar && ctx.Index != g.index {
		return nil
	}
	c := ctx.Candle()
	return &signals.Signal{
		PatternID:      g.ID(),
		Direction:      signals.Long,
		EntryPrice:     c.Close,
		StopLoss:       c.Close - g.stopDelta,
		TakeProfit:     c.Close + g.tpDelta,
		Confidence:     70,
		SizeMultiplier: 1,
	}
}

func registryWith(gen signals.Generator) *signals.Registry {
	r := signals.NewRegistry()
	r.Register(gen, true, signals.Performance{})
	return r
}

func flatDay(n int, day time.Time) []market.Candle {
	candles := make([]market.Candle, n)
	for i := range candles {
		candles[i] = market.NewCandle(day.Add(time.Duration(i)*time.Minute),
			100, 101, 99, 100, 1000)
	}
	return candles
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WarmupBars = 10
	cfg.MaxTradesPerDay = 0
	cfg.Intraday = false
	return cfg
}

func TestSimulatorStopLossExit(t *testing.T) {
	day := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	candles := flatDay(20, day)
	// Bar 12 trades through the stop at 95.
	candles[12] = market.NewCandle(candles[12].Timestamp, 100, 101, 94, 96, 1000)

	sim := NewSimulator(testConfig(), registryWith(&fireAtGenerator{index: 11, stopDelta: 5, tpDelta: 10}))
	report, err := sim.Run(context.Background(), candles)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalTrades)

	trade := report.AllTrades[0]
	assert.Equal(t, ExitStopLoss, trade.ExitReason)
	assert.Equal(t, 11, trade.EntryIndex)
	assert.Equal(t, 12, trade.ExitIndex)
	assert.Less(t, trade.NetPnL, 0.0)
	// Stop fills at the stop level pre-slippage: gross is the full 5 points.
	assert.InDelta(t, -5.0, trade.GrossPnL, 1e-9)
}

func TestSimulatorTakeProfitExit(t *testing.T) {
	day := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	candles := flatDay(20, day)
	candles[13] = market.NewCandle(candles[13].Timestamp, 100, 111, 99, 110, 1000)

	sim := NewSimulator(testConfig(), registryWith(&fireAtGenerator{index: 11, stopDelta: 5, tpDelta: 10}))
	report, err := sim.Run(context.Background(), candles)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalTrades)

	trade := report.AllTrades[0]
	assert.Equal(t, ExitTakeProfit, trade.ExitReason)
	assert.Equal(t, 13, trade.ExitIndex)
	assert.InDelta(t, 10.0, trade.GrossPnL, 1e-9)
}

func TestSimulatorNetPnLIdentity(t *testing.T) {
	day := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	candles := flatDay(40, day)
	candles[12] = market.NewCandle(candles[12].Timestamp, 100, 101, 94, 96, 1000)
	candles[25] = market.NewCandle(candles[25].Timestamp, 100, 111, 99, 110, 1000)

	gen := &fireAtGenerator{stopDelta: 5, tpDelta: 10, everyBar: true}
	sim := NewSimulator(testConfig(), registryWith(gen))
	report, err := sim.Run(context.Background(), candles)
	require.NoError(t, err)
	require.NotEmpty(t, report.AllTrades)

	for _, trade := range report.AllTrades {
		assert.InDelta(t, trade.GrossPnL-trade.SlippageCost-trade.Fees, trade.NetPnL, 1e-9)
		assert.Greater(t, trade.SlippageCost, 0.0)
		assert.InDelta(t, testConfig().FixedFees(), trade.Fees, 1e-9)
	}
}

func TestSimulatorDeterminism(t *testing.T) {
	day := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	candles := flatDay(60, day)
	candles[12] = market.NewCandle(candles[12].Timestamp, 100, 101, 94, 96, 1000)
	candles[30] = market.NewCandle(candles[30].Timestamp, 100, 111, 99, 110, 1000)

	run := func() *Report {
		sim := NewSimulator(testConfig(), registryWith(&fireAtGenerator{stopDelta: 5, tpDelta: 10, everyBar: true}))
		report, err := sim.Run(context.Background(), candles)
		require.NoError(t, err)
		return report
	}

	first, second := run(), run()
	require.Equal(t, first.TotalTrades, second.TotalTrades)
	assert.InDelta(t, first.NetPnL, second.NetPnL, 1e-12)
	for i := range first.AllTrades {
		assert.Equal(t, first.AllTrades[i].EntryIndex, second.AllTrades[i].EntryIndex)
		assert.Equal(t, first.AllTrades[i].ExitIndex, second.AllTrades[i].ExitIndex)
		assert.InDelta(t, first.AllTrades[i].NetPnL, second.AllTrades[i].NetPnL, 1e-12)
	}
}

func TestSimulatorDailyTradeCap(t *testing.T) {
	day1 := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)

	// Every bar stops out the position opened on the previous bar.
	mk := func(day time.Time) []market.Candle {
		candles := make([]market.Candle, 30)
		for i := range candles {
			candles[i] = market.NewCandle(day.Add(time.Duration(i)*time.Minute),
				100, 101, 94, 100, 1000)
		}
		return candles
	}
	candles := append(mk(day1), mk(day2)...)

	cfg := testConfig()
	cfg.MaxTradesPerDay = 2
	sim := NewSimulator(cfg, registryWith(&fireAtGenerator{stopDelta: 5, tpDelta: 50, everyBar: true}))
	report, err := sim.Run(context.Background(), candles)
	require.NoError(t, err)

	byDay := make(map[string]int)
	for _, trade := range report.AllTrades {
		byDay[trade.EntryTime.Format("2006-01-02")]++
	}
	for d, count := range byDay {
		assert.LessOrEqual(t, count, 2, "day %s exceeded the cap", d)
	}
	assert.Equal(t, 4, report.TotalTrades)
}

func TestSimulatorSinglePosition(t *testing.T) {
	day := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	// No bar ever hits the stop or target: one trade for the whole window,
	// force-closed at replay end.
	candles := flatDay(30, day)

	sim := NewSimulator(testConfig(), registryWith(&fireAtGenerator{stopDelta: 5, tpDelta: 50, everyBar: true}))
	report, err := sim.Run(context.Background(), candles)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalTrades)
	assert.Equal(t, ExitReplayEnd, report.AllTrades[0].ExitReason)
}

func TestSimulatorEndOfDayClose(t *testing.T) {
	day := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	candles := flatDay(90, day) // crosses 15:00

	cfg := testConfig()
	cfg.Intraday = true
	cfg.EODHour = 15
	sim := NewSimulator(cfg, registryWith(&fireAtGenerator{index: 11, stopDelta: 50, tpDelta: 50}))
	report, err := sim.Run(context.Background(), candles)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalTrades)

	trade := report.AllTrades[0]
	assert.Equal(t, ExitEndOfDay, trade.ExitReason)
	assert.Equal(t, 15, candles[trade.ExitIndex].Hour)
}

func TestSimulatorCancelledContext(t *testing.T) {
	day := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	candles := flatDay(30, day)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := NewSimulator(testConfig(), registryWith(&fireAtGenerator{index: 11, stopDelta: 5, tpDelta: 10}))
	report, err := sim.Run(ctx, candles)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 0, report.TotalTrades)
}

func TestReportProfitFactorCap(t *testing.T) {
	day := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	candles := flatDay(20, day)
	candles[13] = market.NewCandle(candles[13].Timestamp, 100, 111, 99, 110, 1000)

	cfg := testConfig()
	cfg.Commission = 0
	cfg.ExchangeFee = 0
	cfg.RegulatoryFee = 0
	cfg.ClearingFee = 0
	cfg.TickSize = 0 // no slippage: the only trade is a pure winner
	sim := NewSimulator(cfg, registryWith(&fireAtGenerator{index: 11, stopDelta: 5, tpDelta: 10}))
	report, err := sim.Run(context.Background(), candles)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalTrades)
	assert.Equal(t, 1, report.WinningTrades)
	assert.InDelta(t, ProfitFactorCap, report.ProfitFactor, 1e-9)
}

func TestReportBreakdowns(t *testing.T) {
	trades := []Trade{
		{PatternID: "a", Direction: signals.Long, NetPnL: 100, Fees: 25, SlippageCost: 1},
		{PatternID: "a", Direction: signals.Long, NetPnL: -50, Fees: 25, SlippageCost: 1},
		{PatternID: "b", Direction: signals.Short, NetPnL: 30, Fees: 25, SlippageCost: 1},
	}
	r := buildReport(trades, 10)

	assert.Equal(t, 3, r.TotalTrades)
	assert.Equal(t, 2, r.WinningTrades)
	assert.InDelta(t, 80.0, r.NetPnL, 1e-9)
	assert.InDelta(t, 75.0, r.TotalFees, 1e-9)

	require.Contains(t, r.ByPattern, "a")
	assert.Equal(t, 2, r.ByPattern["a"].Trades)
	assert.InDelta(t, 50.0, r.ByPattern["a"].WinRate, 1e-9)
	require.Contains(t, r.ByDirection, signals.Short)
	assert.Equal(t, 1, r.ByDirection[signals.Short].Wins)

	// Drawdown: peak 100 after the first trade, trough 50 after the second.
	assert.InDelta(t, 50.0, r.MaxDrawdown, 1e-9)
}
