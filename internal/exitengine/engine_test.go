package exitengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-trading-engine/internal/market"
	"quant-trading-engine/internal/metrics"
	"quant-trading-engine/internal/signals"
)

// recordingExecutor collects exit events and can fail a configured number
// of times first.
type recordingExecutor struct {
	events    []*ExitEvent
	failures  int
	callCount int
}

func (x *recordingExecutor) ExecuteExit(_ context.Context, event *ExitEvent) error {
	x.callCount++
	if x.failures > 0 {
		x.failures--
		return errors.New("order gateway unavailable")
	}
	x.events = append(x.events, event)
	return nil
}

func newTestEngine(executor Executor, staleness time.Duration) (*Engine, *market.PriceCache) {
	cache := market.NewPriceCache(staleness)
	m := metrics.NewEngineMetrics(prometheus.NewRegistry())
	engine := NewEngine(DefaultConfig(), cache, nil, executor, nil, m, zerolog.Nop())
	return engine, cache
}

// drainOne pulls the next queued exit and executes it synchronously, in
// place of the background worker.
func drainOne(t *testing.T, e *Engine) {
	t.Helper()
	select {
	case req := <-e.exitCh:
		e.executeExit(context.Background(), req)
	default:
		t.Fatal("no exit was queued")
	}
}

func assertNoExit(t *testing.T, e *Engine) {
	t.Helper()
	select {
	case req := <-e.exitCh:
		t.Fatalf("unexpected exit queued: %s", req.reason)
	default:
	}
}

func TestEngineStopLossBeatsTakeProfit(t *testing.T) {
	executor := &recordingExecutor{}
	engine, cache := newTestEngine(executor, time.Minute)

	// Degenerate rules where one price satisfies both: priority must pick
	// the stop.
	rules := &ExitRules{
		StopLoss:   StopLossRule{Enabled: true, Mode: ModePercent, Value: 2},
		TakeProfit: TakeProfitRule{Enabled: true, Mode: ModeFixed, Value: 94},
	}
	pos := engine.Attach("acct", "ES", signals.Long, 1, 100, 0, rules)

	cache.Update("ES", 95, time.Now())
	engine.CheckPositions()
	drainOne(t, engine)

	require.Len(t, executor.events, 1)
	event := executor.events[0]
	assert.Equal(t, ReasonStopLoss, event.Reason)
	assert.InDelta(t, 98.0, event.Price, 1e-9, "stop fills at its trigger price")
	assert.False(t, event.Partial)

	_, found := engine.Position(pos.ID)
	assert.False(t, found, "closed position leaves the monitoring set")
}

func TestEngineTakeProfit(t *testing.T) {
	executor := &recordingExecutor{}
	engine, cache := newTestEngine(executor, time.Minute)

	rules := &ExitRules{
		StopLoss:   StopLossRule{Enabled: true, Mode: ModePercent, Value: 2},
		TakeProfit: TakeProfitRule{Enabled: true, Mode: ModePercent, Value: 4},
	}
	engine.Attach("acct", "ES", signals.Long, 2, 100, 0, rules)

	cache.Update("ES", 104.5, time.Now())
	engine.CheckPositions()
	drainOne(t, engine)

	require.Len(t, executor.events, 1)
	event := executor.events[0]
	assert.Equal(t, ReasonTakeProfit, event.Reason)
	assert.InDelta(t, 104.0, event.Price, 1e-9)
	assert.InDelta(t, 8.0, event.RealizedPnL, 1e-9)
}

func TestEngineBreakEvenMovesStopToEntry(t *testing.T) {
	executor := &recordingExecutor{}
	engine, cache := newTestEngine(executor, time.Minute)

	rules := &ExitRules{
		BreakEven: BreakEvenRule{Enabled: true, ActivationPercent: 1},
	}
	pos := engine.Attach("acct", "ES", signals.Long, 1, 100, 0, rules)

	// Activation tick: a rule update, not an exit.
	cache.Update("ES", 101.5, time.Now())
	engine.CheckPositions()
	assertNoExit(t, engine)

	got, ok := engine.Position(pos.ID)
	require.True(t, ok)
	assert.True(t, got.Rules.BreakEven.Activated)
	assert.True(t, got.Rules.StopLoss.Enabled)
	assert.InDelta(t, 100.0, got.Rules.StopLoss.TriggerPrice, 1e-9)

	// Fall back through entry: the moved stop fires.
	cache.Update("ES", 99.9, time.Now())
	engine.CheckPositions()
	drainOne(t, engine)

	require.Len(t, executor.events, 1)
	assert.Equal(t, ReasonStopLoss, executor.events[0].Reason)
	assert.InDelta(t, 100.0, executor.events[0].Price, 1e-9)
}

func TestEnginePartialExits(t *testing.T) {
	executor := &recordingExecutor{}
	engine, cache := newTestEngine(executor, time.Minute)

	rules := &ExitRules{
		PartialExits: []PartialExit{
			{ProfitPercent: 1, ExitPercent: 50},
			{ProfitPercent: 2, ExitPercent: 25},
		},
	}
	pos := engine.Attach("acct", "ES", signals.Long, 10, 100, 0, rules)

	// First level only.
	cache.Update("ES", 101.5, time.Now())
	engine.CheckPositions()
	drainOne(t, engine)

	require.Len(t, executor.events, 1)
	assert.True(t, executor.events[0].Partial)
	assert.InDelta(t, 5.0, executor.events[0].Quantity, 1e-9)

	got, ok := engine.Position(pos.ID)
	require.True(t, ok)
	assert.Equal(t, StatusActive, got.Status)
	assert.InDelta(t, 5.0, got.RemainingQuantity, 1e-9)
	assert.True(t, got.Rules.PartialExits[0].Executed)

	// Same price again: the executed level must not re-fire.
	engine.CheckPositions()
	assertNoExit(t, engine)

	// Second level at deeper profit.
	cache.Update("ES", 102.5, time.Now())
	engine.CheckPositions()
	drainOne(t, engine)

	require.Len(t, executor.events, 2)
	assert.InDelta(t, 2.5, executor.events[1].Quantity, 1e-9)

	got, ok = engine.Position(pos.ID)
	require.True(t, ok)
	assert.InDelta(t, 2.5, got.RemainingQuantity, 1e-9)
}

func TestEngineCallbackFailureRollsBackAndRetries(t *testing.T) {
	executor := &recordingExecutor{failures: 1}
	engine, cache := newTestEngine(executor, time.Minute)

	rules := &ExitRules{
		StopLoss: StopLossRule{Enabled: true, Mode: ModePercent, Value: 2},
	}
	pos := engine.Attach("acct", "ES", signals.Long, 1, 100, 0, rules)

	cache.Update("ES", 97, time.Now())
	engine.CheckPositions()
	drainOne(t, engine)

	// Failed: position restored for retry, nothing recorded.
	assert.Empty(t, executor.events)
	got, ok := engine.Position(pos.ID)
	require.True(t, ok)
	assert.Equal(t, StatusActive, got.Status)
	assert.False(t, got.exitPending)

	// Next tick retries the same exit and succeeds.
	engine.CheckPositions()
	drainOne(t, engine)

	require.Len(t, executor.events, 1)
	assert.Equal(t, ReasonStopLoss, executor.events[0].Reason)
	assert.Equal(t, 2, executor.callCount)

	_, found := engine.Position(pos.ID)
	assert.False(t, found)
}

func TestEngineSkipsStalePrices(t *testing.T) {
	executor := &recordingExecutor{}
	engine, cache := newTestEngine(executor, 30*time.Millisecond)

	rules := &ExitRules{
		StopLoss: StopLossRule{Enabled: true, Mode: ModePercent, Value: 2},
	}
	engine.Attach("acct", "ES", signals.Long, 1, 100, 0, rules)

	cache.Update("ES", 90, time.Now().Add(-time.Second))
	engine.CheckPositions()
	assertNoExit(t, engine)
}

func TestEngineNoPendingDoubleEnqueue(t *testing.T) {
	executor := &recordingExecutor{}
	engine, cache := newTestEngine(executor, time.Minute)

	rules := &ExitRules{
		StopLoss: StopLossRule{Enabled: true, Mode: ModePercent, Value: 2},
	}
	engine.Attach("acct", "ES", signals.Long, 1, 100, 0, rules)

	cache.Update("ES", 95, time.Now())
	engine.CheckPositions()
	// Second check before the worker ran must not queue a duplicate.
	engine.CheckPositions()

	drainOne(t, engine)
	assertNoExit(t, engine)
	require.Len(t, executor.events, 1)
}

func TestEngineSizeAdvisorScalesAttach(t *testing.T) {
	executor := &recordingExecutor{}
	engine, _ := newTestEngine(executor, time.Minute)
	engine.SetSizeAdvisor(func() float64 { return 0.5 })

	pos := engine.Attach("acct", "ES", signals.Long, 10, 100, 0, &ExitRules{})
	assert.InDelta(t, 5.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 5.0, pos.RemainingQuantity, 1e-9)
}

func TestEngineTimeStop(t *testing.T) {
	executor := &recordingExecutor{}
	engine, cache := newTestEngine(executor, time.Minute)

	rules := &ExitRules{
		TimeStop: TimeStopRule{Enabled: true, MaxHold: time.Millisecond},
	}
	pos := engine.Attach("acct", "ES", signals.Long, 1, 100, 0, rules)
	pos.EntryTime = time.Now().Add(-time.Minute)
	engine.Restore(pos)

	cache.Update("ES", 100.2, time.Now())
	engine.CheckPositions()
	drainOne(t, engine)

	require.Len(t, executor.events, 1)
	event := executor.events[0]
	assert.Equal(t, ReasonTimeStop, event.Reason)
	assert.InDelta(t, 100.2, event.Price, 1e-9, "time stop exits at the current price")
}

func TestEngineRestoreReactivatesClosing(t *testing.T) {
	executor := &recordingExecutor{}
	engine, _ := newTestEngine(executor, time.Minute)

	pos := NewMonitoredPosition("acct", "ES", signals.Short, 1, 100, &ExitRules{})
	pos.Status = StatusClosing
	engine.Restore(pos)

	got, ok := engine.Position(pos.ID)
	require.True(t, ok)
	assert.Equal(t, StatusActive, got.Status)
}

func TestEnginePositionCopiesDetachRuleState(t *testing.T) {
	executor := &recordingExecutor{}
	engine, cache := newTestEngine(executor, time.Minute)

	rules := &ExitRules{
		TrailingStop: TrailingStopRule{Enabled: true, ActivationPercent: 1, TrailPercent: 2},
		PartialExits: []PartialExit{{ProfitPercent: 1, ExitPercent: 50}},
	}
	pos := engine.Attach("acct", "ES", signals.Long, 10, 100, 0, rules)

	before, ok := engine.Position(pos.ID)
	require.True(t, ok)
	require.NotSame(t, pos.Rules, before.Rules, "copies must not share live rule state")

	// Price past both activations mutates the trailing mark and fires the
	// partial level on the live position.
	cache.Update("ES", 103, time.Now())
	engine.CheckPositions()
	drainOne(t, engine)

	assert.False(t, before.Rules.TrailingStop.Activated)
	assert.Zero(t, before.Rules.TrailingStop.HighWaterMark)
	assert.False(t, before.Rules.PartialExits[0].Executed)

	after, ok := engine.Position(pos.ID)
	require.True(t, ok)
	assert.True(t, after.Rules.TrailingStop.Activated)
	assert.InDelta(t, 103.0, after.Rules.TrailingStop.HighWaterMark, 1e-9)
	assert.True(t, after.Rules.PartialExits[0].Executed)
}
