package exitengine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quant-trading-engine/internal/market"
	"quant-trading-engine/internal/metrics"
	"quant-trading-engine/internal/signals"
)

// ExitReason identifies which rule fired an exit.
type ExitReason string

const (
	ReasonStopLoss     ExitReason = "stop_loss"
	ReasonTakeProfit   ExitReason = "take_profit"
	ReasonTrailingStop ExitReason = "trailing_stop"
	ReasonTimeStop     ExitReason = "time_stop"
	ReasonPartialExit  ExitReason = "partial_exit"
)

// ExitEvent is the normalized record handed to the execution callback and,
// through it, to the order/position persistence layer.
type ExitEvent struct {
	PositionID  string            `json:"position_id"`
	AccountID   string            `json:"account_id"`
	Symbol      string            `json:"symbol"`
	Side        signals.Direction `json:"side"`
	Quantity    float64           `json:"quantity"`
	Price       float64           `json:"price"`
	Reason      ExitReason        `json:"reason"`
	RealizedPnL float64           `json:"realized_pnl"`
	Partial     bool              `json:"partial"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Executor performs the actual exit against the order/persistence layer.
// It may be slow or fail; the engine never blocks the check loop on it,
// and a failure rolls the position back so the exit retries next tick.
type Executor interface {
	ExecuteExit(ctx context.Context, event *ExitEvent) error
}

// PriceFetcher pulls the latest tick for a symbol. The refresh task is the
// only caller, keeping all I/O at the engine's scheduling boundary.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, symbol string) (float64, error)
}

// StateStore persists position snapshots so monitoring survives restarts.
// Implementations must be safe to call from the engine goroutines.
type StateStore interface {
	Save(ctx context.Context, pos *MonitoredPosition) error
	Delete(ctx context.Context, positionID string) error
}

// Config holds the engine scheduling parameters.
type Config struct {
	PriceRefreshInterval time.Duration `json:"price_refresh_interval"`
	CheckInterval        time.Duration `json:"check_interval"`
	ExitQueueSize        int           `json:"exit_queue_size"`
}

// DefaultConfig returns the standard engine timing.
func DefaultConfig() Config {
	return Config{
		PriceRefreshInterval: 500 * time.Millisecond,
		CheckInterval:        time.Second,
		ExitQueueSize:        64,
	}
}

// exitRequest is the unit of work handed to the exit worker.
type exitRequest struct {
	positionID   string
	quantity     float64
	price        float64
	reason       ExitReason
	partialIndex int // -1 for a full exit
}

// Engine is the live position-exit monitor. Two periodic tasks run
// concurrently: a price-refresh task writing the shared price cache and a
// position-check task reading it. Exit execution is dispatched to a single
// worker through a buffered channel so the check loop never waits on the
// persistence callback.
type Engine struct {
	mu sync.Mutex

	config   Config
	cache    *market.PriceCache
	fetcher  PriceFetcher
	executor Executor
	states   StateStore // optional
	logger   zerolog.Logger
	metrics  *metrics.EngineMetrics

	positions map[string]*MonitoredPosition

	// Advisory position-size multiplier from the intelligence filter,
	// consulted at attach time. Nil means full size.
	sizeAdvisor func() float64

	exitCh  chan *exitRequest
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewEngine creates an exit engine. The price cache is owned by the caller
// and injected; cache and executor are required, states may be nil.
func NewEngine(config Config, cache *market.PriceCache, fetcher PriceFetcher, executor Executor, states StateStore, m *metrics.EngineMetrics, logger zerolog.Logger) *Engine {
	if config.PriceRefreshInterval <= 0 {
		config.PriceRefreshInterval = 500 * time.Millisecond
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Second
	}
	if config.ExitQueueSize <= 0 {
		config.ExitQueueSize = 64
	}
	if m == nil {
		m = metrics.NewEngineMetrics(nil)
	}
	return &Engine{
		config:    config,
		cache:     cache,
		fetcher:   fetcher,
		executor:  executor,
		states:    states,
		logger:    logger.With().Str("component", "ExitEngine").Logger(),
		metrics:   m,
		positions: make(map[string]*MonitoredPosition),
		exitCh:    make(chan *exitRequest, config.ExitQueueSize),
	}
}

// SetSizeAdvisor installs the advisory sizing hook.
func (e *Engine) SetSizeAdvisor(advisor func() float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sizeAdvisor = advisor
}

// Attach registers a new position for monitoring. The requested quantity is
// scaled by the advisory size multiplier, and the rule trigger prices are
// computed once here.
func (e *Engine) Attach(accountID, symbol string, side signals.Direction, quantity, entryPrice, atr float64, rules *ExitRules) *MonitoredPosition {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sizeAdvisor != nil {
		if m := e.sizeAdvisor(); m > 0 && m < 1 {
			quantity *= m
		}
	}

	rules.ComputeTriggers(side, entryPrice, atr)
	pos := NewMonitoredPosition(accountID, symbol, side, quantity, entryPrice, rules)
	e.positions[pos.ID] = pos
	e.metrics.PositionsMonitored.Set(float64(len(e.positions)))

	if e.states != nil {
		if err := e.states.Save(context.Background(), pos); err != nil {
			e.logger.Warn().Err(err).Str("position", pos.ID).Msg("snapshot save failed")
		}
	}

	e.logger.Info().
		Str("position", pos.ID).
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("qty", quantity).
		Float64("entry", entryPrice).
		Msg("position attached")
	return pos
}

// Restore re-registers a position recovered from the state store.
func (e *Engine) Restore(pos *MonitoredPosition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos.exitPending = false
	if pos.Status == StatusClosing {
		pos.Status = StatusActive
	}
	e.positions[pos.ID] = pos
	e.metrics.PositionsMonitored.Set(float64(len(e.positions)))
}

// Positions returns copies of all monitored positions.
func (e *Engine) Positions() []MonitoredPosition {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]MonitoredPosition, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p.snapshot())
	}
	return out
}

// Position returns a copy of one monitored position by ID.
func (e *Engine) Position(id string) (MonitoredPosition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.positions[id]
	if !ok {
		return MonitoredPosition{}, false
	}
	return p.snapshot(), true
}

// Start launches the refresh, check and exit-worker tasks.
func (e *Engine) Start(parent context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	ctx, cancel := context.WithCancel(parent)
	e.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(3)
	go e.refreshLoop(ctx)
	go e.checkLoop(ctx)
	go e.exitWorker(ctx)
	e.logger.Info().Msg("exit engine started")
}

// Stop halts both periodic tasks and the worker. In-flight exits finish or
// roll back before Stop returns; queued but unprocessed requests are rolled
// back so no position is left in a partial state.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()

	// Roll back anything still queued: no sender is alive at this point.
	for {
		select {
		case req := <-e.exitCh:
			e.rollback(req, nil)
		default:
			e.logger.Info().Msg("exit engine stopped")
			return
		}
	}
}

// refreshLoop is the price-refresh task: every interval it fetches the
// latest tick for each distinct symbol under monitoring and writes it to
// the shared cache. Fetch failures leave the previous tick in place, which
// the staleness window then ages out.
func (e *Engine) refreshLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.config.PriceRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range e.activeSymbols() {
				price, err := e.fetcher.FetchPrice(ctx, symbol)
				if err != nil {
					e.metrics.PriceRefreshErrors.Inc()
					e.logger.Debug().Err(err).Str("symbol", symbol).Msg("price refresh failed")
					continue
				}
				e.cache.Update(symbol, price, time.Now())
			}
		}
	}
}

// activeSymbols returns the distinct symbols of active positions.
func (e *Engine) activeSymbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	seen := make(map[string]struct{})
	var symbols []string
	for _, p := range e.positions {
		if p.Status != StatusActive {
			continue
		}
		if _, ok := seen[p.Symbol]; !ok {
			seen[p.Symbol] = struct{}{}
			symbols = append(symbols, p.Symbol)
		}
	}
	return symbols
}

// checkLoop is the position-check task.
func (e *Engine) checkLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.CheckPositions()
		}
	}
}

// CheckPositions evaluates every active position against the latest cached
// price. A stale or missing price skips the position for this tick.
func (e *Engine) CheckPositions() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, pos := range e.positions {
		if pos.Status != StatusActive || pos.exitPending {
			continue
		}
		price, ok := e.cache.Get(pos.Symbol)
		if !ok {
			continue
		}
		e.metrics.TicksEvaluated.Inc()

		pos.LatestPrice = price
		pos.UnrealizedPnL = pos.realizedPnL(pos.RemainingQuantity, price)

		if req := e.evaluate(pos, price); req != nil {
			e.enqueue(pos, req)
		}
	}
}

// evaluate runs the exit rules in their fixed priority order against one
// tick and returns at most one exit action. Break-even is a rule update,
// not an exit; partial exits fire independently of the break-even step.
// Callers hold the engine mutex.
func (e *Engine) evaluate(pos *MonitoredPosition, price float64) *exitRequest {
	r := pos.Rules
	long := pos.Side == signals.Long

	// 1. Stop-loss
	if r.StopLoss.Enabled {
		if (long && price <= r.StopLoss.TriggerPrice) || (!long && price >= r.StopLoss.TriggerPrice) {
			return &exitRequest{positionID: pos.ID, quantity: pos.RemainingQuantity, price: r.StopLoss.TriggerPrice, reason: ReasonStopLoss, partialIndex: -1}
		}
	}

	// 2. Take-profit
	if r.TakeProfit.Enabled {
		if (long && price >= r.TakeProfit.TriggerPrice) || (!long && price <= r.TakeProfit.TriggerPrice) {
			return &exitRequest{positionID: pos.ID, quantity: pos.RemainingQuantity, price: r.TakeProfit.TriggerPrice, reason: ReasonTakeProfit, partialIndex: -1}
		}
	}

	// 3. Trailing stop: state update and check on the same tick
	if r.updateTrailing(pos.Side, pos.EntryPrice, price) {
		return &exitRequest{positionID: pos.ID, quantity: pos.RemainingQuantity, price: r.TrailingStop.TriggerPrice, reason: ReasonTrailingStop, partialIndex: -1}
	}

	// 4. Time stop
	if r.TimeStop.Enabled && r.TimeStop.MaxHold > 0 && time.Since(pos.EntryTime) >= r.TimeStop.MaxHold {
		return &exitRequest{positionID: pos.ID, quantity: pos.RemainingQuantity, price: price, reason: ReasonTimeStop, partialIndex: -1}
	}

	// 5. Break-even activation: one shot, moves the stop to entry
	if r.BreakEven.Enabled && !r.BreakEven.Activated && pos.profitPercent(price) >= r.BreakEven.ActivationPercent {
		r.BreakEven.Activated = true
		r.StopLoss.Enabled = true
		r.StopLoss.TriggerPrice = pos.EntryPrice
		e.logger.Info().Str("position", pos.ID).Float64("stop", pos.EntryPrice).Msg("break-even activated, stop moved to entry")
	}

	// 6. Partial exits
	profit := pos.profitPercent(price)
	for i := range r.PartialExits {
		level := &r.PartialExits[i]
		if level.Executed || profit < level.ProfitPercent {
			continue
		}
		qty := pos.Quantity * level.ExitPercent / 100
		if qty > pos.RemainingQuantity {
			qty = pos.RemainingQuantity
		}
		if qty <= 0 {
			continue
		}
		return &exitRequest{positionID: pos.ID, quantity: qty, price: price, reason: ReasonPartialExit, partialIndex: i}
	}

	return nil
}

// enqueue hands an exit to the worker without blocking the check loop.
// Callers hold the engine mutex.
func (e *Engine) enqueue(pos *MonitoredPosition, req *exitRequest) {
	pos.exitPending = true
	if req.partialIndex < 0 {
		pos.Status = StatusClosing
	}

	select {
	case e.exitCh <- req:
	default:
		// Queue full: undo and let the next tick re-evaluate
		pos.exitPending = false
		if req.partialIndex < 0 {
			pos.Status = StatusActive
		}
		e.logger.Warn().Str("position", pos.ID).Msg("exit queue full, deferring")
	}
}

// exitWorker is the single consumer of exit requests.
func (e *Engine) exitWorker(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-e.exitCh:
			e.executeExit(ctx, req)
		}
	}
}

// executeExit runs the persistence callback and commits the position-state
// transition only when it succeeds; on failure every field is rolled back
// so the same exit fires again on the next tick.
func (e *Engine) executeExit(ctx context.Context, req *exitRequest) {
	e.mu.Lock()
	pos, ok := e.positions[req.positionID]
	if !ok {
		e.mu.Unlock()
		return
	}
	event := &ExitEvent{
		PositionID:  pos.ID,
		AccountID:   pos.AccountID,
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		Quantity:    req.quantity,
		Price:       req.price,
		Reason:      req.reason,
		RealizedPnL: pos.realizedPnL(req.quantity, req.price),
		Partial:     req.partialIndex >= 0,
		Timestamp:   time.Now(),
	}
	e.mu.Unlock()

	// The callback runs outside the lock: it may be slow, and other
	// positions must keep being evaluated meanwhile.
	if err := e.executor.ExecuteExit(ctx, event); err != nil {
		e.metrics.ExitFailures.Inc()
		e.logger.Warn().Err(err).Str("position", req.positionID).Str("reason", string(req.reason)).Msg("exit execution failed, rolling back for retry")
		e.rollback(req, pos)
		return
	}

	e.commit(req, pos)
	e.metrics.ExitsTriggered.WithLabelValues(string(req.reason)).Inc()
	e.logger.Info().
		Str("position", req.positionID).
		Str("reason", string(req.reason)).
		Float64("qty", req.quantity).
		Float64("price", req.price).
		Float64("pnl", event.RealizedPnL).
		Msg("exit executed")
}

// commit applies the state transition after a successful callback.
func (e *Engine) commit(req *exitRequest, pos *MonitoredPosition) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos.RemainingQuantity -= req.quantity
	if req.partialIndex >= 0 && req.partialIndex < len(pos.Rules.PartialExits) {
		pos.Rules.PartialExits[req.partialIndex].Executed = true
	}
	pos.exitPending = false

	if pos.RemainingQuantity <= 1e-9 || req.partialIndex < 0 {
		pos.RemainingQuantity = 0
		pos.Status = StatusClosed
		delete(e.positions, pos.ID)
		e.metrics.PositionsMonitored.Set(float64(len(e.positions)))
		if e.states != nil {
			if err := e.states.Delete(context.Background(), pos.ID); err != nil {
				e.logger.Warn().Err(err).Str("position", pos.ID).Msg("snapshot delete failed")
			}
		}
		return
	}

	pos.Status = StatusActive
	if e.states != nil {
		if err := e.states.Save(context.Background(), pos); err != nil {
			e.logger.Warn().Err(err).Str("position", pos.ID).Msg("snapshot save failed")
		}
	}
}

// rollback restores the pre-trigger state after a failed or abandoned exit.
func (e *Engine) rollback(req *exitRequest, pos *MonitoredPosition) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pos == nil {
		var ok bool
		pos, ok = e.positions[req.positionID]
		if !ok {
			return
		}
	}
	pos.exitPending = false
	if pos.Status == StatusClosing {
		pos.Status = StatusActive
	}
}
