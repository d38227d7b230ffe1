// Package app wires the engine components together: market data, signal
// registry, exit engine, persistence, intel monitor and the HTTP API.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quant-trading-engine/config"
	"quant-trading-engine/internal/api"
	"quant-trading-engine/internal/backtest"
	"quant-trading-engine/internal/exitengine"
	"quant-trading-engine/internal/intel"
	"quant-trading-engine/internal/market"
	"quant-trading-engine/internal/metrics"
	"quant-trading-engine/internal/signals"
	"quant-trading-engine/internal/store"
)

// App owns the component lifecycle.
type App struct {
	cfg    *config.Config
	logger zerolog.Logger

	db       *store.DB
	trades   store.TradeStore
	states   *store.RedisStateStore
	cache    *market.PriceCache
	feed     *market.Feed
	history  *market.HistoryClient
	registry *signals.Registry
	engine   *exitengine.Engine
	monitor  *intel.Monitor
	server   *api.Server
	promReg  *prometheus.Registry
}

// New builds the application from configuration. Postgres being down
// degrades to the in-memory trade store; Redis being down degrades to
// memory-only snapshots. Both are logged, neither is fatal.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger.With().Str("component", "app").Logger(),
	}

	db, err := store.NewDB(cfg.Database)
	if err != nil {
		a.logger.Warn().Err(err).Msg("database unavailable, trades held in memory")
		mem := store.NewMemoryStore()
		a.trades = mem
	} else {
		a.db = db
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		a.trades = store.NewRepository(db)
	}
	if err := a.trades.EnsureAccount(context.Background(), cfg.Account.ID, cfg.Account.StartingBalance); err != nil {
		return nil, fmt.Errorf("ensuring account: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	a.states = store.NewRedisStateStore(redisClient, logger)

	a.promReg = prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(a.promReg)

	a.cache = market.NewPriceCache(0)
	a.history = market.NewHistoryClient(cfg.Market.HistoryURL)
	if cfg.Market.WebsocketURL != "" {
		a.feed = market.NewFeed(cfg.Market.WebsocketURL, a.cache, logger)
	}

	a.registry = signals.DefaultRegistry()

	a.engine = exitengine.NewEngine(cfg.Exit, a.cache, a.history, a, a.states, engineMetrics, logger)

	fetcher := intel.NewHTTPFetcher(cfg.Intel.SearchURL, cfg.Intel.APIKey)
	a.monitor = intel.NewMonitor(cfg.Intel, fetcher, logger)
	a.engine.SetSizeAdvisor(func() float64 {
		return a.monitor.Current().SizeMultiplier
	})

	if cfg.Server.Enabled {
		a.server = api.NewServer(api.ServerConfig{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			ProductionMode: true,
		}, a.engine, a.registry, a.monitor, a.trades, a, a.promReg, logger)
	}

	return a, nil
}

// Run starts all components and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.feed != nil {
		a.feed.Start()
	}
	a.monitor.Start(ctx)
	a.engine.Start(ctx)

	restored, err := a.states.LoadAll(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("loading position snapshots failed")
	}
	for _, pos := range restored {
		if pos.Status != exitengine.StatusClosed {
			a.engine.Restore(pos)
		}
	}
	if len(restored) > 0 {
		a.logger.Info().Int("count", len(restored)).Msg("restored monitored positions")
	}

	errCh := make(chan error, 1)
	if a.server != nil {
		go func() {
			errCh <- a.server.Start()
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			a.shutdown()
			return err
		}
	}

	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	a.logger.Info().Msg("shutting down")

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("api shutdown failed")
		}
		cancel()
	}
	a.engine.Stop()
	a.monitor.Stop()
	if a.feed != nil {
		a.feed.Stop()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// ExecuteExit settles a triggered exit against the trade store. A failure
// here rolls the position back inside the engine and retries next tick.
func (a *App) ExecuteExit(ctx context.Context, event *exitengine.ExitEvent) error {
	pos, ok := a.engine.Position(event.PositionID)
	if !ok {
		return fmt.Errorf("position %s not found", event.PositionID)
	}

	record := &store.TradeRecord{
		ID:         event.PositionID,
		AccountID:  event.AccountID,
		Symbol:     event.Symbol,
		Side:       event.Side,
		PatternID:  "live",
		Quantity:   event.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  event.Price,
		EntryTime:  pos.EntryTime,
		ExitTime:   event.Timestamp,
		ExitReason: string(event.Reason),
		GrossPnL:   event.RealizedPnL,
		NetPnL:     event.RealizedPnL,
	}
	if event.Partial {
		// Partial fills need their own row; the position ID stays on the
		// final close.
		record.ID = uuid.NewString()
	}

	if err := a.trades.RecordTrade(ctx, record); err != nil {
		return fmt.Errorf("recording exit for %s: %w", event.PositionID, err)
	}

	a.logger.Info().
		Str("position", event.PositionID).
		Str("reason", string(event.Reason)).
		Float64("pnl", event.RealizedPnL).
		Bool("partial", event.Partial).
		Msg("exit executed")
	return nil
}

// RunBacktest fetches history and runs a simulation.
func (a *App) RunBacktest(ctx context.Context, symbol, interval string, start, end time.Time) (any, error) {
	candles, err := a.history.GetCandles(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles for %s %s in range", symbol, interval)
	}

	sim := backtest.NewSimulator(a.cfg.Backtest, a.registry)
	report, err := sim.Run(ctx, candles)
	if err != nil {
		return nil, err
	}
	return report, nil
}
