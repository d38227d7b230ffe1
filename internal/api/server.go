// Package api exposes the engine over HTTP: health, positions, signal
// registry state, the trading filter, account statistics, backtest runs
// and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"quant-trading-engine/internal/exitengine"
	"quant-trading-engine/internal/intel"
	"quant-trading-engine/internal/signals"
	"quant-trading-engine/internal/store"
)

// ServerConfig holds server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
}

// BacktestRunner runs a backtest on request. Implemented by the app wiring
// so the server stays transport-only.
type BacktestRunner interface {
	RunBacktest(ctx context.Context, symbol, interval string, start, end time.Time) (any, error)
}

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig
	logger     zerolog.Logger

	engine   *exitengine.Engine
	registry *signals.Registry
	monitor  *intel.Monitor
	trades   store.TradeStore
	runner   BacktestRunner
	gatherer prometheus.Gatherer
}

// NewServer wires routes over the given components. Any component may be
// nil; its routes then answer 503.
func NewServer(
	config ServerConfig,
	engine *exitengine.Engine,
	registry *signals.Registry,
	monitor *intel.Monitor,
	trades store.TradeStore,
	runner BacktestRunner,
	gatherer prometheus.Gatherer,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:   router,
		config:   config,
		logger:   logger.With().Str("component", "api").Logger(),
		engine:   engine,
		registry: registry,
		monitor:  monitor,
		trades:   trades,
		runner:   runner,
		gatherer: gatherer,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := s.router.Group("/api")
	{
		api.GET("/positions", s.handleGetPositions)
		api.GET("/generators", s.handleGetGenerators)
		api.PUT("/generators/:id", s.handleToggleGenerator)
		api.GET("/filter", s.handleGetFilter)
		api.GET("/account/:id", s.handleGetAccount)
		api.GET("/account/:id/trades", s.handleGetTrades)
		api.POST("/backtest", s.handleRunBacktest)
	}
}

// Start runs the server until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("api server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
