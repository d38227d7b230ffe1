package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quant-trading-engine/internal/store"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleGetPositions(c *gin.Context) {
	if s.engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "exit engine not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": s.engine.Positions()})
}

func (s *Server) handleGetGenerators(c *gin.Context) {
	if s.registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "registry not configured"})
		return
	}
	type generatorView struct {
		ID      string  `json:"id"`
		Enabled bool    `json:"enabled"`
		Trades  int     `json:"trades"`
		WinRate float64 `json:"win_rate"`
		Note    string  `json:"note,omitempty"`
	}
	var out []generatorView
	for _, entry := range s.registry.Entries() {
		out = append(out, generatorView{
			ID:      entry.Generator.ID(),
			Enabled: entry.Enabled,
			Trades:  entry.Performance.Trades,
			WinRate: entry.Performance.WinRate,
			Note:    entry.Performance.Note,
		})
	}
	c.JSON(http.StatusOK, gin.H{"generators": out})
}

func (s *Server) handleToggleGenerator(c *gin.Context) {
	if s.registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "registry not configured"})
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id := c.Param("id")
	if !s.registry.SetEnabled(id, body.Enabled) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown generator: " + id})
		return
	}
	s.logger.Info().Str("generator", id).Bool("enabled", body.Enabled).Msg("generator toggled")
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": body.Enabled})
}

func (s *Server) handleGetFilter(c *gin.Context) {
	if s.monitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "intel monitor not running"})
		return
	}
	c.JSON(http.StatusOK, s.monitor.Current())
}

func (s *Server) handleGetAccount(c *gin.Context) {
	if s.trades == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store not configured"})
		return
	}
	acct, err := s.trades.GetAccount(c.Request.Context(), c.Param("id"))
	if err == store.ErrAccountNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":  acct,
		"win_rate": acct.WinRate(),
	})
}

func (s *Server) handleGetTrades(c *gin.Context) {
	if s.trades == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store not configured"})
		return
	}
	trades, err := s.trades.ListTrades(c.Request.Context(), c.Param("id"), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

type backtestRequest struct {
	Symbol   string    `json:"symbol" binding:"required"`
	Interval string    `json:"interval" binding:"required"`
	Start    time.Time `json:"start" binding:"required"`
	End      time.Time `json:"end" binding:"required"`
}

func (s *Server) handleRunBacktest(c *gin.Context) {
	if s.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest runner not configured"})
		return
	}
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.End.After(req.Start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be after start"})
		return
	}

	report, err := s.runner.RunBacktest(c.Request.Context(), req.Symbol, req.Interval, req.Start, req.End)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", req.Symbol).Msg("backtest failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
