package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Fetcher retrieves raw search results for a query.
type Fetcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// HTTPFetcher queries a JSON search endpoint that returns
// {"results": [{"title","snippet","source","url"}, ...]}.
type HTTPFetcher struct {
	BaseURL    string
	APIKey     string
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher against the given search endpoint.
func NewHTTPFetcher(baseURL, apiKey string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search performs the HTTP query.
func (f *HTTPFetcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	u := fmt.Sprintf("%s?q=%s", f.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return parsed.Results, nil
}

// MonitorConfig tunes the background monitor.
type MonitorConfig struct {
	Enabled        bool          `json:"enabled"`
	Query          string        `json:"query"`
	SearchURL      string        `json:"search_url"`
	APIKey         string        `json:"api_key"`
	UpdateInterval time.Duration `json:"update_interval"`
	Filter         Config        `json:"filter"`
}

// DefaultMonitorConfig returns the standard monitor tuning.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:        true,
		Query:          "stock market news today",
		UpdateInterval: 15 * time.Minute,
		Filter:         DefaultConfig(),
	}
}

// Monitor refreshes the trading filter in the background and serves the
// latest result to callers.
type Monitor struct {
	config   MonitorConfig
	fetcher  Fetcher
	logger   zerolog.Logger
	last     *TradingFilter
	mu       sync.RWMutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor around the given fetcher.
func NewMonitor(config MonitorConfig, fetcher Fetcher, logger zerolog.Logger) *Monitor {
	if config.UpdateInterval <= 0 {
		config.UpdateInterval = DefaultMonitorConfig().UpdateInterval
	}
	return &Monitor{
		config:   config,
		fetcher:  fetcher,
		logger:   logger.With().Str("component", "intel_monitor").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start begins background refreshes. No-op when disabled.
func (m *Monitor) Start(ctx context.Context) {
	if !m.config.Enabled {
		return
	}

	m.refresh(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.config.UpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.refresh(ctx)
			case <-m.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts background refreshes.
func (m *Monitor) Stop() {
	close(m.stopChan)
	m.wg.Wait()
}

// Current returns the latest filter, or the conservative default before
// the first successful refresh.
func (m *Monitor) Current() *TradingFilter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return ConservativeDefault()
	}
	return m.last
}

func (m *Monitor) refresh(ctx context.Context) {
	results, err := m.fetcher.Search(ctx, m.config.Query)
	if err != nil {
		m.logger.Warn().Err(err).Msg("news fetch failed, using conservative filter")
		m.mu.Lock()
		m.last = ConservativeDefault()
		m.mu.Unlock()
		return
	}

	filter := Analyze(results, m.config.Filter)
	m.mu.Lock()
	m.last = filter
	m.mu.Unlock()

	m.logger.Info().
		Str("sentiment", string(filter.Sentiment)).
		Str("risk_tier", string(filter.RiskTier)).
		Float64("confidence", filter.Confidence).
		Bool("should_trade", filter.ShouldTrade).
		Int("events", len(filter.Events)).
		Msg("trading filter refreshed")
}
