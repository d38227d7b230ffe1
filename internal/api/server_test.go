package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-trading-engine/internal/signals"
	"quant-trading-engine/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	trades := store.NewMemoryStore()
	require.NoError(t, trades.EnsureAccount(context.Background(), "acct", 50000))

	return NewServer(ServerConfig{Host: "127.0.0.1", Port: 0, ProductionMode: true},
		nil, signals.DefaultRegistry(), nil, trades, nil, prometheus.NewRegistry(), zerolog.Nop())
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestGeneratorsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/generators", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Generators []struct {
			ID      string `json:"id"`
			Enabled bool   `json:"enabled"`
		} `json:"generators"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Generators, 5)
	assert.Equal(t, "liquidity_sweep", resp.Generators[0].ID)
}

func TestToggleGenerator(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPut, "/api/generators/inside_bar_breakout", `{"enabled":true}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodPut, "/api/generators/nope", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(s, http.MethodPut, "/api/generators/liquidity_sweep", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccountEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/account/acct", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":50000`)

	w = doRequest(s, http.MethodGet, "/api/account/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(s, http.MethodGet, "/api/account/acct/trades", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnconfiguredComponentsAnswer503(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/positions", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(s, http.MethodGet, "/api/filter", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(s, http.MethodPost, "/api/backtest",
		`{"symbol":"ES","interval":"1m","start":"2025-03-01T00:00:00Z","end":"2025-03-02T00:00:00Z"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
