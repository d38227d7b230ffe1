package market

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// HistoryClient fetches historical candles over HTTP. The endpoint returns
// {"candles": [{"timestamp","open","high","low","close","volume"}, ...]}
// with RFC 3339 timestamps.
type HistoryClient struct {
	BaseURL    string
	httpClient *http.Client
}

// NewHistoryClient creates a candle source against a history endpoint.
func NewHistoryClient(baseURL string) *HistoryClient {
	return &HistoryClient{
		BaseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type candlePayload struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type historyResponse struct {
	Candles []candlePayload `json:"candles"`
}

// GetCandles fetches candles for the symbol and interval in [start, end).
func (c *HistoryClient) GetCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/klines?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building history request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("history returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding history response: %w", err)
	}

	candles := make([]Candle, 0, len(parsed.Candles))
	for _, p := range parsed.Candles {
		candles = append(candles, NewCandle(p.Timestamp, p.Open, p.High, p.Low, p.Close, p.Volume))
	}
	return candles, nil
}

type quoteResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// FetchPrice returns the latest quote for the symbol.
func (c *HistoryClient) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/quote?symbol="+url.QueryEscape(symbol), nil)
	if err != nil {
		return 0, fmt.Errorf("building quote request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("quote returned status %d", resp.StatusCode)
	}

	var parsed quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decoding quote response: %w", err)
	}
	if parsed.Price <= 0 {
		return 0, fmt.Errorf("quote for %s has non-positive price", symbol)
	}
	return parsed.Price, nil
}

// LoadCandlesCSV reads candles from a CSV file with a header row of
// timestamp,open,high,low,close,volume. Timestamps are RFC 3339 or unix
// seconds.
func LoadCandlesCSV(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}

	candles := make([]Candle, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 6 {
			return nil, fmt.Errorf("%s row %d: expected 6 columns, got %d", path, i+2, len(rec))
		}
		ts, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		vals := make([]float64, 5)
		for j := 0; j < 5; j++ {
			v, err := strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d col %d: %w", path, i+2, j+2, err)
			}
			vals[j] = v
		}
		candles = append(candles, NewCandle(ts, vals[0], vals[1], vals[2], vals[3], vals[4]))
	}
	return candles, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
