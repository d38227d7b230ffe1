package market

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// TickEvent is the wire format of one price update from the stream.
// Prices arrive as strings, matching the upstream feed encoding.
type TickEvent struct {
	Symbol string `json:"s"`
	Price  string `json:"p"`
	Time   int64  `json:"E"` // event time, unix millis
}

// Feed maintains a websocket connection to the tick stream and pushes
// every update into the price cache. It reconnects with a flat backoff
// when the connection drops and stops cleanly on Stop.
type Feed struct {
	mu sync.RWMutex

	url    string
	cache  *PriceCache
	logger zerolog.Logger

	conn       *websocket.Conn
	isRunning  bool
	stopChan   chan struct{}
	reconnects int
}

// NewFeed creates a tick feed writing into the given cache.
func NewFeed(url string, cache *PriceCache, logger zerolog.Logger) *Feed {
	return &Feed{
		url:      url,
		cache:    cache,
		logger:   logger.With().Str("component", "PriceFeed").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start begins the connect/read loop in a background goroutine.
func (f *Feed) Start() {
	f.mu.Lock()
	if f.isRunning {
		f.mu.Unlock()
		return
	}
	f.isRunning = true
	f.mu.Unlock()

	go f.run()
}

// Stop terminates the feed and closes the connection.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.isRunning {
		return
	}
	f.isRunning = false
	close(f.stopChan)
	if f.conn != nil {
		f.conn.Close()
	}
}

// Reconnects returns how many times the feed had to re-dial.
func (f *Feed) Reconnects() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.reconnects
}

func (f *Feed) run() {
	for {
		select {
		case <-f.stopChan:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
		if err != nil {
			f.mu.Lock()
			f.reconnects++
			f.mu.Unlock()
			f.logger.Warn().Err(err).Str("url", f.url).Msg("dial failed, retrying in 3s")
			select {
			case <-time.After(3 * time.Second):
				continue
			case <-f.stopChan:
				return
			}
		}

		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		f.logger.Info().Str("url", f.url).Msg("tick stream connected")

		f.readLoop(conn)

		select {
		case <-f.stopChan:
			return
		default:
			f.logger.Warn().Msg("connection lost, reconnecting in 3s")
			time.Sleep(3 * time.Second)
		}
	}
}

func (f *Feed) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			f.logger.Debug().Err(err).Msg("read error")
			return
		}

		var ev TickEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			f.logger.Debug().Err(err).Msg("malformed tick, skipped")
			continue
		}
		price, err := strconv.ParseFloat(ev.Price, 64)
		if err != nil || price <= 0 || ev.Symbol == "" {
			continue
		}

		at := time.Now()
		if ev.Time > 0 {
			at = time.UnixMilli(ev.Time)
		}
		f.cache.Update(ev.Symbol, price, at)
	}
}
