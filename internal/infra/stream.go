package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// PriceSink receives live prices from the stream.
type PriceSink interface {
	SetPrice(price decimal.Decimal, observedAt time.Time)
}

// TickerStream subscribes to the exchange trade stream over websocket and
// pushes every trade price into the sink. The connection reconnects with
// exponential backoff; while it is down the oracle's REST path covers.
type TickerStream struct {
	wsURL  string
	symbol string
	sink   PriceSink

	mu     sync.RWMutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ReadTimeout  time.Duration
	PingInterval time.Duration
}

// NewTickerStream creates a stream worker for the given symbol.
func NewTickerStream(wsURL, symbol string, sink PriceSink) *TickerStream {
	return &TickerStream{
		wsURL:        wsURL,
		symbol:       symbol,
		sink:         sink,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Start launches the connection loop.
func (s *TickerStream) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.runLoop(ctx)
}

// Stop terminates the worker and waits for the loop to exit.
func (s *TickerStream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.close()
	s.wg.Wait()
}

func (s *TickerStream) streamURL() string {
	return s.wsURL + "/" + strings.ToLower(s.symbol) + "@trade"
}

func (s *TickerStream) runLoop(ctx context.Context) {
	defer s.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			slog.Warn("ticker stream connect failed",
				slog.String("url", s.streamURL()),
				slog.Any("error", err),
				slog.Int("retry", retry))
			delay := CalculateBackoff(retry)
			retry++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		s.process(ctx)
	}
}

func (s *TickerStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.streamURL(), nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if s.PingInterval > 0 {
		go s.pingLoop(ctx)
	}

	slog.Info("ticker stream connected", slog.String("symbol", s.symbol))
	return nil
}

// tradeMessage is the exchange trade event payload. Only the price and the
// trade time matter here.
type tradeMessage struct {
	EventType string `json:"e"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"` // milliseconds
}

func (s *TickerStream) process(ctx context.Context) {
	for {
		s.mu.RLock()
		c := s.conn
		s.mu.RUnlock()
		if c == nil {
			return
		}

		c.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			slog.Warn("ticker stream read error", slog.Any("error", err))
			s.close()
			return
		}

		s.handleMessage(msg)
	}
}

func (s *TickerStream) handleMessage(msg []byte) {
	var tm tradeMessage
	if err := json.Unmarshal(msg, &tm); err != nil {
		slog.Debug("ticker stream skipped malformed message", slog.Any("error", err))
		return
	}
	if tm.EventType != "trade" || tm.Price == "" {
		return
	}

	price, err := decimal.NewFromString(tm.Price)
	if err != nil || !price.IsPositive() {
		return
	}

	observedAt := time.Now()
	if tm.TradeTime > 0 {
		observedAt = time.UnixMilli(tm.TradeTime)
	}
	s.sink.SetPrice(price, observedAt)
}

func (s *TickerStream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			c := s.conn
			s.mu.RUnlock()
			if c == nil {
				return
			}
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				slog.Warn("ticker stream ping error", slog.Any("error", err))
				s.close()
				return
			}
		}
	}
}

func (s *TickerStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
