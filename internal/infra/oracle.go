package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"btcarena/internal/domain"
)

// PriceOracle serves the current BTC/USD price. Reads hit a TTL cache
// first; a stale cache triggers a REST fetch (Binance ticker shape) with
// retry and a circuit breaker. The websocket stream pushes live prices into
// the same cache through SetPrice, which keeps the REST path as a fallback.
type PriceOracle struct {
	restURL string
	symbol  string
	ttl     time.Duration

	httpClient *http.Client
	breaker    *CircuitBreaker

	mu     sync.RWMutex
	cached *domain.Quote
}

// NewPriceOracle creates an oracle against the given REST base URL.
func NewPriceOracle(restURL, symbol string, ttl time.Duration) *PriceOracle {
	return &PriceOracle{
		restURL: restURL,
		symbol:  symbol,
		ttl:     ttl,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: NewCircuitBreaker(DefaultCircuitBreakerConfig("price-oracle")),
	}
}

// Quote returns the current price. Freshness order: cached value inside the
// TTL, then a fresh fetch, then the last known value however stale. Only
// with nothing cached at all does it fail with ErrPriceUnavailable.
func (o *PriceOracle) Quote(ctx context.Context) (domain.Quote, error) {
	o.mu.RLock()
	cached := o.cached
	o.mu.RUnlock()

	if cached != nil && cached.Fresh(o.ttl, time.Now()) {
		return *cached, nil
	}

	q, err := o.fetch(ctx)
	if err == nil {
		return q, nil
	}

	if cached != nil {
		slog.Warn("price fetch failed, serving stale quote",
			slog.Any("error", err),
			slog.Time("observed_at", cached.ObservedAt))
		return *cached, nil
	}
	return domain.Quote{}, fmt.Errorf("%w: %v", domain.ErrPriceUnavailable, err)
}

// SetPrice stores a price observed out-of-band (the websocket stream).
func (o *PriceOracle) SetPrice(price decimal.Decimal, observedAt time.Time) {
	if !price.IsPositive() {
		return
	}
	o.mu.Lock()
	o.cached = &domain.Quote{Price: price, ObservedAt: observedAt}
	o.mu.Unlock()
}

// fetch pulls the ticker over REST with up to 3 attempts and exponential
// backoff between them.
func (o *PriceOracle) fetch(ctx context.Context) (domain.Quote, error) {
	if !o.breaker.Allow() {
		return domain.Quote{}, fmt.Errorf("circuit breaker open")
	}

	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			delay := CalculateBackoff(i - 1)
			slog.Info("retrying price fetch", slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return domain.Quote{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		q, err := o.doFetch(ctx)
		if err == nil {
			o.breaker.RecordSuccess()
			o.mu.Lock()
			o.cached = &q
			o.mu.Unlock()
			return q, nil
		}
		lastErr = err
		slog.Warn("price fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
	}

	o.breaker.RecordFailure()
	return domain.Quote{}, lastErr
}

func (o *PriceOracle) doFetch(ctx context.Context) (domain.Quote, error) {
	u := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", o.restURL, url.QueryEscape(o.symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Quote{}, err
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return domain.Quote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Quote{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Quote{}, err
	}

	var data struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return domain.Quote{}, err
	}

	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("bad price %q: %w", data.Price, err)
	}
	if !price.IsPositive() {
		return domain.Quote{}, fmt.Errorf("non-positive price %q", data.Price)
	}

	return domain.Quote{Price: price, ObservedAt: time.Now()}, nil
}

// Candle is one OHLCV bar from the klines endpoint.
type Candle struct {
	OpenTime  time.Time       `json:"open_time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	CloseTime time.Time       `json:"close_time"`
}

// Klines fetches candlestick data for the chart endpoint. interval follows
// the exchange notation ("1h", "4h", "1d"); limit caps the bar count.
func (o *PriceOracle) Klines(ctx context.Context, interval string, limit int) ([]Candle, error) {
	u := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		o.restURL, url.QueryEscape(o.symbol), url.QueryEscape(interval), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// Klines come as arrays of mixed numbers and strings.
	var raw [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		var openMs, closeMs int64
		if err := json.Unmarshal(row[0], &openMs); err != nil {
			return nil, fmt.Errorf("bad kline open time: %w", err)
		}
		if err := json.Unmarshal(row[6], &closeMs); err != nil {
			return nil, fmt.Errorf("bad kline close time: %w", err)
		}

		c := Candle{
			OpenTime:  time.UnixMilli(openMs),
			CloseTime: time.UnixMilli(closeMs),
		}
		fields := []*decimal.Decimal{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for i, dst := range fields {
			var s string
			if err := json.Unmarshal(row[i+1], &s); err != nil {
				return nil, fmt.Errorf("bad kline field %d: %w", i+1, err)
			}
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("bad kline value %s: %w", strconv.Quote(s), err)
			}
			*dst = d
		}
		candles = append(candles, c)
	}
	return candles, nil
}
