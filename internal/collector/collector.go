package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"DipHunter/internal/cache"
	"DipHunter/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price  float64
	Klines []model.RawKline
	// Errs are returned, in order, before any data is served.
	Errs  []error
	Calls int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchKlines(_ context.Context, _ string, interval string, start time.Time) ([]model.RawKline, error) {
	m.Calls++
	if len(m.Errs) > 0 {
		err := m.Errs[0]
		m.Errs = m.Errs[1:]
		return nil, err
	}
	if m.Klines != nil {
		return m.Klines, nil
	}
	step, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	return GenerateKlines(m.Price, start, step, lookbackBars), nil
}

// GenerateKlines builds count klines oscillating around basePrice.
func GenerateKlines(basePrice float64, start time.Time, step time.Duration, count int) []model.RawKline {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	out := make([]model.RawKline, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.02*math.Sin(float64(i)/8) + float64(i-count/2)*0.0005)
		open := start.Add(time.Duration(i) * step)
		out[i] = model.RawKline{
			OpenTime:  open.UnixMilli(),
			Open:      f(p * 0.999),
			High:      f(p * 1.005),
			Low:       f(p * 0.995),
			Close:     f(p),
			Volume:    f(1000 + 200*math.Cos(float64(i)/5)),
			CloseTime: open.Add(step).UnixMilli() - 1,
		}
	}
	return out
}

// Collector fetches klines with retries and shares recent results through a cache.
type Collector struct {
	Fetcher Fetcher
	Cache   cache.Cache
	Retries int
	Backoff time.Duration
	TTL     time.Duration
	// OnRetry, if set, is called before every retry.
	OnRetry func(source string, attempt int, err error)

	logger *zap.Logger
	now    func() time.Time
}

// NewCollector creates a new Collector. c may be nil to disable caching.
func NewCollector(fetcher Fetcher, c cache.Cache, logger *zap.Logger, retries int, backoff, ttl time.Duration) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		Fetcher: fetcher,
		Cache:   c,
		Retries: retries,
		Backoff: backoff,
		TTL:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

func klinesKey(symbol, interval string) string {
	return fmt.Sprintf("klines:%s:%s", symbol, interval)
}

// Collect returns the extended lookback window of klines for symbol and interval.
// Failures after all retries are returned as *model.FetchError.
func (c *Collector) Collect(ctx context.Context, symbol, interval string) ([]model.RawKline, error) {
	lookback, err := ExtendedLookback(interval)
	if err != nil {
		return nil, &model.ConfigurationError{Field: "interval", Err: err}
	}

	key := klinesKey(symbol, interval)
	if c.Cache != nil {
		var cached []model.RawKline
		err := c.Cache.Get(ctx, key, &cached)
		switch {
		case err == nil:
			c.logger.Debug("klines served from cache", zap.String("symbol", symbol), zap.String("interval", interval))
			return cached, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn("klines cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	start := c.now().Add(-lookback)
	var lastErr error
	attempts := 0
	for i := 0; i <= c.Retries; i++ {
		attempts++
		klines, err := c.Fetcher.FetchKlines(ctx, symbol, interval, start)
		if err == nil {
			if c.Cache != nil && c.TTL > 0 && len(klines) > 0 {
				if err := c.Cache.Set(ctx, key, klines, c.TTL); err != nil {
					c.logger.Warn("klines cache write failed", zap.String("key", key), zap.Error(err))
				}
			}
			return klines, nil
		}
		lastErr = err
		if i == c.Retries {
			break
		}

		backoff := c.Backoff * time.Duration(1<<uint(i))
		c.logger.Warn("fetch failed, retrying",
			zap.String("source", c.Fetcher.Name()),
			zap.String("symbol", symbol),
			zap.Int("attempt", i+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if c.OnRetry != nil {
			c.OnRetry(c.Fetcher.Name(), i+1, err)
		}
		select {
		case <-ctx.Done():
			return nil, &model.FetchError{Source: c.Fetcher.Name(), Symbol: symbol, Attempts: attempts, Err: ctx.Err()}
		case <-time.After(backoff):
		}
	}
	return nil, &model.FetchError{Source: c.Fetcher.Name(), Symbol: symbol, Attempts: attempts, Err: lastErr}
}
