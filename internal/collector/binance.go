package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"DipHunter/internal/model"
)

// BinanceFetcher implements Fetcher using the Binance spot klines endpoint.
type BinanceFetcher struct {
	BaseURL   string
	PageLimit int
	Client    *http.Client
	now       func() time.Time
}

// NewBinanceFetcher creates a fetcher with optional proxy support.
func NewBinanceFetcher(baseURL, proxyURL string, timeout time.Duration, pageLimit int) *BinanceFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if pageLimit <= 0 || pageLimit > 1000 {
		pageLimit = 1000
	}
	return &BinanceFetcher{
		BaseURL:   baseURL,
		PageLimit: pageLimit,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		now: time.Now,
	}
}

func (f *BinanceFetcher) Name() string { return "binance" }

// FetchKlines pages through /api/v3/klines from start until the latest candle.
func (f *BinanceFetcher) FetchKlines(ctx context.Context, symbol, interval string, start time.Time) ([]model.RawKline, error) {
	var all []model.RawKline
	from := start.UnixMilli()
	end := f.now().UnixMilli()

	for from <= end {
		page, err := f.fetchPage(ctx, symbol, interval, from)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < f.PageLimit {
			break
		}
		from = page[len(page)-1].OpenTime + 1
	}

	sort.Slice(all, func(i, j int) bool { return all[i].OpenTime < all[j].OpenTime })
	return all, nil
}

func (f *BinanceFetcher) fetchPage(ctx context.Context, symbol, interval string, from int64) ([]model.RawKline, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(from, 10))
	q.Set("limit", strconv.Itoa(f.PageLimit))
	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read klines: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch klines: status %d, body: %s", resp.StatusCode, string(body))
	}

	var rows [][]any
	if err := sonic.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	out := make([]model.RawKline, 0, len(rows))
	for _, r := range rows {
		k, err := parseKlineRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// parseKlineRow reads [openTime, open, high, low, close, volume, closeTime, ...].
func parseKlineRow(r []any) (model.RawKline, error) {
	if len(r) < 7 {
		return model.RawKline{}, fmt.Errorf("kline row has %d fields, want at least 7", len(r))
	}
	openTime, ok1 := r[0].(float64)
	closeTime, ok2 := r[6].(float64)
	if !ok1 || !ok2 {
		return model.RawKline{}, fmt.Errorf("kline row has non-numeric timestamps")
	}
	str := func(v any) string {
		switch s := v.(type) {
		case string:
			return s
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
		return ""
	}
	return model.RawKline{
		OpenTime:  int64(openTime),
		Open:      str(r[1]),
		High:      str(r[2]),
		Low:       str(r[3]),
		Close:     str(r[4]),
		Volume:    str(r[5]),
		CloseTime: int64(closeTime),
	}, nil
}
