package collector

import (
	"context"
	"time"

	"DipHunter/internal/model"
)

// Fetcher retrieves klines for a symbol and interval starting at start.
type Fetcher interface {
	FetchKlines(ctx context.Context, symbol, interval string, start time.Time) ([]model.RawKline, error)
	Name() string
}
