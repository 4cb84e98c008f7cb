package analysis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"DipHunter/internal/model"
	"DipHunter/internal/store"
)

// KlineSource returns klines for a symbol and interval.
type KlineSource interface {
	Collect(ctx context.Context, symbol, interval string) ([]model.RawKline, error)
}

// Refresher keeps every user's dashboard klines current.
type Refresher struct {
	Source KlineSource
	Store  store.Store

	logger *zap.Logger
	now    func() time.Time
}

// NewRefresher creates a Refresher.
func NewRefresher(src KlineSource, st store.Store, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{Source: src, Store: st, logger: logger, now: time.Now}
}

// RefreshAll refreshes the analysis klines of every user. A failure for one
// user is logged and does not stop the others; the number of failures is returned.
func (r *Refresher) RefreshAll(ctx context.Context) (int, error) {
	all, err := r.Store.AllAnalysisSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("list analysis settings: %w", err)
	}
	failed := 0
	for _, a := range all {
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
		if err := r.Refresh(ctx, a); err != nil {
			failed++
			r.logger.Warn("analysis refresh failed",
				zap.Int64("user_id", a.UserID),
				zap.String("symbol", a.Symbol),
				zap.String("interval", a.Interval),
				zap.Error(err))
		}
	}
	r.logger.Info("analysis refresh complete", zap.Int("users", len(all)), zap.Int("failed", failed))
	return failed, nil
}

// Refresh fetches and persists the klines of one user's analysis settings.
func (r *Refresher) Refresh(ctx context.Context, a *model.AnalysisSettings) error {
	klines, err := r.Source.Collect(ctx, a.Symbol, a.Interval)
	if err != nil {
		return err
	}
	if len(klines) == 0 {
		return &model.ValidationError{Reason: "no klines returned for " + a.Symbol}
	}
	return r.Store.SaveAnalysisKlines(ctx, a.UserID, klines, r.now())
}
