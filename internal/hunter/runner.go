package hunter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"DipHunter/internal/cache"
	"DipHunter/internal/calculator"
	"DipHunter/internal/metrics"
	"DipHunter/internal/model"
	"DipHunter/internal/notifier"
	"DipHunter/internal/recorder"
	"DipHunter/internal/store"
	"DipHunter/internal/strategy"
)

// KlineSource returns the klines a cycle computes on.
type KlineSource interface {
	Collect(ctx context.Context, symbol, interval string) ([]model.RawKline, error)
}

// Dispatcher delivers a signal to a user.
type Dispatcher interface {
	Dispatch(ctx context.Context, u *model.User, subject, body string) (bool, error)
}

// Runner executes hunter cycles: fetch, persist, compute, decide, notify.
type Runner struct {
	Source     KlineSource
	Store      store.Store
	Cache      cache.Cache
	Dispatcher Dispatcher
	Recorder   recorder.Recorder
	Metrics    *metrics.Recorder
	ZeroFill   []string
	InputsTTL  time.Duration

	logger *zap.Logger
	now    func() time.Time
}

// NewRunner creates a Runner. Cache, dispatcher and metrics may be nil.
func NewRunner(src KlineSource, st store.Store, c cache.Cache, d Dispatcher, rec recorder.Recorder, m *metrics.Recorder, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Runner{
		Source:     src,
		Store:      st,
		Cache:      c,
		Dispatcher: d,
		Recorder:   rec,
		Metrics:    m,
		InputsTTL:  24 * time.Hour,
		logger:     logger,
		now:        time.Now,
	}
}

func inputsKey(id int64) string {
	return "inputs:" + strconv.FormatInt(id, 10)
}

// RunOne executes one scheduled cycle for h and returns its outcome.
func (r *Runner) RunOne(ctx context.Context, h *model.Hunter) (model.Outcome, error) {
	in, err := r.run(ctx, h, model.TriggerScheduled)
	if err != nil {
		return model.OutcomeNone, err
	}
	return in.Outcome, nil
}

// Trigger runs a manual cycle for the hunter with the given id and returns its decision inputs.
func (r *Runner) Trigger(ctx context.Context, id int64) (*model.DecisionInputs, error) {
	h, err := r.Store.Hunter(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load hunter %d: %w", id, err)
	}
	return r.run(ctx, h, model.TriggerManual)
}

func (r *Runner) run(ctx context.Context, h *model.Hunter, trigger model.TriggerType) (in *model.DecisionInputs, err error) {
	started := r.now()
	evt := &recorder.CycleEvent{
		HunterID:  h.ID,
		UserID:    h.UserID,
		Symbol:    h.Symbol,
		Interval:  h.Interval,
		Trigger:   trigger,
		Outcome:   model.OutcomeNone,
		Trend:     model.TrendNone,
		Close:     math.NaN(),
		StartedAt: started,
	}
	log := r.logger.With(
		zap.Int64("hunter_id", h.ID),
		zap.String("symbol", h.Symbol),
		zap.String("interval", h.Interval),
		zap.String("trigger", string(trigger)))

	defer func() {
		evt.Duration = r.now().Sub(started)
		if err != nil {
			evt.Error = err.Error()
		}
		if recErr := r.Recorder.RecordCycle(evt); recErr != nil {
			log.Warn("record cycle failed", zap.Error(recErr))
		}
		if r.Metrics != nil {
			r.Metrics.RecordCycle(h.Interval, cycleResult(evt.Outcome, err), evt.Duration)
		}
	}()

	klines, err := r.Source.Collect(ctx, h.Symbol, h.Interval)
	if err != nil {
		return nil, err
	}
	if len(klines) == 0 {
		return nil, &model.ValidationError{Reason: "no klines returned for " + h.Symbol}
	}
	fetchedAt := r.now()
	if err := r.Store.SaveHunterKlines(ctx, h.ID, klines, fetchedAt); err != nil {
		return nil, fmt.Errorf("save klines: %w", err)
	}
	h.Klines, h.KlinesFetched = klines, fetchedAt

	table, trend, avg := r.compute(h, log)
	if table.Len() == 0 {
		return nil, &model.ValidationError{Reason: "no usable bars after coercion"}
	}
	evt.Rows = table.Len()
	evt.Trend = trend
	evt.Close = table.Latest().Get(calculator.ColClose)
	if r.Metrics != nil && !math.IsNaN(evt.Close) {
		r.Metrics.RecordLastClose(h.Symbol, h.Interval, evt.Close)
	}

	outcome := model.OutcomeNone
	if h.Running {
		outcome = strategy.Decide(table, h, trend, avg)
	}
	evt.Outcome = outcome

	in = snapshot(h, table, trend, avg, outcome, r.now())
	r.publish(ctx, in, log)

	if outcome == model.OutcomeNone {
		log.Debug("cycle complete", zap.String("trend", string(trend)), zap.Int("rows", table.Len()))
		return in, nil
	}

	log.Info("signal", zap.String("outcome", string(outcome)), zap.String("trend", string(trend)))
	if r.Metrics != nil {
		r.Metrics.RecordSignal(h.Symbol, string(outcome))
	}
	evt.Notified = r.notify(ctx, h, outcome, trend, table, avg, log)
	return in, nil
}

func (r *Runner) compute(h *model.Hunter, log *zap.Logger) (*calculator.Table, model.Trend, model.Averages) {
	opts := []calculator.Option{calculator.WithLogger(log), calculator.WithZeroFill(r.ZeroFill...)}
	if r.Metrics != nil {
		opts = append(opts, calculator.WithStepErrorHook(func(step string, _ error) {
			r.Metrics.RecordStepFailure(step)
		}))
	}
	table := calculator.Compute(h.Klines, &h.Profile, opts...)
	return table, calculator.Classify(table, &h.Profile), calculator.Averages(table, &h.Profile)
}

func (r *Runner) notify(ctx context.Context, h *model.Hunter, outcome model.Outcome, trend model.Trend, t *calculator.Table, avg model.Averages, log *zap.Logger) bool {
	if r.Dispatcher == nil {
		return false
	}
	u, err := r.Store.User(ctx, h.UserID)
	if err != nil {
		log.Warn("load hunter owner", zap.Int64("user_id", h.UserID), zap.Error(err))
		return false
	}
	subject := notifier.Subject(h, outcome)
	body := notifier.FormatSignal(h, outcome, trend, t, avg, r.now())
	notified, err := r.Dispatcher.Dispatch(ctx, u, subject, body)
	if err != nil {
		log.Warn("signal dispatch incomplete", zap.Bool("notified", notified), zap.Error(err))
	}
	return notified
}

func (r *Runner) publish(ctx context.Context, in *model.DecisionInputs, log *zap.Logger) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.Set(ctx, inputsKey(in.HunterID), in, r.InputsTTL); err != nil {
		log.Warn("publish decision inputs", zap.Error(err))
	}
}

// Forget drops the cached decision inputs of a hunter. Call it after the
// hunter is updated or deleted.
func (r *Runner) Forget(ctx context.Context, id int64) error {
	if r.Cache == nil {
		return nil
	}
	if err := r.Cache.Delete(ctx, inputsKey(id)); err != nil {
		return fmt.Errorf("forget hunter %d inputs: %w", id, err)
	}
	return nil
}

// Inputs returns the latest decision inputs of a hunter. The cached snapshot
// wins; otherwise the inputs are recomputed from the persisted klines.
func (r *Runner) Inputs(ctx context.Context, id int64) (*model.DecisionInputs, error) {
	if r.Cache != nil {
		var in model.DecisionInputs
		err := r.Cache.Get(ctx, inputsKey(id), &in)
		switch {
		case err == nil:
			return &in, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			r.logger.Warn("read decision inputs", zap.Int64("hunter_id", id), zap.Error(err))
		}
	}

	h, err := r.Store.Hunter(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load hunter %d: %w", id, err)
	}
	if len(h.Klines) == 0 {
		return nil, &model.ValidationError{Reason: fmt.Sprintf("hunter %d has no klines yet", id)}
	}
	table, trend, avg := r.compute(h, r.logger)
	if table.Len() == 0 {
		return nil, &model.ValidationError{Reason: "no usable bars after coercion"}
	}
	outcome := model.OutcomeNone
	if h.Running {
		outcome = strategy.Decide(table, h, trend, avg)
	}
	in := snapshot(h, table, trend, avg, outcome, r.now())
	r.publish(ctx, in, r.logger)
	return in, nil
}

func snapshot(h *model.Hunter, t *calculator.Table, trend model.Trend, avg model.Averages, outcome model.Outcome, now time.Time) *model.DecisionInputs {
	in := &model.DecisionInputs{
		HunterID:   h.ID,
		Symbol:     h.Symbol,
		Interval:   h.Interval,
		Latest:     t.Latest().Values(),
		Averages:   model.Averages{},
		Trend:      trend,
		Outcome:    outcome,
		Rows:       t.Len(),
		ComputedAt: now,
	}
	if t.Len() >= 2 {
		in.Previous = t.Previous().Values()
	}
	// NaN has no JSON encoding.
	for k, v := range avg {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			in.Averages[k] = v
		}
	}
	return in
}

func cycleResult(outcome model.Outcome, err error) string {
	var (
		fe *model.FetchError
		ve *model.ValidationError
	)
	switch {
	case err == nil && outcome == model.OutcomeNone:
		return "ok"
	case err == nil:
		return "signal"
	case errors.As(err, &fe):
		return "fetch_error"
	case errors.As(err, &ve):
		return "validation_error"
	default:
		return "error"
	}
}
