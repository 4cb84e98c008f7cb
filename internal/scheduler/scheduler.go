package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"DipHunter/internal/collector"
	"DipHunter/internal/config"
	"DipHunter/internal/metrics"
	"DipHunter/internal/model"
	"DipHunter/internal/recorder"
	"DipHunter/internal/store"
)

// CycleRunner runs hunter cycles and exposes their decision inputs.
type CycleRunner interface {
	RunOne(ctx context.Context, h *model.Hunter) (model.Outcome, error)
	Inputs(ctx context.Context, id int64) (*model.DecisionInputs, error)
	Trigger(ctx context.Context, id int64) (*model.DecisionInputs, error)
}

// Refresher refreshes the per-user analysis klines.
type Refresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron        *cron.Cron
	Runner      CycleRunner
	Store       store.Store
	Refresher   Refresher
	Recorder    recorder.Recorder
	Metrics     *metrics.Recorder
	AdminChatID string
	Ctx         context.Context

	logger *zap.Logger
	now    func() time.Time
}

// NewScheduler creates a new Scheduler. Refresher and metrics may be nil.
func NewScheduler(ctx context.Context, runner CycleRunner, st store.Store, ref Refresher, rec recorder.Recorder, m *metrics.Recorder, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	cl := cronLogger{logger.Sugar().Named("cron")}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		Runner:    runner,
		Store:     st,
		Refresher: ref,
		Recorder:  rec,
		Metrics:   m,
		Ctx:       ctx,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterAll registers the minute, 4-hour, daily and analysis jobs.
func (s *Scheduler) RegisterAll(cfg config.ScheduleConfig) error {
	short := make([]shortInterval, 0, len(cfg.ShortIntervals))
	for _, iv := range cfg.ShortIntervals {
		d, err := collector.ParseInterval(iv)
		if err != nil {
			return &model.ConfigurationError{Field: "schedule.short_intervals", Err: err}
		}
		short = append(short, shortInterval{name: iv, minutes: int64(d / time.Minute)})
	}

	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"minute", cfg.MinuteCron, func() { s.runDue(s.Ctx, short, s.now()) }},
		{"4h", cfg.FourHourCron, func() { s.RunInterval(s.Ctx, "4h") }},
		{"1d", cfg.DailyCron, func() { s.RunInterval(s.Ctx, "1d") }},
		{"analysis", cfg.AnalysisCron, func() { s.refreshAnalysis(s.Ctx) }},
	}
	cl := cronLogger{s.logger.Sugar().Named("cron")}
	for _, j := range jobs {
		if j.name == "analysis" && s.Refresher == nil {
			continue
		}
		job := cron.NewChain(GraceIfStillRunning(cfg.MisfireGrace, cl.With("job", j.name))).Then(cron.FuncJob(j.fn))
		if _, err := s.Cron.AddJob(j.spec, job); err != nil {
			return fmt.Errorf("register %s job: %w", j.name, err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

type shortInterval struct {
	name    string
	minutes int64
}

// due returns the short intervals whose bar boundary falls on the minute of t.
func due(short []shortInterval, t time.Time) []string {
	minute := t.Unix() / 60
	var out []string
	for _, iv := range short {
		if iv.minutes > 0 && minute%iv.minutes == 0 {
			out = append(out, iv.name)
		}
	}
	return out
}

func (s *Scheduler) runDue(ctx context.Context, short []shortInterval, t time.Time) {
	for _, iv := range due(short, t) {
		if ctx.Err() != nil {
			return
		}
		s.RunInterval(ctx, iv)
	}
}

// RunInterval runs every hunter of the interval sequentially. A failing or
// panicking hunter is logged and counted; the batch always continues.
func (s *Scheduler) RunInterval(ctx context.Context, interval string) *recorder.BatchEvent {
	started := s.now()
	evt := &recorder.BatchEvent{Interval: interval, StartedAt: started}

	hunters, err := s.Store.HuntersByInterval(ctx, interval)
	if err != nil {
		s.logger.Error("load hunters", zap.String("interval", interval), zap.Error(err))
		return evt
	}
	if len(hunters) == 0 {
		return evt
	}

	for _, h := range hunters {
		if ctx.Err() != nil {
			break
		}
		evt.Hunters++
		outcome, err := s.runSafe(ctx, h)
		if err != nil {
			evt.Failed++
			s.logger.Warn("hunter cycle failed",
				zap.Int64("hunter_id", h.ID),
				zap.String("symbol", h.Symbol),
				zap.String("interval", interval),
				zap.Error(err))
			continue
		}
		if outcome != model.OutcomeNone {
			evt.Signals++
		}
	}

	evt.Duration = s.now().Sub(started)
	if err := s.Recorder.RecordBatch(evt); err != nil {
		s.logger.Error("record batch", zap.Error(err))
	}
	if s.Metrics != nil {
		s.Metrics.RecordBatch(interval, evt.Duration)
	}
	s.logger.Info("batch complete",
		zap.String("interval", interval),
		zap.Int("hunters", evt.Hunters),
		zap.Int("failed", evt.Failed),
		zap.Int("signals", evt.Signals),
		zap.Duration("duration", evt.Duration))
	return evt
}

func (s *Scheduler) runSafe(ctx context.Context, h *model.Hunter) (outcome model.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("hunter cycle panicked",
				zap.Int64("hunter_id", h.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			outcome, err = model.OutcomeNone, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Runner.RunOne(ctx, h)
}

func (s *Scheduler) refreshAnalysis(ctx context.Context) {
	if _, err := s.Refresher.RefreshAll(ctx); err != nil {
		s.logger.Error("analysis refresh", zap.Error(err))
	}
}
