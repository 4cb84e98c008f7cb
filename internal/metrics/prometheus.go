package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes hunter activity as Prometheus metrics.
type Recorder struct {
	cycles        *prometheus.CounterVec
	signals       *prometheus.CounterVec
	stepFailures  *prometheus.CounterVec
	dispatchFails *prometheus.CounterVec
	fetchRetries  *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	batchDuration *prometheus.HistogramVec
	lastClose     *prometheus.GaugeVec
}

// New registers the hunter metrics on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diphunter_cycles_total",
				Help: "Hunter cycles by interval and result",
			},
			[]string{"interval", "result"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diphunter_signals_total",
				Help: "Buy and sell signals raised",
			},
			[]string{"symbol", "outcome"},
		),
		stepFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diphunter_indicator_failures_total",
				Help: "Indicator steps that failed and were skipped",
			},
			[]string{"step"},
		),
		dispatchFails: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diphunter_dispatch_failures_total",
				Help: "Notification deliveries that failed",
			},
			[]string{"channel"},
		),
		fetchRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diphunter_fetch_retries_total",
				Help: "Market data fetch retries",
			},
			[]string{"source"},
		),
		cycleDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "diphunter_cycle_duration_seconds",
				Help:    "Duration of a single hunter cycle",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"interval"},
		),
		batchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "diphunter_batch_duration_seconds",
				Help:    "Duration of a scheduled interval batch",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"interval"},
		),
		lastClose: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "diphunter_last_close",
				Help: "Last close price seen per symbol and interval",
			},
			[]string{"symbol", "interval"},
		),
	}
}

// RecordCycle records a finished cycle; result is "ok" or an error kind.
func (r *Recorder) RecordCycle(interval, result string, d time.Duration) {
	r.cycles.WithLabelValues(interval, result).Inc()
	r.cycleDuration.WithLabelValues(interval).Observe(d.Seconds())
}

func (r *Recorder) RecordSignal(symbol, outcome string) {
	r.signals.WithLabelValues(symbol, outcome).Inc()
}

func (r *Recorder) RecordStepFailure(step string) {
	r.stepFailures.WithLabelValues(step).Inc()
}

func (r *Recorder) RecordDispatchFailure(channel string) {
	r.dispatchFails.WithLabelValues(channel).Inc()
}

func (r *Recorder) RecordFetchRetry(source string) {
	r.fetchRetries.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordBatch(interval string, d time.Duration) {
	r.batchDuration.WithLabelValues(interval).Observe(d.Seconds())
}

func (r *Recorder) RecordLastClose(symbol, interval string, price float64) {
	r.lastClose.WithLabelValues(symbol, interval).Set(price)
}
