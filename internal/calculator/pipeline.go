package calculator

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"DipHunter/internal/model"
)

// Derived column names.
const (
	ColRSI           = "rsi"
	ColCCI           = "cci"
	ColMFI           = "mfi"
	ColStochK        = "stoch_k"
	ColStochD        = "stoch_d"
	ColStochRSI      = "stoch_rsi"
	ColStochRSIK     = "stoch_rsi_k"
	ColStochRSID     = "stoch_rsi_d"
	ColUpperBand     = "upper_band"
	ColMiddleBand    = "middle_band"
	ColLowerBand     = "lower_band"
	ColEMAFast       = "ema_fast"
	ColEMASlow       = "ema_slow"
	ColMACD          = "macd"
	ColMACDSignal    = "macd_signal"
	ColMACDHistogram = "macd_histogram"
	ColMA50          = "ma_50"
	ColMA200         = "ma_200"
	ColATR           = "atr"
	ColPSAR          = "psar"
	ColTypicalPrice  = "typical_price"
	ColVWAP          = "vwap"
	ColADX           = "adx"
	ColPlusDI        = "plus_di"
	ColMinusDI       = "minus_di"
)

// errSkipped marks a step that chose not to run. It is not a failure.
var errSkipped = errors.New("skipped")

type step struct {
	name string
	run  func(t *Table, p *model.Profile) (map[string][]float64, error)
}

// steps run in this order; later steps may read columns of earlier ones.
var steps = []step{
	{"rsi", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		v, err := rsiSeries(t.cols[ColClose], p.RSITimePeriod)
		return map[string][]float64{ColRSI: v}, err
	}},
	{"cci", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		v, err := cciSeries(t.cols[ColHigh], t.cols[ColLow], t.cols[ColClose], p.CCITimePeriod)
		return map[string][]float64{ColCCI: v}, err
	}},
	{"mfi", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		v, err := mfiSeries(t.cols[ColHigh], t.cols[ColLow], t.cols[ColClose], t.cols[ColVolume], p.MFITimePeriod)
		return map[string][]float64{ColMFI: v}, err
	}},
	{"stoch", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		k, d, err := stochSeries(t.cols[ColHigh], t.cols[ColLow], t.cols[ColClose],
			p.StochKTimePeriod, p.StochDTimePeriod, p.StochDTimePeriod)
		return map[string][]float64{ColStochK: k, ColStochD: d}, err
	}},
	{"stoch_rsi", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		rsi, ok := t.cols[ColRSI]
		if !ok {
			return nil, fmt.Errorf("column %s is missing", ColRSI)
		}
		srsi, err := rsiSeries(rsi, p.StochRSITimePeriod)
		if err != nil {
			return nil, err
		}
		k, d, err := stochSeries(srsi, srsi, srsi, p.StochRSIKTimePeriod, p.StochRSIDTimePeriod, p.StochRSIDTimePeriod)
		return map[string][]float64{ColStochRSI: srsi, ColStochRSIK: k, ColStochRSID: d}, err
	}},
	{"bollinger", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		upper, middle, lower, err := bbandsSeries(t.cols[ColClose], p.BollingerTimePeriod, p.BollingerNbDev)
		return map[string][]float64{ColUpperBand: upper, ColMiddleBand: middle, ColLowerBand: lower}, err
	}},
	{"ema", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		fast, err := emaSeries(t.cols[ColClose], p.EMAFastTimePeriod)
		if err != nil {
			return nil, err
		}
		slow, err := emaSeries(t.cols[ColClose], p.EMASlowTimePeriod)
		return map[string][]float64{ColEMAFast: fast, ColEMASlow: slow}, err
	}},
	{"macd", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		if t.Len() < 2*p.MACDTimePeriod {
			return nil, errSkipped
		}
		macd, signal, err := macdSeries(t.cols[ColClose], p.MACDTimePeriod, 2*p.MACDTimePeriod, p.MACDSignalPeriod)
		if err != nil {
			return nil, err
		}
		hist := make([]float64, len(macd))
		for i := range macd {
			hist[i] = macd[i] - signal[i]
		}
		return map[string][]float64{ColMACD: macd, ColMACDSignal: signal, ColMACDHistogram: hist}, nil
	}},
	{"ma50", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		v, err := smaSeries(t.cols[ColClose], 50)
		return map[string][]float64{ColMA50: v}, err
	}},
	{"ma200", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		v, err := smaSeries(t.cols[ColClose], 200)
		return map[string][]float64{ColMA200: v}, err
	}},
	{"atr", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		v, err := atrSeries(t.cols[ColHigh], t.cols[ColLow], t.cols[ColClose], p.ATRTimePeriod)
		return map[string][]float64{ColATR: v}, err
	}},
	{"psar", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		v, err := sarSeries(t.cols[ColHigh], t.cols[ColLow], p.PSARAcceleration, p.PSARMaximum)
		return map[string][]float64{ColPSAR: v}, err
	}},
	{"vwap", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		typical, vwap := vwapSeries(t.cols[ColHigh], t.cols[ColLow], t.cols[ColClose], t.cols[ColVolume])
		return map[string][]float64{ColTypicalPrice: typical, ColVWAP: vwap}, nil
	}},
	{"adx", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		v, err := adxSeries(t.cols[ColHigh], t.cols[ColLow], t.cols[ColClose], p.ADXTimePeriod)
		return map[string][]float64{ColADX: v}, err
	}},
	{"di", func(t *Table, p *model.Profile) (map[string][]float64, error) {
		plus, minus, err := diSeries(t.cols[ColHigh], t.cols[ColLow], t.cols[ColClose], p.DITimePeriod)
		return map[string][]float64{ColPlusDI: plus, ColMinusDI: minus}, err
	}},
}

type options struct {
	logger   *zap.Logger
	zeroFill []string
	onError  func(step string, err error)
}

// Option configures Compute.
type Option func(*options)

// WithLogger routes step failures to l.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithZeroFill replaces NaN with 0 in the listed columns after all steps ran.
func WithZeroFill(cols ...string) Option {
	return func(o *options) { o.zeroFill = append(o.zeroFill, cols...) }
}

// WithStepErrorHook is called once for every failed step.
func WithStepErrorHook(fn func(step string, err error)) Option {
	return func(o *options) { o.onError = fn }
}

// Compute coerces raw klines and runs every indicator step over them.
// A failing step is logged and skipped; its columns stay absent.
func Compute(raw []model.RawKline, p *model.Profile, opts ...Option) *Table {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	t := NewTable(Coerce(raw))
	if t.Len() == 0 {
		return t
	}

	for _, s := range steps {
		if err := runStep(s, t, p); err != nil {
			if errors.Is(err, errSkipped) {
				o.logger.Debug("indicator step skipped", zap.String("step", s.name), zap.Int("rows", t.Len()))
				continue
			}
			o.logger.Warn("indicator step failed", zap.String("step", s.name), zap.Error(err))
			if o.onError != nil {
				o.onError(s.name, err)
			}
		}
	}

	for _, name := range o.zeroFill {
		col, ok := t.cols[name]
		if !ok {
			continue
		}
		for i, v := range col {
			if math.IsNaN(v) {
				col[i] = 0
			}
		}
	}
	return t
}

// runStep executes one step, turning errors and library panics into a
// *model.ComputationError. Columns are written only when the step succeeds.
func runStep(s step, t *Table, p *model.Profile) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &model.ComputationError{Step: s.name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	cols, err := s.run(t, p)
	if errors.Is(err, errSkipped) {
		return err
	}
	if err != nil {
		return &model.ComputationError{Step: s.name, Err: err}
	}
	for name, values := range cols {
		if len(values) != t.Len() {
			return &model.ComputationError{Step: s.name, Err: fmt.Errorf("column %s has %d rows, want %d", name, len(values), t.Len())}
		}
	}
	for name, values := range cols {
		t.cols[name] = values
	}
	return nil
}
