package calculator

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"DipHunter/internal/model"
)

// syntheticKlines builds n hourly klines with a deterministic oscillating drift.
func syntheticKlines(n int) []model.RawKline {
	out := make([]model.RawKline, n)
	start := int64(1700000000000)
	for i := 0; i < n; i++ {
		base := 2600 + 40*math.Sin(float64(i)/7) + float64(i)*0.8
		open := base - 3
		closePrice := base + 4*math.Cos(float64(i)/3)
		high := math.Max(open, closePrice) + 6
		low := math.Min(open, closePrice) - 6
		vol := 100 + 25*math.Sin(float64(i)/5) + float64(i%11)
		out[i] = model.RawKline{
			OpenTime:  start + int64(i)*3600000,
			Open:      strconv.FormatFloat(open, 'f', 2, 64),
			High:      strconv.FormatFloat(high, 'f', 2, 64),
			Low:       strconv.FormatFloat(low, 'f', 2, 64),
			Close:     strconv.FormatFloat(closePrice, 'f', 2, 64),
			Volume:    strconv.FormatFloat(vol, 'f', 4, 64),
			CloseTime: start + int64(i+1)*3600000 - 1,
		}
	}
	return out
}

func sameFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.IsNaN(a[i]) && math.IsNaN(b[i]) {
			continue
		}
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCompute_Deterministic(t *testing.T) {
	raw := syntheticKlines(260)
	p := model.DefaultProfile()

	first := Compute(raw, &p)
	second := Compute(raw, &p)

	if first.Len() != 260 {
		t.Fatalf("expected 260 rows, got %d", first.Len())
	}
	if len(first.Columns()) != len(second.Columns()) {
		t.Fatalf("column sets differ: %v vs %v", first.Columns(), second.Columns())
	}
	for _, name := range first.Columns() {
		a, _ := first.Column(name)
		b, ok := second.Column(name)
		if !ok {
			t.Fatalf("column %s missing on second run", name)
		}
		if len(a) != first.Len() {
			t.Errorf("column %s has %d rows, want %d", name, len(a), first.Len())
		}
		if !sameFloats(a, b) {
			t.Errorf("column %s differs between runs", name)
		}
	}
}

func TestCompute_AllStepsOnLongSeries(t *testing.T) {
	p := model.DefaultProfile()
	table := Compute(syntheticKlines(260), &p)

	want := []string{ColRSI, ColCCI, ColMFI, ColStochK, ColStochD, ColStochRSI, ColStochRSIK, ColStochRSID,
		ColUpperBand, ColMiddleBand, ColLowerBand, ColEMAFast, ColEMASlow, ColMACD, ColMACDSignal,
		ColMACDHistogram, ColMA50, ColMA200, ColATR, ColPSAR, ColTypicalPrice, ColVWAP, ColADX, ColPlusDI, ColMinusDI}
	for _, name := range want {
		if !table.Has(name) {
			t.Errorf("expected column %s", name)
		}
	}

	rsi, _ := table.Column(ColRSI)
	if !math.IsNaN(rsi[p.RSITimePeriod-1]) {
		t.Errorf("expected warm-up rsi to be NaN, got %v", rsi[p.RSITimePeriod-1])
	}
	last := table.Latest().Get(ColRSI)
	if math.IsNaN(last) || last < 0 || last > 100 {
		t.Errorf("latest rsi out of range: %v", last)
	}

	ma200, _ := table.Column(ColMA200)
	if !math.IsNaN(ma200[198]) {
		t.Errorf("expected ma_200 row 198 to be NaN, got %v", ma200[198])
	}
	if math.IsNaN(ma200[259]) {
		t.Error("expected ma_200 at the last row")
	}

	macd, _ := table.Column(ColMACD)
	signal, _ := table.Column(ColMACDSignal)
	hist, _ := table.Column(ColMACDHistogram)
	if got := hist[259]; math.Abs(got-(macd[259]-signal[259])) > 1e-9 {
		t.Errorf("histogram should equal macd - signal, got %v", got)
	}
}

func TestCompute_MACDNeedsTwiceFastPeriod(t *testing.T) {
	p := model.DefaultProfile()
	short := Compute(syntheticKlines(2*p.MACDTimePeriod-1), &p)
	for _, name := range []string{ColMACD, ColMACDSignal, ColMACDHistogram} {
		if short.Has(name) {
			t.Errorf("column %s should be absent below 2x fast period", name)
		}
	}

	long := Compute(syntheticKlines(60), &p)
	if !long.Has(ColMACD, ColMACDSignal, ColMACDHistogram) {
		t.Error("expected macd columns with 60 rows")
	}
}

func TestCompute_FailingStepIsIsolated(t *testing.T) {
	p := model.DefaultProfile()
	p.RSITimePeriod = 0

	var failed []string
	table := Compute(syntheticKlines(260), &p, WithStepErrorHook(func(step string, err error) {
		var compErr *model.ComputationError
		if !errors.As(err, &compErr) {
			t.Errorf("step %s: expected ComputationError, got %T", step, err)
		}
		failed = append(failed, step)
	}))

	if table.Has(ColRSI) || table.Has(ColStochRSIK) {
		t.Error("rsi and stochastic rsi should be absent when rsi fails")
	}
	if !table.Has(ColCCI, ColMFI, ColADX, ColVWAP) {
		t.Error("unrelated steps should still produce columns")
	}
	if len(failed) != 2 || failed[0] != "rsi" || failed[1] != "stoch_rsi" {
		t.Errorf("unexpected failed steps: %v", failed)
	}
}

func TestCompute_InsufficientRowsLeavesColumnAbsent(t *testing.T) {
	p := model.DefaultProfile()
	table := Compute(syntheticKlines(120), &p)
	if table.Has(ColMA200) {
		t.Error("ma_200 should be absent with 120 rows")
	}
	if !table.Has(ColMA50) {
		t.Error("ma_50 should be present with 120 rows")
	}
}

func TestCompute_CoercionDropsBadClose(t *testing.T) {
	raw := syntheticKlines(30)
	raw[5].Close = "not-a-number"
	raw[7].Volume = ""

	p := model.DefaultProfile()
	table := Compute(raw, &p)
	if table.Len() != 29 {
		t.Fatalf("expected 29 rows after dropping bad close, got %d", table.Len())
	}
	vol, _ := table.Column(ColVolume)
	if !math.IsNaN(vol[6]) {
		t.Errorf("expected NaN volume for unparseable value, got %v", vol[6])
	}
}

func TestCompute_EmptyInput(t *testing.T) {
	p := model.DefaultProfile()
	table := Compute(nil, &p)
	if table.Len() != 0 {
		t.Fatalf("expected empty table, got %d rows", table.Len())
	}
}

func TestCompute_ZeroFill(t *testing.T) {
	p := model.DefaultProfile()
	table := Compute(syntheticKlines(60), &p, WithZeroFill(ColRSI, "not_a_column"))
	rsi, _ := table.Column(ColRSI)
	for i := 0; i < p.RSITimePeriod; i++ {
		if rsi[i] != 0 {
			t.Fatalf("rsi[%d] = %v, want 0 after zero fill", i, rsi[i])
		}
	}
	cci, _ := table.Column(ColCCI)
	if !math.IsNaN(cci[0]) {
		t.Error("columns outside the fill list must keep NaN")
	}
}

func TestVWAPSeries(t *testing.T) {
	high := []float64{12, 14, 16}
	low := []float64{8, 10, 12}
	closes := []float64{10, 12, 14}
	volume := []float64{1, 3, math.NaN()}
	typical, vwap := vwapSeries(high, low, closes, volume)
	if typical[1] != 12 {
		t.Errorf("typical[1] = %v, want 12", typical[1])
	}
	if vwap[0] != 10 {
		t.Errorf("vwap[0] = %v, want 10", vwap[0])
	}
	if want := (10.0*1 + 12.0*3) / 4; vwap[1] != want {
		t.Errorf("vwap[1] = %v, want %v", vwap[1], want)
	}
	if !math.IsNaN(vwap[2]) {
		t.Errorf("vwap with missing volume should be NaN, got %v", vwap[2])
	}
}

func TestTailMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		window int
		want   float64
	}{
		{"window larger than series", []float64{50, 55, 60}, 14, 55},
		{"window of two", []float64{50, 55, 60}, 2, 57.5},
		{"skips NaN", []float64{10, math.NaN(), 20}, 3, 15},
		{"single", []float64{7}, 1, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TailMean(tt.values, tt.window); got != tt.want {
				t.Errorf("TailMean(%v, %d) = %v, want %v", tt.values, tt.window, got, tt.want)
			}
		})
	}
	if got := TailMean([]float64{math.NaN(), math.NaN()}, 2); !math.IsNaN(got) {
		t.Errorf("all-NaN window should be NaN, got %v", got)
	}
}

func TestAverages(t *testing.T) {
	bars := []model.Bar{{Close: 50, Volume: 1}, {Close: 55, Volume: 2}, {Close: 60, Volume: 3}}
	table := NewTable(bars)
	if err := table.Set(ColRSI, []float64{50, 55, 60}); err != nil {
		t.Fatal(err)
	}
	p := model.DefaultProfile()
	p.AvgRSIPeriod = 14
	p.AvgClosePeriod = 2

	avg := Averages(table, &p)
	if got := avg.Get("avg_rsi"); got != 55 {
		t.Errorf("avg_rsi = %v, want 55", got)
	}
	if got := avg.Get("avg_close"); got != 57.5 {
		t.Errorf("avg_close = %v, want 57.5", got)
	}
	if _, ok := avg["avg_cci"]; ok {
		t.Error("absent column should not produce an average")
	}
}

func TestTableSetRejectsLengthMismatch(t *testing.T) {
	table := NewTable(make([]model.Bar, 3))
	if err := table.Set("x", []float64{1, 2}); err == nil {
		t.Error("expected length mismatch error")
	}
}
