package calculator

import (
	"testing"

	"DipHunter/internal/model"
)

type trendRows struct {
	rsi, adx, plus, minus, atr [2]float64
	high, low                  float64
}

func trendTable(t *testing.T, r trendRows) *Table {
	t.Helper()
	bars := []model.Bar{
		{High: r.high, Low: r.low, Close: r.low},
		{High: r.high, Low: r.low, Close: r.high},
	}
	table := NewTable(bars)
	cols := map[string][2]float64{
		ColRSI: r.rsi, ColADX: r.adx, ColPlusDI: r.plus, ColMinusDI: r.minus, ColATR: r.atr,
	}
	for name, v := range cols {
		v := v
		if err := table.Set(name, v[:]); err != nil {
			t.Fatal(err)
		}
	}
	return table
}

func trendProfile() model.Profile {
	p := model.DefaultProfile()
	p.AvgADXPeriod = 2
	p.AvgDIPeriod = 2
	p.ADXStrongTrend = 25
	p.ADXWeakTrend = 20
	p.ADXNoTrend = 5
	p.RSIBuy = 30
	p.RSISell = 70
	return p
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		rows trendRows
		want model.Trend
	}{
		{
			name: "uptrend",
			rows: trendRows{
				rsi: [2]float64{50, 25}, adx: [2]float64{10, 30},
				plus: [2]float64{15, 35}, minus: [2]float64{20, 10}, atr: [2]float64{1, 0.6},
				high: 2650, low: 2600,
			},
			want: model.TrendUp,
		},
		{
			name: "horizontal when adx weakens and di converge",
			rows: trendRows{
				rsi: [2]float64{50, 25}, adx: [2]float64{30, 10},
				plus: [2]float64{15, 12}, minus: [2]float64{20, 10}, atr: [2]float64{1, 0.6},
				high: 2650, low: 2600,
			},
			want: model.TrendHorizontal,
		},
		{
			name: "downtrend",
			rows: trendRows{
				rsi: [2]float64{50, 75}, adx: [2]float64{10, 30},
				plus: [2]float64{20, 5}, minus: [2]float64{15, 35}, atr: [2]float64{1, 0.6},
				high: 2650, low: 2600,
			},
			want: model.TrendDown,
		},
		{
			name: "none when the range is below atr",
			rows: trendRows{
				rsi: [2]float64{50, 50}, adx: [2]float64{10, 30},
				plus: [2]float64{15, 35}, minus: [2]float64{20, 10}, atr: [2]float64{1, 0.6},
				high: 2600.5, low: 2600,
			},
			want: model.TrendNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := trendProfile()
			if got := Classify(trendTable(t, tt.rows), &p); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassify_MissingColumn(t *testing.T) {
	p := trendProfile()
	table := NewTable([]model.Bar{{High: 2, Low: 1, Close: 1.5}})
	if got := Classify(table, &p); got != model.TrendNone {
		t.Errorf("expected none without indicator columns, got %s", got)
	}
	if got := Classify(NewTable(nil), &p); got != model.TrendNone {
		t.Errorf("expected none for empty table, got %s", got)
	}
}
