package calculator

import (
	"math"

	"DipHunter/internal/model"
)

// Classify derives the trend regime of the latest row from ADX, the
// directional indicators, RSI and ATR. Missing inputs yield TrendNone.
func Classify(t *Table, p *model.Profile) model.Trend {
	if t.Len() == 0 || !t.Has(ColRSI, ColADX, ColPlusDI, ColMinusDI, ColATR, ColHigh, ColLow) {
		return model.TrendNone
	}

	adxCol, _ := t.Column(ColADX)
	plusCol, _ := t.Column(ColPlusDI)
	minusCol, _ := t.Column(ColMinusDI)
	meanADX := TailMean(adxCol, p.AvgADXPeriod)
	meanPlus := TailMean(plusCol, p.AvgDIPeriod)
	meanMinus := TailMean(minusCol, p.AvgDIPeriod)

	last := t.Latest()
	rsi := last.Get(ColRSI)
	adx := last.Get(ColADX)
	plus := last.Get(ColPlusDI)
	minus := last.Get(ColMinusDI)
	atr := last.Get(ColATR)
	spread := math.Abs(plus - minus)

	adxTrend := adx > p.ADXStrongTrend || adx > meanADX
	widening := spread > math.Abs(meanPlus-meanMinus)
	significant := last.Get(ColHigh)-last.Get(ColLow) > atr

	switch {
	case rsi < p.RSISell && adxTrend && widening && plus > p.ADXWeakTrend && significant && plus > meanMinus:
		return model.TrendUp
	case rsi > p.RSIBuy && adxTrend && widening && minus > p.ADXWeakTrend && significant && plus < meanMinus:
		return model.TrendDown
	case adx < meanADX || meanADX < p.ADXWeakTrend || spread < p.ADXNoTrend:
		return model.TrendHorizontal
	}
	return model.TrendNone
}
