package calculator

import (
	"math"

	"DipHunter/internal/model"
)

type averageSpec struct {
	column string
	window func(p *model.Profile) int
}

var averageSpecs = []averageSpec{
	{ColVolume, func(p *model.Profile) int { return p.AvgVolumePeriod }},
	{ColRSI, func(p *model.Profile) int { return p.AvgRSIPeriod }},
	{ColCCI, func(p *model.Profile) int { return p.AvgCCIPeriod }},
	{ColMFI, func(p *model.Profile) int { return p.AvgMFIPeriod }},
	{ColATR, func(p *model.Profile) int { return p.AvgATRPeriod }},
	{ColStochRSIK, func(p *model.Profile) int { return p.AvgStochRSIPeriod }},
	{ColStochRSID, func(p *model.Profile) int { return p.AvgStochRSIPeriod }},
	{ColMACD, func(p *model.Profile) int { return p.AvgMACDPeriod }},
	{ColMACDSignal, func(p *model.Profile) int { return p.AvgMACDPeriod }},
	{ColStochK, func(p *model.Profile) int { return p.AvgStochPeriod }},
	{ColStochD, func(p *model.Profile) int { return p.AvgStochPeriod }},
	{ColEMAFast, func(p *model.Profile) int { return p.AvgEMAPeriod }},
	{ColEMASlow, func(p *model.Profile) int { return p.AvgEMAPeriod }},
	{ColPlusDI, func(p *model.Profile) int { return p.AvgDIPeriod }},
	{ColMinusDI, func(p *model.Profile) int { return p.AvgDIPeriod }},
	{ColPSAR, func(p *model.Profile) int { return p.AvgPSARPeriod }},
	{ColVWAP, func(p *model.Profile) int { return p.AvgVWAPPeriod }},
	{ColClose, func(p *model.Profile) int { return p.AvgClosePeriod }},
	{ColADX, func(p *model.Profile) int { return p.AvgADXPeriod }},
}

// AverageKey returns the Averages key for a column.
func AverageKey(column string) string { return "avg_" + column }

// Averages computes the trailing-window mean of every tracked column.
// Absent columns are left out of the result.
func Averages(t *Table, p *model.Profile) model.Averages {
	out := make(model.Averages, len(averageSpecs))
	for _, spec := range averageSpecs {
		col, ok := t.Column(spec.column)
		if !ok {
			continue
		}
		out[AverageKey(spec.column)] = TailMean(col, spec.window(p))
	}
	return out
}

// TailMean averages the last window values, ignoring NaN. A window larger
// than the series averages all of it. No values yields NaN.
func TailMean(values []float64, window int) float64 {
	if window < 1 {
		window = 1
	}
	start := len(values) - window
	if start < 0 {
		start = 0
	}
	var sum float64
	var n int
	for _, v := range values[start:] {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
