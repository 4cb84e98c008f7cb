package strategy

import (
	calc "DipHunter/internal/calculator"
	"DipHunter/internal/model"
)

// Predicate family names, one per hunter toggle.
const (
	FamilyTrend                = "trend"
	FamilyRSI                  = "rsi"
	FamilyRSIDivergence        = "rsi_divergence"
	FamilyVolume               = "volume"
	FamilyMACDCross            = "macd_cross"
	FamilyMACDHistogram        = "macd_histogram"
	FamilyBollinger            = "bollinger"
	FamilyStochastic           = "stoch"
	FamilyStochasticDivergence = "stoch_divergence"
	FamilyStochasticRSI        = "stoch_rsi"
	FamilyEMACross             = "ema_cross"
	FamilyEMAFast              = "ema_fast"
	FamilyEMASlow              = "ema_slow"
	FamilyDI                   = "di"
	FamilyCCI                  = "cci"
	FamilyCCIDivergence        = "cci_divergence"
	FamilyMFI                  = "mfi"
	FamilyMFIDivergence        = "mfi_divergence"
	FamilyATR                  = "atr"
	FamilyVWAP                 = "vwap"
	FamilyPSAR                 = "psar"
	FamilyMA50                 = "ma50"
	FamilyMA200                = "ma200"
	FamilyMACross              = "ma_cross"
)

// Input carries everything a predicate may compare.
type Input struct {
	Latest   calc.Row
	Previous calc.Row
	Averages model.Averages
	Profile  *model.Profile
	Trend    model.Trend
}

func (in *Input) l(col string) float64 { return in.Latest.Get(col) }
func (in *Input) p(col string) float64 { return in.Previous.Get(col) }
func (in *Input) a(col string) float64 { return in.Averages.Get(calc.AverageKey(col)) }

// Predicate is one toggleable condition. NaN operands make every comparison false.
type Predicate struct {
	Family  string
	Enabled func(t *model.Toggles) bool
	Check   func(in *Input) bool
}

// crossUp: a was at or below b and is now at or above it.
func crossUp(in *Input, a, b string) bool {
	return in.p(a) <= in.p(b) && in.l(a) >= in.l(b)
}

func crossDown(in *Input, a, b string) bool {
	return in.p(a) >= in.p(b) && in.l(a) <= in.l(b)
}

// volatilityExpanding is direction neutral and shared by both sides.
func volatilityExpanding(in *Input) bool {
	return in.l(calc.ColATR) >= in.a(calc.ColATR) && in.l(calc.ColATR) >= in.Profile.ATRBuyThreshold*in.l(calc.ColClose)
}

func volumeRising(in *Input) bool {
	return in.l(calc.ColVolume) >= in.a(calc.ColVolume)
}

var buyPredicates = []Predicate{
	{FamilyTrend, func(t *model.Toggles) bool { return t.Trend }, func(in *Input) bool {
		return in.Trend == model.TrendUp
	}},
	{FamilyRSI, func(t *model.Toggles) bool { return t.RSI }, func(in *Input) bool {
		return in.l(calc.ColRSI) <= in.Profile.RSIBuy && in.l(calc.ColRSI) >= in.a(calc.ColRSI)
	}},
	{FamilyRSIDivergence, func(t *model.Toggles) bool { return t.RSIDivergence }, func(in *Input) bool {
		return in.l(calc.ColClose) <= in.a(calc.ColClose) && in.l(calc.ColRSI) >= in.a(calc.ColRSI)
	}},
	{FamilyVolume, func(t *model.Toggles) bool { return t.Volume }, volumeRising},
	{FamilyMACDCross, func(t *model.Toggles) bool { return t.MACDCross }, func(in *Input) bool {
		return crossUp(in, calc.ColMACD, calc.ColMACDSignal)
	}},
	{FamilyMACDHistogram, func(t *model.Toggles) bool { return t.MACDHistogram }, func(in *Input) bool {
		return in.p(calc.ColMACDHistogram) <= 0 && in.l(calc.ColMACDHistogram) >= 0
	}},
	{FamilyBollinger, func(t *model.Toggles) bool { return t.Bollinger }, func(in *Input) bool {
		return in.l(calc.ColClose) <= in.l(calc.ColLowerBand)
	}},
	{FamilyStochastic, func(t *model.Toggles) bool { return t.Stochastic }, func(in *Input) bool {
		return crossUp(in, calc.ColStochK, calc.ColStochD) && in.l(calc.ColStochK) <= in.Profile.StochBuy
	}},
	{FamilyStochasticDivergence, func(t *model.Toggles) bool { return t.StochasticDivergence }, func(in *Input) bool {
		return in.l(calc.ColStochK) >= in.a(calc.ColStochK) && in.l(calc.ColClose) <= in.a(calc.ColClose)
	}},
	{FamilyStochasticRSI, func(t *model.Toggles) bool { return t.StochasticRSI }, func(in *Input) bool {
		return in.l(calc.ColStochRSIK) <= in.Profile.StochBuy && in.l(calc.ColStochRSIK) >= in.a(calc.ColStochRSIK)
	}},
	{FamilyEMACross, func(t *model.Toggles) bool { return t.EMACross }, func(in *Input) bool {
		return crossUp(in, calc.ColEMAFast, calc.ColEMASlow)
	}},
	{FamilyEMAFast, func(t *model.Toggles) bool { return t.EMAFast }, func(in *Input) bool {
		return in.l(calc.ColClose) >= in.a(calc.ColEMAFast)
	}},
	{FamilyEMASlow, func(t *model.Toggles) bool { return t.EMASlow }, func(in *Input) bool {
		return in.l(calc.ColClose) >= in.a(calc.ColEMASlow)
	}},
	{FamilyDI, func(t *model.Toggles) bool { return t.DI }, func(in *Input) bool {
		return crossUp(in, calc.ColPlusDI, calc.ColMinusDI)
	}},
	{FamilyCCI, func(t *model.Toggles) bool { return t.CCI }, func(in *Input) bool {
		return in.l(calc.ColCCI) <= in.Profile.CCIBuy && in.l(calc.ColCCI) >= in.a(calc.ColCCI)
	}},
	{FamilyCCIDivergence, func(t *model.Toggles) bool { return t.CCIDivergence }, func(in *Input) bool {
		return in.l(calc.ColClose) <= in.a(calc.ColClose) && in.l(calc.ColCCI) >= in.a(calc.ColCCI)
	}},
	{FamilyMFI, func(t *model.Toggles) bool { return t.MFI }, func(in *Input) bool {
		return in.l(calc.ColMFI) <= in.Profile.MFIBuy && in.l(calc.ColMFI) >= in.a(calc.ColMFI)
	}},
	{FamilyMFIDivergence, func(t *model.Toggles) bool { return t.MFIDivergence }, func(in *Input) bool {
		return in.l(calc.ColClose) <= in.a(calc.ColClose) && in.l(calc.ColMFI) >= in.a(calc.ColMFI)
	}},
	{FamilyATR, func(t *model.Toggles) bool { return t.ATR }, volatilityExpanding},
	{FamilyVWAP, func(t *model.Toggles) bool { return t.VWAP }, func(in *Input) bool {
		return in.l(calc.ColClose) >= in.l(calc.ColVWAP)
	}},
	{FamilyPSAR, func(t *model.Toggles) bool { return t.PSAR }, func(in *Input) bool {
		return in.p(calc.ColPSAR) >= in.p(calc.ColClose) && in.l(calc.ColPSAR) <= in.l(calc.ColClose)
	}},
	{FamilyMA50, func(t *model.Toggles) bool { return t.MA50 }, func(in *Input) bool {
		return in.l(calc.ColClose) >= in.l(calc.ColMA50)
	}},
	{FamilyMA200, func(t *model.Toggles) bool { return t.MA200 }, func(in *Input) bool {
		return in.l(calc.ColClose) >= in.l(calc.ColMA200)
	}},
	{FamilyMACross, func(t *model.Toggles) bool { return t.MACross }, func(in *Input) bool {
		return crossUp(in, calc.ColMA50, calc.ColMA200)
	}},
}

var sellPredicates = []Predicate{
	{FamilyTrend, func(t *model.Toggles) bool { return t.Trend }, func(in *Input) bool {
		return in.Trend == model.TrendDown
	}},
	{FamilyRSI, func(t *model.Toggles) bool { return t.RSI }, func(in *Input) bool {
		return in.l(calc.ColRSI) >= in.Profile.RSISell && in.l(calc.ColRSI) <= in.a(calc.ColRSI)
	}},
	{FamilyRSIDivergence, func(t *model.Toggles) bool { return t.RSIDivergence }, func(in *Input) bool {
		return in.l(calc.ColClose) >= in.a(calc.ColClose) && in.l(calc.ColRSI) <= in.a(calc.ColRSI)
	}},
	{FamilyVolume, func(t *model.Toggles) bool { return t.Volume }, volumeRising},
	{FamilyMACDCross, func(t *model.Toggles) bool { return t.MACDCross }, func(in *Input) bool {
		return crossDown(in, calc.ColMACD, calc.ColMACDSignal)
	}},
	{FamilyMACDHistogram, func(t *model.Toggles) bool { return t.MACDHistogram }, func(in *Input) bool {
		return in.p(calc.ColMACDHistogram) >= 0 && in.l(calc.ColMACDHistogram) <= 0
	}},
	{FamilyBollinger, func(t *model.Toggles) bool { return t.Bollinger }, func(in *Input) bool {
		return in.l(calc.ColClose) >= in.l(calc.ColUpperBand)
	}},
	{FamilyStochastic, func(t *model.Toggles) bool { return t.Stochastic }, func(in *Input) bool {
		return crossDown(in, calc.ColStochK, calc.ColStochD) && in.l(calc.ColStochK) >= in.Profile.StochSell
	}},
	{FamilyStochasticDivergence, func(t *model.Toggles) bool { return t.StochasticDivergence }, func(in *Input) bool {
		return in.l(calc.ColStochK) <= in.a(calc.ColStochK) && in.l(calc.ColClose) >= in.a(calc.ColClose)
	}},
	{FamilyStochasticRSI, func(t *model.Toggles) bool { return t.StochasticRSI }, func(in *Input) bool {
		return in.l(calc.ColStochRSIK) >= in.Profile.StochSell && in.l(calc.ColStochRSIK) <= in.a(calc.ColStochRSIK)
	}},
	{FamilyEMACross, func(t *model.Toggles) bool { return t.EMACross }, func(in *Input) bool {
		return crossDown(in, calc.ColEMAFast, calc.ColEMASlow)
	}},
	{FamilyEMAFast, func(t *model.Toggles) bool { return t.EMAFast }, func(in *Input) bool {
		return in.l(calc.ColClose) <= in.a(calc.ColEMAFast)
	}},
	{FamilyEMASlow, func(t *model.Toggles) bool { return t.EMASlow }, func(in *Input) bool {
		return in.l(calc.ColClose) <= in.a(calc.ColEMASlow)
	}},
	{FamilyDI, func(t *model.Toggles) bool { return t.DI }, func(in *Input) bool {
		return crossDown(in, calc.ColPlusDI, calc.ColMinusDI)
	}},
	{FamilyCCI, func(t *model.Toggles) bool { return t.CCI }, func(in *Input) bool {
		return in.l(calc.ColCCI) >= in.Profile.CCISell && in.l(calc.ColCCI) <= in.a(calc.ColCCI)
	}},
	{FamilyCCIDivergence, func(t *model.Toggles) bool { return t.CCIDivergence }, func(in *Input) bool {
		return in.l(calc.ColClose) >= in.a(calc.ColClose) && in.l(calc.ColCCI) <= in.a(calc.ColCCI)
	}},
	{FamilyMFI, func(t *model.Toggles) bool { return t.MFI }, func(in *Input) bool {
		return in.l(calc.ColMFI) >= in.Profile.MFISell && in.l(calc.ColMFI) <= in.a(calc.ColMFI)
	}},
	{FamilyMFIDivergence, func(t *model.Toggles) bool { return t.MFIDivergence }, func(in *Input) bool {
		return in.l(calc.ColClose) >= in.a(calc.ColClose) && in.l(calc.ColMFI) <= in.a(calc.ColMFI)
	}},
	{FamilyATR, func(t *model.Toggles) bool { return t.ATR }, volatilityExpanding},
	{FamilyVWAP, func(t *model.Toggles) bool { return t.VWAP }, func(in *Input) bool {
		return in.l(calc.ColClose) <= in.l(calc.ColVWAP)
	}},
	{FamilyPSAR, func(t *model.Toggles) bool { return t.PSAR }, func(in *Input) bool {
		return in.p(calc.ColPSAR) <= in.p(calc.ColClose) && in.l(calc.ColPSAR) >= in.l(calc.ColClose)
	}},
	{FamilyMA50, func(t *model.Toggles) bool { return t.MA50 }, func(in *Input) bool {
		return in.l(calc.ColClose) <= in.l(calc.ColMA50)
	}},
	{FamilyMA200, func(t *model.Toggles) bool { return t.MA200 }, func(in *Input) bool {
		return in.l(calc.ColClose) <= in.l(calc.ColMA200)
	}},
	{FamilyMACross, func(t *model.Toggles) bool { return t.MACross }, func(in *Input) bool {
		return crossDown(in, calc.ColMA50, calc.ColMA200)
	}},
}

// Predicates returns the predicate list for side.
func Predicates(side model.Side) []Predicate {
	if side == model.SideSell {
		return sellPredicates
	}
	return buyPredicates
}
