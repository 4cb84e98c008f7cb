package notifier

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	c "DipHunter/internal/calculator"
	"DipHunter/internal/model"
	"DipHunter/internal/strategy"
)

const timeLayout = "2006-01-02 15:04:05"

// section is one indicator block of a report, shown when any of its families is enabled.
type section struct {
	title    string
	enabled  func(t *model.Toggles) bool
	columns  []string
	averages []string
	params   func(p *model.Profile) string
}

var sections = []section{
	{
		title:    "RSI (Relative Strength Index)",
		enabled:  func(t *model.Toggles) bool { return t.RSI || t.RSIDivergence },
		columns:  []string{c.ColRSI},
		averages: []string{c.ColRSI},
		params: func(p *model.Profile) string {
			return fmt.Sprintf("period %d, avg %d, buy %.0f, sell %.0f", p.RSITimePeriod, p.AvgRSIPeriod, p.RSIBuy, p.RSISell)
		},
	},
	{
		title:    "CCI (Commodity Channel Index)",
		enabled:  func(t *model.Toggles) bool { return t.CCI || t.CCIDivergence },
		columns:  []string{c.ColCCI},
		averages: []string{c.ColCCI},
		params: func(p *model.Profile) string {
			return fmt.Sprintf("period %d, avg %d, buy %.0f, sell %.0f", p.CCITimePeriod, p.AvgCCIPeriod, p.CCIBuy, p.CCISell)
		},
	},
	{
		title:    "MFI (Money Flow Index)",
		enabled:  func(t *model.Toggles) bool { return t.MFI || t.MFIDivergence },
		columns:  []string{c.ColMFI},
		averages: []string{c.ColMFI},
		params: func(p *model.Profile) string {
			return fmt.Sprintf("period %d, avg %d, buy %.0f, sell %.0f", p.MFITimePeriod, p.AvgMFIPeriod, p.MFIBuy, p.MFISell)
		},
	},
	{
		title:    "MACD",
		enabled:  func(t *model.Toggles) bool { return t.MACDCross || t.MACDHistogram },
		columns:  []string{c.ColMACD, c.ColMACDSignal, c.ColMACDHistogram},
		averages: []string{c.ColMACD, c.ColMACDSignal},
		params: func(p *model.Profile) string {
			return fmt.Sprintf("fast %d, slow %d, signal %d, avg %d", p.MACDTimePeriod, 2*p.MACDTimePeriod, p.MACDSignalPeriod, p.AvgMACDPeriod)
		},
	},
	{
		title:   "Bollinger Bands",
		enabled: func(t *model.Toggles) bool { return t.Bollinger },
		columns: []string{c.ColUpperBand, c.ColMiddleBand, c.ColLowerBand},
		params: func(p *model.Profile) string {
			return fmt.Sprintf("period %d, nbdev %.1f", p.BollingerTimePeriod, p.BollingerNbDev)
		},
	},
	{
		title:    "Stochastic",
		enabled:  func(t *model.Toggles) bool { return t.Stochastic || t.StochasticDivergence },
		columns:  []string{c.ColStochK, c.ColStochD},
		averages: []string{c.ColStochK, c.ColStochD},
		params: func(p *model.Profile) string {
			return fmt.Sprintf("k %d, d %d, avg %d, buy %.0f, sell %.0f", p.StochKTimePeriod, p.StochDTimePeriod, p.AvgStochPeriod, p.StochBuy, p.StochSell)
		},
	},
	{
		title:    "Stochastic RSI",
		enabled:  func(t *model.Toggles) bool { return t.StochasticRSI },
		columns:  []string{c.ColStochRSIK, c.ColStochRSID},
		averages: []string{c.ColStochRSIK, c.ColStochRSID},
		params: func(p *model.Profile) string {
			return fmt.Sprintf("period %d, k %d, d %d, avg %d", p.StochRSITimePeriod, p.StochRSIKTimePeriod, p.StochRSIDTimePeriod, p.AvgStochRSIPeriod)
		},
	},
	{
		title:    "EMA",
		enabled:  func(t *model.Toggles) bool { return t.EMACross || t.EMAFast || t.EMASlow },
		columns:  []string{c.ColEMAFast, c.ColEMASlow},
		averages: []string{c.ColEMAFast, c.ColEMASlow},
		params: func(p *model.Profile) string {
			return fmt.Sprintf("fast %d, slow %d, avg %d", p.EMAFastTimePeriod, p.EMASlowTimePeriod, p.AvgEMAPeriod)
		},
	},
	{
		title:    "Directional Indicators",
		enabled:  func(t *model.Toggles) bool { return t.DI || t.Trend },
		columns:  []string{c.ColPlusDI, c.ColMinusDI, c.ColADX},
		averages: []string{c.ColPlusDI, c.ColMinusDI, c.ColADX},
		params: func(p *model.Profile) string {
			return fmt.Sprintf("di %d, adx %d, avg di %d, avg adx %d", p.DITimePeriod, p.ADXTimePeriod, p.AvgDIPeriod, p.AvgADXPeriod)
		},
	},
	{
		title:    "ATR (Average True Range)",
		enabled:  func(t *model.Toggles) bool { return t.ATR },
		columns:  []string{c.ColATR},
		averages: []string{c.ColATR},
		params: func(p *model.Profile) string {
			return fmt.Sprintf("period %d, avg %d, threshold %.4f", p.ATRTimePeriod, p.AvgATRPeriod, p.ATRBuyThreshold)
		},
	},
	{
		title:    "VWAP",
		enabled:  func(t *model.Toggles) bool { return t.VWAP },
		columns:  []string{c.ColVWAP},
		averages: []string{c.ColVWAP},
		params:   func(p *model.Profile) string { return fmt.Sprintf("avg %d", p.AvgVWAPPeriod) },
	},
	{
		title:    "Parabolic SAR",
		enabled:  func(t *model.Toggles) bool { return t.PSAR },
		columns:  []string{c.ColPSAR},
		averages: []string{c.ColPSAR},
		params: func(p *model.Profile) string {
			return fmt.Sprintf("acceleration %.2f, maximum %.2f", p.PSARAcceleration, p.PSARMaximum)
		},
	},
	{
		title:   "Moving Averages",
		enabled: func(t *model.Toggles) bool { return t.MA50 || t.MA200 || t.MACross },
		columns: []string{c.ColMA50, c.ColMA200},
		params:  func(*model.Profile) string { return "50 / 200" },
	},
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

// Subject returns the notification subject line for a signal.
func Subject(h *model.Hunter, outcome model.Outcome) string {
	return fmt.Sprintf("Hunter %d %s %s signal", h.ID, h.Symbol, strings.ToUpper(string(outcome)))
}

// FormatSignal renders the body of a buy or sell notification.
func FormatSignal(h *model.Hunter, outcome model.Outcome, trend model.Trend, t *c.Table, avg model.Averages, now time.Time) string {
	var b strings.Builder
	last, prev := t.Latest(), t.Previous()

	b.WriteString(fmt.Sprintf("Current %s signal.\n%s\n\n", strings.ToUpper(string(outcome)), now.UTC().Format(timeLayout)))
	b.WriteString(fmt.Sprintf("Hunter %d %s\n", h.ID, h.Symbol))
	b.WriteString(fmt.Sprintf("interval: %s | lookback: %s\n", h.Interval, h.Lookback))
	if h.Comment != "" {
		b.WriteString(fmt.Sprintf("comment: %s\n", h.Comment))
	}
	if h.Note != "" {
		b.WriteString(fmt.Sprintf("note: %s\n", h.Note))
	}
	if bars := t.Bars(); len(bars) > 0 {
		bar := bars[len(bars)-1]
		b.WriteString(fmt.Sprintf("candle: %s .. %s\n", bar.OpenTime.Format(timeLayout), bar.CloseTime.Format(timeLayout)))
	}
	b.WriteString(fmt.Sprintf("\ntrend: %s\n", trend))

	if h.Toggles.Price {
		b.WriteString(fmt.Sprintf("\nPrice:\nclose %s (prev %s, avg %s over %d)\n",
			num(last.Get(c.ColClose)), num(prev.Get(c.ColClose)), num(avg.Get(c.AverageKey(c.ColClose))), h.Profile.AvgClosePeriod))
	}
	if h.Toggles.Volume {
		b.WriteString(fmt.Sprintf("\nVolume:\nvolume %s (prev %s, avg %s over %d)\n",
			num(last.Get(c.ColVolume)), num(prev.Get(c.ColVolume)), num(avg.Get(c.AverageKey(c.ColVolume))), h.Profile.AvgVolumePeriod))
	}

	for _, s := range sections {
		if !s.enabled(&h.Toggles) {
			continue
		}
		b.WriteString(fmt.Sprintf("\n%s:\n%s\n", s.title, s.params(&h.Profile)))
		for _, col := range s.columns {
			b.WriteString(fmt.Sprintf("%s %s (prev %s)\n", col, num(last.Get(col)), num(prev.Get(col))))
		}
		for _, col := range s.averages {
			key := c.AverageKey(col)
			b.WriteString(fmt.Sprintf("%s %s\n", key, num(avg.Get(key))))
		}
	}

	side := model.SideBuy
	if outcome == model.OutcomeSell {
		side = model.SideSell
	}
	if results := strategy.Explain(side, t, h, trend, avg); len(results) > 0 {
		b.WriteString("\nConditions:\n")
		for _, r := range results {
			mark := "no"
			if r.Passed {
				mark = "yes"
			}
			b.WriteString(fmt.Sprintf("  %s: %s\n", r.Family, mark))
		}
	}
	return b.String()
}

// FormatInputs renders a decision snapshot for chat replies.
func FormatInputs(in *model.DecisionInputs) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Hunter %d %s %s\n", in.HunterID, in.Symbol, in.Interval))
	b.WriteString(fmt.Sprintf("computed: %s | rows: %d\n", in.ComputedAt.UTC().Format(timeLayout), in.Rows))
	b.WriteString(fmt.Sprintf("trend: %s | outcome: %s\n\n", in.Trend, in.Outcome))

	keys := make([]string, 0, len(in.Latest))
	for k := range in.Latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("%s: %.2f", k, in.Latest[k]))
		if v, ok := in.Averages[c.AverageKey(k)]; ok {
			b.WriteString(fmt.Sprintf(" (avg %.2f)", v))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatHunters renders a one-line-per-hunter list.
func FormatHunters(hunters []*model.Hunter) string {
	if len(hunters) == 0 {
		return "No hunters configured."
	}
	var b strings.Builder
	for _, h := range hunters {
		state := "stopped"
		if h.Running {
			state = "running"
		}
		b.WriteString(fmt.Sprintf("#%d %s %s %s", h.ID, h.Symbol, h.Interval, state))
		if h.Comment != "" {
			b.WriteString(" | " + h.Comment)
		}
		b.WriteString("\n")
	}
	return b.String()
}
