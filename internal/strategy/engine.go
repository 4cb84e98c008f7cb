package strategy

import (
	"DipHunter/internal/calculator"
	"DipHunter/internal/model"
)

// Result is the evaluation of one enabled predicate.
type Result struct {
	Family string
	Passed bool
}

// Valid reports whether the table has the latest and previous rows predicates need.
func Valid(t *calculator.Table) bool {
	return t != nil && t.Len() >= 2
}

func newInput(t *calculator.Table, h *model.Hunter, trend model.Trend, avg model.Averages) *Input {
	return &Input{
		Latest:   t.Latest(),
		Previous: t.Previous(),
		Averages: avg,
		Profile:  &h.Profile,
		Trend:    trend,
	}
}

// Explain evaluates every enabled predicate of side and reports each outcome.
// Disabled families are not listed.
func Explain(side model.Side, t *calculator.Table, h *model.Hunter, trend model.Trend, avg model.Averages) []Result {
	if !Valid(t) {
		return nil
	}
	in := newInput(t, h, trend, avg)
	var out []Result
	for _, pr := range Predicates(side) {
		if !pr.Enabled(&h.Toggles) {
			continue
		}
		out = append(out, Result{Family: pr.Family, Passed: pr.Check(in)})
	}
	return out
}

// Evaluate is the conjunction of all enabled predicates of side. A buy is
// vetoed by a downtrend and a sell by an uptrend before any predicate runs.
func Evaluate(side model.Side, t *calculator.Table, h *model.Hunter, trend model.Trend, avg model.Averages) bool {
	if !Valid(t) {
		return false
	}
	switch {
	case side == model.SideBuy && trend == model.TrendDown:
		return false
	case side == model.SideSell && trend == model.TrendUp:
		return false
	}

	in := newInput(t, h, trend, avg)
	for _, pr := range Predicates(side) {
		if !pr.Enabled(&h.Toggles) {
			continue
		}
		if !pr.Check(in) {
			return false
		}
	}
	return true
}

// EvaluateBuy reports whether every enabled buy condition holds.
func EvaluateBuy(t *calculator.Table, h *model.Hunter, trend model.Trend, avg model.Averages) bool {
	return Evaluate(model.SideBuy, t, h, trend, avg)
}

// EvaluateSell reports whether every enabled sell condition holds.
func EvaluateSell(t *calculator.Table, h *model.Hunter, trend model.Trend, avg model.Averages) bool {
	return Evaluate(model.SideSell, t, h, trend, avg)
}

// Decide runs the buy side first and only looks at sell when buy did not fire.
func Decide(t *calculator.Table, h *model.Hunter, trend model.Trend, avg model.Averages) model.Outcome {
	if EvaluateBuy(t, h, trend, avg) {
		return model.OutcomeBuy
	}
	if EvaluateSell(t, h, trend, avg) {
		return model.OutcomeSell
	}
	return model.OutcomeNone
}
