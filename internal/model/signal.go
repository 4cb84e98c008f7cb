package model

// Trend is the classified market regime of the latest bar.
type Trend string

const (
	TrendUp         Trend = "uptrend"
	TrendDown       Trend = "downtrend"
	TrendHorizontal Trend = "horizontal"
	TrendNone       Trend = "none"
)

// Outcome is the result of one hunter cycle.
type Outcome string

const (
	OutcomeBuy  Outcome = "buy"
	OutcomeSell Outcome = "sell"
	OutcomeNone Outcome = "none"
)

// Side selects which predicate family set is evaluated.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TriggerType indicates what started a cycle.
type TriggerType string

const (
	TriggerScheduled TriggerType = "SCHEDULED"
	TriggerManual    TriggerType = "MANUAL"
)
