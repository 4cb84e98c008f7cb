package model

import (
	"math"
	"time"
)

// Averages maps "avg_<column>" keys to trailing-window means.
type Averages map[string]float64

// Get returns the average for key, or NaN when it was not computed.
func (a Averages) Get(key string) float64 {
	if v, ok := a[key]; ok {
		return v
	}
	return math.NaN()
}

// DecisionInputs is the snapshot a cycle decided on, kept for display.
type DecisionInputs struct {
	HunterID   int64              `json:"hunter_id"`
	Symbol     string             `json:"symbol"`
	Interval   string             `json:"interval"`
	Latest     map[string]float64 `json:"latest"`
	Previous   map[string]float64 `json:"previous"`
	Averages   Averages           `json:"averages"`
	Trend      Trend              `json:"trend"`
	Outcome    Outcome            `json:"outcome"`
	Rows       int                `json:"rows"`
	ComputedAt time.Time          `json:"computed_at"`
}
