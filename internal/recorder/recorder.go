package recorder

import (
	"time"

	"DipHunter/internal/model"
)

// CycleEvent is the outcome of one hunter cycle.
type CycleEvent struct {
	HunterID  int64
	UserID    int64
	Symbol    string
	Interval  string
	Trigger   model.TriggerType
	Trend     model.Trend
	Outcome   model.Outcome
	Close     float64
	Rows      int
	Notified  bool
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// BatchEvent summarizes one scheduled run over an interval bucket.
type BatchEvent struct {
	Interval  string
	Hunters   int
	Failed    int
	Signals   int
	StartedAt time.Time
	Duration  time.Duration
}

// Recorder persists cycle history for later analysis.
type Recorder interface {
	RecordCycle(evt *CycleEvent) error
	RecordBatch(evt *BatchEvent) error
	Close() error
}
