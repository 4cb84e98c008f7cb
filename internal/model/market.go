package model

import "time"

// RawKline is one candle as delivered by the exchange and as persisted.
// Prices and volume stay decimal strings until the pipeline coerces them.
type RawKline struct {
	OpenTime  int64  `json:"open_time"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	CloseTime int64  `json:"close_time"`
}

// Bar represents a single coerced candlestick bar.
type Bar struct {
	OpenTime  time.Time
	CloseTime time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
