package calculator

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"DipHunter/internal/model"
)

// Coerce converts raw klines into bars. Fields that fail to parse become NaN;
// rows whose close cannot be parsed are dropped.
func Coerce(raw []model.RawKline) []model.Bar {
	bars := make([]model.Bar, 0, len(raw))
	for _, k := range raw {
		closePrice, ok := parseNumber(k.Close)
		if !ok {
			continue
		}
		bars = append(bars, model.Bar{
			OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
			CloseTime: time.UnixMilli(k.CloseTime).UTC(),
			Open:      numberOrNaN(k.Open),
			High:      numberOrNaN(k.High),
			Low:       numberOrNaN(k.Low),
			Close:     closePrice,
			Volume:    numberOrNaN(k.Volume),
		})
	}
	return bars
}

func parseNumber(s string) (float64, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

func numberOrNaN(s string) float64 {
	if f, ok := parseNumber(s); ok {
		return f
	}
	return math.NaN()
}
