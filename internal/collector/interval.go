package collector

import (
	"fmt"
	"strconv"
	"time"
)

// lookbackBars is how many intervals a cycle fetches, enough for the 200-bar average.
const lookbackBars = 205

var unitDurations = map[byte]time.Duration{
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
	'M': 30 * 24 * time.Hour,
}

// exchangeIntervals are the kline intervals Binance serves.
var exchangeIntervals = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true, "1M": true,
}

// ParseInterval converts an exchange interval such as "15m" or "4h" to a duration.
// Intervals the exchange does not serve are rejected.
func ParseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	unit, ok := unitDurations[interval[len(interval)-1]]
	if !ok {
		return 0, fmt.Errorf("invalid interval unit in %q", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval count in %q", interval)
	}
	if !exchangeIntervals[interval] {
		return 0, fmt.Errorf("interval %q is not served by the exchange", interval)
	}
	return time.Duration(n) * unit, nil
}

// ExtendedLookback is 205 intervals: an n-unit interval looks back n*205 units.
func ExtendedLookback(interval string) (time.Duration, error) {
	d, err := ParseInterval(interval)
	if err != nil {
		return 0, err
	}
	return lookbackBars * d, nil
}
