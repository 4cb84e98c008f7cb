package calculator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"DipHunter/internal/model"
)

// firstValid returns the first index at which every series holds a value.
func firstValid(series ...[]float64) int {
	n := len(series[0])
	for i := 0; i < n; i++ {
		ok := true
		for _, s := range series {
			if math.IsNaN(s[i]) {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return n
}

// apply runs fn over the valid suffix of the inputs and restores full-length
// outputs. talib leaves its warm-up rows as zeros; those become NaN here.
func apply(lookback int, fn func(in [][]float64) [][]float64, inputs ...[]float64) ([][]float64, error) {
	n := len(inputs[0])
	start := firstValid(inputs...)
	if n-start <= lookback {
		return nil, fmt.Errorf("insufficient rows: need more than %d, have %d", lookback, n-start)
	}
	trimmed := make([][]float64, len(inputs))
	for i, s := range inputs {
		trimmed[i] = s[start:]
	}
	outs := fn(trimmed)
	result := make([][]float64, len(outs))
	for j, o := range outs {
		full := nanSlice(n)
		for i := lookback; i < len(o) && start+i < n; i++ {
			full[start+i] = o[i]
		}
		result[j] = full
	}
	return result, nil
}

func requirePeriod(name string, v, min int) error {
	if v < min {
		return &model.ConfigurationError{Field: name, Err: fmt.Errorf("must be >= %d, got %d", min, v)}
	}
	return nil
}

func rsiSeries(in []float64, period int) ([]float64, error) {
	if err := requirePeriod("rsi period", period, 2); err != nil {
		return nil, err
	}
	out, err := apply(period, func(s [][]float64) [][]float64 {
		return [][]float64{talib.Rsi(s[0], period)}
	}, in)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func cciSeries(high, low, closes []float64, period int) ([]float64, error) {
	if err := requirePeriod("cci period", period, 2); err != nil {
		return nil, err
	}
	out, err := apply(period-1, func(s [][]float64) [][]float64 {
		return [][]float64{talib.Cci(s[0], s[1], s[2], period)}
	}, high, low, closes)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func mfiSeries(high, low, closes, volume []float64, period int) ([]float64, error) {
	if err := requirePeriod("mfi period", period, 2); err != nil {
		return nil, err
	}
	out, err := apply(period, func(s [][]float64) [][]float64 {
		return [][]float64{talib.Mfi(s[0], s[1], s[2], s[3], period)}
	}, high, low, closes, volume)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// stochSeries returns slow %K and %D, both smoothed with a simple average.
func stochSeries(high, low, closes []float64, fastK, slowK, slowD int) ([]float64, []float64, error) {
	for _, p := range []struct {
		name string
		v    int
	}{{"stoch fastk period", fastK}, {"stoch slowk period", slowK}, {"stoch slowd period", slowD}} {
		if err := requirePeriod(p.name, p.v, 1); err != nil {
			return nil, nil, err
		}
	}
	lookback := (fastK - 1) + (slowK - 1) + (slowD - 1)
	out, err := apply(lookback, func(s [][]float64) [][]float64 {
		k, d := talib.Stoch(s[0], s[1], s[2], fastK, slowK, talib.SMA, slowD, talib.SMA)
		return [][]float64{k, d}
	}, high, low, closes)
	if err != nil {
		return nil, nil, err
	}
	return out[0], out[1], nil
}

func bbandsSeries(closes []float64, period int, nbdev float64) ([]float64, []float64, []float64, error) {
	if err := requirePeriod("bollinger period", period, 2); err != nil {
		return nil, nil, nil, err
	}
	if nbdev <= 0 {
		return nil, nil, nil, &model.ConfigurationError{Field: "bollinger nbdev", Err: fmt.Errorf("must be positive, got %v", nbdev)}
	}
	out, err := apply(period-1, func(s [][]float64) [][]float64 {
		upper, middle, lower := talib.BBands(s[0], period, nbdev, nbdev, talib.SMA)
		return [][]float64{upper, middle, lower}
	}, closes)
	if err != nil {
		return nil, nil, nil, err
	}
	return out[0], out[1], out[2], nil
}

func emaSeries(in []float64, period int) ([]float64, error) {
	if err := requirePeriod("ema period", period, 2); err != nil {
		return nil, err
	}
	out, err := apply(period-1, func(s [][]float64) [][]float64 {
		return [][]float64{talib.Ema(s[0], period)}
	}, in)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func smaSeries(in []float64, period int) ([]float64, error) {
	if err := requirePeriod("sma period", period, 2); err != nil {
		return nil, err
	}
	out, err := apply(period-1, func(s [][]float64) [][]float64 {
		return [][]float64{talib.Sma(s[0], period)}
	}, in)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func macdSeries(closes []float64, fast, slow, signal int) ([]float64, []float64, error) {
	if err := requirePeriod("macd fast period", fast, 2); err != nil {
		return nil, nil, err
	}
	if err := requirePeriod("macd signal period", signal, 1); err != nil {
		return nil, nil, err
	}
	lookback := (slow - 1) + (signal - 1)
	out, err := apply(lookback, func(s [][]float64) [][]float64 {
		macd, sig, _ := talib.Macd(s[0], fast, slow, signal)
		return [][]float64{macd, sig}
	}, closes)
	if err != nil {
		return nil, nil, err
	}
	return out[0], out[1], nil
}

func atrSeries(high, low, closes []float64, period int) ([]float64, error) {
	if err := requirePeriod("atr period", period, 1); err != nil {
		return nil, err
	}
	out, err := apply(period, func(s [][]float64) [][]float64 {
		return [][]float64{talib.Atr(s[0], s[1], s[2], period)}
	}, high, low, closes)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func sarSeries(high, low []float64, acceleration, maximum float64) ([]float64, error) {
	if acceleration <= 0 || maximum <= 0 {
		return nil, &model.ConfigurationError{Field: "psar", Err: fmt.Errorf("acceleration %v and maximum %v must be positive", acceleration, maximum)}
	}
	out, err := apply(1, func(s [][]float64) [][]float64 {
		return [][]float64{talib.Sar(s[0], s[1], acceleration, maximum)}
	}, high, low)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func adxSeries(high, low, closes []float64, period int) ([]float64, error) {
	if err := requirePeriod("adx period", period, 2); err != nil {
		return nil, err
	}
	out, err := apply(2*period-1, func(s [][]float64) [][]float64 {
		return [][]float64{talib.Adx(s[0], s[1], s[2], period)}
	}, high, low, closes)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func diSeries(high, low, closes []float64, period int) ([]float64, []float64, error) {
	if err := requirePeriod("di period", period, 1); err != nil {
		return nil, nil, err
	}
	out, err := apply(period, func(s [][]float64) [][]float64 {
		return [][]float64{
			talib.PlusDI(s[0], s[1], s[2], period),
			talib.MinusDI(s[0], s[1], s[2], period),
		}
	}, high, low, closes)
	if err != nil {
		return nil, nil, err
	}
	return out[0], out[1], nil
}

// vwapSeries is cumulative typical price times volume over cumulative volume.
func vwapSeries(high, low, closes, volume []float64) (typical, vwap []float64) {
	n := len(closes)
	typical = nanSlice(n)
	vwap = nanSlice(n)
	var cumPV, cumVol float64
	for i := 0; i < n; i++ {
		tp := (high[i] + low[i] + closes[i]) / 3
		typical[i] = tp
		if math.IsNaN(tp) || math.IsNaN(volume[i]) {
			continue
		}
		cumPV += tp * volume[i]
		cumVol += volume[i]
		if cumVol != 0 {
			vwap[i] = cumPV / cumVol
		}
	}
	return typical, vwap
}
