// Package indicator provides stateless technical indicators computed over a
// whole bar series in one pass. Each function returns a slice aligned
// bar-for-bar with its input; positions inside the rolling warm-up window
// hold NaN. Callers are expected to tolerate leading NaNs.
package indicator

import (
	"math"

	"schicchi/internal/domain"
)

// RollingMean returns the simple moving average of values over the given
// window. The first period-1 entries are NaN. A NaN anywhere inside the
// window propagates, matching the warm-up behavior of chained indicators.
func RollingMean(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if ok {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// RollingStd returns the rolling sample standard deviation (n-1 divisor)
// of values over the given window. The first period-1 entries are NaN.
func RollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if !ok {
			continue
		}
		mean := sum / float64(period)
		var ss float64
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(period-1))
	}
	return out
}

// RSI computes the Relative Strength Index over the close series using
// simple rolling means of gains and losses (not Wilder smoothing). The
// first period entries are NaN. When the rolling loss is zero the RSI
// saturates at 100; an all-flat window yields NaN.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	for i := period; i < len(closes); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			gain += gains[j]
			loss += losses[j]
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)
		switch {
		case avgLoss > 0:
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		case avgGain > 0:
			out[i] = 100
		default:
			// No movement inside the window.
		}
	}
	return out
}

// TrueRange computes the per-bar true range: the greatest of high-low,
// |high-prevClose|, and |low-prevClose|. The first bar uses high-low.
func TrueRange(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		tr := bars[i].High - bars[i].Low
		if i > 0 {
			prev := bars[i-1].Close
			if hc := math.Abs(bars[i].High - prev); hc > tr {
				tr = hc
			}
			if lc := math.Abs(bars[i].Low - prev); lc > tr {
				tr = lc
			}
		}
		out[i] = tr
	}
	return out
}

// ATR computes the Average True Range as the simple rolling mean of the
// true range. The first period-1 entries are NaN.
func ATR(bars []domain.Bar, period int) []float64 {
	return RollingMean(TrueRange(bars), period)
}

// Bands is a middle line with an upper and lower envelope, shared by the
// Bollinger and Keltner indicators.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger computes Bollinger Bands over the close series: rolling mean
// plus/minus numStd rolling sample standard deviations.
func Bollinger(closes []float64, period int, numStd float64) Bands {
	middle := RollingMean(closes, period)
	std := RollingStd(closes, period)
	upper := make([]float64, len(closes))
	lower := make([]float64, len(closes))
	for i := range closes {
		upper[i] = middle[i] + numStd*std[i]
		lower[i] = middle[i] - numStd*std[i]
	}
	return Bands{Upper: upper, Middle: middle, Lower: lower}
}

// Keltner computes Keltner Channels: rolling mean of the close plus/minus
// mult times the ATR. The ATR period is supplied separately so the channel
// can share an ATR series with stop/target sizing.
func Keltner(bars []domain.Bar, period int, mult float64, atr []float64) Bands {
	closes := Closes(bars)
	middle := RollingMean(closes, period)
	upper := make([]float64, len(bars))
	lower := make([]float64, len(bars))
	for i := range bars {
		upper[i] = middle[i] + mult*atr[i]
		lower[i] = middle[i] - mult*atr[i]
	}
	return Bands{Upper: upper, Middle: middle, Lower: lower}
}

// Closes extracts the close series from bars.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

// Volumes extracts the volume series from bars as float64.
func Volumes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = float64(bars[i].Volume)
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
