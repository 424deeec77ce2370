package indicator

import (
	"math"
	"testing"
	"time"

	"schicchi/internal/domain"
)

const eps = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func makeBars(hlc [][3]float64) []domain.Bar {
	t0 := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(hlc))
	for i, v := range hlc {
		bars[i] = domain.Bar{
			Timestamp: t0.Add(time.Duration(i) * 5 * time.Minute),
			High:      v[0],
			Low:       v[1],
			Close:     v[2],
		}
	}
	return bars
}

func TestRollingMeanWarmup(t *testing.T) {
	got := RollingMean([]float64{1, 2, 3, 4}, 3)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Errorf("warm-up entries = %v, want NaN", got[:2])
	}
	if !almostEqual(got[2], 2) || !almostEqual(got[3], 3) {
		t.Errorf("RollingMean = %v, want [NaN NaN 2 3]", got)
	}
}

func TestRollingMeanPropagatesNaN(t *testing.T) {
	got := RollingMean([]float64{math.NaN(), 2, 3, 4}, 2)
	if !math.IsNaN(got[1]) {
		t.Errorf("window containing NaN produced %v, want NaN", got[1])
	}
	if !almostEqual(got[2], 2.5) {
		t.Errorf("first clean window = %v, want 2.5", got[2])
	}
}

func TestRollingStdSampleDivisor(t *testing.T) {
	got := RollingStd([]float64{1, 3}, 2)
	// Sample std of {1,3} is sqrt(2), not 1.
	if !almostEqual(got[1], math.Sqrt2) {
		t.Errorf("RollingStd = %v, want sqrt(2)", got[1])
	}
}

func TestRSI(t *testing.T) {
	closes := []float64{1, 2, 3, 2}
	got := RSI(closes, 2)

	for i := 0; i < 2; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("RSI[%d] = %v, want NaN warm-up", i, got[i])
		}
	}
	// Window of two gains: RSI saturates at 100.
	if !almostEqual(got[2], 100) {
		t.Errorf("RSI[2] = %v, want 100", got[2])
	}
	// One gain of 1 and one loss of 1: RS = 1 => RSI = 50.
	if !almostEqual(got[3], 50) {
		t.Errorf("RSI[3] = %v, want 50", got[3])
	}
}

func TestRSIFlatWindow(t *testing.T) {
	got := RSI([]float64{5, 5, 5, 5}, 2)
	if !math.IsNaN(got[3]) {
		t.Errorf("RSI of flat series = %v, want NaN", got[3])
	}
}

func TestTrueRangeAndATR(t *testing.T) {
	bars := makeBars([][3]float64{
		{10, 8, 9},
		{11, 9, 10},
		{14, 10, 11},
	})

	tr := TrueRange(bars)
	want := []float64{2, 2, 4} // bar 2: max(4, |14-10|, |10-10|)
	for i := range want {
		if !almostEqual(tr[i], want[i]) {
			t.Errorf("TrueRange[%d] = %v, want %v", i, tr[i], want[i])
		}
	}

	atr := ATR(bars, 2)
	if !math.IsNaN(atr[0]) {
		t.Errorf("ATR[0] = %v, want NaN", atr[0])
	}
	if !almostEqual(atr[1], 2) || !almostEqual(atr[2], 3) {
		t.Errorf("ATR = %v, want [NaN 2 3]", atr)
	}
}

func TestBollinger(t *testing.T) {
	b := Bollinger([]float64{1, 3}, 2, 2)
	if !almostEqual(b.Middle[1], 2) {
		t.Errorf("Middle[1] = %v, want 2", b.Middle[1])
	}
	if !almostEqual(b.Upper[1], 2+2*math.Sqrt2) {
		t.Errorf("Upper[1] = %v, want %v", b.Upper[1], 2+2*math.Sqrt2)
	}
	if !almostEqual(b.Lower[1], 2-2*math.Sqrt2) {
		t.Errorf("Lower[1] = %v, want %v", b.Lower[1], 2-2*math.Sqrt2)
	}
	if !math.IsNaN(b.Upper[0]) {
		t.Errorf("Upper[0] = %v, want NaN", b.Upper[0])
	}
}

func TestKeltner(t *testing.T) {
	bars := makeBars([][3]float64{
		{10, 8, 9},
		{11, 9, 11},
	})
	atr := ATR(bars, 2)
	k := Keltner(bars, 2, 1.5, atr)

	// middle = (9+11)/2 = 10, atr[1] = 2 => upper 13, lower 7.
	if !almostEqual(k.Middle[1], 10) || !almostEqual(k.Upper[1], 13) || !almostEqual(k.Lower[1], 7) {
		t.Errorf("Keltner = mid %v upper %v lower %v, want 10/13/7",
			k.Middle[1], k.Upper[1], k.Lower[1])
	}
}

func TestShortSeriesDoNotPanic(t *testing.T) {
	if got := RSI([]float64{1}, 14); len(got) != 1 || !math.IsNaN(got[0]) {
		t.Errorf("RSI on short series = %v, want [NaN]", got)
	}
	if got := RollingMean(nil, 5); len(got) != 0 {
		t.Errorf("RollingMean(nil) = %v, want empty", got)
	}
}
