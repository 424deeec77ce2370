package benchmark

import (
	"math"
	"testing"
	"time"

	"schicchi/internal/domain"
)

var t0 = time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)

func sig(symbol string, minute int, price float64) domain.Signal {
	return domain.Signal{
		Symbol:      symbol,
		SignalTime:  t0.Add(time.Duration(minute) * time.Minute),
		SignalPrice: price,
	}
}

func TestComputeSingleSymbol(t *testing.T) {
	res := Compute([]domain.Signal{
		sig("AAPL", 0, 100),
		sig("AAPL", 5, 105),
		sig("AAPL", 10, 110),
	}, 1000)

	if len(res.Symbols) != 1 {
		t.Fatalf("len(Symbols) = %d, want 1", len(res.Symbols))
	}
	sr := res.Symbols[0]
	// 100 -> 110 on a $1000 basis is exactly $100.
	if math.Abs(sr.USD-100) > 1e-9 {
		t.Errorf("USD = %v, want 100", sr.USD)
	}
	if math.Abs(sr.Pct-0.10) > 1e-12 {
		t.Errorf("Pct = %v, want 0.10", sr.Pct)
	}
	if !sr.StartTime.Equal(t0) || !sr.EndTime.Equal(t0.Add(10*time.Minute)) {
		t.Errorf("hold window = %v..%v, want %v..%v",
			sr.StartTime, sr.EndTime, t0, t0.Add(10*time.Minute))
	}
	if res.BasisUSD != 1000 || math.Abs(res.USD-100) > 1e-9 {
		t.Errorf("rollup = %v/%v, want 1000/100", res.BasisUSD, res.USD)
	}
}

func TestComputeCapitalWeightedRollup(t *testing.T) {
	// +10% and -5% on $1000 each: dollars sum to 100 - 50 = 50 on a
	// 2000 basis, i.e. +2.5%.
	res := Compute([]domain.Signal{
		sig("AAA", 0, 100), sig("AAA", 5, 110),
		sig("BBB", 0, 200), sig("BBB", 5, 190),
	}, 1000)

	if len(res.Symbols) != 2 {
		t.Fatalf("len(Symbols) = %d, want 2", len(res.Symbols))
	}
	if math.Abs(res.USD-50) > 1e-9 {
		t.Errorf("USD = %v, want 50", res.USD)
	}
	if math.Abs(res.Pct-0.025) > 1e-12 {
		t.Errorf("Pct = %v, want 0.025", res.Pct)
	}
}

func TestComputeSkipsUnqualifiedSymbols(t *testing.T) {
	res := Compute([]domain.Signal{
		// Only one priced signal.
		sig("ONE", 0, 100),
		// Unpriced signals do not count toward the two-signal minimum.
		sig("ZERO", 0, 0), sig("ZERO", 5, 0),
		// Qualifying symbol.
		sig("OK", 0, 50), sig("OK", 5, 55),
	}, 1000)

	if len(res.Symbols) != 1 || res.Symbols[0].Symbol != "OK" {
		t.Fatalf("Symbols = %v, want only OK", res.Symbols)
	}
	if math.Abs(res.USD-100) > 1e-9 {
		t.Errorf("USD = %v, want 100", res.USD)
	}
}

func TestComputeEmpty(t *testing.T) {
	res := Compute(nil, 1000)
	if len(res.Symbols) != 0 || res.BasisUSD != 0 || res.USD != 0 || res.Pct != 0 {
		t.Errorf("Compute(nil) = %+v, want zero result", res)
	}
}

func TestComputeUsesTimeOrderNotInputOrder(t *testing.T) {
	res := Compute([]domain.Signal{
		sig("AAPL", 10, 110),
		sig("AAPL", 0, 100),
	}, 1000)

	if len(res.Symbols) != 1 {
		t.Fatalf("len(Symbols) = %d, want 1", len(res.Symbols))
	}
	if got := res.Symbols[0].Pct; math.Abs(got-0.10) > 1e-12 {
		t.Errorf("Pct = %v, want 0.10 (first/last by signal time)", got)
	}
}
