package backtest

import (
	"math"

	"schicchi/internal/domain"
)

// Metrics summarizes a simulation run. An empty trade log yields the zero
// value rather than an error.
type Metrics struct {
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	TotalPnL       float64 `json:"total_pnl"`
	ReturnPct      float64 `json:"return_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	FinalCapital   float64 `json:"final_capital"`
}

func computeMetrics(cfg Config, trades []domain.BacktestTrade, curve []domain.EquityPoint, finalCapital float64) Metrics {
	if len(trades) == 0 {
		return Metrics{FinalCapital: finalCapital}
	}

	m := Metrics{
		TotalTrades:  len(trades),
		FinalCapital: finalCapital,
		ReturnPct:    (finalCapital/cfg.InitialCapital - 1) * 100,
	}
	for _, tr := range trades {
		m.TotalPnL += tr.PnL
		if tr.PnL > 0 {
			m.WinningTrades++
		} else {
			m.LosingTrades++
		}
	}
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100

	periods := cfg.PeriodsPerYear
	if periods <= 0 {
		periods = DefaultPeriodsPerYear
	}
	m.SharpeRatio = sharpe(curve, periods)
	m.MaxDrawdownPct = maxDrawdown(curve)
	return m
}

// sharpe annualizes the mean/std of per-bar equity returns. A zero or
// undefined standard deviation yields 0 rather than an error.
func sharpe(curve []domain.EquityPoint, periodsPerYear float64) float64 {
	returns := make([]float64, 0, len(curve))
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(periodsPerYear)
}

// maxDrawdown returns the worst peak-to-trough equity decline as a negative
// percentage. Monotonically non-decreasing equity yields 0.
func maxDrawdown(curve []domain.EquityPoint) float64 {
	var worst float64
	peak := math.Inf(-1)
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (p.Equity - peak) / peak * 100; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}
