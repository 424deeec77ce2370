package reconcile

import (
	"sort"

	"schicchi/internal/domain"
)

// Performance summarizes realized round-trip results for a symbol or a
// whole account. Ratio fields that have no defined value are nil.
type Performance struct {
	Trades       int      `json:"trades"`
	Wins         int      `json:"wins"`
	Losses       int      `json:"losses"`
	WinRate      float64  `json:"win_rate"`
	NetProfit    float64  `json:"net_profit_usd"`
	GrossProfit  float64  `json:"gross_profit_usd"`
	GrossLoss    float64  `json:"gross_loss_usd"`
	ProfitFactor *float64 `json:"profit_factor"` // nil when gross loss is zero
	// AvgTrade is the expected payoff per round trip.
	AvgTrade    float64 `json:"avg_trade_usd"`
	AvgWin      float64 `json:"avg_win_usd"`
	AvgLoss     float64 `json:"avg_loss_usd"`
	LargestWin  float64 `json:"largest_win_usd"`
	LargestLoss float64 `json:"largest_loss_usd"`
	// MaxDrawdown is the worst peak-to-trough decline of the cumulative
	// realized P&L curve, as a fraction of the running peak. It is nil
	// until the curve has a positive peak.
	MaxDrawdown *float64 `json:"max_drawdown"`
}

// Compute aggregates round trips and the chronological realized-event
// curve into a Performance summary. Events need not be pre-sorted.
func Compute(trips []domain.RoundTrip, events []RealizedEvent) Performance {
	var p Performance
	p.Trades = len(trips)
	for _, rt := range trips {
		p.NetProfit += rt.NetPnL
		switch {
		case rt.NetPnL > 0:
			p.Wins++
			p.GrossProfit += rt.NetPnL
			if rt.NetPnL > p.LargestWin {
				p.LargestWin = rt.NetPnL
			}
		case rt.NetPnL < 0:
			p.Losses++
			p.GrossLoss += rt.NetPnL
			if rt.NetPnL < p.LargestLoss {
				p.LargestLoss = rt.NetPnL
			}
		}
	}
	if p.Trades > 0 {
		p.WinRate = float64(p.Wins) / float64(p.Trades) * 100
		p.AvgTrade = p.NetProfit / float64(p.Trades)
	}
	if p.Wins > 0 {
		p.AvgWin = p.GrossProfit / float64(p.Wins)
	}
	if p.Losses > 0 {
		p.AvgLoss = p.GrossLoss / float64(p.Losses)
	}
	if p.GrossLoss != 0 {
		p.ProfitFactor = domain.Float(p.GrossProfit / -p.GrossLoss)
	}
	p.MaxDrawdown = RealizedDrawdown(events)
	return p
}

// RealizedDrawdown walks the cumulative realized P&L curve in time order
// and returns the worst decline as a fraction of the running peak, or nil
// when the peak never goes positive.
func RealizedDrawdown(events []RealizedEvent) *float64 {
	if len(events) == 0 {
		return nil
	}
	sorted := make([]RealizedEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	var cum, peak float64
	var worst *float64
	for _, e := range sorted {
		cum += e.PnL
		if cum > peak {
			peak = cum
		}
		if peak > 0 {
			dd := (cum - peak) / peak
			if worst == nil || dd < *worst {
				worst = domain.Float(dd)
			}
		}
	}
	return worst
}
