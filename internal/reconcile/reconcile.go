// Package reconcile turns raw order fills into reconciled positions,
// round-trip trades, and realized performance.
package reconcile

import (
	"math"
	"sort"
	"time"

	"schicchi/internal/domain"
)

// RealizedEvent is one realized P&L increment, in chronological order.
// The drawdown of the realized P&L curve is computed over these.
type RealizedEvent struct {
	Time time.Time `json:"time"`
	PnL  float64   `json:"pnl"`
}

// SymbolResult is the full reconciliation output for one symbol.
type SymbolResult struct {
	Position   domain.Position    `json:"position"`
	RoundTrips []domain.RoundTrip `json:"round_trips"`
	Events     []RealizedEvent    `json:"events"`
	// BasisUSD is the accumulated cost basis of the open position, zero
	// when flat.
	BasisUSD float64 `json:"basis_usd"`
	// RealizedSinceOpen is realized P&L accumulated inside the current
	// open position (from partial reductions), zero when flat.
	RealizedSinceOpen float64 `json:"realized_since_open"`
}

// state is the per-symbol position accumulator between fills.
type state struct {
	qty      float64
	avg      float64
	openTime time.Time
	basis    float64
	realized float64 // since open
}

// Symbol reconciles all fills for one symbol. Fills may arrive in any
// order; they are sorted by (timestamp, order id) before processing, so the
// result is a pure function of the fill set. Fills with a side other than
// BUY or SELL are ignored.
func Symbol(symbol string, fills []domain.Fill) *SymbolResult {
	sorted := make([]domain.Fill, len(fills))
	copy(sorted, fills)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].OrderID < sorted[j].OrderID
	})

	res := &SymbolResult{
		Position:   domain.Position{Symbol: symbol},
		RoundTrips: make([]domain.RoundTrip, 0),
		Events:     make([]RealizedEvent, 0),
	}
	var st state
	var cumulative float64

	for _, f := range sorted {
		delta := f.SignedQty()
		if delta == 0 || f.Price <= 0 {
			continue
		}

		switch {
		case st.qty == 0:
			// Flat open.
			st = state{
				qty:      delta,
				avg:      f.Price,
				openTime: f.Timestamp,
				basis:    math.Abs(delta) * f.Price,
			}

		case sameSign(st.qty, delta):
			// Same-direction add: weighted-average entry, basis grows.
			total := math.Abs(st.qty) + math.Abs(delta)
			st.avg = (st.avg*math.Abs(st.qty) + f.Price*math.Abs(delta)) / total
			st.qty += delta
			st.basis += math.Abs(delta) * f.Price

		default:
			closing := math.Min(math.Abs(st.qty), math.Abs(delta))
			realized := closing * (f.Price - st.avg)
			if st.qty < 0 {
				realized = closing * (st.avg - f.Price)
			}
			st.realized += realized
			res.Events = append(res.Events, RealizedEvent{Time: f.Timestamp, PnL: realized})

			remaining := st.qty + delta
			switch {
			case remaining == 0 || !sameSign(st.qty, remaining):
				// Position closed or flipped: finalize the round trip.
				cumulative += st.realized
				res.RoundTrips = append(res.RoundTrips, finalize(symbol, len(res.RoundTrips)+1, st, f, cumulative))
				if remaining == 0 {
					st = state{}
				} else {
					// Residual reopens at the flip fill's price and time.
					st = state{
						qty:      remaining,
						avg:      f.Price,
						openTime: f.Timestamp,
						basis:    math.Abs(remaining) * f.Price,
					}
				}
			default:
				// Partial reduction: entry average is untouched.
				st.qty = remaining
			}
		}
	}

	if st.qty != 0 {
		t := st.openTime
		res.Position = domain.Position{
			Symbol:        symbol,
			Qty:           st.qty,
			AvgEntryPrice: st.avg,
			OpenTime:      &t,
		}
		res.BasisUSD = st.basis
		res.RealizedSinceOpen = st.realized
	}
	return res
}

func finalize(symbol string, tradeNo int, st state, exit domain.Fill, cumulative float64) domain.RoundTrip {
	rt := domain.RoundTrip{
		TradeNo:         tradeNo,
		Symbol:          symbol,
		Direction:       domain.DirectionLong,
		EntryTime:       st.openTime,
		ExitTime:        exit.Timestamp,
		EntryAvgPrice:   st.avg,
		ExitPrice:       exit.Price,
		PositionSizeUSD: st.basis,
		NetPnL:          st.realized,
		CumulativePnL:   cumulative,
	}
	if st.qty < 0 {
		rt.Direction = domain.DirectionShort
	}
	if st.basis != 0 {
		rt.NetPnLPct = domain.Float(st.realized / st.basis * 100)
	}
	return rt
}

func sameSign(a, b float64) bool {
	return (a > 0) == (b > 0)
}
