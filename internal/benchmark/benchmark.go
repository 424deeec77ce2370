// Package benchmark computes the buy-and-hold comparison line for forward
// test reports: what a fixed notional per symbol would have earned holding
// from the first priced signal to the last.
package benchmark

import (
	"sort"
	"time"

	"schicchi/internal/domain"
)

// SymbolResult is the buy-and-hold outcome for one symbol.
type SymbolResult struct {
	Symbol     string    `json:"symbol"`
	FirstPrice float64   `json:"first_price"`
	LastPrice  float64   `json:"last_price"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Pct        float64   `json:"pct"`
	BasisUSD   float64   `json:"basis_usd"`
	USD        float64   `json:"usd"`
}

// Result is the capital-weighted roll-up across symbols.
type Result struct {
	Symbols  []SymbolResult `json:"symbols"`
	BasisUSD float64        `json:"basis_usd"`
	USD      float64        `json:"usd"`
	// Pct is USD / BasisUSD, zero when no symbol qualified.
	Pct float64 `json:"pct"`
}

// Compute derives the benchmark from recorded signals, holding basisPerSymbol
// dollars of each symbol from its first priced signal to its last. Symbols
// without two priced signals, or whose first price is not positive, are
// skipped. The roll-up sums dollars, not percentages, so symbols weigh by
// capital rather than by count.
func Compute(signals []domain.Signal, basisPerSymbol float64) Result {
	bySymbol := make(map[string][]domain.Signal)
	for _, s := range signals {
		if s.SignalPrice <= 0 {
			continue
		}
		bySymbol[s.Symbol] = append(bySymbol[s.Symbol], s)
	}

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var res Result
	for _, sym := range symbols {
		sigs := bySymbol[sym]
		if len(sigs) < 2 {
			continue
		}
		sort.SliceStable(sigs, func(i, j int) bool {
			return sigs[i].SignalTime.Before(sigs[j].SignalTime)
		})
		first := sigs[0].SignalPrice
		last := sigs[len(sigs)-1].SignalPrice
		if first <= 0 {
			continue
		}

		pct := last/first - 1
		sr := SymbolResult{
			Symbol:     sym,
			FirstPrice: first,
			LastPrice:  last,
			StartTime:  sigs[0].SignalTime,
			EndTime:    sigs[len(sigs)-1].SignalTime,
			Pct:        pct,
			BasisUSD:   basisPerSymbol,
			USD:        basisPerSymbol * pct,
		}
		res.Symbols = append(res.Symbols, sr)
		res.BasisUSD += sr.BasisUSD
		res.USD += sr.USD
	}
	if res.BasisUSD > 0 {
		res.Pct = res.USD / res.BasisUSD
	}
	return res
}
