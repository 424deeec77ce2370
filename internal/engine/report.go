package engine

import (
	"context"
	"sync"
	"time"

	"schicchi/internal/benchmark"
	"schicchi/internal/domain"
	"schicchi/internal/reconcile"
)

// SymbolReport is the reconciled forward-test state of one symbol.
type SymbolReport struct {
	Symbol     string                `json:"symbol"`
	Position   *domain.Position      `json:"position,omitempty"`
	BasisUSD   float64               `json:"basis_usd,omitempty"`
	MarkPrice  *float64              `json:"mark_price,omitempty"`
	Unrealized *float64              `json:"unrealized_pnl_usd,omitempty"`
	RoundTrips []domain.RoundTrip    `json:"round_trips"`
	Perf       reconcile.Performance `json:"performance"`
}

// Report is the full forward-test report for one strategy.
type Report struct {
	StrategyID  string    `json:"strategy_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Symbols []SymbolReport        `json:"symbols"`
	Overall reconcile.Performance `json:"overall"`

	// TotalUnrealized sums the mark-to-market P&L of open positions that
	// have a mark price.
	TotalUnrealized float64 `json:"total_unrealized_usd"`

	Benchmark benchmark.Result `json:"benchmark"`
	// Outperformance is realized net profit minus the benchmark dollars,
	// nil when no symbol qualified for the benchmark.
	Outperformance *float64 `json:"outperformance_usd"`
}

// SymbolRoundTrips reconciles one symbol's stored fills and returns its
// completed round trips plus any open position.
func (e *Engine) SymbolRoundTrips(ctx context.Context, symbol string) (*reconcile.SymbolResult, error) {
	fills, err := e.fills.FillsForSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return reconcile.Symbol(symbol, fills), nil
}

// Report reconciles all stored fills and assembles the forward-test report
// for strategyID. Symbols reconcile in parallel; each symbol's fills are
// processed by exactly one goroutine, and results merge deterministically.
func (e *Engine) Report(ctx context.Context, strategyID string) (*Report, error) {
	symbols, bySymbol, err := e.fillsBySymbol(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*reconcile.SymbolResult, len(symbols))
	var wg sync.WaitGroup
	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			results[i] = reconcile.Symbol(sym, bySymbol[sym])
		}(i, sym)
	}
	wg.Wait()

	marks := e.markPrices(ctx)

	rep := &Report{
		StrategyID:  strategyID,
		GeneratedAt: time.Now().UTC(),
		Symbols:     make([]SymbolReport, 0, len(symbols)),
	}
	var allTrips []domain.RoundTrip
	var allEvents []reconcile.RealizedEvent

	for i, sym := range symbols {
		res := results[i]
		sr := SymbolReport{
			Symbol:     sym,
			RoundTrips: res.RoundTrips,
			Perf:       reconcile.Compute(res.RoundTrips, res.Events),
		}
		if res.Position.Qty != 0 {
			pos := res.Position
			sr.Position = &pos
			sr.BasisUSD = res.BasisUSD
			if mark, ok := marks[sym]; ok {
				sr.MarkPrice = domain.Float(mark)
				unreal := pos.Qty * (mark - pos.AvgEntryPrice)
				sr.Unrealized = domain.Float(unreal)
				rep.TotalUnrealized += unreal
			}
		}
		rep.Symbols = append(rep.Symbols, sr)
		allTrips = append(allTrips, res.RoundTrips...)
		allEvents = append(allEvents, res.Events...)
	}
	rep.Overall = reconcile.Compute(allTrips, allEvents)

	if e.signals != nil {
		history, err := e.signals.SignalHistory(ctx, strategyID)
		if err != nil {
			return nil, err
		}
		rep.Benchmark = benchmark.Compute(history, e.notionalPerTrade)
		if rep.Benchmark.BasisUSD > 0 {
			rep.Outperformance = domain.Float(rep.Overall.NetProfit - rep.Benchmark.USD)
		}
	}
	return rep, nil
}

// markPrices fetches current prices from the broker's open positions. A
// broker error degrades the report to realized-only rather than failing it.
func (e *Engine) markPrices(ctx context.Context) map[string]float64 {
	marks := make(map[string]float64)
	if e.broker == nil {
		return marks
	}
	positions, err := e.broker.Positions(ctx)
	if err != nil {
		e.log.Warn("fetching broker positions failed", "err", err)
		return marks
	}
	for _, p := range positions {
		if p.CurrentPrice > 0 {
			marks[p.Symbol] = p.CurrentPrice
		}
	}
	return marks
}
