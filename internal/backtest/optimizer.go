package backtest

import (
	"context"
	"sort"
	"sync"

	"schicchi/internal/domain"
	"schicchi/internal/strategy"
)

// Grid maps a parameter name to the candidate values to sweep.
type Grid map[string][]float64

// Combinations expands the grid into its cartesian product, in a
// deterministic order (keys sorted, values in supplied order). An empty
// grid yields a single empty parameter set.
func (g Grid) Combinations() []strategy.Params {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []strategy.Params{{}}
	for _, k := range keys {
		values := g[k]
		next := make([]strategy.Params, 0, len(combos)*len(values))
		for _, c := range combos {
			for _, v := range values {
				p := make(strategy.Params, len(c)+1)
				for ck, cv := range c {
					p[ck] = cv
				}
				p[k] = v
				next = append(next, p)
			}
		}
		combos = next
	}
	return combos
}

// OptimizeConfig controls a grid-search sweep.
type OptimizeConfig struct {
	Backtest Config
	// MinWinRate filters candidate results; when no combination reaches
	// it, selection falls back to the full result set.
	MinWinRate float64
	// Workers bounds concurrent simulations. Zero means 4.
	Workers int
}

// ComboResult is the outcome of one grid combination.
type ComboResult struct {
	Params  strategy.Params `json:"params"`
	Metrics Metrics         `json:"metrics"`
}

// OptimizeResult is the outcome of a full sweep.
type OptimizeResult struct {
	Best    *ComboResult  `json:"best"`
	Results []ComboResult `json:"results"`
	// Skipped counts combinations whose simulation failed.
	Skipped int `json:"skipped"`
}

// Optimize sweeps the grid, running one simulation per combination with a
// bounded worker pool. Failed combinations are skipped, never fatal to the
// sweep. The winner is the max by (Sharpe ratio, win rate).
func Optimize(ctx context.Context, cfg OptimizeConfig, factory strategy.Factory, bars []domain.Bar, grid Grid) (*OptimizeResult, error) {
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}
	combos := grid.Combinations()

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(combos) {
		workers = len(combos)
	}

	type slot struct {
		res *ComboResult
	}
	slots := make([]slot, len(combos))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				params := combos[i]
				strat, err := factory(params)
				if err != nil {
					continue
				}
				res, err := Run(cfg.Backtest, strat, bars)
				if err != nil {
					continue
				}
				slots[i] = slot{res: &ComboResult{Params: params, Metrics: res.Metrics}}
			}
		}()
	}

	for i := range combos {
		if ctx.Err() != nil {
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		}
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	out := &OptimizeResult{Results: make([]ComboResult, 0, len(combos))}
	for _, s := range slots {
		if s.res == nil {
			out.Skipped++
			continue
		}
		out.Results = append(out.Results, *s.res)
	}
	out.Best = selectBest(out.Results, cfg.MinWinRate)
	return out, nil
}

// selectBest picks the winner from results, preferring combinations whose
// win rate clears minWinRate; when none do, the floor is waived.
func selectBest(results []ComboResult, minWinRate float64) *ComboResult {
	if len(results) == 0 {
		return nil
	}

	candidates := make([]ComboResult, 0, len(results))
	for _, r := range results {
		if r.Metrics.WinRate >= minWinRate {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		candidates = results
	}

	best := candidates[0]
	for _, r := range candidates[1:] {
		if r.Metrics.SharpeRatio > best.Metrics.SharpeRatio ||
			(r.Metrics.SharpeRatio == best.Metrics.SharpeRatio && r.Metrics.WinRate > best.Metrics.WinRate) {
			best = r
		}
	}
	return &best
}
