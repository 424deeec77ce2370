// Package backtest simulates strategies against historical bars and derives
// performance metrics from the resulting trade log and equity curve.
package backtest

import (
	"fmt"

	"schicchi/internal/domain"
	"schicchi/internal/strategy"
)

// Config controls a single simulation run.
type Config struct {
	// InitialCapital is the starting account equity in dollars.
	InitialCapital float64
	// PositionSizeFraction is the fraction of current capital committed
	// to each entry.
	PositionSizeFraction float64
	// PeriodsPerYear annualizes the Sharpe ratio. Zero means the 5-minute
	// US equity session default of 252 trading days x 78 bars.
	PeriodsPerYear float64
}

// DefaultPeriodsPerYear annualizes 5-minute bars over the regular US
// session: 252 trading days of 78 bars each.
const DefaultPeriodsPerYear = 252 * 78

// Result is the full output of one simulation run.
type Result struct {
	Trades      []domain.BacktestTrade `json:"trades"`
	EquityCurve []domain.EquityPoint   `json:"equity_curve"`
	Metrics     Metrics                `json:"metrics"`
}

// openPosition is the simulator's in-flight position between entry and exit.
type openPosition struct {
	entryTime  int // bar index of entry
	entryPrice float64
	qty        float64
	stopLoss   float64
	takeProfit float64
}

// Run simulates strat over bars. Bars must be strictly increasing in time;
// violations surface as domain.ErrUnordered. The simulator holds at most one
// long position at a time and closes any open position at the final bar's
// close.
func Run(cfg Config, strat strategy.Strategy, bars []domain.Bar) (*Result, error) {
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial capital must be > 0, got %v",
			domain.ErrBadParameter, cfg.InitialCapital)
	}
	if cfg.PositionSizeFraction <= 0 || cfg.PositionSizeFraction > 1 {
		return nil, fmt.Errorf("%w: position size fraction must be in (0, 1], got %v",
			domain.ErrBadParameter, cfg.PositionSizeFraction)
	}

	signals, err := strat.Generate(bars)
	if err != nil {
		return nil, err
	}
	if len(signals) != len(bars) {
		return nil, fmt.Errorf("strategy %s returned %d signals for %d bars",
			strat.Name(), len(signals), len(bars))
	}

	capital := cfg.InitialCapital
	var pos *openPosition
	trades := make([]domain.BacktestTrade, 0)
	curve := make([]domain.EquityPoint, 0, len(bars))

	// Bar 0 seeds the curve; trading decisions start at bar 1.
	curve = append(curve, domain.EquityPoint{
		Timestamp:     bars[0].Timestamp,
		Equity:        capital,
		CumulativePnL: 0,
	})

	for i := 1; i < len(bars); i++ {
		bar := bars[i]
		sig := signals[i]

		if pos != nil {
			exitPrice, reason, exited := exitDecision(pos, bar, sig)
			if exited {
				capital = closeTrade(&trades, pos, bars, i, exitPrice, reason, capital)
				pos = nil
			}
		}
		// An exit flattens on the same bar, so a coincident entry
		// signal re-enters immediately.
		if pos == nil && sig.Action == strategy.ActionEnterLong && bar.Close > 0 {
			pos = &openPosition{
				entryTime:  i,
				entryPrice: bar.Close,
				qty:        capital * cfg.PositionSizeFraction / bar.Close,
				stopLoss:   sig.StopLoss,
				takeProfit: sig.TakeProfit,
			}
		}

		equity := capital
		if pos != nil {
			equity += pos.qty * (bar.Close - pos.entryPrice)
		}
		curve = append(curve, domain.EquityPoint{
			Timestamp:     bar.Timestamp,
			Equity:        equity,
			CumulativePnL: equity - cfg.InitialCapital,
		})
	}

	if pos != nil {
		last := len(bars) - 1
		capital = closeTrade(&trades, pos, bars, last, bars[last].Close, domain.ExitEndOfData, capital)
		curve[len(curve)-1].Equity = capital
		curve[len(curve)-1].CumulativePnL = capital - cfg.InitialCapital
	}

	return &Result{
		Trades:      trades,
		EquityCurve: curve,
		Metrics:     computeMetrics(cfg, trades, curve, capital),
	}, nil
}

// exitDecision applies the per-bar exit priority: the stop loss wins over
// the take profit when both levels trade inside the same bar, and the
// signal exit fires only when neither level was touched.
func exitDecision(pos *openPosition, bar domain.Bar, sig strategy.Signal) (price float64, reason domain.ExitReason, exited bool) {
	switch {
	case bar.Low <= pos.stopLoss:
		return pos.stopLoss, domain.ExitStopLoss, true
	case bar.High >= pos.takeProfit:
		return pos.takeProfit, domain.ExitTakeProfit, true
	case sig.Action == strategy.ActionExit:
		return bar.Close, domain.ExitSignal, true
	}
	return 0, "", false
}

func closeTrade(trades *[]domain.BacktestTrade, pos *openPosition, bars []domain.Bar, exitIdx int, exitPrice float64, reason domain.ExitReason, capital float64) float64 {
	pnl := (exitPrice - pos.entryPrice) * pos.qty
	*trades = append(*trades, domain.BacktestTrade{
		EntryTime:  bars[pos.entryTime].Timestamp,
		ExitTime:   bars[exitIdx].Timestamp,
		EntryPrice: pos.entryPrice,
		ExitPrice:  exitPrice,
		Qty:        pos.qty,
		Side:       domain.DirectionLong,
		PnL:        pnl,
		PnLPercent: (exitPrice/pos.entryPrice - 1) * 100,
		ExitReason: reason,
	})
	return capital + pnl
}
