// Package domain defines the core data types shared across the platform:
// market data bars, strategy signals, orders, fills, positions, and the
// trade records produced by the backtest and reconciliation engines.
package domain

import (
	"errors"
	"time"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ErrNoData indicates an empty or unusable input series.
var ErrNoData = errors.New("no data")

// ErrBadParameter indicates an invalid or missing strategy parameter.
var ErrBadParameter = errors.New("bad parameter")

// ErrUnordered indicates input that violates the required time ordering
// (duplicate or decreasing timestamps). Callers must treat it as fatal.
var ErrUnordered = errors.New("timestamps not strictly increasing")

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is one OHLCV sample for a fixed time interval.
type Bar struct {
	Symbol     string    `json:"symbol,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"trade_count,omitempty"`
	VWAP       float64   `json:"vwap,omitempty"`
}

// ValidateBars checks that bars form a non-empty series with strictly
// increasing timestamps. Returns ErrNoData or ErrUnordered.
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return ErrNoData
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return ErrUnordered
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sides and directions
// ---------------------------------------------------------------------------

// Side is the direction of an order or fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Direction is the direction of an open or closed position.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// ---------------------------------------------------------------------------
// Forward-test records
// ---------------------------------------------------------------------------

// StrategyRecord registers a forward-test strategy: its identifier, display
// name, whether it currently accepts orders, and the fixed dollar size of
// each entry. A zero NotionalPerTrade defers to the configured default.
type StrategyRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Active           bool      `json:"active"`
	NotionalPerTrade float64   `json:"notional_per_trade,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Signal is a persisted priced strategy signal. The first and last priced
// signals per symbol anchor the buy-and-hold benchmark.
type Signal struct {
	ID          int64     `json:"id"`
	TradeID     string    `json:"trade_id"`
	StrategyID  string    `json:"strategy_id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Event       string    `json:"event"`
	SignalTime  time.Time `json:"signal_time"`
	SignalPrice float64   `json:"signal_price"`
	CreatedAt   time.Time `json:"created_at"`
}

// Order is a persisted order intent plus its broker-reported outcome.
type Order struct {
	ID             int64      `json:"id"`
	TradeID        string     `json:"trade_id"`
	StrategyID     string     `json:"strategy_id"`
	Symbol         string     `json:"symbol"`
	Side           Side       `json:"side"`
	Qty            float64    `json:"qty,omitempty"`
	Notional       float64    `json:"notional,omitempty"`
	BrokerOrderID  string     `json:"broker_order_id,omitempty"`
	Status         string     `json:"status,omitempty"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	FilledAt       *time.Time `json:"filled_at,omitempty"`
	FilledQty      float64    `json:"filled_qty,omitempty"`
	FilledAvgPrice float64    `json:"filled_avg_price,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Fill is an executed order observed from the broker. Quantity and price are
// always positive; Side carries the direction. Once observed a fill is an
// immutable fact.
type Fill struct {
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Qty       float64   `json:"qty"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	OrderID   string    `json:"order_id"`
	TradeID   string    `json:"trade_id,omitempty"`
}

// SignedQty returns the fill quantity signed by side: positive for BUY,
// negative for SELL, zero for anything else.
func (f Fill) SignedQty() float64 {
	switch f.Side {
	case SideBuy:
		return f.Qty
	case SideSell:
		return -f.Qty
	}
	return 0
}

// Position is a reconciled per-symbol position: signed quantity and
// volume-weighted average entry price. A flat position has Qty == 0,
// AvgEntryPrice == 0, and a nil OpenTime.
type Position struct {
	Symbol        string     `json:"symbol"`
	Qty           float64    `json:"qty"`
	AvgEntryPrice float64    `json:"avg_entry_price"`
	OpenTime      *time.Time `json:"open_time,omitempty"`
}

// Direction returns the position direction. Only meaningful when Qty != 0.
func (p Position) Direction() Direction {
	if p.Qty < 0 {
		return DirectionShort
	}
	return DirectionLong
}

// RoundTrip is a completed round-trip trade: a position's full lifecycle
// from flat (or a flip) back to flat (or the next flip).
type RoundTrip struct {
	TradeNo         int       `json:"trade_no"`
	Symbol          string    `json:"symbol"`
	Direction       Direction `json:"direction"`
	EntryTime       time.Time `json:"entry_time"`
	ExitTime        time.Time `json:"exit_time"`
	EntryAvgPrice   float64   `json:"entry_avg_price"`
	ExitPrice       float64   `json:"exit_price"`
	PositionSizeUSD float64   `json:"position_size_usd"`
	NetPnL          float64   `json:"net_pnl_usd"`
	NetPnLPct       *float64  `json:"net_pnl_pct"` // nil when the basis is zero
	CumulativePnL   float64   `json:"cumulative_pnl_usd"`
}

// ---------------------------------------------------------------------------
// Backtest records
// ---------------------------------------------------------------------------

// ExitReason explains why a simulated position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitSignal     ExitReason = "signal"
	ExitEndOfData  ExitReason = "end_of_data"
)

// BacktestTrade is one closed trade from a simulation run.
type BacktestTrade struct {
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `json:"exit_time"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Qty        float64    `json:"quantity"`
	Side       Direction  `json:"side"`
	PnL        float64    `json:"pnl"`
	PnLPercent float64    `json:"pnl_percent"`
	ExitReason ExitReason `json:"exit_reason"`
}

// EquityPoint is one sample of the simulated equity curve: realized capital
// plus the unrealized P&L of any open position, marked to that bar's close.
type EquityPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Equity        float64   `json:"equity"`
	CumulativePnL float64   `json:"cumulative_pnl"`
}

// ---------------------------------------------------------------------------
// Broker records
// ---------------------------------------------------------------------------

// AccountInfo is a snapshot of brokerage account metrics.
type AccountInfo struct {
	AccountNumber  string  `json:"account_number,omitempty"`
	Cash           float64 `json:"cash"`
	Equity         float64 `json:"equity"`
	LastEquity     float64 `json:"last_equity"`
	BuyingPower    float64 `json:"buying_power"`
	PortfolioValue float64 `json:"portfolio_value"`
}

// BrokerPosition is an account-level open position as reported by the
// broker, used only for mark-to-market enrichment.
type BrokerPosition struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	CurrentPrice  float64 `json:"current_price,omitempty"`
	UnrealizedPnL float64 `json:"unrealized_pl_usd,omitempty"`
	MarketValue   float64 `json:"market_value,omitempty"`
}

// Float returns a pointer to v, for optional JSON metrics whose absence is
// meaningful (profit factor with no losses, drawdown with no peak).
func Float(v float64) *float64 { return &v }
