package schicchi

import "time"

// The types below mirror the schicchi-server JSON wire contract so that
// importers of this package do not depend on the server's internals.

// Params is a flat strategy parameter set.
type Params map[string]float64

// Grid maps a parameter name to its candidate values for a sweep.
type Grid map[string][]float64

// Bar is one OHLCV bar.
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

// BacktestRequest runs one strategy over one symbol's stored bars. Start
// and End accept RFC 3339 timestamps or bare dates. Zero-valued capital
// fields fall back to the server configuration.
type BacktestRequest struct {
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`
	Params   Params `json:"params,omitempty"`
	Start    string `json:"start"`
	End      string `json:"end"`

	InitialCapital       float64 `json:"initial_capital,omitempty"`
	PositionSizeFraction float64 `json:"position_size_fraction,omitempty"`
}

// BacktestTrade is one completed simulated trade.
type BacktestTrade struct {
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Qty        float64   `json:"quantity"`
	Side       string    `json:"side"`
	PnL        float64   `json:"pnl"`
	PnLPercent float64   `json:"pnl_percent"`
	ExitReason string    `json:"exit_reason"`
}

// EquityPoint is one sample of the simulated equity curve.
type EquityPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Equity        float64   `json:"equity"`
	CumulativePnL float64   `json:"cumulative_pnl"`
}

// BacktestMetrics summarizes a simulation.
type BacktestMetrics struct {
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

// BacktestResult is a full simulation outcome.
type BacktestResult struct {
	Trades      []BacktestTrade `json:"trades"`
	EquityCurve []EquityPoint   `json:"equity_curve"`
	Metrics     BacktestMetrics `json:"metrics"`
}

// BacktestResponse wraps a simulation result with its inputs.
type BacktestResponse struct {
	Symbol   string          `json:"symbol"`
	Strategy string          `json:"strategy"`
	Params   Params          `json:"params,omitempty"`
	Bars     int             `json:"bars"`
	Result   *BacktestResult `json:"result"`
}

// OptimizeRequest sweeps a parameter grid over one symbol's stored bars.
type OptimizeRequest struct {
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`
	Grid     Grid   `json:"grid"`
	Start    string `json:"start"`
	End      string `json:"end"`

	InitialCapital       float64 `json:"initial_capital,omitempty"`
	PositionSizeFraction float64 `json:"position_size_fraction,omitempty"`
	MinWinRate           float64 `json:"min_win_rate,omitempty"`
	Workers              int     `json:"workers,omitempty"`
}

// ComboResult pairs one parameter combination with its metrics.
type ComboResult struct {
	Params  Params          `json:"params"`
	Metrics BacktestMetrics `json:"metrics"`
}

// OptimizeResult is the outcome of a full sweep.
type OptimizeResult struct {
	Best    *ComboResult  `json:"best"`
	Results []ComboResult `json:"results"`
	Skipped int           `json:"skipped"`
}

// OptimizeResponse wraps a sweep result with its inputs.
type OptimizeResponse struct {
	Symbol       string          `json:"symbol"`
	Strategy     string          `json:"strategy"`
	Combinations int             `json:"combinations"`
	Bars         int             `json:"bars"`
	Result       *OptimizeResult `json:"result"`
}

// Position is a reconciled open position.
type Position struct {
	Symbol        string     `json:"symbol"`
	Qty           float64    `json:"qty"`
	AvgEntryPrice float64    `json:"avg_entry_price"`
	OpenTime      *time.Time `json:"open_time,omitempty"`
}

// RoundTrip is one completed entry-to-flat cycle.
type RoundTrip struct {
	TradeNo         int       `json:"trade_no"`
	Symbol          string    `json:"symbol"`
	Direction       string    `json:"direction"`
	EntryTime       time.Time `json:"entry_time"`
	ExitTime        time.Time `json:"exit_time"`
	EntryAvgPrice   float64   `json:"entry_avg_price"`
	ExitPrice       float64   `json:"exit_price"`
	PositionSizeUSD float64   `json:"position_size_usd"`
	NetPnL          float64   `json:"net_pnl_usd"`
	NetPnLPct       *float64  `json:"net_pnl_pct"`
	CumulativePnL   float64   `json:"cumulative_pnl_usd"`
}

// RealizedEvent is one realized P&L event on the reconciliation timeline.
type RealizedEvent struct {
	Time time.Time `json:"time"`
	PnL  float64   `json:"pnl"`
}

// RoundTripsResponse is one symbol's reconciliation outcome.
type RoundTripsResponse struct {
	Position          Position        `json:"position"`
	RoundTrips        []RoundTrip     `json:"round_trips"`
	Events            []RealizedEvent `json:"events"`
	BasisUSD          float64         `json:"basis_usd"`
	RealizedSinceOpen float64         `json:"realized_since_open"`
}

// Performance summarizes reconciled round trips.
type Performance struct {
	Trades       int      `json:"trades"`
	Wins         int      `json:"wins"`
	Losses       int      `json:"losses"`
	WinRate      float64  `json:"win_rate"`
	NetProfit    float64  `json:"net_profit_usd"`
	GrossProfit  float64  `json:"gross_profit_usd"`
	GrossLoss    float64  `json:"gross_loss_usd"`
	ProfitFactor *float64 `json:"profit_factor"`
	AvgTrade     float64  `json:"avg_trade_usd"`
	AvgWin       float64  `json:"avg_win_usd"`
	AvgLoss      float64  `json:"avg_loss_usd"`
	LargestWin   float64  `json:"largest_win_usd"`
	LargestLoss  float64  `json:"largest_loss_usd"`
	MaxDrawdown  *float64 `json:"max_drawdown"`
}

// BenchmarkSymbol is the buy-and-hold outcome for one symbol.
type BenchmarkSymbol struct {
	Symbol     string    `json:"symbol"`
	FirstPrice float64   `json:"first_price"`
	LastPrice  float64   `json:"last_price"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Pct        float64   `json:"pct"`
	BasisUSD   float64   `json:"basis_usd"`
	USD        float64   `json:"usd"`
}

// BenchmarkResult is the capital-weighted buy-and-hold roll-up.
type BenchmarkResult struct {
	Symbols  []BenchmarkSymbol `json:"symbols"`
	BasisUSD float64           `json:"basis_usd"`
	USD      float64           `json:"usd"`
	Pct      float64           `json:"pct"`
}

// SymbolReport is one symbol's slice of a forward-test report.
type SymbolReport struct {
	Symbol     string      `json:"symbol"`
	Position   *Position   `json:"position,omitempty"`
	BasisUSD   float64     `json:"basis_usd,omitempty"`
	MarkPrice  *float64    `json:"mark_price,omitempty"`
	Unrealized *float64    `json:"unrealized_pnl_usd,omitempty"`
	RoundTrips []RoundTrip `json:"round_trips"`
	Perf       Performance `json:"performance"`
}

// Report is the full forward-test report for one strategy.
type Report struct {
	StrategyID      string          `json:"strategy_id"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Symbols         []SymbolReport  `json:"symbols"`
	Overall         Performance     `json:"overall"`
	TotalUnrealized float64         `json:"total_unrealized_usd"`
	Benchmark       BenchmarkResult `json:"benchmark"`
	Outperformance  *float64        `json:"outperformance_usd"`
}

// StrategyRecord is a registered forward-test strategy.
type StrategyRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Active           bool      `json:"active"`
	NotionalPerTrade float64   `json:"notional_per_trade,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// BrokerPosition is an open position as reported by the broker.
type BrokerPosition struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	CurrentPrice  float64 `json:"current_price,omitempty"`
	UnrealizedPnL float64 `json:"unrealized_pl_usd,omitempty"`
	MarketValue   float64 `json:"market_value,omitempty"`
}

// Order is a recorded order intent plus its broker-reported outcome.
type Order struct {
	ID             int64      `json:"id"`
	TradeID        string     `json:"trade_id"`
	StrategyID     string     `json:"strategy_id"`
	Symbol         string     `json:"symbol"`
	Side           string     `json:"side"`
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

// SignalRequest records an external strategy signal. When Execute is set
// the server also submits a notional market order for it.
type SignalRequest struct {
	TradeID    string  `json:"trade_id"`
	StrategyID string  `json:"strategy_id"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Event      string  `json:"event,omitempty"`
	Time       string  `json:"time,omitempty"`
	Price      float64 `json:"price,omitempty"`
	Execute    bool    `json:"execute,omitempty"`
}

type strategiesResponse struct {
	Strategies []string `json:"strategies"`
}

type symbolsResponse struct {
	Symbols []string `json:"symbols"`
}

type syncResponse struct {
	NewFills int `json:"new_fills"`
}
