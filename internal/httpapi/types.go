package httpapi

import (
	"schicchi/internal/backtest"
	"schicchi/internal/strategy"
)

// StrategiesResponse lists registered strategy names.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
}

// SymbolsResponse lists symbols with stored bars.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// BacktestRequest runs one strategy over one symbol's stored bars.
// Start and End accept RFC 3339 timestamps or bare dates. Zero-valued
// capital fields fall back to the server configuration.
type BacktestRequest struct {
	Symbol   string          `json:"symbol"`
	Strategy string          `json:"strategy"`
	Params   strategy.Params `json:"params,omitempty"`
	Start    string          `json:"start"`
	End      string          `json:"end"`

	InitialCapital       float64 `json:"initial_capital,omitempty"`
	PositionSizeFraction float64 `json:"position_size_fraction,omitempty"`
}

// BacktestResponse wraps a simulation result with its inputs.
type BacktestResponse struct {
	Symbol   string           `json:"symbol"`
	Strategy string           `json:"strategy"`
	Params   strategy.Params  `json:"params,omitempty"`
	Bars     int              `json:"bars"`
	Result   *backtest.Result `json:"result"`
}

// OptimizeRequest sweeps a parameter grid over one symbol's stored bars.
type OptimizeRequest struct {
	Symbol   string        `json:"symbol"`
	Strategy string        `json:"strategy"`
	Grid     backtest.Grid `json:"grid"`
	Start    string        `json:"start"`
	End      string        `json:"end"`

	InitialCapital       float64 `json:"initial_capital,omitempty"`
	PositionSizeFraction float64 `json:"position_size_fraction,omitempty"`
	MinWinRate           float64 `json:"min_win_rate,omitempty"`
	Workers              int     `json:"workers,omitempty"`
}

// OptimizeResponse wraps a sweep result with its inputs.
type OptimizeResponse struct {
	Symbol       string                   `json:"symbol"`
	Strategy     string                   `json:"strategy"`
	Combinations int                      `json:"combinations"`
	Bars         int                      `json:"bars"`
	Result       *backtest.OptimizeResult `json:"result"`
}

// SignalRequest records an external strategy signal, mirroring the
// TradingView webhook payload. When Execute is set the server also submits
// a notional market order for it.
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

// SyncResponse reports the outcome of a broker fill sync.
type SyncResponse struct {
	NewFills int `json:"new_fills"`
}
