// Package store defines storage interfaces for persisting and retrieving
// domain objects such as bars, signals, orders, and fills.
package store

import (
	"context"
	"time"

	"schicchi/internal/domain"
)

// BarStore persists and retrieves intraday OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage, merging with any
	// bars already present for the same symbol and timestamp.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end],
	// sorted by timestamp.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// SignalStore persists and retrieves recorded strategy signals.
type SignalStore interface {
	// SaveSignal inserts a new signal and sets its ID.
	SaveSignal(ctx context.Context, signal *domain.Signal) error

	// RecentSignals returns the most recent signals for a strategy,
	// newest first, up to limit.
	RecentSignals(ctx context.Context, strategyID string, limit int) ([]domain.Signal, error)

	// SignalHistory returns all signals for a strategy in ascending
	// signal-time order.
	SignalHistory(ctx context.Context, strategyID string) ([]domain.Signal, error)
}

// OrderStore persists and retrieves order records.
type OrderStore interface {
	// SaveOrder inserts a new order and sets its ID.
	SaveOrder(ctx context.Context, order *domain.Order) error

	// GetOrderByBrokerID retrieves an order by its broker-assigned ID.
	// It returns (nil, nil) when no such order exists.
	GetOrderByBrokerID(ctx context.Context, brokerOrderID string) (*domain.Order, error)

	// ListOrders returns all orders for a strategy, newest first.
	ListOrders(ctx context.Context, strategyID string) ([]domain.Order, error)

	// UpdateOrderFill records broker-reported fill state on an order.
	UpdateOrderFill(ctx context.Context, brokerOrderID, status string, filledQty, filledAvgPrice float64, filledAt *time.Time) error
}

// StrategyStore persists forward-test strategy registrations.
type StrategyStore interface {
	// UpsertStrategy inserts or replaces a strategy record by ID.
	UpsertStrategy(ctx context.Context, rec *domain.StrategyRecord) error

	// GetStrategy retrieves a strategy record by ID. It returns
	// (nil, nil) when no such strategy is registered.
	GetStrategy(ctx context.Context, id string) (*domain.StrategyRecord, error)

	// ListStrategies returns all registered strategies sorted by ID.
	ListStrategies(ctx context.Context) ([]domain.StrategyRecord, error)
}

// FillStore persists executed fills. Fills are immutable facts keyed by
// (symbol, order id), so re-saving an already-stored fill is a no-op.
type FillStore interface {
	// SaveFills inserts fills, ignoring any already present.
	SaveFills(ctx context.Context, fills []domain.Fill) error

	// FillsForSymbol returns all stored fills for a symbol, sorted by
	// (timestamp, order id).
	FillsForSymbol(ctx context.Context, symbol string) ([]domain.Fill, error)

	// FillSymbols returns all distinct symbols with stored fills.
	FillSymbols(ctx context.Context) ([]string, error)
}
