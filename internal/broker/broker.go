// Package broker defines the Broker interface and provides implementations
// for executing orders and observing fills across brokerages.
package broker

import (
	"context"
	"time"

	"schicchi/internal/domain"
)

// Broker abstracts brokerage operations for order execution, account state,
// and fill observation.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "simulator").
	Name() string

	// SubmitNotionalOrder sends a fixed-dollar market order. The returned
	// order carries the broker-assigned ID and initial status.
	SubmitNotionalOrder(ctx context.Context, symbol string, side domain.Side, notional float64, clientOrderID string) (*domain.Order, error)

	// CancelOrder requests cancellation of an open order by its broker ID.
	CancelOrder(ctx context.Context, brokerOrderID string) error

	// Account returns a snapshot of the account's financial metrics.
	Account(ctx context.Context) (*domain.AccountInfo, error)

	// Positions returns all open positions held at the brokerage,
	// including the broker's mark-to-market fields.
	Positions(ctx context.Context) ([]domain.BrokerPosition, error)

	// ClosedOrders returns the fills of orders closed at or after since,
	// oldest first. Orders that closed without executing are omitted.
	ClosedOrders(ctx context.Context, since time.Time) ([]domain.Fill, error)

	// StreamTradeUpdates blocks, invoking handler for each execution
	// until ctx is cancelled.
	StreamTradeUpdates(ctx context.Context, handler func(domain.Fill)) error
}
