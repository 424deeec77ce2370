package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"schicchi/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// SimulatorBroker implements the Broker interface for paper trading. Orders
// fill immediately and in full at the current mark price for the symbol, set
// via SetPrice. All state is in memory.
type SimulatorBroker struct {
	mu        sync.Mutex
	cash      float64
	prices    map[string]float64
	positions map[string]*domain.Position
	fills     []domain.Fill
	nextID    int
	handlers  []func(domain.Fill)
}

// NewSimulatorBroker creates a SimulatorBroker with the given starting cash.
func NewSimulatorBroker(cash float64) *SimulatorBroker {
	return &SimulatorBroker{
		cash:      cash,
		prices:    make(map[string]float64),
		positions: make(map[string]*domain.Position),
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// SetPrice sets the mark price used to fill orders and value positions for
// symbol.
func (b *SimulatorBroker) SetPrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = price
}

// SubmitNotionalOrder fills the order immediately at the current mark price.
func (b *SimulatorBroker) SubmitNotionalOrder(_ context.Context, symbol string, side domain.Side, notional float64, clientOrderID string) (*domain.Order, error) {
	b.mu.Lock()
	price, ok := b.prices[symbol]
	if !ok || price <= 0 {
		b.mu.Unlock()
		return nil, fmt.Errorf("simulator: no mark price for %s", symbol)
	}

	b.nextID++
	now := time.Now().UTC()
	fill := domain.Fill{
		Symbol:    symbol,
		Side:      side,
		Qty:       notional / price,
		Price:     price,
		Timestamp: now,
		OrderID:   fmt.Sprintf("sim-%06d", b.nextID),
		TradeID:   clientOrderID,
	}
	b.fills = append(b.fills, fill)
	b.applyFill(fill)

	order := &domain.Order{
		TradeID:        clientOrderID,
		Symbol:         symbol,
		Side:           side,
		Notional:       notional,
		BrokerOrderID:  fill.OrderID,
		Status:         "filled",
		SubmittedAt:    &now,
		FilledAt:       &now,
		FilledQty:      fill.Qty,
		FilledAvgPrice: price,
		CreatedAt:      now,
	}
	handlers := append([]func(domain.Fill){}, b.handlers...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(fill)
	}
	return order, nil
}

// applyFill updates cash and the position map. Caller holds the lock.
func (b *SimulatorBroker) applyFill(f domain.Fill) {
	delta := f.SignedQty()
	b.cash -= delta * f.Price

	pos := b.positions[f.Symbol]
	if pos == nil {
		t := f.Timestamp
		b.positions[f.Symbol] = &domain.Position{
			Symbol: f.Symbol, Qty: delta, AvgEntryPrice: f.Price, OpenTime: &t,
		}
		return
	}
	newQty := pos.Qty + delta
	if newQty == 0 {
		delete(b.positions, f.Symbol)
		return
	}
	if (pos.Qty > 0) == (delta > 0) {
		total := abs(pos.Qty) + abs(delta)
		pos.AvgEntryPrice = (pos.AvgEntryPrice*abs(pos.Qty) + f.Price*abs(delta)) / total
	} else if (pos.Qty > 0) != (newQty > 0) {
		// Flip: residual reopens at the fill price.
		t := f.Timestamp
		pos.AvgEntryPrice = f.Price
		pos.OpenTime = &t
	}
	pos.Qty = newQty
}

// CancelOrder is a no-op: simulated orders fill instantly.
func (b *SimulatorBroker) CancelOrder(_ context.Context, _ string) error {
	return nil
}

// Account returns simulated account metrics marked at current prices.
func (b *SimulatorBroker) Account(_ context.Context) (*domain.AccountInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	for sym, pos := range b.positions {
		equity += pos.Qty * b.prices[sym]
	}
	return &domain.AccountInfo{
		Cash:           b.cash,
		Equity:         equity,
		BuyingPower:    b.cash,
		PortfolioValue: equity,
	}, nil
}

// Positions returns simulated positions marked at current prices.
func (b *SimulatorBroker) Positions(_ context.Context) ([]domain.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.BrokerPosition, 0, len(b.positions))
	for sym, pos := range b.positions {
		price := b.prices[sym]
		out = append(out, domain.BrokerPosition{
			Symbol:        sym,
			Qty:           pos.Qty,
			AvgEntryPrice: pos.AvgEntryPrice,
			CurrentPrice:  price,
			UnrealizedPnL: pos.Qty * (price - pos.AvgEntryPrice),
			MarketValue:   pos.Qty * price,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// ClosedOrders returns recorded fills at or after since, oldest first.
func (b *SimulatorBroker) ClosedOrders(_ context.Context, since time.Time) ([]domain.Fill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []domain.Fill
	for _, f := range b.fills {
		if !f.Timestamp.Before(since) {
			out = append(out, f)
		}
	}
	return out, nil
}

// StreamTradeUpdates registers handler for future fills and blocks until ctx
// is cancelled.
func (b *SimulatorBroker) StreamTradeUpdates(ctx context.Context, handler func(domain.Fill)) error {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
