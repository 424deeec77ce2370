// Package engine coordinates the forward test: it ingests fills, serializes
// reconciliation per symbol, records signals and orders, and assembles
// performance reports.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"schicchi/internal/broker"
	"schicchi/internal/domain"
	"schicchi/internal/store"
	"schicchi/internal/util"
)

// Engine is the forward-test coordinator. Fill intake is idempotent: a fill
// is identified by (symbol, order id) and observing it twice has no effect.
type Engine struct {
	broker     broker.Broker
	fills      store.FillStore
	signals    store.SignalStore
	orders     store.OrderStore
	strategies store.StrategyStore
	risk       *RiskManager
	// notionalPerTrade sizes entry orders and the benchmark basis.
	notionalPerTrade float64
	sessionOnly      bool
	log              *slog.Logger

	mu   sync.Mutex
	seen map[fillKey]bool

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan domain.Fill
}

type fillKey struct {
	symbol  string
	orderID string
}

// Opts wires an Engine.
type Opts struct {
	Broker  broker.Broker
	Fills   store.FillStore
	Signals store.SignalStore
	Orders  store.OrderStore
	// Strategies is optional; when set, orders are gated on the signal's
	// registered strategy being active and sized by its notional.
	Strategies store.StrategyStore
	Risk       *RiskManager
	// NotionalPerTrade sizes orders for strategies without a registered
	// notional.
	NotionalPerTrade float64
	// SessionOnly rejects signal orders timestamped outside the regular
	// 09:30-16:00 Eastern equity session.
	SessionOnly bool
}

// New creates an Engine. Call Prime before ingesting to avoid re-announcing
// fills already persisted by a previous run.
func New(opts Opts) *Engine {
	return &Engine{
		broker:           opts.Broker,
		fills:            opts.Fills,
		signals:          opts.Signals,
		orders:           opts.Orders,
		strategies:       opts.Strategies,
		risk:             opts.Risk,
		notionalPerTrade: opts.NotionalPerTrade,
		sessionOnly:      opts.SessionOnly,
		log:              slog.Default().With("component", "engine"),
		seen:             make(map[fillKey]bool),
		subs:             make(map[int]chan domain.Fill),
	}
}

// Prime loads the identities of already-stored fills so that re-observed
// fills are recognized as duplicates across restarts.
func (e *Engine) Prime(ctx context.Context) error {
	symbols, err := e.fills.FillSymbols(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sym := range symbols {
		fills, err := e.fills.FillsForSymbol(ctx, sym)
		if err != nil {
			return err
		}
		for _, f := range fills {
			e.seen[fillKey{f.Symbol, f.OrderID}] = true
		}
	}
	return nil
}

// IngestFills persists and announces fills not seen before. It returns the
// number of new fills.
func (e *Engine) IngestFills(ctx context.Context, fills []domain.Fill) (int, error) {
	e.mu.Lock()
	fresh := make([]domain.Fill, 0, len(fills))
	for _, f := range fills {
		if f.SignedQty() == 0 || f.OrderID == "" {
			continue
		}
		k := fillKey{f.Symbol, f.OrderID}
		if e.seen[k] {
			continue
		}
		e.seen[k] = true
		fresh = append(fresh, f)
	}
	e.mu.Unlock()

	if len(fresh) == 0 {
		return 0, nil
	}
	if err := e.fills.SaveFills(ctx, fresh); err != nil {
		return 0, err
	}
	for _, f := range fresh {
		e.publish(f)
	}
	return len(fresh), nil
}

// SyncFills pulls closed orders from the broker since the given time and
// ingests their fills. It also records broker fill state on any matching
// stored orders.
func (e *Engine) SyncFills(ctx context.Context, since time.Time) (int, error) {
	fills, err := e.broker.ClosedOrders(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("fetch closed orders: %w", err)
	}
	added, err := e.IngestFills(ctx, fills)
	if err != nil {
		return 0, err
	}

	if e.orders != nil {
		for _, f := range fills {
			t := f.Timestamp
			if err := e.orders.UpdateOrderFill(ctx, f.OrderID, "filled", f.Qty, f.Price, &t); err != nil {
				e.log.Warn("updating order fill failed", "orderID", f.OrderID, "err", err)
			}
		}
	}
	e.log.Info("fill sync done", "fetched", len(fills), "new", added)
	return added, nil
}

// RunTradeStream blocks on the broker's trade-update stream, ingesting each
// execution as it arrives, until ctx is cancelled.
func (e *Engine) RunTradeStream(ctx context.Context) error {
	return e.broker.StreamTradeUpdates(ctx, func(f domain.Fill) {
		if _, err := e.IngestFills(ctx, []domain.Fill{f}); err != nil {
			e.log.Error("ingesting streamed fill failed", "orderID", f.OrderID, "err", err)
		}
	})
}

// SubmitSignalOrder records a signal and submits the matching fixed-notional
// market order through the broker after the risk check passes.
func (e *Engine) SubmitSignalOrder(ctx context.Context, sig *domain.Signal) (*domain.Order, error) {
	if err := e.signals.SaveSignal(ctx, sig); err != nil {
		return nil, fmt.Errorf("record signal: %w", err)
	}

	if e.sessionOnly {
		at := sig.SignalTime
		if at.IsZero() {
			at = time.Now()
		}
		if !util.InRegularSession(at) {
			return nil, fmt.Errorf("signal for %s is outside the regular session", sig.Symbol)
		}
	}

	notional := e.notionalPerTrade
	if e.strategies != nil {
		rec, err := e.strategies.GetStrategy(ctx, sig.StrategyID)
		if err != nil {
			return nil, fmt.Errorf("strategy lookup: %w", err)
		}
		if rec != nil {
			if !rec.Active {
				return nil, fmt.Errorf("strategy %s is inactive", sig.StrategyID)
			}
			if rec.NotionalPerTrade > 0 {
				notional = rec.NotionalPerTrade
			}
		}
	}

	if e.risk != nil {
		acct, err := e.broker.Account(ctx)
		if err != nil {
			return nil, fmt.Errorf("account snapshot: %w", err)
		}
		if err := e.risk.CheckNotional(notional, acct); err != nil {
			return nil, err
		}
	}

	order, err := e.broker.SubmitNotionalOrder(ctx, sig.Symbol, sig.Side, notional, sig.TradeID)
	if err != nil {
		return nil, err
	}
	order.StrategyID = sig.StrategyID
	if e.orders != nil {
		if err := e.orders.SaveOrder(ctx, order); err != nil {
			return nil, fmt.Errorf("persist order: %w", err)
		}
	}
	e.log.Info("order submitted",
		"symbol", sig.Symbol, "side", sig.Side, "notional", notional,
		"brokerOrderID", order.BrokerOrderID)
	return order, nil
}

// ---------------------------------------------------------------------------
// Fill pub/sub
// ---------------------------------------------------------------------------

// Subscribe registers a fill listener. The returned channel drops events if
// the subscriber falls behind.
func (e *Engine) Subscribe() (int, <-chan domain.Fill) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	e.nextSubID++
	ch := make(chan domain.Fill, 64)
	e.subs[e.nextSubID] = ch
	return e.nextSubID, ch
}

// Unsubscribe removes a fill listener and closes its channel.
func (e *Engine) Unsubscribe(id int) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	if ch, ok := e.subs[id]; ok {
		delete(e.subs, id)
		close(ch)
	}
}

func (e *Engine) publish(f domain.Fill) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- f:
		default:
			// Slow subscriber, drop event.
		}
	}
}

// fillsBySymbol loads every stored fill grouped by symbol, with a stable
// symbol order.
func (e *Engine) fillsBySymbol(ctx context.Context) ([]string, map[string][]domain.Fill, error) {
	symbols, err := e.fills.FillSymbols(ctx)
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(symbols)

	bySymbol := make(map[string][]domain.Fill, len(symbols))
	for _, sym := range symbols {
		fills, err := e.fills.FillsForSymbol(ctx, sym)
		if err != nil {
			return nil, nil, err
		}
		bySymbol[sym] = fills
	}
	return symbols, bySymbol, nil
}
