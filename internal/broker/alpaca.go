package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"schicchi/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// AlpacaBroker implements the Broker interface using the Alpaca brokerage API.
type AlpacaBroker struct {
	client *alpaca.Client
}

// NewAlpacaBroker creates a new AlpacaBroker configured with the given
// credentials and API endpoint.
func NewAlpacaBroker(apiKey, apiSecret, baseURL string) *AlpacaBroker {
	return &AlpacaBroker{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

// SubmitNotionalOrder sends a fixed-dollar market day order.
func (b *AlpacaBroker) SubmitNotionalOrder(_ context.Context, symbol string, side domain.Side, notional float64, clientOrderID string) (*domain.Order, error) {
	alpacaSide := alpaca.Buy
	if side == domain.SideSell {
		alpacaSide = alpaca.Sell
	}
	amount := decimal.NewFromFloat(notional)

	placed, err := b.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        symbol,
		Notional:      &amount,
		Side:          alpacaSide,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: clientOrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("place order %s %s: %w", side, symbol, err)
	}

	submitted := placed.SubmittedAt
	order := &domain.Order{
		TradeID:       clientOrderID,
		Symbol:        symbol,
		Side:          side,
		Notional:      notional,
		BrokerOrderID: placed.ID,
		Status:        string(placed.Status),
		SubmittedAt:   &submitted,
		CreatedAt:     placed.CreatedAt,
	}
	return order, nil
}

// CancelOrder requests cancellation of an open order.
func (b *AlpacaBroker) CancelOrder(_ context.Context, brokerOrderID string) error {
	return b.client.CancelOrder(brokerOrderID)
}

// Account returns the current account information.
func (b *AlpacaBroker) Account(_ context.Context) (*domain.AccountInfo, error) {
	acct, err := b.client.GetAccount()
	if err != nil {
		return nil, err
	}
	return &domain.AccountInfo{
		AccountNumber:  acct.AccountNumber,
		Cash:           acct.Cash.InexactFloat64(),
		Equity:         acct.Equity.InexactFloat64(),
		LastEquity:     acct.LastEquity.InexactFloat64(),
		BuyingPower:    acct.BuyingPower.InexactFloat64(),
		PortfolioValue: acct.PortfolioValue.InexactFloat64(),
	}, nil
}

// Positions returns all open positions with the broker's mark-to-market
// fields.
func (b *AlpacaBroker) Positions(_ context.Context) ([]domain.BrokerPosition, error) {
	positions, err := b.client.GetPositions()
	if err != nil {
		return nil, err
	}
	out := make([]domain.BrokerPosition, 0, len(positions))
	for _, p := range positions {
		bp := domain.BrokerPosition{
			Symbol:        p.Symbol,
			Qty:           p.Qty.InexactFloat64(),
			AvgEntryPrice: p.AvgEntryPrice.InexactFloat64(),
		}
		if p.CurrentPrice != nil {
			bp.CurrentPrice = p.CurrentPrice.InexactFloat64()
		}
		if p.UnrealizedPL != nil {
			bp.UnrealizedPnL = p.UnrealizedPL.InexactFloat64()
		}
		if p.MarketValue != nil {
			bp.MarketValue = p.MarketValue.InexactFloat64()
		}
		out = append(out, bp)
	}
	return out, nil
}

// ClosedOrders pages through closed orders at the broker and converts the
// ones that executed into fills, oldest first.
func (b *AlpacaBroker) ClosedOrders(_ context.Context, since time.Time) ([]domain.Fill, error) {
	const pageSize = 500

	var fills []domain.Fill
	after := since
	for {
		orders, err := b.client.GetOrders(alpaca.GetOrdersRequest{
			Status:    "closed",
			After:     after,
			Limit:     pageSize,
			Direction: "asc",
		})
		if err != nil {
			return nil, fmt.Errorf("list closed orders: %w", err)
		}
		for _, o := range orders {
			if f, ok := orderToFill(o); ok {
				fills = append(fills, f)
			}
		}
		if len(orders) < pageSize {
			return fills, nil
		}
		after = orders[len(orders)-1].SubmittedAt
	}
}

// StreamTradeUpdates blocks, converting fill and partial-fill trade updates
// into domain fills until ctx is cancelled.
func (b *AlpacaBroker) StreamTradeUpdates(ctx context.Context, handler func(domain.Fill)) error {
	return b.client.StreamTradeUpdates(ctx, func(tu alpaca.TradeUpdate) {
		if tu.Event != "fill" && tu.Event != "partial_fill" {
			return
		}
		f := domain.Fill{
			Symbol:    tu.Order.Symbol,
			Side:      sideFromAlpaca(tu.Order.Side),
			OrderID:   tu.Order.ID,
			TradeID:   tu.Order.ClientOrderID,
			Timestamp: tu.At,
		}
		if tu.Qty != nil {
			f.Qty = tu.Qty.InexactFloat64()
		}
		if tu.Price != nil {
			f.Price = tu.Price.InexactFloat64()
		}
		if f.Qty <= 0 || f.Price <= 0 {
			return
		}
		handler(f)
	}, alpaca.StreamTradeUpdatesRequest{})
}

// orderToFill converts an executed broker order into a fill at its average
// execution price. Orders with nothing filled are dropped.
func orderToFill(o alpaca.Order) (domain.Fill, bool) {
	qty := o.FilledQty.InexactFloat64()
	if qty <= 0 || o.FilledAvgPrice == nil || o.FilledAt == nil {
		return domain.Fill{}, false
	}
	return domain.Fill{
		Symbol:    o.Symbol,
		Side:      sideFromAlpaca(o.Side),
		Qty:       qty,
		Price:     o.FilledAvgPrice.InexactFloat64(),
		Timestamp: *o.FilledAt,
		OrderID:   o.ID,
		TradeID:   o.ClientOrderID,
	}, true
}

func sideFromAlpaca(s alpaca.Side) domain.Side {
	if strings.EqualFold(string(s), "sell") {
		return domain.SideSell
	}
	return domain.SideBuy
}
