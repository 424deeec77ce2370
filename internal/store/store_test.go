package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"schicchi/internal/domain"
)

// ---------------------------------------------------------------------------
// ParquetStore
// ---------------------------------------------------------------------------

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")
	want := filepath.Join("/data", "us", "5min", "AAPL", "2025.parquet")
	if got := ps.barPath("aapl", 2025); got != want {
		t.Errorf("barPath = %s, want %s", got, want)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{
			Symbol:    "AAPL",
			Timestamp: time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC),
			Open:      185.0, High: 186.5, Low: 184.0, Close: 185.5,
			Volume: 500000, TradeCount: 5000, VWAP: 185.25,
		},
		{
			Symbol:    "AAPL",
			Timestamp: time.Date(2025, 1, 2, 14, 35, 0, 0, time.UTC),
			Open:      185.5, High: 187.0, Low: 185.0, Close: 186.0,
			Volume: 450000, TradeCount: 4500, VWAP: 185.75,
		},
	}
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "AAPL", start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 185.5 || got[1].Close != 186.0 {
		t.Errorf("closes = %v/%v, want 185.5/186.0", got[0].Close, got[1].Close)
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	first := []domain.Bar{{
		Symbol:    "MSFT",
		Timestamp: time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC),
		Open:      400, High: 405, Low: 399, Close: 403, Volume: 300000,
	}}
	if err := ps.WriteBars(ctx, first); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// Same symbol and year again: records must merge, not overwrite.
	second := []domain.Bar{{
		Symbol:    "MSFT",
		Timestamp: time.Date(2025, 3, 3, 14, 35, 0, 0, time.UTC),
		Open:      403, High: 410, Low: 402, Close: 408, Volume: 350000,
	}}
	if err := ps.WriteBars(ctx, second); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "MSFT", start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "AAPL", Timestamp: time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC), Open: 185, High: 186, Low: 184, Close: 185.5, Volume: 500000},
		{Symbol: "GOOGL", Timestamp: time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC), Open: 140, High: 141, Low: 139, Close: 140.5, Volume: 200000},
	}
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err := ps.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "GOOGL" {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", symbols)
	}
}

// ---------------------------------------------------------------------------
// SQLiteStore
// ---------------------------------------------------------------------------

func newTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestSQLiteSignals(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

	for i, price := range []float64{100, 105, 110} {
		sig := &domain.Signal{
			StrategyID:  "strat-1",
			Symbol:      "AAPL",
			Side:        domain.SideBuy,
			Event:       "entry",
			SignalTime:  base.Add(time.Duration(i) * 5 * time.Minute),
			SignalPrice: price,
		}
		if err := s.SaveSignal(ctx, sig); err != nil {
			t.Fatalf("SaveSignal: %v", err)
		}
		if sig.ID == 0 {
			t.Error("SaveSignal did not set ID")
		}
	}

	history, err := s.SignalHistory(ctx, "strat-1")
	if err != nil {
		t.Fatalf("SignalHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("SignalHistory returned %d signals, want 3", len(history))
	}
	if history[0].SignalPrice != 100 || history[2].SignalPrice != 110 {
		t.Errorf("history prices = %v..%v, want ascending 100..110",
			history[0].SignalPrice, history[2].SignalPrice)
	}

	recent, err := s.RecentSignals(ctx, "strat-1", 2)
	if err != nil {
		t.Fatalf("RecentSignals: %v", err)
	}
	if len(recent) != 2 || recent[0].SignalPrice != 110 {
		t.Errorf("RecentSignals = %v, want 2 newest-first starting at 110", recent)
	}

	if got, err := s.SignalHistory(ctx, "unknown"); err != nil || len(got) != 0 {
		t.Errorf("SignalHistory(unknown) = %v, %v, want empty, nil", got, err)
	}
}

func TestSQLiteOrders(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	o := &domain.Order{
		TradeID:       "trade-1",
		StrategyID:    "strat-1",
		Symbol:        "AAPL",
		Side:          domain.SideBuy,
		Notional:      1000,
		BrokerOrderID: "broker-abc",
		Status:        "accepted",
	}
	if err := s.SaveOrder(ctx, o); err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}
	if o.ID == 0 {
		t.Error("SaveOrder did not set ID")
	}

	filledAt := time.Date(2025, 3, 3, 14, 31, 0, 0, time.UTC)
	if err := s.UpdateOrderFill(ctx, "broker-abc", "filled", 5, 200, &filledAt); err != nil {
		t.Fatalf("UpdateOrderFill: %v", err)
	}

	got, err := s.GetOrderByBrokerID(ctx, "broker-abc")
	if err != nil {
		t.Fatalf("GetOrderByBrokerID: %v", err)
	}
	if got == nil {
		t.Fatal("GetOrderByBrokerID = nil, want order")
	}
	if got.Status != "filled" || got.FilledQty != 5 || got.FilledAvgPrice != 200 {
		t.Errorf("order after fill = %+v, want filled 5@200", got)
	}
	if got.FilledAt == nil || !got.FilledAt.Equal(filledAt) {
		t.Errorf("FilledAt = %v, want %v", got.FilledAt, filledAt)
	}

	if missing, err := s.GetOrderByBrokerID(ctx, "nope"); err != nil || missing != nil {
		t.Errorf("GetOrderByBrokerID(nope) = %v, %v, want nil, nil", missing, err)
	}

	orders, err := s.ListOrders(ctx, "strat-1")
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("ListOrders returned %d orders, want 1", len(orders))
	}
}

func TestSQLiteFillsIdempotent(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

	fills := []domain.Fill{
		{Symbol: "AAPL", OrderID: "o1", Side: domain.SideBuy, Qty: 10, Price: 100, Timestamp: ts},
		{Symbol: "AAPL", OrderID: "o2", Side: domain.SideSell, Qty: 10, Price: 110, Timestamp: ts.Add(time.Minute)},
	}
	if err := s.SaveFills(ctx, fills); err != nil {
		t.Fatalf("SaveFills: %v", err)
	}
	// Saving the same fills again must be a no-op.
	if err := s.SaveFills(ctx, fills); err != nil {
		t.Fatalf("SaveFills (repeat): %v", err)
	}

	got, err := s.FillsForSymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("FillsForSymbol: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FillsForSymbol returned %d fills, want 2 (idempotent save)", len(got))
	}
	if got[0].OrderID != "o1" || got[1].OrderID != "o2" {
		t.Errorf("fill order = %s,%s, want o1,o2 (time-sorted)", got[0].OrderID, got[1].OrderID)
	}

	symbols, err := s.FillSymbols(ctx)
	if err != nil {
		t.Fatalf("FillSymbols: %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "AAPL" {
		t.Errorf("FillSymbols = %v, want [AAPL]", symbols)
	}
}

func TestSQLiteStrategies(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	if rec, err := s.GetStrategy(ctx, "tv-rsi"); err != nil || rec != nil {
		t.Fatalf("GetStrategy on empty table = %v, %v, want nil, nil", rec, err)
	}

	rec := &domain.StrategyRecord{ID: "tv-rsi", Name: "TradingView RSI", Active: true, NotionalPerTrade: 500}
	if err := s.UpsertStrategy(ctx, rec); err != nil {
		t.Fatalf("UpsertStrategy: %v", err)
	}

	got, err := s.GetStrategy(ctx, "tv-rsi")
	if err != nil {
		t.Fatalf("GetStrategy: %v", err)
	}
	if got == nil || got.Name != "TradingView RSI" || !got.Active || got.NotionalPerTrade != 500 {
		t.Errorf("GetStrategy = %+v, want saved record", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	// Upsert by the same ID replaces fields.
	rec.Active = false
	rec.NotionalPerTrade = 250
	if err := s.UpsertStrategy(ctx, rec); err != nil {
		t.Fatalf("UpsertStrategy update: %v", err)
	}
	got, err = s.GetStrategy(ctx, "tv-rsi")
	if err != nil {
		t.Fatalf("GetStrategy after update: %v", err)
	}
	if got.Active || got.NotionalPerTrade != 250 {
		t.Errorf("updated record = %+v, want inactive with notional 250", got)
	}

	if err := s.UpsertStrategy(ctx, &domain.StrategyRecord{ID: "squeeze", Name: "Squeeze", Active: true}); err != nil {
		t.Fatalf("UpsertStrategy second: %v", err)
	}
	all, err := s.ListStrategies(ctx)
	if err != nil {
		t.Fatalf("ListStrategies: %v", err)
	}
	if len(all) != 2 || all[0].ID != "squeeze" || all[1].ID != "tv-rsi" {
		t.Errorf("ListStrategies = %+v, want [squeeze tv-rsi]", all)
	}
}
