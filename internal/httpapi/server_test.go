package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"schicchi/internal/backtest"
	"schicchi/internal/broker"
	"schicchi/internal/config"
	"schicchi/internal/domain"
	"schicchi/internal/engine"
	"schicchi/internal/store"
	"schicchi/internal/strategy"
	"schicchi/internal/strategy/builtins"
)

type testEnv struct {
	server *Server
	bars   *store.ParquetStore
	db     *store.SQLiteStore
	broker *broker.SimulatorBroker
}

func newTestEnv(t *testing.T, withEngine bool) *testEnv {
	t.Helper()
	dir := t.TempDir()

	bars := store.NewParquetStore(dir)
	db, err := store.NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)

	log := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	opts := Opts{
		Config:     config.Default(),
		Registry:   registry,
		Bars:       bars,
		Signals:    db,
		Strategies: db,
		Log:        log,
	}

	env := &testEnv{bars: bars, db: db}
	if withEngine {
		env.broker = broker.NewSimulatorBroker(100_000)
		opts.Broker = env.broker
		opts.Engine = engine.New(engine.Opts{
			Broker:           env.broker,
			Fills:            db,
			Signals:          db,
			Orders:           db,
			Strategies:       db,
			NotionalPerTrade: 1000,
		})
	}
	env.server = NewServer(opts)
	return env
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

var barStart = time.Date(2025, 6, 2, 13, 30, 0, 0, time.UTC)

func seedBars(t *testing.T, env *testEnv, symbol string, n int) {
	t.Helper()
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timestamp: barStart.Add(time.Duration(i) * 5 * time.Minute),
			Open:      100, High: 101, Low: 99, Close: 100,
			Volume: 1000,
		}
	}
	if err := env.bars.WriteBars(context.Background(), bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decoding response %q: %v", w.Body.String(), err)
		}
	}
	return w
}

func TestStrategiesEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	h := env.server.Handler()

	var resp StrategiesResponse
	w := doJSON(t, h, "GET", "/api/strategies", nil, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	want := []string{"rsi-pullback", "squeeze-breakout"}
	if len(resp.Strategies) != len(want) {
		t.Fatalf("strategies = %v, want %v", resp.Strategies, want)
	}
	for i, name := range want {
		if resp.Strategies[i] != name {
			t.Errorf("strategies[%d] = %q, want %q", i, resp.Strategies[i], name)
		}
	}
}

func TestBarsEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	seedBars(t, env, "AAPL", 10)
	h := env.server.Handler()

	var bars []domain.Bar
	w := doJSON(t, h, "GET", "/api/bars/aapl?start=2025-06-01&end=2025-06-03", nil, &bars)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(bars) != 10 {
		t.Errorf("len(bars) = %d, want 10", len(bars))
	}

	w = doJSON(t, h, "GET", "/api/bars/AAPL?start=not-a-date", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad start status = %d, want 400", w.Code)
	}
}

func TestBacktestEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	seedBars(t, env, "AAPL", 60)
	h := env.server.Handler()

	req := BacktestRequest{
		Symbol:   "AAPL",
		Strategy: "rsi-pullback",
		Start:    "2025-06-01",
		End:      "2025-06-03",
	}
	var resp BacktestResponse
	w := doJSON(t, h, "POST", "/api/backtest", req, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if resp.Bars != 60 {
		t.Errorf("bars = %d, want 60", resp.Bars)
	}
	if resp.Result == nil {
		t.Fatal("result is nil")
	}
	// Flat tape, no entries: capital passes through unchanged.
	if got := resp.Result.Metrics.FinalCapital; got != 10000 {
		t.Errorf("final capital = %v, want 10000", got)
	}
	if len(resp.Result.EquityCurve) != 60 {
		t.Errorf("equity curve length = %d, want 60", len(resp.Result.EquityCurve))
	}
}

func TestBacktestEndpointRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, false)
	h := env.server.Handler()

	w := doJSON(t, h, "POST", "/api/backtest",
		BacktestRequest{Symbol: "AAPL", Strategy: "no-such-strategy"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown strategy status = %d, want 400", w.Code)
	}

	// Known strategy but no stored bars for the symbol.
	w = doJSON(t, h, "POST", "/api/backtest",
		BacktestRequest{Symbol: "MSFT", Strategy: "rsi-pullback", Start: "2025-06-01", End: "2025-06-03"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("no data status = %d, want 400", w.Code)
	}

	req := httptest.NewRequest("POST", "/api/backtest", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}
}

func TestOptimizeEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	seedBars(t, env, "AAPL", 60)
	h := env.server.Handler()

	req := OptimizeRequest{
		Symbol:   "AAPL",
		Strategy: "rsi-pullback",
		Grid: backtest.Grid{
			"rsi_period": {5, 10},
			"oversold":   {30, 40},
		},
		Start: "2025-06-01",
		End:   "2025-06-03",
	}
	var resp OptimizeResponse
	w := doJSON(t, h, "POST", "/api/optimize", req, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if resp.Combinations != 4 {
		t.Errorf("combinations = %d, want 4", resp.Combinations)
	}
	if resp.Result == nil || len(resp.Result.Results) != 4 {
		t.Fatalf("result = %+v, want 4 combo results", resp.Result)
	}
	if resp.Result.Best == nil {
		t.Error("best is nil")
	}
}

func TestForwardEndpointsUnavailableWithoutEngine(t *testing.T) {
	env := newTestEnv(t, false)
	h := env.server.Handler()

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/report/tv-rsi"},
		{"GET", "/api/positions"},
		{"POST", "/api/sync"},
	} {
		w := doJSON(t, h, tc.method, tc.path, nil, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s status = %d, want 503", tc.method, tc.path, w.Code)
		}
	}
}

func TestPostSignalRecords(t *testing.T) {
	env := newTestEnv(t, false)
	h := env.server.Handler()

	req := SignalRequest{
		TradeID:    "t-1",
		StrategyID: "tv-rsi",
		Symbol:     "aapl",
		Side:       "buy",
		Event:      "entry",
		Time:       "2025-06-02T14:00:00Z",
		Price:      101.5,
	}
	var sig domain.Signal
	w := doJSON(t, h, "POST", "/api/signals", req, &sig)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if sig.Symbol != "AAPL" || sig.Side != domain.SideBuy {
		t.Errorf("signal = %+v, want AAPL BUY", sig)
	}

	var listed []domain.Signal
	w = doJSON(t, h, "GET", "/api/signals/tv-rsi", nil, &listed)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if len(listed) != 1 || listed[0].TradeID != "t-1" {
		t.Errorf("listed = %+v, want one signal t-1", listed)
	}
}

func TestPostSignalRejectsBadSide(t *testing.T) {
	env := newTestEnv(t, false)
	h := env.server.Handler()

	w := doJSON(t, h, "POST", "/api/signals",
		SignalRequest{StrategyID: "tv-rsi", Symbol: "AAPL", Side: "hold"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPostSignalExecuteAndSync(t *testing.T) {
	env := newTestEnv(t, true)
	env.broker.SetPrice("AAPL", 100)
	h := env.server.Handler()

	req := SignalRequest{
		TradeID:    "t-1",
		StrategyID: "tv-rsi",
		Symbol:     "AAPL",
		Side:       "BUY",
		Price:      100,
		Execute:    true,
	}
	var order domain.Order
	w := doJSON(t, h, "POST", "/api/signals", req, &order)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if order.BrokerOrderID == "" {
		t.Error("order has no broker ID")
	}

	var sync SyncResponse
	w = doJSON(t, h, "POST", "/api/sync", nil, &sync)
	if w.Code != http.StatusOK {
		t.Fatalf("sync status = %d, body = %s", w.Code, w.Body.String())
	}
	if sync.NewFills != 1 {
		t.Errorf("new fills = %d, want 1", sync.NewFills)
	}

	var positions []domain.BrokerPosition
	w = doJSON(t, h, "GET", "/api/positions", nil, &positions)
	if w.Code != http.StatusOK {
		t.Fatalf("positions status = %d", w.Code)
	}
	if len(positions) != 1 || positions[0].Symbol != "AAPL" {
		t.Errorf("positions = %+v, want one AAPL position", positions)
	}
}

func TestForwardStrategyRegistration(t *testing.T) {
	env := newTestEnv(t, true)
	env.broker.SetPrice("AAPL", 100)
	h := env.server.Handler()

	var rec domain.StrategyRecord
	w := doJSON(t, h, "PUT", "/api/forward-strategies/tv-rsi",
		domain.StrategyRecord{Name: "TradingView RSI", Active: false}, &rec)
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", w.Code, w.Body.String())
	}
	if rec.ID != "tv-rsi" {
		t.Errorf("record ID = %q, want tv-rsi (from path)", rec.ID)
	}

	var listed []domain.StrategyRecord
	w = doJSON(t, h, "GET", "/api/forward-strategies", nil, &listed)
	if w.Code != http.StatusOK || len(listed) != 1 {
		t.Fatalf("list status = %d, listed = %+v, want one record", w.Code, listed)
	}

	// Inactive strategy refuses orders.
	w = doJSON(t, h, "POST", "/api/signals", SignalRequest{
		StrategyID: "tv-rsi", Symbol: "AAPL", Side: "BUY", Execute: true,
	}, nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("execute on inactive strategy status = %d, want 502", w.Code)
	}
}

func TestRoundTripsEndpoint(t *testing.T) {
	env := newTestEnv(t, true)
	env.broker.SetPrice("AAPL", 100)
	h := env.server.Handler()

	for _, req := range []SignalRequest{
		{TradeID: "t-1", StrategyID: "tv-rsi", Symbol: "AAPL", Side: "BUY", Execute: true},
	} {
		if w := doJSON(t, h, "POST", "/api/signals", req, nil); w.Code != http.StatusCreated {
			t.Fatalf("signal status = %d", w.Code)
		}
	}
	env.broker.SetPrice("AAPL", 110)
	// Size the exit to close the 10-share position exactly at the new mark.
	if w := doJSON(t, h, "PUT", "/api/forward-strategies/tv-rsi",
		domain.StrategyRecord{Active: true, NotionalPerTrade: 1100}, nil); w.Code != http.StatusOK {
		t.Fatalf("put strategy status = %d", w.Code)
	}
	if w := doJSON(t, h, "POST", "/api/signals", SignalRequest{
		TradeID: "t-2", StrategyID: "tv-rsi", Symbol: "AAPL", Side: "SELL", Execute: true,
	}, nil); w.Code != http.StatusCreated {
		t.Fatalf("exit signal status = %d", w.Code)
	}
	if w := doJSON(t, h, "POST", "/api/sync", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("sync status = %d", w.Code)
	}

	var result struct {
		RoundTrips []domain.RoundTrip `json:"round_trips"`
	}
	w := doJSON(t, h, "GET", "/api/roundtrips/aapl", nil, &result)
	if w.Code != http.StatusOK {
		t.Fatalf("roundtrips status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(result.RoundTrips) != 1 {
		t.Fatalf("round trips = %+v, want one", result.RoundTrips)
	}
	if got := result.RoundTrips[0].NetPnL; math.Abs(got-100) > 1e-6 {
		t.Errorf("NetPnL = %v, want 100", got)
	}
}

func TestReportEndpoint(t *testing.T) {
	env := newTestEnv(t, true)
	env.broker.SetPrice("AAPL", 100)
	h := env.server.Handler()

	req := SignalRequest{
		TradeID: "t-1", StrategyID: "tv-rsi", Symbol: "AAPL",
		Side: "BUY", Price: 100, Execute: true,
	}
	if w := doJSON(t, h, "POST", "/api/signals", req, nil); w.Code != http.StatusCreated {
		t.Fatalf("signal status = %d", w.Code)
	}
	if w := doJSON(t, h, "POST", "/api/sync", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("sync status = %d", w.Code)
	}

	var report map[string]any
	w := doJSON(t, h, "GET", "/api/report/tv-rsi", nil, &report)
	if w.Code != http.StatusOK {
		t.Fatalf("report status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := report["strategy_id"]; got != "tv-rsi" {
		t.Errorf("strategy_id = %v, want tv-rsi", got)
	}
	symbols, ok := report["symbols"].([]any)
	if !ok || len(symbols) != 1 {
		t.Fatalf("symbols = %v, want one entry", report["symbols"])
	}
}

func TestWebSocketFillFeed(t *testing.T) {
	env := newTestEnv(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.server.hub.Run(ctx)

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Hub registration is asynchronous; keep broadcasting until the
	// client sees an event.
	fill := domain.Fill{Symbol: "AAPL", Side: domain.SideBuy, Qty: 10, Price: 100}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				env.server.hub.BroadcastEvent("fill", fill)
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event Event
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("decoding event %q: %v", msg, err)
	}
	if event.Type != "fill" {
		t.Errorf("event type = %q, want fill", event.Type)
	}
}
