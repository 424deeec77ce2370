package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"schicchi/internal/backtest"
	"schicchi/internal/domain"
)

const defaultSignalLimit = 50

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StrategiesResponse{Strategies: s.registry.List()})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.bars.ListSymbols(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing symbols")
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, SymbolsResponse{Symbols: symbols})
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	start, end, err := parseRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bars, err := s.bars.ReadBars(r.Context(), symbol, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading bars")
		return
	}
	if bars == nil {
		bars = []domain.Bar{}
	}
	writeJSON(w, bars)
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	strat, err := s.registry.New(req.Strategy, req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bars, err := s.loadBars(r, req.Symbol, req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := s.backtestConfig(req.InitialCapital, req.PositionSizeFraction)
	result, err := backtest.Run(cfg, strat, bars)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNoData) || errors.Is(err, domain.ErrBadParameter) || errors.Is(err, domain.ErrUnordered) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, BacktestResponse{
		Symbol:   strings.ToUpper(req.Symbol),
		Strategy: req.Strategy,
		Params:   req.Params,
		Bars:     len(bars),
		Result:   result,
	})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	factory, ok := s.registry.Get(req.Strategy)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown strategy "+req.Strategy)
		return
	}

	bars, err := s.loadBars(r, req.Symbol, req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	minWinRate := req.MinWinRate
	if minWinRate == 0 {
		minWinRate = s.cfg.Backtest.MinWinRate
	}
	workers := req.Workers
	if workers == 0 {
		workers = s.cfg.Backtest.OptimizerWorkers
	}
	cfg := backtest.OptimizeConfig{
		Backtest:   s.backtestConfig(req.InitialCapital, req.PositionSizeFraction),
		MinWinRate: minWinRate,
		Workers:    workers,
	}

	result, err := backtest.Optimize(r.Context(), cfg, factory, bars, req.Grid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, OptimizeResponse{
		Symbol:       strings.ToUpper(req.Symbol),
		Strategy:     req.Strategy,
		Combinations: len(req.Grid.Combinations()),
		Bars:         len(bars),
		Result:       result,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "forward engine not configured")
		return
	}
	report, err := s.engine.Report(r.Context(), r.PathValue("strategy"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleRoundTrips(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "forward engine not configured")
		return
	}
	symbol := strings.ToUpper(r.PathValue("symbol"))
	result, err := s.engine.SymbolRoundTrips(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleListForwardStrategies(w http.ResponseWriter, r *http.Request) {
	if s.strategies == nil {
		writeError(w, http.StatusServiceUnavailable, "strategy store not configured")
		return
	}
	recs, err := s.strategies.ListStrategies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []domain.StrategyRecord{}
	}
	writeJSON(w, recs)
}

func (s *Server) handlePutForwardStrategy(w http.ResponseWriter, r *http.Request) {
	if s.strategies == nil {
		writeError(w, http.StatusServiceUnavailable, "strategy store not configured")
		return
	}
	var rec domain.StrategyRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec.ID = r.PathValue("id")
	if rec.Name == "" {
		rec.Name = rec.ID
	}
	if err := s.strategies.UpsertStrategy(r.Context(), &rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, rec)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if s.brk == nil {
		writeError(w, http.StatusServiceUnavailable, "broker not configured")
		return
	}
	positions, err := s.brk.Positions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if positions == nil {
		positions = []domain.BrokerPosition{}
	}
	writeJSON(w, positions)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	limit := defaultSignalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	signals, err := s.signals.RecentSignals(r.Context(), r.PathValue("strategy"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if signals == nil {
		signals = []domain.Signal{}
	}
	writeJSON(w, signals)
}

func (s *Server) handlePostSignal(w http.ResponseWriter, r *http.Request) {
	var req SignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Symbol == "" || req.StrategyID == "" {
		writeError(w, http.StatusBadRequest, "symbol and strategy_id required")
		return
	}

	var side domain.Side
	switch strings.ToUpper(req.Side) {
	case string(domain.SideBuy):
		side = domain.SideBuy
	case string(domain.SideSell):
		side = domain.SideSell
	default:
		writeError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}

	signalTime := time.Now().UTC()
	if req.Time != "" {
		t, err := parseTime(req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid time "+req.Time)
			return
		}
		signalTime = t
	}

	sig := &domain.Signal{
		TradeID:     req.TradeID,
		StrategyID:  req.StrategyID,
		Symbol:      strings.ToUpper(req.Symbol),
		Side:        side,
		Event:       req.Event,
		SignalTime:  signalTime,
		SignalPrice: req.Price,
	}

	if req.Execute {
		if s.engine == nil {
			writeError(w, http.StatusServiceUnavailable, "forward engine not configured")
			return
		}
		order, err := s.engine.SubmitSignalOrder(r.Context(), sig)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSONStatus(w, http.StatusCreated, order)
		return
	}

	if err := s.signals.SaveSignal(r.Context(), sig); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONStatus(w, http.StatusCreated, sig)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "forward engine not configured")
		return
	}
	since := time.Now().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since "+v)
			return
		}
		since = t
	}
	n, err := s.engine.SyncFills(r.Context(), since)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, SyncResponse{NewFills: n})
}

// loadBars resolves the requested window against the bar store.
func (s *Server) loadBars(r *http.Request, symbol, start, end string) ([]domain.Bar, error) {
	startT, endT, err := parseRange(start, end)
	if err != nil {
		return nil, err
	}
	return s.bars.ReadBars(r.Context(), strings.ToUpper(symbol), startT, endT)
}

// parseRange defaults to the trailing 30 days when both bounds are empty.
func parseRange(start, end string) (time.Time, time.Time, error) {
	endT := time.Now().UTC()
	startT := endT.AddDate(0, 0, -30)
	if start != "" {
		t, err := parseTime(start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		startT = t
	}
	if end != "" {
		t, err := parseTime(end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		endT = t
	}
	return startT, endT, nil
}

// backtestConfig merges request overrides over the server configuration.
func (s *Server) backtestConfig(capital, fraction float64) backtest.Config {
	cfg := backtest.Config{
		InitialCapital:       s.cfg.Backtest.InitialCapital,
		PositionSizeFraction: s.cfg.Backtest.PositionSizeFraction,
		PeriodsPerYear:       s.cfg.Backtest.PeriodsPerYear,
	}
	if capital > 0 {
		cfg.InitialCapital = capital
	}
	if fraction > 0 {
		cfg.PositionSizeFraction = fraction
	}
	return cfg
}
