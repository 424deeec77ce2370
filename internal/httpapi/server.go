// Package httpapi exposes the platform over HTTP: strategy enumeration,
// backtest and grid-search runs, the forward-test report, and a WebSocket
// feed of live fills.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"schicchi/internal/broker"
	"schicchi/internal/config"
	"schicchi/internal/engine"
	"schicchi/internal/store"
	"schicchi/internal/strategy"
)

// Server serves the REST API and the WebSocket fill feed.
type Server struct {
	cfg        *config.Config
	registry   *strategy.Registry
	bars       store.BarStore
	signals    store.SignalStore
	strategies store.StrategyStore

	// engine and brk are nil when the server runs in backtest-only mode;
	// forward endpoints return 503 in that case.
	engine *engine.Engine
	brk    broker.Broker

	hub *Hub
	log *slog.Logger
}

// Opts configures a Server. Registry, Bars, Signals, and Log are required;
// Engine and Broker enable the forward-test endpoints.
type Opts struct {
	Config     *config.Config
	Registry   *strategy.Registry
	Bars       store.BarStore
	Signals    store.SignalStore
	Strategies store.StrategyStore
	Engine     *engine.Engine
	Broker     broker.Broker
	Log        *slog.Logger
}

// NewServer creates a Server. It does not start listening; call
// ListenAndServe or mount Handler on an existing server.
func NewServer(opts Opts) *Server {
	return &Server{
		cfg:        opts.Config,
		registry:   opts.Registry,
		bars:       opts.Bars,
		signals:    opts.Signals,
		strategies: opts.Strategies,
		engine:     opts.Engine,
		brk:        opts.Broker,
		hub:        NewHub(opts.Log),
		log:        opts.Log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/strategies", s.handleStrategies)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/bars/{symbol}", s.handleBars)
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	mux.HandleFunc("POST /api/optimize", s.handleOptimize)
	mux.HandleFunc("GET /api/report/{strategy}", s.handleReport)
	mux.HandleFunc("GET /api/roundtrips/{symbol}", s.handleRoundTrips)
	mux.HandleFunc("GET /api/forward-strategies", s.handleListForwardStrategies)
	mux.HandleFunc("PUT /api/forward-strategies/{id}", s.handlePutForwardStrategy)
	mux.HandleFunc("GET /api/positions", s.handlePositions)
	mux.HandleFunc("GET /api/signals/{strategy}", s.handleSignals)
	mux.HandleFunc("POST /api/signals", s.handlePostSignal)
	mux.HandleFunc("POST /api/sync", s.handleSync)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// ListenAndServe runs the HTTP server and the WebSocket hub until the
// context is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	go s.hub.Run(hubCtx)
	if s.engine != nil {
		go s.pumpFills(hubCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// pumpFills forwards engine fill events to the WebSocket hub.
func (s *Server) pumpFills(ctx context.Context) {
	id, ch := s.engine.Subscribe()
	defer s.engine.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-ch:
			if !ok {
				return
			}
			s.hub.BroadcastEvent("fill", f)
		}
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseTime accepts RFC 3339 or a bare date.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
