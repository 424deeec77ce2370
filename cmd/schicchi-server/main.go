package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"schicchi/internal/broker"
	"schicchi/internal/config"
	"schicchi/internal/engine"
	"schicchi/internal/httpapi"
	"schicchi/internal/store"
	"schicchi/internal/strategy"
	"schicchi/internal/strategy/builtins"
	"schicchi/internal/util"
)

func main() {
	maxPositionPct := flag.Float64("max-position-pct", 0.25, "max fraction of equity per order, 0 disables")
	maxDailyLossPct := flag.Float64("max-daily-loss-pct", 0.05, "daily loss fraction that halts new orders, 0 disables")
	sessionOnly := flag.Bool("session-only", true, "reject signal orders outside the 09:30-16:00 ET session")
	flag.Parse()

	cfgPath := "config/schicchi.yaml"
	if p := os.Getenv("SCHICCHI_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open sqlite store: %v", err)
	}
	defer db.Close()

	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := httpapi.Opts{
		Config:     cfg,
		Registry:   registry,
		Bars:       bars,
		Signals:    db,
		Strategies: db,
		Log:        logger,
	}

	// Forward-test wiring is optional: without broker credentials the
	// server still serves backtests over stored bars.
	if cfg.Alpaca.APIKey != "" {
		brk := broker.NewAlpacaBroker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
		eng := engine.New(engine.Opts{
			Broker:           brk,
			Fills:            db,
			Signals:          db,
			Orders:           db,
			Strategies:       db,
			Risk:             engine.NewRiskManager(*maxPositionPct, *maxDailyLossPct),
			NotionalPerTrade: cfg.Forward.NotionalPerTrade,
			SessionOnly:      *sessionOnly,
		})
		if err := eng.Prime(ctx); err != nil {
			log.Fatalf("failed to prime engine: %v", err)
		}
		go func() {
			if err := eng.RunTradeStream(ctx); err != nil && ctx.Err() == nil {
				slog.Error("trade stream stopped", "error", err)
			}
		}()
		opts.Broker = brk
		opts.Engine = eng
		slog.Info("forward engine enabled", "broker", brk.Name(), "paper", cfg.Forward.PaperMode)
	} else {
		slog.Info("no broker credentials, serving backtests only")
	}

	srv := httpapi.NewServer(opts)
	if err := srv.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("server error: %v", err)
	}
}
