package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schicchi/internal/broker"
	"schicchi/internal/config"
	"schicchi/internal/engine"
	"schicchi/internal/store"
	"schicchi/internal/util"
)

func main() {
	since := flag.Duration("since", 24*time.Hour, "how far back to pull closed orders")
	report := flag.String("report", "", "print the forward-test report for this strategy ID after syncing")
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

	if cfg.Alpaca.APIKey == "" {
		log.Fatal("alpaca credentials required (APCA_API_KEY_ID / APCA_API_SECRET_KEY)")
	}

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open sqlite store: %v", err)
	}
	defer db.Close()

	brk := broker.NewAlpacaBroker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
	eng := engine.New(engine.Opts{
		Broker:           brk,
		Fills:            db,
		Signals:          db,
		Orders:           db,
		Strategies:       db,
		NotionalPerTrade: cfg.Forward.NotionalPerTrade,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := eng.Prime(ctx); err != nil {
		log.Fatalf("failed to prime engine: %v", err)
	}

	n, err := eng.SyncFills(ctx, time.Now().Add(-*since))
	if err != nil {
		log.Fatalf("sync failed: %v", err)
	}
	logger.Info("fill sync complete", "newFills", n, "since", since.String())

	if *report != "" {
		rep, err := eng.Report(ctx, *report)
		if err != nil {
			log.Fatalf("report failed: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatalf("failed to encode report: %v", err)
		}
	}
}
