package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"schicchi/internal/config"
	"schicchi/internal/gather/us"
	"schicchi/internal/store"
	"schicchi/internal/util"
)

func main() {
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols to backfill (required)")
	startDate := flag.String("start", "", "backfill start date (YYYY-MM-DD), overrides config")
	flag.Parse()

	if *symbolsFlag == "" {
		flag.Usage()
		os.Exit(1)
	}
	var symbols []string
	for _, s := range strings.Split(*symbolsFlag, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, strings.ToUpper(s))
		}
	}

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

	start := cfg.Gather.StartDate
	if *startDate != "" {
		start = *startDate
	}

	gatherer := us.NewIntradayBarGatherer(us.IntradayBarGathererOpts{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		BaseURL:         cfg.Alpaca.BaseURL,
		Store:           store.NewParquetStore(cfg.Storage.DataDir),
		Symbols:         symbols,
		BarMinutes:      cfg.Gather.BarMinutes,
		BatchSize:       cfg.Gather.BatchSize,
		MaxWorkers:      cfg.Gather.MaxWorkers,
		RateLimitPerMin: cfg.Gather.RateLimitPerMin,
		StartDate:       start,
		Feed:            cfg.Alpaca.Feed,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting bar backfill", "symbols", len(symbols), "start", start)
	if err := gatherer.Run(ctx); err != nil {
		log.Fatalf("gather error: %v", err)
	}
}
