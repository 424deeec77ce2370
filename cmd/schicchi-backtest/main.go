package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"schicchi/internal/backtest"
	"schicchi/internal/config"
	"schicchi/internal/domain"
	"schicchi/internal/store"
	"schicchi/internal/strategy"
	"schicchi/internal/strategy/builtins"
	"schicchi/internal/util"
)

func main() {
	symbol := flag.String("symbol", "", "symbol to backtest (required)")
	stratName := flag.String("strategy", "", "strategy name (required, see -list)")
	list := flag.Bool("list", false, "list registered strategies and exit")
	params := flag.String("params", "", "strategy parameters, e.g. rsi_period=5,oversold=30")
	grid := flag.String("grid", "", "optimizer grid, e.g. rsi_period=5|10,oversold=30|40; runs a sweep instead of a single backtest")
	start := flag.String("start", "", "window start (YYYY-MM-DD), default 30 days ago")
	end := flag.String("end", "", "window end (YYYY-MM-DD), default now")
	capital := flag.Float64("capital", 0, "initial capital, 0 uses config")
	fraction := flag.Float64("fraction", 0, "position size fraction, 0 uses config")
	flag.Parse()

	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)

	if *list {
		for _, name := range registry.List() {
			fmt.Println(name)
		}
		return
	}
	if *symbol == "" || *stratName == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfgPath := "config/schicchi.yaml"
	if p := os.Getenv("SCHICCHI_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger("warn", cfg.Logging.Format))

	btCfg := backtest.Config{
		InitialCapital:       cfg.Backtest.InitialCapital,
		PositionSizeFraction: cfg.Backtest.PositionSizeFraction,
		PeriodsPerYear:       cfg.Backtest.PeriodsPerYear,
	}
	if *capital > 0 {
		btCfg.InitialCapital = *capital
	}
	if *fraction > 0 {
		btCfg.PositionSizeFraction = *fraction
	}

	bars, err := loadBars(cfg.Storage.DataDir, *symbol, *start, *end)
	if err != nil {
		log.Fatalf("failed to load bars: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("no stored bars for %s in window", strings.ToUpper(*symbol))
	}

	var out any
	if *grid != "" {
		g, err := parseGrid(*grid)
		if err != nil {
			log.Fatalf("invalid grid: %v", err)
		}
		factory, ok := registry.Get(*stratName)
		if !ok {
			log.Fatalf("unknown strategy %q", *stratName)
		}
		result, err := backtest.Optimize(context.Background(), backtest.OptimizeConfig{
			Backtest:   btCfg,
			MinWinRate: cfg.Backtest.MinWinRate,
			Workers:    cfg.Backtest.OptimizerWorkers,
		}, factory, bars, g)
		if err != nil {
			log.Fatalf("optimize failed: %v", err)
		}
		out = result
	} else {
		p, err := parseParams(*params)
		if err != nil {
			log.Fatalf("invalid params: %v", err)
		}
		strat, err := registry.New(*stratName, p)
		if err != nil {
			log.Fatalf("failed to build strategy: %v", err)
		}
		result, err := backtest.Run(btCfg, strat, bars)
		if err != nil {
			log.Fatalf("backtest failed: %v", err)
		}
		out = result
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("failed to encode result: %v", err)
	}
}

func loadBars(dataDir, symbol, start, end string) ([]domain.Bar, error) {
	endT := time.Now().UTC()
	startT := endT.AddDate(0, 0, -30)
	var err error
	if start != "" {
		if startT, err = time.Parse("2006-01-02", start); err != nil {
			return nil, err
		}
	}
	if end != "" {
		if endT, err = time.Parse("2006-01-02", end); err != nil {
			return nil, err
		}
	}
	pstore := store.NewParquetStore(dataDir)
	return pstore.ReadBars(context.Background(), strings.ToUpper(symbol), startT, endT)
}

// parseParams parses "key=value,key=value" into strategy parameters.
func parseParams(s string) (strategy.Params, error) {
	p := strategy.Params{}
	if s == "" {
		return p, nil
	}
	for _, pair := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", pair, err)
		}
		p[strings.TrimSpace(key)] = v
	}
	return p, nil
}

// parseGrid parses "key=v1|v2,key=v3|v4" into an optimizer grid.
func parseGrid(s string) (backtest.Grid, error) {
	g := backtest.Grid{}
	for _, pair := range strings.Split(s, ",") {
		key, vals, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=v1|v2, got %q", pair)
		}
		key = strings.TrimSpace(key)
		for _, val := range strings.Split(vals, "|") {
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing %q: %w", pair, err)
			}
			g[key] = append(g[key], v)
		}
	}
	return g, nil
}
