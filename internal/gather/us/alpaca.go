// Package us gathers US equity market data from the Alpaca data API.
package us

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"schicchi/internal/domain"
	"schicchi/internal/gather"
	"schicchi/internal/store"
	"schicchi/internal/util"
)

// Compile-time interface check.
var _ gather.Gatherer = (*IntradayBarGatherer)(nil)

// IntradayBarGatherer fetches intraday OHLCV bars for a fixed watchlist of
// US equities via the Alpaca market-data API and persists them to a
// BarStore. Symbols are fetched in multi-symbol batches by a bounded worker
// pool under a shared rate limiter.
type IntradayBarGatherer struct {
	client     *marketdata.Client
	store      store.BarStore
	symbols    []string
	barMinutes int
	batchSize  int
	maxWorkers int
	startDate  string
	feed       string
	limiter    *util.RateLimiter
	apiKey     string
	apiSecret  string
	baseURL    string // live trading API, for the calendar
	log        *slog.Logger
}

// IntradayBarGathererOpts configures an IntradayBarGatherer.
type IntradayBarGathererOpts struct {
	APIKey          string
	APISecret       string
	DataURL         string
	BaseURL         string
	Store           store.BarStore
	Symbols         []string
	BarMinutes      int
	BatchSize       int
	MaxWorkers      int
	RateLimitPerMin int
	StartDate       string
	Feed            string
}

// NewIntradayBarGatherer creates an IntradayBarGatherer from opts.
func NewIntradayBarGatherer(opts IntradayBarGathererOpts) *IntradayBarGatherer {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}

	barMinutes := opts.BarMinutes
	if barMinutes <= 0 {
		barMinutes = 5
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	rate := opts.RateLimitPerMin
	if rate <= 0 {
		rate = 200
	}
	feed := opts.Feed
	if feed == "" {
		feed = "sip"
	}

	return &IntradayBarGatherer{
		client:     marketdata.NewClient(clientOpts),
		store:      opts.Store,
		symbols:    opts.Symbols,
		barMinutes: barMinutes,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
		startDate:  opts.StartDate,
		feed:       feed,
		limiter:    util.NewRateLimiter(rate, maxWorkers),
		apiKey:     opts.APIKey,
		apiSecret:  opts.APISecret,
		baseURL:    opts.BaseURL,
		log:        slog.Default().With("gatherer", "us-intraday"),
	}
}

// Name returns the gatherer identifier.
func (g *IntradayBarGatherer) Name() string { return "us-intraday" }

// Run fetches intraday bars for the watchlist from the start date through
// the latest finished trading day and writes them to the store. Re-running
// merges with already-stored bars, so the process is idempotent.
func (g *IntradayBarGatherer) Run(ctx context.Context) error {
	if len(g.symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}
	start, err := time.Parse("2006-01-02", g.startDate)
	if err != nil {
		return fmt.Errorf("parsing start date %q: %w", g.startDate, err)
	}

	end, err := LatestFinishedTradingDay(g.apiKey, g.apiSecret, g.baseURL)
	if err != nil {
		return fmt.Errorf("determining end date: %w", err)
	}
	// Include the whole final session.
	end = end.Add(24 * time.Hour)

	batches := batchSymbols(g.symbols, g.batchSize)
	g.log.Info("starting us-intraday",
		"symbols", len(g.symbols),
		"batches", len(batches),
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
	)

	batchCh := make(chan []string)
	var (
		wg        sync.WaitGroup
		totalBars atomic.Int64
		failed    atomic.Int64
		runStart  = time.Now()
	)

	workers := g.maxWorkers
	if workers > len(batches) {
		workers = len(batches)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batchCh {
				if err := g.limiter.Wait(ctx); err != nil {
					return
				}
				var bars []domain.Bar
				err := util.Retry(ctx, 3, time.Second, func() error {
					var ferr error
					bars, ferr = g.fetchMultiBars(ctx, batch, start, end)
					return ferr
				})
				if err != nil {
					g.log.Error("batch fetch failed", "symbols", len(batch), "err", err)
					failed.Add(1)
					continue
				}
				if len(bars) == 0 {
					continue
				}
				if err := g.store.WriteBars(ctx, bars); err != nil {
					g.log.Error("writing bars failed", "err", err)
					failed.Add(1)
					continue
				}
				totalBars.Add(int64(len(bars)))
			}
		}()
	}

	for _, batch := range batches {
		select {
		case <-ctx.Done():
			close(batchCh)
			wg.Wait()
			return ctx.Err()
		case batchCh <- batch:
		}
	}
	close(batchCh)
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	g.log.Info("complete",
		"bars", totalBars.Load(),
		"failedBatches", failed.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	if f := failed.Load(); f > 0 {
		return fmt.Errorf("%d batches failed", f)
	}
	return nil
}

// fetchMultiBars fetches intraday bars for multiple symbols in a single API
// call.
func (g *IntradayBarGatherer) fetchMultiBars(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.NewTimeFrame(g.barMinutes, marketdata.Min),
		Start:     start,
		End:       end,
		Feed:      marketdata.Feed(g.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			// Alpaca includes pre- and post-market bars; keep the
			// regular session only.
			if !util.InRegularSession(ab.Timestamp) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}

// batchSymbols splits symbols into slices of at most size.
func batchSymbols(symbols []string, size int) [][]string {
	var batches [][]string
	for i := 0; i < len(symbols); i += size {
		end := i + size
		if end > len(symbols) {
			end = len(symbols)
		}
		batches = append(batches, symbols[i:end])
	}
	return batches
}
