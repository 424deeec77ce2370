package us

import "testing"

func TestBatchSymbols(t *testing.T) {
	symbols := []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA"}

	batches := batchSymbols(symbols, 2)
	if len(batches) != 3 {
		t.Fatalf("len(batches) = %d, want 3", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[2]) != 1 {
		t.Errorf("batch sizes = %d,%d,%d, want 2,2,1",
			len(batches[0]), len(batches[1]), len(batches[2]))
	}

	if got := batchSymbols(nil, 10); got != nil {
		t.Errorf("batchSymbols(nil) = %v, want nil", got)
	}
	if got := batchSymbols(symbols, 10); len(got) != 1 || len(got[0]) != 5 {
		t.Errorf("batchSymbols(oversized) = %v, want one batch of 5", got)
	}
}

func TestNewIntradayBarGathererDefaults(t *testing.T) {
	g := NewIntradayBarGatherer(IntradayBarGathererOpts{
		Symbols: []string{"AAPL"},
	})
	if g.Name() != "us-intraday" {
		t.Errorf("Name() = %q, want us-intraday", g.Name())
	}
	if g.barMinutes != 5 || g.batchSize != 100 || g.maxWorkers != 4 {
		t.Errorf("defaults = %d/%d/%d, want 5/100/4",
			g.barMinutes, g.batchSize, g.maxWorkers)
	}
	if g.feed != "sip" {
		t.Errorf("feed = %q, want sip", g.feed)
	}
}
