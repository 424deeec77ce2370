// Package schicchi provides a Go SDK for the schicchi-server HTTP API.
package schicchi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the schicchi-server REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an API client for the given base URL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Strategies lists registered strategy names.
func (c *Client) Strategies(ctx context.Context) ([]string, error) {
	var resp strategiesResponse
	if err := c.get(ctx, "/api/strategies", &resp); err != nil {
		return nil, err
	}
	return resp.Strategies, nil
}

// Symbols lists symbols with stored bars.
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	var resp symbolsResponse
	if err := c.get(ctx, "/api/symbols", &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// Bars retrieves stored bars for a symbol within [start, end].
func (c *Client) Bars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	q := url.Values{}
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))
	var bars []Bar
	path := "/api/bars/" + url.PathEscape(strings.ToUpper(symbol)) + "?" + q.Encode()
	if err := c.get(ctx, path, &bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// Backtest runs a single simulation on the server.
func (c *Client) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	var resp BacktestResponse
	if err := c.post(ctx, "/api/backtest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Optimize runs a grid-search sweep on the server.
func (c *Client) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResponse, error) {
	var resp OptimizeResponse
	if err := c.post(ctx, "/api/optimize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Report retrieves the forward-test report for a strategy.
func (c *Client) Report(ctx context.Context, strategyID string) (*Report, error) {
	var resp Report
	if err := c.get(ctx, "/api/report/"+url.PathEscape(strategyID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RoundTrips retrieves the reconciled round trips and open position for a
// symbol.
func (c *Client) RoundTrips(ctx context.Context, symbol string) (*RoundTripsResponse, error) {
	var resp RoundTripsResponse
	if err := c.get(ctx, "/api/roundtrips/"+url.PathEscape(strings.ToUpper(symbol)), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ForwardStrategies lists registered forward-test strategies.
func (c *Client) ForwardStrategies(ctx context.Context) ([]StrategyRecord, error) {
	var resp []StrategyRecord
	if err := c.get(ctx, "/api/forward-strategies", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RegisterForwardStrategy creates or updates a forward-test strategy record.
func (c *Client) RegisterForwardStrategy(ctx context.Context, rec StrategyRecord) (*StrategyRecord, error) {
	var out StrategyRecord
	if err := c.put(ctx, "/api/forward-strategies/"+url.PathEscape(rec.ID), rec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Positions retrieves open broker positions.
func (c *Client) Positions(ctx context.Context) ([]BrokerPosition, error) {
	var resp []BrokerPosition
	if err := c.get(ctx, "/api/positions", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// PostSignal records a strategy signal; with Execute set it also submits
// the matching order and returns it.
func (c *Client) PostSignal(ctx context.Context, req SignalRequest) (*Order, error) {
	if !req.Execute {
		return nil, c.post(ctx, "/api/signals", req, nil)
	}
	var order Order
	if err := c.post(ctx, "/api/signals", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Sync asks the server to pull closed orders from the broker.
func (c *Client) Sync(ctx context.Context, since time.Time) (int, error) {
	path := "/api/sync?since=" + url.QueryEscape(since.Format(time.RFC3339))
	var resp syncResponse
	if err := c.post(ctx, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.NewFills, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", req.Method, req.URL.Path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
