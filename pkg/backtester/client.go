// Package backtester is a Go client for the backtester HTTP API.
package backtester

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Request describes one backtest.
type Request struct {
	Symbol         string  `json:"symbol"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	ShortWindow    int     `json:"short_window"`
	LongWindow     int     `json:"long_window"`
	StrategyType   string  `json:"strategy_type"`
	InitialCapital float64 `json:"initial_capital,omitempty"`
}

// Trade is one position change in a backtest.
type Trade struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
	Side  string  `json:"side"`
}

// Response is the result of a backtest.
type Response struct {
	RunID                string    `json:"run_id"`
	Symbol               string    `json:"symbol"`
	StrategyType         string    `json:"strategy_type"`
	InitialCapital       float64   `json:"initial_capital"`
	FinalValue           float64   `json:"final_value"`
	TotalReturn          float64   `json:"total_return"`
	AnnualizedReturn     float64   `json:"annualized_return"`
	AnnualizedVolatility float64   `json:"annualized_volatility"`
	SharpeRatio          float64   `json:"sharpe_ratio"`
	MaxDrawdown          float64   `json:"max_drawdown"`
	Trades               []Trade   `json:"trades"`
	EquityCurve          []float64 `json:"equity_curve"`
	Dates                []string  `json:"dates"`
}

// Run is a stored backtest summary.
type Run struct {
	ID                   string    `json:"id"`
	Symbol               string    `json:"symbol"`
	StartDate            string    `json:"start_date"`
	EndDate              string    `json:"end_date"`
	StrategyType         string    `json:"strategy_type"`
	ShortWindow          int       `json:"short_window"`
	LongWindow           int       `json:"long_window"`
	InitialCapital       float64   `json:"initial_capital"`
	FinalValue           float64   `json:"final_value"`
	TotalReturn          float64   `json:"total_return"`
	AnnualizedReturn     float64   `json:"annualized_return"`
	AnnualizedVolatility float64   `json:"annualized_volatility"`
	SharpeRatio          float64   `json:"sharpe_ratio"`
	MaxDrawdown          float64   `json:"max_drawdown"`
	TradeCount           int       `json:"trade_count"`
	CreatedAt            time.Time `json:"created_at"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backtester API: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Detail)
}

// Client provides a Go SDK for interacting with the backtester-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new backtester API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Run submits a backtest and waits for its result.
func (c *Client) Run(ctx context.Context, req Request) (*Response, error) {
	var resp Response
	if err := c.do(ctx, http.MethodPost, "/backtest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Strategies lists the strategy types the server accepts.
func (c *Client) Strategies(ctx context.Context) ([]string, error) {
	var body struct {
		Strategies []string `json:"strategies"`
	}
	if err := c.do(ctx, http.MethodGet, "/strategies", nil, &body); err != nil {
		return nil, err
	}
	return body.Strategies, nil
}

// Runs returns up to limit stored runs, newest first. A non-positive limit
// uses the server default.
func (c *Client) Runs(ctx context.Context, limit int) ([]Run, error) {
	path := "/runs"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var body struct {
		Runs []Run `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Runs, nil
}

// GetRun returns one stored run.
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodGet, "/runs/"+url.PathEscape(id), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Detail string `json:"detail"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &e) != nil || e.Detail == "" {
			e.Detail = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: e.Detail}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
