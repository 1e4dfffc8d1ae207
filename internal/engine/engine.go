// Package engine coordinates a backtest request end to end: validation,
// price retrieval, simulation, run persistence and event publication.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"backtester/internal/domain"
	"backtester/internal/events"
	"backtester/internal/marketdata"
	"backtester/internal/store"
	"backtester/internal/strategy"
)

// Request describes one backtest. Field names match the HTTP body.
type Request struct {
	Symbol         string              `json:"symbol"`
	StartDate      string              `json:"start_date"`
	EndDate        string              `json:"end_date"`
	ShortWindow    int                 `json:"short_window"`
	LongWindow     int                 `json:"long_window"`
	StrategyType   domain.StrategyType `json:"strategy_type"`
	InitialCapital float64             `json:"initial_capital,omitempty"`
}

// Response is the backtest result plus the run identity.
type Response struct {
	RunID          string              `json:"run_id"`
	Symbol         string              `json:"symbol"`
	StrategyType   domain.StrategyType `json:"strategy_type"`
	InitialCapital float64             `json:"initial_capital"`
	domain.BacktestResult
}

// Defaults fills values a request leaves unset.
type Defaults struct {
	InitialCapital float64
	RSIPeriod      int
	RSILower       float64
	RSIUpper       float64
}

// Engine runs backtest requests. The run store and publisher are optional.
type Engine struct {
	source    marketdata.Source
	registry  *strategy.Registry
	validator *Validator
	runs      store.RunStore
	publisher events.Publisher
	defaults  Defaults

	newID func() string
	now   func() time.Time
	log   *slog.Logger
}

// NewEngine creates a new Engine wired with the given dependencies. runs
// and publisher may be nil.
func NewEngine(
	source marketdata.Source,
	registry *strategy.Registry,
	runs store.RunStore,
	publisher events.Publisher,
	defaults Defaults,
) *Engine {
	if defaults.InitialCapital <= 0 {
		defaults.InitialCapital = strategy.DefaultInitialCapital
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Engine{
		source:    source,
		registry:  registry,
		validator: NewValidator(registry),
		runs:      runs,
		publisher: publisher,
		defaults:  defaults,
		newID:     uuid.NewString,
		now:       time.Now,
		log:       slog.Default().With("component", "engine"),
	}
}

// Strategies lists the strategy types the engine accepts.
func (e *Engine) Strategies() []string {
	return e.registry.List()
}

// Run validates req, fetches prices, runs the backtest and records the run.
// Persistence and publication failures are logged and do not fail the call.
func (e *Engine) Run(ctx context.Context, req Request) (*Response, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if err := e.validator.Check(req); err != nil {
		return nil, err
	}
	capital := req.InitialCapital
	if capital == 0 {
		capital = e.defaults.InitialCapital
	}

	prices, err := e.source.DailyCloses(ctx, marketdata.Query{
		Symbol: req.Symbol,
		Start:  req.StartDate,
		End:    req.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching prices for %s: %w", req.Symbol, err)
	}

	params := strategy.Params{
		ShortWindow: req.ShortWindow,
		LongWindow:  req.LongWindow,
		RSIPeriod:   e.defaults.RSIPeriod,
		RSILower:    e.defaults.RSILower,
		RSIUpper:    e.defaults.RSIUpper,
	}
	result, err := strategy.BacktestType(e.registry, req.StrategyType, params, prices, capital)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		RunID:          e.newID(),
		Symbol:         req.Symbol,
		StrategyType:   req.StrategyType,
		InitialCapital: capital,
		BacktestResult: *result,
	}
	e.log.Info("backtest complete",
		"run_id", resp.RunID,
		"symbol", req.Symbol,
		"strategy", req.StrategyType,
		"points", len(prices),
		"trades", len(result.Trades),
		"final_value", result.FinalValue,
	)

	e.record(ctx, req, resp)
	return resp, nil
}

// record saves and publishes the run summary.
func (e *Engine) record(ctx context.Context, req Request, resp *Response) {
	run := domain.Run{
		ID:                   resp.RunID,
		Symbol:               req.Symbol,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		Strategy:             req.StrategyType,
		ShortWindow:          req.ShortWindow,
		LongWindow:           req.LongWindow,
		InitialCapital:       resp.InitialCapital,
		FinalValue:           resp.FinalValue,
		TotalReturn:          resp.TotalReturn,
		AnnualizedReturn:     resp.AnnualizedReturn,
		AnnualizedVolatility: resp.AnnualizedVolatility,
		SharpeRatio:          resp.SharpeRatio,
		MaxDrawdown:          resp.MaxDrawdown,
		TradeCount:           len(resp.Trades),
		CreatedAt:            e.now().UTC(),
	}

	if e.runs != nil {
		if err := e.runs.SaveRun(ctx, &run); err != nil {
			e.log.Error("failed to save run", "run_id", run.ID, "error", err)
		}
	}
	if err := e.publisher.PublishRun(ctx, run); err != nil {
		e.log.Warn("failed to publish run", "run_id", run.ID, "error", err)
	}
}

// GetRun returns a stored run summary.
func (e *Engine) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	if e.runs == nil {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return e.runs.GetRun(ctx, id)
}

// ListRuns returns the most recent run summaries, newest first.
func (e *Engine) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if e.runs == nil {
		return []domain.Run{}, nil
	}
	return e.runs.ListRuns(ctx, limit)
}
