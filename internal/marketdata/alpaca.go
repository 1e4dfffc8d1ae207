package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"backtester/internal/domain"
	"backtester/internal/util"
)

// Compile-time interface checks.
var (
	_ Source    = (*AlpacaSource)(nil)
	_ BarSource = (*AlpacaSource)(nil)
)

// barsClient is the subset of *marketdata.Client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaOptions configures an AlpacaSource.
type AlpacaOptions struct {
	APIKey            string
	APISecret         string
	DataURL           string // empty uses the client default
	Feed              string // "iex" or "sip"
	RequestsPerMinute int
	MaxRetries        int
	RetryInterval     time.Duration // initial backoff interval
}

// AlpacaSource fetches unadjusted daily bars from the Alpaca market-data API.
// Requests share one rate limiter and are retried with exponential backoff.
type AlpacaSource struct {
	client     barsClient
	feed       string
	limiter    *rate.Limiter
	maxRetries int
	retryEvery time.Duration
	log        *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource with the given credentials.
func NewAlpacaSource(opts AlpacaOptions) *AlpacaSource {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}
	return newAlpacaSource(marketdata.NewClient(clientOpts), opts)
}

func newAlpacaSource(client barsClient, opts AlpacaOptions) *AlpacaSource {
	if opts.Feed == "" {
		opts.Feed = "iex"
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 200
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}

	return &AlpacaSource{
		client:     client,
		feed:       opts.Feed,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1),
		maxRetries: opts.MaxRetries,
		retryEvery: opts.RetryInterval,
		log:        slog.Default().With("source", "alpaca"),
	}
}

// DailyCloses fetches bars for the query and converts them to closes.
func (s *AlpacaSource) DailyCloses(ctx context.Context, q Query) (domain.PriceSeries, error) {
	q = q.Normalize()
	start, end, err := q.Range()
	if err != nil {
		return nil, err
	}
	bars, err := s.DailyBars(ctx, q.Symbol, start, end)
	if err != nil {
		return nil, err
	}
	return seriesFromBars(q.Symbol, bars)
}

// DailyBars fetches daily bars for symbol over the calendar days [start, end].
func (s *AlpacaSource) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	req := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.Raw,
		Start:      start,
		End:        util.EndOfDay(end),
		Feed:       marketdata.Feed(s.feed),
	}

	var raw []marketdata.Bar
	attempt := 0
	operation := func() error {
		attempt++
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		raw, err = s.client.GetBars(symbol, req)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if isClientError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryEvery
	policy.MaxElapsedTime = 0 // bounded by maxRetries and ctx

	notify := func(err error, wait time.Duration) {
		s.log.Warn("GetBars failed, retrying",
			"symbol", symbol,
			"attempt", attempt,
			"wait", wait.Round(time.Millisecond),
			"error", err,
		)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.maxRetries)), ctx),
		notify)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("fetching %s bars: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
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
	s.log.Debug("fetched bars", "symbol", symbol, "bars", len(bars),
		"start", start.Format(domain.DateLayout), "end", end.Format(domain.DateLayout))
	return bars, nil
}

// isClientError reports whether err is a 4xx API response other than 429.
// Repeating such a request gives the same answer.
func isClientError(err error) bool {
	var apiErr *alpaca.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
		apiErr.StatusCode != http.StatusTooManyRequests
}
