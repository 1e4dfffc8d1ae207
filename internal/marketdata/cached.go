package marketdata

import (
	"context"
	"log/slog"
	"time"

	"backtester/internal/domain"
	"backtester/internal/store"
)

// Compile-time interface check.
var _ Source = (*CachedSource)(nil)

// CachedSource is a read-through cache of daily bars. Ranges that lie
// entirely in the past are remembered once fetched and later served from the
// BarStore; ranges reaching today or later always go upstream.
type CachedSource struct {
	upstream BarSource
	store    store.BarStore
	now      func() time.Time
	log      *slog.Logger
}

// NewCachedSource wraps upstream with a cache kept in bs.
func NewCachedSource(upstream BarSource, bs store.BarStore) *CachedSource {
	return &CachedSource{
		upstream: upstream,
		store:    bs,
		now:      time.Now,
		log:      slog.Default().With("source", "cache"),
	}
}

// DailyCloses serves the query from the cache when possible.
func (c *CachedSource) DailyCloses(ctx context.Context, q Query) (domain.PriceSeries, error) {
	q = q.Normalize()
	start, end, err := q.Range()
	if err != nil {
		return nil, err
	}
	rangeEnd := end.AddDate(0, 0, 1).Add(-time.Nanosecond)

	covered, err := c.store.Covers(ctx, q.Symbol, start, end)
	if err != nil {
		c.log.Warn("cache coverage lookup failed", "symbol", q.Symbol, "error", err)
	}
	if covered {
		bars, err := c.store.ReadBars(ctx, q.Symbol, start, rangeEnd)
		if err == nil {
			c.log.Debug("cache hit", "symbol", q.Symbol, "bars", len(bars))
			return seriesFromBars(q.Symbol, bars)
		}
		c.log.Warn("cache read failed, fetching upstream", "symbol", q.Symbol, "error", err)
	}

	bars, err := c.upstream.DailyBars(ctx, q.Symbol, start, end)
	if err != nil {
		return nil, err
	}

	if err := c.store.WriteBars(ctx, bars); err != nil {
		c.log.Warn("cache write failed", "symbol", q.Symbol, "error", err)
	} else if c.settled(end) {
		if err := c.store.MarkCovered(ctx, q.Symbol, start, end); err != nil {
			c.log.Warn("cache coverage update failed", "symbol", q.Symbol, "error", err)
		}
	}

	return seriesFromBars(q.Symbol, bars)
}

// settled reports whether end is before the current UTC day, so its bars
// will not change.
func (c *CachedSource) settled(end time.Time) bool {
	y, m, d := c.now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return end.Before(today)
}

// Symbols lists the symbols that have bars in the cache.
func (c *CachedSource) Symbols(ctx context.Context) ([]string, error) {
	return c.store.ListSymbols(ctx)
}
