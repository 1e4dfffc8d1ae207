package marketdata

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"backtester/internal/domain"
)

// PrefetchResult summarises a Prefetch run.
type PrefetchResult struct {
	Loaded []string // symbols with at least one close in range
	Empty  []string // symbols with no data in range
	Failed map[string]error
}

// Prefetch warms src for every symbol over [start, end] using up to workers
// concurrent requests. Per-symbol failures are collected, not returned; the
// error is non-nil only when ctx ends first.
func Prefetch(ctx context.Context, src Source, symbols []string, start, end string, workers int) (PrefetchResult, error) {
	res := PrefetchResult{Failed: make(map[string]error)}
	if len(symbols) == 0 {
		return res, nil
	}
	workers = max(1, min(workers, len(symbols)))

	symCh := make(chan string, len(symbols))
	for _, s := range symbols {
		symCh <- s
	}
	close(symCh)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		done     atomic.Int64
		runStart = time.Now()
		log      = slog.Default().With("component", "prefetch")
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range symCh {
				if ctx.Err() != nil {
					return
				}

				q := Query{Symbol: sym, Start: start, End: end}.Normalize()
				series, err := src.DailyCloses(ctx, q)

				mu.Lock()
				switch {
				case err == nil:
					res.Loaded = append(res.Loaded, q.Symbol)
				case errors.Is(err, domain.ErrDataUnavailable):
					res.Empty = append(res.Empty, q.Symbol)
				default:
					res.Failed[q.Symbol] = err
				}
				mu.Unlock()

				n := done.Add(1)
				log.Info("symbol done",
					"symbol", q.Symbol,
					"closes", len(series),
					"progress", n,
					"total", len(symbols),
					"elapsed", time.Since(runStart).Round(time.Millisecond),
					"error", err,
				)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}
