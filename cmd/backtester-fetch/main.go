package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"backtester/internal/config"
	"backtester/internal/marketdata"
	"backtester/internal/store"
	"backtester/internal/util"
)

func main() {
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols to fetch")
	cached := flag.Bool("cached", false, "also refresh every symbol already in the cache")
	start := flag.String("start", "", "start date YYYY-MM-DD (required)")
	end := flag.String("end", time.Now().AddDate(0, 0, -1).Format("2006-01-02"), "end date YYYY-MM-DD")
	workers := flag.Int("workers", 4, "concurrent symbol fetches")
	logPath := flag.String("log-file", "", "also write logs to this file")
	flag.Parse()

	symbols := splitSymbols(*symbolsFlag)
	if (len(symbols) == 0 && !*cached) || *start == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfgPath := "config/backtester.yaml"
	if p := os.Getenv("BACKTESTER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Storage.DataDir == "" {
		log.Fatal("storage.data_dir must be set to prefetch bars")
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("alpaca credentials missing: set APCA_API_KEY_ID and APCA_API_SECRET_KEY")
	}

	// Dual logger: stderr plus an optional file.
	var w io.Writer = os.Stderr
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			log.Fatalf("failed to create log file: %v", err)
		}
		defer f.Close()
		w = io.MultiWriter(os.Stderr, f)
	}
	util.SetDefault(util.NewLoggerTo(w, cfg.Logging.Level, cfg.Logging.Format))

	alpaca := marketdata.NewAlpacaSource(marketdata.AlpacaOptions{
		APIKey:            cfg.Alpaca.APIKey,
		APISecret:         cfg.Alpaca.APISecret,
		DataURL:           cfg.Alpaca.DataURL,
		Feed:              cfg.Alpaca.Feed,
		RequestsPerMinute: cfg.Alpaca.RateLimitPerMin,
		MaxRetries:        cfg.Alpaca.MaxRetries,
	})
	src := marketdata.NewCachedSource(alpaca, store.NewParquetStore(cfg.Storage.DataDir))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *cached {
		known, err := src.Symbols(ctx)
		if err != nil {
			log.Fatalf("listing cached symbols: %v", err)
		}
		symbols = splitSymbols(strings.Join(append(symbols, known...), ","))
		slog.Info("refreshing cached symbols", "cached", len(known))
	}
	if len(symbols) == 0 {
		fmt.Println("nothing to fetch")
		return
	}

	slog.Info("prefetching daily bars",
		"symbols", len(symbols),
		"start", *start,
		"end", *end,
		"data_dir", cfg.Storage.DataDir,
	)
	res, err := marketdata.Prefetch(ctx, src, symbols, *start, *end, *workers)
	if err != nil {
		log.Fatalf("prefetch interrupted: %v", err)
	}

	fmt.Printf("loaded %d, empty %d, failed %d\n", len(res.Loaded), len(res.Empty), len(res.Failed))
	if len(res.Empty) > 0 {
		sort.Strings(res.Empty)
		fmt.Printf("no data: %s\n", strings.Join(res.Empty, ", "))
	}
	if len(res.Failed) > 0 {
		for sym, err := range res.Failed {
			fmt.Fprintf(os.Stderr, "%s: %v\n", sym, err)
		}
		os.Exit(1)
	}
}

func splitSymbols(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
