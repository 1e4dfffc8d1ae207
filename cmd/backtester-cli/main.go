package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"backtester/internal/domain"
	"backtester/internal/report"
	"backtester/pkg/backtester"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: backtester-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run          Run a backtest and print the report\n")
		fmt.Fprintf(os.Stderr, "  runs         List recent runs\n")
		fmt.Fprintf(os.Stderr, "  strategies   List available strategies\n")
		fmt.Fprintf(os.Stderr, "  version      Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "\nThe server address defaults to $BACKTESTER_URL or http://localhost:8080.\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("backtester-cli %s\n", version)

	case "run":
		err = runCmd(ctx, os.Args[2:])

	case "runs":
		err = runsCmd(ctx, os.Args[2:])

	case "strategies":
		err = strategiesCmd(ctx, os.Args[2:])

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func defaultServer() string {
	if u := os.Getenv("BACKTESTER_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func runCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	server := fs.String("server", defaultServer(), "backtester-server base URL")
	symbol := fs.String("symbol", "", "ticker symbol (required)")
	start := fs.String("start", "", "start date YYYY-MM-DD (required)")
	end := fs.String("end", "", "end date YYYY-MM-DD (required)")
	strategyType := fs.String("strategy", "ma", "strategy type: ma or rsi")
	short := fs.Int("short", 20, "short moving-average window")
	long := fs.Int("long", 50, "long moving-average window")
	capital := fs.Float64("capital", 0, "initial capital (0 uses the server default)")
	asJSON := fs.Bool("json", false, "print the raw JSON response")
	fs.Parse(args)

	if *symbol == "" || *start == "" || *end == "" {
		fs.Usage()
		return fmt.Errorf("-symbol, -start and -end are required")
	}

	resp, err := backtester.NewClient(*server).Run(ctx, backtester.Request{
		Symbol:         *symbol,
		StartDate:      *start,
		EndDate:        *end,
		ShortWindow:    *short,
		LongWindow:     *long,
		StrategyType:   *strategyType,
		InitialCapital: *capital,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return report.Render(os.Stdout, toSummary(resp))
}

func runsCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	server := fs.String("server", defaultServer(), "backtester-server base URL")
	limit := fs.Int("limit", 20, "maximum number of runs to list")
	fs.Parse(args)

	runs, err := backtester.NewClient(*server).Runs(ctx, *limit)
	if err != nil {
		return err
	}

	out := make([]domain.Run, len(runs))
	for i, r := range runs {
		out[i] = domain.Run{
			ID:                   r.ID,
			Symbol:               r.Symbol,
			StartDate:            r.StartDate,
			EndDate:              r.EndDate,
			Strategy:             domain.StrategyType(r.StrategyType),
			ShortWindow:          r.ShortWindow,
			LongWindow:           r.LongWindow,
			InitialCapital:       r.InitialCapital,
			FinalValue:           r.FinalValue,
			TotalReturn:          r.TotalReturn,
			AnnualizedReturn:     r.AnnualizedReturn,
			AnnualizedVolatility: r.AnnualizedVolatility,
			SharpeRatio:          r.SharpeRatio,
			MaxDrawdown:          r.MaxDrawdown,
			TradeCount:           r.TradeCount,
			CreatedAt:            r.CreatedAt,
		}
	}
	return report.RenderRuns(os.Stdout, out)
}

func strategiesCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("strategies", flag.ExitOnError)
	server := fs.String("server", defaultServer(), "backtester-server base URL")
	fs.Parse(args)

	names, err := backtester.NewClient(*server).Strategies(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func toSummary(resp *backtester.Response) report.Summary {
	trades := make([]domain.Trade, len(resp.Trades))
	for i, t := range resp.Trades {
		trades[i] = domain.Trade{Date: t.Date, Price: t.Price, Side: domain.Side(t.Side)}
	}
	return report.Summary{
		RunID:          resp.RunID,
		Symbol:         resp.Symbol,
		Strategy:       resp.StrategyType,
		InitialCapital: resp.InitialCapital,
		Result: domain.BacktestResult{
			FinalValue:           resp.FinalValue,
			TotalReturn:          resp.TotalReturn,
			AnnualizedReturn:     resp.AnnualizedReturn,
			AnnualizedVolatility: resp.AnnualizedVolatility,
			SharpeRatio:          resp.SharpeRatio,
			MaxDrawdown:          resp.MaxDrawdown,
			Trades:               trades,
			EquityCurve:          resp.EquityCurve,
			Dates:                resp.Dates,
		},
	}
}
