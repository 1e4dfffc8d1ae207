package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backtester/internal/api"
	"backtester/internal/config"
	"backtester/internal/engine"
	"backtester/internal/events"
	"backtester/internal/marketdata"
	"backtester/internal/store"
	"backtester/internal/strategy/builtins"
	"backtester/internal/util"
)

func main() {
	cfgPath := "config/backtester.yaml"
	if p := os.Getenv("BACKTESTER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("alpaca credentials missing: set APCA_API_KEY_ID and APCA_API_SECRET_KEY")
	}

	var source marketdata.Source
	alpaca := marketdata.NewAlpacaSource(marketdata.AlpacaOptions{
		APIKey:            cfg.Alpaca.APIKey,
		APISecret:         cfg.Alpaca.APISecret,
		DataURL:           cfg.Alpaca.DataURL,
		Feed:              cfg.Alpaca.Feed,
		RequestsPerMinute: cfg.Alpaca.RateLimitPerMin,
		MaxRetries:        cfg.Alpaca.MaxRetries,
	})
	source = alpaca
	if cfg.Storage.DataDir != "" {
		source = marketdata.NewCachedSource(alpaca, store.NewParquetStore(cfg.Storage.DataDir))
		slog.Info("bar cache enabled", "data_dir", cfg.Storage.DataDir)
	}

	var runs store.RunStore
	if cfg.Storage.SQLitePath != "" {
		sqlite, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open run store: %v", err)
		}
		defer sqlite.Close()
		runs = sqlite
		slog.Info("run history enabled", "path", cfg.Storage.SQLitePath)
	}

	feed := events.NewBroadcaster()
	publisher := events.Multi{feed}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = append(publisher, events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}
	defer publisher.Close()

	eng := engine.NewEngine(source, builtins.NewRegistry(), runs, publisher, engine.Defaults{
		InitialCapital: cfg.Backtest.InitialCapital,
		RSIPeriod:      cfg.Backtest.RSI.Period,
		RSILower:       cfg.Backtest.RSI.Lower,
		RSIUpper:       cfg.Backtest.RSI.Upper,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	slog.Info("backtester-server starting",
		"http_port", cfg.Server.Port,
		"grpc_port", cfg.Server.GRPCPort,
		"feed", cfg.Alpaca.Feed,
	)
	if err := api.NewServer(cfg.Server, eng, feed).ListenAndServe(ctx); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("backtester-server stopped", "uptime", time.Since(start).Round(time.Second))
}
