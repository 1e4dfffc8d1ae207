package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var overrideVars = []string{
	"DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY", "ALPACA_API_SECRET",
	"ALPACA_DATA_URL", "ALPACA_FEED", "LOG_LEVEL", "KAFKA_BROKERS",
	"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
}

// clearEnv unsets every override variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range overrideVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backtester.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/backtester/data"
  sqlite_path: "/tmp/backtester/runs.db"
server:
  host: "127.0.0.1"
  port: 8081
  grpc_port: 9091
  request_timeout: 30s
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
  feed: "sip"
  rate_limit_per_min: 100
logging:
  level: "debug"
  format: "text"
kafka:
  brokers: ["localhost:9092"]
  topic: "runs"
backtest:
  initial_capital: 50000
  rsi:
    period: 10
    lower: 25
    upper: 75
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/backtester/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/backtester/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/backtester/runs.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/backtester/runs.db")
	}

	// -- Server --
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8081)
	}
	if cfg.Server.GRPCPort != 9091 {
		t.Errorf("Server.GRPCPort = %d, want %d", cfg.Server.GRPCPort, 9091)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want %v", cfg.Server.RequestTimeout, 30*time.Second)
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "sip")
	}
	if cfg.Alpaca.RateLimitPerMin != 100 {
		t.Errorf("Alpaca.RateLimitPerMin = %d, want %d", cfg.Alpaca.RateLimitPerMin, 100)
	}
	if cfg.Alpaca.MaxRetries != 3 {
		t.Errorf("Alpaca.MaxRetries = %d, want default %d", cfg.Alpaca.MaxRetries, 3)
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "text")
	}

	// -- Kafka --
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("Kafka.Brokers = %v, want [localhost:9092]", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Topic != "runs" {
		t.Errorf("Kafka.Topic = %q, want %q", cfg.Kafka.Topic, "runs")
	}

	// -- Backtest --
	if cfg.Backtest.InitialCapital != 50000 {
		t.Errorf("Backtest.InitialCapital = %v, want %v", cfg.Backtest.InitialCapital, 50000.0)
	}
	if cfg.Backtest.RSI.Period != 10 || cfg.Backtest.RSI.Lower != 25 || cfg.Backtest.RSI.Upper != 75 {
		t.Errorf("Backtest.RSI = %+v, want {10 25 75}", cfg.Backtest.RSI)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "storage:\n  data_dir: /data\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	want := Default()
	want.Storage.DataDir = "/data"

	if cfg.Server != want.Server {
		t.Errorf("Server = %+v, want %+v", cfg.Server, want.Server)
	}
	if cfg.Backtest != want.Backtest {
		t.Errorf("Backtest = %+v, want %+v", cfg.Backtest, want.Backtest)
	}
	if cfg.Alpaca.Feed != "iex" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "iex")
	}
	if cfg.Kafka.Topic != "backtest.runs" {
		t.Errorf("Kafka.Topic = %q, want %q", cfg.Kafka.Topic, "backtest.runs")
	}
	if cfg.Backtest.InitialCapital != 100000 {
		t.Errorf("Backtest.InitialCapital = %v, want 100000", cfg.Backtest.InitialCapital)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/from/yaml"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("Kafka.Brokers = %v, want [a:9092 b:9092]", cfg.Kafka.Brokers)
	}
}

func TestLoadCanonicalAlpacaVarsWin(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "alpaca:\n  api_key: yaml-key\n")

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("APCA_API_KEY_ID", "apca-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "apca-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "apca-key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}
