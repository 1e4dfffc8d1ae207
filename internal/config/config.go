package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the backtester.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Server   Server         `yaml:"server"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Kafka    Kafka          `yaml:"kafka"`
	Backtest BacktestConfig `yaml:"backtest"`
}

// Storage holds paths for data persistence. An empty path disables the
// corresponding store.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	GRPCPort       int           `yaml:"grpc_port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	Feed            string `yaml:"feed"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxRetries      int    `yaml:"max_retries"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Kafka configures run-completion events. No brokers disables publishing.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// BacktestConfig holds engine defaults.
type BacktestConfig struct {
	InitialCapital float64   `yaml:"initial_capital"`
	RSI            RSIConfig `yaml:"rsi"`
}

// RSIConfig holds the RSI threshold strategy parameters.
type RSIConfig struct {
	Period int     `yaml:"period"`
	Lower  float64 `yaml:"lower"`
	Upper  float64 `yaml:"upper"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides (including any set in
// a local .env file), and fills remaining zero values with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// Default returns a Config with every default applied and no file or
// environment input.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 9090
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 60 * time.Second
	}
	if c.Alpaca.Feed == "" {
		c.Alpaca.Feed = "iex"
	}
	if c.Alpaca.RateLimitPerMin == 0 {
		c.Alpaca.RateLimitPerMin = 200
	}
	if c.Alpaca.MaxRetries == 0 {
		c.Alpaca.MaxRetries = 3
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "backtest.runs"
	}
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = 100000
	}
	if c.Backtest.RSI.Period == 0 {
		c.Backtest.RSI.Period = 14
	}
	if c.Backtest.RSI.Lower == 0 {
		c.Backtest.RSI.Lower = 30
	}
	if c.Backtest.RSI.Upper == 0 {
		c.Backtest.RSI.Upper = 70
	}
}

// envOverrides lists the environment variables that may override the YAML
// file. Empty values leave the file setting in place.
type envOverrides struct {
	DataDir         string   `envconfig:"DATA_DIR"`
	SQLitePath      string   `envconfig:"SQLITE_PATH"`
	AlpacaAPIKey    string   `envconfig:"ALPACA_API_KEY"`
	AlpacaAPISecret string   `envconfig:"ALPACA_API_SECRET"`
	AlpacaDataURL   string   `envconfig:"ALPACA_DATA_URL"`
	AlpacaFeed      string   `envconfig:"ALPACA_FEED"`
	LogLevel        string   `envconfig:"LOG_LEVEL"`
	KafkaBrokers    []string `envconfig:"KAFKA_BROKERS"`

	// Canonical Alpaca SDK variables. These win over the ALPACA_* names.
	APCAKeyID     string `envconfig:"APCA_API_KEY_ID"`
	APCASecretKey string `envconfig:"APCA_API_SECRET_KEY"`
}

// loadDotEnv loads path into the process environment if it exists. Variables
// already set take precedence over the file.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides decodes well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}

	setIf(&cfg.Storage.DataDir, env.DataDir)
	setIf(&cfg.Storage.SQLitePath, env.SQLitePath)
	setIf(&cfg.Alpaca.APIKey, env.AlpacaAPIKey)
	setIf(&cfg.Alpaca.APISecret, env.AlpacaAPISecret)
	setIf(&cfg.Alpaca.DataURL, env.AlpacaDataURL)
	setIf(&cfg.Alpaca.Feed, env.AlpacaFeed)
	setIf(&cfg.Logging.Level, env.LogLevel)
	setIf(&cfg.Alpaca.APIKey, env.APCAKeyID)
	setIf(&cfg.Alpaca.APISecret, env.APCASecretKey)

	if len(env.KafkaBrokers) > 0 {
		cfg.Kafka.Brokers = env.KafkaBrokers
	}
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
