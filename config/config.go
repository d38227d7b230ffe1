// Package config loads engine configuration from a JSON file with
// environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"quant-trading-engine/internal/backtest"
	"quant-trading-engine/internal/exitengine"
	"quant-trading-engine/internal/intel"
	"quant-trading-engine/internal/logging"
	"quant-trading-engine/internal/store"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig        `json:"server"`
	Market   MarketConfig        `json:"market"`
	Database store.DBConfig      `json:"database"`
	Redis    RedisConfig         `json:"redis"`
	Backtest backtest.Config     `json:"backtest"`
	Exit     exitengine.Config   `json:"exit_engine"`
	Intel    intel.MonitorConfig `json:"intel"`
	Logging  logging.Config      `json:"logging"`
	Account  AccountConfig       `json:"account"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// MarketConfig holds the market data feed settings.
type MarketConfig struct {
	WebsocketURL string   `json:"websocket_url"`
	HistoryURL   string   `json:"history_url"`
	Symbols      []string `json:"symbols"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AccountConfig identifies the trading account the engine settles against.
type AccountConfig struct {
	ID              string  `json:"id"`
	StartingBalance float64 `json:"starting_balance"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Enabled: true, Host: "0.0.0.0", Port: 8080},
		Market: MarketConfig{
			WebsocketURL: "wss://stream.example.com/ws",
			HistoryURL:   "https://data.example.com/api/v1",
			Symbols:      []string{"ESU5"},
		},
		Database: store.DBConfig{
			Host: "localhost", Port: 5432,
			User: "postgres", Database: "trading_engine",
		},
		Redis:    RedisConfig{Enabled: false, Addr: "localhost:6379"},
		Backtest: backtest.DefaultConfig(),
		Exit:     exitengine.DefaultConfig(),
		Intel:    intel.DefaultMonitorConfig(),
		Logging:  logging.DefaultConfig(),
		Account:  AccountConfig{ID: "default", StartingBalance: 100000},
	}
}

// Load reads the config file (default config.json, overridable with
// CONFIG_FILE) and applies environment overrides on top.
func Load() (*Config, error) {
	cfg := Default()

	path := getEnvOrDefault("CONFIG_FILE", "config.json")
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)

	cfg.Market.WebsocketURL = getEnvOrDefault("MARKET_WS_URL", cfg.Market.WebsocketURL)
	cfg.Market.HistoryURL = getEnvOrDefault("MARKET_HISTORY_URL", cfg.Market.HistoryURL)

	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DB_NAME", cfg.Database.Database)

	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true"
	}

	cfg.Intel.Query = getEnvOrDefault("INTEL_QUERY", cfg.Intel.Query)
	cfg.Intel.SearchURL = getEnvOrDefault("INTEL_SEARCH_URL", cfg.Intel.SearchURL)
	cfg.Intel.APIKey = getEnvOrDefault("INTEL_API_KEY", cfg.Intel.APIKey)
	if v := os.Getenv("INTEL_ENABLED"); v != "" {
		cfg.Intel.Enabled = v == "true"
	}

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.FilePath = getEnvOrDefault("LOG_FILE", cfg.Logging.FilePath)

	cfg.Account.ID = getEnvOrDefault("ACCOUNT_ID", cfg.Account.ID)
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
