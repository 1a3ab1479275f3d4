// Package config loads the market configuration from a yaml file, falling
// back to built-in defaults for anything not set.
package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultCurrency        = "USD"
	defaultProvider        = "alphavantage"
	defaultDataDir         = "./data"
	defaultRatesInterval   = 20 * time.Minute
	defaultRankingInterval = 10 * time.Minute
	defaultFlushInterval   = 5 * time.Minute
	defaultFreshness       = 15 * time.Minute
	defaultRequestLimit    = 5
	defaultRequestWindow   = 70 * time.Second
)

// Config is the validated runtime configuration.
type Config struct {
	Coins            []string
	PhysicalCurrency string
	Provider         string
	APIKey           string
	DataDir          string

	RatesInterval   time.Duration
	RankingInterval time.Duration
	FlushInterval   time.Duration
	Freshness       time.Duration

	RequestLimit  int
	RequestWindow time.Duration
}

type configTmp struct {
	Coins            []string      `yaml:"coins"`
	PhysicalCurrency string        `yaml:"physical_currency,omitempty"`
	Provider         string        `yaml:"provider,omitempty"`
	APIKey           string        `yaml:"api_key,omitempty"`
	DataDir          string        `yaml:"data_dir,omitempty"`
	RatesInterval    time.Duration `yaml:"rates_interval,omitempty"`
	RankingInterval  time.Duration `yaml:"ranking_interval,omitempty"`
	FlushInterval    time.Duration `yaml:"flush_interval,omitempty"`
	Freshness        time.Duration `yaml:"freshness,omitempty"`
	RequestLimit     int           `yaml:"request_limit,omitempty"`
	RequestWindow    time.Duration `yaml:"request_window,omitempty"`
}

// Get reads the config path from the -config flag and loads it.
func Get() (Config, error) {
	path := flag.String("config", "config.yaml", "path to yaml config")
	flag.Parse()
	return Load(*path)
}

// Load parses and validates the yaml file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}

	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	return fromTmp(tmp)
}

func fromTmp(tmp configTmp) (Config, error) {
	cfg := Config{
		Coins:            make([]string, 0, len(tmp.Coins)),
		PhysicalCurrency: strings.ToUpper(stringOr(tmp.PhysicalCurrency, defaultCurrency)),
		Provider:         strings.ToLower(stringOr(tmp.Provider, defaultProvider)),
		APIKey:           tmp.APIKey,
		DataDir:          stringOr(tmp.DataDir, defaultDataDir),
		RatesInterval:    durationOr(tmp.RatesInterval, defaultRatesInterval),
		RankingInterval:  durationOr(tmp.RankingInterval, defaultRankingInterval),
		FlushInterval:    durationOr(tmp.FlushInterval, defaultFlushInterval),
		Freshness:        durationOr(tmp.Freshness, defaultFreshness),
		RequestLimit:     tmp.RequestLimit,
		RequestWindow:    durationOr(tmp.RequestWindow, defaultRequestWindow),
	}
	if cfg.RequestLimit <= 0 {
		cfg.RequestLimit = defaultRequestLimit
	}

	for _, coin := range tmp.Coins {
		coin = strings.ToUpper(strings.TrimSpace(coin))
		if coin != "" {
			cfg.Coins = append(cfg.Coins, coin)
		}
	}
	if len(cfg.Coins) == 0 {
		return Config{}, errors.New("config must list at least one coin")
	}

	switch cfg.Provider {
	case "alphavantage":
		if cfg.APIKey == "" {
			return Config{}, errors.New("alphavantage provider requires api_key")
		}
	case "binance", "bybit":
	default:
		return Config{}, errors.Errorf("unknown provider %q", cfg.Provider)
	}
	return cfg, nil
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
