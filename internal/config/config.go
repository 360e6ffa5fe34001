// Package config loads the screener's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elbarroca/eth-global-prague/internal/application/pipeline"
	"github.com/elbarroca/eth-global-prague/internal/domain/ranking"
)

// Config is the full screener configuration.
type Config struct {
	Pipeline pipeline.Config `yaml:"pipeline"`
	Assets   []pipeline.Asset `yaml:"assets"`

	// Ranking overrides the built-in signal weight tables when non-empty.
	Ranking ranking.Config `yaml:"ranking"`

	Data     DataConfig     `yaml:"data"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// DataConfig locates the candle history files.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// RedisConfig enables the candle cache when Addr is set.
type RedisConfig struct {
	Addr string        `yaml:"addr"`
	TTL  time.Duration `yaml:"ttl"`
}

// PostgresConfig enables persistence when DSN is set.
type PostgresConfig struct {
	DSN     string        `yaml:"dsn"`
	Timeout time.Duration `yaml:"timeout"`
	Migrate bool          `yaml:"migrate"`
}

// HTTPConfig enables the operational HTTP server when Addr is set.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the baseline configuration used when no file is given.
func Default() Config {
	return Config{
		Pipeline: pipeline.Config{
			Timeframe:      "daily",
			Objective:      "maximize_sharpe",
			RiskFreeRate:   0.02,
			PeriodsPerYear: 365,
		},
		Data: DataConfig{Dir: "data/candles"},
	}
}

// Load reads a YAML config file over the defaults. Empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Pipeline.Objective {
	case "", "maximize_sharpe", "minimize_volatility", "maximize_return":
	default:
		return fmt.Errorf("unknown objective %q", c.Pipeline.Objective)
	}
	if c.Pipeline.PeriodsPerYear < 0 {
		return fmt.Errorf("periods_per_year must be positive, got %d", c.Pipeline.PeriodsPerYear)
	}
	for i, a := range c.Assets {
		if a.Symbol == "" {
			return fmt.Errorf("asset %d: missing symbol", i)
		}
	}
	return nil
}
