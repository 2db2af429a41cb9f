// Package config provides configuration management for the research engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultBudget is used when strategy.budget is unset.
	defaultBudget = 1000.0
	// defaultInitialCapital is used when backtest.initial_capital is unset.
	defaultInitialCapital = 100000.0
	// defaultCommission is the per-order commission when unset.
	defaultCommission = 1.0
	// defaultTargetDTE is the preferred condor days-to-expiration.
	defaultTargetDTE = 40
	// defaultLeapDelta is the preferred anchor call delta.
	defaultLeapDelta = 0.70
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Data        DataConfig        `yaml:"data"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Backtest    BacktestConfig    `yaml:"backtest"`
	Storage     StorageConfig     `yaml:"storage"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// DataConfig defines where market data comes from.
type DataConfig struct {
	Provider string `yaml:"provider"` // synthetic | static | live
	// BarsPath is the SQLite database of historical daily bars, used by
	// the synthetic provider.
	BarsPath string `yaml:"bars_path"`
	// Live endpoint settings; required only when provider is live.
	APIEndpoint string `yaml:"api_endpoint"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	// Retry and UseBreaker wrap the live provider with resilience layers.
	Retry      bool `yaml:"retry"`
	UseBreaker bool `yaml:"use_breaker"`
}

// StrategyConfig defines the condor strategy parameters.
type StrategyConfig struct {
	Symbol     string  `yaml:"symbol"`      // condor underlying
	LeapSymbol string  `yaml:"leap_symbol"` // anchor underlying
	Budget     float64 `yaml:"budget"`      // per-structure loss budget
	TargetDTE  int     `yaml:"target_dte"`
	LeapDelta  float64 `yaml:"leap_delta"`
}

// BacktestConfig defines backtest run parameters.
type BacktestConfig struct {
	StartDate      string  `yaml:"start_date"` // YYYY-MM-DD
	EndDate        string  `yaml:"end_date"`
	InitialCapital float64 `yaml:"initial_capital"`
	StepDays       int     `yaml:"step_days"`
	Commission     float64 `yaml:"commission"`
}

// StorageConfig defines where run results are persisted.
type StorageConfig struct {
	// RunsPath is the SQLite database for completed runs; empty disables
	// persistence.
	RunsPath string `yaml:"runs_path"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent,
// applying defaults for unset optional fields.
func (c *Config) Validate() error {
	switch c.Data.Provider {
	case "", "synthetic":
		c.Data.Provider = "synthetic"
		if c.Data.BarsPath == "" {
			return fmt.Errorf("data.bars_path is required for the synthetic provider")
		}
	case "static":
	case "live":
		if c.Data.APIEndpoint == "" {
			return fmt.Errorf("data.api_endpoint is required for the live provider")
		}
		if c.Data.APIKey == "" {
			return fmt.Errorf("data.api_key is required for the live provider")
		}
	default:
		return fmt.Errorf("data.provider must be 'synthetic', 'static', or 'live'")
	}

	if c.Strategy.Symbol == "" {
		return fmt.Errorf("strategy.symbol is required")
	}
	if c.Strategy.LeapSymbol == "" {
		c.Strategy.LeapSymbol = c.Strategy.Symbol
	}
	if c.Strategy.Budget == 0 {
		c.Strategy.Budget = defaultBudget
	}
	if c.Strategy.Budget < 0 {
		return fmt.Errorf("strategy.budget must be > 0")
	}
	if c.Strategy.TargetDTE == 0 {
		c.Strategy.TargetDTE = defaultTargetDTE
	}
	if c.Strategy.TargetDTE < 0 {
		return fmt.Errorf("strategy.target_dte must be > 0")
	}
	if c.Strategy.LeapDelta == 0 {
		c.Strategy.LeapDelta = defaultLeapDelta
	}
	if c.Strategy.LeapDelta < 0 || c.Strategy.LeapDelta > 1 {
		return fmt.Errorf("strategy.leap_delta must be in (0,1]")
	}

	if c.Backtest.StartDate != "" || c.Backtest.EndDate != "" {
		start, err := c.ParsedStartDate()
		if err != nil {
			return err
		}
		end, err := c.ParsedEndDate()
		if err != nil {
			return err
		}
		if end.Before(start) {
			return fmt.Errorf("backtest.end_date must not precede backtest.start_date")
		}
	}
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = defaultInitialCapital
	}
	if c.Backtest.InitialCapital < 0 {
		return fmt.Errorf("backtest.initial_capital must be > 0")
	}
	if c.Backtest.StepDays == 0 {
		c.Backtest.StepDays = 1
	}
	if c.Backtest.StepDays < 0 {
		return fmt.Errorf("backtest.step_days must be > 0")
	}
	if c.Backtest.Commission == 0 {
		c.Backtest.Commission = defaultCommission
	}
	if c.Backtest.Commission < 0 {
		return fmt.Errorf("backtest.commission must be >= 0")
	}

	return nil
}

// ParsedStartDate parses backtest.start_date.
func (c *Config) ParsedStartDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Backtest.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("backtest.start_date: %w", err)
	}
	return t, nil
}

// ParsedEndDate parses backtest.end_date.
func (c *Config) ParsedEndDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Backtest.EndDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("backtest.end_date: %w", err)
	}
	return t, nil
}

// LiveTimeout returns the configured live request timeout.
func (c *Config) LiveTimeout() time.Duration {
	if c.Data.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Data.TimeoutSecs) * time.Second
}
