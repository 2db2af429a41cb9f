// ironleap is a research engine for LEAP-anchored iron condor strategies:
// it recommends structures against live or synthetic option chains and
// backtests the strategy over historical daily bars.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tfleming/ironleap/internal/config"
	"github.com/tfleming/ironleap/internal/marketdata"
)

var (
	configPath string
	logLevel   string
)

func main() {
	// A missing .env is fine; explicit environment wins anyway.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "ironleap",
		Short:         "LEAP-anchored iron condor research engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug|info|warn|error)")

	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newRecommendCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads the config and builds the logger and market data provider.
// The returned closer releases provider resources and may be nil.
func setup() (*config.Config, *logrus.Logger, marketdata.Provider, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level := cfg.Environment.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		logger.SetLevel(parsed)
	}

	provider, closer, err := buildProvider(cfg, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return cfg, logger, provider, closer, nil
}

func buildProvider(cfg *config.Config, logger *logrus.Logger) (marketdata.Provider, func(), error) {
	switch cfg.Data.Provider {
	case "synthetic":
		bars, err := marketdata.OpenBarStore(cfg.Data.BarsPath)
		if err != nil {
			return nil, nil, err
		}
		return marketdata.NewSyntheticProvider(bars, logger), func() { bars.Close() }, nil

	case "static":
		return marketdata.NewStaticProvider(), nil, nil

	case "live":
		session := marketdata.NewSession(cfg.Data.APIEndpoint, cfg.Data.APIKey, cfg.LiveTimeout())
		var provider marketdata.Provider = marketdata.NewLiveProvider(session)
		if cfg.Data.Retry {
			provider = marketdata.NewRetryProvider(provider, logger)
		}
		if cfg.Data.UseBreaker {
			provider = marketdata.NewCircuitBreakerProvider(provider, logger)
		}
		return provider, session.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown data provider %q", cfg.Data.Provider)
	}
}
