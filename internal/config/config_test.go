package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.yaml.example"))
	require.NoError(t, err)
	assert.Equal(t, "synthetic", cfg.Data.Provider)
	assert.Equal(t, "QQQ", cfg.Strategy.Symbol)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	assert.Error(t, err)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  provider: static
strategy:
  symbol: QQQ
  typo_field: true
`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_MARKET_KEY", "secret-key")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  provider: live
  api_endpoint: https://api.example.com
  api_key: ${TEST_MARKET_KEY}
strategy:
  symbol: QQQ
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.Data.APIKey)
}

func TestValidate_Defaults(t *testing.T) {
	cfg := &Config{
		Data:     DataConfig{Provider: "static"},
		Strategy: StrategyConfig{Symbol: "QQQ"},
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "QQQ", cfg.Strategy.LeapSymbol)
	assert.Equal(t, 1000.0, cfg.Strategy.Budget)
	assert.Equal(t, 40, cfg.Strategy.TargetDTE)
	assert.Equal(t, 0.70, cfg.Strategy.LeapDelta)
	assert.Equal(t, 100000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, 1, cfg.Backtest.StepDays)
	assert.Equal(t, 1.0, cfg.Backtest.Commission)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing symbol", Config{Data: DataConfig{Provider: "static"}}},
		{"unknown provider", Config{Data: DataConfig{Provider: "oracle"}, Strategy: StrategyConfig{Symbol: "QQQ"}}},
		{"synthetic without bars", Config{Data: DataConfig{Provider: "synthetic"}, Strategy: StrategyConfig{Symbol: "QQQ"}}},
		{"live without key", Config{Data: DataConfig{Provider: "live", APIEndpoint: "https://x"}, Strategy: StrategyConfig{Symbol: "QQQ"}}},
		{"bad delta", Config{Data: DataConfig{Provider: "static"}, Strategy: StrategyConfig{Symbol: "QQQ", LeapDelta: 1.5}}},
		{"dates reversed", Config{
			Data:     DataConfig{Provider: "static"},
			Strategy: StrategyConfig{Symbol: "QQQ"},
			Backtest: BacktestConfig{StartDate: "2024-06-01", EndDate: "2024-01-01"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}
