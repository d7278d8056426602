package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Backend.Type)
	assert.Equal(t, 3, cfg.Trading.MaxPositions)
	assert.InDelta(t, 33.33, cfg.Trading.PositionSizePct, 1e-9)
	assert.Equal(t, 168, cfg.Trading.MaxHoldTimeHours)
	assert.Equal(t, 180*time.Second, cfg.Signals.CacheTTL)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, map[string]float64{"USDT": 10000}, cfg.Exchange.PaperBalances)
	assert.Equal(t, []string{"BTC", "ETH", "BNB"}, cfg.Trading.MarketCapTiers.Top)
	assert.InDelta(t, 0.35, cfg.Trading.IndicatorWeights.Technical, 1e-9)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
backend:
  type: clickhouse
trading:
  symbols: [ADAUSDT]
  take_profit_pct: 10
signals:
  buy_threshold: 70
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "clickhouse", cfg.Backend.Type)
	assert.Equal(t, []string{"ADAUSDT"}, cfg.Trading.Symbols)
	assert.InDelta(t, 10.0, cfg.Trading.TakeProfitPct, 1e-9)
	assert.InDelta(t, 70.0, cfg.Signals.BuyThreshold, 1e-9)
	// untouched keys keep their defaults
	assert.InDelta(t, 35.0, cfg.Signals.SellThreshold, 1e-9)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeFile(t, "trading: ["))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Backend.Type = "sqlite" }, "Backend"},
		{"weights sum", func(c *Config) { c.Trading.IndicatorWeights.Technical = 0.5 }, "sum to 1"},
		{"thresholds", func(c *Config) { c.Signals.BuyThreshold = 55; c.Signals.SellThreshold = 45 }, ""},
		{"no symbols", func(c *Config) { c.Trading.Symbols = nil }, "Symbols"},
		{"live without keys", func(c *Config) { c.Trading.Live = true }, "trading.live"},
		{"live with keys", func(c *Config) {
			c.Trading.Live = true
			c.Exchange.APIKey = "k"
			c.Exchange.SecretKey = "s"
		}, ""},
		{"http news without url", func(c *Config) { c.News.Provider = "http" }, "news.service_url"},
		{"feedback bounds", func(c *Config) { c.Trading.Feedback.MaxWeight = 0.05 }, "MaxWeight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadWithEnv_OverridesBeforeValidation(t *testing.T) {
	path := writeFile(t, "trading:\n  live: false\n")
	t.Setenv("MEXC_API_KEY", "key")
	t.Setenv("MEXC_SECRET_KEY", "secret")
	t.Setenv("LIVE_TRADING", "true")
	t.Setenv("SYMBOLS", "btcusdt, ethusdt ,")
	t.Setenv("BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadWithEnv(path)
	require.NoError(t, err)

	assert.True(t, cfg.Trading.Live)
	assert.Equal(t, "key", cfg.Exchange.APIKey)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, "kafka", cfg.Backend.Type)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadWithEnv_BadBool(t *testing.T) {
	t.Setenv("LIVE_TRADING", "maybe")
	_, err := LoadWithEnv("")
	assert.ErrorContains(t, err, "LIVE_TRADING")
}
