package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Server      struct {
		Address         string        `yaml:"address" default:":8080" validate:"required"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s" validate:"gt=0"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
		CORS            struct {
			Enabled      bool     `yaml:"enabled" default:"true"`
			AllowOrigins []string `yaml:"allow_origins" default:"[\"*\"]"`
		} `yaml:"cors"`
		// per client IP on /api
		RateLimit struct {
			Burst     float64 `yaml:"burst" default:"20" validate:"gt=0"`
			PerSecond float64 `yaml:"per_second" default:"5" validate:"gt=0"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format    string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100" validate:"gt=0"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Backend struct {
		// kafka publishes events and persists trades through the consumer;
		// clickhouse writes trades directly; memory keeps them in process.
		Type string `yaml:"type" default:"memory" validate:"oneof=kafka clickhouse memory"`
	} `yaml:"backend"`
	Cache struct {
		Backend        string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
		MemoryMaxSize  int           `yaml:"memory_max_size" default:"10000" validate:"gt=0"`
		MemoryCleanup  time.Duration `yaml:"memory_cleanup" default:"1m"`
		LayeredMemTTL  time.Duration `yaml:"layered_memory_ttl" default:"30s"`
		LayeredMemSize int           `yaml:"layered_memory_size" default:"1000"`
	} `yaml:"cache"`
	Redis struct {
		Addr         string        `yaml:"addr" default:"localhost:6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"4s"`
		Prefix       string        `yaml:"prefix" default:"coinpull"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd none"`
		Topics       struct {
			Signals string `yaml:"signals" default:"coinpull.signals" validate:"required"`
			Trades  string `yaml:"trades" default:"coinpull.trades" validate:"required"`
			Logs    string `yaml:"logs" default:"coinpull.logs"`
			DLQ     string `yaml:"dlq"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID     string        `yaml:"group_id" default:"coinpull-trades"`
			StartOffset string        `yaml:"start_offset" default:"earliest" validate:"oneof=earliest latest"`
			Workers     int           `yaml:"workers" default:"2" validate:"gt=0"`
			BufferSize  int           `yaml:"buffer_size" default:"100" validate:"gt=0"`
			RetryMax    int           `yaml:"retry_max" default:"3"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"2s"`
			MinBytes    int           `yaml:"min_bytes" default:"1"`
			MaxBytes    int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"coinpull"`
		Table            string        `yaml:"table" default:"trades"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Exchange struct {
		BaseURL    string        `yaml:"base_url" default:"https://api.mexc.com" validate:"url"`
		StreamURL  string        `yaml:"stream_url" default:"wss://wbs.mexc.com/ws"`
		APIKey     string        `yaml:"api_key"`
		SecretKey  string        `yaml:"secret_key"`
		RecvWindow int           `yaml:"recv_window" default:"5000" validate:"gt=0,lte=60000"`
		Timeout    time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
		QuoteAsset string        `yaml:"quote_asset" default:"USDT" validate:"required"`
		RateLimit  struct {
			Burst     float64 `yaml:"burst" default:"10"`
			PerSecond float64 `yaml:"per_second" default:"10"`
		} `yaml:"rate_limit"`
		PaperBalances map[string]float64 `yaml:"paper_balances" default:"{\"USDT\":10000}"`
		PriceFeed     struct {
			Enabled        bool          `yaml:"enabled" default:"true"`
			BufferSize     int           `yaml:"buffer_size" default:"1000" validate:"gt=0"`
			MaxRPS         int           `yaml:"max_rps" default:"5" validate:"gte=0"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
			PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
		} `yaml:"price_feed"`
	} `yaml:"exchange"`
	Trading struct {
		Live                   bool          `yaml:"live"`
		AutoStart              bool          `yaml:"auto_start"`
		Symbols                []string      `yaml:"symbols" default:"[\"BTCUSDT\",\"ETHUSDT\",\"BNBUSDT\",\"SOLUSDT\",\"XRPUSDT\"]" validate:"min=1,dive,required"`
		Interval               string        `yaml:"interval" default:"1h" validate:"oneof=1m 5m 15m 30m 1h 4h 1d"`
		KlineLimit             int           `yaml:"kline_limit" default:"200" validate:"gte=50,lte=1000"`
		MaxPositions           int           `yaml:"max_positions" default:"3" validate:"gt=0"`
		PositionSizePct        float64       `yaml:"position_size_pct" default:"33.33" validate:"gt=0,lte=100"`
		MaxLeverage            float64       `yaml:"max_leverage" default:"5" validate:"gte=1"`
		MinConfidenceThreshold float64       `yaml:"min_confidence_threshold" default:"70" validate:"gte=0,lte=100"`
		MaxHoldTimeHours       int           `yaml:"max_hold_time_hours" default:"168" validate:"gt=0"`
		TakeProfitPct          float64       `yaml:"take_profit_pct" default:"15" validate:"gt=0"`
		StopLossPct            float64       `yaml:"stop_loss_pct" default:"8" validate:"ne=0"`
		ReversalConfidence     float64       `yaml:"reversal_confidence" default:"75" validate:"gte=0,lte=100"`
		MinBalance             float64       `yaml:"min_balance" default:"50" validate:"gte=0"`
		QuantityPrecision      int32         `yaml:"quantity_precision" default:"6" validate:"gte=0,lte=12"`
		MaxTradesPerCycle      int           `yaml:"max_trades_per_cycle" default:"1" validate:"gt=0"`
		CycleSchedule          string        `yaml:"cycle_schedule" default:"@every 5m" validate:"required"`
		OrderTimeout           time.Duration `yaml:"order_timeout" default:"10s"`
		LockTTL                time.Duration `yaml:"lock_ttl" default:"5m"`
		IndicatorWeights       struct {
			Technical   float64 `yaml:"technical" default:"0.35" validate:"gte=0"`
			Fundamental float64 `yaml:"fundamental" default:"0.25" validate:"gte=0"`
			Sentiment   float64 `yaml:"sentiment" default:"0.20" validate:"gte=0"`
			Momentum    float64 `yaml:"momentum" default:"0.20" validate:"gte=0"`
		} `yaml:"indicator_weights"`
		Feedback struct {
			SuccessStep float64 `yaml:"success_step" default:"0.1" validate:"gt=0"`
			FailureStep float64 `yaml:"failure_step" default:"0.05" validate:"gt=0"`
			MinWeight   float64 `yaml:"min_weight" default:"0.1" validate:"gte=0"`
			MaxWeight   float64 `yaml:"max_weight" default:"0.6" validate:"gtfield=MinWeight,lte=1"`
		} `yaml:"feedback"`
		MarketCapTiers struct {
			Top    []string `yaml:"top" default:"[\"BTC\",\"ETH\",\"BNB\"]"`
			Second []string `yaml:"second" default:"[\"ADA\",\"XRP\",\"SOL\",\"DOT\"]"`
		} `yaml:"market_cap_tiers"`
	} `yaml:"trading"`
	Signals struct {
		BuyThreshold       float64       `yaml:"buy_threshold" default:"65" validate:"gt=50,lte=100"`
		SellThreshold      float64       `yaml:"sell_threshold" default:"35" validate:"gte=0,lt=50"`
		StrongConfidence   float64       `yaml:"strong_confidence" default:"80" validate:"gt=0,lte=100"`
		ModerateConfidence float64       `yaml:"moderate_confidence" default:"55" validate:"gt=0,ltefield=StrongConfidence"`
		MaxConfidence      float64       `yaml:"max_confidence" default:"95" validate:"gt=0,lte=100"`
		HighDispersion     float64       `yaml:"high_dispersion" default:"20" validate:"gt=0"`
		LowDispersion      float64       `yaml:"low_dispersion" default:"10" validate:"gte=0,ltefield=HighDispersion"`
		CacheTTL           time.Duration `yaml:"cache_ttl" default:"180s"`
		MinBatchConfidence float64       `yaml:"min_batch_confidence" default:"65" validate:"gte=0,lte=100"`
		ScanConcurrency    int           `yaml:"scan_concurrency" default:"4" validate:"gt=0"`
		ScanTop            int           `yaml:"scan_top" default:"10" validate:"gt=0"`
		ScanUniverse       int           `yaml:"scan_universe" default:"20" validate:"gt=0"`
		SymbolTimeout      time.Duration `yaml:"symbol_timeout" default:"15s"`
		HistorySize        int           `yaml:"history_size" default:"500" validate:"gt=0"`
	} `yaml:"signals"`
	News struct {
		Provider    string        `yaml:"provider" default:"rss" validate:"oneof=rss http"`
		Feeds       []string      `yaml:"feeds" validate:"dive,url"`
		Lookback    time.Duration `yaml:"lookback" default:"24h"`
		MaxArticles int           `yaml:"max_articles" default:"100" validate:"gt=0"`
		PerFeed     int           `yaml:"per_feed" default:"20" validate:"gt=0"`
		Similarity  float64       `yaml:"similarity" default:"0.7" validate:"gt=0,lte=1"`
		Timeout     time.Duration `yaml:"timeout" default:"15s"`
		CacheTTL    time.Duration `yaml:"cache_ttl" default:"5m"`
		ServiceURL  string        `yaml:"service_url"`
		Retries     int           `yaml:"retries" default:"3"`
	} `yaml:"news"`
}

// Load applies defaults, reads the YAML file over them and validates.
func Load(path string) (*Config, error) {
	c, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads an optional .env file, then the YAML file, then applies
// environment overrides before validating.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// load reads path over the defaults. An empty path yields the defaults only.
func load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if path == "" {
		return &c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MEXC_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("MEXC_SECRET_KEY"); v != "" {
		c.Exchange.SecretKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Trading.Symbols = splitList(v, true)
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v, false)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LIVE_TRADING"); v != "" {
		live, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LIVE_TRADING: %w", err)
		}
		c.Trading.Live = live
	}
	return nil
}

func splitList(s string, upper bool) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if upper {
			p = strings.ToUpper(p)
		}
		out = append(out, p)
	}
	return out
}

var validate = validator.New()

// Validate runs the struct tag rules and the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	w := c.Trading.IndicatorWeights
	if sum := w.Technical + w.Fundamental + w.Sentiment + w.Momentum; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("trading.indicator_weights must sum to 1, got %.6f", sum)
	}
	if c.Signals.BuyThreshold <= c.Signals.SellThreshold {
		return fmt.Errorf("signals.buy_threshold (%.2f) must be above signals.sell_threshold (%.2f)", c.Signals.BuyThreshold, c.Signals.SellThreshold)
	}
	if c.Trading.Live && (c.Exchange.APIKey == "" || c.Exchange.SecretKey == "") {
		return fmt.Errorf("trading.live requires exchange.api_key and exchange.secret_key")
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("backend.type kafka requires kafka.brokers")
	}
	if c.News.Provider == "http" && c.News.ServiceURL == "" {
		return fmt.Errorf("news.provider http requires news.service_url")
	}
	return nil
}
