package di

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	"CoinPull/internal/handler/api"
	mid "CoinPull/internal/middleware"
	internalrepo "CoinPull/internal/repository"
	"CoinPull/internal/service/exchange"
	"CoinPull/internal/service/news"
	"CoinPull/internal/services/analysis"
	"CoinPull/internal/services/analytics"
	"CoinPull/internal/services/composer"
	"CoinPull/internal/services/scoring"
	"CoinPull/internal/services/sentiment"
	"CoinPull/internal/services/trend"
	"CoinPull/internal/usecase"
	"CoinPull/pkg/cache"
	pkgch "CoinPull/pkg/clickhouse"
	"CoinPull/pkg/config"
	"CoinPull/pkg/cron"
	xhttp "CoinPull/pkg/http"
	pkgkafka "CoinPull/pkg/kafka"
	applogger "CoinPull/pkg/logger"
	"CoinPull/pkg/metrics"
	"CoinPull/pkg/server"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New(nil)
}

// ProvideCache builds the memory, redis or layered cache.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Cache.Backend == "memory" {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryCleanup(cfg.Cache.MemoryCleanup),
		), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Cache.Backend == "redis" {
		return rc, nil
	}
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.LayeredMemSize),
		cache.WithLayeredMemoryTTL(cfg.Cache.LayeredMemTTL),
	), nil
}

// ProvideClickHouseClient connects and prepares the trade table. It returns nil
// for the memory backend.
func ProvideClickHouseClient(cfg *config.Config, log *applogger.Logger) (*pkgch.Client, error) {
	if cfg.Backend.Type == usecase.BackendMemory {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.TradeSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideTradeStore returns the ClickHouse store, or the in-memory one when no client is configured.
func ProvideTradeStore(cfg *config.Config, ch *pkgch.Client, log *applogger.Logger) domrepo.TradeStore {
	if ch == nil {
		return internalrepo.NewMemoryTradeStore()
	}
	return internalrepo.NewClickHouseTradeStore(ch, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table, log)
}

// ProvideKafkaProducer creates a Kafka producer for the kafka backend, nil otherwise.
func ProvideKafkaProducer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes signal and trade events to Kafka and, when
// enabled, ships aggregated error logs to the logs topic.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer, log *applogger.Logger) domrepo.EventPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	pub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Signals, cfg.Kafka.Topics.Trades)
	if cfg.Log.Collector.Enabled && cfg.Kafka.Topics.Logs != "" {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      pub,
		})
	}
	return pub
}

// ProvideKafkaConsumer creates the trade-events consumer for the kafka backend, nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, m domrepo.Metrics, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerStartOffset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Topics.DLQ),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TimingHook(func(_ context.Context, topic string, elapsed time.Duration, err error) {
		m.RecordLatency("consume_"+topic, elapsed.Seconds())
		if err != nil {
			m.RecordError("consume_" + topic)
		}
	}))
	return consumer, nil
}

// ProvideTradeEventsHandler persists consumed trade events into the store.
func ProvideTradeEventsHandler(cfg *config.Config, store domrepo.TradeStore, m domrepo.Metrics, log *applogger.Logger) pkgkafka.MessageHandler {
	return usecase.NewTradeEventsHandler(cfg.Kafka.Topics.Trades, store, m, log)
}

// ProvideExchangeClient creates the MEXC REST client.
func ProvideExchangeClient(cfg *config.Config, log *applogger.Logger) *exchange.Client {
	return exchange.NewClient(
		exchange.WithBaseURL(cfg.Exchange.BaseURL),
		exchange.WithCredentials(cfg.Exchange.APIKey, cfg.Exchange.SecretKey),
		exchange.WithRecvWindow(cfg.Exchange.RecvWindow),
		exchange.WithTimeout(cfg.Exchange.Timeout),
		exchange.WithRateLimit(cfg.Exchange.RateLimit.Burst, cfg.Exchange.RateLimit.PerSecond),
		exchange.WithLogger(log),
	)
}

// ProvideExchange returns the live client or a paper account over it.
func ProvideExchange(cfg *config.Config, client *exchange.Client) domsvc.ExchangeClient {
	return exchange.Select(cfg.Trading.Live, client, cfg.Exchange.QuoteAsset, cfg.Exchange.PaperBalances)
}

// ProvideNewsSource reads the configured RSS/Atom feeds.
func ProvideNewsSource(cfg *config.Config, log *applogger.Logger) domsvc.NewsSource {
	return news.NewReader(news.Config{
		Feeds:       cfg.News.Feeds,
		Lookback:    cfg.News.Lookback,
		MaxArticles: cfg.News.MaxArticles,
		PerFeed:     cfg.News.PerFeed,
		Similarity:  cfg.News.Similarity,
		Timeout:     cfg.News.Timeout,
	}, log)
}

func ProvideSentimentAggregator(cfg *config.Config, src domsvc.NewsSource, c cache.Service, log *applogger.Logger) *sentiment.Aggregator {
	sc := sentiment.DefaultConfig()
	if cfg.News.CacheTTL > 0 {
		sc.CacheTTL = cfg.News.CacheTTL
	}
	return sentiment.NewAggregator(src, c, log, sentiment.WithConfig(sc))
}

// ProvideSentimentProvider selects the local aggregator or the remote sentiment service.
func ProvideSentimentProvider(cfg *config.Config, agg *sentiment.Aggregator) domsvc.SentimentProvider {
	if cfg.News.Provider == "http" {
		return analytics.NewHTTPSentimentProvider(cfg)
	}
	return agg
}

// ProvideTopicSource returns nil for the remote provider, which does not rank topics.
func ProvideTopicSource(cfg *config.Config, agg *sentiment.Aggregator) usecase.TopicSource {
	if cfg.News.Provider == "http" {
		return nil
	}
	return agg
}

func ProvideScorer(cfg *config.Config) *scoring.Scorer {
	return scoring.NewScorer(scoring.Config{
		QuoteAsset: cfg.Exchange.QuoteAsset,
		Tiers: scoring.Tiers{
			Top:    cfg.Trading.MarketCapTiers.Top,
			Second: cfg.Trading.MarketCapTiers.Second,
		},
	})
}

func ProvideAnalyzer(scorer *scoring.Scorer) *analysis.Analyzer {
	return analysis.NewAnalyzer(trend.NewAnalyzer(trend.DefaultSettings()), scorer)
}

// ProvideComposer builds the composer and mirrors every weight change into metrics.
func ProvideComposer(cfg *config.Config, m domrepo.Metrics, log *applogger.Logger) (*composer.Composer, error) {
	w := cfg.Trading.IndicatorWeights
	fb := cfg.Trading.Feedback
	s := cfg.Signals
	comp, err := composer.New(
		models.WeightsConfig{Technical: w.Technical, Fundamental: w.Fundamental, Sentiment: w.Sentiment, Momentum: w.Momentum},
		models.FeedbackPolicy{SuccessStep: fb.SuccessStep, FailureStep: fb.FailureStep, MinWeight: fb.MinWeight, MaxWeight: fb.MaxWeight},
		composer.Thresholds{
			Buy:                s.BuyThreshold,
			Sell:               s.SellThreshold,
			StrongConfidence:   s.StrongConfidence,
			ModerateConfidence: s.ModerateConfidence,
			MaxConfidence:      s.MaxConfidence,
			HighDispersion:     s.HighDispersion,
			LowDispersion:      s.LowDispersion,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("composer: %w", err)
	}
	comp.OnWeightsUpdate(func(w models.WeightsConfig) {
		m.RecordWeights(w)
		log.Info("indicator weights updated",
			applogger.Float64("technical", w.Technical),
			applogger.Float64("fundamental", w.Fundamental),
			applogger.Float64("sentiment", w.Sentiment),
			applogger.Float64("momentum", w.Momentum),
		)
	})
	m.RecordWeights(comp.Weights())
	return comp, nil
}

func ProvideSignalGenerator(
	cfg *config.Config,
	ex domsvc.ExchangeClient,
	analyzer *analysis.Analyzer,
	scorer *scoring.Scorer,
	sp domsvc.SentimentProvider,
	comp *composer.Composer,
	c cache.Service,
	pub domrepo.EventPublisher,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.SignalGenerator {
	return usecase.NewSignalGenerator(ex, analyzer, scorer, sp, comp, c, pub, m, log, usecase.SignalConfig{
		Interval:           domrepo.NormalizeTimeframe(cfg.Trading.Interval),
		KlineLimit:         cfg.Trading.KlineLimit,
		CacheTTL:           cfg.Signals.CacheTTL,
		SymbolTimeout:      cfg.Signals.SymbolTimeout,
		MinBatchConfidence: cfg.Signals.MinBatchConfidence,
		BatchConcurrency:   cfg.Signals.ScanConcurrency,
		HistorySize:        cfg.Signals.HistorySize,
	})
}

func ProvideTradeRecorder(cfg *config.Config, pub domrepo.EventPublisher, store domrepo.TradeStore, m domrepo.Metrics) *usecase.TradeRecorder {
	return usecase.NewTradeRecorder(pub, store, m, cfg.Backend.Type)
}

func ProvidePositionManager(
	cfg *config.Config,
	ex domsvc.ExchangeClient,
	gen *usecase.SignalGenerator,
	comp *composer.Composer,
	recorder *usecase.TradeRecorder,
	store domrepo.TradeStore,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.PositionManager {
	t := cfg.Trading
	return usecase.NewPositionManager(ex, gen, comp, recorder, store, m, log, usecase.LifecycleConfig{
		MaxPositions:       t.MaxPositions,
		MaxHold:            time.Duration(t.MaxHoldTimeHours) * time.Hour,
		TakeProfitPct:      t.TakeProfitPct,
		StopLossPct:        math.Abs(t.StopLossPct),
		ReversalConfidence: t.ReversalConfidence,
		OrderTimeout:       t.OrderTimeout,
		QuantityPrecision:  t.QuantityPrecision,
	})
}

func ProvideTradeExecutor(cfg *config.Config, ex domsvc.ExchangeClient, positions *usecase.PositionManager, m domrepo.Metrics, log *applogger.Logger) *usecase.TradeExecutor {
	t := cfg.Trading
	return usecase.NewTradeExecutor(ex, positions, m, log, usecase.ExecutorConfig{
		PositionSizePct:   t.PositionSizePct,
		MaxLeverage:       t.MaxLeverage,
		MinConfidence:     t.MinConfidenceThreshold,
		MinBalance:        t.MinBalance,
		QuantityPrecision: t.QuantityPrecision,
		QuoteAsset:        cfg.Exchange.QuoteAsset,
		CallTimeout:       t.OrderTimeout,
	})
}

// ProvideTrader shares the cache as the cycle lock, so instances on one redis never overlap.
func ProvideTrader(
	cfg *config.Config,
	gen *usecase.SignalGenerator,
	exec *usecase.TradeExecutor,
	positions *usecase.PositionManager,
	ex domsvc.ExchangeClient,
	c cache.Service,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.Trader {
	return usecase.NewTrader(gen, exec, positions, ex, c, m, log, usecase.TraderConfig{
		Symbols:           cfg.Trading.Symbols,
		MaxTradesPerCycle: cfg.Trading.MaxTradesPerCycle,
		PriceTimeout:      cfg.Exchange.Timeout,
		LockTTL:           cfg.Trading.LockTTL,
	})
}

func ProvideScanner(cfg *config.Config, ex domsvc.ExchangeClient, gen *usecase.SignalGenerator, m domrepo.Metrics, log *applogger.Logger) *usecase.Scanner {
	return usecase.NewScanner(ex, gen, m, log, usecase.ScannerConfig{
		Universe:      cfg.Signals.ScanUniverse,
		Concurrency:   cfg.Signals.ScanConcurrency,
		Top:           cfg.Signals.ScanTop,
		MinConfidence: cfg.Trading.MinConfidenceThreshold,
		QuoteAsset:    cfg.Exchange.QuoteAsset,
		Timeout:       cfg.Signals.SymbolTimeout,
	})
}

func ProvideMarketUseCase(cfg *config.Config, ex domsvc.ExchangeClient, sp domsvc.SentimentProvider, topics usecase.TopicSource, m domrepo.Metrics, log *applogger.Logger) *usecase.MarketUseCase {
	return usecase.NewMarketUseCase(ex, sp, topics, m, log, cfg.Exchange.QuoteAsset, cfg.News.Timeout)
}

func ProvideHistoryUseCase(store domrepo.TradeStore) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(store)
}

// ProvidePriceFeed wires the deals stream through the tick pipeline, nil when disabled.
func ProvidePriceFeed(cfg *config.Config, positions *usecase.PositionManager, m domrepo.Metrics, log *applogger.Logger) *usecase.PriceFeed {
	pf := cfg.Exchange.PriceFeed
	if !pf.Enabled {
		return nil
	}
	symbols := make([]string, 0, len(cfg.Trading.Symbols))
	for _, s := range cfg.Trading.Symbols {
		symbols = append(symbols, strings.ToUpper(s))
	}
	stream := exchange.NewStream(cfg.Exchange.StreamURL, symbols, pf.ReconnectDelay, pf.PingInterval, log)
	pipe := mid.NewTickPipeline(m, mid.WithMaxRPS(pf.MaxRPS), mid.WithBufferSize(pf.BufferSize))
	return usecase.NewPriceFeed(stream, pipe, positions, m, log, pf.ReconnectDelay)
}

func ProvideAPIHandler(
	cfg *config.Config,
	gen *usecase.SignalGenerator,
	scanner *usecase.Scanner,
	market *usecase.MarketUseCase,
	sp domsvc.SentimentProvider,
	topics usecase.TopicSource,
	positions *usecase.PositionManager,
	history *usecase.HistoryUseCase,
	comp *composer.Composer,
	trader *usecase.Trader,
	feed *usecase.PriceFeed,
	log *applogger.Logger,
) *api.Handler {
	svc := api.Services{
		Signals:   gen,
		Scanner:   scanner,
		Market:    market,
		Sentiment: sp,
		Topics:    topics,
		Positions: positions,
		History:   history,
		Weights:   comp,
		Trading:   trader,
	}
	if feed != nil {
		svc.Stream = feed
	}
	return api.NewHandler(svc, log,
		api.WithLive(cfg.Trading.Live),
		api.WithRateLimit(cfg.Server.RateLimit.Burst, cfg.Server.RateLimit.PerSecond),
	)
}

func ProvideHTTPServer(cfg *config.Config, h *api.Handler, log *applogger.Logger) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer(h,
		xhttp.WithAddress(cfg.Server.Address),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS.Enabled, cfg.Server.CORS.AllowOrigins...),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetricsPath(path),
		xhttp.WithServerLogger(log),
	)
}

func ProvideCronRunner(log *applogger.Logger) *cron.Runner {
	return cron.New(context.Background(), log)
}

// ProvideClosers lists the clients closed after everything else stopped.
func ProvideClosers(c cache.Service, ch *pkgch.Client) server.Closers {
	closers := server.Closers{c}
	if ch != nil {
		closers = append(closers, ch)
	}
	return closers
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	runner *cron.Runner,
	trader *usecase.Trader,
	positions *usecase.PositionManager,
	recorder *usecase.TradeRecorder,
	feed *usecase.PriceFeed,
	consumer *pkgkafka.Consumer,
	events pkgkafka.MessageHandler,
	closers server.Closers,
) *server.App {
	return server.New(cfg, log, httpServer, runner, trader, positions, recorder, feed, consumer, events, closers)
}
