//go:build wireinject
// +build wireinject

package di

import (
	"CoinPull/pkg/config"
	"CoinPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideTradeStore,
		ProvideEventPublisher,
		ProvideTradeEventsHandler,

		// Market data and news
		ProvideExchangeClient,
		ProvideExchange,
		ProvideNewsSource,
		ProvideSentimentAggregator,
		ProvideSentimentProvider,
		ProvideTopicSource,

		// Signal pipeline
		ProvideScorer,
		ProvideAnalyzer,
		ProvideComposer,
		ProvideSignalGenerator,

		// Use cases
		ProvideTradeRecorder,
		ProvidePositionManager,
		ProvideTradeExecutor,
		ProvideTrader,
		ProvideScanner,
		ProvideMarketUseCase,
		ProvideHistoryUseCase,
		ProvidePriceFeed,

		// Transport and lifecycle
		ProvideAPIHandler,
		ProvideHTTPServer,
		ProvideCronRunner,
		ProvideClosers,
		ProvideApp,
	)
	return &server.App{}, nil
}
