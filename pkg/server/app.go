package server

import (
	"context"
	"fmt"
	"io"

	"CoinPull/internal/usecase"
	"CoinPull/pkg/config"
	"CoinPull/pkg/cron"
	xhttp "CoinPull/pkg/http"
	pkgkafka "CoinPull/pkg/kafka"
	applogger "CoinPull/pkg/logger"
)

// Closers are infrastructure clients closed last on shutdown, in order.
type Closers []io.Closer

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	http      *xhttp.Server
	cron      *cron.Runner
	trader    *usecase.Trader
	positions *usecase.PositionManager
	recorder  *usecase.TradeRecorder
	feed      *usecase.PriceFeed
	consumer  *pkgkafka.Consumer
	events    pkgkafka.MessageHandler
	closers   Closers
}

// New creates the App. feed and consumer are nil when disabled.
func New(
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
	closers Closers,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		http:      httpServer,
		cron:      runner,
		trader:    trader,
		positions: positions,
		recorder:  recorder,
		feed:      feed,
		consumer:  consumer,
		events:    events,
		closers:   closers,
	}
}

// Run starts every component and blocks until ctx is cancelled or the HTTP
// server fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	restored, err := a.positions.Restore(ctx)
	if err != nil {
		a.log.Warn("position restore failed", applogger.Error(err))
	} else {
		a.log.Info("positions restored", applogger.Int("open", restored))
	}

	if a.consumer != nil && a.events != nil {
		a.consumer.RegisterHandler(a.events)
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.events.Topic()))
	}

	if a.feed != nil {
		// Without the stream the trading cycle still polls prices.
		if err := a.feed.Start(ctx); err != nil {
			a.log.Warn("price feed unavailable, falling back to polling", applogger.Error(err))
		}
	}

	if _, err := a.cron.Add("trading-cycle", a.cfg.Trading.CycleSchedule, a.trader.Job); err != nil {
		return err
	}
	a.cron.Start()

	if a.cfg.Trading.AutoStart {
		a.trader.Start()
	}

	a.log.Info("coinpull started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("backend", a.cfg.Backend.Type),
		applogger.Bool("live", a.cfg.Trading.Live),
		applogger.Strings("symbols", a.cfg.Trading.Symbols),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err, ok := <-a.http.Start():
		if ok && err != nil {
			a.log.Error("http server failed", applogger.Error(err))
			runErr = err
		}
	}
	a.shutdown()
	return runErr
}

// shutdown stops intake first, then the workers, then closes infrastructure.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.trader.Stop()
	a.cron.Stop()

	if err := a.http.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.feed != nil {
		if err := a.feed.Shutdown(ctx); err != nil {
			a.log.Warn("price feed stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// the collector flushes through the publisher, so it goes before it
	a.log.RemoveCollector()
	a.recorder.Close()
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
