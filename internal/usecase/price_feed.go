package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	mid "CoinPull/internal/middleware"
	"CoinPull/pkg/logger"
)

var errStreamClosed = errors.New("price stream closed")

// PriceFeed streams real-time prices through the tick pipeline into the position manager.
type PriceFeed struct {
	stream    drepo.MarketStream
	pipe      *mid.TickPipeline
	positions *PositionManager
	metrics   drepo.Metrics
	logger    *logger.Logger
	retry     time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPriceFeed creates a feed. retry is the pause after a failed reconnect.
func NewPriceFeed(stream drepo.MarketStream, pipe *mid.TickPipeline, positions *PositionManager, metrics drepo.Metrics, log *logger.Logger, retry time.Duration) *PriceFeed {
	if retry <= 0 {
		retry = 5 * time.Second
	}
	return &PriceFeed{stream: stream, pipe: pipe, positions: positions, metrics: metrics, logger: log, retry: retry}
}

// IsConnected returns true if the market stream is connected.
func (f *PriceFeed) IsConnected() bool { return f.stream.IsConnected() }

// Start connects the stream and launches the producer and consumer goroutines.
func (f *PriceFeed) Start(ctx context.Context) error {
	if err := f.stream.Connect(ctx); err != nil {
		return err
	}
	if err := f.stream.Subscribe(ctx); err != nil {
		_ = f.stream.Close()
		return err
	}

	ctx, f.cancel = context.WithCancel(ctx)
	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		f.produce(ctx)
	}()
	go func() {
		defer f.wg.Done()
		f.positions.RunPriceFeed(ctx, f.pipe.Ticks())
	}()
	return nil
}

func (f *PriceFeed) produce(ctx context.Context) {
	for ctx.Err() == nil {
		readCtx, stop := context.WithCancel(ctx)
		ticks, errs := f.stream.Read(readCtx)
		err := f.forward(readCtx, ticks, errs)
		stop()
		if ctx.Err() != nil {
			return
		}

		f.metrics.RecordError("stream")
		f.logger.Warn("price stream interrupted, reconnecting", logger.Error(err))
		for ctx.Err() == nil {
			err := f.stream.Reconnect(ctx)
			if err == nil {
				f.logger.Info("price stream reconnected")
				break
			}
			f.metrics.RecordError("stream_reconnect")
			f.logger.Warn("price stream reconnect failed", logger.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(f.retry):
			}
		}
	}
}

// forward pumps ticks until the stream reports an error or closes.
func (f *PriceFeed) forward(ctx context.Context, ticks <-chan models.PriceTick, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return err
			}
		case t, ok := <-ticks:
			if !ok {
				return errStreamClosed
			}
			if _, err := f.pipe.Push(t); err != nil {
				f.logger.Debug("tick rejected", logger.String("symbol", t.Symbol), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the goroutines, closes the pipeline and the stream.
func (f *PriceFeed) Shutdown(ctx context.Context) error {
	if f.cancel != nil {
		f.cancel()
	}
	err := f.stream.Close()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	f.pipe.Close()
	return err
}
