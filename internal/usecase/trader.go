package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	"CoinPull/pkg/cache"
	applogger "CoinPull/pkg/logger"
)

// ErrCycleRunning is returned when a cycle is requested while one is in flight.
var ErrCycleRunning = errors.New("trading cycle already running")

// TraderConfig lists the traded symbols and cycle limits.
type TraderConfig struct {
	Symbols           []string
	MaxTradesPerCycle int
	PriceTimeout      time.Duration
	// LockTTL bounds the shared cycle lock when several instances run.
	LockTTL time.Duration
}

// TraderStatus is the externally visible state of the auto-trader.
type TraderStatus struct {
	Enabled       bool                `json:"enabled"`
	Running       bool                `json:"running"`
	OpenPositions int                 `json:"open_positions"`
	Symbols       []string            `json:"symbols"`
	LastCycle     *models.CycleReport `json:"last_cycle,omitempty"`
}

// Trader runs the sequential trading cycle: refresh prices, close exits,
// then execute new signals while trading is enabled.
type Trader struct {
	signals   domsvc.SignalSource
	executor  *TradeExecutor
	positions *PositionManager
	prices    PriceSource
	lock      cache.Service
	metrics   drepo.Metrics
	logger    *applogger.Logger
	cfg       TraderConfig

	cycleMu sync.Mutex
	running atomic.Bool

	mu   sync.RWMutex
	last *models.CycleReport
}

func NewTrader(
	signals domsvc.SignalSource,
	executor *TradeExecutor,
	positions *PositionManager,
	prices PriceSource,
	lock cache.Service,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	cfg TraderConfig,
) *Trader {
	if cfg.PriceTimeout <= 0 {
		cfg.PriceTimeout = 5 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Trader{
		signals:   signals,
		executor:  executor,
		positions: positions,
		prices:    prices,
		lock:      lock,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start enables new executions.
func (t *Trader) Start() {
	t.executor.SetEnabled(true)
	t.logger.Info("trading started", applogger.Strings("symbols", t.cfg.Symbols))
}

// Stop prevents new executions. An in-flight symbol finishes, then the cycle ends.
func (t *Trader) Stop() {
	t.executor.SetEnabled(false)
	t.logger.Info("trading stopped")
}

func (t *Trader) Status() TraderStatus {
	t.mu.RLock()
	last := t.last
	t.mu.RUnlock()
	return TraderStatus{
		Enabled:       t.executor.Enabled(),
		Running:       t.running.Load(),
		OpenPositions: t.positions.Count(),
		Symbols:       append([]string(nil), t.cfg.Symbols...),
		LastCycle:     last,
	}
}

// RunCycle executes one cycle. Cycles never overlap, locally or across instances sharing the lock cache.
func (t *Trader) RunCycle(ctx context.Context) (models.CycleReport, error) {
	if !t.cycleMu.TryLock() {
		return models.CycleReport{}, ErrCycleRunning
	}
	defer t.cycleMu.Unlock()

	if t.lock != nil {
		ok, err := t.lock.TryLock(ctx, "trading:cycle", t.cfg.LockTTL)
		if err != nil {
			t.logger.Warn("cycle lock unavailable, running locally", applogger.Error(err))
		} else if !ok {
			return models.CycleReport{}, ErrCycleRunning
		} else {
			defer func() { _ = t.lock.Unlock(context.WithoutCancel(ctx), "trading:cycle") }()
		}
	}

	t.running.Store(true)
	defer t.running.Store(false)

	rep := models.CycleReport{StartedAt: time.Now(), Skipped: map[string]string{}}

	if t.prices != nil {
		for sym, msg := range t.positions.RefreshPrices(ctx, t.prices, t.cfg.PriceTimeout) {
			rep.Skipped[sym] = "price refresh: " + msg
		}
	}

	closed, failed := t.positions.EvaluateExits(ctx)
	rep.Closed = closed
	for sym, msg := range failed {
		rep.Skipped[sym] = "close: " + msg
	}

	opened := 0
	for _, sym := range t.cfg.Symbols {
		if !t.executor.Enabled() || ctx.Err() != nil {
			rep.Stopped = true
			break
		}
		if t.cfg.MaxTradesPerCycle > 0 && opened >= t.cfg.MaxTradesPerCycle {
			break
		}
		if _, err := t.positions.Position(sym); err == nil {
			continue
		}

		rep.Evaluated++
		sig, err := t.signals.Generate(ctx, sym)
		if err != nil {
			rep.Skipped[sym] = err.Error()
			continue
		}
		if !sig.IsActionable() {
			continue
		}
		trade, err := t.executor.Execute(ctx, sig)
		if err != nil {
			var oe *models.OrderExecutionError
			if errors.As(err, &oe) && oe.Reason == models.ReasonMaxPositions {
				rep.Skipped[sym] = string(oe.Reason)
				break
			}
			rep.Skipped[sym] = err.Error()
			continue
		}
		rep.Opened = append(rep.Opened, trade)
		opened++
	}

	rep.Duration = time.Since(rep.StartedAt)
	if len(rep.Skipped) == 0 {
		rep.Skipped = nil
	}
	t.metrics.RecordLatency("trading_cycle", rep.Duration.Seconds())

	t.mu.Lock()
	t.last = &rep
	t.mu.Unlock()

	t.logger.Info("trading cycle finished",
		applogger.Int("evaluated", rep.Evaluated),
		applogger.Int("opened", len(rep.Opened)),
		applogger.Int("closed", len(rep.Closed)),
		applogger.Bool("stopped", rep.Stopped),
		applogger.Duration("duration_ms", rep.Duration),
	)
	return rep, nil
}

// Job adapts RunCycle to the cron runner.
func (t *Trader) Job(ctx context.Context) {
	if _, err := t.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleRunning) {
		t.logger.Error("trading cycle failed", applogger.Error(err))
	}
}
