package middleware

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
)

// ErrPipelineClosed is returned by Push after Close.
var ErrPipelineClosed = errors.New("tick pipeline closed")

// TickPipeline sits between the websocket stream and the position manager.
// It validates ticks, throttles them per symbol and hands them over through a bounded channel.
// Ticks are dropped when the channel is full.
type TickPipeline struct {
	metrics   domrepo.Metrics
	maxRPS    int
	bufSize   int
	out       chan models.PriceTick
	transform func(models.PriceTick) models.PriceTick

	mu       sync.Mutex
	closed   bool
	lastSeen map[string]time.Time // per-symbol last accepted time
	dropped  uint64
}

type PipelineOption func(*TickPipeline)

// WithMaxRPS sets the max ticks per second per symbol. Zero disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the capacity of the output channel.
func WithBufferSize(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a hook applied to every valid tick before throttling.
func WithTransform(fn func(models.PriceTick) models.PriceTick) PipelineOption {
	return func(p *TickPipeline) { p.transform = fn }
}

// NewTickPipeline creates a pipeline. Defaults: 5 ticks/s per symbol, buffer of 1000.
func NewTickPipeline(metrics domrepo.Metrics, opts ...PipelineOption) *TickPipeline {
	p := &TickPipeline{
		metrics:  metrics,
		maxRPS:   5,
		bufSize:  1000,
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.out = make(chan models.PriceTick, p.bufSize)
	return p
}

// Ticks is the consumer side of the pipeline. It is closed by Close.
func (p *TickPipeline) Ticks() <-chan models.PriceTick { return p.out }

// Push validates, throttles and enqueues a tick without blocking.
// It reports whether the tick was enqueued.
func (p *TickPipeline) Push(t models.PriceTick) (bool, error) {
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return false, err
	}
	if p.transform != nil {
		t = p.transform(t)
		if err := validateTick(t); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return false, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ErrPipelineClosed
	}
	if !p.allow(t.Symbol, t.Timestamp) {
		p.metrics.RecordError("pipeline_throttle")
		return false, nil
	}

	select {
	case p.out <- t:
		p.metrics.RecordLastPrice(t.Symbol, t.Price)
		return true, nil
	default:
		p.dropped++
		p.metrics.RecordError("pipeline_buffer_full")
		return false, nil
	}
}

// Dropped returns how many ticks were discarded on a full buffer.
func (p *TickPipeline) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close stops accepting ticks and closes the output channel.
func (p *TickPipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.out)
}

func validateTick(t models.PriceTick) error {
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if t.Price <= 0 || t.Volume < 0 {
		return fmt.Errorf("non-positive price or negative volume")
	}
	return nil
}

// allow must be called with mu held.
func (p *TickPipeline) allow(symbol string, at time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	last, ok := p.lastSeen[symbol]
	if ok && at.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = at
	return true
}
