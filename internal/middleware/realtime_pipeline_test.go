package middleware

import (
	"testing"
	"time"

	"CoinPull/internal/domain/models"
)

type countingMetrics struct{ errors map[string]int }

func (m *countingMetrics) RecordSignal(string, models.Action, float64)         {}
func (m *countingMetrics) RecordTradeOpened(string, models.Side)               {}
func (m *countingMetrics) RecordTradeClosed(string, models.ExitReason, float64) {}
func (m *countingMetrics) RecordOpenPositions(int)                             {}
func (m *countingMetrics) RecordWeights(models.WeightsConfig)                  {}
func (m *countingMetrics) RecordScan(int, int, int)                            {}
func (m *countingMetrics) RecordMessageSent(string, string)                    {}
func (m *countingMetrics) RecordError(kind string)                             { m.errors[kind]++ }
func (m *countingMetrics) RecordLastPrice(string, float64)                     {}
func (m *countingMetrics) RecordLatency(string, float64)                       {}

func tick(sym string, price float64, at time.Time) models.PriceTick {
	return models.PriceTick{Symbol: sym, Price: price, Timestamp: at}
}

func TestTickPipelineThrottlesPerSymbol(t *testing.T) {
	m := &countingMetrics{errors: map[string]int{}}
	p := NewTickPipeline(m, WithMaxRPS(2))
	t0 := time.Unix(1_700_000_000, 0)

	for i, tc := range []struct {
		tk   models.PriceTick
		want bool
	}{
		{tick("BTCUSDT", 1, t0), true},
		{tick("BTCUSDT", 2, t0.Add(100*time.Millisecond)), false},
		{tick("ETHUSDT", 3, t0.Add(100*time.Millisecond)), true},
		{tick("BTCUSDT", 4, t0.Add(500*time.Millisecond)), true},
	} {
		ok, err := p.Push(tc.tk)
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
		if ok != tc.want {
			t.Fatalf("push %d: accepted=%v, want %v", i, ok, tc.want)
		}
	}
	if m.errors["pipeline_throttle"] != 1 {
		t.Fatalf("expected one throttled tick, got %d", m.errors["pipeline_throttle"])
	}
	if got := len(p.Ticks()); got != 3 {
		t.Fatalf("expected 3 buffered ticks, got %d", got)
	}
}

func TestTickPipelineDropsWhenFull(t *testing.T) {
	m := &countingMetrics{errors: map[string]int{}}
	p := NewTickPipeline(m, WithMaxRPS(0), WithBufferSize(2))
	t0 := time.Unix(1_700_000_000, 0)
	for i := 0; i < 5; i++ {
		if _, err := p.Push(tick("BTCUSDT", float64(i+1), t0.Add(time.Duration(i)*time.Millisecond))); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if p.Dropped() != 3 {
		t.Fatalf("expected 3 dropped ticks, got %d", p.Dropped())
	}
	first := <-p.Ticks()
	if first.Price != 1 {
		t.Fatalf("expected oldest tick to survive, got %v", first.Price)
	}
}

func TestTickPipelineValidatesAndCloses(t *testing.T) {
	m := &countingMetrics{errors: map[string]int{}}
	p := NewTickPipeline(m, WithTransform(func(t models.PriceTick) models.PriceTick {
		t.Symbol = "X" + t.Symbol
		return t
	}))
	if _, err := p.Push(models.PriceTick{Symbol: "BTCUSDT", Price: 0, Timestamp: time.Now()}); err == nil {
		t.Fatalf("expected validation error for zero price")
	}
	if _, err := p.Push(models.PriceTick{Price: 1, Timestamp: time.Now()}); err == nil {
		t.Fatalf("expected validation error for empty symbol")
	}
	if ok, err := p.Push(tick("BTC", 1, time.Now())); !ok || err != nil {
		t.Fatalf("expected accepted tick, got %v %v", ok, err)
	}
	if got := <-p.Ticks(); got.Symbol != "XBTC" {
		t.Fatalf("transform not applied: %s", got.Symbol)
	}

	p.Close()
	p.Close()
	if _, err := p.Push(tick("BTC", 1, time.Now())); err != ErrPipelineClosed {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
	if _, ok := <-p.Ticks(); ok {
		t.Fatalf("expected closed channel")
	}
}
