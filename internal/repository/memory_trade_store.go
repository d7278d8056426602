package repository

import (
	"context"
	"sort"
	"sync"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
)

// MemoryTradeStore keeps the trade history in process. It keeps the highest version per id.
type MemoryTradeStore struct {
	mu     sync.RWMutex
	trades map[string]models.Trade
}

func NewMemoryTradeStore() *MemoryTradeStore {
	return &MemoryTradeStore{trades: map[string]models.Trade{}}
}

var _ domrepo.TradeStore = (*MemoryTradeStore)(nil)

func (s *MemoryTradeStore) SaveTrade(_ context.Context, t models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.trades[t.ID]; ok && cur.Version > t.Version {
		return nil
	}
	s.trades[t.ID] = t
	return nil
}

func (s *MemoryTradeStore) ListTrades(_ context.Context, f models.TradeFilter) ([]models.Trade, error) {
	s.mu.RLock()
	out := make([]models.Trade, 0, len(s.trades))
	for _, t := range s.trades {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EntryTime.After(out[j].EntryTime)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryTradeStore) OpenTrades(ctx context.Context) ([]models.Trade, error) {
	return s.ListTrades(ctx, models.TradeFilter{Status: models.TradeOpen})
}

func (s *MemoryTradeStore) Health(context.Context) error { return nil }

func (s *MemoryTradeStore) Close() error { return nil }
