package usecase

import (
	"context"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	applogger "CoinPull/pkg/logger"
)

// ScannerConfig bounds the opportunity scan.
type ScannerConfig struct {
	Universe      int // candidates taken from each list
	Concurrency   int
	Top           int
	MinConfidence float64
	QuoteAsset    string
	Timeout       time.Duration
}

// Scanner searches gainers and volume leaders for actionable signals.
// It never mutates weights or positions.
type Scanner struct {
	exchange  domsvc.ExchangeClient
	generator *SignalGenerator
	metrics   drepo.Metrics
	logger    *applogger.Logger
	cfg       ScannerConfig
}

func NewScanner(exchange domsvc.ExchangeClient, generator *SignalGenerator, metrics drepo.Metrics, logger *applogger.Logger, cfg ScannerConfig) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Top <= 0 {
		cfg.Top = 10
	}
	if cfg.Universe <= 0 {
		cfg.Universe = 25
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Scanner{exchange: exchange, generator: generator, metrics: metrics, logger: logger, cfg: cfg}
}

// Candidates returns the deduplicated union of top gainers and volume leaders.
func (s *Scanner) Candidates(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = s.cfg.Universe * 2
	}
	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	tickers, err := s.exchange.ListTickers24h(cctx)
	if err != nil {
		return nil, models.NewExternalError("exchange", "tickers", err)
	}

	per := (limit + 1) / 2
	seen := map[string]bool{}
	var out []string
	for _, t := range append(TopGainers(tickers, s.cfg.QuoteAsset, per), VolumeLeaders(tickers, s.cfg.QuoteAsset, per)...) {
		if !seen[t.Symbol] {
			seen[t.Symbol] = true
			out = append(out, t.Symbol)
		}
	}
	return head(out, limit), nil
}

// Scan analyzes the candidate universe and keeps BUY/SELL signals above the threshold.
func (s *Scanner) Scan(ctx context.Context, limit int) (models.ScanResult, error) {
	symbols, err := s.Candidates(ctx, limit)
	if err != nil {
		return models.ScanResult{}, err
	}

	res := s.generator.fanOut(ctx, symbols, s.cfg.Concurrency, func(sig models.Signal) bool {
		return sig.IsActionable() && sig.Confidence >= s.cfg.MinConfidence
	})
	res.Opportunities = head(res.Opportunities, s.cfg.Top)

	s.metrics.RecordScan(res.Scanned, res.Skipped, res.Failed)
	s.logger.Info("opportunity scan finished",
		applogger.Int("scanned", res.Scanned),
		applogger.Int("skipped", res.Skipped),
		applogger.Int("failed", res.Failed),
		applogger.Int("opportunities", len(res.Opportunities)),
		applogger.Duration("duration_ms", res.Duration),
	)
	return res, nil
}
