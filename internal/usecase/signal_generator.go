package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	"CoinPull/internal/services/analysis"
	"CoinPull/internal/services/composer"
	"CoinPull/internal/services/features"
	"CoinPull/internal/services/scoring"
	"CoinPull/pkg/cache"
	applogger "CoinPull/pkg/logger"
)

// SignalConfig controls data fetching and caching of signals.
type SignalConfig struct {
	Interval           domrepo.Timeframe
	KlineLimit         int
	CacheTTL           time.Duration
	SymbolTimeout      time.Duration
	MinBatchConfidence float64
	BatchConcurrency   int
	HistorySize        int
}

func DefaultSignalConfig() SignalConfig {
	return SignalConfig{
		Interval:           domrepo.TF1h,
		KlineLimit:         200,
		CacheTTL:           180 * time.Second,
		SymbolTimeout:      15 * time.Second,
		MinBatchConfidence: 65,
		BatchConcurrency:   4,
		HistorySize:        500,
	}
}

const signalCachePrefix = "signal:"

// SignalGenerator runs the full scoring pipeline for one symbol.
type SignalGenerator struct {
	exchange  domsvc.ExchangeClient
	analyzer  *analysis.Analyzer
	scorer    *scoring.Scorer
	sentiment domsvc.SentimentProvider
	composer  *composer.Composer
	cache     cache.Service
	publisher domrepo.EventPublisher
	metrics   domrepo.Metrics
	logger    *applogger.Logger
	cfg       SignalConfig
	now       func() time.Time

	mu     sync.Mutex
	recent []models.Signal
	next   int
}

var _ domsvc.SignalSource = (*SignalGenerator)(nil)

func NewSignalGenerator(
	exchange domsvc.ExchangeClient,
	analyzer *analysis.Analyzer,
	scorer *scoring.Scorer,
	sentiment domsvc.SentimentProvider,
	comp *composer.Composer,
	c cache.Service,
	publisher domrepo.EventPublisher,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
	cfg SignalConfig,
) *SignalGenerator {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 500
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	return &SignalGenerator{
		exchange:  exchange,
		analyzer:  analyzer,
		scorer:    scorer,
		sentiment: sentiment,
		composer:  comp,
		cache:     c,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Generate returns the cached signal of the current time bucket or computes a fresh one.
func (g *SignalGenerator) Generate(ctx context.Context, symbol string) (models.Signal, error) {
	symbol = strings.ToUpper(symbol)
	key := g.cacheKey(symbol)
	if g.cache != nil {
		if s, ok, err := cache.Fetch[models.Signal](ctx, g.cache, key); err == nil && ok {
			return s, nil
		} else if err != nil {
			g.logger.Warn("signal cache read failed", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	return g.Refresh(ctx, symbol)
}

// Refresh computes a signal bypassing the cache and replaces the cached entry.
func (g *SignalGenerator) Refresh(ctx context.Context, symbol string) (models.Signal, error) {
	symbol = strings.ToUpper(symbol)
	start := time.Now()
	sig, err := g.evaluate(ctx, symbol)
	g.metrics.RecordLatency("signal_generate", time.Since(start).Seconds())
	if err != nil {
		g.metrics.RecordError("signal_generate")
		return models.Signal{}, err
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, g.cacheKey(symbol), sig, g.cfg.CacheTTL); err != nil {
			g.logger.Warn("signal cache write failed", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	if g.publisher != nil {
		if err := g.publisher.PublishSignal(ctx, sig); err != nil {
			g.metrics.RecordError("publish_signal")
			g.logger.Warn("publish signal failed", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	g.metrics.RecordSignal(symbol, sig.Action, sig.Confidence)
	g.remember(sig)

	g.logger.Debug("signal generated",
		applogger.String("symbol", symbol),
		applogger.String("action", string(sig.Action)),
		applogger.Float64("confidence", sig.Confidence),
		applogger.Float64("final_score", sig.FinalScore),
	)
	return sig, nil
}

func (g *SignalGenerator) evaluate(ctx context.Context, symbol string) (models.Signal, error) {
	ctx, cancel := g.symbolContext(ctx)
	defer cancel()

	candles, err := g.exchange.GetKlines(ctx, symbol, string(domrepo.NormalizeTimeframe(string(g.cfg.Interval))), g.cfg.KlineLimit)
	if err != nil {
		return models.Signal{}, models.NewExternalError("exchange", "klines "+symbol, err)
	}

	series := features.Extract(candles)
	snap := g.analyzer.Snapshot(symbol, series)
	sent := g.sentimentFor(ctx, symbol)

	scores := models.CategoryScores{
		Technical:   snap.TechnicalScore,
		Fundamental: g.scorer.Fundamental(symbol, series, snap.Trend),
		Sentiment:   g.scorer.Sentiment(sent),
		Momentum:    g.scorer.Momentum(series),
	}
	sig := g.composer.Compose(symbol, scores, snap.Price, g.now())
	sig.Insufficient = snap.Insufficient
	return sig, nil
}

// sentimentFor prefers symbol news, falls back to the market reading and finally to neutral.
func (g *SignalGenerator) sentimentFor(ctx context.Context, symbol string) models.SentimentResult {
	if g.sentiment == nil {
		return models.NeutralSentiment()
	}
	res, err := g.sentiment.SymbolSentiment(ctx, symbol)
	if err == nil {
		return res
	}
	if !errors.Is(err, models.ErrNoSentimentData) {
		g.logger.Warn("symbol sentiment unavailable", applogger.String("symbol", symbol), applogger.Error(err))
	}
	res, err = g.sentiment.MarketSentiment(ctx)
	if err != nil {
		g.metrics.RecordError("sentiment")
		g.logger.Warn("market sentiment unavailable", applogger.Error(err))
		return models.NeutralSentiment()
	}
	// market fallback carries no symbol headlines
	res.PositiveHeadlines, res.NegativeHeadlines = 0, 0
	return res
}

// Analyze returns the comprehensive technical snapshot for the given interval.
func (g *SignalGenerator) Analyze(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) (models.TechnicalSnapshot, error) {
	ctx, cancel := g.symbolContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = g.cfg.KlineLimit
	}
	symbol = strings.ToUpper(symbol)
	candles, err := g.exchange.GetKlines(ctx, symbol, string(domrepo.NormalizeTimeframe(string(tf))), limit)
	if err != nil {
		return models.TechnicalSnapshot{}, models.NewExternalError("exchange", "klines "+symbol, err)
	}
	return g.analyzer.Comprehensive(symbol, candles), nil
}

// BatchGenerate generates signals concurrently and keeps those at or above
// minConfidence, most confident first. Per-symbol failures are collected.
func (g *SignalGenerator) BatchGenerate(ctx context.Context, symbols []string, minConfidence float64) models.ScanResult {
	if minConfidence <= 0 {
		minConfidence = g.cfg.MinBatchConfidence
	}
	res := g.fanOut(ctx, symbols, g.cfg.BatchConcurrency, func(s models.Signal) bool {
		return s.Confidence >= minConfidence
	})
	return res
}

// fanOut evaluates symbols with bounded concurrency. Failures never abort the batch.
func (g *SignalGenerator) fanOut(ctx context.Context, symbols []string, limit int, keep func(models.Signal) bool) models.ScanResult {
	res := models.ScanResult{StartedAt: g.now(), Errors: map[string]string{}}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for _, sym := range symbols {
		sym := sym
		eg.Go(func() error {
			sig, err := g.Generate(egCtx, sym)
			mu.Lock()
			defer mu.Unlock()
			res.Scanned++
			switch {
			case err != nil:
				res.Failed++
				res.Errors[sym] = err.Error()
			case sig.Insufficient:
				res.Skipped++
			case keep(sig):
				res.Opportunities = append(res.Opportunities, sig)
			}
			return nil
		})
	}
	_ = eg.Wait()

	sort.SliceStable(res.Opportunities, func(i, j int) bool {
		return res.Opportunities[i].Confidence > res.Opportunities[j].Confidence
	})
	res.Duration = g.now().Sub(res.StartedAt)
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res
}

// Statistics summarizes the most recent fresh signals.
func (g *SignalGenerator) Statistics() models.SignalStats {
	g.mu.Lock()
	recent := append([]models.Signal(nil), g.recent...)
	g.mu.Unlock()

	stats := models.SignalStats{Total: len(recent), ConfidenceByAction: map[models.Action]float64{}}
	if len(recent) == 0 {
		return stats
	}
	sums := map[models.Action]float64{}
	counts := map[models.Action]int{}
	total := 0.0
	for _, s := range recent {
		switch s.Action {
		case models.ActionBuy:
			stats.Buy++
		case models.ActionSell:
			stats.Sell++
		default:
			stats.Hold++
		}
		if s.Strength == models.StrengthStrong {
			stats.Strong++
		}
		total += s.Confidence
		sums[s.Action] += s.Confidence
		counts[s.Action]++
	}
	stats.AverageConfidence = total / float64(len(recent))
	for a, sum := range sums {
		stats.ConfidenceByAction[a] = sum / float64(counts[a])
	}
	return stats
}

// ClearCache drops every cached signal.
func (g *SignalGenerator) ClearCache(ctx context.Context) (int, error) {
	if g.cache == nil {
		return 0, nil
	}
	n, err := g.cache.DeleteByPrefix(ctx, signalCachePrefix)
	if err != nil {
		return n, fmt.Errorf("clear signal cache: %w", err)
	}
	return n, nil
}

func (g *SignalGenerator) remember(s models.Signal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.recent) < g.cfg.HistorySize {
		g.recent = append(g.recent, s)
		return
	}
	g.recent[g.next] = s
	g.next = (g.next + 1) % g.cfg.HistorySize
}

// cacheKey buckets by the TTL so entries roll over on bucket boundaries.
func (g *SignalGenerator) cacheKey(symbol string) string {
	ttl := g.cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	bucket := g.now().UnixNano() / int64(ttl)
	return cache.Key(strings.TrimSuffix(signalCachePrefix, ":"), symbol, strconv.FormatInt(bucket, 10))
}

func (g *SignalGenerator) symbolContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.SymbolTimeout > 0 {
		return context.WithTimeout(ctx, g.cfg.SymbolTimeout)
	}
	return context.WithCancel(ctx)
}
