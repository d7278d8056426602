package metrics

import (
	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coinpull"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signals       *prometheus.CounterVec
	confidence    *prometheus.HistogramVec
	tradesOpened  *prometheus.CounterVec
	tradesClosed  *prometheus.CounterVec
	pnl           prometheus.Histogram
	openPositions prometheus.Gauge
	weights       *prometheus.GaugeVec
	scan          *prometheus.CounterVec
	messagesSent  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

var _ domrepo.Metrics = (*Recorder)(nil)

// New registers the collectors on reg, or on the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Generated signals by action",
		}, []string{"symbol", "action"}),
		confidence: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "signal_confidence",
			Help:      "Confidence of generated signals",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 95},
		}, []string{"action"}),
		tradesOpened: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_opened_total",
			Help:      "Opened positions by side",
		}, []string{"symbol", "side"}),
		tradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_closed_total",
			Help:      "Closed positions by exit reason",
		}, []string{"symbol", "reason"}),
		pnl: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trade_pnl_pct",
			Help:      "Realized P&L of closed trades in percent",
			Buckets:   []float64{-20, -10, -8, -5, -2, 0, 2, 5, 10, 15, 25},
		}),
		openPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Currently open positions",
		}),
		weights: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indicator_weight",
			Help:      "Current category weight",
		}, []string{"category"}),
		scan: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_symbols_total",
			Help:      "Symbols visited by the opportunity scanner by outcome",
		}, []string{"outcome"}),
		messagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of messages sent to backend",
		}, []string{"backend", "kind"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors encountered",
		}, []string{"type"}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_price",
			Help:      "Last recorded price for a symbol",
		}, []string{"symbol"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordSignal(symbol string, action models.Action, confidence float64) {
	r.signals.WithLabelValues(symbol, string(action)).Inc()
	r.confidence.WithLabelValues(string(action)).Observe(confidence)
}

func (r *Recorder) RecordTradeOpened(symbol string, side models.Side) {
	r.tradesOpened.WithLabelValues(symbol, string(side)).Inc()
}

func (r *Recorder) RecordTradeClosed(symbol string, reason models.ExitReason, pnlPct float64) {
	r.tradesClosed.WithLabelValues(symbol, string(reason)).Inc()
	r.pnl.Observe(pnlPct)
}

func (r *Recorder) RecordOpenPositions(n int) {
	r.openPositions.Set(float64(n))
}

// RecordWeights publishes one gauge per category.
func (r *Recorder) RecordWeights(w models.WeightsConfig) {
	r.weights.WithLabelValues(string(models.CategoryTechnical)).Set(w.Technical)
	r.weights.WithLabelValues(string(models.CategoryFundamental)).Set(w.Fundamental)
	r.weights.WithLabelValues(string(models.CategorySentiment)).Set(w.Sentiment)
	r.weights.WithLabelValues(string(models.CategoryMomentum)).Set(w.Momentum)
}

func (r *Recorder) RecordScan(scanned, skipped, failed int) {
	r.scan.WithLabelValues("scanned").Add(float64(scanned))
	r.scan.WithLabelValues("skipped").Add(float64(skipped))
	r.scan.WithLabelValues("failed").Add(float64(failed))
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, kind string) {
	r.messagesSent.WithLabelValues(backend, kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
