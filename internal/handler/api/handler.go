package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	"CoinPull/internal/service/ratelimit"
	"CoinPull/internal/usecase"
	xhttp "CoinPull/pkg/http"
	applogger "CoinPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Collaborators of the HTTP API. The use cases satisfy them.
type (
	SignalService interface {
		Generate(ctx context.Context, symbol string) (models.Signal, error)
		Refresh(ctx context.Context, symbol string) (models.Signal, error)
		BatchGenerate(ctx context.Context, symbols []string, minConfidence float64) models.ScanResult
		Analyze(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) (models.TechnicalSnapshot, error)
		Statistics() models.SignalStats
		ClearCache(ctx context.Context) (int, error)
	}

	ScanService interface {
		Scan(ctx context.Context, limit int) (models.ScanResult, error)
	}

	MarketService interface {
		Overview(ctx context.Context) (models.MarketOverview, error)
	}

	SentimentService interface {
		MarketSentiment(ctx context.Context) (models.SentimentResult, error)
		SymbolSentiment(ctx context.Context, symbol string) (models.SentimentResult, error)
	}

	PositionService interface {
		Positions() []models.Position
		Position(symbol string) (models.Position, error)
		Close(ctx context.Context, symbol string, reason models.ExitReason) (models.Trade, error)
	}

	HistoryService interface {
		ListTrades(ctx context.Context, f models.TradeFilter) ([]models.Trade, error)
		Performance(ctx context.Context, days int) (models.PerformanceSummary, error)
		Export(ctx context.Context, f models.TradeFilter, w io.Writer) (int, error)
	}

	WeightsSource interface {
		Weights() models.WeightsConfig
	}

	TradingControl interface {
		Start()
		Stop()
		Status() usecase.TraderStatus
		RunCycle(ctx context.Context) (models.CycleReport, error)
	}

	// ConnectionStatus reports the price stream state for /health.
	ConnectionStatus interface {
		IsConnected() bool
	}
)

// Services bundles every collaborator of the handler.
type Services struct {
	Signals   SignalService
	Scanner   ScanService
	Market    MarketService
	Sentiment SentimentService
	// Topics is nil when the news provider cannot rank topics.
	Topics    usecase.TopicSource
	Positions PositionService
	History   HistoryService
	Weights   WeightsSource
	Trading   TradingControl
	Stream    ConnectionStatus
}

type Option func(*Handler)

// WithRateLimit caps each client at burst requests refilled at perSecond.
func WithRateLimit(burst, perSecond float64) Option {
	return func(h *Handler) {
		h.burst = burst
		h.perSecond = perSecond
	}
}

// WithLive marks the handler as serving a live (not paper) account.
func WithLive(live bool) Option {
	return func(h *Handler) { h.live = live }
}

// Handler serves the trading assistant API under /api.
type Handler struct {
	svc     Services
	logger  *applogger.Logger
	limiter *ratelimit.Limiter
	started time.Time

	burst     float64
	perSecond float64
	live      bool
}

var _ xhttp.Handler = (*Handler)(nil)

func NewHandler(svc Services, logger *applogger.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = applogger.Nop()
	}
	h := &Handler{
		svc:       svc,
		logger:    logger,
		limiter:   ratelimit.New(),
		started:   time.Now(),
		burst:     20,
		perSecond: 5,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api", h.rateLimit)

	g.GET("/signals/stats", h.SignalStats)
	g.POST("/signals/batch", h.BatchSignals)
	g.DELETE("/signals/cache", h.ClearSignalCache)
	g.GET("/signals/:symbol", h.Signal)
	g.GET("/analysis/:symbol", h.Analysis)
	g.GET("/scan", h.Scan)

	g.GET("/market/overview", h.MarketOverview)
	g.GET("/sentiment", h.Sentiment)
	g.GET("/sentiment/trending", h.Trending)
	g.GET("/weights", h.Weights)

	g.GET("/positions", h.Positions)
	g.GET("/positions/:symbol", h.Position)
	g.DELETE("/positions/:symbol", h.ClosePosition)

	g.GET("/trades", h.Trades)
	g.GET("/trades/export", h.ExportTrades)
	g.GET("/performance", h.Performance)

	g.GET("/trading/status", h.TradingStatus)
	g.POST("/trading/start", h.StartTrading)
	g.POST("/trading/stop", h.StopTrading)
	g.POST("/trading/cycle", h.RunCycle)
}

// Health reports liveness with the trading and stream state.
func (h *Handler) Health(c echo.Context) error {
	body := map[string]interface{}{
		"status":     "ok",
		"uptime_sec": int64(time.Since(h.started).Seconds()),
		"live":       h.live,
	}
	if h.svc.Trading != nil {
		st := h.svc.Trading.Status()
		body["trading_enabled"] = st.Enabled
		body["open_positions"] = st.OpenPositions
	}
	if h.svc.Stream != nil {
		body["price_stream_connected"] = h.svc.Stream.IsConnected()
	}
	return xhttp.SuccessResponse(c, body)
}

func (h *Handler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.perSecond > 0 && !h.limiter.Allow(c.RealIP(), h.burst, h.perSecond) {
			h.logger.Warn("api rate limited", applogger.String("remote", c.RealIP()), applogger.String("route", c.Path()))
			return xhttp.TooManyRequestsResponse(c)
		}
		return next(c)
	}
}

// fail maps domain errors onto AppErrors and writes them.
func (h *Handler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("api "+op+" failed", applogger.Error(err))
	} else {
		h.logger.Debug("api "+op+" rejected", applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var (
		appErr   *xhttp.AppError
		orderErr *models.OrderExecutionError
		extErr   *models.ExternalServiceError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &orderErr):
		switch orderErr.Reason {
		case models.ReasonPositionExists, models.ReasonMaxPositions, models.ReasonTradingDisabled:
			return xhttp.ConflictError(err.Error()).WithParam("reason", orderErr.Reason).WithError(err)
		case models.ReasonPriceUnavailable, models.ReasonBalanceUnavailable, models.ReasonOrderRejected:
			return xhttp.UpstreamError(err.Error()).WithParam("reason", orderErr.Reason).WithError(err)
		default:
			return xhttp.BadRequestError(err.Error()).WithParam("reason", orderErr.Reason).WithError(err)
		}
	case errors.Is(err, models.ErrPositionNotFound), errors.Is(err, models.ErrNoSentimentData):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrPositionExists), errors.Is(err, models.ErrMaxPositions),
		errors.Is(err, models.ErrTradingDisabled), errors.Is(err, usecase.ErrCycleRunning):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.As(err, &extErr):
		return xhttp.UpstreamError(err.Error()).WithParam("service", extErr.Service).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}
