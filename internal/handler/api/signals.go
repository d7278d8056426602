package api

import (
	"strings"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	xhttp "CoinPull/pkg/http"

	"github.com/labstack/echo/v4"
)

// Signal returns the cached signal for a symbol, or a fresh one with ?refresh=true.
func (h *Handler) Signal(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := strings.ToUpper(req.Symbol)
	ctx := c.Request().Context()

	var (
		sig models.Signal
		err error
	)
	if req.Refresh {
		sig, err = h.svc.Signals.Refresh(ctx, symbol)
	} else {
		sig, err = h.svc.Signals.Generate(ctx, symbol)
	}
	if err != nil {
		return h.fail(c, "signal", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	return xhttp.SuccessResponse(c, sig)
}

func (h *Handler) BatchSignals(c echo.Context) error {
	req := &models.BatchSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbols := make([]string, len(req.Symbols))
	for i, s := range req.Symbols {
		symbols[i] = strings.ToUpper(s)
	}
	return xhttp.SuccessResponse(c, h.svc.Signals.BatchGenerate(c.Request().Context(), symbols, req.MinConfidence))
}

func (h *Handler) SignalStats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.svc.Signals.Statistics())
}

func (h *Handler) ClearSignalCache(c echo.Context) error {
	n, err := h.svc.Signals.ClearCache(c.Request().Context())
	if err != nil {
		return h.fail(c, "clear signal cache", err)
	}
	return xhttp.SuccessResponse(c, map[string]int{"cleared": n})
}

// Analysis returns the full technical snapshot of a symbol.
func (h *Handler) Analysis(c echo.Context) error {
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.svc.Signals.Analyze(c.Request().Context(), strings.ToUpper(req.Symbol), domrepo.NormalizeTimeframe(req.Interval), req.Limit)
	if err != nil {
		return h.fail(c, "analysis", err)
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *Handler) Scan(c echo.Context) error {
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.Scanner.Scan(c.Request().Context(), req.Limit)
	if err != nil {
		return h.fail(c, "scan", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) MarketOverview(c echo.Context) error {
	ov, err := h.svc.Market.Overview(c.Request().Context())
	if err != nil {
		return h.fail(c, "market overview", err)
	}
	return xhttp.SuccessResponse(c, ov)
}

// Sentiment returns the market reading, or the symbol reading with ?symbol=.
func (h *Handler) Sentiment(c echo.Context) error {
	req := &models.SentimentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	var (
		res models.SentimentResult
		err error
	)
	if req.Symbol != "" {
		res, err = h.svc.Sentiment.SymbolSentiment(ctx, strings.ToUpper(req.Symbol))
	} else {
		res, err = h.svc.Sentiment.MarketSentiment(ctx)
	}
	if err != nil {
		return h.fail(c, "sentiment", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) Trending(c echo.Context) error {
	req := &models.TrendingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.svc.Topics == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("trending topics are not available for this news provider"))
	}
	topics, err := h.svc.Topics.TrendingTopics(c.Request().Context(), req.Top)
	if err != nil {
		return h.fail(c, "trending", err)
	}
	return xhttp.ListResponse(c, topics, int64(len(topics)))
}

func (h *Handler) Weights(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.svc.Weights.Weights())
}
