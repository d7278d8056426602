package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"CoinPull/internal/domain/models"
	xhttp "CoinPull/pkg/http"

	"github.com/labstack/echo/v4"
)

func (h *Handler) Positions(c echo.Context) error {
	pos := h.svc.Positions.Positions()
	return xhttp.ListResponse(c, pos, int64(len(pos)))
}

func (h *Handler) Position(c echo.Context) error {
	req := &models.PositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, err := h.svc.Positions.Position(strings.ToUpper(req.Symbol))
	if err != nil {
		return h.fail(c, "position", err)
	}
	return xhttp.SuccessResponse(c, p)
}

// ClosePosition closes a position manually with an opposite market order.
func (h *Handler) ClosePosition(c echo.Context) error {
	req := &models.PositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	trade, err := h.svc.Positions.Close(c.Request().Context(), strings.ToUpper(req.Symbol), models.ExitManual)
	if err != nil {
		return h.fail(c, "close position", err)
	}
	return xhttp.SuccessResponse(c, trade)
}

func (h *Handler) Trades(c echo.Context) error {
	f, verr := h.tradeFilter(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	trades, err := h.svc.History.ListTrades(c.Request().Context(), f)
	if err != nil {
		return h.fail(c, "trades", err)
	}
	return xhttp.ListResponse(c, trades, int64(len(trades)))
}

// ExportTrades streams the filtered trade history as CSV.
func (h *Handler) ExportTrades(c echo.Context) error {
	f, verr := h.tradeFilter(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var buf bytes.Buffer
	if _, err := h.svc.History.Export(c.Request().Context(), f, &buf); err != nil {
		return h.fail(c, "export trades", err)
	}
	name := fmt.Sprintf("trades_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) tradeFilter(c echo.Context) (models.TradeFilter, []xhttp.ValidationError) {
	req := &models.TradesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return models.TradeFilter{}, verr
	}
	return models.TradeFilter{
		Symbol: strings.ToUpper(req.Symbol),
		Status: models.TradeStatus(req.Status),
		From:   xhttp.ParseTimeDefault(req.From, time.Time{}),
		To:     xhttp.ParseTimeDefault(req.To, time.Time{}),
		Limit:  req.Limit,
	}, nil
}

func (h *Handler) Performance(c echo.Context) error {
	req := &models.PerformanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sum, err := h.svc.History.Performance(c.Request().Context(), req.Days)
	if err != nil {
		return h.fail(c, "performance", err)
	}
	return xhttp.SuccessResponse(c, sum)
}

func (h *Handler) TradingStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.svc.Trading.Status())
}

func (h *Handler) StartTrading(c echo.Context) error {
	h.svc.Trading.Start()
	return xhttp.SuccessResponse(c, h.svc.Trading.Status())
}

func (h *Handler) StopTrading(c echo.Context) error {
	h.svc.Trading.Stop()
	return xhttp.SuccessResponse(c, h.svc.Trading.Status())
}

// RunCycle runs one trading cycle now, outside the schedule.
func (h *Handler) RunCycle(c echo.Context) error {
	report, err := h.svc.Trading.RunCycle(c.Request().Context())
	if err != nil {
		return h.fail(c, "trading cycle", err)
	}
	return xhttp.SuccessResponse(c, report)
}
