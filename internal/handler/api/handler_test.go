package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	"CoinPull/internal/usecase"
	xhttp "CoinPull/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSignals struct {
	refreshed []string
	err       error
}

func (f *fakeSignals) Generate(_ context.Context, symbol string) (models.Signal, error) {
	if f.err != nil {
		return models.Signal{}, f.err
	}
	return models.Signal{Symbol: symbol, Action: models.ActionBuy, Confidence: 72}, nil
}

func (f *fakeSignals) Refresh(_ context.Context, symbol string) (models.Signal, error) {
	f.refreshed = append(f.refreshed, symbol)
	return models.Signal{Symbol: symbol, Action: models.ActionHold, Confidence: 40}, nil
}

func (f *fakeSignals) BatchGenerate(_ context.Context, symbols []string, _ float64) models.ScanResult {
	return models.ScanResult{Scanned: len(symbols)}
}

func (f *fakeSignals) Analyze(_ context.Context, _ string, _ domrepo.Timeframe, _ int) (models.TechnicalSnapshot, error) {
	return models.TechnicalSnapshot{}, models.ErrInsufficientData
}

func (f *fakeSignals) Statistics() models.SignalStats { return models.SignalStats{Total: 3} }

func (f *fakeSignals) ClearCache(context.Context) (int, error) { return 2, nil }

type fakePositions struct {
	closeErr error
}

func (f *fakePositions) Positions() []models.Position {
	return []models.Position{{Symbol: "BTCUSDT", Side: models.SideLong}}
}

func (f *fakePositions) Position(symbol string) (models.Position, error) {
	return models.Position{}, fmt.Errorf("%s: %w", symbol, models.ErrPositionNotFound)
}

func (f *fakePositions) Close(_ context.Context, symbol string, reason models.ExitReason) (models.Trade, error) {
	if f.closeErr != nil {
		return models.Trade{}, f.closeErr
	}
	return models.Trade{Symbol: symbol, ExitReason: reason, Status: models.TradeClosed}, nil
}

type fakeHistory struct{}

func (fakeHistory) ListTrades(context.Context, models.TradeFilter) ([]models.Trade, error) {
	return []models.Trade{{Symbol: "ETHUSDT"}}, nil
}

func (fakeHistory) Performance(context.Context, int) (models.PerformanceSummary, error) {
	return models.PerformanceSummary{}, nil
}

func (fakeHistory) Export(_ context.Context, _ models.TradeFilter, w io.Writer) (int, error) {
	_, err := io.WriteString(w, "symbol,side\nETHUSDT,LONG\n")
	return 1, err
}

type filterHistory struct {
	fakeHistory
	got []models.TradeFilter
}

func (f *filterHistory) ListTrades(_ context.Context, tf models.TradeFilter) ([]models.Trade, error) {
	f.got = append(f.got, tf)
	return nil, nil
}

type fakeTrading struct{ enabled bool }

func (f *fakeTrading) Start()                       { f.enabled = true }
func (f *fakeTrading) Stop()                        { f.enabled = false }
func (f *fakeTrading) Status() usecase.TraderStatus { return usecase.TraderStatus{Enabled: f.enabled} }
func (f *fakeTrading) RunCycle(context.Context) (models.CycleReport, error) {
	return models.CycleReport{}, usecase.ErrCycleRunning
}

type fakeWeights struct{}

func (fakeWeights) Weights() models.WeightsConfig { return models.DefaultWeights() }

func newTestServer(t *testing.T, svc Services, opts ...Option) *echo.Echo {
	t.Helper()
	e := echo.New()
	NewHandler(svc, nil, opts...).RegisterRoutes(e)
	return e
}

func defaultServices() Services {
	return Services{
		Signals:   &fakeSignals{},
		Positions: &fakePositions{},
		History:   fakeHistory{},
		Trading:   &fakeTrading{},
		Weights:   fakeWeights{},
	}
}

func do(e *echo.Echo, method, target string, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	list, ok := body["data"].([]interface{})
	require.True(t, ok, "data is not a list: %v", body["data"])
	require.NotEmpty(t, list)
	return list[0].(map[string]interface{})["code"].(string)
}

func TestSignal_UppercasesAndServesCached(t *testing.T) {
	e := newTestServer(t, defaultServices())
	rec := do(e, http.MethodGet, "/api/signals/btcusdt", "")

	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "BTCUSDT", data["symbol"])
	assert.Equal(t, "BUY", data["action"])
}

func TestSignal_RefreshBypassesCache(t *testing.T) {
	sig := &fakeSignals{}
	svc := defaultServices()
	svc.Signals = sig
	e := newTestServer(t, svc)

	rec := do(e, http.MethodGet, "/api/signals/ETHUSDT?refresh=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ETHUSDT"}, sig.refreshed)
}

func TestSignal_ValidationAndUpstreamErrors(t *testing.T) {
	svc := defaultServices()
	svc.Signals = &fakeSignals{err: models.NewExternalError("exchange", "klines", errors.New("timeout"))}
	e := newTestServer(t, svc)

	rec := do(e, http.MethodGet, "/api/signals/BTC", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/signals/BTCUSDT", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "ERR_UPSTREAM", errorCode(t, rec))
}

func TestBatchSignals(t *testing.T) {
	e := newTestServer(t, defaultServices())
	rec := do(e, http.MethodPost, "/api/signals/batch", `{"symbols":["btcusdt","ethusdt"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["data"].(map[string]interface{})["scanned"])

	rec = do(e, http.MethodPost, "/api/signals/batch", `{"symbols":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysis_InsufficientData(t *testing.T) {
	e := newTestServer(t, defaultServices())
	rec := do(e, http.MethodGet, "/api/analysis/BTCUSDT?interval=4h", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_BAD_REQUEST", errorCode(t, rec))
}

func TestPositions(t *testing.T) {
	e := newTestServer(t, defaultServices())

	rec := do(e, http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["data"].(map[string]interface{})["total"])

	rec = do(e, http.MethodGet, "/api/positions/SOLUSDT", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ERR_NOT_FOUND", errorCode(t, rec))

	rec = do(e, http.MethodDelete, "/api/positions/btcusdt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "BTCUSDT", data["symbol"])
}

func TestClosePosition_OrderFailure(t *testing.T) {
	svc := defaultServices()
	svc.Positions = &fakePositions{closeErr: models.NewOrderError(models.ReasonOrderRejected, "BTCUSDT", errors.New("rejected"))}
	e := newTestServer(t, svc)

	rec := do(e, http.MethodDelete, "/api/positions/BTCUSDT", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExportTrades(t *testing.T) {
	e := newTestServer(t, defaultServices())
	rec := do(e, http.MethodGet, "/api/trades/export?symbol=ethusdt", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")
	assert.Equal(t, "symbol,side\nETHUSDT,LONG\n", rec.Body.String())

	rec = do(e, http.MethodGet, "/api/trades?status=pending", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrades_Filter(t *testing.T) {
	hist := &filterHistory{}
	svc := defaultServices()
	svc.History = hist
	e := newTestServer(t, svc)

	rec := do(e, http.MethodGet, "/api/trades?symbol=ethusdt&status=CLOSED&limit=20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, hist.got, 1)
	assert.Equal(t, "ETHUSDT", hist.got[0].Symbol)
	assert.Equal(t, models.TradeClosed, hist.got[0].Status)
	assert.Equal(t, 20, hist.got[0].Limit)

	rec = do(e, http.MethodGet, "/api/trades?status=pending", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_ONEOF", errorCode(t, rec))

	rec = do(e, http.MethodGet, "/api/trades/export?symbol=ETH", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_SYMBOL", errorCode(t, rec))
	assert.Len(t, hist.got, 1)
}

func TestTradingControl(t *testing.T) {
	e := newTestServer(t, defaultServices())

	rec := do(e, http.MethodPost, "/api/trading/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["data"].(map[string]interface{})["enabled"])

	rec = do(e, http.MethodPost, "/api/trading/stop", "")
	assert.Equal(t, false, decode(t, rec)["data"].(map[string]interface{})["enabled"])

	rec = do(e, http.MethodPost, "/api/trading/cycle", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ERR_CONFLICT", errorCode(t, rec))
}

func TestTrending_WithoutTopicSource(t *testing.T) {
	e := newTestServer(t, defaultServices())
	rec := do(e, http.MethodGet, "/api/sentiment/trending", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	e := newTestServer(t, defaultServices(), WithRateLimit(2, 0.001))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/weights", "").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodGet, "/api/weights", "").Code)
	// health is outside the limited group
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health", "").Code)
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.NewOrderError(models.ReasonMaxPositions, "X", nil), http.StatusConflict},
		{models.NewOrderError(models.ReasonLotSize, "X", nil), http.StatusBadRequest},
		{models.NewOrderError(models.ReasonPriceUnavailable, "X", errors.New("down")), http.StatusBadGateway},
		{fmt.Errorf("wrap: %w", models.ErrPositionExists), http.StatusConflict},
		{models.ErrNoSentimentData, http.StatusNotFound},
		{xhttp.BadRequestError("bad"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, toAppError(tt.err).Status, tt.err.Error())
	}
}
