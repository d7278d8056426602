package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func corsServer(origins ...string) *echo.Echo {
	e := echo.New()
	e.Use(CORS(CORSConfig{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		AllowHeaders:  []string{echo.HeaderContentType},
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	}))
	e.GET("/api/trades/export", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}

func TestCORS_AllowedOrigin(t *testing.T) {
	e := corsServer("https://dash.example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/trades/export", nil)
	req.Header.Set(echo.HeaderOrigin, "https://dash.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://dash.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, echo.HeaderContentDisposition, rec.Header().Get(echo.HeaderAccessControlExposeHeaders))
}

func TestCORS_ForeignOrigin(t *testing.T) {
	e := corsServer("https://dash.example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/trades/export", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestCORS_Preflight(t *testing.T) {
	e := corsServer("*")

	req := httptest.NewRequest(http.MethodOptions, "/api/trades/export", nil)
	req.Header.Set(echo.HeaderOrigin, "https://dash.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "GET, POST", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
}
