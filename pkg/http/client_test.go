package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			assert.Equal(t, defaultUserAgent, r.UserAgent())
			assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
			_, _ = io.WriteString(w, `{"price":"101.5"}`)
		case "/echo":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			b, _ := io.ReadAll(r.Body)
			_, _ = w.Write(b)
		default:
			w.WriteHeader(http.StatusTeapot)
			_, _ = io.WriteString(w, `{"code":700002,"msg":"Signature for this request is not valid."}`)
		}
	}))
	defer srv.Close()

	c := NewClient()
	ctx := context.Background()

	var out struct {
		Price string `json:"price"`
	}
	err := c.SendAndParse(ctx, &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL + "/json",
		QueryParams: map[string][]string{"symbol": {"BTCUSDT"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "101.5", out.Price)

	var raw []byte
	err = c.SendAndParse(ctx, &RequestOptions{Method: MethodPost, URL: srv.URL + "/echo", Body: map[string]int{"n": 1}}, &raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(raw))

	err = c.SendAndParse(ctx, &RequestOptions{Method: MethodGet, URL: srv.URL + "/missing"}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTeapot, se.StatusCode)
	assert.Contains(t, se.Error(), "Signature")
}

func TestClient_DoKeepsErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "feedbot", r.UserAgent())
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "bad")
	}))
	defer srv.Close()

	resp, err := NewClient(WithUserAgent("feedbot")).Do(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "bad", string(resp.Body))
}
