package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"CoinPull/pkg/config"
	xhttp "CoinPull/pkg/http"
)

const (
	defaultAttempts = 3
	backoffBase     = 50 * time.Millisecond
	backoffMax      = time.Second
)

// HTTPServiceBase is the shared client of remote analytics services: one base
// URL, JSON POST bodies and bounded retries.
type HTTPServiceBase struct {
	baseURL  string
	attempts int
	client   *xhttp.Client
}

func NewHTTPServiceBase(cfg *config.Config) *HTTPServiceBase {
	timeout := cfg.News.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	attempts := cfg.News.Retries
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	return &HTTPServiceBase{
		baseURL:  strings.TrimRight(cfg.News.ServiceURL, "/"),
		attempts: attempts,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// PostJSON posts payload to path once and decodes the JSON answer into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload, dest interface{}) error {
	if b.baseURL == "" {
		return errors.New("analytics service url not configured")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     b.baseURL + path,
		Headers: map[string]string{"Accept": "application/json"},
		Body:    payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry retries transport failures, 429 and 5xx answers with
// doubling backoff. Other client errors are returned at once.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload, dest interface{}) error {
	delay := backoffBase
	var err error
	for attempt := 1; ; attempt++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil || attempt >= b.attempts || !retryable(err) {
			return err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if delay *= 2; delay > backoffMax {
			delay = backoffMax
		}
	}
}

func retryable(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled)
}
