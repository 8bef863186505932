package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"gardencast/internal/errorutil"
	"gardencast/internal/logger"
)

// maxErrorBody limits how much of a failed response is kept on HTTPError
const maxErrorBody = 512

// request performs one bounded GET through the circuit breaker and returns the
// raw body of a 2xx response. It never retries; see Retry.
func (w *WeatherClient) request(ctx context.Context, operation, endpoint string, params map[string]string) ([]byte, error) {
	body, err := w.breaker.Execute(func() (interface{}, error) {
		return w.do(ctx, operation, endpoint, params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = errorutil.NewNetworkError(operation, endpoint, fmt.Errorf("%w: %v", errorutil.ErrCircuitOpen, err))
		}
		errorutil.LogNetworkError(logger.Get().Logger, operation, err)
		return nil, err
	}
	return body.([]byte), nil
}

func (w *WeatherClient) do(ctx context.Context, operation, endpoint string, params map[string]string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	query := make(map[string]string, len(params)+1)
	for k, v := range params {
		query[k] = v
	}
	query["appid"] = w.apiKey

	resp, err := w.client.R().
		SetContext(callCtx).
		SetQueryParams(query).
		Get(endpoint)
	if err != nil {
		return nil, errorutil.ClassifyTransport(ctx, operation, endpoint, w.timeout, unwrapURLError(err))
	}

	if !resp.IsSuccess() {
		return nil, parseHTTPError(operation, endpoint, resp)
	}
	return resp.Body(), nil
}

// parseHTTPError builds an HTTPError, keeping the provider message when the body carries one
func parseHTTPError(operation, endpoint string, resp *resty.Response) error {
	body := resp.Body()

	// cod arrives as a number or a string depending on the endpoint, so only message is decoded
	var apiError struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &apiError)

	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = truncateUTF8(text, maxErrorBody) + "..."
	}

	return &errorutil.HTTPError{
		Operation:  operation,
		URL:        endpoint,
		StatusCode: resp.StatusCode(),
		Message:    apiError.Message,
		Body:       text,
	}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// isBreakerSuccess keeps deterministic failures (404, bad payloads, caller
// cancellation) from tripping the breaker
func isBreakerSuccess(err error) bool {
	return err == nil || !errorutil.IsTransient(err)
}

// unwrapURLError drops the *url.Error wrapper, whose message carries the full
// request URL including the appid
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

// redactURL strips the query string from a request URL before it is logged
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
