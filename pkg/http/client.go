package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-retryablehttp"
)

// NewRetryableClient returns a http client that retries failed requests up to retries times
// with the retryablehttp default backoff. Every request carries the request id found in its
// context. logger may be nil.
func NewRetryableClient(retries int, timeout time.Duration, logger *slog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil
	if logger != nil {
		rc.Logger = logger
	}
	rc.HTTPClient.Timeout = timeout

	return &http.Client{
		Transport: &requestIDTransport{
			base: &retryablehttp.RoundTripper{Client: rc},
		},
	}
}

type requestIDTransport struct {
	base http.RoundTripper
}

// RoundTrip adds the request id header when present in the request context
func (t *requestIDTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if middleware.GetReqID(r.Context()) != "" {
		r = r.Clone(r.Context())
		addRequestIDToHeader(r.Context(), r)
	}
	return t.base.RoundTrip(r)
}

// addRequestIDToHeader adds headers to request
func addRequestIDToHeader(ctx context.Context, r *http.Request) {
	requestID := middleware.GetReqID(ctx)
	if requestID == "" || r.Header.Get(middleware.RequestIDHeader) != "" {
		return
	}
	r.Header.Add(middleware.RequestIDHeader, requestID)
}
