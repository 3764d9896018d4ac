package services

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/vinyl/internal/metrics"
)

// bearerTransport sets the Authorization header from a [TokenFunc] using the request's context.
type bearerTransport struct {
	token TokenFunc
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.token(req.Context())
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, fmt.Errorf("no access token: %w", err)
	}

	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+tok)
	return t.base.RoundTrip(r)
}

// statusTransport counts responses per endpoint and reports 401s.
type statusTransport struct {
	basePath       string
	base           http.RoundTripper
	metrics        *metrics.Recorder
	onUnauthorized func()
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	endpoint := t.endpoint(req)
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.metrics.ObserveAPI(endpoint, 0)
		return nil, err
	}

	t.metrics.ObserveAPI(endpoint, resp.StatusCode)
	if resp.StatusCode == http.StatusUnauthorized && t.onUnauthorized != nil {
		t.onUnauthorized()
	}
	return resp, nil
}

func (t *statusTransport) endpoint(req *http.Request) string {
	return strings.Trim(strings.TrimPrefix(req.URL.Path, t.basePath), "/")
}
