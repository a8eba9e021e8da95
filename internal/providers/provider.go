// Package providers contains fetchers for the upstream financial data
// sources. Each fetcher returns a FetchResult that the series cache is
// agnostic about: a numeric value, a source label, and optional structured
// extras. Providers carry their own HTTP timeouts and fail fast; retry
// policy lives in the batch callers.
package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// FetchResult is the payload a fetch function hands to the series cache.
// A nil Value is recorded as a no-data refresh. TokenExpired marks an
// expired-credential upstream response; it is a sentinel result, not an
// error, so operators see the condition in the data instead of losing
// the refresh.
type FetchResult struct {
	Value        *float64
	Source       string
	Params       map[string]any
	Data         map[string]any
	TokenExpired bool
}

// FetchFunc produces a fresh value for one series or fails.
type FetchFunc func(ctx context.Context) (*FetchResult, error)

// Float returns a pointer to v, for building FetchResult values.
func Float(v float64) *float64 { return &v }

// getJSON performs a GET request and hands the body to the caller when the
// response status is 200. Non-2xx statuses are returned as errors with the
// status code preserved for sentinel handling.
func getJSON(ctx context.Context, client *http.Client, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return body, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}
