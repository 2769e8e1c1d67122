// Package source is the HTTP client for the raw telemetry range endpoint.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/klauspost/compress/gzhttp"
)

// DataPath is the range query endpoint relative to the base URL.
const DataPath = "/source/data"

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// Client implements pipeline.SeriesFetcher against the source REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a source client. The timeout covers the whole request
// including reading the body.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// FetchSeries queries [w.Start, w.End) for vars and returns the rows as a
// RawSeries. An empty response is an empty series.
func (c *Client) FetchSeries(ctx context.Context, w domain.Window, vars []domain.Variable) (domain.RawSeries, error) {
	for _, v := range vars {
		if !v.Valid() {
			return domain.RawSeries{}, fmt.Errorf("%w: %q", domain.ErrInvalidVariable, v)
		}
	}

	params := url.Values{
		"start": {w.Start.UTC().Format(TimestampLayout)},
		"end":   {w.End.UTC().Format(TimestampLayout)},
	}
	for _, v := range vars {
		params.Add("variables", string(v))
	}
	fullURL := c.baseURL + DataPath + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.RawSeries{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawSeries{}, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.RawSeries{}, fmt.Errorf("%w: status %d: %s",
			domain.ErrSourceUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RawSeries{}, fmt.Errorf("%w: read response: %w", domain.ErrSourceUnavailable, err)
	}
	samples, err := DecodeRows(body, vars)
	if err != nil {
		return domain.RawSeries{}, err
	}

	series, err := domain.NewRawSeries(w, vars, samples)
	if err != nil {
		return domain.RawSeries{}, err
	}
	c.logger.Debug("source rows received", "rows", series.Len(), "window_start", w.Start, "window_end", w.End)
	return series, nil
}
