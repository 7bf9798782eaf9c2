// Package upstream is the HTTP transport shared by the source adapters. It
// paces requests, applies a per-request timeout chosen by the caller and
// classifies every failure as domain.ErrTransport.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "civic-data-etl/1.0"
	// Grants.gov extracts are tens of megabytes; this bounds a misbehaving server.
	defaultMaxBodyBytes = 1 << 30
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return domain.ErrTransport
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client issues rate-limited GET requests against one upstream target.
type Client struct {
	target       string
	httpClient   *http.Client
	limiter      *rate.Limiter
	userAgent    string
	maxBodyBytes int64
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its Timeout should be
// zero; timeouts are applied per request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) { c.maxBodyBytes = n }
}

// NewClient creates a client for target (used as the metrics label). A
// ratePerSecond of zero or less disables pacing.
func NewClient(target string, ratePerSecond float64, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Client {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	c := &Client{
		target:       target,
		httpClient:   &http.Client{},
		limiter:      rate.NewLimiter(limit, 1),
		userAgent:    defaultUserAgent,
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       logger,
		metrics:      metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches rawURL with query appended, bounded by timeout. Non-2xx
// responses return a *StatusError; network failures and timeouts wrap
// domain.ErrTransport.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, timeout time.Duration) (*Response, error) {
	fullURL, err := withQuery(rawURL, query)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", domain.ErrTransport, err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("transport_error", start)
		return nil, fmt.Errorf("%w: GET %s: %w", domain.ErrTransport, redact(fullURL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		c.observe("transport_error", start)
		return nil, fmt.Errorf("%w: read body of %s: %w", domain.ErrTransport, redact(fullURL), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe("http_error", start)
		return nil, &StatusError{URL: redact(fullURL), StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	c.observe("success", start)
	c.logger.Debug("upstream request complete",
		"target", c.target,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) observe(outcome string, start time.Time) {
	c.metrics.UpstreamRequests.WithLabelValues(c.target, outcome).Inc()
	c.metrics.UpstreamDuration.WithLabelValues(c.target).Observe(time.Since(start).Seconds())
}

func withQuery(rawURL string, query url.Values) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact drops the query string, which can be long and is logged elsewhere.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	return u.String()
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
