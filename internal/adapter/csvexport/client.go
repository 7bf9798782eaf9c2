// Package csvexport reads a full-table CSV download. It backs up the
// feature-service query for the crash pipeline.
package csvexport

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/adapter/upstream"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/tabular"
)

// Name identifies this source in logs, metrics and acquisition errors.
const Name = "csv-export"

// Getter is the transport used by the client.
type Getter interface {
	Get(ctx context.Context, rawURL string, query url.Values, timeout time.Duration) (*upstream.Response, error)
}

// Client downloads and parses one CSV export.
type Client struct {
	url     string
	timeout time.Duration
	http    Getter
	logger  *slog.Logger
}

// NewClient creates a CSV export source.
func NewClient(rawURL string, timeout time.Duration, http Getter, logger *slog.Logger) *Client {
	return &Client{url: rawURL, timeout: timeout, http: http, logger: logger}
}

func (c *Client) Name() string { return Name }

// Fetch downloads the export. The whole table is returned; jurisdiction
// filtering happens downstream.
func (c *Client) Fetch(ctx context.Context) (domain.RecordSet, error) {
	resp, err := c.http.Get(ctx, c.url, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	rs, err := tabular.ParseDelimited(resp.Body, ',', 2)
	if err != nil {
		return nil, domain.NewSourceError(Name, domain.ErrParse, err)
	}
	c.logger.Info("csv export downloaded", "records", len(rs), "bytes", len(resp.Body))
	return rs, nil
}
