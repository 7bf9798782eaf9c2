// Package bulk downloads a dated ZIP extract, walking back one day at a time
// until an extract is found, and parses the single table inside it.
package bulk

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/adapter/upstream"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/tabular"
)

// Name identifies this source in logs, metrics and acquisition errors.
const Name = "grants-extract"

const (
	datePlaceholder = "{date}"
	urlDateLayout   = "20060102"
	maxMemberBytes  = 1 << 30
)

// Config describes the extract location.
type Config struct {
	URLTemplate string // must contain {date}
	Lookback    int    // days probed, counting the reference day
	Timeout     time.Duration
}

// Getter is the transport used by the client.
type Getter interface {
	Get(ctx context.Context, rawURL string, query url.Values, timeout time.Duration) (*upstream.Response, error)
}

// LookbackError reports that no day in the lookback window produced a
// readable extract.
type LookbackError struct {
	From     time.Time
	Attempts int
	Failures []error
}

func (e *LookbackError) Error() string {
	msg := fmt.Sprintf("no extract found in %d days back from %s", e.Attempts, e.From.Format(domain.DateLayout))
	if n := len(e.Failures); n > 0 {
		msg += ": last failure: " + e.Failures[n-1].Error()
	}
	return msg
}

func (e *LookbackError) Unwrap() []error {
	return e.Failures
}

// Client is a bulk extract source.
type Client struct {
	cfg    Config
	http   Getter
	logger *slog.Logger
}

// NewClient creates a bulk extract source.
func NewClient(cfg Config, http Getter, logger *slog.Logger) *Client {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 7
	}
	return &Client{cfg: cfg, http: http, logger: logger}
}

func (c *Client) Name() string { return Name }

// Fetch probes from today backwards.
func (c *Client) Fetch(ctx context.Context) (domain.RecordSet, error) {
	return c.FetchFrom(ctx, domain.Today())
}

// FetchFrom probes the reference day and up to Lookback-1 earlier days. A 404
// means the extract was not published that day. Any other failure, including
// an unreadable archive, is recorded and the previous day is tried as well.
func (c *Client) FetchFrom(ctx context.Context, ref time.Time) (domain.RecordSet, error) {
	lookback := &LookbackError{From: ref}
	for i := range c.cfg.Lookback {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		day := ref.AddDate(0, 0, -i)
		lookback.Attempts++

		rs, err := c.fetchDay(ctx, day)
		if err == nil {
			return rs, nil
		}
		lookback.Failures = append(lookback.Failures, fmt.Errorf("%s: %w", day.Format(domain.DateLayout), err))
		if upstream.IsNotFound(err) {
			c.logger.Info("extract not published, trying previous day", "date", day.Format(domain.DateLayout))
			continue
		}
		c.logger.Warn("extract attempt failed, trying previous day", "date", day.Format(domain.DateLayout), "error", err)
	}
	return nil, lookback
}

func (c *Client) fetchDay(ctx context.Context, day time.Time) (domain.RecordSet, error) {
	resp, err := c.http.Get(ctx, BuildURL(c.cfg.URLTemplate, day), nil, c.cfg.Timeout)
	if err != nil {
		return nil, err
	}

	name, data, err := extractMember(resp.Body)
	if err != nil {
		return nil, domain.NewSourceError(Name, domain.ErrParse, err)
	}

	rs, format, err := tabular.Parse(data, tabular.DefaultStrategies)
	if err != nil {
		return nil, domain.NewSourceError(Name, domain.ErrParse, fmt.Errorf("%s: %w", name, err))
	}
	c.logger.Info("extract parsed",
		"date", day.Format(domain.DateLayout),
		"member", name,
		"format", format,
		"records", len(rs),
	)
	return rs, nil
}

// BuildURL substitutes day as YYYYMMDD for {date} in template.
func BuildURL(template string, day time.Time) string {
	return strings.ReplaceAll(template, datePlaceholder, day.Format(urlDateLayout))
}

// extractMember opens the archive and returns the member holding the table.
func extractMember(archive []byte) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return "", nil, fmt.Errorf("open archive: %w", err)
	}
	f := selectMember(zr.File)
	if f == nil {
		return "", nil, errors.New("archive has no files")
	}
	rc, err := f.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxMemberBytes))
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return f.Name, data, nil
}

// selectMember prefers a file named like the opportunities table, then any
// tabular extension, then the first file.
func selectMember(files []*zip.File) *zip.File {
	var regular []*zip.File
	for _, f := range files {
		if !f.FileInfo().IsDir() {
			regular = append(regular, f)
		}
	}
	if len(regular) == 0 {
		return nil
	}
	for _, f := range regular {
		if strings.Contains(strings.ToLower(path.Base(f.Name)), "opportunit") {
			return f
		}
	}
	for _, f := range regular {
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".csv", ".xml", ".txt":
			return f
		}
	}
	return regular[0]
}
