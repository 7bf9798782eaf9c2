// Package arcgis reads records from an ArcGIS feature-service query endpoint
// using a count query followed by offset pagination.
package arcgis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/adapter/upstream"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

// SelectAll is the unconditional where-expression. Filtering is then left to
// the local filter chain.
const SelectAll = "1=1"

// Name identifies this source in logs, metrics and acquisition errors.
const Name = "arcgis"

// Config describes the feature-service query.
type Config struct {
	URL          string
	PageSize     int
	Where        []string // candidate jurisdiction filters, most preferred first
	CountTimeout time.Duration
	PageTimeout  time.Duration
}

// Getter is the transport used by the client.
type Getter interface {
	Get(ctx context.Context, rawURL string, query url.Values, timeout time.Duration) (*upstream.Response, error)
}

// Client is a paginated feature-service source.
type Client struct {
	cfg    Config
	http   Getter
	logger *slog.Logger
}

// NewClient creates a feature-service source.
func NewClient(cfg Config, http Getter, logger *slog.Logger) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 2000
	}
	return &Client{cfg: cfg, http: http, logger: logger}
}

func (c *Client) Name() string { return Name }

// Fetch picks a where-expression and pages through every matching record.
// Zero matches is an empty result, not an error.
func (c *Client) Fetch(ctx context.Context) (domain.RecordSet, error) {
	where, total, err := c.chooseWhere(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("feature service query selected", "where", where, "total", total)
	return c.fetchAll(ctx, where, total)
}

// chooseWhere returns the first candidate with a positive count, or
// SelectAll when none qualifies. Candidate failures are skipped; a failure
// to count SelectAll is returned.
func (c *Client) chooseWhere(ctx context.Context) (string, int, error) {
	for _, where := range c.cfg.Where {
		n, err := c.Count(ctx, where)
		if err != nil {
			c.logger.Debug("where candidate failed", "where", where, "error", err)
			continue
		}
		if n > 0 {
			return where, n, nil
		}
		c.logger.Debug("where candidate matched nothing", "where", where)
	}

	c.logger.Info("no where candidate matched, selecting all records for local filtering")
	n, err := c.Count(ctx, SelectAll)
	if err != nil {
		return "", 0, fmt.Errorf("count all records: %w", err)
	}
	return SelectAll, n, nil
}

// fetchAll pages from offset 0 in steps of the page size until total records
// are accumulated or a page comes back short. Any page failure discards the
// partial result.
func (c *Client) fetchAll(ctx context.Context, where string, total int) (domain.RecordSet, error) {
	var all domain.RecordSet
	for offset := 0; offset < total; offset += c.cfg.PageSize {
		page, err := c.FetchPage(ctx, where, offset, c.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("page at offset %d: %w", offset, err)
		}
		all = append(all, page...)
		c.logger.Debug("page fetched", "offset", offset, "records", len(page), "accumulated", len(all))
		if len(page) < c.cfg.PageSize {
			break
		}
	}
	return all, nil
}

// Count returns the number of records matching where.
func (c *Client) Count(ctx context.Context, where string) (int, error) {
	params := url.Values{
		"where":           {where},
		"returnCountOnly": {"true"},
		"f":               {"json"},
	}
	resp, err := c.http.Get(ctx, c.cfg.URL, params, c.cfg.CountTimeout)
	if err != nil {
		return 0, err
	}
	var body response
	if err := decode(resp.Body, &body); err != nil {
		return 0, err
	}
	if body.Count == nil {
		return 0, nil
	}
	return *body.Count, nil
}

// FetchPage returns up to size records starting at offset. Point geometry is
// flattened into numeric x and y fields.
func (c *Client) FetchPage(ctx context.Context, where string, offset, size int) (domain.RecordSet, error) {
	params := url.Values{
		"where":             {where},
		"outFields":         {"*"},
		"returnGeometry":    {"true"},
		"outSR":             {"4326"},
		"resultOffset":      {strconv.Itoa(offset)},
		"resultRecordCount": {strconv.Itoa(size)},
		"f":                 {"json"},
	}
	resp, err := c.http.Get(ctx, c.cfg.URL, params, c.cfg.PageTimeout)
	if err != nil {
		return nil, err
	}
	var body response
	if err := decode(resp.Body, &body); err != nil {
		return nil, err
	}

	order := make([]string, 0, len(body.Fields))
	for _, f := range body.Fields {
		order = append(order, f.Name)
	}

	rs := make(domain.RecordSet, 0, len(body.Features))
	for _, f := range body.Features {
		rs = append(rs, f.record(order))
	}
	return rs, nil
}

// Feature-service response types.

type response struct {
	Count    *int      `json:"count"`
	Fields   []field   `json:"fields"`
	Features []feature `json:"features"`
	Error    *apiError `json:"error"`
}

type field struct {
	Name string `json:"name"`
}

type apiError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

type feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *geometry      `json:"geometry"`
}

type geometry struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func decode(data []byte, v *response) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return domain.NewSourceError(Name, domain.ErrProtocol, fmt.Errorf("decode response: %w", err))
	}
	if v.Error != nil {
		msg := v.Error.Message
		if len(v.Error.Details) > 0 {
			msg += " (" + strings.Join(v.Error.Details, "; ") + ")"
		}
		return domain.NewSourceError(Name, domain.ErrProtocol, fmt.Errorf("service error %d: %s", v.Error.Code, msg))
	}
	return nil
}

// record orders attributes by the response's field list, then any remaining
// attributes by name.
func (f feature) record(order []string) *domain.Record {
	r := domain.NewRecord(len(f.Attributes) + 2)
	for _, name := range order {
		if v, ok := f.Attributes[name]; ok {
			r.Set(name, scalar(v))
		}
	}
	var rest []string
	for name := range f.Attributes {
		if _, ok := r.Get(name); !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		r.Set(name, scalar(f.Attributes[name]))
	}

	if f.Geometry != nil {
		r.Set("x", floatOrNil(f.Geometry.X))
		r.Set("y", floatOrNil(f.Geometry.Y))
	}
	return r
}

func scalar(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func floatOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
