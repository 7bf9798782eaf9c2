package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

const (
	// GrantsName identifies the grants pipeline in logs, metrics and messages.
	GrantsName = "grants"

	// PlaceholderID marks the single row written when no table could be built.
	PlaceholderID = "ERROR"

	sourceStatic = "static"
)

// Grants refreshes the grant opportunities table. The built-in static set
// is always included, so a failed download degrades the table rather than
// failing the run. When even that cannot be written, a one-row placeholder
// describing the failure replaces the table.
type Grants struct {
	static   domain.RecordSet
	acquirer Acquirer
	filters  Filter
	mapping  domain.Mapping
	sink     Sink
	logger   *slog.Logger
}

// NewGrants creates the grants pipeline. static is normally StaticGrants().
func NewGrants(static domain.RecordSet, acquirer Acquirer, filters Filter, mapping domain.Mapping, sink Sink, logger *slog.Logger) *Grants {
	return &Grants{
		static:   static,
		acquirer: acquirer,
		filters:  filters,
		mapping:  mapping,
		sink:     sink,
		logger:   logger,
	}
}

func (p *Grants) Name() string { return GrantsName }

// Run builds and writes the table. It returns an error only when neither the
// table nor the placeholder could be written; a placeholder run reports
// Placeholder in the summary.
func (p *Grants) Run(ctx context.Context, runID string) (domain.RunSummary, error) {
	sum := domain.RunSummary{
		Pipeline:   GrantsName,
		RunID:      runID,
		StartedAt:  domain.Now(),
		OutputPath: p.sink.Path(),
	}
	logger := p.logger.With("run_id", runID)

	rs, src, err := p.build(ctx, logger)
	if err == nil {
		err = p.sink.Write(ctx, domain.GrantSchema, rs)
		if err == nil {
			sum.Source = src
			sum.Records = len(rs)
			sum.Duration = domain.Now().Sub(sum.StartedAt)
			logger.InfoContext(ctx, "grants table refreshed", "source", src, "records", len(rs))
			return sum, nil
		}
		err = fmt.Errorf("write grants table: %w", err)
	}

	logger.ErrorContext(ctx, "grants table unavailable, writing placeholder", "error", err)
	if werr := p.sink.Write(ctx, domain.GrantSchema, Placeholder(err.Error())); werr != nil {
		return sum, errors.Join(err, fmt.Errorf("write placeholder: %w", werr))
	}
	sum.Source = PlaceholderID
	sum.Records = 1
	sum.Placeholder = true
	sum.Duration = domain.Now().Sub(sum.StartedAt)
	return sum, nil
}

// build assembles the table: static set first, then downloaded grants that
// pass the filters, deduplicated by title, stamped and sorted by close date.
func (p *Grants) build(ctx context.Context, logger *slog.Logger) (rs domain.RecordSet, src string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rs, src, err = nil, "", fmt.Errorf("building grants table panicked: %v", r)
		}
	}()

	rs = make(domain.RecordSet, 0, len(p.static))
	for _, r := range p.static {
		rs = append(rs, r.Clone())
	}
	src = sourceStatic

	downloaded, from := p.download(ctx, logger)
	if len(downloaded) > 0 {
		rs = append(rs, downloaded...)
		src = sourceStatic + "+" + from
	}

	before := len(rs)
	rs = domain.DedupeByTitle(rs)
	if dropped := before - len(rs); dropped > 0 {
		logger.InfoContext(ctx, "duplicate titles removed", "records", dropped)
	}

	domain.FormatDates(rs, domain.GrantCloseDate)
	domain.FormatDates(rs, domain.GrantPostDate)
	domain.Stamp(rs, domain.GrantLastUpdated, domain.Today().Format(domain.DateLayout))
	domain.SortByDate(rs, domain.GrantCloseDate)

	if len(rs) == 0 {
		return nil, "", &domain.EmptyResultError{Stage: "output"}
	}
	return rs, src, nil
}

// download returns normalized grants from upstream, or nothing when the
// download or filters fail.
func (p *Grants) download(ctx context.Context, logger *slog.Logger) (domain.RecordSet, string) {
	acq, err := p.acquirer.Acquire(ctx)
	if err != nil {
		logger.WarnContext(ctx, "grants download unavailable, using static set only", "error", err)
		return nil, ""
	}
	rs, err := p.filters.Run(ctx, acq.Records)
	if err != nil {
		logger.WarnContext(ctx, "grants filtering failed, using static set only", "error", err)
		return nil, ""
	}
	logger.InfoContext(ctx, "downloaded grants selected",
		"source", acq.Source, "acquired", len(acq.Records), "records", len(rs))
	return domain.Normalize(rs, domain.GrantSchema, p.mapping), acq.Source
}

// Placeholder is the one-row table written when the grants table cannot be
// built. reason becomes its description.
func Placeholder(reason string) domain.RecordSet {
	r := domain.NewRecord(len(domain.GrantSchema.Columns))
	for _, col := range domain.GrantSchema.Columns {
		r.Set(col.Name, nil)
	}
	r.Set(domain.GrantID, PlaceholderID)
	r.Set(domain.GrantTitle, "Grant data unavailable")
	r.Set(domain.GrantStatus, "Error")
	r.Set(domain.GrantDescription, reason)
	r.Set(domain.GrantLastUpdated, domain.Today().Format(domain.DateLayout))
	return domain.RecordSet{r}
}
