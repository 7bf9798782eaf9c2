package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

// CrashName identifies the crash pipeline in logs, metrics and messages.
const CrashName = "crash"

// Crash refreshes the county crash table. Any failure leaves the previous
// output file in place.
type Crash struct {
	acquirer Acquirer
	filters  Filter
	mapping  domain.Mapping
	sink     Sink
	logger   *slog.Logger
}

// NewCrash creates the crash pipeline.
func NewCrash(acquirer Acquirer, filters Filter, mapping domain.Mapping, sink Sink, logger *slog.Logger) *Crash {
	return &Crash{
		acquirer: acquirer,
		filters:  filters,
		mapping:  mapping,
		sink:     sink,
		logger:   logger,
	}
}

func (p *Crash) Name() string { return CrashName }

// Run acquires, filters, normalizes and writes. It returns an error when
// every source fails, a mandatory filter leaves nothing, or the final table
// is empty.
func (p *Crash) Run(ctx context.Context, runID string) (domain.RunSummary, error) {
	sum := domain.RunSummary{
		Pipeline:   CrashName,
		RunID:      runID,
		StartedAt:  domain.Now(),
		OutputPath: p.sink.Path(),
	}

	acq, err := p.acquirer.Acquire(ctx)
	if err != nil {
		return sum, fmt.Errorf("acquire crash data: %w", err)
	}
	sum.Source = acq.Source

	rs, err := p.filters.Run(ctx, acq.Records)
	if err != nil {
		return sum, fmt.Errorf("filter crash data: %w", err)
	}

	out := domain.Normalize(rs, domain.CrashSchema, p.mapping)
	if len(out) == 0 {
		return sum, &domain.EmptyResultError{Stage: "output"}
	}

	if err := p.sink.Write(ctx, domain.CrashSchema, out); err != nil {
		return sum, fmt.Errorf("write crash table: %w", err)
	}

	sum.Records = len(out)
	sum.Duration = domain.Now().Sub(sum.StartedAt)
	p.logger.InfoContext(ctx, "crash table refreshed",
		"run_id", runID, "source", acq.Source, "acquired", len(acq.Records), "records", len(out))
	return sum, nil
}
