// Package pipeline wires acquisition, filtering, normalization and output
// into one refresh per table, and runs refreshes with metrics and
// post-run publishing.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

// Pipeline is one table refresh. Each Run recomputes the table from scratch.
type Pipeline interface {
	Name() string
	Run(ctx context.Context, runID string) (domain.RunSummary, error)
}

// Acquirer returns raw upstream records.
type Acquirer interface {
	Acquire(ctx context.Context) (source.Acquired, error)
}

// Filter narrows a record set. It errors only when a mandatory stage
// empties the set.
type Filter interface {
	Run(ctx context.Context, rs domain.RecordSet) (domain.RecordSet, error)
}

// Sink replaces the output table.
type Sink interface {
	Write(ctx context.Context, schema domain.Schema, rs domain.RecordSet) error
	Path() string
}

// Publisher is notified after the output file has been replaced.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, run domain.RunSummary) error
}

// Runner executes a pipeline with a fresh run ID, records metrics and hands
// successful runs to publishers.
type Runner struct {
	pipeline   Pipeline
	publishers []Publisher
	logger     *slog.Logger
	metrics    *observability.Metrics
	last       atomic.Pointer[domain.RunSummary]
}

// NewRunner creates a Runner.
func NewRunner(p Pipeline, publishers []Publisher, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		pipeline:   p,
		publishers: publishers,
		logger:     logger,
		metrics:    metrics,
	}
}

// Name returns the pipeline name.
func (r *Runner) Name() string { return r.pipeline.Name() }

// CheckReadiness returns nil once a run has replaced the output file, or an
// error describing why the service is not yet ready.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if r.last.Load() == nil {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastRun returns the summary of the most recent completed run. Failed runs
// do not replace it.
func (r *Runner) LastRun() (domain.RunSummary, bool) {
	sum := r.last.Load()
	if sum == nil {
		return domain.RunSummary{}, false
	}
	return *sum, true
}

// RunOnce performs one refresh. Publisher failures are logged and counted
// but never fail the run.
func (r *Runner) RunOnce(ctx context.Context) (domain.RunSummary, error) {
	name := r.pipeline.Name()
	runID := uuid.NewString()
	logger := r.logger.With("pipeline", name, "run_id", runID)

	r.metrics.RunInProgress.WithLabelValues(name).Set(1)
	defer r.metrics.RunInProgress.WithLabelValues(name).Set(0)

	logger.InfoContext(ctx, "run started")
	start := domain.Now()
	sum, err := r.pipeline.Run(ctx, runID)
	elapsed := domain.Now().Sub(start)
	r.metrics.RunDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		r.metrics.RunsTotal.WithLabelValues(name, "failure").Inc()
		logger.ErrorContext(ctx, "run failed", "error", err, "duration", elapsed)
		return sum, err
	}

	sum.RunID = runID
	if sum.Duration == 0 {
		sum.Duration = elapsed
	}
	outcome := "success"
	if sum.Placeholder {
		outcome = "placeholder"
	} else {
		r.metrics.LastSuccess.WithLabelValues(name).Set(float64(domain.Now().Unix()))
	}
	r.metrics.RunsTotal.WithLabelValues(name, outcome).Inc()
	r.metrics.Records.WithLabelValues(name, "output").Set(float64(sum.Records))
	r.last.Store(&sum)

	logger.InfoContext(ctx, "run complete",
		"outcome", outcome, "source", sum.Source, "records", sum.Records,
		"path", sum.OutputPath, "duration", elapsed)

	r.publish(ctx, logger, sum)
	return sum, nil
}

func (r *Runner) publish(ctx context.Context, logger *slog.Logger, sum domain.RunSummary) {
	for _, p := range r.publishers {
		if err := p.Publish(ctx, sum); err != nil {
			logger.WarnContext(ctx, "publish failed", "publisher", p.Name(), "error", err)
			r.metrics.PublishTotal.WithLabelValues(p.Name(), "error").Inc()
			continue
		}
		r.metrics.PublishTotal.WithLabelValues(p.Name(), "success").Inc()
	}
}
