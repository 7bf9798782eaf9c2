// Package source orders upstream adapters by preference and returns the
// first non-empty result.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
)

// Source reaches one upstream and returns its records as-is.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (domain.RecordSet, error)
}

// Acquired is a successful acquisition.
type Acquired struct {
	Source  string
	Records domain.RecordSet
}

// Coordinator tries sources in order. The success predicate is uniform: a
// source wins when it returns at least one record without error.
type Coordinator struct {
	pipeline string
	sources  []Source
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewCoordinator creates a coordinator for the named pipeline.
func NewCoordinator(pipeline string, sources []Source, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		pipeline: pipeline,
		sources:  sources,
		logger:   logger,
		metrics:  metrics,
	}
}

// Acquire returns the first non-empty result. When every source fails or
// comes back empty it returns a *domain.AcquisitionError naming each one.
func (c *Coordinator) Acquire(ctx context.Context) (Acquired, error) {
	failures := &domain.AcquisitionError{}
	for _, s := range c.sources {
		name := s.Name()
		c.logger.Info("acquiring", "pipeline", c.pipeline, "source", name)

		rs, err := s.Fetch(ctx)
		switch {
		case err != nil:
			c.logger.Warn("source failed", "pipeline", c.pipeline, "source", name, "error", err)
			c.metrics.SourceAttempts.WithLabelValues(c.pipeline, name, "error").Inc()
			failures.Add(name, err)
		case len(rs) == 0:
			c.logger.Warn("source returned no records", "pipeline", c.pipeline, "source", name)
			c.metrics.SourceAttempts.WithLabelValues(c.pipeline, name, "empty").Inc()
			failures.Add(name, fmt.Errorf("%w: no records", domain.ErrEmptyResult))
		default:
			c.logger.Info("source succeeded", "pipeline", c.pipeline, "source", name, "records", len(rs))
			c.metrics.SourceAttempts.WithLabelValues(c.pipeline, name, "success").Inc()
			return Acquired{Source: name, Records: rs}, nil
		}
	}
	if len(failures.Sources) == 0 {
		return Acquired{}, fmt.Errorf("%w: no sources configured", domain.ErrTransport)
	}
	return Acquired{}, failures
}
