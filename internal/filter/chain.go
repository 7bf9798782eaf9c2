// Package filter narrows a record set to the rows a dashboard cares about.
//
// Each [Step] is an independent predicate over records. A step whose column
// cannot be resolved passes its input through unchanged and reports itself
// skipped; it never fails the run. Only a [Stage] marked Mandatory may stop a
// run, and only by leaving zero records.
package filter

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
)

// Outcome describes what one step did.
type Outcome struct {
	In      int
	Out     int
	Skipped bool
	Reason  string
}

// Step is one predicate. Apply returns a subset of rs; resolution is shared
// across the steps of a run so column choices stay fixed.
type Step interface {
	Name() string
	Apply(rs domain.RecordSet, res *domain.Resolution) (domain.RecordSet, Outcome)
}

// Stage is a step with its failure policy.
type Stage struct {
	Step      Step
	Mandatory bool
}

// Chain applies stages in order.
type Chain struct {
	pipeline string
	stages   []Stage
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewChain creates a chain for the named pipeline.
func NewChain(pipeline string, logger *slog.Logger, metrics *observability.Metrics, stages ...Stage) *Chain {
	return &Chain{
		pipeline: pipeline,
		stages:   stages,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run applies every stage. A mandatory stage that leaves no records returns
// a *domain.EmptyResultError naming it.
func (c *Chain) Run(ctx context.Context, rs domain.RecordSet) (domain.RecordSet, error) {
	res := domain.NewResolution(rs)
	for _, st := range c.stages {
		name := st.Step.Name()
		out, o := st.Step.Apply(rs, res)

		if o.Skipped {
			c.logger.WarnContext(ctx, "filter skipped",
				"pipeline", c.pipeline, "step", name, "reason", o.Reason, "records", o.In)
			c.metrics.FilterSkipped.WithLabelValues(c.pipeline, name).Inc()
		} else {
			c.logger.InfoContext(ctx, "filter applied",
				"pipeline", c.pipeline, "step", name, "in", o.In, "out", o.Out)
		}
		c.metrics.Records.WithLabelValues(c.pipeline, name).Set(float64(len(out)))

		if st.Mandatory && len(out) == 0 {
			return nil, &domain.EmptyResultError{Stage: name}
		}
		rs = out
	}
	for _, m := range res.Misses() {
		c.logger.DebugContext(ctx, "column unresolved", "pipeline", c.pipeline, "note", m.String())
	}
	return rs, nil
}

// passThrough is the outcome of a step that could not resolve its column.
func passThrough(rs domain.RecordSet, reason string) (domain.RecordSet, Outcome) {
	return rs, Outcome{In: len(rs), Out: len(rs), Skipped: true, Reason: reason}
}

// keep filters rs with pred.
func keep(rs domain.RecordSet, pred func(*domain.Record) bool) (domain.RecordSet, Outcome) {
	out := make(domain.RecordSet, 0, len(rs))
	for _, r := range rs {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out, Outcome{In: len(rs), Out: len(out)}
}

// codeEqual compares a field value to a code. Surrounding space is ignored
// and numeric forms compare by value, so "43", " 43 ", "43.0" and 43 all
// equal "43".
func codeEqual(v any, want string) bool {
	got := strings.TrimSpace(domain.FormatValue(v))
	if got == "" {
		return false
	}
	if got == want {
		return true
	}
	g, err1 := strconv.ParseFloat(got, 64)
	w, err2 := strconv.ParseFloat(want, 64)
	return err1 == nil && err2 == nil && g == w
}

// containsFold reports whether s contains any of patterns, ignoring case.
func containsFold(s string, patterns []string) bool {
	if s == "" {
		return false
	}
	upper := strings.ToUpper(s)
	for _, p := range patterns {
		if p != "" && strings.Contains(upper, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}
