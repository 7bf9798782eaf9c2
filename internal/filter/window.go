package filter

import (
	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

// DefaultActiveWindowDays is how long after closing a grant stays listed.
const DefaultActiveWindowDays = 30

// ActiveWindow keeps grants that close on or after today minus Days. A
// missing or unparseable close date always keeps the record.
type ActiveWindow struct {
	Days   int
	groups domain.AliasTable
}

// NewActiveWindow creates the step. Days of zero or less uses the default.
func NewActiveWindow(days int, groups domain.AliasTable) *ActiveWindow {
	if days <= 0 {
		days = DefaultActiveWindowDays
	}
	return &ActiveWindow{Days: days, groups: groups}
}

func (w *ActiveWindow) Name() string { return "active_window" }

func (w *ActiveWindow) Apply(rs domain.RecordSet, res *domain.Resolution) (domain.RecordSet, Outcome) {
	col, ok := res.Column(w.groups.Group(domain.GroupCloseDate))
	if !ok {
		return passThrough(rs, "no close date column")
	}

	// Close dates carry no zone. Compare calendar days: today as the
	// service clock sees it against each close date as written.
	cutoff := domain.CalendarDay(domain.Today()).AddDate(0, 0, -w.Days)

	return keep(rs, func(r *domain.Record) bool {
		v, _ := r.Get(col)
		closes, ok := domain.ParseDate(v)
		if !ok {
			return true
		}
		return !domain.CalendarDay(closes).Before(cutoff)
	})
}
