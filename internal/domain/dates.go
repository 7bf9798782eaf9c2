package domain

import (
	"strings"
	"time"
)

// DateLayout is the rendering used for date columns in the output table.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order. "01022006" is the grants.gov MMDDYYYY form
// and must precede the compact ISO form so that 8-digit values are read as
// month first.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"01022006",
	"20060102",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2, 2006 03:04:05 PM MST",
}

// ParseDate interprets a field value as a calendar date. Missing, empty and
// unrecognised values return false.
func ParseDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDates rewrites parseable values of field as YYYY-MM-DD. Values that do
// not parse are left as they are.
func FormatDates(rs RecordSet, field string) {
	for _, r := range rs {
		v, ok := r.Get(field)
		if !ok {
			continue
		}
		if t, ok := ParseDate(v); ok {
			r.Set(field, t.Format(DateLayout))
		}
	}
}

// CalendarDay returns t's year, month and day as midnight UTC, so that
// dates read in different locations compare by calendar day.
func CalendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
