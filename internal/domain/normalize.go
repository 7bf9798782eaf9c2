package domain

import (
	"sort"
	"strings"
	"unicode"
)

// ColumnKey folds a column name for mapping: lower case with spaces,
// underscores, hyphens and dots removed.
func ColumnKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch r {
		case ' ', '_', '-', '.':
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Normalize projects rs onto schema. Each canonical column takes its value
// from the first mapped source column present in rs, falling back to its own
// name. Unmapped upstream columns are dropped and columns with no source get
// the column default.
func Normalize(rs RecordSet, schema Schema, mapping Mapping) RecordSet {
	byKey := make(map[string]string)
	for _, f := range rs.Fields() {
		k := ColumnKey(f)
		if _, ok := byKey[k]; !ok {
			byKey[k] = f
		}
	}

	sources := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		candidates := mapping[col.Name]
		if len(candidates) == 0 {
			candidates = []string{col.Name}
		}
		for _, c := range candidates {
			if f, ok := byKey[ColumnKey(c)]; ok {
				sources[i] = f
				break
			}
		}
	}

	out := make(RecordSet, 0, len(rs))
	for _, r := range rs {
		nr := NewRecord(len(schema.Columns))
		for i, col := range schema.Columns {
			if sources[i] == "" {
				nr.Set(col.Name, col.Default)
				continue
			}
			v, _ := r.Get(sources[i])
			nr.Set(col.Name, v)
		}
		out = append(out, nr)
	}
	return out
}

// DedupeByTitle keeps the first record for each exact title. Records with an
// empty title are always kept.
func DedupeByTitle(rs RecordSet) RecordSet {
	seen := make(map[string]struct{}, len(rs))
	out := make(RecordSet, 0, len(rs))
	for _, r := range rs {
		title := r.String(GrantTitle)
		if title != "" {
			if _, dup := seen[title]; dup {
				continue
			}
			seen[title] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}

// SortByDate orders rs by field ascending. Records whose field does not parse
// as a date sort after all dated records; ties keep their input order.
func SortByDate(rs RecordSet, field string) {
	sort.SliceStable(rs, func(i, j int) bool {
		vi, _ := rs[i].Get(field)
		vj, _ := rs[j].Get(field)
		ti, okI := ParseDate(vi)
		tj, okJ := ParseDate(vj)
		switch {
		case okI && okJ:
			return ti.Before(tj)
		case okI:
			return true
		default:
			return false
		}
	})
}

// Stamp sets field to v on every record.
func Stamp(rs RecordSet, field string, v any) {
	for _, r := range rs {
		r.Set(field, v)
	}
}
