// Package tabular parses delimited-text and XML tables into record sets.
//
// Archive members arrive without a trustworthy extension, so [Parse] tries a
// fixed list of strategies and accepts the first that reads the whole input
// without a structural error.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Strategy is one way of reading a table.
type Strategy struct {
	Name  string
	Parse func(data []byte) (domain.RecordSet, error)
}

// DefaultStrategies is the order used for bulk archive members: comma CSV,
// XML table, pipe-delimited text. The delimited strategies require at least
// one data row, so a single line of another format that happens to contain
// the delimiter falls through to the next strategy.
var DefaultStrategies = []Strategy{
	{Name: "csv", Parse: withRows(',', 2)},
	{Name: "xml", Parse: ParseXML},
	{Name: "pipe", Parse: withRows('|', 1)},
}

func withRows(delim rune, minColumns int) func([]byte) (domain.RecordSet, error) {
	return func(data []byte) (domain.RecordSet, error) {
		rs, err := ParseDelimited(data, delim, minColumns)
		if err != nil {
			return nil, err
		}
		if len(rs) == 0 {
			return nil, errors.New("header without data rows")
		}
		return rs, nil
	}
}

// Parse runs strategies in order and returns the first successful result
// along with the name of the strategy that produced it. When every strategy
// fails the error wraps domain.ErrParse.
func Parse(data []byte, strategies []Strategy) (domain.RecordSet, string, error) {
	var errs []error
	for _, s := range strategies {
		rs, err := s.Parse(data)
		if err == nil {
			return rs, s.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return nil, "", fmt.Errorf("%w: no format matched: %w", domain.ErrParse, errors.Join(errs...))
}

// ParseDelimited reads a header row followed by data rows. Every row must
// have the header's width and the header must have at least minColumns
// columns. Empty cells become nil.
func ParseDelimited(data []byte, delim rune, minColumns int) (domain.RecordSet, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = 0
	r.ReuseRecord = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < minColumns {
		return nil, fmt.Errorf("header has %d columns, need at least %d", len(header), minColumns)
	}
	names := headerNames(header)

	var rs domain.RecordSet
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rec := domain.NewRecord(len(names))
		for i, name := range names {
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				rec.Set(name, nil)
				continue
			}
			rec.Set(name, cell)
		}
		rs = append(rs, rec)
	}
	return rs, nil
}

// headerNames trims header cells and names blank or repeated ones so every
// column stays addressable.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		names[i] = name
	}
	return names
}
