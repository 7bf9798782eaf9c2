// Package csvfile writes canonical record sets as flat CSV files.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

// Writer replaces one output file per run. A reader of Path never observes a
// partially written file: content goes to a temporary file in the same
// directory which is then renamed over the target.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter creates a writer for the given output file.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// Path returns the output file location.
func (w *Writer) Path() string { return w.path }

// Write renders the header from schema and one row per record, in schema
// column order, then atomically replaces the output file. The output
// directory is created if missing.
func (w *Writer) Write(ctx context.Context, schema domain.Schema, rs domain.RecordSet) error {
	data, err := Render(schema, rs)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := renameio.WriteFile(w.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}

	w.logger.InfoContext(ctx, "output written",
		"path", w.path, "schema", schema.Name, "records", len(rs), "bytes", len(data))
	return nil
}

// Render encodes rs as CSV bytes with a header row of schema column names.
func Render(schema domain.Schema, rs domain.RecordSet) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	names := schema.Names()
	if err := cw.Write(names); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	row := make([]string, len(names))
	for i, r := range rs {
		for j, name := range names {
			row[j] = r.String(name)
		}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Read loads a CSV file written by Writer back into records, preserving
// the header order. Empty cells read back as empty strings.
func Read(path string) ([]string, domain.RecordSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("read %s: no header row", path)
	}
	header := rows[0]
	rs := make(domain.RecordSet, 0, len(rows)-1)
	for _, row := range rows[1:] {
		r := domain.NewRecord(len(header))
		for i, name := range header {
			r.Set(name, row[i])
		}
		rs = append(rs, r)
	}
	return header, rs, nil
}
