// Command validate checks produced dashboard CSVs against their canonical
// schemas and the filtering rules that should already have been applied:
// header order, typed columns, jurisdiction, excluded routes, duplicate
// titles and close-date ordering.
//
// Usage:
//
//	go run ./cmd/validate -crash data/crashes.csv -grants data/grants.csv
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/filter"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	crashPath := flag.String("crash", "", "path to the crash output CSV")
	grantsPath := flag.String("grants", "", "path to the grants output CSV")
	jurisCode := flag.String("juris-code", "43", "expected jurisdiction code for crash rows")
	jurisName := flag.String("juris-name", "HENRICO", "expected jurisdiction name fragment for crash rows")
	flag.Parse()

	if *crashPath == "" && *grantsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*crashPath, *grantsPath, *jurisCode, *jurisName))
}

func run(crashPath, grantsPath, jurisCode, jurisName string) int {
	fmt.Println("=== Civic Data Output Validation ===")
	fmt.Println()

	var phases []*phase

	if crashPath != "" {
		header, rows, err := csvfile.Read(crashPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load crash CSV: %v\n", err)
			return 1
		}
		fmt.Printf("Crash rows: %d (%s)\n", len(rows), crashPath)
		phases = append(phases,
			validateSchema("crash schema", domain.CrashSchema, header, rows),
			validateCrashRows(rows, jurisCode, jurisName),
		)
	}

	if grantsPath != "" {
		header, rows, err := csvfile.Read(grantsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load grants CSV: %v\n", err)
			return 1
		}
		fmt.Printf("Grant rows: %d (%s)\n", len(rows), grantsPath)
		phases = append(phases,
			validateSchema("grants schema", domain.GrantSchema, header, rows),
			validateGrantRows(rows),
		)
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validateSchema checks the header against the schema and that number and
// date columns hold parseable values where present.
func validateSchema(name string, schema domain.Schema, header []string, rows domain.RecordSet) *phase {
	p := &phase{name: name}

	if want := schema.Names(); !slices.Equal(header, want) {
		p.errorf("header mismatch: got %d columns %v, want %d columns %v", len(header), header, len(want), want)
	}
	if len(rows) == 0 {
		p.errorf("no data rows")
	}

	for i, r := range rows {
		line := i + 2
		for _, col := range schema.Columns {
			v := r.String(col.Name)
			if v == "" {
				continue
			}
			switch col.Type {
			case domain.TypeNumber:
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					p.errorf("line %d: %s=%q is not a number", line, col.Name, v)
				}
			case domain.TypeDate:
				// Feature services report dates as epoch milliseconds.
				_, numErr := strconv.ParseFloat(v, 64)
				if _, ok := domain.ParseDate(v); !ok && numErr != nil {
					p.errorf("line %d: %s=%q is not a date", line, col.Name, v)
				}
			}
		}
	}
	return p
}

// validateCrashRows checks that every row belongs to the jurisdiction and
// none sits on a state-maintained route.
func validateCrashRows(rows domain.RecordSet, jurisCode, jurisName string) *phase {
	p := &phase{name: "crash filtering"}
	routes := filter.NewRouteExclusion(nil)

	for i, r := range rows {
		line := i + 2
		code := strings.TrimLeft(r.String("Juris Code"), "0")
		name := strings.ToUpper(r.String("Physical Juris Name"))
		if code != strings.TrimLeft(jurisCode, "0") && !strings.Contains(name, strings.ToUpper(jurisName)) {
			p.errorf("line %d: jurisdiction %q / %q outside %s", line, r.String("Juris Code"), r.String("Physical Juris Name"), jurisCode)
		}
		if route := r.String("RTE Name"); routes.Excludes(route) {
			p.errorf("line %d: route %q is %s", line, route, filter.ClassifyRoute(route))
		}
	}
	return p
}

// validateGrantRows checks for a placeholder table, duplicate titles, the
// close-date ordering and a single last_updated stamp.
func validateGrantRows(rows domain.RecordSet) *phase {
	p := &phase{name: "grants content"}

	if len(rows) == 1 && rows[0].String(domain.GrantID) == pipeline.PlaceholderID {
		p.errorf("placeholder table (grant_id=%s): %s", pipeline.PlaceholderID, rows[0].String(domain.GrantDescription))
		return p
	}

	titles := make(map[string]int)
	stamps := make(map[string]struct{})
	var lastDated time.Time
	undatedSeen := false

	for i, r := range rows {
		line := i + 2
		if title := r.String(domain.GrantTitle); title != "" {
			if prev, dup := titles[title]; dup {
				p.errorf("line %d: duplicate title %q (first at line %d)", line, title, prev)
			} else {
				titles[title] = line
			}
		}

		stamps[r.String(domain.GrantLastUpdated)] = struct{}{}

		closeDate := r.String(domain.GrantCloseDate)
		t, ok := domain.ParseDate(closeDate)
		if !ok {
			undatedSeen = true
			continue
		}
		if undatedSeen {
			p.errorf("line %d: dated close_date %s after an undated row", line, closeDate)
		}
		if t.Before(lastDated) {
			p.errorf("line %d: close_date %s before %s", line, closeDate, lastDated.Format(domain.DateLayout))
		}
		lastDated = t
	}

	if len(stamps) > 1 {
		p.errorf("last_updated has %d distinct values", len(stamps))
	}
	return p
}
