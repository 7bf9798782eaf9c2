package pipeline

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

//go:embed static_grants.yaml
var staticGrantsYAML []byte

// StaticGrants returns the built-in grant records, one per program, with
// every grants column present in table order.
func StaticGrants() (domain.RecordSet, error) {
	return parseStaticGrants(staticGrantsYAML)
}

func parseStaticGrants(data []byte) (domain.RecordSet, error) {
	var entries []map[string]any
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse static grants: %w", err)
	}

	rs := make(domain.RecordSet, 0, len(entries))
	for i, e := range entries {
		for k := range e {
			if _, ok := domain.GrantSchema.Column(k); !ok {
				return nil, fmt.Errorf("static grant %d: unknown column %q", i+1, k)
			}
		}
		title, _ := e[domain.GrantTitle].(string)
		if title == "" {
			return nil, fmt.Errorf("static grant %d: title is required", i+1)
		}

		r := domain.NewRecord(len(domain.GrantSchema.Columns))
		for _, col := range domain.GrantSchema.Columns {
			v, ok := e[col.Name]
			if !ok {
				v = col.Default
			}
			r.Set(col.Name, v)
		}
		rs = append(rs, r)
	}
	return rs, nil
}
