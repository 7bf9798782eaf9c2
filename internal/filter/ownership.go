package filter

import "github.com/couchcryptid/civic-data-etl/internal/domain"

// DefaultOwnershipMarker identifies roads not maintained by the state.
const DefaultOwnershipMarker = "NonVDOT"

// Ownership keeps records whose system field contains Marker, ignoring case.
type Ownership struct {
	Marker string
	groups domain.AliasTable
}

// NewOwnership creates the step. An empty marker uses DefaultOwnershipMarker.
func NewOwnership(marker string, groups domain.AliasTable) *Ownership {
	if marker == "" {
		marker = DefaultOwnershipMarker
	}
	return &Ownership{Marker: marker, groups: groups}
}

func (o *Ownership) Name() string { return "ownership" }

func (o *Ownership) Apply(rs domain.RecordSet, res *domain.Resolution) (domain.RecordSet, Outcome) {
	col, ok := res.Column(o.groups.Group(domain.GroupSystem))
	if !ok {
		return passThrough(rs, "no road system column")
	}
	markers := []string{o.Marker}
	return keep(rs, func(r *domain.Record) bool {
		return containsFold(r.String(col), markers)
	})
}
