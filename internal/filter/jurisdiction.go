package filter

import "github.com/couchcryptid/civic-data-etl/internal/domain"

// Jurisdiction keeps records belonging to one county. A record matches when
// its jurisdiction code equals Code, OR its jurisdiction name contains one of
// NamePatterns, OR its FIPS code equals FIPS, across whichever of those
// columns resolved.
type Jurisdiction struct {
	Code         string
	NamePatterns []string
	FIPS         string
	groups       domain.AliasTable
}

// NewJurisdiction creates the step. Empty criteria are ignored.
func NewJurisdiction(code, fips string, namePatterns []string, groups domain.AliasTable) *Jurisdiction {
	return &Jurisdiction{Code: code, NamePatterns: namePatterns, FIPS: fips, groups: groups}
}

func (j *Jurisdiction) Name() string { return "jurisdiction" }

func (j *Jurisdiction) Apply(rs domain.RecordSet, res *domain.Resolution) (domain.RecordSet, Outcome) {
	codeCol, hasCode := res.Column(j.groups.Group(domain.GroupJurisCode))
	nameCol, hasName := res.Column(j.groups.Group(domain.GroupJurisName))
	fipsCol, hasFIPS := res.Column(j.groups.Group(domain.GroupFIPS))

	hasCode = hasCode && j.Code != ""
	hasName = hasName && len(j.NamePatterns) > 0
	hasFIPS = hasFIPS && j.FIPS != ""
	if !hasCode && !hasName && !hasFIPS {
		return passThrough(rs, "no jurisdiction code, name or FIPS column")
	}

	return keep(rs, func(r *domain.Record) bool {
		if hasCode {
			if v, _ := r.Get(codeCol); codeEqual(v, j.Code) {
				return true
			}
		}
		if hasName && containsFold(r.String(nameCol), j.NamePatterns) {
			return true
		}
		if hasFIPS {
			if v, _ := r.Get(fipsCol); codeEqual(v, j.FIPS) {
				return true
			}
		}
		return false
	})
}
