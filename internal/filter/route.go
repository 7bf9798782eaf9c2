package filter

import (
	"regexp"
	"strings"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

// RouteType is the maintenance category a route name encodes.
type RouteType string

const (
	RouteInterstate   RouteType = "interstate"
	RouteUS           RouteType = "us"
	RouteStatePrimary RouteType = "state_primary"
	RouteBusiness     RouteType = "business"
	RouteSecondary    RouteType = "secondary"
	RouteLocal        RouteType = "local"
	RouteUnknown      RouteType = "unknown"
)

// StateRouteTypes are the state-maintained categories excluded from the
// crash table.
var StateRouteTypes = []RouteType{RouteInterstate, RouteUS, RouteStatePrimary, RouteBusiness}

var (
	// Linear referencing form: "R-VA US00250WB", "S-VA043NP FAIRFIELD RD".
	// The first letter is the route system (R primary, S secondary), then a
	// state code and the route designator.
	lrsRoute = regexp.MustCompile(`^([RS])-([A-Z]{2})\s*(.*)$`)

	lrsDesignators = []struct {
		re  *regexp.Regexp
		typ RouteType
	}{
		{regexp.MustCompile(`^(US|SR)\s*\d+\s*(BUS|BUSINESS)\b`), RouteBusiness},
		{regexp.MustCompile(`^IS\s*\d`), RouteInterstate},
		{regexp.MustCompile(`^US\s*\d`), RouteUS},
		{regexp.MustCompile(`^SR\s*\d`), RouteStatePrimary},
		{regexp.MustCompile(`^(BUS|B)\s*\d`), RouteBusiness},
	}

	countyRoute = regexp.MustCompile(`^\d{3}`)

	// Signed forms: "I-64", "IS 95", "US 250", "US-1", "SR-5", "VA 6",
	// "BUS 60", "US 1 BUSINESS". Business is only a designator or a suffix on
	// a numbered route, never a word elsewhere in a street name.
	signedRoutes = []struct {
		re  *regexp.Regexp
		typ RouteType
	}{
		{regexp.MustCompile(`^(US|SR|VA)[- ]?\d+[A-Z]?\s+(BUS|BUSINESS)\b`), RouteBusiness},
		{regexp.MustCompile(`^(BUS|BUSINESS)[- ]?\d`), RouteBusiness},
		{regexp.MustCompile(`^(I|IS)[- ]?\d`), RouteInterstate},
		{regexp.MustCompile(`^US[- ]?\d`), RouteUS},
		{regexp.MustCompile(`^(SR|VA)[- ]?\d`), RouteStatePrimary},
	}
)

// ClassifyRoute maps a route name to its type. Names that fit no known form
// are RouteUnknown.
func ClassifyRoute(name string) RouteType {
	s := strings.ToUpper(strings.TrimSpace(name))
	if s == "" {
		return RouteUnknown
	}
	if m := lrsRoute.FindStringSubmatch(s); m != nil {
		system, rest := m[1], strings.TrimSpace(m[3])
		for _, d := range lrsDesignators {
			if d.re.MatchString(rest) {
				return d.typ
			}
		}
		switch {
		case system == "S":
			return RouteSecondary
		case countyRoute.MatchString(rest):
			// County-numbered route carried on the primary system record.
			return RouteLocal
		default:
			return RouteUnknown
		}
	}

	for _, r := range signedRoutes {
		if r.re.MatchString(s) {
			return r.typ
		}
	}
	return RouteUnknown
}

// RouteExclusion drops records whose route name classifies as a
// state-maintained type. Everything else, including unclassifiable names,
// is kept.
type RouteExclusion struct {
	excluded map[RouteType]bool
	groups   domain.AliasTable
}

// NewRouteExclusion creates the step excluding the given types.
func NewRouteExclusion(groups domain.AliasTable, excluded ...RouteType) *RouteExclusion {
	if len(excluded) == 0 {
		excluded = StateRouteTypes
	}
	set := make(map[RouteType]bool, len(excluded))
	for _, t := range excluded {
		set[t] = true
	}
	return &RouteExclusion{excluded: set, groups: groups}
}

func (e *RouteExclusion) Name() string { return "route_exclusion" }

// Excludes reports whether a route name would be dropped.
func (e *RouteExclusion) Excludes(route string) bool {
	return e.excluded[ClassifyRoute(route)]
}

func (e *RouteExclusion) Apply(rs domain.RecordSet, res *domain.Resolution) (domain.RecordSet, Outcome) {
	col, ok := res.Column(e.groups.Group(domain.GroupRouteName))
	if !ok {
		return passThrough(rs, "no route name column")
	}
	return keep(rs, func(r *domain.Record) bool {
		return !e.Excludes(r.String(col))
	})
}
