package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

// Traffic-safety grant criteria.
var (
	SafetyCFDACodes = []string{
		"20.600", "20.601", "20.602", "20.610", "20.205",
		"20.614", "20.616", "20.933", "20.934", "20.218",
	}
	SafetyAgencies = []string{
		"NHTSA", "FHWA", "DOT", "Department of Transportation", "Highway Administration",
	}
	SafetyKeywords = []string{
		"traffic safety", "highway safety", "pedestrian safety", "crash reduction",
		"vision zero", "safe routes to school", "intersection safety", "road safety",
		"bicycle safety", "roadway safety", "safe streets",
	}
)

var cfdaSeparator = regexp.MustCompile(`[^0-9.]+`)

// Topic keeps grants relevant to traffic safety. A record is kept when one
// of its CFDA numbers is in Codes, OR when its agency matches an agency
// pattern AND its title or description contains a keyword. Agency alone and
// keyword alone are both insufficient.
type Topic struct {
	codes    map[string]bool
	agency   *regexp.Regexp
	keywords *regexp.Regexp
	groups   domain.AliasTable
}

// NewTopic creates the step. Short all-capital agency patterns (acronyms
// such as DOT) match case-sensitive whole words only; longer patterns and
// keywords match as case-insensitive substrings.
func NewTopic(codes, agencies, keywords []string, groups domain.AliasTable) *Topic {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[normalizeCFDA(c)] = true
	}
	return &Topic{
		codes:    set,
		agency:   patternUnion(agencies),
		keywords: patternUnion(keywords),
		groups:   groups,
	}
}

func (t *Topic) Name() string { return "topic" }

func (t *Topic) Apply(rs domain.RecordSet, res *domain.Resolution) (domain.RecordSet, Outcome) {
	cfdaCol, hasCFDA := res.Column(t.groups.Group(domain.GroupCFDA))
	agencyCol, hasAgency := res.Column(t.groups.Group(domain.GroupAgency))
	titleCol, hasTitle := res.Column(t.groups.Group(domain.GroupTitle))
	descCol, hasDesc := res.Column(t.groups.Group(domain.GroupDescription))

	if !hasCFDA && !hasAgency && !hasTitle && !hasDesc {
		return passThrough(rs, "no CFDA, agency, title or description column")
	}

	return keep(rs, func(r *domain.Record) bool {
		if hasCFDA && t.matchCode(r.String(cfdaCol)) {
			return true
		}
		if !hasAgency || !matches(t.agency, r.String(agencyCol)) {
			return false
		}
		return (hasTitle && matches(t.keywords, r.String(titleCol))) ||
			(hasDesc && matches(t.keywords, r.String(descCol)))
	})
}

// matchCode splits a CFDA field such as "20.600; 20.616" or "20.6,20.205"
// into numbers and reports whether any is a topic code.
func (t *Topic) matchCode(field string) bool {
	for _, tok := range cfdaSeparator.Split(field, -1) {
		if tok == "" {
			continue
		}
		if t.codes[normalizeCFDA(tok)] {
			return true
		}
	}
	return false
}

// normalizeCFDA renders a CFDA number with three decimals so that "20.6"
// and "20.600" compare equal.
func normalizeCFDA(s string) string {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%.3f", f)
}

// patternUnion compiles patterns into one alternation. Acronyms match as
// case-sensitive whole words so that "dot" in "Polka Dot" is not DOT; the
// rest match case-insensitively.
func patternUnion(patterns []string) *regexp.Regexp {
	var acronyms, phrases []string
	for _, p := range patterns {
		switch {
		case p == "":
		case isAcronym(p):
			acronyms = append(acronyms, `\b`+regexp.QuoteMeta(p)+`\b`)
		default:
			phrases = append(phrases, regexp.QuoteMeta(p))
		}
	}
	alts := acronyms
	if len(phrases) > 0 {
		alts = append(alts, `(?i:`+strings.Join(phrases, "|")+`)`)
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?:` + strings.Join(alts, "|") + `)`)
}

func isAcronym(p string) bool {
	if len(p) > 5 {
		return false
	}
	for _, r := range p {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func matches(re *regexp.Regexp, s string) bool {
	return re != nil && s != "" && re.MatchString(s)
}
