package domain

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Logical field names defined in aliases.yaml.
const (
	GroupJurisCode   = "juris_code"
	GroupJurisName   = "juris_name"
	GroupFIPS        = "fips"
	GroupRouteName   = "route_name"
	GroupSystem      = "system"
	GroupCFDA        = "cfda"
	GroupAgency      = "agency"
	GroupTitle       = "title"
	GroupDescription = "description"
	GroupCloseDate   = "close_date"
)

//go:embed aliases.yaml
var aliasesYAML []byte

// AliasGroup is a logical field with its concrete column-name variants,
// most specific first.
type AliasGroup struct {
	Name    string
	Aliases []string
}

// AliasTable maps a logical field name to its group.
type AliasTable map[string]AliasGroup

// Group returns the named group. Unknown names yield a group with no aliases,
// which never resolves.
func (t AliasTable) Group(name string) AliasGroup {
	if g, ok := t[name]; ok {
		return g
	}
	return AliasGroup{Name: name}
}

// Mapping maps a canonical output column to the source column names that feed it.
type Mapping map[string][]string

// Aliases is the parsed contents of an aliases file.
type Aliases struct {
	Groups   AliasTable
	Mappings map[string]Mapping
}

// Mapping returns the named output mapping, or an empty mapping.
func (a *Aliases) Mapping(name string) Mapping {
	if m, ok := a.Mappings[name]; ok {
		return m
	}
	return Mapping{}
}

type aliasFile struct {
	Groups   map[string][]string `yaml:"groups"`
	Mappings map[string]Mapping  `yaml:"mappings"`
}

// LoadAliases parses an aliases document.
func LoadAliases(data []byte) (*Aliases, error) {
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse aliases: %w", err)
	}
	a := &Aliases{
		Groups:   make(AliasTable, len(f.Groups)),
		Mappings: f.Mappings,
	}
	for name, variants := range f.Groups {
		if len(variants) == 0 {
			return nil, fmt.Errorf("parse aliases: group %q has no variants", name)
		}
		a.Groups[name] = AliasGroup{Name: name, Aliases: variants}
	}
	if a.Mappings == nil {
		a.Mappings = map[string]Mapping{}
	}
	return a, nil
}

var defaultAliases = sync.OnceValue(func() *Aliases {
	a, err := LoadAliases(aliasesYAML)
	if err != nil {
		panic(err)
	}
	return a
})

// DefaultAliases returns the embedded alias table.
func DefaultAliases() *Aliases {
	return defaultAliases()
}

// Resolve returns the first alias of g present in the observed field set of rs.
func Resolve(rs RecordSet, g AliasGroup) (string, bool) {
	return resolveIn(fieldSet(rs), g)
}

func resolveIn(present map[string]struct{}, g AliasGroup) (string, bool) {
	for _, alias := range g.Aliases {
		if _, ok := present[alias]; ok {
			return alias, true
		}
	}
	return "", false
}

func fieldSet(rs RecordSet) map[string]struct{} {
	fields := rs.Fields()
	present := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		present[f] = struct{}{}
	}
	return present
}

// ResolutionMiss records a logical field for which no alias was present.
type ResolutionMiss struct {
	Group   string
	Aliases []string
}

func (m ResolutionMiss) String() string {
	return fmt.Sprintf("no column for %s (tried %v)", m.Group, m.Aliases)
}

// Resolution resolves alias groups against one record set and remembers the
// answer, so a group maps to the same column for the rest of a run.
type Resolution struct {
	present  map[string]struct{}
	resolved map[string]string
	misses   map[string]ResolutionMiss
}

// NewResolution computes the observed field set of rs once.
func NewResolution(rs RecordSet) *Resolution {
	return &Resolution{
		present:  fieldSet(rs),
		resolved: make(map[string]string),
		misses:   make(map[string]ResolutionMiss),
	}
}

// Column resolves g, consulting the cache first.
func (r *Resolution) Column(g AliasGroup) (string, bool) {
	if col, ok := r.resolved[g.Name]; ok {
		return col, true
	}
	if _, ok := r.misses[g.Name]; ok {
		return "", false
	}
	col, ok := resolveIn(r.present, g)
	if !ok {
		r.misses[g.Name] = ResolutionMiss{Group: g.Name, Aliases: g.Aliases}
		return "", false
	}
	r.resolved[g.Name] = col
	return col, true
}

// Misses returns the groups that failed to resolve, sorted by name.
func (r *Resolution) Misses() []ResolutionMiss {
	out := make([]ResolutionMiss, 0, len(r.misses))
	for _, m := range r.misses {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}
