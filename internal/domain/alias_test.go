package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_FirstPresentAliasWins(t *testing.T) {
	g := AliasGroup{Name: "field", Aliases: []string{"a", "b", "c"}}
	rs := RecordSet{
		RecordOf("c", "3"),
		RecordOf("b", "2"),
	}

	for range 3 {
		col, ok := Resolve(rs, g)
		require.True(t, ok)
		assert.Equal(t, "b", col)
	}
}

func TestResolve_ExactIdentityOnly(t *testing.T) {
	g := AliasGroup{Name: "juris", Aliases: []string{"Juris_Code"}}
	rs := RecordSet{RecordOf("JURIS CODE", "43", "juris_code", "43")}

	_, ok := Resolve(rs, g)
	assert.False(t, ok)
}

func TestResolve_FieldInAnyRecordCounts(t *testing.T) {
	g := AliasGroup{Name: "route", Aliases: []string{"RTE_NAME"}}
	rs := RecordSet{
		RecordOf("Document_Nbr", "1"),
		RecordOf("Document_Nbr", "2", "RTE_NAME", "S-VA620"),
	}

	col, ok := Resolve(rs, g)
	require.True(t, ok)
	assert.Equal(t, "RTE_NAME", col)
}

func TestResolution_CachesFirstAnswer(t *testing.T) {
	g := AliasGroup{Name: "field", Aliases: []string{"a", "b"}}
	res := NewResolution(RecordSet{RecordOf("b", "1")})

	col, ok := res.Column(g)
	require.True(t, ok)
	assert.Equal(t, "b", col)

	// A later call with a reordered group still returns the cached column.
	col, ok = res.Column(AliasGroup{Name: "field", Aliases: []string{"x"}})
	require.True(t, ok)
	assert.Equal(t, "b", col)
}

func TestResolution_RecordsMisses(t *testing.T) {
	res := NewResolution(RecordSet{RecordOf("a", "1")})

	_, ok := res.Column(AliasGroup{Name: "zeta", Aliases: []string{"z"}})
	assert.False(t, ok)
	_, ok = res.Column(AliasGroup{Name: "alpha", Aliases: []string{"q"}})
	assert.False(t, ok)

	misses := res.Misses()
	require.Len(t, misses, 2)
	assert.Equal(t, "alpha", misses[0].Group)
	assert.Equal(t, "zeta", misses[1].Group)
	assert.Contains(t, misses[1].String(), "zeta")
}

func TestAliasTable_UnknownGroupNeverResolves(t *testing.T) {
	g := AliasTable{}.Group("nope")
	assert.Equal(t, "nope", g.Name)
	_, ok := Resolve(RecordSet{RecordOf("nope", "1")}, g)
	assert.False(t, ok)
}

func TestDefaultAliases(t *testing.T) {
	a := DefaultAliases()

	for _, name := range []string{
		GroupJurisCode, GroupJurisName, GroupFIPS, GroupRouteName, GroupSystem,
		GroupCFDA, GroupAgency, GroupTitle, GroupDescription, GroupCloseDate,
	} {
		g := a.Groups.Group(name)
		assert.NotEmpty(t, g.Aliases, name)
	}

	assert.Equal(t, []string{"Juris_Code", "JURIS_CODE", "juris_code", "Juris Code"},
		a.Groups.Group(GroupJurisCode).Aliases)
	assert.NotEmpty(t, a.Mapping("grants")[GrantTitle])
	assert.Empty(t, a.Mapping("unknown"))
}

func TestDefaultAliases_MappingsTargetSchemaColumns(t *testing.T) {
	a := DefaultAliases()
	schemas := map[string]Schema{"crash": CrashSchema, "grants": GrantSchema}
	for name, schema := range schemas {
		for canonical := range a.Mapping(name) {
			_, ok := schema.Column(canonical)
			assert.True(t, ok, "%s mapping targets unknown column %q", name, canonical)
		}
	}
}

func TestLoadAliases_Errors(t *testing.T) {
	t.Run("invalid yaml", func(t *testing.T) {
		_, err := LoadAliases([]byte("groups: [unterminated"))
		require.Error(t, err)
	})

	t.Run("empty group", func(t *testing.T) {
		_, err := LoadAliases([]byte("groups:\n  title: []\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "title")
	})
}
