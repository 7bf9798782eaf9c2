package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnKey(t *testing.T) {
	for _, name := range []string{"Crash_Date", "CRASH DATE", "crash-date", "Crash Date"} {
		assert.Equal(t, "crashdate", ColumnKey(name), name)
	}
}

func TestNormalize_ClosedSchema(t *testing.T) {
	schema := Schema{Name: "t", Columns: []Column{
		{Name: "Crash Date"},
		{Name: "RTE Name"},
		{Name: "status", Default: "Open"},
		{Name: "note"},
	}}
	mapping := Mapping{"RTE Name": {"Route_Name", "RTE_NAME"}}
	rs := RecordSet{
		RecordOf("CRASH_DATE", "2024-01-02", "RTE_NAME", "S-VA620", "OBJECTID", 9.0),
	}

	out := Normalize(rs, schema, mapping)

	require.Len(t, out, 1)
	assert.Equal(t, []string{"Crash Date", "RTE Name", "status", "note"}, out[0].Keys())
	assert.Equal(t, "2024-01-02", out[0].String("Crash Date"))
	assert.Equal(t, "S-VA620", out[0].String("RTE Name"))
	assert.Equal(t, "Open", out[0].String("status"))
	v, ok := out[0].Get("note")
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = out[0].Get("OBJECTID")
	assert.False(t, ok)
}

func TestNormalize_MappingOrderIsPriority(t *testing.T) {
	schema := Schema{Columns: []Column{{Name: "title"}}}
	mapping := Mapping{"title": {"OpportunityTitle", "Title"}}
	rs := RecordSet{RecordOf("Title", "second", "OpportunityTitle", "first")}

	out := Normalize(rs, schema, mapping)
	assert.Equal(t, "first", out[0].String("title"))
}

func TestNormalize_MissingValueInMappedColumnStaysEmpty(t *testing.T) {
	schema := Schema{Columns: []Column{{Name: "status", Default: "Open"}}}
	rs := RecordSet{
		RecordOf("Status", "Closed"),
		RecordOf("other", "x"),
	}

	out := Normalize(rs, schema, nil)
	assert.Equal(t, "Closed", out[0].String("status"))
	assert.Empty(t, out[1].String("status"))
}

func TestNormalize_GrantDefaults(t *testing.T) {
	rs := RecordSet{RecordOf("OpportunityTitle", "Safe Streets", "CFDANumbers", "20.939")}
	out := Normalize(rs, GrantSchema, DefaultAliases().Mapping("grants"))

	require.Len(t, out, 1)
	r := out[0]
	assert.Equal(t, GrantSchema.Names(), r.Keys())
	assert.Equal(t, "Safe Streets", r.String("title"))
	assert.Equal(t, "20.939", r.String("cfda_number"))
	assert.Equal(t, "Federal", r.String("program_type"))
	assert.Equal(t, "Safety", r.String("emphasis_areas"))
	assert.Equal(t, "N", r.String("requires_crash_data"))
	assert.Equal(t, "Open", r.String("status"))
	assert.Equal(t, "N", r.String("virginia_specific"))
	assert.Empty(t, r.String("federal_share_pct"))
	assert.Empty(t, r.String("eligible_activities"))
}

func TestDedupeByTitle(t *testing.T) {
	static := RecordOf("title", "Highway Safety Improvement Program", "grant_id", "VA-HSIP")
	downloaded := RecordOf("title", "Highway Safety Improvement Program", "grant_id", "FED-1")
	other := RecordOf("title", "Other", "grant_id", "FED-2")
	blank1 := RecordOf("title", "", "grant_id", "B1")
	blank2 := RecordOf("title", nil, "grant_id", "B2")

	out := DedupeByTitle(RecordSet{static, blank1, downloaded, other, blank2})

	require.Len(t, out, 4)
	assert.Equal(t, "VA-HSIP", out[0].String("grant_id"))
	assert.Equal(t, "B1", out[1].String("grant_id"))
	assert.Equal(t, "FED-2", out[2].String("grant_id"))
	assert.Equal(t, "B2", out[3].String("grant_id"))
}

func TestSortByDate_MissingLastAndStable(t *testing.T) {
	rs := RecordSet{
		RecordOf("id", "a", "close_date", nil),
		RecordOf("id", "b", "close_date", "2026-03-01"),
		RecordOf("id", "c", "close_date", "TBD"),
		RecordOf("id", "d", "close_date", "01152026"),
		RecordOf("id", "e", "close_date", "2026-03-01"),
	}

	SortByDate(rs, "close_date")

	var ids []string
	for _, r := range rs {
		ids = append(ids, r.String("id"))
	}
	assert.Equal(t, []string{"d", "b", "e", "a", "c"}, ids)
}

func TestStamp(t *testing.T) {
	rs := RecordSet{RecordOf("a", 1.0), RecordOf("a", 2.0)}
	Stamp(rs, "last_updated", "2026-10-19")
	for _, r := range rs {
		assert.Equal(t, "2026-10-19", r.String("last_updated"))
	}
}
