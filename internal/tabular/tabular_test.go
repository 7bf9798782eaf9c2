package tabular

import (
	"testing"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	commaTable = "OpportunityID,OpportunityTitle,CFDANumbers\n" +
		"1001,Safe Streets for All,20.939\n" +
		"1002,\"Bridge Investment, Large\",20.940\n"
	pipeTable = "OpportunityID|OpportunityTitle|CFDANumbers\n" +
		"1001|Safe Streets for All|20.939\n" +
		"1002|Bridge Investment, Large|\n"
	xmlTable = `<?xml version="1.0" encoding="UTF-8"?>
<Grants>
  <OpportunitySynopsisDetail_1_0>
    <OpportunityID>1001</OpportunityID>
    <OpportunityTitle>Safe Streets for All</OpportunityTitle>
    <CFDANumbers>20.939</CFDANumbers>
    <CFDANumbers>20.940</CFDANumbers>
  </OpportunitySynopsisDetail_1_0>
  <OpportunitySynopsisDetail_1_0 id="x">
    <OpportunityID>1002</OpportunityID>
    <OpportunityTitle>Bridge Investment</OpportunityTitle>
    <CloseDate></CloseDate>
  </OpportunitySynopsisDetail_1_0>
</Grants>`
)

func TestParse_PicksFormatByContent(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
	}{
		{"comma", commaTable, "csv"},
		{"xml", xmlTable, "xml"},
		{"pipe", pipeTable, "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, format, err := Parse([]byte(tt.data), DefaultStrategies)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			require.Len(t, rs, 2)
			assert.Equal(t, "1001", rs[0].String("OpportunityID"))
			assert.Equal(t, "Safe Streets for All", rs[0].String("OpportunityTitle"))
		})
	}
}

func TestParse_SingleLineXMLWithComma(t *testing.T) {
	data := "<Grants><Opportunity><OpportunityID>1001</OpportunityID>" +
		"<OpportunityTitle>Roads, bridges</OpportunityTitle></Opportunity></Grants>"

	rs, format, err := Parse([]byte(data), DefaultStrategies)
	require.NoError(t, err)
	assert.Equal(t, "xml", format)
	require.Len(t, rs, 1)
	assert.Equal(t, "Roads, bridges", rs[0].String("OpportunityTitle"))
}

func TestParse_HeaderOnlyIsNotAMatch(t *testing.T) {
	_, _, err := Parse([]byte("OpportunityID,OpportunityTitle\n"), DefaultStrategies)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.Contains(t, err.Error(), "header without data rows")

	rs, err := ParseDelimited([]byte("OpportunityID,OpportunityTitle\n"), ',', 2)
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestParse_AllStrategiesFail(t *testing.T) {
	_, _, err := Parse([]byte{}, DefaultStrategies)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.Contains(t, err.Error(), "csv")
	assert.Contains(t, err.Error(), "xml")
	assert.Contains(t, err.Error(), "pipe")
}

func TestParseDelimited(t *testing.T) {
	t.Run("quoted comma and empty cell", func(t *testing.T) {
		rs, err := ParseDelimited([]byte(commaTable+"1003,,\n"), ',', 2)
		require.NoError(t, err)
		require.Len(t, rs, 3)
		assert.Equal(t, "Bridge Investment, Large", rs[1].String("OpportunityTitle"))
		v, ok := rs[2].Get("CFDANumbers")
		assert.True(t, ok)
		assert.Nil(t, v)
	})

	t.Run("byte order mark stripped", func(t *testing.T) {
		rs, err := ParseDelimited(append([]byte{0xEF, 0xBB, 0xBF}, commaTable...), ',', 2)
		require.NoError(t, err)
		assert.Equal(t, "OpportunityID", rs[0].Keys()[0])
	})

	t.Run("pipe file rejected as comma", func(t *testing.T) {
		_, err := ParseDelimited([]byte("a|b|c\n1|2|3\n"), ',', 2)
		require.Error(t, err)
	})

	t.Run("ragged rows rejected", func(t *testing.T) {
		_, err := ParseDelimited([]byte("a,b\n1,2,3\n"), ',', 2)
		require.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ParseDelimited(nil, ',', 1)
		require.Error(t, err)
	})

	t.Run("header only", func(t *testing.T) {
		rs, err := ParseDelimited([]byte("a,b\n"), ',', 2)
		require.NoError(t, err)
		assert.Empty(t, rs)
	})

	t.Run("blank and repeated headers", func(t *testing.T) {
		rs, err := ParseDelimited([]byte("a,,a\n1,2,3\n"), ',', 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "column_2", "a_2"}, rs[0].Keys())
	})
}

func TestParseXML(t *testing.T) {
	rs, err := ParseXML([]byte(xmlTable))
	require.NoError(t, err)
	require.Len(t, rs, 2)

	assert.Equal(t, "20.939; 20.940", rs[0].String("CFDANumbers"))
	assert.Equal(t, "x", rs[1].String("id"))
	v, ok := rs[1].Get("CloseDate")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestParseXML_Rejects(t *testing.T) {
	tests := map[string]string{
		"csv text":      commaTable,
		"empty root":    "<Grants></Grants>",
		"unclosed":      "<Grants><Row><A>1</A>",
		"no root":       "",
		"two roots":     "<A><r/></A><B><r/></B>",
		"pipe text":     pipeTable,
		"garbage bytes": "\x00\x01\x02",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseXML([]byte(data))
			require.Error(t, err)
		})
	}
}
