package csvdoc

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leadsCSV = "Company,Website Base URL,Status\n" +
	"Acme,https://acme.io,Scrap Pending\n" +
	",,\n" +
	"\"Globex, Inc\",https://globex.com,Scrap Done\n"

func assertAligned(t *testing.T, doc *Document) {
	t.Helper()
	for i, row := range doc.Rows {
		assert.Len(t, row, len(doc.Headers), "row %d misaligned", i)
	}
}

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(leadsCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"Company", "Website Base URL", "Status"}, doc.Headers)
	require.Equal(t, 2, doc.RowCount())
	assert.Equal(t, "Globex, Inc", doc.Rows[1][0])
}

func TestParse_Empty(t *testing.T) {
	doc, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, doc.Headers)
	assert.Equal(t, 0, doc.RowCount())
}

func TestParse_StripsBOM(t *testing.T) {
	doc, err := Parse(strings.NewReader("\ufeffCompany,Website\nAcme,acme.io\n"))
	require.NoError(t, err)
	assert.Equal(t, "Company", doc.Headers[0])
}

func TestParse_RaggedRows(t *testing.T) {
	doc, err := Parse(strings.NewReader("a,b\n1\n1,2,3\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "Column 3"}, doc.Headers)
	assert.Equal(t, []string{"1", "", ""}, doc.Rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, doc.Rows[1])
	assertAligned(t, doc)
}

func TestRoundTrip_PreservesAlignment(t *testing.T) {
	doc, err := Parse(strings.NewReader(leadsCSV))
	require.NoError(t, err)

	require.NoError(t, doc.SetCell(0, 2, "Begin Scrapping"))
	require.NoError(t, doc.SetHeader(1, "Website"))
	doc.AddColumn()
	require.NoError(t, doc.SetCell(1, 3, "line one\nline two"))

	out, err := doc.Bytes()
	require.NoError(t, err)

	reparsed, err := Parse(bytes.NewReader(out))
	require.NoError(t, err)

	assert.Equal(t, doc.Headers, reparsed.Headers)
	assert.Equal(t, doc.Rows, reparsed.Rows)
	assertAligned(t, reparsed)

	// a one-column document whose header is empty keeps its header line
	single := &Document{Headers: []string{""}, Rows: [][]string{{"x"}}}
	out, err = single.Bytes()
	require.NoError(t, err)
	reparsed, err = Parse(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, single.Headers, reparsed.Headers)
	assert.Equal(t, single.Rows, reparsed.Rows)
}

func TestRowAndColumnOps_KeepAlignment(t *testing.T) {
	doc, err := Parse(strings.NewReader(leadsCSV))
	require.NoError(t, err)

	idx := doc.AddRow()
	assert.Equal(t, 2, idx)
	assertAligned(t, doc)

	col := doc.AddColumn()
	assert.Equal(t, 3, col)
	assert.Equal(t, "Column 4", doc.Headers[3])
	assertAligned(t, doc)

	require.NoError(t, doc.DeleteColumn(0))
	assert.Equal(t, []string{"Website Base URL", "Status", "Column 4"}, doc.Headers)
	assertAligned(t, doc)

	require.NoError(t, doc.DeleteRow(0))
	assert.Equal(t, 2, doc.RowCount())
	assert.Equal(t, "https://globex.com", doc.Rows[0][0])
	assertAligned(t, doc)
}

func TestOps_OutOfRange(t *testing.T) {
	doc, err := Parse(strings.NewReader(leadsCSV))
	require.NoError(t, err)

	for _, err := range []error{
		doc.SetCell(5, 0, "x"),
		doc.SetCell(0, 9, "x"),
		doc.SetHeader(-1, "x"),
		doc.DeleteRow(2),
		doc.DeleteColumn(3),
	} {
		var rangeErr *RangeError
		assert.ErrorAs(t, err, &rangeErr)
		assert.True(t, IsInvalidEdit(err))
	}
}

func TestApply_AllOrNothing(t *testing.T) {
	doc, err := Parse(strings.NewReader(leadsCSV))
	require.NoError(t, err)
	before := doc.Clone()

	err = doc.Apply([]Edit{
		{Op: OpSetCell, Row: 0, Col: 0, Value: "Changed"},
		{Op: OpDeleteRow, Row: 10},
	})
	require.Error(t, err)
	assert.True(t, IsInvalidEdit(err))
	assert.Equal(t, before, doc)
}

func TestApply_Sequence(t *testing.T) {
	doc, err := Parse(strings.NewReader(leadsCSV))
	require.NoError(t, err)

	err = doc.Apply([]Edit{
		{Op: OpAddRow},
		{Op: OpSetCell, Row: 2, Col: 0, Value: "Initech"},
		{Op: OpAddColumn},
		{Op: OpSetHeader, Col: 3, Value: "Notes"},
		{Op: OpDeleteColumn, Col: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Company", "Website Base URL", "Notes"}, doc.Headers)
	assert.Equal(t, []string{"Initech", "", ""}, doc.Rows[2])
	assertAligned(t, doc)
}

func TestApply_UnknownOp(t *testing.T) {
	doc := &Document{Headers: []string{"a"}}
	err := doc.Apply([]Edit{{Op: "merge_cells"}})

	var opErr *UnknownOpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "merge_cells", opErr.Op)
	assert.True(t, IsInvalidEdit(err))
	assert.False(t, IsInvalidEdit(errors.New("disk full")))
}

func TestRoundTrip_SingleEmptyColumn(t *testing.T) {
	doc := &Document{Headers: []string{""}, Rows: [][]string{{"a"}, {"b"}}}

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "\"\"\na\nb\n", string(out))

	reparsed, err := Parse(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, doc.Headers, reparsed.Headers)
	assert.Equal(t, doc.Rows, reparsed.Rows)
}

func TestCompact(t *testing.T) {
	doc := &Document{Headers: []string{"a", "b"}, Rows: [][]string{{"1", "2"}, {"", ""}, {"", "3"}}}
	doc.Compact()

	assert.Equal(t, [][]string{{"1", "2"}, {"", "3"}}, doc.Rows)
	assert.Equal(t, 2, doc.RowCount())
}
