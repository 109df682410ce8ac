package export

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/orgchart/internal/orgtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTree() *orgtree.Tree {
	return orgtree.BuildTree([]orgtree.Member{
		{ID: "o", FullName: "Olive Owner", Email: "o@example.com", Role: orgtree.RoleOwner, IsActive: true},
		{ID: "m", FullName: "Max Manager", Email: "m@example.com", Role: orgtree.RoleManager, ReportsTo: "o", IsActive: true},
		{ID: "s", FullName: "Sky Staff", Email: "s@example.com", Role: orgtree.RoleStaff, ReportsTo: "m"},
		{ID: "x", FullName: "Lone Manager", Role: orgtree.RoleManager, IsActive: true},
		{ID: "c1", Role: orgtree.RoleStaff, ReportsTo: "c2"},
		{ID: "c2", Role: orgtree.RoleStaff, ReportsTo: "c1"},
	})
}

func TestFlattenOrdersTreeThenDetached(t *testing.T) {
	rows := Flatten(sampleTree())
	require.Len(t, rows, 4)

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"o", "m", "s", "x"}, ids)
	assert.Equal(t, 2, rows[2].Depth)
	assert.Equal(t, SectionTree, rows[2].Section)
	assert.Equal(t, SectionDetached, rows[3].Section)
	assert.Equal(t, "m", rows[2].Manager)
}

func TestFlattenNilTree(t *testing.T) {
	assert.Empty(t, Flatten(nil))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	_, err = ParseFormat("csv")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestRenderXLSX(t *testing.T) {
	body, err := RenderXLSX(sampleTree())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetChart)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, chartHeader, rows[0])
	assert.Equal(t, "Olive Owner", rows[1][3])
	assert.Equal(t, "detached", rows[4][0])

	unplaced, err := f.GetRows(sheetUnplaced)
	require.NoError(t, err)
	require.Len(t, unplaced, 3)
	assert.Equal(t, []string{"c1", "reporting cycle"}, unplaced[1])
}

func TestRenderPDF(t *testing.T) {
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	doc, err := Render(FormatPDF, sampleTree(), at)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF")))
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "org-chart-20260402.pdf", doc.Filename)
}

func TestRenderEmptyTree(t *testing.T) {
	doc, err := Render(FormatPDF, nil, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Body)

	_, err = Render(Format("csv"), nil, time.Now())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
