package fetcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTestXLSX(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)

	for _, row := range rows {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().SetString(cell)
		}
	}

	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestStreamXLSX(t *testing.T) {
	path := writeTestXLSX(t, "annotations", [][]string{
		{"item_id", "label"},
		{"1", "positive"},
		{"2", "negative"},
	})

	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"item_id", "label"}, <-headerCh)
	assert.Equal(t, []string{"1", "positive"}, rows[0])
	assert.Equal(t, []string{"2", "negative"}, rows[1])
}

func TestStreamXLSX_SheetByName(t *testing.T) {
	path := writeTestXLSX(t, "batch-07", [][]string{{"1", "spam"}})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "batch-07"})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"1", "spam"}, rows[0])
}

func TestStreamXLSX_MissingSheet(t *testing.T) {
	path := writeTestXLSX(t, "annotations", [][]string{{"1", "spam"}})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "nope"})
	_, err := collectRows(t, rowCh, errCh)
	assert.Error(t, err)
}

func TestStreamXLSX_MissingFile(t *testing.T) {
	rowCh, errCh := StreamXLSX(context.Background(), filepath.Join(t.TempDir(), "absent.xlsx"), XLSXOptions{})
	_, err := collectRows(t, rowCh, errCh)
	assert.Error(t, err)
}
