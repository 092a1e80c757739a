package ingest_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/DeafMist/press-radar/internal/ingest"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
		require.NoError(t, f.DeleteSheet("Sheet1"))
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}

	path := filepath.Join(t.TempDir(), "siaran-pers.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestWorkbookFetch(t *testing.T) {
	path := writeWorkbook(t, "Rilis", [][]any{
		{"id", "tanggal", "narasumber", "topik", "isi"},
		{"sp-1", "2024-08-16", "Kementerian Keuangan", "fiskal;pajak", "Belanja negara naik"},
		{"sp-2", "2024-08-17", "Kementerian Perdagangan", "ekspor", "Ekspor naik tajam"},
	})

	src, err := ingest.NewWorkbook(path, "")
	require.NoError(t, err)
	require.Equal(t, "xlsx:"+path, src.Name())

	raws, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 2)
	require.Equal(t, "sp-1", raws[0].ID)
	require.Equal(t, []string{"fiskal", "pajak"}, raws[0].Topics)
	require.Equal(t, "Kementerian Perdagangan", raws[1].Source)
}

func TestWorkbookErrors(t *testing.T) {
	_, err := ingest.NewWorkbook("", "")
	require.Error(t, err)

	src, err := ingest.NewWorkbook(filepath.Join(t.TempDir(), "missing.xlsx"), "")
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	require.ErrorContains(t, err, "open workbook")

	path := writeWorkbook(t, "Sheet1", [][]any{{"id", "date", "source", "text"}})
	src, err = ingest.NewWorkbook(path, "Nope")
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	require.ErrorContains(t, err, "Nope")
}
