package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/DeafMist/press-radar/internal/models"
)

// Workbook reads press releases from a sheet of an .xlsx export. The
// file is reopened on every fetch so a replaced export is picked up by the
// next refresh.
type Workbook struct {
	Path    string
	Sheet   string
	Columns Columns
}

// NewWorkbook builds a workbook source. An empty sheet selects the first sheet.
func NewWorkbook(path, sheet string) (*Workbook, error) {
	if path == "" {
		return nil, errors.New("workbook path is required")
	}
	return &Workbook{Path: path, Sheet: sheet, Columns: DefaultColumns()}, nil
}

func (w *Workbook) Name() string {
	return "xlsx:" + w.Path
}

func (w *Workbook) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	f, err := excelize.OpenFile(w.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sheet := w.Sheet
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = list[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return FromRows(rows[0], rows[1:], w.Columns)
}
