package export

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const columnWidth = 20

// Workbook builds a multi-sheet spreadsheet with a highlighted header row and
// bordered data rows. Blank rows stay unstyled.
type Workbook struct {
	f           *excelize.File
	sheets      int
	headerStyle int
	cellStyle   int
}

func NewWorkbook() (*Workbook, error) {
	f := excelize.NewFile()

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Border: border,
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "create header style")
	}
	cellStyle, err := f.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "create cell style")
	}

	return &Workbook{f: f, headerStyle: headerStyle, cellStyle: cellStyle}, nil
}

// AddSheet appends a sheet. The first call renames the default sheet.
func (w *Workbook) AddSheet(name string, headers []string, rows [][]any) error {
	if w.sheets == 0 {
		if err := w.f.SetSheetName(w.f.GetSheetName(0), name); err != nil {
			return errors.Wrapf(err, "rename sheet to %s", name)
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return errors.Wrapf(err, "add sheet %s", name)
	}
	w.sheets++

	if len(headers) == 0 {
		return nil
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := w.f.SetSheetRow(name, "A1", &header); err != nil {
		return errors.Wrap(err, "write header row")
	}
	if err := w.styleRow(name, 1, len(headers), w.headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		r := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, r)
		cells := append([]any(nil), row...)
		if err := w.f.SetSheetRow(name, cell, &cells); err != nil {
			return errors.Wrapf(err, "write row %d", r)
		}
		if isBlankRow(row) {
			continue
		}
		if err := w.styleRow(name, r, len(headers), w.cellStyle); err != nil {
			return err
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	return w.f.SetColWidth(name, "A", lastCol, columnWidth)
}

func (w *Workbook) styleRow(sheet string, row, cols, style int) error {
	from, _ := excelize.CoordinatesToCellName(1, row)
	to, _ := excelize.CoordinatesToCellName(cols, row)
	return errors.Wrapf(w.f.SetCellStyle(sheet, from, to, style), "style row %d", row)
}

func (w *Workbook) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return w.f.SaveAs(path)
}

func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	return w.f.WriteTo(out)
}

func (w *Workbook) Close() error {
	return w.f.Close()
}

func isBlankRow(row []any) bool {
	for _, v := range row {
		if FormatCell(v) != "" {
			return false
		}
	}
	return true
}
