package sample

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet name WriteWorkbook uses when none is given.
const DefaultSheet = "IPRESS"

// WriteWorkbook writes facilities to an .xlsx file with WorkbookHeader as its
// first row. Numeric coordinates are stored as numbers.
func WriteWorkbook(path, sheet string, facilities []Facility) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &WorkbookHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, fac := range facilities {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := toRow(fac.Cells())
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// toRow keeps the last two cells (NORTE, ESTE) numeric when they parse.
func toRow(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
		if i >= len(cells)-2 {
			if v, err := strconv.ParseFloat(c, 64); err == nil {
				out[i] = v
			}
		}
	}
	return out
}
