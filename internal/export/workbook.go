// Package export renders draft grids as spreadsheets for download.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rongwang/fabricstock/internal/ledger"
	"github.com/rongwang/fabricstock/internal/service"
)

// SheetName is the name of the single sheet in an exported workbook
const SheetName = "Draft"

// NotApplicable marks a diameter the row carries no detail for
const NotApplicable = "-"

// WriteWorkbook writes the draft grid as an XLSX workbook: one row per line
// item with rolls and weight per diameter, the row total, and a closing
// totals row. colorNames resolves color IDs; unknown IDs are shown as "#ID".
func WriteWorkbook(w io.Writer, view *service.DraftView, colorNames map[int64]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	grid := view.Grid
	if err := writeRow(f, 1, headerRow(grid.Diameters)); err != nil {
		return err
	}

	colRolls := make([]int, len(grid.Diameters))
	colWeight := make([]decimal.Decimal, len(grid.Diameters))
	for i := range colWeight {
		colWeight[i] = decimal.Zero
	}

	for i, r := range grid.Rows {
		row := []interface{}{colorLabel(r.ColorID, colorNames)}
		for j, cell := range r.Cells {
			if !cell.Present {
				row = append(row, NotApplicable, NotApplicable)
				continue
			}
			row = append(row, cell.Rolls, ledger.FormatWeight(cell.Weight))
			colRolls[j] += cell.Rolls
			colWeight[j] = colWeight[j].Add(cell.Weight)
		}
		row = append(row, r.Subtotal.Rolls, ledger.FormatWeight(r.Subtotal.Weight))
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	totals := []interface{}{"Total"}
	for j := range grid.Diameters {
		totals = append(totals, colRolls[j], ledger.FormatWeight(colWeight[j]))
	}
	totals = append(totals, grid.Summary.TotalRolls, ledger.FormatWeight(grid.Summary.TotalWeight))
	totalsRow := len(grid.Rows) + 2
	if err := writeRow(f, totalsRow, totals); err != nil {
		return err
	}

	if err := boldRows(f, len(totals), 1, totalsRow); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func headerRow(diameters []int) []interface{} {
	row := []interface{}{"Color"}
	for _, dia := range diameters {
		row = append(row, fmt.Sprintf("%d Rolls", dia), fmt.Sprintf("%d Weight", dia))
	}
	return append(row, "Total Rolls", "Total Weight")
}

func colorLabel(colorID int, names map[int64]string) string {
	if colorID == ledger.Placeholder {
		return "(unselected)"
	}
	if name, ok := names[int64(colorID)]; ok {
		return name
	}
	return fmt.Sprintf("#%d", colorID)
}

func writeRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func boldRows(f *excelize.File, width int, rows ...int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	for _, row := range rows {
		first, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(width, row)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, first, last, style); err != nil {
			return fmt.Errorf("failed to style row %d: %w", row, err)
		}
	}
	return nil
}
