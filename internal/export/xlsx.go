package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
)

// sheetName is the worksheet holding the tax units.
const sheetName = "taxunits"

// WriteXLSX writes the records to a workbook at path.
//
// Rows are streamed, so memory use does not grow with the record count. A
// worksheet holds at most excelize.TotalRows rows, header included.
func WriteXLSX(path string, records []taxunit.Record, slots int) error {
	if len(records)+1 > excelize.TotalRows {
		return fmt.Errorf("%d records do not fit in one worksheet", len(records))
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to name worksheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("failed to open worksheet stream: %w", err)
	}

	cols := Columns(slots)

	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]interface{}, len(cols))
	for i := range records {
		rec := &records[i]
		for j, c := range cols {
			row[j] = c.Value(rec)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush worksheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
