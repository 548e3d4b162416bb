package dataset

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads numeric rows from the first sheet of an Excel workbook.  Cells
// are read as their raw stored values, not as displayed.  Blank rows are
// skipped; the last numTargets columns of every other row are targets.
func ReadXLSX(r io.Reader, numTargets int, header bool) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("while opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := sheets[0]

	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("while reading sheet %s: %w", sheet, err)
	}

	var rows [][]float32
	for i, record := range records {
		if header && i == 0 {
			continue
		}
		if len(record) == 0 {
			continue
		}

		row := make([]float32, len(record))
		for j, cell := range record {
			v, err := parseCell(cell)
			if err != nil {
				name, _ := excelize.CoordinatesToCellName(j+1, i+1)
				return nil, fmt.Errorf("sheet %s cell %s: %w", sheet, name, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}

	return splitRows(rows, numTargets)
}
