package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ReadCSV reads comma-separated numeric rows.  The last numTargets columns of
// each row are targets.  If header is set, the first record is skipped.
func ReadCSV(r io.Reader, numTargets int, header bool) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	var rows [][]float32
	for n := 0; ; n++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while reading CSV: %w", err)
		}
		if header && n == 0 {
			continue
		}

		row := make([]float32, len(record))
		for j, cell := range record {
			v, err := parseCell(cell)
			if err != nil {
				line, col := cr.FieldPos(j)
				return nil, fmt.Errorf("line %d column %d (field %d): %w", line, col, j+1, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}

	return splitRows(rows, numTargets)
}
