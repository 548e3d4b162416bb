package dataset

import (
	"encoding/json"
	"fmt"
	"io"
)

// ReadJSON reads a JSON array of numeric rows, for example
// [[0.5, 1, 0], [0.25, 2, 1]].  The last numTargets entries of each row are
// targets.
func ReadJSON(r io.Reader, numTargets int) (*Table, error) {
	// Pointers so that null cells are caught instead of decoding as zero.
	var cells [][]*float32
	if err := json.NewDecoder(r).Decode(&cells); err != nil {
		return nil, fmt.Errorf("while decoding JSON rows: %w", err)
	}

	rows := make([][]float32, len(cells))
	for k, cellRow := range cells {
		rows[k] = make([]float32, len(cellRow))
		for j, c := range cellRow {
			if c == nil {
				return nil, fmt.Errorf("row %d column %d is null", k, j)
			}
			rows[k][j] = *c
		}
	}
	return splitRows(rows, numTargets)
}
