// Package dataset reads numeric training tables from CSV, JSON, Excel, and
// NumPy files.  Every reader produces float32 rows split into features and targets;
// malformed cells are reported as errors, never replaced with zero.
package dataset

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Table holds one sample per row.  Features[k] and Targets[k] belong to the
// same sample.
type Table struct {
	Features [][]float32
	Targets  [][]float32
}

func (t *Table) Len() int {
	return len(t.Features)
}

func (t *Table) NumFeatures() int {
	if len(t.Features) == 0 {
		return 0
	}
	return len(t.Features[0])
}

func (t *Table) NumTargets() int {
	if len(t.Targets) == 0 {
		return 0
	}
	return len(t.Targets[0])
}

// splitRows turns rectangular rows into a table, taking the last numTargets
// columns of each row as targets.
func splitRows(rows [][]float32, numTargets int) (*Table, error) {
	if numTargets < 1 {
		return nil, fmt.Errorf("need at least one target column, got %d", numTargets)
	}

	t := &Table{
		Features: make([][]float32, len(rows)),
		Targets:  make([][]float32, len(rows)),
	}
	for k, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("row %d has %d columns, want %d", k, len(row), len(rows[0]))
		}
		if len(row) <= numTargets {
			return nil, fmt.Errorf("row %d has %d columns, need more than %d", k, len(row), numTargets)
		}
		split := len(row) - numTargets
		t.Features[k] = row[:split:split]
		t.Targets[k] = row[split:]
	}
	return t, nil
}

// parseCell parses one textual cell.  NaN and infinities are rejected along
// with anything ParseFloat refuses.
func parseCell(cell string) (float32, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 32)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", cell)
	}
	return float32(v), nil
}

// Load reads a table from path, choosing the reader by file extension.
// CSV files and the first sheet of XLSX workbooks are expected to carry a
// header row.  NPZ archives must hold arrays
// saved as "x" and "y" (x.npy and y.npy inside the archive), and numTargets is
// ignored for them.
func Load(path string, numTargets int) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".npz":
		return ReadNPZ(path, "x.npy", "y.npy")
	case ".csv", ".json", ".xlsx", ".npy":
	default:
		return nil, fmt.Errorf("unrecognized data file extension %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening data file: %w", err)
	}
	defer f.Close()

	switch ext {
	case ".csv":
		return ReadCSV(f, numTargets, true)
	case ".json":
		return ReadJSON(f, numTargets)
	case ".xlsx":
		return ReadXLSX(f, numTargets, true)
	default:
		rows, err := ReadNPY(f)
		if err != nil {
			return nil, err
		}
		return splitRows(rows, numTargets)
	}
}
