package dataset

import (
	"fmt"
	"io"

	"github.com/sbinet/npyio/npy"
	"github.com/sbinet/npyio/npz"
)

// ReadNPY reads one C-ordered .npy array of rank 1 or 2.  A rank-1 array is
// returned as a single column.
func ReadNPY(r io.Reader) ([][]float32, error) {
	rd, err := npy.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("while reading npy header: %w", err)
	}
	return readArray(rd.Header, rd.Read)
}

// ReadNPZ reads a table from two arrays of a .npz archive.  Both arrays must
// have the same number of rows.
func ReadNPZ(path, xName, yName string) (*Table, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening npz file: %w", err)
	}
	defer r.Close()

	read := func(name string) ([][]float32, error) {
		header := r.Header(name)
		if header == nil {
			return nil, fmt.Errorf("npz file has no array %q", name)
		}
		rows, err := readArray(*header, func(ptr any) error { return r.Read(name, ptr) })
		if err != nil {
			return nil, fmt.Errorf("while reading %s: %w", name, err)
		}
		return rows, nil
	}

	x, err := read(xName)
	if err != nil {
		return nil, err
	}
	y, err := read(yName)
	if err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%s has %d rows but %s has %d", xName, len(x), yName, len(y))
	}

	return &Table{Features: x, Targets: y}, nil
}

func readArray(header npy.Header, read func(ptr any) error) ([][]float32, error) {
	if header.Descr.Fortran {
		return nil, fmt.Errorf("Fortran-ordered arrays are not supported")
	}

	var rows, cols int
	switch shape := header.Descr.Shape; len(shape) {
	case 1:
		rows, cols = shape[0], 1
	case 2:
		rows, cols = shape[0], shape[1]
	default:
		return nil, fmt.Errorf("unsupported array shape %v", shape)
	}

	flat, err := readFlat(header.Descr.Type, read)
	if err != nil {
		return nil, err
	}
	if len(flat) != rows*cols {
		return nil, fmt.Errorf("array has %d values for shape %v", len(flat), header.Descr.Shape)
	}

	out := make([][]float32, rows)
	for k := range out {
		out[k] = flat[k*cols : (k+1)*cols : (k+1)*cols]
	}
	return out, nil
}

// readFlat reads the raw values in their stored dtype and widens or narrows
// them to float32.
func readFlat(dtype string, read func(ptr any) error) ([]float32, error) {
	switch dtype {
	case "<f4":
		var raw []float32
		if err := read(&raw); err != nil {
			return nil, fmt.Errorf("while reading float32 array: %w", err)
		}
		return raw, nil
	case "<f8":
		var raw []float64
		if err := read(&raw); err != nil {
			return nil, fmt.Errorf("while reading float64 array: %w", err)
		}
		return convert(raw), nil
	case "|u1", "<u1":
		var raw []uint8
		if err := read(&raw); err != nil {
			return nil, fmt.Errorf("while reading uint8 array: %w", err)
		}
		return convert(raw), nil
	case "<i4":
		var raw []int32
		if err := read(&raw); err != nil {
			return nil, fmt.Errorf("while reading int32 array: %w", err)
		}
		return convert(raw), nil
	case "<i8":
		var raw []int64
		if err := read(&raw); err != nil {
			return nil, fmt.Errorf("while reading int64 array: %w", err)
		}
		return convert(raw), nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}
}

func convert[T uint8 | int32 | int64 | float64](raw []T) []float32 {
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out
}
