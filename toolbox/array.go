package toolbox

import (
	"fmt"
	"slices"

	"github.com/ahmedtd/neuralnet/numeric"
)

// Array is a row-major flat buffer carrying its dimensions.
type Array[T numeric.Number] struct {
	V     []T
	Shape []int
}

// MakeArray panics on a non-positive dimension.  Public constructors validate
// their dimensions first and report ErrInvalidArgument instead.
func MakeArray[T numeric.Number](shape ...int) *Array[T] {
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("invalid shape: %v", shape))
		}
	}
	size := 1
	for _, s := range shape {
		size *= s
	}

	return &Array[T]{
		V:     make([]T, size),
		Shape: slices.Clone(shape),
	}
}

// ArrayOf wraps a copy of v as a one-dimensional array.
func ArrayOf[T numeric.Number](v ...T) *Array[T] {
	return &Array[T]{
		V:     slices.Clone(v),
		Shape: []int{len(v)},
	}
}

func MakeScalarArray[T numeric.Number](scalar T) *Array[T] {
	return &Array[T]{
		V:     []T{scalar},
		Shape: []int{1},
	}
}

// Clone returns a deep copy, values included.
func (a *Array[T]) Clone() *Array[T] {
	return &Array[T]{
		V:     slices.Clone(a.V),
		Shape: slices.Clone(a.Shape),
	}
}

func (a *Array[T]) SameShape(b *Array[T]) bool {
	return slices.Equal(a.Shape, b.Shape)
}

func (a *Array[T]) Fill(v T) {
	for i := range a.V {
		a.V[i] = v
	}
}

func (a *Array[T]) At1(idx int) T {
	return a.V[idx]
}

func (a *Array[T]) At2(idx0, idx1 int) T {
	if len(a.Shape) != 2 {
		panic("At2() invalid for len(shape) != 2")
	}
	return a.V[idx0*a.Shape[1]+idx1]
}

// Row returns the storage of row i of a 2-D array.  The slice aliases a.V.
func (a *Array[T]) Row(i int) []T {
	cols := a.Shape[1]
	return a.V[i*cols : i*cols+cols]
}

// Rows copies a 2-D array out as a slice of rows.
func (a *Array[T]) Rows() [][]T {
	rows := make([][]T, a.Shape[0])
	for i := range rows {
		rows[i] = slices.Clone(a.Row(i))
	}
	return rows
}

// checkShape reports ErrShapeMismatch when got does not have shape want.
func checkShape[T numeric.Number](name string, got *Array[T], want ...int) error {
	if got == nil {
		return fmt.Errorf("%s is nil: %w", name, numeric.ErrShapeMismatch)
	}
	if !slices.Equal(got.Shape, want) || len(got.V) != product(want) {
		return fmt.Errorf("%s has shape %v, want %v: %w", name, got.Shape, want, numeric.ErrShapeMismatch)
	}
	return nil
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
