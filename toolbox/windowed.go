package toolbox

import (
	"fmt"
	"math/rand"

	"github.com/ahmedtd/neuralnet/numeric"
)

// Windowed applies each filter once, aligned at input position 0:
//
//	z[i] = b[i] + sum_{j < FilterSize, j < len(x)} x[j]*F[i][j]
//
// Filter positions past the end of the input contribute zero.  The window is
// never slid across the input.
type Windowed[T numeric.Number] struct {
	*affine[T]
}

var _ Layer[float32] = (*Windowed[float32])(nil)

// NewWindowed builds a windowed layer from explicit filters and biases.
func NewWindowed[T numeric.Number](activation ActivationType, filters [][]T, bias []T) (*Windowed[T], error) {
	a, err := newAffine(activation, filters, bias)
	if err != nil {
		return nil, fmt.Errorf("while building windowed layer: %w", err)
	}
	return &Windowed[T]{a}, nil
}

// WindowedFrom fills a (filters, filterSize) matrix with the same policy as
// DenseFrom.
func WindowedFrom[T numeric.Number](values []T, filters, filterSize int) (*Windowed[T], error) {
	a, err := affineFrom(values, filters, filterSize)
	if err != nil {
		return nil, fmt.Errorf("while building windowed layer: %w", err)
	}
	return &Windowed[T]{a}, nil
}

// MakeWindowed builds randomly initialized filters the same way MakeDense
// initializes weights.
func MakeWindowed[T numeric.Number](activation ActivationType, filters, filterSize int, r *rand.Rand) (*Windowed[T], error) {
	a, err := affineRandom[T](activation, filters, filterSize, r)
	if err != nil {
		return nil, fmt.Errorf("while building windowed layer: %w", err)
	}
	return &Windowed[T]{a}, nil
}

func (l *Windowed[T]) Filters() int {
	return l.w.Shape[0]
}

func (l *Windowed[T]) FilterSize() int {
	return l.w.Shape[1]
}

// Accepts any non-empty input.  Inputs longer than the filter have their tail
// ignored.
func (l *Windowed[T]) Accepts(n int) bool {
	return n > 0
}

func (l *Windowed[T]) Forward(x, z []T) error {
	if len(z) != l.Filters() {
		return fmt.Errorf("windowed output has length %d, want %d: %w", len(z), l.Filters(), numeric.ErrShapeMismatch)
	}

	n := min(len(x), l.FilterSize())
	for i := range z {
		row := l.w.Row(i)
		acc := l.b.V[i]
		for j := 0; j < n; j++ {
			acc += x[j] * row[j]
		}
		z[i] = acc
	}
	return nil
}

// Gradients leaves the filter positions with no matching input untouched.
func (l *Windowed[T]) Gradients(x, delta []T, dw, db *Array[T]) error {
	return outerProductInto(x, delta, l.w.Shape, dw, db)
}

// Backprop writes the propagated error for every input position.  Positions at
// or beyond FilterSize never reached the output, so their error is zero.
func (l *Windowed[T]) Backprop(delta, dx []T) error {
	n := min(len(dx), l.FilterSize())
	if err := transposeProductInto(l.w, delta, dx[:n]); err != nil {
		return err
	}
	for j := n; j < len(dx); j++ {
		dx[j] = numeric.Zero[T]()
	}
	return nil
}
