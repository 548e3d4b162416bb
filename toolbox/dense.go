package toolbox

import (
	"fmt"
	"math/rand"

	"github.com/ahmedtd/neuralnet/numeric"
)

// Dense is a fully connected layer: z = W*x + b.
type Dense[T numeric.Number] struct {
	*affine[T]
}

var _ Layer[float32] = (*Dense[float32])(nil)

// NewDense builds a dense layer from explicit weight rows (one per output)
// and biases.
func NewDense[T numeric.Number](activation ActivationType, weights [][]T, bias []T) (*Dense[T], error) {
	a, err := newAffine(activation, weights, bias)
	if err != nil {
		return nil, fmt.Errorf("while building dense layer: %w", err)
	}
	return &Dense[T]{a}, nil
}

// DenseFrom fills an (outputSize, inputSize) weight matrix row-major from
// values, zero-filling any shortfall and ignoring any surplus.  Biases start at
// zero and the activation is Linear.
func DenseFrom[T numeric.Number](values []T, outputSize, inputSize int) (*Dense[T], error) {
	a, err := affineFrom(values, outputSize, inputSize)
	if err != nil {
		return nil, fmt.Errorf("while building dense layer: %w", err)
	}
	return &Dense[T]{a}, nil
}

// MakeDense builds a randomly initialized dense layer mapping inputSize values
// to outputSize values.  Note the argument order is input then output, the
// reverse of DenseFrom and MakeWindowed.  Only continuous representations can
// be randomly initialized.
func MakeDense[T numeric.Number](activation ActivationType, inputSize, outputSize int, r *rand.Rand) (*Dense[T], error) {
	a, err := affineRandom[T](activation, outputSize, inputSize, r)
	if err != nil {
		return nil, fmt.Errorf("while building dense layer: %w", err)
	}
	return &Dense[T]{a}, nil
}

func (l *Dense[T]) InputSize() int {
	return l.w.Shape[1]
}

func (l *Dense[T]) Accepts(n int) bool {
	return n == l.InputSize()
}

// Forward computes z[i] = b[i] + sum_j x[j]*W[i][j].
//
// x (input) is the layer input.  Length lay.InputSize()
// z (output) is the linear output.  Length lay.OutputSize()
func (l *Dense[T]) Forward(x, z []T) error {
	inputSize := l.InputSize()
	outputSize := l.OutputSize()
	if len(x) != inputSize {
		return fmt.Errorf("dense input has length %d, want %d: %w", len(x), inputSize, numeric.ErrShapeMismatch)
	}
	if len(z) != outputSize {
		return fmt.Errorf("dense output has length %d, want %d: %w", len(z), outputSize, numeric.ErrShapeMismatch)
	}

	for i := 0; i < outputSize; i++ {
		row := l.w.Row(i)
		acc := l.b.V[i]
		for j := 0; j < inputSize; j++ {
			acc += x[j] * row[j]
		}
		z[i] = acc
	}
	return nil
}

// Gradients adds delta ⊗ x into dw and delta into db.
func (l *Dense[T]) Gradients(x, delta []T, dw, db *Array[T]) error {
	if len(x) != l.InputSize() {
		return fmt.Errorf("dense input has length %d, want %d: %w", len(x), l.InputSize(), numeric.ErrShapeMismatch)
	}
	return outerProductInto(x, delta, l.w.Shape, dw, db)
}

// Backprop computes dx[j] = sum_i delta[i]*W[i][j].
func (l *Dense[T]) Backprop(delta, dx []T) error {
	if len(dx) != l.InputSize() {
		return fmt.Errorf("dense input error has length %d, want %d: %w", len(dx), l.InputSize(), numeric.ErrShapeMismatch)
	}
	return transposeProductInto(l.w, delta, dx)
}

// outerProductInto accumulates the weight and bias gradients of an affine
// layer whose weight matrix has the given shape.  Input positions beyond
// len(x) contribute nothing.
func outerProductInto[T numeric.Number](x, delta []T, shape []int, dw, db *Array[T]) error {
	if err := checkShape("weight gradient", dw, shape...); err != nil {
		return err
	}
	if err := checkShape("bias gradient", db, shape[0]); err != nil {
		return err
	}
	if len(delta) != shape[0] {
		return fmt.Errorf("local error has length %d, want %d: %w", len(delta), shape[0], numeric.ErrShapeMismatch)
	}

	n := min(len(x), shape[1])
	for i := 0; i < shape[0]; i++ {
		row := dw.Row(i)
		for j := 0; j < n; j++ {
			row[j] += delta[i] * x[j]
		}
		db.V[i] += delta[i]
	}
	return nil
}

// transposeProductInto computes dx = W^T delta over the first len(dx) columns
// of W.
func transposeProductInto[T numeric.Number](w *Array[T], delta, dx []T) error {
	if len(delta) != w.Shape[0] {
		return fmt.Errorf("local error has length %d, want %d: %w", len(delta), w.Shape[0], numeric.ErrShapeMismatch)
	}
	if len(dx) > w.Shape[1] {
		return fmt.Errorf("input error has length %d, at most %d supported: %w", len(dx), w.Shape[1], numeric.ErrShapeMismatch)
	}

	for j := range dx {
		dx[j] = numeric.Zero[T]()
	}
	for i := 0; i < w.Shape[0]; i++ {
		row := w.Row(i)
		for j := range dx {
			dx[j] += delta[i] * row[j]
		}
	}
	return nil
}
