package toolbox

import (
	"fmt"
	"math/rand"

	"github.com/ahmedtd/neuralnet/numeric"
)

// Layer is one stage of a sequential network: an affine transform owning its
// weights and bias, followed by an elementwise activation.  Dimensions are
// fixed at construction; Update is the only mutator.
type Layer[T numeric.Number] interface {
	Activation() ActivationType

	// OutputSize is the length of the pre-activation output.
	OutputSize() int

	// Accepts reports whether an input of length n is valid.
	Accepts(n int) bool

	// Params returns the live weight (OUT, IN) and bias (OUT) arrays.
	Params() (w, b *Array[T])

	// Forward writes the pre-activation output for input x into z.
	Forward(x, z []T) error

	// MakeGradients allocates zeroed gradient buffers shaped like Params.
	MakeGradients() (dw, db *Array[T])

	// Gradients accumulates (adds) into dw and db the gradients of the loss
	// for input x, given the local error delta at this layer's pre-activation
	// output.
	Gradients(x, delta []T, dw, db *Array[T]) error

	// Backprop writes into dx the error propagated back to this layer's input.
	Backprop(delta, dx []T) error

	// Update performs w -= lr*dw and b -= lr*db in place.
	Update(dw, db *Array[T], learningRate T) error
}

// affine holds the storage and update rule shared by Dense and Windowed.
type affine[T numeric.Number] struct {
	activation ActivationType

	w *Array[T] // Shape (rows, cols)
	b *Array[T] // Shape (rows)
}

func (l *affine[T]) Activation() ActivationType {
	return l.activation
}

func (l *affine[T]) SetActivation(a ActivationType) {
	l.activation = a
}

func (l *affine[T]) OutputSize() int {
	return l.w.Shape[0]
}

func (l *affine[T]) Params() (w, b *Array[T]) {
	return l.w, l.b
}

func (l *affine[T]) MakeGradients() (dw, db *Array[T]) {
	return MakeArray[T](l.w.Shape...), MakeArray[T](l.b.Shape...)
}

func (l *affine[T]) Update(dw, db *Array[T], learningRate T) error {
	if err := checkShape("weight gradient", dw, l.w.Shape...); err != nil {
		return err
	}
	if err := checkShape("bias gradient", db, l.b.Shape...); err != nil {
		return err
	}

	for i := range l.w.V {
		l.w.V[i] -= learningRate * dw.V[i]
	}
	for i := range l.b.V {
		l.b.V[i] -= learningRate * db.V[i]
	}
	return nil
}

// newAffine validates explicit weight rows and a bias vector.
func newAffine[T numeric.Number](activation ActivationType, rows [][]T, bias []T) (*affine[T], error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty weight matrix: %w", numeric.ErrInvalidArgument)
	}
	cols := len(rows[0])
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("weight row %d has %d entries, want %d: %w", i, len(row), cols, numeric.ErrShapeMismatch)
		}
	}
	if len(bias) != len(rows) {
		return nil, fmt.Errorf("bias has %d entries for %d rows: %w", len(bias), len(rows), numeric.ErrShapeMismatch)
	}

	l := &affine[T]{
		activation: activation,
		w:          MakeArray[T](len(rows), cols),
		b:          ArrayOf(bias...),
	}
	for i, row := range rows {
		copy(l.w.Row(i), row)
	}
	return l, nil
}

// affineFrom fills a (rows, cols) matrix row-major from values.  A shortfall
// is left at zero and any surplus is ignored.  The bias is zero.
func affineFrom[T numeric.Number](values []T, rows, cols int) (*affine[T], error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid layer dimensions %dx%d: %w", rows, cols, numeric.ErrInvalidArgument)
	}

	l := &affine[T]{
		w: MakeArray[T](rows, cols),
		b: MakeArray[T](rows),
	}
	copy(l.w.V, values)
	return l, nil
}

// affineRandom draws weights from N(0, 0.1^2) and sets every bias to 0.1.
func affineRandom[T numeric.Number](activation ActivationType, rows, cols int, r *rand.Rand) (*affine[T], error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid layer dimensions %dx%d: %w", rows, cols, numeric.ErrInvalidArgument)
	}
	if !numeric.IsContinuous[T]() {
		return nil, fmt.Errorf("random initialization of %T weights: %w", numeric.Zero[T](), numeric.ErrUnsupportedOperation)
	}

	l := &affine[T]{
		activation: activation,
		w:          MakeArray[T](rows, cols),
		b:          MakeArray[T](rows),
	}
	for i := range l.w.V {
		l.w.V[i] = numeric.ToNumber[T](r.NormFloat64() * 0.1)
	}
	l.b.Fill(numeric.ToNumber[T](0.1))
	return l, nil
}
