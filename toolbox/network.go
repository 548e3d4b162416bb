package toolbox

import (
	"fmt"

	"github.com/ahmedtd/neuralnet/numeric"
)

// Network is a fixed sequence of layers evaluated input to output.
type Network[T numeric.Number] struct {
	LossFunction LossFunctionType
	Layers       []Layer[T]
}

// Trace records what a training-mode forward pass saw at each layer.
type Trace[T numeric.Number] struct {
	// Inputs[l] is the input vector of layer l.
	Inputs [][]T
	// PreActivations[l] is layer l's output before its activation.
	PreActivations [][]T
	// Output is the activated output of the last layer.
	Output []T
}

// Validate checks that an input of length inputSize flows through every layer.
func (net *Network[T]) Validate(inputSize int) error {
	if len(net.Layers) == 0 {
		return fmt.Errorf("network has no layers: %w", numeric.ErrInvalidArgument)
	}
	size := inputSize
	for l, lay := range net.Layers {
		if !lay.Accepts(size) {
			return fmt.Errorf("layer %d does not accept input of length %d: %w", l, size, numeric.ErrShapeMismatch)
		}
		size = lay.OutputSize()
	}
	return nil
}

// Apply is the inference forward pass.
func (net *Network[T]) Apply(x []T) ([]T, error) {
	a := x
	for l, lay := range net.Layers {
		z := make([]T, lay.OutputSize())
		if err := lay.Forward(a, z); err != nil {
			return nil, fmt.Errorf("while applying layer %d: %w", l, err)
		}
		// Activate in place; z is not needed afterwards.
		if err := ActivateInto(lay.Activation(), z, z); err != nil {
			return nil, fmt.Errorf("while activating layer %d: %w", l, err)
		}
		a = z
	}
	return a, nil
}

// ForwardTrace is the training-mode forward pass.  It records each layer's
// input and pre-activation output for the backward pass.
func (net *Network[T]) ForwardTrace(x []T) (*Trace[T], error) {
	tr := &Trace[T]{
		Inputs:         make([][]T, len(net.Layers)),
		PreActivations: make([][]T, len(net.Layers)),
	}

	a := x
	for l, lay := range net.Layers {
		tr.Inputs[l] = a

		z := make([]T, lay.OutputSize())
		if err := lay.Forward(a, z); err != nil {
			return nil, fmt.Errorf("while applying layer %d: %w", l, err)
		}
		tr.PreActivations[l] = z

		next := make([]T, len(z))
		if err := ActivateInto(lay.Activation(), z, next); err != nil {
			return nil, fmt.Errorf("while activating layer %d: %w", l, err)
		}
		a = next
	}
	tr.Output = a

	return tr, nil
}

func (net *Network[T]) Loss(predictions, targets []T) (T, error) {
	return Loss(net.LossFunction, predictions, targets)
}

func (net *Network[T]) DumpTensors(tensors map[string]*Array[T]) {
	for l, lay := range net.Layers {
		w, b := lay.Params()
		tensors[fmt.Sprintf("net.%d.weights", l)] = w
		tensors[fmt.Sprintf("net.%d.biases", l)] = b
	}
}

// LoadTensors copies checkpointed weights into the existing layers.  Layer
// shapes must match exactly.
func (net *Network[T]) LoadTensors(tensors map[string]*Array[T]) error {
	for l, lay := range net.Layers {
		weightKey := fmt.Sprintf("net.%d.weights", l)
		w, ok := tensors[weightKey]
		if !ok {
			return fmt.Errorf("no entry for %s", weightKey)
		}

		biasKey := fmt.Sprintf("net.%d.biases", l)
		b, ok := tensors[biasKey]
		if !ok {
			return fmt.Errorf("no entry for %s", biasKey)
		}

		if err := setLayerParams(lay, w, b); err != nil {
			return fmt.Errorf("while restoring layer %d: %w", l, err)
		}
	}
	return nil
}

func setLayerParams[T numeric.Number](lay Layer[T], w, b *Array[T]) error {
	lw, lb := lay.Params()
	if err := checkShape("weights", w, lw.Shape...); err != nil {
		return err
	}
	if err := checkShape("biases", b, lb.Shape...); err != nil {
		return err
	}
	copy(lw.V, w.V)
	copy(lb.V, b.V)
	return nil
}
