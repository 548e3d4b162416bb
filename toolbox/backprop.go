package toolbox

import (
	"fmt"

	"github.com/ahmedtd/neuralnet/numeric"
)

// Gradients holds caller-owned gradient buffers for every layer of a network,
// shaped identically to each layer's weights and biases.  Layers never retain
// them.
type Gradients[T numeric.Number] struct {
	W []*Array[T]
	B []*Array[T]
}

// MakeGradients allocates zeroed gradient buffers for layers.
func MakeGradients[T numeric.Number](layers []Layer[T]) *Gradients[T] {
	g := &Gradients[T]{
		W: make([]*Array[T], len(layers)),
		B: make([]*Array[T], len(layers)),
	}
	for l, lay := range layers {
		g.W[l], g.B[l] = lay.MakeGradients()
	}
	return g
}

func (g *Gradients[T]) Zero() {
	for l := range g.W {
		g.W[l].Fill(0)
		g.B[l].Fill(0)
	}
}

// Add sums other into g.  Both must come from the same layers.
func (g *Gradients[T]) Add(other *Gradients[T]) error {
	if len(g.W) != len(other.W) {
		return fmt.Errorf("adding gradients for %d layers to %d layers: %w", len(other.W), len(g.W), numeric.ErrShapeMismatch)
	}
	for l := range g.W {
		if !g.W[l].SameShape(other.W[l]) || !g.B[l].SameShape(other.B[l]) {
			return fmt.Errorf("layer %d gradient shapes differ: %w", l, numeric.ErrShapeMismatch)
		}
		for i := range g.W[l].V {
			g.W[l].V[i] += other.W[l].V[i]
		}
		for i := range g.B[l].V {
			g.B[l].V[i] += other.B[l].V[i]
		}
	}
	return nil
}

// Divide divides every gradient by n.  Discrete representations use integer
// division.
func (g *Gradients[T]) Divide(n int) {
	d := numeric.ToNumber[T](float64(n))
	for l := range g.W {
		for i := range g.W[l].V {
			g.W[l].V[i] /= d
		}
		for i := range g.B[l].V {
			g.B[l].V[i] /= d
		}
	}
}

// ComputeGradients runs the chain rule backwards over a recorded forward pass
// and accumulates the weight and bias gradients into g.  It does not modify
// the layers.
//
// For layer l, from output to input:
//
//	local = delta ⊙ activation'(z_l)
//	dW_l += local ⊗ x_l,  dB_l += local
//	delta = W_lᵀ local
//
// where delta starts as the loss derivative at the network output.
func (net *Network[T]) ComputeGradients(tr *Trace[T], targets []T, g *Gradients[T]) error {
	return computeGradients(net.Layers, net.LossFunction, tr, targets, g)
}

// ApplyGradients updates every layer with g.
func (net *Network[T]) ApplyGradients(g *Gradients[T], learningRate T) error {
	return applyGradients(net.Layers, g, learningRate)
}

// Step performs one training step on a single sample: training-mode forward,
// backward pass, and update.  It returns the loss before the update.
func (net *Network[T]) Step(x, y []T, learningRate T) (T, error) {
	tr, err := net.ForwardTrace(x)
	if err != nil {
		return 0, err
	}
	loss, err := net.Loss(tr.Output, y)
	if err != nil {
		return 0, fmt.Errorf("while computing loss: %w", err)
	}
	if err := Backpropagate(net.Layers, net.LossFunction, tr, y, learningRate); err != nil {
		return 0, err
	}
	return loss, nil
}

// Backpropagate is the stateless one-step driver: it computes fresh gradients
// for layers from the recorded forward pass and updates every layer.  The
// error reaching each layer is propagated through the weights as they were
// during the forward pass.
func Backpropagate[T numeric.Number](layers []Layer[T], loss LossFunctionType, tr *Trace[T], targets []T, learningRate T) error {
	g := MakeGradients(layers)
	if err := computeGradients(layers, loss, tr, targets, g); err != nil {
		return err
	}
	return applyGradients(layers, g, learningRate)
}

func computeGradients[T numeric.Number](layers []Layer[T], loss LossFunctionType, tr *Trace[T], targets []T, g *Gradients[T]) error {
	if len(tr.Inputs) != len(layers) || len(tr.PreActivations) != len(layers) {
		return fmt.Errorf("trace covers %d layers, network has %d: %w", len(tr.Inputs), len(layers), numeric.ErrShapeMismatch)
	}
	if len(g.W) != len(layers) || len(g.B) != len(layers) {
		return fmt.Errorf("gradients cover %d layers, network has %d: %w", len(g.W), len(layers), numeric.ErrShapeMismatch)
	}

	delta, err := LossDerivative(loss, tr.Output, targets)
	if err != nil {
		return fmt.Errorf("while computing loss derivative: %w", err)
	}

	for l := len(layers) - 1; l >= 0; l-- {
		lay := layers[l]
		z := tr.PreActivations[l]
		if len(delta) != len(z) {
			return fmt.Errorf("layer %d error has length %d, want %d: %w", l, len(delta), len(z), numeric.ErrShapeMismatch)
		}

		local := make([]T, len(z))
		for i := range z {
			d, err := ActivationDerivative(lay.Activation(), z[i])
			if err != nil {
				return fmt.Errorf("while differentiating layer %d activation: %w", l, err)
			}
			local[i] = delta[i] * d
		}

		if err := lay.Gradients(tr.Inputs[l], local, g.W[l], g.B[l]); err != nil {
			return fmt.Errorf("while computing layer %d gradients: %w", l, err)
		}

		if l == 0 {
			break
		}
		prev := make([]T, len(tr.Inputs[l]))
		if err := lay.Backprop(local, prev); err != nil {
			return fmt.Errorf("while propagating error through layer %d: %w", l, err)
		}
		delta = prev
	}
	return nil
}

func applyGradients[T numeric.Number](layers []Layer[T], g *Gradients[T], learningRate T) error {
	if len(g.W) != len(layers) || len(g.B) != len(layers) {
		return fmt.Errorf("gradients cover %d layers, network has %d: %w", len(g.W), len(layers), numeric.ErrShapeMismatch)
	}
	for l := len(layers) - 1; l >= 0; l-- {
		if err := layers[l].Update(g.W[l], g.B[l], learningRate); err != nil {
			return fmt.Errorf("while updating layer %d: %w", l, err)
		}
	}
	return nil
}
