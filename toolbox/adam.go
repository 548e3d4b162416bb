package toolbox

import (
	"fmt"
	"time"

	"github.com/ahmedtd/neuralnet/numeric"
)

// AdamParameters carries Adam optimizer state across steps.  Adam needs a
// square root, so it is only available for floating representations.
type AdamParameters[T numeric.Float] struct {
	step int

	// Adam parameters
	alpha, beta1, beta2, epsilon T

	// Updated every step
	beta1T, beta2T T

	workerGrads []*Gradients[T]
	merged      *Gradients[T]

	// First and second moment vectors for each layer.
	m, v *Gradients[T]

	// The step applied to the weights.  Overwritten at each step.
	update *Gradients[T]

	Timings AdamTimings
}

type AdamTimings struct {
	Overall       time.Duration
	Backprop      time.Duration
	Merge         time.Duration
	MomentVectors time.Duration
	WeightUpdate  time.Duration
}

func (t *AdamTimings) Reset() {
	t.Overall = 0 * time.Second
	t.Backprop = 0 * time.Second
	t.Merge = 0 * time.Second
	t.MomentVectors = 0 * time.Second
	t.WeightUpdate = 0 * time.Second
}

func MakeAdamParameters[T numeric.Float](net *Network[T], alpha T, workers int) *AdamParameters[T] {
	workers = max(workers, 1)
	ap := &AdamParameters[T]{
		alpha:   alpha,
		beta1:   0.9,
		beta2:   0.999,
		epsilon: 1e-7,

		beta1T: 0.9,
		beta2T: 0.999,

		workerGrads: make([]*Gradients[T], workers),
		merged:      MakeGradients(net.Layers),
		m:           MakeGradients(net.Layers),
		v:           MakeGradients(net.Layers),
		update:      MakeGradients(net.Layers),
	}
	for w := range ap.workerGrads {
		ap.workerGrads[w] = MakeGradients(net.Layers)
	}
	return ap
}

func (ap *AdamParameters[T]) Step() int {
	return ap.step
}

// AdamStep computes the mean gradient over a batch the same way SGDStep does,
// then applies one bias-corrected Adam update.  It returns the mean loss over
// the batch, measured before the update.
func AdamStep[T numeric.Float](net *Network[T], xs, ys [][]T, ap *AdamParameters[T]) (T, error) {
	start := time.Now()

	backpropStart := time.Now()
	lossSum, mergeTime, err := net.batchGradients(xs, ys, ap.workerGrads, ap.merged)
	ap.Timings.Merge += mergeTime
	ap.Timings.Backprop += time.Since(backpropStart) - mergeTime
	if err != nil {
		return 0, err
	}
	ap.merged.Divide(len(xs))

	momentVectorsStart := time.Now()

	beta1 := ap.beta1
	beta2 := ap.beta2
	alphaT := ap.alpha * numeric.Sqrt(1-ap.beta2T) / (1 - ap.beta1T)
	for l := range ap.merged.W {
		adamMoments(ap.merged.W[l], ap.m.W[l], ap.v.W[l], ap.update.W[l], beta1, beta2, alphaT, ap.epsilon)
		adamMoments(ap.merged.B[l], ap.m.B[l], ap.v.B[l], ap.update.B[l], beta1, beta2, alphaT, ap.epsilon)
	}

	ap.Timings.MomentVectors += time.Since(momentVectorsStart)

	weightUpdateStart := time.Now()

	if err := net.ApplyGradients(ap.update, 1); err != nil {
		return 0, err
	}

	ap.beta1T *= ap.beta1
	ap.beta2T *= ap.beta2

	ap.Timings.WeightUpdate += time.Since(weightUpdateStart)
	ap.Timings.Overall += time.Since(start)

	ap.step++

	return lossSum / T(len(xs)), nil
}

// adamMoments advances the moment vectors m and v with gradient g and writes
// the resulting weight step into update.
func adamMoments[T numeric.Float](g, m, v, update *Array[T], beta1, beta2, alphaT, epsilon T) {
	for i := range g.V {
		m.V[i] = beta1*m.V[i] + (1-beta1)*g.V[i]
		v.V[i] = beta2*v.V[i] + (1-beta2)*g.V[i]*g.V[i]
		update.V[i] = alphaT * m.V[i] / (numeric.Sqrt(v.V[i]) + epsilon)
	}
}

func (ap *AdamParameters[T]) DumpTensors(tensors map[string]*Array[T]) {
	tensors["adam.step"] = MakeScalarArray(T(ap.step))
	tensors["adam.alpha"] = MakeScalarArray(ap.alpha)
	tensors["adam.beta1"] = MakeScalarArray(ap.beta1)
	tensors["adam.beta2"] = MakeScalarArray(ap.beta2)
	tensors["adam.epsilon"] = MakeScalarArray(ap.epsilon)
	tensors["adam.beta1T"] = MakeScalarArray(ap.beta1T)
	tensors["adam.beta2T"] = MakeScalarArray(ap.beta2T)

	for l := range ap.m.W {
		tensors[fmt.Sprintf("adam.%d.mW", l)] = ap.m.W[l]
		tensors[fmt.Sprintf("adam.%d.vW", l)] = ap.v.W[l]
		tensors[fmt.Sprintf("adam.%d.mB", l)] = ap.m.B[l]
		tensors[fmt.Sprintf("adam.%d.vB", l)] = ap.v.B[l]
	}
}

func (ap *AdamParameters[T]) LoadTensors(tensors map[string]*Array[T]) error {
	step, err := loadScalarFromTensor(tensors, "adam.step")
	if err != nil {
		return err
	}
	ap.step = int(step)

	for _, s := range []struct {
		key string
		dst *T
	}{
		{"adam.alpha", &ap.alpha},
		{"adam.beta1", &ap.beta1},
		{"adam.beta2", &ap.beta2},
		{"adam.epsilon", &ap.epsilon},
		{"adam.beta1T", &ap.beta1T},
		{"adam.beta2T", &ap.beta2T},
	} {
		if *s.dst, err = loadScalarFromTensor(tensors, s.key); err != nil {
			return err
		}
	}

	for l := range ap.m.W {
		for _, s := range []struct {
			key string
			dst *Array[T]
		}{
			{fmt.Sprintf("adam.%d.mW", l), ap.m.W[l]},
			{fmt.Sprintf("adam.%d.vW", l), ap.v.W[l]},
			{fmt.Sprintf("adam.%d.mB", l), ap.m.B[l]},
			{fmt.Sprintf("adam.%d.vB", l), ap.v.B[l]},
		} {
			src, ok := tensors[s.key]
			if !ok {
				return fmt.Errorf("missing tensor %s", s.key)
			}
			if err := checkShape(s.key, src, s.dst.Shape...); err != nil {
				return err
			}
			copy(s.dst.V, src.V)
		}
	}

	return nil
}
