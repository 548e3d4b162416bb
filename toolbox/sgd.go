package toolbox

import (
	"fmt"
	"sync"
	"time"

	"github.com/ahmedtd/neuralnet/numeric"
)

// SGDParameters carries plain gradient-descent state across steps: the
// learning rate, the step counter, and reusable gradient scratch space.
type SGDParameters[T numeric.Number] struct {
	step int

	learningRate T

	// Private accumulation buffers, one per worker.  Overwritten at each step.
	workerGrads []*Gradients[T]

	// Sum of the worker buffers.  Overwritten at each step.
	merged *Gradients[T]

	Timings SGDTimings
}

type SGDTimings struct {
	Overall      time.Duration
	Backprop     time.Duration
	Merge        time.Duration
	WeightUpdate time.Duration
}

func (t *SGDTimings) Reset() {
	t.Overall = 0 * time.Second
	t.Backprop = 0 * time.Second
	t.Merge = 0 * time.Second
	t.WeightUpdate = 0 * time.Second
}

func (net *Network[T]) MakeSGDParameters(learningRate T, workers int) *SGDParameters[T] {
	workers = max(workers, 1)
	sp := &SGDParameters[T]{
		learningRate: learningRate,
		workerGrads:  make([]*Gradients[T], workers),
		merged:       MakeGradients(net.Layers),
	}
	for w := range sp.workerGrads {
		sp.workerGrads[w] = MakeGradients(net.Layers)
	}
	return sp
}

func (sp *SGDParameters[T]) Step() int {
	return sp.step
}

func (sp *SGDParameters[T]) LearningRate() T {
	return sp.learningRate
}

func (sp *SGDParameters[T]) Workers() int {
	return len(sp.workerGrads)
}

// SGDStep performs one gradient-descent update from a batch of samples.
//
// Each sample goes through its own single-sample forward and backward pass.
// Samples are split across the configured workers; every worker accumulates
// into a private gradient buffer, the buffers are summed under one lock, and
// the averaged gradient is applied in a single update.  It returns the mean
// loss over the batch, measured before the update.
//
// xs is the batch of inputs.  ys is the matching batch of targets.
func (net *Network[T]) SGDStep(xs, ys [][]T, sp *SGDParameters[T]) (T, error) {
	start := time.Now()

	backpropStart := time.Now()
	lossSum, mergeTime, err := net.batchGradients(xs, ys, sp.workerGrads, sp.merged)
	sp.Timings.Merge += mergeTime
	sp.Timings.Backprop += time.Since(backpropStart) - mergeTime
	if err != nil {
		return 0, err
	}

	weightUpdateStart := time.Now()

	sp.merged.Divide(len(xs))
	if err := net.ApplyGradients(sp.merged, sp.learningRate); err != nil {
		return 0, err
	}

	sp.Timings.WeightUpdate += time.Since(weightUpdateStart)
	sp.Timings.Overall += time.Since(start)

	sp.step++

	return lossSum / numeric.ToNumber[T](float64(len(xs))), nil
}

// batchGradients sums the gradients of every sample in the batch into merged,
// splitting the samples across one goroutine per worker buffer.  It returns
// the summed loss and the time spent merging.  Nothing is written to the
// layers.
func (net *Network[T]) batchGradients(xs, ys [][]T, workerGrads []*Gradients[T], merged *Gradients[T]) (T, time.Duration, error) {
	if len(xs) == 0 {
		return 0, 0, fmt.Errorf("empty batch: %w", numeric.ErrInvalidArgument)
	}
	if len(xs) != len(ys) {
		return 0, 0, fmt.Errorf("%d inputs for %d targets: %w", len(xs), len(ys), numeric.ErrShapeMismatch)
	}

	merged.Zero()
	workers := min(len(workerGrads), len(xs))

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		firstErr  error
		lossSum   T
		mergeTime time.Duration
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()

			g := workerGrads[w]
			g.Zero()

			var localLoss T
			var err error
			for k := w; k < len(xs); k += workers {
				var loss T
				loss, err = net.accumulate(xs[k], ys[k], g)
				if err != nil {
					err = fmt.Errorf("sample %d: %w", k, err)
					break
				}
				localLoss += loss
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			mergeStart := time.Now()
			if err := merged.Add(g); err != nil && firstErr == nil {
				firstErr = err
			}
			lossSum += localLoss
			mergeTime += time.Since(mergeStart)
		}(w)
	}
	wg.Wait()

	if firstErr != nil {
		return 0, mergeTime, firstErr
	}
	return lossSum, mergeTime, nil
}

// accumulate adds one sample's gradients into g and returns its loss.
func (net *Network[T]) accumulate(x, y []T, g *Gradients[T]) (T, error) {
	tr, err := net.ForwardTrace(x)
	if err != nil {
		return 0, err
	}
	loss, err := net.Loss(tr.Output, y)
	if err != nil {
		return 0, fmt.Errorf("while computing loss: %w", err)
	}
	if err := net.ComputeGradients(tr, y, g); err != nil {
		return 0, err
	}
	return loss, nil
}

func (sp *SGDParameters[T]) DumpTensors(tensors map[string]*Array[T]) {
	// Scalars are saved as {1} tensors.
	tensors["sgd.step"] = MakeScalarArray(numeric.ToNumber[T](float64(sp.step)))
	tensors["sgd.learningRate"] = MakeScalarArray(sp.learningRate)

	// The gradient buffers are scratch space overwritten at each step, so
	// they are not saved.
}

func (sp *SGDParameters[T]) LoadTensors(tensors map[string]*Array[T]) error {
	step, err := loadScalarFromTensor(tensors, "sgd.step")
	if err != nil {
		return err
	}
	sp.step = int(step)

	sp.learningRate, err = loadScalarFromTensor(tensors, "sgd.learningRate")
	if err != nil {
		return err
	}
	return nil
}

func loadScalarFromTensor[T numeric.Number](tensors map[string]*Array[T], key string) (T, error) {
	tensor, ok := tensors[key]
	if !ok {
		return 0, fmt.Errorf("missing tensor %s", key)
	}
	if len(tensor.V) != 1 {
		return 0, fmt.Errorf("tensor %s has shape %v, want [1]: %w", key, tensor.Shape, numeric.ErrShapeMismatch)
	}
	return tensor.At1(0), nil
}
