package trainer

import (
	"fmt"
	"log"

	"github.com/ahmedtd/neuralnet/toolbox"
)

// Optimizer applies one update per batch and carries its own checkpointable
// state.
type Optimizer interface {
	Step(xs, ys [][]float32) (float32, error)
	DumpTensors(tensors map[string]*toolbox.Array[float32])
	LoadTensors(tensors map[string]*toolbox.Array[float32]) error

	logTimings(epoch int)
}

// NewOptimizer builds the optimizer named by cfg.Optimizer for net.
func NewOptimizer(net *toolbox.Network[float32], cfg Config) (Optimizer, error) {
	switch cfg.Optimizer {
	case "", "sgd":
		return &sgd{net: net, sp: net.MakeSGDParameters(cfg.LearningRate, cfg.Workers)}, nil
	case "adam":
		return &adam{net: net, ap: toolbox.MakeAdamParameters(net, cfg.LearningRate, cfg.Workers)}, nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Optimizer)
	}
}

type sgd struct {
	net *toolbox.Network[float32]
	sp  *toolbox.SGDParameters[float32]
}

func (o *sgd) Step(xs, ys [][]float32) (float32, error) {
	return o.net.SGDStep(xs, ys, o.sp)
}

func (o *sgd) DumpTensors(tensors map[string]*toolbox.Array[float32]) {
	o.sp.DumpTensors(tensors)
}

func (o *sgd) LoadTensors(tensors map[string]*toolbox.Array[float32]) error {
	return o.sp.LoadTensors(tensors)
}

func (o *sgd) logTimings(epoch int) {
	log.Printf("epoch %d timings overall=%.1f backprop=%.1f merge=%.1f weightupdate=%.1f",
		epoch,
		o.sp.Timings.Overall.Seconds(),
		o.sp.Timings.Backprop.Seconds(),
		o.sp.Timings.Merge.Seconds(),
		o.sp.Timings.WeightUpdate.Seconds(),
	)
	o.sp.Timings.Reset()
}

type adam struct {
	net *toolbox.Network[float32]
	ap  *toolbox.AdamParameters[float32]
}

func (o *adam) Step(xs, ys [][]float32) (float32, error) {
	return toolbox.AdamStep(o.net, xs, ys, o.ap)
}

func (o *adam) DumpTensors(tensors map[string]*toolbox.Array[float32]) {
	o.ap.DumpTensors(tensors)
}

func (o *adam) LoadTensors(tensors map[string]*toolbox.Array[float32]) error {
	return o.ap.LoadTensors(tensors)
}

func (o *adam) logTimings(epoch int) {
	log.Printf("epoch %d timings overall=%.1f backprop=%.1f merge=%.1f momentvectors=%.1f weightupdate=%.1f",
		epoch,
		o.ap.Timings.Overall.Seconds(),
		o.ap.Timings.Backprop.Seconds(),
		o.ap.Timings.Merge.Seconds(),
		o.ap.Timings.MomentVectors.Seconds(),
		o.ap.Timings.WeightUpdate.Seconds(),
	)
	o.ap.Timings.Reset()
}
