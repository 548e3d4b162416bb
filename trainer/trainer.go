// Package trainer runs the epoch loop around the toolbox optimizers: it
// shuffles samples, cuts them into batches, steps the optimizer, and reports
// per-epoch loss.
package trainer

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/ahmedtd/neuralnet/dataset"
	"github.com/ahmedtd/neuralnet/toolbox"
	"gonum.org/v1/gonum/stat"
)

type Config struct {
	Epochs       int
	BatchSize    int
	Workers      int
	LearningRate float32

	// Optimizer is "sgd" (the default when empty) or "adam".
	Optimizer string

	Seed int64

	// LogEvery logs progress every LogEvery epochs.  Zero disables logging.
	LogEvery int
}

func (c Config) Validate() error {
	if c.Epochs < 1 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if !(c.LearningRate > 0) {
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	}
	if c.LogEvery < 0 {
		return fmt.Errorf("log interval must not be negative, got %d", c.LogEvery)
	}
	switch c.Optimizer {
	case "", "sgd", "adam":
	default:
		return fmt.Errorf("unknown optimizer %q", c.Optimizer)
	}
	return nil
}

type Trainer struct {
	Net       *toolbox.Network[float32]
	Optimizer Optimizer
	Config    Config

	// AfterEpoch, if set, runs after every epoch.  An error stops training.
	AfterEpoch func(epoch int, loss float64) error
}

func New(net *toolbox.Network[float32], cfg Config) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("while validating training config: %w", err)
	}
	opt, err := NewOptimizer(net, cfg)
	if err != nil {
		return nil, err
	}
	return &Trainer{
		Net:       net,
		Optimizer: opt,
		Config:    cfg,
	}, nil
}

type Summary struct {
	Epochs int
	Steps  int

	// EpochLosses[e] is the mean training loss seen during epoch e, weighted
	// by batch size.
	EpochLosses []float64
}

func (s *Summary) FinalLoss() float64 {
	if len(s.EpochLosses) == 0 {
		return 0
	}
	return s.EpochLosses[len(s.EpochLosses)-1]
}

// Run trains on table for the configured number of epochs.  Sample order is
// reshuffled every epoch; the last batch of an epoch may be short.
// Cancellation is checked between batches.
func (t *Trainer) Run(ctx context.Context, table *dataset.Table) (*Summary, error) {
	if table.Len() == 0 {
		return nil, fmt.Errorf("training table is empty")
	}
	if err := t.Net.Validate(table.NumFeatures()); err != nil {
		return nil, fmt.Errorf("while checking network against %d features: %w", table.NumFeatures(), err)
	}

	cfg := t.Config
	r := rand.New(rand.NewSource(cfg.Seed))
	order := make([]int, table.Len())
	for i := range order {
		order[i] = i
	}

	summary := &Summary{}
	xs := make([][]float32, 0, cfg.BatchSize)
	ys := make([][]float32, 0, cfg.BatchSize)

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		r.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		var losses, weights []float64
		for start := 0; start < len(order); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return summary, fmt.Errorf("training stopped in epoch %d: %w", epoch, err)
			}

			xs, ys = xs[:0], ys[:0]
			for _, k := range order[start:min(start+cfg.BatchSize, len(order))] {
				xs = append(xs, table.Features[k])
				ys = append(ys, table.Targets[k])
			}

			loss, err := t.Optimizer.Step(xs, ys)
			if err != nil {
				return summary, fmt.Errorf("while stepping epoch %d batch %d: %w", epoch, start/cfg.BatchSize, err)
			}
			losses = append(losses, float64(loss))
			weights = append(weights, float64(len(xs)))
			summary.Steps++
		}

		epochLoss := stat.Mean(losses, weights)
		summary.Epochs++
		summary.EpochLosses = append(summary.EpochLosses, epochLoss)

		if cfg.LogEvery > 0 && epoch%cfg.LogEvery == 0 {
			log.Printf("epoch %d/%d training-loss=%f steps=%d", epoch, cfg.Epochs, epochLoss, summary.Steps)
			t.Optimizer.logTimings(epoch)
		}

		if t.AfterEpoch != nil {
			if err := t.AfterEpoch(epoch, epochLoss); err != nil {
				return summary, err
			}
		}
	}

	return summary, nil
}

// Evaluate returns the mean loss of net over every sample in table.
func Evaluate(net *toolbox.Network[float32], table *dataset.Table) (float64, error) {
	if table.Len() == 0 {
		return 0, fmt.Errorf("evaluation table is empty")
	}
	losses := make([]float64, table.Len())
	for k := range losses {
		pred, err := net.Apply(table.Features[k])
		if err != nil {
			return 0, fmt.Errorf("while applying sample %d: %w", k, err)
		}
		loss, err := net.Loss(pred, table.Targets[k])
		if err != nil {
			return 0, fmt.Errorf("while scoring sample %d: %w", k, err)
		}
		losses[k] = float64(loss)
	}
	return stat.Mean(losses, nil), nil
}
