// Command neuralnet trains and runs small feed-forward networks on tabular
// data.
//
// To train: `go run ./cmd/neuralnet train --data-file=data.csv --layers=dense:3:sigmoid,dense:1:sigmoid`
//
// To infer: `go run ./cmd/neuralnet infer --weights=neuralnet-out.safetensors --layers=dense:3:sigmoid,dense:1:sigmoid --input=0.5,0.25`
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime/pprof"

	"github.com/ahmedtd/neuralnet/dataset"
	"github.com/ahmedtd/neuralnet/toolbox"
	"github.com/ahmedtd/neuralnet/trainer"
	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&TrainCommand{}, "")
	subcommands.Register(&InferCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

type TrainCommand struct {
	dataFile   string
	numTargets int

	layers       string
	lossFunction string
	optimizer    string

	learningRate float64
	epochs       int
	batchSize    int
	workers      int
	seed         int64
	logEvery     int

	fromCheckpointFile string
	outputWeightFile   string

	cpuProfileFile string
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string {
	return "train"
}

func (*TrainCommand) Synopsis() string {
	return "Train the model"
}

func (*TrainCommand) Usage() string {
	return `train --data-file=FILE --layers=ARCH [flags]

ARCH is a comma-separated list of dense:OUT:ACTIVATION or
windowed:FILTERS:SIZE:ACTIVATION layers.
`
}

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dataFile, "data-file", "data.csv", "Path to the training data (.csv, .json, .xlsx, .npy, or .npz)")
	f.IntVar(&c.numTargets, "targets", 1, "Number of trailing target columns in each row")

	f.StringVar(&c.layers, "layers", "dense:3:sigmoid,dense:1:sigmoid", "Network architecture")
	f.StringVar(&c.lossFunction, "loss", "mse", "Loss function: mse, cross-entropy, or binary-cross-entropy")
	f.StringVar(&c.optimizer, "optimizer", "sgd", "Optimizer: sgd or adam")

	f.Float64Var(&c.learningRate, "learning-rate", 0.01, "Learning rate")
	f.IntVar(&c.epochs, "epochs", 1000, "Number of passes over the data")
	f.IntVar(&c.batchSize, "batch-size", 32, "Samples per update")
	f.IntVar(&c.workers, "workers", 4, "Goroutines accumulating gradients within a batch")
	f.Int64Var(&c.seed, "seed", 12345, "Seed for weight initialization and shuffling")
	f.IntVar(&c.logEvery, "log-every", 100, "Log progress every N epochs")

	f.StringVar(&c.fromCheckpointFile, "from-checkpoint", "", "Path to initial weights to load for training")
	f.StringVar(&c.outputWeightFile, "output-weight-file", "neuralnet-out.safetensors", "Path to save trained weights (safetensors format)")

	f.StringVar(&c.cpuProfileFile, "cpu-profile", "", "Write a CPU profile")
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) executeErr(ctx context.Context) error {
	if c.cpuProfileFile != "" {
		f, err := os.Create(c.cpuProfileFile)
		if err != nil {
			return fmt.Errorf("while creating CPU profile file: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("while starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	table, err := dataset.Load(c.dataFile, c.numTargets)
	if err != nil {
		return fmt.Errorf("while loading data set: %w", err)
	}
	log.Printf("Data loaded: %d samples, %d features, %d targets", table.Len(), table.NumFeatures(), table.NumTargets())

	lossFunction, err := toolbox.ParseLossFunction(c.lossFunction)
	if err != nil {
		return err
	}

	r := rand.New(rand.NewSource(c.seed))
	net, err := buildNetwork(c.layers, table.NumFeatures(), lossFunction, r)
	if err != nil {
		return fmt.Errorf("while building network: %w", err)
	}

	tr, err := trainer.New(net, trainer.Config{
		Epochs:       c.epochs,
		BatchSize:    c.batchSize,
		Workers:      c.workers,
		LearningRate: float32(c.learningRate),
		Optimizer:    c.optimizer,
		Seed:         c.seed,
		LogEvery:     c.logEvery,
	})
	if err != nil {
		return err
	}

	if c.fromCheckpointFile != "" {
		if err := c.loadCheckpoint(net, tr.Optimizer); err != nil {
			return fmt.Errorf("while loading initial checkpoint: %w", err)
		}
	}

	tr.AfterEpoch = func(epoch int, loss float64) error {
		if err := c.writeCheckpoint(net, tr.Optimizer); err != nil {
			return fmt.Errorf("while writing checkpoint: %w", err)
		}
		return nil
	}

	summary, err := tr.Run(ctx, table)
	if err != nil {
		return err
	}

	loss, err := trainer.Evaluate(net, table)
	if err != nil {
		return fmt.Errorf("while evaluating trained network: %w", err)
	}
	log.Printf("trained %d epochs in %d steps: final epoch loss=%f training-loss=%f", summary.Epochs, summary.Steps, summary.FinalLoss(), loss)

	return nil
}

func (c *TrainCommand) loadCheckpoint(net *toolbox.Network[float32], opt trainer.Optimizer) error {
	f, err := os.Open(c.fromCheckpointFile)
	if err != nil {
		return fmt.Errorf("while opening checkpoint file: %w", err)
	}
	defer f.Close()

	tensors, err := toolbox.ReadSafeTensors(f)
	if err != nil {
		return fmt.Errorf("while reading checkpoint tensors: %w", err)
	}

	if err := net.LoadTensors(tensors); err != nil {
		return fmt.Errorf("while restoring network: %w", err)
	}
	if err := opt.LoadTensors(tensors); err != nil {
		return fmt.Errorf("while restoring optimizer: %w", err)
	}

	return nil
}

func (c *TrainCommand) writeCheckpoint(net *toolbox.Network[float32], opt trainer.Optimizer) error {
	f, err := os.Create(c.outputWeightFile)
	if err != nil {
		return fmt.Errorf("while creating checkpoint file: %w", err)
	}
	defer f.Close()

	tensors := map[string]*toolbox.Array[float32]{}

	net.DumpTensors(tensors)
	opt.DumpTensors(tensors)

	if err := toolbox.WriteSafeTensors(f, tensors); err != nil {
		return fmt.Errorf("while writing checkpoint tensors: %w", err)
	}

	return nil
}
