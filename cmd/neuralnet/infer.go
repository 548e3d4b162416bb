package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/ahmedtd/neuralnet/dataset"
	"github.com/ahmedtd/neuralnet/toolbox"
	"github.com/ahmedtd/neuralnet/trainer"
	"github.com/google/subcommands"
)

type InferCommand struct {
	weightsFile  string
	layers       string
	lossFunction string

	input string

	dataFile   string
	numTargets int
}

var _ subcommands.Command = (*InferCommand)(nil)

func (*InferCommand) Name() string {
	return "infer"
}

func (*InferCommand) Synopsis() string {
	return "Infer using the model weights"
}

func (*InferCommand) Usage() string {
	return `infer --weights=FILE --layers=ARCH (--input=X0,X1,... | --data-file=FILE)
`
}

func (c *InferCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.weightsFile, "weights", "neuralnet-out.safetensors", "Path to the weights produced by the train command")
	f.StringVar(&c.layers, "layers", "dense:3:sigmoid,dense:1:sigmoid", "Network architecture the weights were trained with")
	f.StringVar(&c.lossFunction, "loss", "mse", "Loss function used to score --data-file")

	f.StringVar(&c.input, "input", "", "Comma-separated feature values to predict")

	f.StringVar(&c.dataFile, "data-file", "", "Score the network on every row of this data file instead")
	f.IntVar(&c.numTargets, "targets", 1, "Number of trailing target columns in each row of --data-file")
}

func (c *InferCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *InferCommand) executeErr(ctx context.Context) error {
	lossFunction, err := toolbox.ParseLossFunction(c.lossFunction)
	if err != nil {
		return err
	}

	if c.dataFile != "" {
		table, err := dataset.Load(c.dataFile, c.numTargets)
		if err != nil {
			return fmt.Errorf("while loading data set: %w", err)
		}
		net, err := c.loadNetwork(table.NumFeatures(), lossFunction)
		if err != nil {
			return err
		}
		loss, err := trainer.Evaluate(net, table)
		if err != nil {
			return fmt.Errorf("while scoring data set: %w", err)
		}
		log.Printf("%s loss over %d samples: %f", lossFunction, table.Len(), loss)
		return nil
	}

	x, err := parseInput(c.input)
	if err != nil {
		return fmt.Errorf("while parsing input: %w", err)
	}
	net, err := c.loadNetwork(len(x), lossFunction)
	if err != nil {
		return err
	}

	pred, err := net.Apply(x)
	if err != nil {
		return fmt.Errorf("while applying network: %w", err)
	}

	log.Printf("Prediction: %v", pred)
	return nil
}

func (c *InferCommand) loadNetwork(inputSize int, lossFunction toolbox.LossFunctionType) (*toolbox.Network[float32], error) {
	// The initial weights are overwritten by the checkpoint.
	r := rand.New(rand.NewSource(12345))
	net, err := buildNetwork(c.layers, inputSize, lossFunction, r)
	if err != nil {
		return nil, fmt.Errorf("while building network: %w", err)
	}

	if err := c.loadWeights(net); err != nil {
		return nil, fmt.Errorf("while loading weights: %w", err)
	}
	return net, nil
}

func (c *InferCommand) loadWeights(net *toolbox.Network[float32]) error {
	f, err := os.Open(c.weightsFile)
	if err != nil {
		return fmt.Errorf("while opening weights file: %w", err)
	}
	defer f.Close()

	tensors, err := toolbox.ReadSafeTensors(f)
	if err != nil {
		return fmt.Errorf("while reading weight tensors: %w", err)
	}

	if err := net.LoadTensors(tensors); err != nil {
		return fmt.Errorf("while restoring network: %w", err)
	}

	return nil
}

func parseInput(s string) ([]float32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("no input values")
	}
	fields := strings.Split(s, ",")
	x := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		x[i] = float32(v)
	}
	return x, nil
}
