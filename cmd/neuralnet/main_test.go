package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ahmedtd/neuralnet/toolbox"
)

func TestTrainThenInfer(t *testing.T) {
	dir := t.TempDir()

	var sb strings.Builder
	sb.WriteString("x0,x1,y\n")
	for k := 0; k < 40; k++ {
		x0 := float64(k%8) / 8
		x1 := float64(k%5) / 5
		y := 0
		if x0 > x1 {
			y = 1
		}
		fmt.Fprintf(&sb, "%v,%v,%d\n", x0, x1, y)
	}
	dataFile := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(dataFile, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	weights := filepath.Join(dir, "out.safetensors")

	train := &TrainCommand{
		dataFile:         dataFile,
		numTargets:       1,
		layers:           "dense:3:tanh,dense:1:sigmoid",
		lossFunction:     "binary-cross-entropy",
		optimizer:        "sgd",
		learningRate:     0.1,
		epochs:           3,
		batchSize:        8,
		workers:          2,
		seed:             1,
		outputWeightFile: weights,
	}
	if err := train.executeErr(context.Background()); err != nil {
		t.Fatalf("train: %v", err)
	}

	f, err := os.Open(weights)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tensors, err := toolbox.ReadSafeTensors(f)
	f.Close()
	if err != nil {
		t.Fatalf("ReadSafeTensors: %v", err)
	}
	for _, key := range []string{"net.0.weights", "net.0.biases", "net.1.weights", "net.1.biases", "sgd.step", "sgd.learningRate"} {
		if _, ok := tensors[key]; !ok {
			t.Errorf("checkpoint is missing %s", key)
		}
	}
	if got := tensors["sgd.step"].At1(0); got != 15 {
		t.Errorf("sgd.step = %v, want 15", got)
	}

	// Resume from the checkpoint for one more epoch.
	train.fromCheckpointFile = weights
	train.epochs = 1
	if err := train.executeErr(context.Background()); err != nil {
		t.Fatalf("resumed train: %v", err)
	}

	infer := &InferCommand{
		weightsFile:  weights,
		layers:       train.layers,
		lossFunction: "binary-cross-entropy",
		input:        "0.75,0.2",
	}
	if err := infer.executeErr(context.Background()); err != nil {
		t.Fatalf("infer: %v", err)
	}

	infer.input = ""
	infer.dataFile = dataFile
	infer.numTargets = 1
	if err := infer.executeErr(context.Background()); err != nil {
		t.Fatalf("infer on data file: %v", err)
	}

	infer.dataFile = ""
	infer.layers = "dense:4:tanh,dense:1:sigmoid"
	infer.input = "0.75,0.2"
	if err := infer.executeErr(context.Background()); err == nil {
		t.Errorf("infer accepted weights for a different architecture")
	}
}
