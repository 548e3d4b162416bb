package main

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/ahmedtd/neuralnet/toolbox"
)

// buildNetwork creates randomly initialized layers from an architecture
// string such as "windowed:4:3:relu,dense:1:sigmoid".  Each layer's input size
// is the previous layer's output size, starting from inputSize.
func buildNetwork(arch string, inputSize int, lossFunction toolbox.LossFunctionType, r *rand.Rand) (*toolbox.Network[float32], error) {
	net := &toolbox.Network[float32]{LossFunction: lossFunction}

	size := inputSize
	for i, def := range strings.Split(arch, ",") {
		lay, err := buildLayer(strings.TrimSpace(def), size, r)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%q): %w", i, def, err)
		}
		net.Layers = append(net.Layers, lay)
		size = lay.OutputSize()
	}

	if err := net.Validate(inputSize); err != nil {
		return nil, err
	}
	return net, nil
}

func buildLayer(def string, inputSize int, r *rand.Rand) (toolbox.Layer[float32], error) {
	parts := strings.Split(def, ":")
	if len(parts) < 3 {
		return nil, fmt.Errorf("want kind:sizes...:activation")
	}

	activation, err := toolbox.ParseActivation(parts[len(parts)-1])
	if err != nil {
		return nil, err
	}
	sizes := make([]int, len(parts)-2)
	for i, p := range parts[1 : len(parts)-1] {
		sizes[i], err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", p, err)
		}
	}

	switch parts[0] {
	case "dense":
		if len(sizes) != 1 {
			return nil, fmt.Errorf("dense takes one size, got %d", len(sizes))
		}
		lay, err := toolbox.MakeDense[float32](activation, inputSize, sizes[0], r)
		if err != nil {
			return nil, err
		}
		return lay, nil
	case "windowed":
		if len(sizes) != 2 {
			return nil, fmt.Errorf("windowed takes a filter count and a filter size, got %d sizes", len(sizes))
		}
		lay, err := toolbox.MakeWindowed[float32](activation, sizes[0], sizes[1], r)
		if err != nil {
			return nil, err
		}
		return lay, nil
	default:
		return nil, fmt.Errorf("unknown layer kind %q", parts[0])
	}
}
