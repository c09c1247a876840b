package nn

import (
	"fmt"

	"forwardlab/internal/matrix"
	"forwardlab/internal/model"
)

// LayerTrace holds the weighted sum and activation computed for one layer.
type LayerTrace struct {
	Z matrix.Matrix
	A matrix.Matrix
}

// Forward evaluates the network layer by layer, feeding each activation into
// the next weighted sum.
func Forward(network model.Network) ([]LayerTrace, error) {
	if err := network.Input.Validate(); err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}

	traces := make([]LayerTrace, 0, len(network.Layers))
	prev := network.Input
	for i, layer := range network.Layers {
		trace, err := forwardLayer(prev, layer)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i+1, err)
		}
		traces = append(traces, trace)
		prev = trace.A
	}
	return traces, nil
}

func forwardLayer(in matrix.Matrix, layer model.Layer) (LayerTrace, error) {
	activate, err := GetActivation(layer.Activation)
	if err != nil {
		return LayerTrace{}, err
	}
	product, err := matrix.Multiply(in, layer.Weights)
	if err != nil {
		return LayerTrace{}, err
	}
	z, err := matrix.Add(product, layer.Bias)
	if err != nil {
		return LayerTrace{}, err
	}
	return LayerTrace{Z: z, A: activate(z)}, nil
}
