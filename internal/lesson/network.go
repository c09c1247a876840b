package lesson

import (
	"forwardlab/internal/matrix"
	"forwardlab/internal/model"
)

// DefaultNetwork returns the 2-4-4-2 network the lesson walks through. Every
// call returns fresh copies so callers cannot alter the shared constants.
func DefaultNetwork() model.Network {
	return model.Network{
		Input: matrix.Matrix{{0.5, -0.2}},
		Layers: []model.Layer{
			{
				Weights: matrix.Matrix{
					{0.1, 0.4, -0.2, 0.7},
					{0.3, -0.5, 0.6, -0.1},
				},
				Bias:       matrix.Matrix{{0.1, 0.2, 0.1, -0.3}},
				Activation: "relu",
			},
			{
				Weights: matrix.Matrix{
					{0.4, -0.2, 0.1, 0.5},
					{-0.1, 0.3, -0.5, 0.2},
					{0.7, -0.3, 0.2, -0.1},
					{0.2, 0.6, -0.4, 0.3},
				},
				Bias:       matrix.Matrix{{-0.2, 0.1, 0.3, -0.1}},
				Activation: "relu",
			},
			{
				Weights: matrix.Matrix{
					{0.2, -0.1},
					{-0.3, 0.5},
					{0.6, -0.2},
					{-0.1, 0.4},
				},
				Bias:       matrix.Matrix{{0.1, -0.2}},
				Activation: "softmax",
			},
		},
	}
}
