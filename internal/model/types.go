package model

import (
	"time"

	"forwardlab/internal/matrix"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type StepID string

const InputStepID StepID = "input"

type StepKind string

const (
	StepKindSource      StepKind = "source"
	StepKindWeightedSum StepKind = "weighted-sum"
	StepKindActivation  StepKind = "activation"
)

// Layer is one dense layer: Z = A·Weights + Bias, A' = Activation(Z).
type Layer struct {
	Weights    matrix.Matrix `json:"weights"`
	Bias       matrix.Matrix `json:"bias"`
	Activation string        `json:"activation"`
}

type Network struct {
	Input  matrix.Matrix `json:"input"`
	Layers []Layer       `json:"layers"`
}

// Architecture returns the neuron count of every layer, input first.
func (n Network) Architecture() []int {
	out := make([]int, 0, len(n.Layers)+1)
	out = append(out, n.Input.Cols())
	for _, layer := range n.Layers {
		out = append(out, layer.Weights.Cols())
	}
	return out
}

type Step struct {
	ID          StepID        `json:"id"`
	Kind        StepKind      `json:"kind"`
	Layer       int           `json:"layer"`
	Requires    StepID        `json:"requires,omitempty"`
	Label       string        `json:"label"`
	Formula     string        `json:"formula,omitempty"`
	Description string        `json:"description"`
	Hint        string        `json:"hint,omitempty"`
	Activation  string        `json:"activation,omitempty"`
	Operands    []string      `json:"operands,omitempty"`
	Expected    matrix.Matrix `json:"expected"`
}

// Parameter is a fixed operand matrix shown alongside the steps.
type Parameter struct {
	ID          string        `json:"id"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Value       matrix.Matrix `json:"value"`
}

type SessionRecord struct {
	VersionedRecord
	ID        string         `json:"id"`
	Completed []StepID       `json:"completed"`
	Attempts  map[StepID]int `json:"attempts,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
