// Package lesson builds the ordered, gated step table for a forward-pass
// walkthrough. Expected values are computed once from the network constants.
package lesson

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"forwardlab/internal/matrix"
	"forwardlab/internal/model"
	"forwardlab/internal/nn"
)

var ErrNoLayers = errors.New("network has no layers")

// Graph is immutable after Build; accessors hand out copies.
type Graph struct {
	architecture []int
	steps        []model.Step
	parameters   []model.Parameter
	index        map[model.StepID]int
}

var (
	defaultOnce  sync.Once
	defaultGraph *Graph
)

// Default returns the process-wide 2-4-4-2 lesson.
func Default() *Graph {
	defaultOnce.Do(func() {
		defaultGraph = MustBuild(DefaultNetwork())
	})
	return defaultGraph
}

// MustBuild is Build for constant networks; a shape error is a programming bug.
func MustBuild(network model.Network) *Graph {
	g, err := Build(network)
	if err != nil {
		panic(fmt.Sprintf("build lesson graph: %v", err))
	}
	return g
}

// Build runs the forward pass once and binds every step to its expected matrix.
// Steps are ordered input, calc-z1, activate-a1, ..., calc-zN, activate-aN; each
// step requires the one before it.
func Build(network model.Network) (*Graph, error) {
	if len(network.Layers) == 0 {
		return nil, ErrNoLayers
	}
	traces, err := nn.Forward(network)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		architecture: network.Architecture(),
		steps:        make([]model.Step, 0, 1+2*len(traces)),
		parameters:   make([]model.Parameter, 0, 2*len(network.Layers)),
		index:        make(map[model.StepID]int, 1+2*len(traces)),
	}

	g.add(model.Step{
		ID:          model.InputStepID,
		Kind:        model.StepKindSource,
		Label:       "Input (A⁰)",
		Description: describeShape(network.Input),
		Expected:    network.Input.Clone(),
	})

	prev := model.InputStepID
	prevName := "Input"
	for i, trace := range traces {
		n := i + 1
		layer := network.Layers[i]
		sup := superscript(n)
		prevSup := superscript(i)
		weightsID, biasID := "w"+strconv.Itoa(n), "b"+strconv.Itoa(n)

		g.parameters = append(g.parameters,
			model.Parameter{
				ID:          weightsID,
				Label:       "Weights W" + sup,
				Description: describeShape(layer.Weights),
				Value:       layer.Weights.Clone(),
			},
			model.Parameter{
				ID:          biasID,
				Label:       "Biases b" + sup,
				Description: describeShape(layer.Bias),
				Value:       layer.Bias.Clone(),
			},
		)

		description := "Weighted Sum"
		if n == len(traces) {
			description = "Weighted Sum (Logits)"
		}
		calcID := model.StepID("calc-z" + strconv.Itoa(n))
		g.add(model.Step{
			ID:          calcID,
			Kind:        model.StepKindWeightedSum,
			Layer:       n,
			Requires:    prev,
			Label:       "Calculate Z" + sup,
			Formula:     fmt.Sprintf("Z%s = (A%s ⋅ W%s) + b%s", sup, prevSup, sup, sup),
			Description: description,
			Hint:        fmt.Sprintf("Matrix multiply %s with W%s, then add bias b%s.", prevName, sup, sup),
			Operands:    []string{string(prev), weightsID, biasID},
			Expected:    trace.Z,
		})

		activationName := displayActivation(layer.Activation)
		activateID := model.StepID("activate-a" + strconv.Itoa(n))
		g.add(model.Step{
			ID:          activateID,
			Kind:        model.StepKindActivation,
			Layer:       n,
			Requires:    calcID,
			Label:       "Activate A" + sup,
			Formula:     fmt.Sprintf("A%s = %s(Z%s)", sup, activationName, sup),
			Description: activationName + " Activation",
			Activation:  layer.Activation,
			Operands:    []string{string(calcID)},
			Expected:    trace.A,
		})

		prev = activateID
		prevName = "A" + sup
	}
	return g, nil
}

func (g *Graph) add(step model.Step) {
	g.index[step.ID] = len(g.steps)
	g.steps = append(g.steps, step)
}

// Steps returns the steps in lesson order.
func (g *Graph) Steps() []model.Step {
	out := make([]model.Step, len(g.steps))
	for i, step := range g.steps {
		out[i] = cloneStep(step)
	}
	return out
}

func (g *Graph) Step(id model.StepID) (model.Step, bool) {
	i, ok := g.index[id]
	if !ok {
		return model.Step{}, false
	}
	return cloneStep(g.steps[i]), true
}

// Position reports the index of id in lesson order.
func (g *Graph) Position(id model.StepID) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

func (g *Graph) Len() int {
	return len(g.steps)
}

// Order returns the step ids in lesson order.
func (g *Graph) Order() []model.StepID {
	out := make([]model.StepID, len(g.steps))
	for i, step := range g.steps {
		out[i] = step.ID
	}
	return out
}

// Requires returns the predecessor of id, empty for source steps.
func (g *Graph) Requires(id model.StepID) model.StepID {
	i, ok := g.index[id]
	if !ok {
		return ""
	}
	return g.steps[i].Requires
}

// Expected returns a copy of the expected matrix for id.
func (g *Graph) Expected(id model.StepID) (matrix.Matrix, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.steps[i].Expected.Clone(), true
}

func (g *Graph) Parameters() []model.Parameter {
	out := make([]model.Parameter, len(g.parameters))
	for i, p := range g.parameters {
		out[i] = p
		out[i].Value = p.Value.Clone()
	}
	return out
}

func (g *Graph) Architecture() []int {
	return append([]int(nil), g.architecture...)
}

func cloneStep(step model.Step) model.Step {
	step.Expected = step.Expected.Clone()
	step.Operands = append([]string(nil), step.Operands...)
	return step
}

func describeShape(m matrix.Matrix) string {
	rows, cols := m.Shape()
	kind := "Matrix"
	if rows == 1 {
		kind = "Vector"
	}
	return fmt.Sprintf("%dx%d %s", rows, cols, kind)
}

func displayActivation(name string) string {
	switch name {
	case "relu":
		return "ReLU"
	case "softmax":
		return "Softmax"
	case "tanh":
		return "Tanh"
	case "sigmoid":
		return "Sigmoid"
	case "identity":
		return "Identity"
	default:
		return name
	}
}

var superscriptDigits = []rune("⁰¹²³⁴⁵⁶⁷⁸⁹")

func superscript(n int) string {
	var b strings.Builder
	for _, r := range strconv.Itoa(n) {
		b.WriteRune(superscriptDigits[r-'0'])
	}
	return b.String()
}
