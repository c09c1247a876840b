// Package gate sequences which lesson step a learner may edit and validates
// submitted matrices against the precomputed expectations.
package gate

import (
	"errors"
	"fmt"
	"math"

	"forwardlab/internal/lesson"
	"forwardlab/internal/matrix"
	"forwardlab/internal/model"
)

// Tolerance is the largest accepted absolute deviation per cell.
const Tolerance = 0.0001

var (
	ErrInvalidStepTransition = errors.New("invalid step transition")
	ErrUnknownStep           = errors.New("unknown step")
)

type Result struct {
	Step       model.StepID `json:"step"`
	Accepted   bool         `json:"accepted"`
	CellErrors [][]bool     `json:"cell_errors"`
	Status     Status       `json:"status"`
}

// Gate owns one learner's LessonState. It is not safe for concurrent use;
// callers serialize access per session.
type Gate struct {
	graph *lesson.Graph
	state State
}

func New(g *lesson.Graph) *Gate {
	return &Gate{graph: g, state: InitialState(g)}
}

// Restore rebuilds a gate from a previously completed set. The set must name
// known steps and respect every predecessor link.
func Restore(g *lesson.Graph, completed []model.StepID) (*Gate, error) {
	state := InitialState(g)
	for _, id := range completed {
		if _, ok := g.Position(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStep, id)
		}
		state = state.with(id)
	}
	for _, id := range completed {
		requires := g.Requires(id)
		if requires != "" && !state.IsCompleted(requires) {
			return nil, fmt.Errorf("%w: %s completed before %s", ErrInvalidStepTransition, id, requires)
		}
	}
	return &Gate{graph: g, state: state}, nil
}

func (g *Gate) Graph() *lesson.Graph {
	return g.graph
}

func (g *Gate) State() Snapshot {
	return Derive(g.graph, g.state)
}

func (g *Gate) Status(id model.StepID) (Status, error) {
	if _, ok := g.graph.Position(id); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStep, id)
	}
	return StatusOf(g.graph, g.state, id), nil
}

// Validate checks candidate against the expected matrix of a pending step and
// completes the step when every cell is within Tolerance. Locked or already
// completed steps are rejected with ErrInvalidStepTransition and leave the
// state untouched.
func (g *Gate) Validate(id model.StepID, candidate matrix.Matrix) (Result, error) {
	status, err := g.Status(id)
	if err != nil {
		return Result{Step: id}, err
	}
	if status != StatusPending {
		return Result{Step: id, Status: status}, fmt.Errorf("%w: %s is %s", ErrInvalidStepTransition, id, status)
	}

	expected, _ := g.graph.Expected(id)
	cellErrors, ok := CompareCells(expected, candidate, Tolerance)
	if ok {
		g.state = g.state.with(id)
		status = StatusCompleted
	}
	return Result{
		Step:       id,
		Accepted:   ok,
		CellErrors: cellErrors,
		Status:     status,
	}, nil
}

// Reset returns to the initial state with only source steps completed.
func (g *Gate) Reset() {
	g.state = InitialState(g.graph)
}

// CompareCells flags every position where candidate deviates from expected by
// more than tol. The grid spans both shapes; a position present in only one
// of them, or holding NaN, is an error.
func CompareCells(expected, candidate matrix.Matrix, tol float64) ([][]bool, bool) {
	rows := max(len(expected), len(candidate))
	out := make([][]bool, rows)
	ok := true
	for i := 0; i < rows; i++ {
		expRow := rowAt(expected, i)
		candRow := rowAt(candidate, i)
		out[i] = make([]bool, max(len(expRow), len(candRow)))
		for j := range out[i] {
			if j >= len(expRow) || j >= len(candRow) || !(math.Abs(candRow[j]-expRow[j]) <= tol) {
				out[i][j] = true
				ok = false
			}
		}
	}
	return out, ok
}

func rowAt(m matrix.Matrix, i int) []float64 {
	if i < len(m) {
		return m[i]
	}
	return nil
}
