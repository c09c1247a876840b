// Package matrix implements the dense row-major arithmetic used to evaluate
// the lesson network: multiply, elementwise add, ReLU and row softmax.
package matrix

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShapeMismatch is returned when operand shapes are incompatible.
	ErrShapeMismatch = errors.New("matrix: shape mismatch")
	// ErrRagged is returned when rows of one matrix differ in length.
	ErrRagged = errors.New("matrix: ragged rows")
	// ErrEmpty is returned when an operand has no rows or no columns.
	ErrEmpty = errors.New("matrix: empty matrix")
)

// Matrix is a rectangular grid of values addressed as m[row][col].
type Matrix [][]float64

// New returns a rows x cols matrix of zeros.
func New(rows, cols int) Matrix {
	out := make(Matrix, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	return out
}

// Must unwraps a result that cannot fail for well-formed constant operands.
func Must(m Matrix, err error) Matrix {
	if err != nil {
		panic(err)
	}
	return m
}

func (m Matrix) Rows() int {
	return len(m)
}

// Cols reports the length of the first row.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

func (m Matrix) Shape() (rows, cols int) {
	return m.Rows(), m.Cols()
}

// Validate checks that m is non-empty and rectangular.
func (m Matrix) Validate() error {
	if m.Rows() == 0 || m.Cols() == 0 {
		return ErrEmpty
	}
	cols := m.Cols()
	for i, row := range m {
		if len(row) != cols {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrRagged, i, len(row), cols)
		}
	}
	return nil
}

func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Multiply returns the matrix product a·b.
func Multiply(a, b Matrix) (Matrix, error) {
	if err := validatePair(a, b); err != nil {
		return nil, err
	}
	if a.Cols() != b.Rows() {
		return nil, fmt.Errorf("%w: multiply %dx%d by %dx%d", ErrShapeMismatch, a.Rows(), a.Cols(), b.Rows(), b.Cols())
	}

	var out mat.Dense
	out.Mul(toDense(a), toDense(b))
	return fromDense(&out), nil
}

// Add returns the elementwise sum of two matrices of identical shape.
func Add(a, b Matrix) (Matrix, error) {
	if err := validatePair(a, b); err != nil {
		return nil, err
	}
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return nil, fmt.Errorf("%w: add %dx%d to %dx%d", ErrShapeMismatch, a.Rows(), a.Cols(), b.Rows(), b.Cols())
	}

	var out mat.Dense
	out.Add(toDense(a), toDense(b))
	return fromDense(&out), nil
}

// ReLU applies max(0, x) to every cell.
func ReLU(m Matrix) Matrix {
	return Apply(m, func(x float64) float64 {
		return math.Max(0, x)
	})
}

// Softmax normalizes each row independently after shifting it by its maximum.
func Softmax(m Matrix) Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = softmaxRow(row)
	}
	return out
}

// Apply maps fn over every cell into a new matrix.
func Apply(m Matrix, fn func(float64) float64) Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		for j, value := range row {
			out[i][j] = fn(value)
		}
	}
	return out
}

func softmaxRow(row []float64) []float64 {
	if len(row) == 0 {
		return []float64{}
	}
	maxValue := floats.Max(row)
	exps := make([]float64, len(row))
	for j, value := range row {
		exps[j] = math.Exp(value - maxValue)
	}
	return distribute(exps)
}

// distribute divides each value by the row total. A zero total yields the
// uniform distribution.
func distribute(exps []float64) []float64 {
	sum := floats.Sum(exps)
	out := make([]float64, len(exps))
	if sum == 0 {
		for j := range out {
			out[j] = 1 / float64(len(exps))
		}
		return out
	}
	for j, value := range exps {
		out[j] = value / sum
	}
	return out
}

func validatePair(a, b Matrix) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("left operand: %w", err)
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("right operand: %w", err)
	}
	return nil
}

func toDense(m Matrix) *mat.Dense {
	rows, cols := m.Shape()
	data := make([]float64, 0, rows*cols)
	for _, row := range m {
		data = append(data, row...)
	}
	return mat.NewDense(rows, cols, data)
}

func fromDense(d *mat.Dense) Matrix {
	rows, cols := d.Dims()
	out := New(rows, cols)
	for i := range out {
		mat.Row(out[i], i, d)
	}
	return out
}
