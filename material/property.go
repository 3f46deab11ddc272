package material

import (
	"math"
	"sort"

	"furnace/model"
)

// A Property is a scalar material property evaluated at a temperature.
// Parsed/validated once at registration, evaluated many times at solve time.
type Property interface {
	Eval(T float64) (float64, error)
}

// Constant is a temperature-independent property value.
type Constant float64

func (c Constant) Eval(float64) (float64, error) { return float64(c), nil }

// Table is a piecewise-linear property over sorted (T, value) breakpoints.
// Evaluation clamps to the end values outside the table range.
type Table struct {
	temps  []float64
	values []float64
}

// NewTable validates breakpoints: at least two, strictly increasing in T,
// all values finite.
func NewTable(points [][2]float64) (*Table, error) {
	if len(points) < 2 {
		return nil, model.NewConfigError("material.table", "need at least 2 breakpoints, got %d", len(points))
	}
	t := &Table{
		temps:  make([]float64, len(points)),
		values: make([]float64, len(points)),
	}
	for n, p := range points {
		if !isFinite(p[0]) || !isFinite(p[1]) {
			return nil, model.NewConfigError("material.table", "non-finite breakpoint %v", p)
		}
		if n > 0 && p[0] <= t.temps[n-1] {
			return nil, model.NewConfigError("material.table", "breakpoints must be strictly increasing in T")
		}
		t.temps[n] = p[0]
		t.values[n] = p[1]
	}
	return t, nil
}

func (t *Table) Eval(T float64) (float64, error) {
	n := len(t.temps)
	if T <= t.temps[0] {
		return t.values[0], nil
	}
	if T >= t.temps[n-1] {
		return t.values[n-1], nil
	}
	hi := sort.SearchFloat64s(t.temps, T)
	lo := hi - 1
	frac := (T - t.temps[lo]) / (t.temps[hi] - t.temps[lo])
	return t.values[lo] + frac*(t.values[hi]-t.values[lo]), nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
