package solver

import (
	"math"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furnace/heatsource"
	"furnace/material"
	"furnace/mesh"
	"furnace/model"
)

func steel(t *testing.T) *material.Material {
	t.Helper()
	m, err := material.Default().Get("Carbon Steel")
	require.NoError(t, err)
	return m
}

func newSolver(t *testing.T, torches []model.Torch, nr, nz int, spec model.SolverSpec) *Solver {
	t.Helper()
	m, err := mesh.Build(1.0, 2.0, nr, nz)
	require.NoError(t, err)
	src := heatsource.New(torches, 0, 300)
	boundary := model.Boundary{InitialTemperature: 300, AmbientTemperature: 300}
	s := New(m, steel(t), src, spec, boundary, 2)
	t.Cleanup(s.Close)
	return s
}

func TestStableDtBound(t *testing.T) {
	s := newSolver(t, nil, 41, 81, model.SolverSpec{CFLFactor: 0.8})

	dt, err := s.StableDt()
	require.NoError(t, err)

	alpha, err := steel(t).Diffusivity(ReferenceTemperature)
	require.NoError(t, err)
	h2 := math.Min(s.mesh.DR*s.mesh.DR, s.mesh.DZ*s.mesh.DZ)
	bound := 0.8 * h2 / (2 * alpha)
	assert.LessOrEqual(t, dt, bound*(1+1e-12))
	assert.GreaterOrEqual(t, dt, MinDt)
	assert.LessOrEqual(t, dt, MaxDt)

	assert.NoError(t, s.CheckStability(dt))
	err = s.CheckStability(dt * 1.5)
	require.Error(t, err)
	var inst *model.InstabilityError
	assert.ErrorAs(t, err, &inst)
}

func TestStableDtHonorsMaxStepHint(t *testing.T) {
	s := newSolver(t, nil, 11, 11, model.SolverSpec{CFLFactor: 0.8, MaxStep: 0.25})
	dt, err := s.StableDt()
	require.NoError(t, err)
	assert.LessOrEqual(t, dt, 0.25)
}

// With no torches and a uniform initial field, every committed step must
// leave the field uniform at the initial temperature.
func TestUniformFieldStaysUniform(t *testing.T) {
	s := newSolver(t, nil, 21, 21, model.SolverSpec{CFLFactor: 0.5})
	dt, err := s.StableDt()
	require.NoError(t, err)

	for n := 0; n < 5; n++ {
		require.NoError(t, s.Step(dt))
	}
	for _, v := range s.Temperatures() {
		assert.InDelta(t, 300.0, v, 1e-9)
	}
	assert.Equal(t, 5, s.Steps())
	assert.InDelta(t, 5*dt, s.Time(), 1e-12)
}

func TestHeatingRaisesTorchRegion(t *testing.T) {
	torches := []model.Torch{{
		Position:   model.Position{R: 0, Z: 1.0},
		PowerKW:    150,
		Efficiency: 0.8,
		Sigma:      0.05,
	}}
	s := newSolver(t, torches, 41, 81, model.SolverSpec{CFLFactor: 0.8})

	dt, err := s.StableDt()
	require.NoError(t, err)
	for s.Time() < 10 {
		require.NoError(t, s.Step(dt))
	}

	grid := s.Grid()
	m := s.mesh
	centerJ := m.NZ / 2
	near := grid[centerJ][1]
	far := grid[centerJ][m.NR-2]
	assert.Greater(t, near, 301.0, "torch region must heat up")
	assert.Greater(t, near, far, "temperature must decay away from the torch")

	// no value below the initial/ambient floor, none non-finite
	for j := range grid {
		for i, v := range grid[j] {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "node (%d,%d)", i, j)
			require.GreaterOrEqual(t, v, 300.0-1e-9)
		}
	}
}

func TestAxisZeroGradient(t *testing.T) {
	torches := []model.Torch{{
		Position:   model.Position{R: 0, Z: 1.0},
		PowerKW:    100,
		Efficiency: 0.8,
		Sigma:      0.05,
	}}
	s := newSolver(t, torches, 21, 41, model.SolverSpec{CFLFactor: 0.5})
	dt, err := s.StableDt()
	require.NoError(t, err)
	for n := 0; n < 10; n++ {
		require.NoError(t, s.Step(dt))
	}
	grid := s.Grid()
	for j := range grid {
		assert.Equal(t, grid[j][1], grid[j][0], "axis row %d copies its neighbor", j)
	}
}

func TestAdiabaticTopBottom(t *testing.T) {
	s := newSolver(t, []model.Torch{{
		Position:   model.Position{R: 0.5, Z: 1.0},
		PowerKW:    100,
		Efficiency: 0.8,
		Sigma:      0.1,
	}}, 21, 41, model.SolverSpec{CFLFactor: 0.5})
	dt, err := s.StableDt()
	require.NoError(t, err)
	for n := 0; n < 10; n++ {
		require.NoError(t, s.Step(dt))
	}
	grid := s.Grid()
	nz := len(grid)
	for i := 1; i < len(grid[0])-1; i++ {
		assert.Equal(t, grid[1][i], grid[0][i])
		assert.Equal(t, grid[nz-2][i], grid[nz-1][i])
	}
}

// The axis column of the radial term follows the L'Hopital degenerate form.
func TestRadialTermAtAxis(t *testing.T) {
	s := newSolver(t, nil, 11, 11, model.SolverSpec{CFLFactor: 0.5})
	j := 5
	s.cur[j*s.mesh.NR] = 400
	s.cur[j*s.mesh.NR+1] = 430

	dr2 := s.mesh.DR * s.mesh.DR
	assert.InDelta(t, 2*30/dr2, s.radialTerm(0, j), 1e-9)
}

func TestStepRejectsUnstableDt(t *testing.T) {
	s := newSolver(t, nil, 21, 21, model.SolverSpec{CFLFactor: 0.5})
	dt, err := s.StableDt()
	require.NoError(t, err)

	err = s.Step(dt * 10)
	require.Error(t, err)
	var inst *model.InstabilityError
	require.ErrorAs(t, err, &inst)
	// the failed step must not commit
	assert.Equal(t, 0, s.Steps())
	assert.Zero(t, s.Time())
}

// A conductivity that grows steeply as the field cools makes the
// reference-temperature dt estimate unstable at the actual field
// temperature. The resulting oscillation undershoots below absolute zero
// with finite values; the validity scan must abort the step before any
// such value is committed.
func TestUnphysicalValuesNeverCommitted(t *testing.T) {
	k, err := material.ParseFormula("50000*exp(-T/80)")
	require.NoError(t, err)
	mat, err := material.New("cold spike", 7850, 0.8, 1, 1e6, k, material.Constant(500))
	require.NoError(t, err)

	m, err := mesh.Build(1.0, 1.0, 21, 21)
	require.NoError(t, err)
	src := heatsource.New([]model.Torch{{
		Position:   model.Position{R: 0, Z: 0.5},
		PowerKW:    150,
		Efficiency: 0.8,
		Sigma:      0.05,
	}}, 0, 10)
	s := New(m, mat, src, model.SolverSpec{CFLFactor: 0.8},
		model.Boundary{InitialTemperature: 10, AmbientTemperature: 10}, 2)
	defer s.Close()

	var stepErr error
	for n := 0; n < 100 && stepErr == nil; n++ {
		dt, err := s.StableDt()
		require.NoError(t, err)
		stepErr = s.Step(dt)
	}
	require.Error(t, stepErr, "run must abort once the oscillation sets in")
	var inst *model.InstabilityError
	require.ErrorAs(t, stepErr, &inst)

	// whatever the failed step produced never reached the committed field
	for _, v := range s.Temperatures() {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		require.GreaterOrEqual(t, v, 0.0)
	}
}

// nr=3 leaves no room for the one-sided wall stencil; the single interior
// column falls back to the conservative form and must still step cleanly.
func TestNarrowMeshFallback(t *testing.T) {
	torches := []model.Torch{{
		Position:   model.Position{R: 0, Z: 1.0},
		PowerKW:    100,
		Efficiency: 0.8,
		Sigma:      0.1,
	}}
	s := newSolver(t, torches, 3, 5, model.SolverSpec{CFLFactor: 0.5})

	dt, err := s.StableDt()
	require.NoError(t, err)
	for n := 0; n < 5; n++ {
		require.NoError(t, s.Step(dt))
	}
	for _, v := range s.Temperatures() {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		require.GreaterOrEqual(t, v, 300.0-1e-9)
	}
}

func TestCloseReleasesWorkers(t *testing.T) {
	base := runtime.NumGoroutine()

	for n := 0; n < 8; n++ {
		m, err := mesh.Build(1.0, 1.0, 11, 11)
		require.NoError(t, err)
		s := New(m, steel(t), heatsource.New(nil, 0, 300),
			model.SolverSpec{CFLFactor: 0.5},
			model.Boundary{InitialTemperature: 300, AmbientTemperature: 300}, 4)
		dt, err := s.StableDt()
		require.NoError(t, err)
		require.NoError(t, s.Step(dt))
		s.Close()
		s.Close() // idempotent
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= base+2
	}, 5*time.Second, 10*time.Millisecond, "sweep workers must exit on Close")
}

func TestTotalEnergyGrowsUnderHeating(t *testing.T) {
	torches := []model.Torch{{
		Position:   model.Position{R: 0.5, Z: 1.0},
		PowerKW:    150,
		Efficiency: 0.8,
		Sigma:      0.1,
	}}
	s := newSolver(t, torches, 21, 41, model.SolverSpec{CFLFactor: 0.5})

	before, err := s.TotalEnergy()
	require.NoError(t, err)
	dt, err := s.StableDt()
	require.NoError(t, err)
	for n := 0; n < 5; n++ {
		require.NoError(t, s.Step(dt))
	}
	after, err := s.TotalEnergy()
	require.NoError(t, err)
	assert.Greater(t, after, before)
}
