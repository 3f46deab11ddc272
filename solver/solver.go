package solver

import (
	"fmt"
	"math"

	"furnace/heatsource"
	"furnace/material"
	"furnace/mesh"
	"furnace/model"
)

// Explicit forward-Euler stepper for the axisymmetric conduction equation.
// Each step runs the pipeline: stable-dt check, interior sweep, boundary
// conditions, validity scan, commit. The sweep reads only the current
// buffer and writes only the next buffer, so rows are updated in parallel
// without locks; the buffers swap on commit.

const (
	// ReferenceTemperature anchors the CFL diffusivity estimate.
	ReferenceTemperature = 500.0

	// Absolute clamps on the stable step, seconds.
	MinDt = 1e-8
	MaxDt = 10.0
)

type Solver struct {
	mesh *mesh.Mesh
	mat  *material.Material
	src  *heatsource.Model

	cfl     float64
	maxStep float64 // optional user hint, 0 = none
	ambient float64

	cur  []float64
	next []float64
	flux []float64 // torch flux per node; torches are immutable per run

	steps int
	time  float64

	ex *executor
}

// New allocates the double-buffered field at the initial temperature and
// precomputes the torch flux at every node.
func New(m *mesh.Mesh, mat *material.Material, src *heatsource.Model, spec model.SolverSpec, boundary model.Boundary, workers int) *Solver {
	n := m.NodeCount()
	s := &Solver{
		mesh:    m,
		mat:     mat,
		src:     src,
		cfl:     spec.CFLFactor,
		maxStep: spec.MaxStep,
		ambient: boundary.AmbientTemperature,
		cur:     make([]float64, n),
		next:    make([]float64, n),
		flux:    make([]float64, n),
	}
	for i := range s.cur {
		s.cur[i] = boundary.InitialTemperature
	}
	for j := 0; j < m.NZ; j++ {
		for i := 0; i < m.NR; i++ {
			s.flux[m.Index(i, j)] = src.TotalFlux(m.R(i), m.Z(j))
		}
	}
	s.ex = newExecutor(workers, s.updateRows)
	return s
}

// Close releases the sweep workers. Idempotent; Step must not be called
// afterwards.
func (s *Solver) Close() { s.ex.shutdown() }

// Time returns the simulated time reached so far.
func (s *Solver) Time() float64 { return s.time }

// Steps returns the number of committed steps.
func (s *Solver) Steps() int { return s.steps }

// StableDt computes the CFL-bounded explicit step:
// cfl * min(dr^2, dz^2) / (2*alpha), with alpha evaluated at the reference
// temperature clamped into the material's validity range. The result is
// clamped to [MinDt, MaxDt] and to the user's max-step hint.
func (s *Solver) StableDt() (float64, error) {
	refT := math.Min(math.Max(ReferenceTemperature, s.mat.TMin), s.mat.TMax)
	alpha, err := s.mat.Diffusivity(refT)
	if err != nil {
		return 0, err
	}
	h2 := math.Min(s.mesh.DR*s.mesh.DR, s.mesh.DZ*s.mesh.DZ)
	dt := s.cfl * h2 / (2 * alpha)
	if dt < MinDt {
		dt = MinDt
	}
	if dt > MaxDt {
		dt = MaxDt
	}
	if s.maxStep > 0 && dt > s.maxStep {
		dt = s.maxStep
	}
	return dt, nil
}

// CheckStability fails when dt exceeds the CFL bound.
func (s *Solver) CheckStability(dt float64) error {
	limit, err := s.StableDt()
	if err != nil {
		return err
	}
	if dt > limit {
		return &model.InstabilityError{
			Step:   s.steps,
			Time:   s.time,
			Reason: fmt.Sprintf("dt %g exceeds stable limit %g", dt, limit),
		}
	}
	return nil
}

// Step advances the field by dt. On instability the tainted buffer is
// discarded: the current field stays at the last committed state.
func (s *Solver) Step(dt float64) error {
	if dt <= 0 {
		return nil
	}
	if err := s.CheckStability(dt); err != nil {
		return err
	}
	if err := s.ex.sweep(1, s.mesh.NZ-1, dt); err != nil {
		return s.fail(err)
	}
	if err := s.applyBoundary(); err != nil {
		return s.fail(err)
	}
	if i, j, v, ok := s.findInvalid(); ok {
		return s.fail(fmt.Errorf("unphysical temperature %g at node (%d,%d)", v, i, j))
	}
	s.cur, s.next = s.next, s.cur
	s.steps++
	s.time += dt
	return nil
}

func (s *Solver) fail(err error) error {
	var inst *model.InstabilityError
	if e, ok := err.(*model.InstabilityError); ok {
		inst = e
	} else {
		inst = &model.InstabilityError{Step: s.steps, Time: s.time, Reason: err.Error()}
	}
	return inst
}

// updateRows is the interior sweep over axial rows [first,last). Dispatched
// in chunks by the executor; every chunk reads cur and writes disjoint rows
// of next.
func (s *Solver) updateRows(first, last int, dt float64) error {
	m := s.mesh
	nr := m.NR
	dz2 := m.DZ * m.DZ
	for j := first; j < last; j++ {
		row := j * nr
		for i := 1; i < nr-1; i++ {
			idx := row + i
			tc := s.cur[idx]

			alpha, err := s.mat.Diffusivity(tc)
			if err != nil {
				return err
			}
			rhoCp, err := s.mat.VolumetricHeatCapacity(tc)
			if err != nil {
				return err
			}

			radial := s.radialTerm(i, j)
			axial := (s.cur[idx-nr] - 2*tc + s.cur[idx+nr]) / dz2

			s.next[idx] = tc + dt*(alpha*(radial+axial)+s.flux[idx]/rhoCp)
		}
	}
	return nil
}

// radialTerm evaluates the radial part of the Laplacian in cylindrical
// coordinates at column i of row j, reading the current buffer.
//
//   - axis column (r=0): the 1/r term degenerates by L'Hopital's rule to
//     2*(T_e - T_c)/dr^2;
//   - outermost interior column: a one-sided, inward-biased second
//     difference, so the wall node (updated afterwards by the boundary
//     pass) is never read. Meshes narrower than four columns have no room
//     for the one-sided stencil and fall back to the conservative form;
//     the wall value it reads comes from the committed buffer, never from
//     a mid-update node;
//   - everywhere else: the conservative flux form with face radii.
func (s *Solver) radialTerm(i, j int) float64 {
	m := s.mesh
	nr := m.NR
	dr := m.DR
	dr2 := dr * dr
	idx := j*nr + i
	tc := s.cur[idx]

	switch {
	case i == 0:
		return 2 * (s.cur[idx+1] - tc) / dr2
	case i == nr-2 && i >= 2:
		r := m.R(i)
		oneSided := (tc - 2*s.cur[idx-1] + s.cur[idx-2]) / dr2
		return oneSided + (tc-s.cur[idx-1])/(r*dr)
	default:
		r := m.R(i)
		rRight := r + dr/2
		rLeft := r - dr/2
		return (rRight*(s.cur[idx+1]-tc) - rLeft*(tc-s.cur[idx-1])) / (r * dr2)
	}
}

// applyBoundary writes the boundary rows and columns of the next buffer.
// Axial rows first, radial columns second: corners resolve by radial
// priority, so the axis and outer-wall rules win at the corners.
func (s *Solver) applyBoundary() error {
	m := s.mesh
	nr, nz := m.NR, m.NZ

	// Bottom and Top: adiabatic, zero gradient along z.
	for i := 0; i < nr; i++ {
		s.next[i] = s.next[nr+i]
		s.next[(nz-1)*nr+i] = s.next[(nz-2)*nr+i]
	}

	// Axis: zero gradient along r.
	for j := 0; j < nz; j++ {
		s.next[j*nr] = s.next[j*nr+1]
	}

	// OuterWall: local balance k*(T_int - T_wall)/dr = q_conv + q_rad,
	// losses evaluated at the previous wall temperature, floored at
	// ambient.
	for j := 0; j < nz; j++ {
		wallIdx := j*nr + nr - 1
		tWallOld := s.cur[wallIdx]
		k, err := s.mat.K(tWallOld)
		if err != nil {
			return err
		}
		q := s.src.WallLoss(tWallOld, s.mat.Emissivity)
		tWall := s.next[wallIdx-1] - q*m.DR/k
		if tWall < s.ambient {
			tWall = s.ambient
		}
		s.next[wallIdx] = tWall
	}
	return nil
}

// findInvalid scans the next buffer for values no physical field can hold:
// NaN, Inf, or below absolute zero. The stable-dt estimate uses a fixed
// reference temperature, so a steeply temperature-dependent conductivity
// can make an accepted dt oscillate at the actual field temperatures; the
// undershoots of such an oscillation are finite negative Kelvin values and
// must be caught here, before the commit.
func (s *Solver) findInvalid() (i, j int, v float64, found bool) {
	nr := s.mesh.NR
	for idx, val := range s.next {
		if math.IsNaN(val) || math.IsInf(val, 0) || val < 0 {
			return idx % nr, idx / nr, val, true
		}
	}
	return 0, 0, 0, false
}

// Temperatures exposes the committed buffer. Callers must copy before
// holding a reference across steps; Grid does that.
func (s *Solver) Temperatures() []float64 { return s.cur }

// Grid returns a copy of the committed field, row-major with the axial
// index as row, suitable for a snapshot.
func (s *Solver) Grid() [][]float64 {
	nr, nz := s.mesh.NR, s.mesh.NZ
	grid := make([][]float64, nz)
	for j := 0; j < nz; j++ {
		row := make([]float64, nr)
		copy(row, s.cur[j*nr:(j+1)*nr])
		grid[j] = row
	}
	return grid
}

// TotalEnergy integrates rho*cp*T over the cell volumes, J. A diagnostic
// for energy-accounting checks; not part of the update.
func (s *Solver) TotalEnergy() (float64, error) {
	var sum float64
	m := s.mesh
	for j := 0; j < m.NZ; j++ {
		for i := 0; i < m.NR; i++ {
			t := s.cur[m.Index(i, j)]
			rhoCp, err := s.mat.VolumetricHeatCapacity(t)
			if err != nil {
				return 0, err
			}
			sum += rhoCp * t * m.Volume(i, j)
		}
	}
	return sum, nil
}
