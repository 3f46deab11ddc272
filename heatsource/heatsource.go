package heatsource

import (
	"math"

	"furnace/model"
)

// Gaussian torch sources and boundary heat-loss terms. All torch
// contributions superpose linearly, so every operation here is
// order-independent except the documented DominantTorch tie-break.

const (
	// SigmaSB is the Stefan-Boltzmann constant, W/(m^2 K^4).
	SigmaSB = 5.67e-8

	// DefaultConvectionCoeff is the wall film coefficient used when the
	// server config does not override it, W/(m^2 K).
	DefaultConvectionCoeff = 10.0
)

// Torch is one plasma torch with absolute position in meters. Immutable for
// the duration of a run.
type Torch struct {
	R          float64
	Z          float64
	PowerKW    float64
	Efficiency float64
	Sigma      float64
}

// FromModel converts the submitted DTO.
func FromModel(t model.Torch) Torch {
	return Torch{
		R:          t.Position.R,
		Z:          t.Position.Z,
		PowerKW:    t.PowerKW,
		Efficiency: t.Efficiency,
		Sigma:      t.Sigma,
	}
}

// Flux is the torch's heat flux at (r,z):
// P_W*eta / (2*pi*sigma^2) * exp(-d^2 / (2*sigma^2)), W/m^2.
func (t Torch) Flux(r, z float64) float64 {
	pw := t.PowerKW * 1000 * t.Efficiency
	dr := r - t.R
	dz := z - t.Z
	d2 := dr*dr + dz*dz
	s2 := t.Sigma * t.Sigma
	return pw / (2 * math.Pi * s2) * math.Exp(-d2/(2*s2))
}

// Model combines the torch list with the wall-loss parameters for one run.
type Model struct {
	torches []Torch
	h       float64 // convective film coefficient
	ambient float64 // Kelvin
}

// New builds a source model. h <= 0 selects the default film coefficient.
func New(torches []model.Torch, h, ambient float64) *Model {
	if h <= 0 {
		h = DefaultConvectionCoeff
	}
	m := &Model{
		torches: make([]Torch, len(torches)),
		h:       h,
		ambient: ambient,
	}
	for i, t := range torches {
		m.torches[i] = FromModel(t)
	}
	return m
}

// Torches returns the torch list in input order.
func (m *Model) Torches() []Torch { return m.torches }

// TotalFlux is the linear superposition of all torch fluxes at (r,z).
func (m *Model) TotalFlux(r, z float64) float64 {
	var sum float64
	for _, t := range m.torches {
		sum += t.Flux(r, z)
	}
	return sum
}

// ConvectionLoss is Newton's law of cooling against the ambient
// temperature; never negative (no spurious heating from a cold wall).
func (m *Model) ConvectionLoss(T float64) float64 {
	return m.h * math.Max(T-m.ambient, 0)
}

// RadiationLoss is the grey-body loss against the ambient; never negative.
func (m *Model) RadiationLoss(T, emissivity float64) float64 {
	t4 := T * T * T * T
	a4 := m.ambient * m.ambient * m.ambient * m.ambient
	return emissivity * SigmaSB * math.Max(t4-a4, 0)
}

// WallLoss is the combined convective and radiative flux leaving the outer
// wall at temperature T.
func (m *Model) WallLoss(T, emissivity float64) float64 {
	return m.ConvectionLoss(T) + m.RadiationLoss(T, emissivity)
}

// DominantTorch returns the index of the torch with the largest individual
// flux at (r,z). Exact ties keep the earliest torch in input order. Returns
// -1 when the model has no torches.
func (m *Model) DominantTorch(r, z float64) int {
	best := -1
	var bestFlux float64
	for i, t := range m.torches {
		f := t.Flux(r, z)
		if best == -1 || f > bestFlux {
			best = i
			bestFlux = f
		}
	}
	return best
}
