package material

import (
	"fmt"

	"furnace/model"
)

// Material bundles the thermal properties of one furnace charge. Owned by
// the Library and never mutated after registration.
type Material struct {
	Name       string
	Density    float64 // kg/m^3, constant
	Emissivity float64
	TMin       float64 // validity limits, Kelvin
	TMax       float64

	k  Property // thermal conductivity, W/(m K)
	cp Property // specific heat, J/(kg K)
}

// New validates the scalar fields and builds a material.
func New(name string, density, emissivity, tmin, tmax float64, k, cp Property) (*Material, error) {
	if name == "" {
		return nil, model.NewConfigError("material.name", "must not be empty")
	}
	if density <= 0 {
		return nil, model.NewConfigError("material.density", "must be > 0, got %g", density)
	}
	if emissivity < 0 || emissivity > 1 {
		return nil, model.NewConfigError("material.emissivity", "must be in [0,1], got %g", emissivity)
	}
	if tmax <= tmin {
		return nil, model.NewConfigError("material.limits", "tmax %g must exceed tmin %g", tmax, tmin)
	}
	return &Material{
		Name:       name,
		Density:    density,
		Emissivity: emissivity,
		TMin:       tmin,
		TMax:       tmax,
		k:          k,
		cp:         cp,
	}, nil
}

func (m *Material) checkRange(T float64) error {
	if T < m.TMin || T > m.TMax {
		return fmt.Errorf("%s: temperature %.1fK outside validity range [%.1f, %.1f]",
			m.Name, T, m.TMin, m.TMax)
	}
	return nil
}

// K evaluates thermal conductivity at T.
func (m *Material) K(T float64) (float64, error) {
	if err := m.checkRange(T); err != nil {
		return 0, err
	}
	v, err := m.k.Eval(T)
	if err != nil {
		return 0, err
	}
	if !isFinite(v) || v <= 0 {
		return 0, fmt.Errorf("%s: conductivity %g at %.1fK: %w", m.Name, v, T, model.ErrNonFinite)
	}
	return v, nil
}

// Cp evaluates specific heat at T.
func (m *Material) Cp(T float64) (float64, error) {
	if err := m.checkRange(T); err != nil {
		return 0, err
	}
	v, err := m.cp.Eval(T)
	if err != nil {
		return 0, err
	}
	if !isFinite(v) || v <= 0 {
		return 0, fmt.Errorf("%s: specific heat %g at %.1fK: %w", m.Name, v, T, model.ErrNonFinite)
	}
	return v, nil
}

// Diffusivity returns k/(rho*cp) at T, m^2/s.
func (m *Material) Diffusivity(T float64) (float64, error) {
	k, err := m.K(T)
	if err != nil {
		return 0, err
	}
	cp, err := m.Cp(T)
	if err != nil {
		return 0, err
	}
	denom := m.Density * cp
	if denom <= 0 {
		return 0, fmt.Errorf("%s: rho*cp = %g must be > 0", m.Name, denom)
	}
	return k / denom, nil
}

// VolumetricHeatCapacity returns rho*cp at T, J/(m^3 K).
func (m *Material) VolumetricHeatCapacity(T float64) (float64, error) {
	cp, err := m.Cp(T)
	if err != nil {
		return 0, err
	}
	return m.Density * cp, nil
}
