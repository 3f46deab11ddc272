package mesh

import (
	"math"

	log "github.com/sirupsen/logrus"

	"furnace/model"
)

// Axisymmetric r-z discretization of the furnace volume. The mesh is
// immutable after Build; boundary classification is computed once here so
// the per-step loop never re-derives it from indices.

// BoundaryType classifies a node by the update rule that applies to it.
type BoundaryType uint8

const (
	Interior BoundaryType = iota
	Axis                  // i == 0, the r=0 symmetry axis
	OuterWall             // i == nr-1, convective/radiative loss wall
	Bottom                // j == 0, adiabatic
	Top                   // j == nz-1, adiabatic
)

func (b BoundaryType) String() string {
	switch b {
	case Axis:
		return "axis"
	case OuterWall:
		return "outer_wall"
	case Bottom:
		return "bottom"
	case Top:
		return "top"
	default:
		return "interior"
	}
}

// preset resolutions trading accuracy for runtime.
var presets = map[string][2]int{
	"coarse": {41, 41},
	"medium": {81, 81},
	"fine":   {161, 161},
}

// Resolve maps a MeshSpec to a concrete resolution. Named presets win over
// explicit values; an empty spec is an error.
func Resolve(spec model.MeshSpec) (nr, nz int, err error) {
	if spec.Preset != "" {
		p, ok := presets[spec.Preset]
		if !ok {
			return 0, 0, model.NewConfigError("mesh.preset", "unknown preset %q (want coarse, medium or fine)", spec.Preset)
		}
		return p[0], p[1], nil
	}
	if spec.NR == 0 && spec.NZ == 0 {
		return 0, 0, model.NewConfigError("mesh", "either a preset or an explicit (nr,nz) is required")
	}
	return spec.NR, spec.NZ, nil
}

// Mesh is the axisymmetric grid. Nodes are indexed (i,j) with i the radial
// index and j the axial index; the flat index is j*NR+i (row-major, row =
// axial index, matching the snapshot layout).
type Mesh struct {
	Radius float64
	Height float64
	NR     int
	NZ     int
	DR     float64
	DZ     float64

	r        []float64      // radial coordinate per column
	boundary []BoundaryType // per node, classified once
}

// Build validates the geometry and constructs the grid. Corner nodes
// resolve by radial priority: Axis and OuterWall take precedence over
// Bottom and Top.
func Build(radius, height float64, nr, nz int) (*Mesh, error) {
	if radius <= 0 {
		return nil, model.NewConfigError("geometry.radius", "must be > 0, got %g", radius)
	}
	if height <= 0 {
		return nil, model.NewConfigError("geometry.height", "must be > 0, got %g", height)
	}
	if nr < 2 || nz < 2 {
		return nil, model.NewConfigError("mesh", "nr and nz must be >= 2, got (%d,%d)", nr, nz)
	}

	m := &Mesh{
		Radius: radius,
		Height: height,
		NR:     nr,
		NZ:     nz,
		DR:     radius / float64(nr-1),
		DZ:     height / float64(nz-1),
	}

	m.r = make([]float64, nr)
	for i := 0; i < nr; i++ {
		m.r[i] = float64(i) * m.DR
	}

	m.boundary = make([]BoundaryType, nr*nz)
	for j := 0; j < nz; j++ {
		for i := 0; i < nr; i++ {
			m.boundary[j*nr+i] = classify(i, j, nr, nz)
		}
	}

	log.WithFields(log.Fields{
		"nr": nr, "nz": nz, "dr": m.DR, "dz": m.DZ,
	}).Debug("mesh built")
	return m, nil
}

func classify(i, j, nr, nz int) BoundaryType {
	// Radial priority: a corner node on the axis or the outer wall keeps
	// the radial rule, not the axial one.
	switch {
	case i == 0:
		return Axis
	case i == nr-1:
		return OuterWall
	case j == 0:
		return Bottom
	case j == nz-1:
		return Top
	default:
		return Interior
	}
}

// Index flattens (i,j) into the snapshot layout.
func (m *Mesh) Index(i, j int) int { return j*m.NR + i }

// R returns the radial coordinate of column i.
func (m *Mesh) R(i int) float64 { return m.r[i] }

// Z returns the axial coordinate of row j.
func (m *Mesh) Z(j int) float64 { return float64(j) * m.DZ }

// Boundary returns the precomputed classification of node (i,j).
func (m *Mesh) Boundary(i, j int) BoundaryType { return m.boundary[j*m.NR+i] }

// NodeCount is the total number of nodes, checked against the resource
// ceiling before a run starts.
func (m *Mesh) NodeCount() int { return m.NR * m.NZ }

// Neighbor returns the node offset by (di,dj) and whether it is in bounds.
func (m *Mesh) Neighbor(i, j, di, dj int) (ni, nj int, ok bool) {
	ni, nj = i+di, j+dj
	if ni < 0 || ni >= m.NR || nj < 0 || nj >= m.NZ {
		return 0, 0, false
	}
	return ni, nj, true
}

// Volume returns the control volume of node (i,j): a cylindrical annulus
// spanning half a cell to each in-bounds side, so axis and wall columns and
// top and bottom rows carry half cells. Needed for energy accounting, not
// for the temperature update itself.
func (m *Mesh) Volume(i, j int) float64 {
	inner := m.r[i] - m.DR/2
	if inner < 0 {
		inner = 0
	}
	outer := m.r[i] + m.DR/2
	if outer > m.Radius {
		outer = m.Radius
	}
	dz := m.DZ
	if j == 0 || j == m.NZ-1 {
		dz /= 2
	}
	return math.Pi * (outer*outer - inner*inner) * dz
}

// RadialFaceArea is the lateral area of the face between columns i and i+1,
// per axial cell.
func (m *Mesh) RadialFaceArea(i, j int) float64 {
	face := m.r[i] + m.DR/2
	if face > m.Radius {
		face = m.Radius
	}
	dz := m.DZ
	if j == 0 || j == m.NZ-1 {
		dz /= 2
	}
	return 2 * math.Pi * face * dz
}

// AxialFaceArea is the annular area of the face between rows j and j+1 at
// column i.
func (m *Mesh) AxialFaceArea(i int) float64 {
	inner := m.r[i] - m.DR/2
	if inner < 0 {
		inner = 0
	}
	outer := m.r[i] + m.DR/2
	if outer > m.Radius {
		outer = m.Radius
	}
	return math.Pi * (outer*outer - inner*inner)
}

// Contains reports whether an absolute (r,z) position lies inside the
// furnace volume.
func (m *Mesh) Contains(r, z float64) bool {
	return r >= 0 && r <= m.Radius && z >= 0 && z <= m.Height
}
