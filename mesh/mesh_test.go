package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furnace/model"
)

func TestBuildValidation(t *testing.T) {
	cases := []struct {
		name           string
		radius, height float64
		nr, nz         int
	}{
		{"zero radius", 0, 4, 41, 41},
		{"negative height", 1, -2, 41, 41},
		{"nr too small", 1, 4, 1, 41},
		{"nz too small", 1, 4, 41, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.radius, tc.height, tc.nr, tc.nz)
			require.Error(t, err)
			var cfgErr *model.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestBuildSpacing(t *testing.T) {
	m, err := Build(1.0, 4.0, 41, 81)
	require.NoError(t, err)
	assert.InDelta(t, 0.025, m.DR, 1e-12)
	assert.InDelta(t, 0.05, m.DZ, 1e-12)
	assert.Equal(t, 41*81, m.NodeCount())
	assert.InDelta(t, 1.0, m.R(40), 1e-12)
	assert.InDelta(t, 4.0, m.Z(80), 1e-12)
}

func TestBoundaryClassification(t *testing.T) {
	m, err := Build(1.0, 2.0, 5, 7)
	require.NoError(t, err)

	assert.Equal(t, Interior, m.Boundary(2, 3))
	assert.Equal(t, Axis, m.Boundary(0, 3))
	assert.Equal(t, OuterWall, m.Boundary(4, 3))
	assert.Equal(t, Bottom, m.Boundary(2, 0))
	assert.Equal(t, Top, m.Boundary(2, 6))

	// corners resolve by radial priority
	assert.Equal(t, Axis, m.Boundary(0, 0))
	assert.Equal(t, Axis, m.Boundary(0, 6))
	assert.Equal(t, OuterWall, m.Boundary(4, 0))
	assert.Equal(t, OuterWall, m.Boundary(4, 6))
}

func TestNeighborBounds(t *testing.T) {
	m, err := Build(1.0, 1.0, 3, 3)
	require.NoError(t, err)

	ni, nj, ok := m.Neighbor(1, 1, 1, 0)
	require.True(t, ok)
	assert.Equal(t, 2, ni)
	assert.Equal(t, 1, nj)

	_, _, ok = m.Neighbor(0, 1, -1, 0)
	assert.False(t, ok)
	_, _, ok = m.Neighbor(1, 2, 0, 1)
	assert.False(t, ok)
}

// The control volumes must tile the cylinder exactly.
func TestVolumesSumToCylinder(t *testing.T) {
	m, err := Build(0.8, 2.5, 17, 23)
	require.NoError(t, err)

	var sum float64
	for j := 0; j < m.NZ; j++ {
		for i := 0; i < m.NR; i++ {
			sum += m.Volume(i, j)
		}
	}
	want := math.Pi * 0.8 * 0.8 * 2.5
	assert.InEpsilon(t, want, sum, 1e-9)
}

func TestFaceAreas(t *testing.T) {
	m, err := Build(1.0, 2.0, 11, 11)
	require.NoError(t, err)

	// interior column: lateral area of a cylinder at the face radius
	want := 2 * math.Pi * (m.R(4) + m.DR/2) * m.DZ
	assert.InEpsilon(t, want, m.RadialFaceArea(4, 5), 1e-12)
	// half axial extent at the bottom row
	assert.InEpsilon(t, want/2, m.RadialFaceArea(4, 0), 1e-12)

	// axial faces of one row tile the full cross-section
	var sum float64
	for i := 0; i < m.NR; i++ {
		sum += m.AxialFaceArea(i)
	}
	assert.InEpsilon(t, math.Pi*1.0*1.0, sum, 1e-9)
}

func TestResolvePresets(t *testing.T) {
	nr, nz, err := Resolve(model.MeshSpec{Preset: "coarse"})
	require.NoError(t, err)
	assert.Equal(t, 41, nr)
	assert.Equal(t, 41, nz)

	nr, nz, err = Resolve(model.MeshSpec{NR: 33, NZ: 65})
	require.NoError(t, err)
	assert.Equal(t, 33, nr)
	assert.Equal(t, 65, nz)

	_, _, err = Resolve(model.MeshSpec{Preset: "ultra"})
	assert.Error(t, err)
	_, _, err = Resolve(model.MeshSpec{})
	assert.Error(t, err)
}

func TestContains(t *testing.T) {
	m, err := Build(1.0, 4.0, 5, 5)
	require.NoError(t, err)
	assert.True(t, m.Contains(0, 0))
	assert.True(t, m.Contains(1.0, 4.0))
	assert.False(t, m.Contains(1.01, 2))
	assert.False(t, m.Contains(0.5, -0.1))
}
