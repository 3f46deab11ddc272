package material

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furnace/model"
)

func TestFormulaEval(t *testing.T) {
	f, err := ParseFormula("9.2 + 0.0175*T")
	require.NoError(t, err)

	v, err := f.Eval(500)
	require.NoError(t, err)
	assert.InDelta(t, 17.95, v, 1e-9)
}

func TestFormulaWhitelistedFunctions(t *testing.T) {
	f, err := ParseFormula("max(100, 50*exp(-T/1000)) + sqrt(T)")
	require.NoError(t, err)

	v, err := f.Eval(400)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, v, 1e-9)
}

func TestFormulaConstants(t *testing.T) {
	f, err := ParseFormula("2*pi + sigma_sb*0")
	require.NoError(t, err)
	v, err := f.Eval(0)
	require.NoError(t, err)
	assert.InDelta(t, 6.283185307, v, 1e-9)
}

func TestFormulaSpatialVariables(t *testing.T) {
	f, err := ParseFormula("T + 10*r + 100*z + t")
	require.NoError(t, err)
	v, err := f.EvalVars(FormulaVars{T: 300, R: 0.5, Z: 1.0, Tm: 2})
	require.NoError(t, err)
	assert.InDelta(t, 407.0, v, 1e-12)
}

func TestFormulaRejectsUnknownIdentifier(t *testing.T) {
	_, err := ParseFormula("T + pressure")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidFormula)
}

func TestFormulaRejectsBadSyntax(t *testing.T) {
	_, err := ParseFormula("T + * 2")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidFormula)
}

func TestFormulaPropagatesNonFinite(t *testing.T) {
	f, err := ParseFormula("log(T - 1000)")
	require.NoError(t, err)

	// log of a negative argument is NaN: propagated, never clamped
	_, err = f.Eval(500)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNonFinite)

	f, err = ParseFormula("1 / (T - 500)")
	require.NoError(t, err)
	_, err = f.Eval(500)
	assert.Error(t, err)
}
