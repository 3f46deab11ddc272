package material

import (
	"math"

	"github.com/Knetic/govaluate"

	"furnace/model"
)

// Sandboxed formula properties. A formula is an arithmetic expression of T
// (and optionally r, z, t for source-term formulas) plus a fixed whitelist
// of math functions and physical constants. Parsing happens once at
// registration; unknown identifiers are rejected there, non-finite results
// at evaluation time. There is no general-purpose eval anywhere.

// FormulaVars carries the variables a formula may reference.
type FormulaVars struct {
	T float64
	R float64
	Z float64
	Tm float64 // simulated time, exposed as "t"
}

var formulaFunctions = map[string]govaluate.ExpressionFunction{
	"exp":   unary(math.Exp),
	"log":   unary(math.Log),
	"log10": unary(math.Log10),
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"tanh":  unary(math.Tanh),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"pow":   binary(math.Pow),
	"min":   binary(math.Min),
	"max":   binary(math.Max),
}

var formulaConstants = map[string]float64{
	"pi":       math.Pi,
	"e":        math.E,
	"sigma_sb": 5.67e-8, // Stefan-Boltzmann, W/(m^2 K^4)
}

func unary(f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, model.ErrInvalidFormula
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, model.ErrInvalidFormula
		}
		return f(v), nil
	}
}

func binary(f func(a, b float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, model.ErrInvalidFormula
		}
		a, aok := args[0].(float64)
		b, bok := args[1].(float64)
		if !aok || !bok {
			return nil, model.ErrInvalidFormula
		}
		return f(a, b), nil
	}
}

// Formula is a parsed property expression.
type Formula struct {
	src  string
	expr *govaluate.EvaluableExpression
}

// ParseFormula compiles src and rejects identifiers outside the variable
// and constant whitelist.
func ParseFormula(src string) (*Formula, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(src, formulaFunctions)
	if err != nil {
		return nil, &model.ConfigError{
			Field:   "material.formula",
			Reason:  "parse error in " + src + ": " + err.Error(),
			Wrapped: model.ErrInvalidFormula,
		}
	}
	for _, v := range expr.Vars() {
		if !allowedIdentifier(v) {
			return nil, &model.ConfigError{
				Field:   "material.formula",
				Reason:  "identifier " + v + " is not allowed",
				Wrapped: model.ErrInvalidFormula,
			}
		}
	}
	return &Formula{src: src, expr: expr}, nil
}

func allowedIdentifier(name string) bool {
	switch name {
	case "T", "r", "z", "t":
		return true
	}
	_, ok := formulaConstants[name]
	return ok
}

// Source returns the original expression text.
func (f *Formula) Source() string { return f.src }

func (f *Formula) Eval(T float64) (float64, error) {
	return f.EvalVars(FormulaVars{T: T})
}

// EvalVars evaluates with the full variable set. Non-finite results are
// propagated as errors, never clamped.
func (f *Formula) EvalVars(vars FormulaVars) (float64, error) {
	params := map[string]interface{}{
		"T": vars.T,
		"r": vars.R,
		"z": vars.Z,
		"t": vars.Tm,
	}
	for name, v := range formulaConstants {
		params[name] = v
	}
	out, err := f.expr.Evaluate(params)
	if err != nil {
		return 0, err
	}
	v, ok := out.(float64)
	if !ok {
		return 0, model.ErrInvalidFormula
	}
	if !isFinite(v) {
		return 0, model.ErrNonFinite
	}
	return v, nil
}
