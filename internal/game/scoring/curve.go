// Package scoring holds the stateless utility evaluators: response curves,
// role weight profiles, and the attack, buff, heal, debuff, target, and ally
// scores computed against a situation.Situation.
//
// Every evaluator is a pure function of its arguments.
package scoring

import (
	"fmt"
	"math"
)

// CurveType names a response curve shape.
type CurveType string

const (
	CurveLinear          CurveType = "linear"
	CurveQuadratic       CurveType = "quadratic"
	CurveLogistic        CurveType = "logistic"
	CurveInverseLogistic CurveType = "inverse_logistic"
	CurvePolynomial      CurveType = "polynomial"
	CurveExponential     CurveType = "exponential"
)

// Curve maps a normalised input in [0, 1] to an output in [Min, Max].
type Curve struct {
	Type CurveType `yaml:"type"`
	// Steepness is k for the logistic family and the growth rate for exponential.
	Steepness float64 `yaml:"steepness"`
	// Midpoint is the logistic inflection point.
	Midpoint float64 `yaml:"midpoint"`
	// Exponent is the polynomial power.
	Exponent float64 `yaml:"exponent"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
}

// Linear returns the identity curve over [0, 1].
func Linear() Curve { return Curve{Type: CurveLinear, Max: 1} }

// Quadratic returns t² over [0, 1].
func Quadratic() Curve { return Curve{Type: CurveQuadratic, Max: 1} }

// Logistic returns 1/(1+e^(-k(t-m))) over [0, 1].
func Logistic(k, m float64) Curve {
	return Curve{Type: CurveLogistic, Steepness: k, Midpoint: m, Max: 1}
}

// InverseLogistic returns 1 - Logistic(k, m).
func InverseLogistic(k, m float64) Curve {
	return Curve{Type: CurveInverseLogistic, Steepness: k, Midpoint: m, Max: 1}
}

// Polynomial returns t^exp over [0, 1].
func Polynomial(exp float64) Curve { return Curve{Type: CurvePolynomial, Exponent: exp, Max: 1} }

// Exponential returns (e^(kt)-1)/(e^k-1) over [0, 1].
func Exponential(k float64) Curve { return Curve{Type: CurveExponential, Steepness: k, Max: 1} }

// Scale returns c with its output range set to [lo, hi].
func (c Curve) Scale(lo, hi float64) Curve {
	c.Min, c.Max = lo, hi
	return c
}

// Evaluate returns the curve's output at t. t is clamped to [0, 1].
func (c Curve) Evaluate(t float64) float64 {
	t = clamp01(t)
	var y float64
	switch c.Type {
	case CurveQuadratic:
		y = t * t
	case CurveLogistic:
		y = logistic(c.Steepness, c.Midpoint, t)
	case CurveInverseLogistic:
		y = 1 - logistic(c.Steepness, c.Midpoint, t)
	case CurvePolynomial:
		y = math.Pow(t, c.Exponent)
	case CurveExponential:
		if c.Steepness == 0 {
			y = t
		} else {
			y = math.Expm1(c.Steepness*t) / math.Expm1(c.Steepness)
		}
	default:
		y = t
	}
	return c.Min + (c.Max-c.Min)*y
}

// Validate reports a curve that cannot be evaluated meaningfully.
func (c Curve) Validate() error {
	switch c.Type {
	case CurveLinear, CurveQuadratic, CurveExponential:
	case CurveLogistic, CurveInverseLogistic:
		if c.Steepness <= 0 {
			return fmt.Errorf("scoring.Curve %s: steepness must be > 0, got %v", c.Type, c.Steepness)
		}
	case CurvePolynomial:
		if c.Exponent <= 0 {
			return fmt.Errorf("scoring.Curve polynomial: exponent must be > 0, got %v", c.Exponent)
		}
	default:
		return fmt.Errorf("scoring.Curve: unknown type %q", c.Type)
	}
	return nil
}

func logistic(k, m, t float64) float64 {
	return 1 / (1 + math.Exp(-k*(t-m)))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
