// Package model builds design-matrix rows and predictions for each member
// of the Nelson-Siegel family. The fitter needs exactly two primitives per
// model kind: fill a basis row for a tenor (for least squares) and predict
// y(t) from betas and taus (for residuals, guardrails and reports).
//
// The variant set is closed (NS, NSS, NSSC), so this is a switch over
// curve.ModelKind rather than an open interface.
package model

import (
	"nscurve/adapters/fit/basis"
	"nscurve/domain/curve"
)

// FillDesignRow writes the basis row for the given model kind and tenor
// into out. The row starts with the constant (intercept) term. out must
// have length kind.BetaLen() and taus length kind.TauLen(); callers size
// these from the model kind.
func FillDesignRow(kind curve.ModelKind, t float64, taus []float64, out []float64) {
	switch kind {
	case curve.ModelNS:
		out[0] = 1.0
		out[1] = basis.F1(t, taus[0])
		out[2] = basis.F2(t, taus[0])
	case curve.ModelNSS:
		out[0] = 1.0
		out[1] = basis.F1(t, taus[0])
		out[2] = basis.F2(t, taus[0])
		out[3] = basis.F2(t, taus[1])
	case curve.ModelNSSC:
		out[0] = 1.0
		out[1] = basis.F1(t, taus[0])
		out[2] = basis.F2(t, taus[0])
		out[3] = basis.F2(t, taus[1])
		out[4] = basis.F2(t, taus[2])
	}
}

// Predict evaluates y(t) for the given model kind. All curvature terms
// vanish as t -> 0, so y(0) = betas[0] + betas[1].
func Predict(kind curve.ModelKind, t float64, betas, taus []float64) float64 {
	switch kind {
	case curve.ModelNS:
		return betas[0] + betas[1]*basis.F1(t, taus[0]) + betas[2]*basis.F2(t, taus[0])
	case curve.ModelNSS:
		return betas[0] + betas[1]*basis.F1(t, taus[0]) + betas[2]*basis.F2(t, taus[0]) +
			betas[3]*basis.F2(t, taus[1])
	case curve.ModelNSSC:
		return betas[0] + betas[1]*basis.F1(t, taus[0]) + betas[2]*basis.F2(t, taus[0]) +
			betas[3]*basis.F2(t, taus[1]) + betas[4]*basis.F2(t, taus[2])
	default:
		return 0
	}
}

// PredictModel evaluates a fitted CurveModel at tenor t.
func PredictModel(m curve.CurveModel, t float64) float64 {
	return Predict(m.Name, t, m.Betas, m.Taus)
}

// Grid evaluates a fitted model on an evenly spaced tenor grid with n
// points over [tenorMin, tenorMax]. Used by curve exports.
func Grid(m curve.CurveModel, tenorMin, tenorMax float64, n int) (tenors, values []float64) {
	if n < 2 {
		n = 2
	}
	if tenorMax <= tenorMin {
		tenorMin, tenorMax = 0.25, 30.0
	}
	tenors = make([]float64, n)
	values = make([]float64, n)
	for i := 0; i < n; i++ {
		u := float64(i) / float64(n-1)
		t := tenorMin + u*(tenorMax-tenorMin)
		tenors[i] = t
		values[i] = PredictModel(m, t)
	}
	return tenors, values
}
