// Package taugrid generates the deterministic tau candidate grids searched
// by the fitter.
//
// Why grid search instead of a nonlinear optimizer?
//   - It avoids the local-minima issues common when optimizing decay
//     constants by gradient descent.
//   - It is fully deterministic given the same configuration, which the
//     downstream tie-breaking relies on.
//   - With tiny parameter counts a modest grid is fast enough.
//
// Tuples are emitted in lexicographic order over the log-spaced axis
// indices, and only strictly increasing tuples (tau1 < tau2 < tau3) are
// retained.
package taugrid

import (
	"math"

	"nscurve/domain/curve"
	"nscurve/internal/errors"
)

// LogSpace returns steps log-spaced points between min and max (inclusive).
func LogSpace(min, max float64, steps int) ([]float64, error) {
	if math.IsNaN(min) || math.IsInf(min, 0) || math.IsNaN(max) || math.IsInf(max, 0) ||
		min <= 0 || max <= 0 || max <= min {
		return nil, errors.Newf(errors.CodeConfigInvalid,
			"invalid tau range: min=%v, max=%v (must be finite, >0, and max>min)", min, max)
	}
	if steps < 2 {
		return nil, errors.ConfigInvalid("tau steps must be >= 2")
	}

	lnMin := math.Log(min)
	step := (math.Log(max) - lnMin) / float64(steps-1)

	out := make([]float64, steps)
	for i := range out {
		out[i] = math.Exp(lnMin + step*float64(i))
	}
	return out, nil
}

// Grid returns the ordered tau tuples for the given model kind. Each tuple
// has kind.TauLen() strictly increasing components.
func Grid(kind curve.ModelKind, min, max float64, steps int) ([][]float64, error) {
	values, err := LogSpace(min, max, steps)
	if err != nil {
		return nil, err
	}

	var out [][]float64
	switch kind.TauLen() {
	case 1:
		for _, v := range values {
			out = append(out, []float64{v})
		}
	case 2:
		for i := 0; i < len(values); i++ {
			for j := i + 1; j < len(values); j++ {
				out = append(out, []float64{values[i], values[j]})
			}
		}
	case 3:
		for i := 0; i < len(values); i++ {
			for j := i + 1; j < len(values); j++ {
				for k := j + 1; k < len(values); k++ {
					out = append(out, []float64{values[i], values[j], values[k]})
				}
			}
		}
	default:
		return nil, errors.Newf(errors.CodeConfigInvalid, "unsupported model kind %q", kind)
	}

	// The ordering filter cannot empty the grid for steps >= dimension, but
	// the fitter depends on a non-empty grid, so check anyway.
	if len(out) == 0 {
		return nil, errors.NoValidCandidate(kind.DisplayName())
	}
	return out, nil
}
