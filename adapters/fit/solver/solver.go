// Package solver solves the small weighted least-squares problems at the
// heart of the tau grid search:
//
//	minimize sum_i w_i * (y_i - x_i . beta)^2
//
// The model is linear in beta for fixed taus, so this runs once per tau
// candidate. Rows are scaled by sqrt(w_i); the scaled design is rank-checked
// via its singular values on every solve, then solved by QR with the SVD as
// the fallback for systems QR refuses. There is no regularization: a
// rank-deficient design is reported as such and the candidate is skipped by
// the caller.
package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"nscurve/internal/errors"
)

// rankTol is the relative singular-value tolerance for the rank check.
const rankTol = 1e-12

// Solution is the solved coefficient vector and its achieved weighted SSE.
type Solution struct {
	Coeffs []float64
	SSE    float64
}

// SolveWeighted solves the weighted least-squares problem for design matrix
// x (n rows, k columns), target y and weights w. It requires n >= k and
// non-negative finite weights. Scaling all weights by a positive constant c
// leaves Coeffs unchanged and multiplies SSE by c.
func SolveWeighted(x *mat.Dense, y, w []float64) (Solution, error) {
	n, k := x.Dims()
	if len(y) != n || len(w) != n {
		return Solution{}, errors.Newf(errors.CodeInvalidInput,
			"dimension mismatch: %d rows, %d targets, %d weights", n, len(y), len(w))
	}
	if n < k {
		return Solution{}, errors.Newf(errors.CodeInvalidInput,
			"underdetermined system: %d rows < %d columns", n, k)
	}

	anyWeight := false
	for i, wi := range w {
		if math.IsNaN(wi) || math.IsInf(wi, 0) || wi < 0 {
			return Solution{}, errors.Newf(errors.CodeInvalidInput, "invalid weight %v at row %d", wi, i)
		}
		if wi > 0 {
			anyWeight = true
		}
	}
	if !anyWeight {
		return Solution{}, errors.InvalidInput("all observation weights are zero")
	}

	// Scale every row of the design and target by sqrt(w_i).
	xw := mat.NewDense(n, k, nil)
	yw := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(w[i])
		for j := 0; j < k; j++ {
			xw.Set(i, j, x.At(i, j)*sw)
		}
		yw.SetVec(i, y[i]*sw)
	}

	// Rank loss must be checked explicitly: gonum's QR solve can return a
	// finite answer with a nil error on an exactly deficient but consistent
	// system.
	var svd mat.SVD
	if !svd.Factorize(xw, mat.SVDThin) {
		return Solution{}, errors.NumericalFailure("SVD factorization failed")
	}
	values := svd.Values(nil)
	rank := 0
	for _, s := range values {
		if s > rankTol*values[0] {
			rank++
		}
	}
	if rank < k {
		return Solution{}, errors.RankDeficient("design matrix does not have full column rank")
	}

	beta := new(mat.VecDense)
	if err := beta.SolveVec(xw, yw); err != nil {
		// QR refused an ill-conditioned system; the factorization above
		// doubles as the fallback solver.
		svd.SolveVecTo(beta, yw, rank)
	}

	coeffs := make([]float64, k)
	for j := 0; j < k; j++ {
		v := beta.AtVec(j)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Solution{}, errors.NumericalFailure("least-squares solution contains non-finite coefficients")
		}
		coeffs[j] = v
	}

	// Weighted SSE of the solved system.
	sse := 0.0
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < k; j++ {
			pred += x.At(i, j) * coeffs[j]
		}
		r := y[i] - pred
		sse += w[i] * r * r
	}
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return Solution{}, errors.NumericalFailure("non-finite residual sum")
	}

	return Solution{Coeffs: coeffs, SSE: sse}, nil
}
