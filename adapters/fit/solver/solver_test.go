package solver

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"nscurve/internal/errors"
)

func TestSolveSimpleSystem(t *testing.T) {
	// Fit y = 2 + 3x on x = [0, 1, 2].
	x := mat.NewDense(3, 2, []float64{
		1, 0,
		1, 1,
		1, 2,
	})
	y := []float64{2, 5, 8}
	w := []float64{1, 1, 1}

	sol, err := SolveWeighted(x, y, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(sol.Coeffs[0]-2.0) > 1e-10 || math.Abs(sol.Coeffs[1]-3.0) > 1e-10 {
		t.Errorf("expected [2 3], got %v", sol.Coeffs)
	}
	if sol.SSE > 1e-18 {
		t.Errorf("expected ~0 SSE for exact system, got %g", sol.SSE)
	}
}

func TestWeightRescalingInvariance(t *testing.T) {
	x := mat.NewDense(5, 2, []float64{
		1, 0.5,
		1, 1.0,
		1, 2.0,
		1, 4.0,
		1, 8.0,
	})
	y := []float64{1.2, 1.9, 3.1, 5.2, 8.8}
	w := []float64{1, 2, 0.5, 1, 3}

	base, err := SolveWeighted(x, y, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const c = 7.25
	scaled := make([]float64, len(w))
	for i := range w {
		scaled[i] = w[i] * c
	}
	got, err := SolveWeighted(x, y, scaled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for j := range base.Coeffs {
		if math.Abs(got.Coeffs[j]-base.Coeffs[j]) > 1e-9 {
			t.Errorf("coeff %d changed under weight rescaling: %g vs %g", j, got.Coeffs[j], base.Coeffs[j])
		}
	}
	if math.Abs(got.SSE-c*base.SSE) > 1e-9*math.Max(1, base.SSE) {
		t.Errorf("SSE should scale by %g: base %g, got %g", c, base.SSE, got.SSE)
	}
}

func TestRankDeficientDesign(t *testing.T) {
	// Second column is an exact copy of the first. The target is consistent
	// with the column space, so a QR solve alone would produce finite
	// coefficients without complaint; the rank check must still reject it.
	x := mat.NewDense(4, 2, []float64{
		1, 1,
		2, 2,
		3, 3,
		4, 4,
	})
	y := []float64{1, 2, 3, 4}
	w := []float64{1, 1, 1, 1}

	_, err := SolveWeighted(x, y, w)
	if err == nil {
		t.Fatal("expected error for rank-deficient design")
	}
	if code := errors.GetCode(err); code != errors.CodeRankDeficient {
		t.Errorf("expected RANK_DEFICIENT code, got %s", code)
	}
}

func TestRankDeficientScaledColumn(t *testing.T) {
	// Collinearity hidden behind a scale factor must be caught too.
	x := mat.NewDense(5, 3, []float64{
		1, 0.5, 1.5,
		1, 1.0, 3.0,
		1, 2.0, 6.0,
		1, 4.0, 12.0,
		1, 8.0, 24.0,
	})
	y := []float64{1, 2, 4, 8, 16}
	w := []float64{1, 2, 1, 0.5, 1}

	_, err := SolveWeighted(x, y, w)
	if !errors.HasCode(err, errors.CodeRankDeficient) {
		t.Fatalf("expected RANK_DEFICIENT code, got %v", err)
	}
}

func TestRejectsBadShapesAndWeights(t *testing.T) {
	x := mat.NewDense(2, 3, nil)
	if _, err := SolveWeighted(x, []float64{1, 2}, []float64{1, 1}); err == nil {
		t.Error("expected error for n < k")
	}

	x = mat.NewDense(3, 2, []float64{1, 0, 1, 1, 1, 2})
	if _, err := SolveWeighted(x, []float64{1, 2}, []float64{1, 1, 1}); err == nil {
		t.Error("expected error for target length mismatch")
	}
	if _, err := SolveWeighted(x, []float64{1, 2, 3}, []float64{1, -1, 1}); err == nil {
		t.Error("expected error for negative weight")
	}
	if _, err := SolveWeighted(x, []float64{1, 2, 3}, []float64{0, 0, 0}); err == nil {
		t.Error("expected error for all-zero weights")
	}
}

func TestZeroWeightRowsAreIgnored(t *testing.T) {
	// A wildly wrong observation with zero weight must not move the fit.
	x := mat.NewDense(4, 2, []float64{
		1, 0,
		1, 1,
		1, 2,
		1, 3,
	})
	y := []float64{2, 5, 8, 1e6}
	w := []float64{1, 1, 1, 0}

	sol, err := SolveWeighted(x, y, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(sol.Coeffs[0]-2.0) > 1e-8 || math.Abs(sol.Coeffs[1]-3.0) > 1e-8 {
		t.Errorf("zero-weight row influenced the fit: %v", sol.Coeffs)
	}
}
