// Package basis evaluates the Nelson-Siegel basis kernels:
//
//	f1(t, tau) = (1 - exp(-t/tau)) / (t/tau)
//	f2(t, tau) = f1(t, tau) - exp(-t/tau)
//
// For small x = t/tau, computing 1 - exp(-x) by direct subtraction loses
// precision to catastrophic cancellation, so f1 uses -math.Expm1(-x) and
// both functions fall back to a second-order series near zero. Analytic
// limits as t -> 0: f1 -> 1, f2 -> 0.
package basis

import (
	"math"

	"nscurve/internal/errors"
)

// tEps guards against t = 0 in basis evaluation (limits are finite there).
const tEps = 1e-12

// smallX is the threshold below which the series approximation is used.
const smallX = 1e-6

// Validate checks that tenor and tau are finite and positive. The core
// re-validates defensively even though ingestion should have filtered
// bad values already.
func Validate(t, tau float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
		return errors.Newf(errors.CodeDomainInput, "invalid tenor %v (must be finite and > 0)", t)
	}
	if math.IsNaN(tau) || math.IsInf(tau, 0) || tau <= 0 {
		return errors.Newf(errors.CodeDomainInput, "invalid tau %v (must be finite and > 0)", tau)
	}
	return nil
}

// F1 computes f1(t, tau) in a numerically stable way.
func F1(t, tau float64) float64 {
	x := math.Max(t, tEps) / tau

	if math.Abs(x) < smallX {
		// Series: (1 - e^{-x}) / x ~ 1 - x/2 + x^2/6
		return 1.0 - x/2.0 + (x*x)/6.0
	}

	// 1 - exp(-x) computed as -expm1(-x).
	return -math.Expm1(-x) / x
}

// F2 computes f2(t, tau) in a numerically stable way.
func F2(t, tau float64) float64 {
	x := math.Max(t, tEps) / tau

	if math.Abs(x) < smallX {
		// f1(x) ~ 1 - x/2 + x^2/6 and exp(-x) ~ 1 - x + x^2/2,
		// so f2 = f1 - exp(-x) ~ x/2 - x^2/3.
		return x/2.0 - (x*x)/3.0
	}

	return F1(t, tau) - math.Exp(-x)
}
