// Package engine fits a single Nelson-Siegel family model over a tau grid.
//
// Given tenors t_i, observed values y_i, weights w_i and a list of tau
// candidate tuples, each tuple is evaluated independently: build the design
// matrix, solve a weighted least-squares problem for the betas, apply the
// shape guardrails, and keep the candidate with the strictly smallest
// weighted SSE (ties keep the earlier-generated tuple). Candidate
// evaluation runs on a bounded worker pool; results land in per-candidate
// slots so the minimum reduce is identical regardless of worker count.
//
// Robust (Huber) fitting wraps the grid search in a small fixed number of
// reweight passes: fit, compute residuals, downweight large residuals by a
// MAD-scaled Huber factor, refit.
package engine

import (
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/mat"

	"nscurve/adapters/fit/basis"
	"nscurve/adapters/fit/model"
	"nscurve/adapters/fit/solver"
	"nscurve/domain/curve"
	"nscurve/internal/errors"
)

// monotoneSamples is the number of points sampled over the short-end window
// by the monotonicity guardrail.
const monotoneSamples = 25

// monotoneEps tolerates tiny numerical noise in monotone differences.
const monotoneEps = 1e-9

// madConsistency converts MAD to a normal-consistent scale estimate.
const madConsistency = 0.6745

// minRobustFactor floors the Huber downweighting so no observation is
// silenced entirely.
const minRobustFactor = 1e-3

// Options controls how a single model kind is calibrated.
type Options struct {
	// FrontEndValue, when non-nil, enforces y(0) = *FrontEndValue exactly
	// via the identity y(0) = beta0 + beta1 (true for the whole family
	// because all curvature terms vanish at t -> 0). beta1 is eliminated
	// from the regression and reconstructed afterwards as y(0) - beta0,
	// which keeps the fit deterministic and avoids synthetic observations.
	FrontEndValue *float64

	// Monotone and MonotoneWindow configure the short-end shape guardrail.
	Monotone       curve.ShortEndMonotone
	MonotoneWindow float64

	// Robust fitting (outlier downweighting).
	Robust      curve.RobustKind
	RobustIters int
	RobustK     float64

	// Workers bounds the candidate worker pool; <= 0 means GOMAXPROCS.
	Workers int
}

// ModelFit is the best fit found for a single model kind.
type ModelFit struct {
	Kind  curve.ModelKind
	Betas []float64
	Taus  []float64
	SSE   float64
	RMSE  float64

	// MonotoneApplied is false when the guardrail emptied the candidate set
	// and the unconstrained fallback was used instead.
	MonotoneApplied bool

	// RobustItersRun is the number of IRLS reweight passes performed.
	RobustItersRun int
}

type candidate struct {
	taus  []float64
	betas []float64
	sse   float64
	ok    bool
}

type monotoneDir int

const (
	dirNone monotoneDir = iota
	dirIncreasing
	dirDecreasing
)

// FitModel fits one model kind over the tau grid and returns the best
// candidate after robust reweighting.
func FitModel(kind curve.ModelKind, obs []curve.Observation, tauGrid [][]float64, opts Options) (ModelFit, error) {
	if len(obs) == 0 {
		return ModelFit{}, errors.InvalidInput("no observations to fit")
	}
	if len(tauGrid) == 0 {
		return ModelFit{}, errors.NoValidCandidate(kind.DisplayName())
	}

	tenors := make([]float64, len(obs))
	y := make([]float64, len(obs))
	wBase := make([]float64, len(obs))
	anyWeight := false
	for i, p := range obs {
		if err := basis.Validate(p.Tenor, 1.0); err != nil {
			return ModelFit{}, err
		}
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return ModelFit{}, errors.Newf(errors.CodeDomainInput, "non-finite value for observation %q", p.ID)
		}
		if math.IsNaN(p.Weight) || math.IsInf(p.Weight, 0) || p.Weight < 0 {
			return ModelFit{}, errors.Newf(errors.CodeDomainInput, "invalid weight for observation %q", p.ID)
		}
		tenors[i] = p.Tenor
		y[i] = p.Value
		wBase[i] = p.Weight
		if p.Weight > 0 {
			anyWeight = true
		}
	}
	if !anyWeight {
		return ModelFit{}, errors.InvalidInput("all observation weights are zero")
	}

	for _, taus := range tauGrid {
		for _, tau := range taus {
			if err := basis.Validate(1.0, tau); err != nil {
				return ModelFit{}, err
			}
		}
	}

	dir := resolveMonotoneDir(opts.Monotone, tenors, y, wBase, opts.MonotoneWindow)
	monotoneApplied := dir != dirNone

	// Robust fitting is a small number of deterministic outer passes:
	// start from base weights, grid-search, compute residuals, Huber
	// reweight, repeat. The pass count is fixed by configuration.
	nRefits := 1
	if opts.Robust == curve.RobustHuber && opts.RobustIters > 0 {
		nRefits = opts.RobustIters + 1
	}

	wWork := append([]float64(nil), wBase...)
	var best candidate
	for pass := 0; pass < nRefits; pass++ {
		c, err := fitOnce(kind, tauGrid, tenors, y, wWork, opts, dir)
		if err != nil {
			// The monotonicity guardrail is a guardrail, not a reason to
			// fail the whole fit. If it empties the candidate set, rerun
			// unconstrained and record that it was not applied.
			if dir == dirNone {
				return ModelFit{}, err
			}
			dir = dirNone
			monotoneApplied = false
			c, err = fitOnce(kind, tauGrid, tenors, y, wWork, opts, dirNone)
			if err != nil {
				return ModelFit{}, err
			}
		}
		best = c

		if pass == nRefits-1 {
			break
		}
		residuals := computeResiduals(kind, tenors, y, c.betas, c.taus)
		wWork = huberReweight(wBase, residuals, opts.RobustK)
	}

	rmse := math.Sqrt(best.sse / float64(len(obs)))
	return ModelFit{
		Kind:            kind,
		Betas:           best.betas,
		Taus:            best.taus,
		SSE:             best.sse,
		RMSE:            rmse,
		MonotoneApplied: monotoneApplied,
		RobustItersRun:  nRefits - 1,
	}, nil
}

// fitOnce runs one full grid search pass with fixed weights.
func fitOnce(kind curve.ModelKind, tauGrid [][]float64, tenors, y, w []float64, opts Options, dir monotoneDir) (candidate, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Every candidate writes only its own slot, so the later minimum scan
	// sees the same values no matter how the workers were scheduled.
	results := make([]candidate, len(tauGrid))

	sem := semaphore.NewWeighted(int64(workers))
	ctx := context.Background()
	var wg sync.WaitGroup
	for idx := range tauGrid {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx] = evaluateCandidate(kind, tauGrid[idx], tenors, y, w, opts, dir)
		}(idx)
	}
	wg.Wait()

	// Deterministic selection: strict less-than keeps the earliest
	// generated candidate on ties.
	best := candidate{}
	for _, c := range results {
		if !c.ok {
			continue
		}
		if !best.ok || c.sse < best.sse {
			best = c
		}
	}
	if !best.ok {
		return candidate{}, errors.NoValidCandidate(kind.DisplayName())
	}
	return best, nil
}

// evaluateCandidate solves the weighted least-squares problem for one tau
// tuple and applies the shape guardrail. Per-candidate failures (rank
// deficiency, non-finite results, guardrail rejection) are absorbed by
// returning ok=false; the search simply moves on.
func evaluateCandidate(kind curve.ModelKind, taus []float64, tenors, y, w []float64, opts Options, dir monotoneDir) candidate {
	n := len(tenors)
	p := kind.BetaLen()

	// With y(0) fixed, beta1 is eliminated and only p-1 betas are fitted.
	pFit := p
	if opts.FrontEndValue != nil {
		pFit = p - 1
	}
	if n < pFit {
		return candidate{}
	}

	x := mat.NewDense(n, pFit, nil)
	target := make([]float64, n)
	row := make([]float64, p)

	for i := 0; i < n; i++ {
		model.FillDesignRow(kind, tenors[i], taus, row)

		if opts.FrontEndValue != nil {
			// With y(0) = y0 and beta1 = y0 - beta0:
			//   y(t) = y0*f1 + beta0*(1 - f1) + beta2*f2 + ...
			// Move the known term to the left-hand side:
			//   y - y0*f1 = beta0*(1 - f1) + beta2*f2 + ...
			y0 := *opts.FrontEndValue
			g1 := row[1]
			x.Set(i, 0, 1.0-g1)
			for j := 2; j < p; j++ {
				x.Set(i, j-1, row[j])
			}
			target[i] = y[i] - y0*g1
		} else {
			for j := 0; j < p; j++ {
				x.Set(i, j, row[j])
			}
			target[i] = y[i]
		}
	}

	sol, err := solver.SolveWeighted(x, target, w)
	if err != nil {
		return candidate{}
	}

	// Reconstruct the full beta vector expected by Predict.
	var betas []float64
	if opts.FrontEndValue != nil {
		betas = make([]float64, 0, p)
		beta0 := sol.Coeffs[0]
		betas = append(betas, beta0, *opts.FrontEndValue-beta0)
		betas = append(betas, sol.Coeffs[1:]...)
	} else {
		betas = sol.Coeffs
	}

	if dir != dirNone && violatesMonotone(kind, betas, taus, dir, opts.MonotoneWindow) {
		return candidate{}
	}

	// Weighted SSE from the unconstrained model prediction over full betas.
	sse := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - model.Predict(kind, tenors[i], betas, taus)
		sse += w[i] * r * r
	}
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return candidate{}
	}

	return candidate{taus: taus, betas: betas, sse: sse, ok: true}
}

func resolveMonotoneDir(mode curve.ShortEndMonotone, tenors, y, w []float64, window float64) monotoneDir {
	switch mode {
	case curve.MonotoneIncreasing:
		return dirIncreasing
	case curve.MonotoneDecreasing:
		return dirDecreasing
	case curve.MonotoneAuto:
		return inferShortEndDir(tenors, y, w, window)
	default:
		return dirNone
	}
}

// inferShortEndDir estimates the slope direction over a small front bucket:
// tenors <= window when at least three such points exist, otherwise the
// five shortest tenors. Returns dirNone when the bucket is too sparse.
func inferShortEndDir(tenors, y, w []float64, window float64) monotoneDir {
	var idx []int
	for i, t := range tenors {
		if t <= window {
			idx = append(idx, i)
		}
	}
	if len(idx) < 3 {
		order := make([]int, len(tenors))
		for i := range order {
			order[i] = i
		}
		// Shortest-first selection without disturbing caller slices.
		for i := 0; i < len(order); i++ {
			for j := i + 1; j < len(order); j++ {
				if tenors[order[j]] < tenors[order[i]] {
					order[i], order[j] = order[j], order[i]
				}
			}
		}
		take := 5
		if take > len(order) {
			take = len(order)
		}
		idx = order[:take]
	}
	if len(idx) < 3 {
		return dirNone
	}

	// Weighted least-squares slope sign for y ~ a + b*t.
	var sw, st, sy float64
	for _, i := range idx {
		sw += w[i]
		st += w[i] * tenors[i]
		sy += w[i] * y[i]
	}
	if sw <= 0 {
		return dirNone
	}
	tbar := st / sw
	ybar := sy / sw

	var cov, variance float64
	for _, i := range idx {
		dt := tenors[i] - tbar
		cov += w[i] * dt * (y[i] - ybar)
		variance += w[i] * dt * dt
	}
	if variance <= 1e-18 || math.IsNaN(cov) || math.IsInf(cov, 0) {
		return dirNone
	}
	if cov/variance >= 0 {
		return dirIncreasing
	}
	return dirDecreasing
}

// violatesMonotone samples the fitted curve over [0, window] and reports
// whether the sampled sequence breaks the required direction. Non-finite
// samples count as violations.
func violatesMonotone(kind curve.ModelKind, betas, taus []float64, dir monotoneDir, window float64) bool {
	if window <= 0 {
		return false
	}

	prev := model.Predict(kind, 0, betas, taus)
	if math.IsNaN(prev) || math.IsInf(prev, 0) {
		return true
	}
	for i := 1; i < monotoneSamples; i++ {
		t := window * float64(i) / float64(monotoneSamples-1)
		v := model.Predict(kind, t, betas, taus)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
		dy := v - prev
		if dir == dirIncreasing && dy < -monotoneEps {
			return true
		}
		if dir == dirDecreasing && dy > monotoneEps {
			return true
		}
		prev = v
	}
	return false
}

func computeResiduals(kind curve.ModelKind, tenors, y, betas, taus []float64) []float64 {
	out := make([]float64, len(tenors))
	for i := range tenors {
		out[i] = y[i] - model.Predict(kind, tenors[i], betas, taus)
	}
	return out
}

// huberReweight maps (base weights, residuals) to the next iteration's
// weights. The scale is the median absolute residual divided by 0.6745
// (normal-consistent); observations beyond k*scale get the factor
// (k*scale)/|r|, everything else keeps factor 1. Weights never drop below
// minRobustFactor of their base value. Pure function of its inputs, so a
// single reweight step is independently testable.
func huberReweight(wBase, residuals []float64, k float64) []float64 {
	abs := make([]float64, 0, len(residuals))
	for _, r := range residuals {
		ar := math.Abs(r)
		if !math.IsNaN(ar) && !math.IsInf(ar, 0) {
			abs = append(abs, ar)
		}
	}

	mad, err := stats.Median(abs)
	if err != nil {
		mad = 0
	}
	scale := math.Max(mad/madConsistency, 1e-12)
	cutoff := math.Max(k, 1e-6) * scale

	out := make([]float64, len(wBase))
	for i, w0 := range wBase {
		ar := math.Abs(residuals[i])
		factor := 1.0
		if ar > cutoff && !math.IsNaN(ar) && !math.IsInf(ar, 0) {
			factor = cutoff / ar
		}
		out[i] = math.Max(w0*factor, w0*minRobustFactor)
	}
	return out
}
