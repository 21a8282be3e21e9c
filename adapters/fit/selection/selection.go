// Package selection fits every requested model kind and picks the best one
// by BIC with guardrails:
//
//  1. Exclude underdetermined models (n < k_eff + 5).
//  2. Take the minimum BIC among the survivors.
//  3. Walk models from simplest to most complex and replace the winner
//     with the first simpler model whose BIC is within 2.0 of the minimum.
//
// BIC = n*ln(SSE/n) + k_eff*ln(n), where k_eff accounts for the parameter
// removed by front-end conditioning.
package selection

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"nscurve/adapters/fit/engine"
	"nscurve/adapters/fit/taugrid"
	"nscurve/domain/curve"
	"nscurve/internal/errors"
)

// minNBuffer is the minimum number of extra observations required beyond
// the effective parameter count.
const minNBuffer = 5

// bicSimplicityMargin is the delta-BIC within which a simpler model is
// preferred over the raw minimum.
const bicSimplicityMargin = 2.0

// SkippedModel records a model excluded by the guardrails, for diagnostics.
type SkippedModel struct {
	Kind   curve.ModelKind `json:"kind"`
	Reason string          `json:"reason"`
}

// Selection is the output of fitting plus model choice.
type Selection struct {
	Best curve.FitResult `json:"best"`
	// Fits holds results for every model that survived the guardrails.
	Fits    []curve.FitResult `json:"fits"`
	Skipped []SkippedModel    `json:"skipped,omitempty"`
	// FrontEndValue is the fixed y(0) actually used, if any.
	FrontEndValue *float64 `json:"front_end_value,omitempty"`
}

// FitAndSelect runs the full pipeline for every model kind the config
// enables and selects the winner.
func FitAndSelect(obs []curve.Observation, cfg curve.FitConfig) (*Selection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "invalid fit configuration")
	}
	n := len(obs)
	if n == 0 {
		return nil, errors.InvalidInput("no observations to fit")
	}

	frontEnd, err := resolveFrontEndValue(obs, cfg)
	if err != nil {
		return nil, err
	}

	var fits []curve.FitResult
	var skipped []SkippedModel

	for _, kind := range cfg.ModelSpec.Kinds() {
		kEff := effectiveParamCount(kind, frontEnd != nil)
		if n < kEff+minNBuffer {
			skipped = append(skipped, SkippedModel{
				Kind:   kind,
				Reason: fmt.Sprintf("underdetermined: n=%d < k+%d=%d", n, minNBuffer, kEff+minNBuffer),
			})
			continue
		}

		grid, err := taugrid.Grid(kind, cfg.TauMin, cfg.TauMax, tauSteps(kind, cfg))
		if err != nil {
			if errors.HasCode(err, errors.CodeNoValidCandidate) {
				skipped = append(skipped, SkippedModel{Kind: kind, Reason: err.Error()})
				continue
			}
			return nil, err
		}

		fit, err := engine.FitModel(kind, obs, grid, engine.Options{
			FrontEndValue:  frontEnd,
			Monotone:       cfg.ShortEndMonotone,
			MonotoneWindow: cfg.ShortEndWindow,
			Robust:         cfg.Robust,
			RobustIters:    cfg.RobustIters,
			RobustK:        cfg.RobustK,
			Workers:        cfg.Workers,
		})
		if err != nil {
			// A model whose grid yields no admissible candidate is simply
			// excluded; anything else aborts the run.
			if errors.HasCode(err, errors.CodeNoValidCandidate) {
				skipped = append(skipped, SkippedModel{Kind: kind, Reason: err.Error()})
				continue
			}
			return nil, err
		}
		fits = append(fits, toFitResult(fit, n, kEff, cfg))
	}

	if len(fits) == 0 {
		return nil, errors.NoEligibleModel("insufficient data to fit any model after guardrails")
	}

	var best curve.FitResult
	if cfg.ModelSpec.Single() {
		best = fits[0]
	} else {
		best = selectByBIC(fits)
	}

	return &Selection{
		Best:          best,
		Fits:          fits,
		Skipped:       skipped,
		FrontEndValue: frontEnd,
	}, nil
}

func tauSteps(kind curve.ModelKind, cfg curve.FitConfig) int {
	switch kind {
	case curve.ModelNSS:
		return cfg.TauStepsNSS
	case curve.ModelNSSC:
		return cfg.TauStepsNSSC
	default:
		return cfg.TauStepsNS
	}
}

// effectiveParamCount is the information-criterion parameter count. Fixing
// y(0) = beta0 + beta1 removes one free beta.
func effectiveParamCount(kind curve.ModelKind, frontEndFixed bool) int {
	k := kind.ParamCount()
	if frontEndFixed {
		k--
	}
	return k
}

func resolveFrontEndValue(obs []curve.Observation, cfg curve.FitConfig) (*float64, error) {
	switch cfg.FrontEndMode {
	case curve.FrontEndZero:
		zero := 0.0
		return &zero, nil
	case curve.FrontEndFixed:
		if math.IsNaN(cfg.FrontEndValue) || math.IsInf(cfg.FrontEndValue, 0) {
			return nil, errors.ConfigInvalid("front_end_mode=fixed requires a finite front_end_value")
		}
		v := cfg.FrontEndValue
		return &v, nil
	case curve.FrontEndAuto:
		return estimateFrontEnd(obs, cfg.FrontEndWindow), nil
	default:
		return nil, nil
	}
}

// estimateFrontEnd takes a robust short-end level: the median value over
// tenors inside the window, falling back to the five shortest tenors when
// the window is too sparse. Returns nil when no estimate is possible.
func estimateFrontEnd(obs []curve.Observation, window float64) *float64 {
	type pt struct{ t, v float64 }
	var front []pt
	for _, p := range obs {
		if math.IsNaN(p.Tenor) || math.IsNaN(p.Value) {
			continue
		}
		front = append(front, pt{p.Tenor, p.Value})
	}
	if len(front) == 0 {
		return nil
	}
	sort.Slice(front, func(i, j int) bool { return front[i].t < front[j].t })

	var values []float64
	for _, p := range front {
		if p.t <= window {
			values = append(values, p.v)
		}
	}
	if len(values) < 3 {
		take := 5
		if take > len(front) {
			take = len(front)
		}
		values = values[:0]
		for _, p := range front[:take] {
			values = append(values, p.v)
		}
	}

	med, err := stats.Median(values)
	if err != nil {
		return nil
	}
	return &med
}

func toFitResult(fit engine.ModelFit, n, kEff int, cfg curve.FitConfig) curve.FitResult {
	return curve.FitResult{
		Model: curve.CurveModel{
			Name:        fit.Kind,
			DisplayName: fit.Kind.DisplayName(),
			Betas:       fit.Betas,
			Taus:        fit.Taus,
		},
		Quality: curve.FitQuality{
			SSE:  fit.SSE,
			RMSE: fit.RMSE,
			BIC:  bic(n, fit.SSE, kEff),
			N:    n,
		},
		EffectiveParams: kEff,
		FrontEndMode:    cfg.FrontEndMode,
		MonotoneMode:    cfg.ShortEndMonotone,
		MonotoneApplied: fit.MonotoneApplied,
		RobustIters:     fit.RobustItersRun,
	}
}

func bic(n int, sse float64, k int) float64 {
	nf := float64(n)
	ssePer := math.Max(sse/nf, 1e-12)
	return nf*math.Log(ssePer) + float64(k)*math.Log(nf)
}

// selectByBIC picks the minimum-BIC fit, then prefers the simplest model
// within the 2.0 margin.
func selectByBIC(fits []curve.FitResult) curve.FitResult {
	best := fits[0]
	for _, f := range fits[1:] {
		if f.Quality.BIC < best.Quality.BIC {
			best = f
		}
	}

	for _, kind := range curve.AllModelKinds {
		for _, f := range fits {
			if f.Model.Name == kind && f.Quality.BIC <= best.Quality.BIC+bicSimplicityMargin {
				return f
			}
		}
	}
	return best
}
