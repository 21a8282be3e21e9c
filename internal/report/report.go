// Package report turns a fit into human-facing outputs: per-bond residuals,
// cheap/rich rankings, and a plain-text run summary.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"nscurve/adapters/fit/model"
	"nscurve/adapters/fit/selection"
	"nscurve/domain/curve"
	"nscurve/internal/errors"
)

// Residuals evaluates the fitted model at every observation tenor.
// Residual convention: observed minus fitted, so positive means the bond
// trades cheap (wide) to the curve.
func Residuals(m curve.CurveModel, obs []curve.Observation) ([]curve.Residual, error) {
	out := make([]curve.Residual, len(obs))
	for i, p := range obs {
		fitted := model.PredictModel(m, p.Tenor)
		if math.IsNaN(fitted) || math.IsInf(fitted, 0) {
			return nil, errors.Newf(errors.CodeNumericalFailure,
				"non-finite prediction for %s at tenor %g", p.ID, p.Tenor)
		}
		out[i] = curve.Residual{
			Point:    p,
			Fitted:   fitted,
			Residual: p.Value - fitted,
		}
	}
	return out, nil
}

// Rankings holds the most mispriced bonds on each side of the curve.
type Rankings struct {
	// Cheap trades wide to the curve (largest positive residuals).
	Cheap []curve.Residual `json:"cheap"`
	// Rich trades tight to the curve (largest negative residuals).
	Rich []curve.Residual `json:"rich"`
}

// RankResiduals picks the top-N bonds on each side, ordered by distance
// from the curve. Ties keep input order so output is deterministic.
func RankResiduals(residuals []curve.Residual, topN int) Rankings {
	if topN <= 0 {
		return Rankings{}
	}

	byResidual := make([]curve.Residual, len(residuals))
	copy(byResidual, residuals)
	sort.SliceStable(byResidual, func(i, j int) bool {
		return byResidual[i].Residual > byResidual[j].Residual
	})

	var r Rankings
	for _, res := range byResidual {
		if res.Residual <= 0 || len(r.Cheap) == topN {
			break
		}
		r.Cheap = append(r.Cheap, res)
	}
	for i := len(byResidual) - 1; i >= 0; i-- {
		res := byResidual[i]
		if res.Residual >= 0 || len(r.Rich) == topN {
			break
		}
		r.Rich = append(r.Rich, res)
	}
	return r
}

// ResidualStats summarizes the residual distribution.
type ResidualStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Stdev  float64 `json:"stdev"`
	MaxAbs float64 `json:"max_abs"`
}

// SummarizeResiduals computes distribution statistics over the residuals.
func SummarizeResiduals(residuals []curve.Residual) ResidualStats {
	if len(residuals) == 0 {
		return ResidualStats{}
	}
	values := make([]float64, len(residuals))
	maxAbs := 0.0
	for i, r := range residuals {
		values[i] = r.Residual
		maxAbs = math.Max(maxAbs, math.Abs(r.Residual))
	}
	mean, _ := stats.Mean(values)
	median, _ := stats.Median(values)
	stdev, _ := stats.StandardDeviationSample(values)
	return ResidualStats{Mean: mean, Median: median, Stdev: stdev, MaxAbs: maxAbs}
}

// FormatSummary renders the run summary printed at the end of a CLI run.
func FormatSummary(sel *selection.Selection, ds curve.DatasetStats, rankings Rankings, unit string) string {
	var b strings.Builder
	best := sel.Best

	fmt.Fprintf(&b, "Model: %s  (n=%d, k_eff=%d)\n",
		best.Model.DisplayName, best.Quality.N, best.EffectiveParams)

	fmt.Fprintf(&b, "Taus:  %s years\n", formatFloats(best.Model.Taus))
	fmt.Fprintf(&b, "Betas: %s\n", formatFloats(best.Model.Betas))
	fmt.Fprintf(&b, "Fit:   RMSE %.3f %s, SSE %.3f, BIC %.2f\n",
		best.Quality.RMSE, unit, best.Quality.SSE, best.Quality.BIC)
	fmt.Fprintf(&b, "Data:  %d bonds, tenors %.2f-%.2fy, values %.1f-%.1f %s\n",
		ds.N, ds.TenorMin, ds.TenorMax, ds.ValueMin, ds.ValueMax, unit)

	if sel.FrontEndValue != nil {
		fmt.Fprintf(&b, "Front end: y(0) fixed at %.2f %s\n", *sel.FrontEndValue, unit)
	}
	if best.MonotoneMode != curve.MonotoneNone && best.MonotoneMode != "" {
		state := "applied"
		if !best.MonotoneApplied {
			state = "relaxed (no admissible candidate)"
		}
		fmt.Fprintf(&b, "Short-end guardrail: %s, %s\n", best.MonotoneMode, state)
	}
	if best.RobustIters > 0 {
		fmt.Fprintf(&b, "Robust: huber, %d reweight passes\n", best.RobustIters)
	}

	if len(sel.Fits) > 1 {
		b.WriteString("\nCandidates:\n")
		for _, f := range sel.Fits {
			marker := " "
			if f.Model.Name == best.Model.Name {
				marker = "*"
			}
			fmt.Fprintf(&b, " %s %-14s BIC %9.2f  RMSE %8.3f\n",
				marker, f.Model.DisplayName, f.Quality.BIC, f.Quality.RMSE)
		}
	}
	for _, s := range sel.Skipped {
		fmt.Fprintf(&b, "  skipped %s: %s\n", s.Kind.DisplayName(), s.Reason)
	}

	writeRanking(&b, "Cheapest to curve", rankings.Cheap, unit)
	writeRanking(&b, "Richest to curve", rankings.Rich, unit)
	return b.String()
}

func writeRanking(b *strings.Builder, title string, rows []curve.Residual, unit string) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for i, r := range rows {
		fmt.Fprintf(b, " %2d. %-16s %6.2fy  obs %8.2f  fit %8.2f  resid %+8.2f %s\n",
			i+1, r.Point.ID, r.Point.Tenor, r.Point.Value, r.Fitted, r.Residual, unit)
	}
}

func formatFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.4g", x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
