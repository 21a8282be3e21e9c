package report

import (
	"math"
	"strings"
	"testing"

	"nscurve/adapters/fit/model"
	"nscurve/adapters/fit/selection"
	"nscurve/domain/curve"
	"nscurve/internal/errors"
)

func testModel() curve.CurveModel {
	return curve.CurveModel{
		Name:        curve.ModelNS,
		DisplayName: "NS",
		Betas:       []float64{100, -20, 50},
		Taus:        []float64{2.0},
	}
}

func TestResidualsConvention(t *testing.T) {
	m := testModel()
	fitted := model.PredictModel(m, 5.0)
	obs := []curve.Observation{
		{ID: "cheap", Tenor: 5.0, Value: fitted + 10, Weight: 1},
		{ID: "rich", Tenor: 5.0, Value: fitted - 10, Weight: 1},
	}

	res, err := Residuals(m, obs)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res[0].Residual-10) > 1e-12 {
		t.Errorf("cheap residual = %g, want +10 (observed minus fitted)", res[0].Residual)
	}
	if math.Abs(res[1].Residual+10) > 1e-12 {
		t.Errorf("rich residual = %g, want -10", res[1].Residual)
	}
}

func TestResidualsRejectsNonFinitePrediction(t *testing.T) {
	m := testModel()
	m.Betas = []float64{math.Inf(1), 0, 0}
	obs := []curve.Observation{{ID: "a", Tenor: 1, Value: 1, Weight: 1}}

	_, err := Residuals(m, obs)
	if !errors.HasCode(err, errors.CodeNumericalFailure) {
		t.Fatalf("expected NUMERICAL_FAILURE, got %v", err)
	}
}

func rankInput() []curve.Residual {
	mk := func(id string, r float64) curve.Residual {
		return curve.Residual{Point: curve.Observation{ID: id}, Residual: r}
	}
	return []curve.Residual{
		mk("a", 5), mk("b", -3), mk("c", 12), mk("d", 0),
		mk("e", -9), mk("f", 1), mk("g", -1),
	}
}

func TestRankResidualsSplitsSides(t *testing.T) {
	r := RankResiduals(rankInput(), 2)

	if len(r.Cheap) != 2 || r.Cheap[0].Point.ID != "c" || r.Cheap[1].Point.ID != "a" {
		t.Errorf("cheap ranking wrong: %+v", r.Cheap)
	}
	if len(r.Rich) != 2 || r.Rich[0].Point.ID != "e" || r.Rich[1].Point.ID != "b" {
		t.Errorf("rich ranking wrong: %+v", r.Rich)
	}
}

func TestRankResidualsExcludesZeroAndHonorsN(t *testing.T) {
	r := RankResiduals(rankInput(), 10)
	for _, c := range r.Cheap {
		if c.Residual <= 0 {
			t.Errorf("cheap list contains non-positive residual %g", c.Residual)
		}
	}
	for _, c := range r.Rich {
		if c.Residual >= 0 {
			t.Errorf("rich list contains non-negative residual %g", c.Residual)
		}
	}
	if len(RankResiduals(rankInput(), 0).Cheap) != 0 {
		t.Error("topN=0 must return empty rankings")
	}
}

func TestSummarizeResiduals(t *testing.T) {
	res := []curve.Residual{
		{Residual: -2}, {Residual: 0}, {Residual: 2}, {Residual: 8},
	}
	s := SummarizeResiduals(res)
	if math.Abs(s.Mean-2) > 1e-12 {
		t.Errorf("mean = %g, want 2", s.Mean)
	}
	if math.Abs(s.Median-1) > 1e-12 {
		t.Errorf("median = %g, want 1", s.Median)
	}
	if s.MaxAbs != 8 {
		t.Errorf("maxAbs = %g, want 8", s.MaxAbs)
	}
}

func TestFormatSummaryMentionsKeyFacts(t *testing.T) {
	sel := &selection.Selection{
		Best: curve.FitResult{
			Model: testModel(),
			Quality: curve.FitQuality{
				SSE: 25, RMSE: 0.5, BIC: -120.5, N: 100,
			},
			EffectiveParams: 4,
			MonotoneMode:    curve.MonotoneAuto,
			MonotoneApplied: true,
			RobustIters:     3,
		},
		Fits: []curve.FitResult{
			{Model: curve.CurveModel{Name: curve.ModelNS, DisplayName: "NS"}, Quality: curve.FitQuality{BIC: -120.5}},
			{Model: curve.CurveModel{Name: curve.ModelNSS, DisplayName: "NSS"}, Quality: curve.FitQuality{BIC: -119.0}},
		},
		Skipped: []selection.SkippedModel{{Kind: curve.ModelNSSC, Reason: "underdetermined"}},
	}
	sel.Best.Model.Name = curve.ModelNS
	ds := curve.DatasetStats{N: 100, TenorMin: 0.25, TenorMax: 30, ValueMin: 40, ValueMax: 220}

	out := FormatSummary(sel, ds, Rankings{}, "bp")
	for _, want := range []string{"NS", "100 bonds", "BIC", "huber", "skipped", "underdetermined"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
